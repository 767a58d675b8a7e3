package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeBookingCreated   = "BOOKING_CREATED"
	EventTypeBookingCancelled = "BOOKING_CANCELLED"
	EventTypePaymentInitiated = "PAYMENT_INITIATED"
	EventTypePaymentSuccess   = "PAYMENT_SUCCESS"
	EventTypePaymentFailed    = "PAYMENT_FAILED"
	EventTypePaymentRefunded  = "PAYMENT_REFUNDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingCreatedEvent published when a booking is created
type BookingCreatedEvent struct {
	BaseEvent
	BookingID     string          `json:"booking_id"`
	BookingNumber string          `json:"booking_number"`
	WorkshopID    string          `json:"workshop_id"`
	SlotID        string          `json:"slot_id"`
	CustomerEmail string          `json:"customer_email"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
}

// BookingCancelledEvent published when a booking is cancelled
type BookingCancelledEvent struct {
	BaseEvent
	BookingID     string `json:"booking_id"`
	BookingNumber string `json:"booking_number"`
	Reason        string `json:"reason"`
}

// PaymentInitiatedEvent published when a payment attempt starts
type PaymentInitiatedEvent struct {
	BaseEvent
	PaymentID     string          `json:"payment_id"`
	BookingID     string          `json:"booking_id"`
	TransactionID string          `json:"transaction_id"`
	Gateway       string          `json:"gateway"`
	Amount        decimal.Decimal `json:"amount"`
}

// PaymentSuccessEvent published when gateway verification succeeds
type PaymentSuccessEvent struct {
	BaseEvent
	PaymentID     string          `json:"payment_id"`
	BookingID     string          `json:"booking_id"`
	BookingNumber string          `json:"booking_number"`
	TransactionID string          `json:"transaction_id"`
	CustomerEmail string          `json:"customer_email"`
	WorkshopName  string          `json:"workshop_name"`
	SlotDateTime  time.Time       `json:"slot_date_time"`
	Amount        decimal.Decimal `json:"amount"`
}

// PaymentFailedEvent published when gateway verification fails
type PaymentFailedEvent struct {
	BaseEvent
	PaymentID     string `json:"payment_id"`
	BookingID     string `json:"booking_id"`
	BookingNumber string `json:"booking_number"`
	CustomerEmail string `json:"customer_email"`
	Reason        string `json:"reason"`
}

// PaymentRefundedEvent published when a refund completes
type PaymentRefundedEvent struct {
	BaseEvent
	PaymentID     string          `json:"payment_id"`
	BookingID     string          `json:"booking_id"`
	BookingNumber string          `json:"booking_number"`
	CustomerEmail string          `json:"customer_email"`
	Amount        decimal.Decimal `json:"amount"`
}
