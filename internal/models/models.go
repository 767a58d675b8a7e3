package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Workshop is a catalog item. Owned by catalog management, read-only here.
type Workshop struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	PricePerPerson decimal.Decimal `db:"price_per_person" json:"price_per_person"`
	PriceForTwo    decimal.Decimal `db:"price_for_two" json:"price_for_two"`
	TotalCapacity  int             `db:"total_capacity" json:"total_capacity"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// Slot is a bookable time instance of a Workshop with its own capacity pool.
type Slot struct {
	ID                string    `db:"id" json:"id"`
	WorkshopID        string    `db:"workshop_id" json:"workshop_id"`
	SlotDate          time.Time `db:"slot_date" json:"slot_date"`
	StartTime         string    `db:"start_time" json:"start_time"`
	EndTime           string    `db:"end_time" json:"end_time"`
	AvailableCapacity int       `db:"available_capacity" json:"available_capacity"`
	TotalCapacity     int       `db:"total_capacity" json:"total_capacity"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Booking is the central aggregate. Never deleted; cancellation is a status
// change.
type Booking struct {
	ID               string          `db:"id" json:"id"`
	BookingNumber    string          `db:"booking_number" json:"booking_number"`
	WorkshopID       string          `db:"workshop_id" json:"workshop_id"`
	SlotID           string          `db:"slot_id" json:"slot_id"`
	CustomerName     string          `db:"customer_name" json:"customer_name"`
	CustomerEmail    string          `db:"customer_email" json:"customer_email"`
	CustomerPhone    string          `db:"customer_phone" json:"customer_phone"`
	NumberOfPeople   int             `db:"number_of_people" json:"number_of_people"`
	TotalAmount      decimal.Decimal `db:"total_amount" json:"total_amount"`
	DiscountAmount   decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	FinalAmount      decimal.Decimal `db:"final_amount" json:"final_amount"`
	CouponCode       string          `db:"coupon_code" json:"coupon_code,omitempty"`
	Status           string          `db:"status" json:"status"`
	CancelReason     string          `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CapacityReleased bool            `db:"capacity_released" json:"-"`
	CheckInTime      *time.Time      `db:"check_in_time" json:"check_in_time,omitempty"`
	FeedbackText     string          `db:"feedback_text" json:"feedback_text,omitempty"`
	FeedbackRating   *int            `db:"feedback_rating" json:"feedback_rating,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// Participant is an additional attendee on a Booking.
type Participant struct {
	ID        string    `db:"id" json:"id"`
	BookingID string    `db:"booking_id" json:"booking_id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Coupon discount is a percentage OR a flat amount; percentage wins when both
// are set. MaxUses nil means unlimited.
type Coupon struct {
	ID                 string           `db:"id" json:"id"`
	Code               string           `db:"code" json:"code"`
	Description        string           `db:"description" json:"description"`
	DiscountPercentage decimal.Decimal  `db:"discount_percentage" json:"discount_percentage"`
	DiscountAmount     *decimal.Decimal `db:"discount_amount" json:"discount_amount,omitempty"`
	ValidFrom          time.Time        `db:"valid_from" json:"valid_from"`
	ValidUntil         time.Time        `db:"valid_until" json:"valid_until"`
	MaxUses            *int             `db:"max_uses" json:"max_uses,omitempty"`
	CurrentUses        int              `db:"current_uses" json:"current_uses"`
	IsActive           bool             `db:"is_active" json:"is_active"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// Payment is one attempt to collect money for a Booking. A Booking may
// accumulate several across failed attempts; exactly one may reach COMPLETED.
type Payment struct {
	ID              string          `db:"id" json:"id"`
	BookingID       string          `db:"booking_id" json:"booking_id"`
	TransactionID   string          `db:"transaction_id" json:"transaction_id"`
	Gateway         string          `db:"gateway" json:"gateway"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Status          string          `db:"status" json:"status"`
	GatewayResponse string          `db:"gateway_response" json:"gateway_response,omitempty"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// PaymentLog is an append-only audit record, one row per payment state
// transition, written in the same transaction as the transition itself.
type PaymentLog struct {
	ID        string    `db:"id" json:"id"`
	PaymentID string    `db:"payment_id" json:"payment_id"`
	Event     string    `db:"event" json:"event"`
	Message   string    `db:"message" json:"message"`
	Data      string    `db:"data" json:"data,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BookingDetail is the full aggregate returned to downstream consumers.
type BookingDetail struct {
	Booking      *Booking      `json:"booking"`
	Workshop     *Workshop     `json:"workshop"`
	Slot         *Slot         `json:"slot"`
	Participants []Participant `json:"participants"`
	Payments     []Payment     `json:"payments"`
}

// Booking statuses
const (
	BookingStatusPending          = "PENDING"
	BookingStatusConfirmed        = "CONFIRMED"
	BookingStatusPaymentPending   = "PAYMENT_PENDING"
	BookingStatusPaymentCompleted = "PAYMENT_COMPLETED"
	BookingStatusCheckedIn        = "CHECKED_IN"
	BookingStatusCompleted        = "COMPLETED"
	BookingStatusCancelled        = "CANCELLED"
	BookingStatusRefunded         = "REFUNDED"
)

// Payment statuses
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
	PaymentStatusRefunded  = "REFUNDED"
)

// Payment gateways. Adding a provider means registering a new adapter with
// the gateway factory, never branching inside the orchestrator.
const (
	GatewayCashfree = "CASHFREE"
	GatewayRazorpay = "RAZORPAY"
)

// Payment audit trail event tags
const (
	LogEventPaymentInitiated = "PaymentInitiated"
	LogEventPaymentVerified  = "PaymentVerified"
	LogEventPaymentFailed    = "PaymentFailed"
	LogEventPaymentRefunded  = "PaymentRefunded"
)
