package service

import (
	"context"
	"time"

	"pottery-booking-service/internal/models"
)

// Store is the persistence surface the services depend on. Implemented by
// the postgres store; tests substitute an in-memory fake. All methods join
// the transaction carried on the context when one is open.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetWorkshop(ctx context.Context, id string) (*models.Workshop, error)
	GetSlot(ctx context.Context, id string) (*models.Slot, error)
	GetSlotForUpdate(ctx context.Context, id string) (*models.Slot, error)
	AdjustSlotCapacity(ctx context.Context, id string, delta int) error

	GetCoupon(ctx context.Context, code string) (*models.Coupon, error)
	GetCouponForUpdate(ctx context.Context, code string) (*models.Coupon, error)
	IncrementCouponUses(ctx context.Context, id string) error

	CreateBooking(ctx context.Context, b *models.Booking) error
	CreateParticipant(ctx context.Context, p *models.Participant) error
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	GetBookingForUpdate(ctx context.Context, id string) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id, status string) error
	MarkBookingCancelled(ctx context.Context, id, reason string, capacityReleased bool) error
	MarkCapacityReleased(ctx context.Context, id string) error
	SetBookingCheckIn(ctx context.Context, id string, at time.Time) error
	SetBookingFeedback(ctx context.Context, id, text string, rating int) error
	GetParticipantsByBookingID(ctx context.Context, bookingID string) ([]models.Participant, error)

	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	GetPaymentByTransactionID(ctx context.Context, txID string) (*models.Payment, error)
	GetPaymentForUpdate(ctx context.Context, id string) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id, status string, completedAt *time.Time) error
	CreatePaymentLog(ctx context.Context, l *models.PaymentLog) error
	GetPaymentLogs(ctx context.Context, paymentID string) ([]models.PaymentLog, error)
	GetPaymentsByBookingID(ctx context.Context, bookingID string) ([]models.Payment, error)
}

// EventPublisher publishes domain events. Publish failures are logged and
// swallowed by the services; they never roll back a committed transition.
type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, event *models.BookingCreatedEvent) error
	PublishBookingCancelled(ctx context.Context, event *models.BookingCancelledEvent) error
	PublishPaymentInitiated(ctx context.Context, event *models.PaymentInitiatedEvent) error
	PublishPaymentSuccess(ctx context.Context, event *models.PaymentSuccessEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
	PublishPaymentRefunded(ctx context.Context, event *models.PaymentRefundedEvent) error
}

// Cache is the read-cache / idempotency surface backed by Redis. A nil
// Cache disables caching.
type Cache interface {
	GetBookingDetail(ctx context.Context, bookingID string) (*models.BookingDetail, error)
	SetBookingDetail(ctx context.Context, detail *models.BookingDetail) error
	InvalidateBooking(ctx context.Context, bookingID string) error
	GetIdempotentBooking(ctx context.Context, key string) (string, error)
	SetIdempotentBooking(ctx context.Context, key, bookingID string) error
}
