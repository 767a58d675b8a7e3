package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"pottery-booking-service/internal/models"
	"pottery-booking-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BookingService orchestrates the booking lifecycle: creation with capacity
// reservation and pricing, cancellation with capacity release, check-in, and
// aggregate reads.
type BookingService struct {
	store     Store
	ledger    *Ledger
	coupons   *CouponGuard
	publisher EventPublisher
	cache     Cache
	logger    *zap.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(
	store Store,
	ledger *Ledger,
	coupons *CouponGuard,
	publisher EventPublisher,
	cache Cache,
) *BookingService {
	return &BookingService{
		store:     store,
		ledger:    ledger,
		coupons:   coupons,
		publisher: publisher,
		cache:     cache,
		logger:    util.GetLogger(),
	}
}

// ParticipantRequest is an additional attendee on a booking request
type ParticipantRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email,omitempty"`
}

// CreateBookingRequest represents a request to create a booking
type CreateBookingRequest struct {
	WorkshopID     string               `json:"workshop_id" binding:"required"`
	SlotID         string               `json:"slot_id" binding:"required"`
	CustomerName   string               `json:"customer_name" binding:"required"`
	CustomerEmail  string               `json:"customer_email" binding:"required,email"`
	CustomerPhone  string               `json:"customer_phone" binding:"required"`
	NumberOfPeople int                  `json:"number_of_people" binding:"required,min=1"`
	Participants   []ParticipantRequest `json:"participants,omitempty"`
	CouponCode     string               `json:"coupon_code,omitempty"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
}

// CreateBooking creates a booking in one atomic unit: capacity reservation,
// pricing, lenient coupon redemption and persistence all commit or roll back
// together. A booking-number collision is retried once with a fresh number.
func (s *BookingService) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CreateBooking")
	defer span.End()

	if s.cache != nil && req.IdempotencyKey != "" {
		if existingID, err := s.cache.GetIdempotentBooking(ctx, req.IdempotencyKey); err == nil && existingID != "" {
			s.logger.Info("Duplicate booking request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("booking_id", existingID))
			return s.store.GetBookingByID(ctx, existingID)
		}
	}

	booking, err := s.createOnce(ctx, req)
	if errors.Is(err, models.ErrConflict) {
		s.logger.Warn("Booking number collision, retrying with a fresh number")
		booking, err = s.createOnce(ctx, req)
	}
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInsufficientCapacity):
			util.BookingsFailedTotal.WithLabelValues("insufficient_capacity").Inc()
		case errors.Is(err, models.ErrNotFound):
			util.BookingsFailedTotal.WithLabelValues("not_found").Inc()
		default:
			util.BookingsFailedTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	util.BookingsCreatedTotal.Inc()
	s.logger.Info("Booking created",
		zap.String("booking_id", booking.ID),
		zap.String("booking_number", booking.BookingNumber))

	if s.cache != nil && req.IdempotencyKey != "" {
		if err := s.cache.SetIdempotentBooking(ctx, req.IdempotencyKey, booking.ID); err != nil {
			s.logger.Error("Failed to store idempotency key", zap.Error(err))
		}
	}

	event := &models.BookingCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeBookingCreated,
			Timestamp: time.Now(),
		},
		BookingID:     booking.ID,
		BookingNumber: booking.BookingNumber,
		WorkshopID:    booking.WorkshopID,
		SlotID:        booking.SlotID,
		CustomerEmail: booking.CustomerEmail,
		FinalAmount:   booking.FinalAmount,
	}
	if err := s.publisher.PublishBookingCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingCreated event", zap.Error(err))
	}

	return booking, nil
}

func (s *BookingService) createOnce(ctx context.Context, req *CreateBookingRequest) (*models.Booking, error) {
	var booking *models.Booking

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.store.GetWorkshop(txCtx, req.WorkshopID); err != nil {
			return err
		}
		if _, err := s.store.GetSlot(txCtx, req.SlotID); err != nil {
			return err
		}

		if err := s.ledger.Reserve(txCtx, req.SlotID, req.NumberOfPeople); err != nil {
			return err
		}

		total, err := s.ledger.Price(txCtx, req.WorkshopID, req.NumberOfPeople)
		if err != nil {
			return err
		}

		discount := decimal.Zero
		couponCode := ""
		if req.CouponCode != "" {
			d, applied, err := s.coupons.Redeem(txCtx, req.CouponCode, total)
			if err != nil {
				return err
			}
			if applied {
				discount = d
				couponCode = req.CouponCode
			}
		}

		booking = &models.Booking{
			ID:             uuid.New().String(),
			BookingNumber:  generateBookingNumber(),
			WorkshopID:     req.WorkshopID,
			SlotID:         req.SlotID,
			CustomerName:   req.CustomerName,
			CustomerEmail:  req.CustomerEmail,
			CustomerPhone:  req.CustomerPhone,
			NumberOfPeople: req.NumberOfPeople,
			TotalAmount:    total,
			DiscountAmount: discount,
			FinalAmount:    total.Sub(discount),
			CouponCode:     couponCode,
			Status:         models.BookingStatusPending,
		}

		if err := s.store.CreateBooking(txCtx, booking); err != nil {
			return err
		}

		for _, p := range req.Participants {
			participant := &models.Participant{
				ID:        uuid.New().String(),
				BookingID: booking.ID,
				Name:      p.Name,
				Email:     p.Email,
			}
			if err := s.store.CreateParticipant(txCtx, participant); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// CancelBooking moves a booking to CANCELLED and releases its slot capacity
// exactly once. Already-terminal bookings are rejected.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, reason string) error {
	ctx, span := util.StartSpan(ctx, "BookingService.CancelBooking")
	defer span.End()

	var cancelled *models.Booking

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		booking, err := s.store.GetBookingForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}

		switch booking.Status {
		case models.BookingStatusCancelled, models.BookingStatusRefunded, models.BookingStatusCompleted:
			return fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, models.ErrInvalidStateTransition)
		}

		if !booking.CapacityReleased {
			if err := s.ledger.Release(txCtx, booking.SlotID, booking.NumberOfPeople); err != nil {
				return err
			}
		}

		if err := s.store.MarkBookingCancelled(txCtx, bookingID, reason, true); err != nil {
			return err
		}

		cancelled = booking
		return nil
	})
	if err != nil {
		return err
	}

	util.BookingsCancelledTotal.Inc()
	s.logger.Info("Booking cancelled",
		zap.String("booking_number", cancelled.BookingNumber),
		zap.String("reason", reason))

	s.invalidate(ctx, bookingID)

	event := &models.BookingCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeBookingCancelled,
			Timestamp: time.Now(),
		},
		BookingID:     bookingID,
		BookingNumber: cancelled.BookingNumber,
		Reason:        reason,
	}
	if err := s.publisher.PublishBookingCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingCancelled event", zap.Error(err))
	}

	return nil
}

// ReleaseForRefund gives slot capacity back for a booking the payment
// orchestrator cancelled through a refund. The orchestrator does not touch
// capacity itself; this is the explicit other half of that contract, and it
// releases at most once per booking.
func (s *BookingService) ReleaseForRefund(ctx context.Context, bookingID string) error {
	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		booking, err := s.store.GetBookingForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}
		if booking.Status != models.BookingStatusCancelled {
			return fmt.Errorf("booking %s is %s, expected cancelled: %w",
				bookingID, booking.Status, models.ErrInvalidStateTransition)
		}
		if booking.CapacityReleased {
			return nil
		}
		if err := s.ledger.Release(txCtx, booking.SlotID, booking.NumberOfPeople); err != nil {
			return err
		}
		return s.store.MarkCapacityReleased(txCtx, bookingID)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, bookingID)
	return nil
}

// CheckIn stamps the check-in time for a paid booking
func (s *BookingService) CheckIn(ctx context.Context, bookingID string) error {
	ctx, span := util.StartSpan(ctx, "BookingService.CheckIn")
	defer span.End()

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		booking, err := s.store.GetBookingForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}
		if booking.Status != models.BookingStatusConfirmed && booking.Status != models.BookingStatusPaymentCompleted {
			return fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, models.ErrInvalidStateTransition)
		}
		return s.store.SetBookingCheckIn(txCtx, bookingID, time.Now().UTC())
	})
	if err != nil {
		return err
	}

	util.BookingsCheckedInTotal.Inc()
	s.invalidate(ctx, bookingID)
	return nil
}

// SubmitFeedback records the customer's rating and comments after the
// workshop. Only a booking the customer actually attended accepts feedback.
func (s *BookingService) SubmitFeedback(ctx context.Context, bookingID, text string, rating int) error {
	ctx, span := util.StartSpan(ctx, "BookingService.SubmitFeedback")
	defer span.End()

	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating %d is out of range 1-5", rating)
	}

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		booking, err := s.store.GetBookingForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}
		if booking.Status != models.BookingStatusCheckedIn && booking.Status != models.BookingStatusCompleted {
			return fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, models.ErrInvalidStateTransition)
		}
		return s.store.SetBookingFeedback(txCtx, bookingID, text, rating)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, bookingID)
	return nil
}

// GetBooking returns the full aggregate, cache-aside through Redis
func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (*models.BookingDetail, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.GetBooking")
	defer span.End()

	if s.cache != nil {
		if detail, err := s.cache.GetBookingDetail(ctx, bookingID); err == nil && detail != nil {
			return detail, nil
		}
	}

	booking, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	workshop, err := s.store.GetWorkshop(ctx, booking.WorkshopID)
	if err != nil {
		return nil, err
	}
	slot, err := s.store.GetSlot(ctx, booking.SlotID)
	if err != nil {
		return nil, err
	}
	participants, err := s.store.GetParticipantsByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.GetPaymentsByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	detail := &models.BookingDetail{
		Booking:      booking,
		Workshop:     workshop,
		Slot:         slot,
		Participants: participants,
		Payments:     payments,
	}

	if s.cache != nil {
		if err := s.cache.SetBookingDetail(ctx, detail); err != nil {
			s.logger.Error("Failed to cache booking detail", zap.Error(err))
		}
	}

	return detail, nil
}

func (s *BookingService) invalidate(ctx context.Context, bookingID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateBooking(ctx, bookingID); err != nil {
		s.logger.Error("Failed to invalidate booking cache", zap.Error(err))
	}
}

// generateBookingNumber builds a BK + UTC timestamp + 4 random digits
// number. Uniqueness is enforced by the storage constraint, with one retry
// on collision.
func generateBookingNumber() string {
	return fmt.Sprintf("BK%s%04d", time.Now().UTC().Format("20060102150405"), 1000+rand.Intn(9000))
}
