package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pottery-booking-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateBooking inserts a new booking. A unique constraint on booking_number
// surfaces as models.ErrConflict so the caller can regenerate and retry.
func (s *Store) CreateBooking(ctx context.Context, b *models.Booking) error {
	query := `
		INSERT INTO bookings (
			id, booking_number, workshop_id, slot_id,
			customer_name, customer_email, customer_phone, number_of_people,
			total_amount, discount_amount, final_amount, coupon_code, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	err := sqlx.GetContext(ctx, s.ext(ctx), b, query,
		b.ID, b.BookingNumber, b.WorkshopID, b.SlotID,
		b.CustomerName, b.CustomerEmail, b.CustomerPhone, b.NumberOfPeople,
		b.TotalAmount, b.DiscountAmount, b.FinalAmount, b.CouponCode, b.Status)
	if isUniqueViolation(err) {
		return fmt.Errorf("booking number %s: %w", b.BookingNumber, models.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// CreateParticipant inserts an additional participant for a booking
func (s *Store) CreateParticipant(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO booking_participants (id, booking_id, name, email)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := sqlx.GetContext(ctx, s.ext(ctx), p, query, p.ID, p.BookingID, p.Name, p.Email)
	if err != nil {
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

// GetBookingByID retrieves a booking by ID
func (s *Store) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := sqlx.GetContext(ctx, s.ext(ctx), &b, "SELECT * FROM bookings WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("booking %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBookingForUpdate loads a booking under a row-level lock so concurrent
// cancel / check-in / release calls on the same booking are serialized.
func (s *Store) GetBookingForUpdate(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := sqlx.GetContext(ctx, s.ext(ctx), &b, "SELECT * FROM bookings WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("booking %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	return &b, nil
}

// UpdateBookingStatus updates a booking's lifecycle status
func (s *Store) UpdateBookingStatus(ctx context.Context, id, status string) error {
	res, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("booking %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// MarkBookingCancelled records the cancellation with its reason and whether
// slot capacity was given back as part of it.
func (s *Store) MarkBookingCancelled(ctx context.Context, id, reason string, capacityReleased bool) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		`UPDATE bookings SET status = $1, cancel_reason = $2, capacity_released = $3, updated_at = NOW() WHERE id = $4`,
		models.BookingStatusCancelled, reason, capacityReleased, id)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	return nil
}

// MarkCapacityReleased flips the released flag after a refund-driven release.
func (s *Store) MarkCapacityReleased(ctx context.Context, id string) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE bookings SET capacity_released = TRUE, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to mark capacity released: %w", err)
	}
	return nil
}

// SetBookingCheckIn stamps the check-in time and moves the booking to
// CHECKED_IN.
func (s *Store) SetBookingCheckIn(ctx context.Context, id string, at time.Time) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE bookings SET status = $1, check_in_time = $2, updated_at = NOW() WHERE id = $3",
		models.BookingStatusCheckedIn, at, id)
	if err != nil {
		return fmt.Errorf("failed to set check-in: %w", err)
	}
	return nil
}

// SetBookingFeedback records the customer's post-visit feedback
func (s *Store) SetBookingFeedback(ctx context.Context, id, text string, rating int) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE bookings SET feedback_text = $1, feedback_rating = $2, updated_at = NOW() WHERE id = $3",
		text, rating, id)
	if err != nil {
		return fmt.Errorf("failed to set feedback: %w", err)
	}
	return nil
}

// GetParticipantsByBookingID retrieves all participants for a booking
func (s *Store) GetParticipantsByBookingID(ctx context.Context, bookingID string) ([]models.Participant, error) {
	var participants []models.Participant
	err := sqlx.SelectContext(ctx, s.ext(ctx), &participants,
		"SELECT * FROM booking_participants WHERE booking_id = $1 ORDER BY created_at", bookingID)
	return participants, err
}
