package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pottery-booking-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreatePayment inserts a new payment attempt in PENDING status
func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (id, booking_id, transaction_id, gateway, amount, status, gateway_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := sqlx.GetContext(ctx, s.ext(ctx), p, query,
		p.ID, p.BookingID, p.TransactionID, p.Gateway, p.Amount, p.Status, p.GatewayResponse)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetPaymentByID retrieves a payment by ID
func (s *Store) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	err := sqlx.GetContext(ctx, s.ext(ctx), &p, "SELECT * FROM payments WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPaymentByTransactionID retrieves a payment by its gateway transaction id
func (s *Store) GetPaymentByTransactionID(ctx context.Context, txID string) (*models.Payment, error) {
	var p models.Payment
	err := sqlx.GetContext(ctx, s.ext(ctx), &p, "SELECT * FROM payments WHERE transaction_id = $1", txID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %s: %w", txID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPaymentForUpdate loads a payment under a row-level lock. The lock makes
// the per-payment state machine single-writer: a verify and a refund racing
// on the same row are serialized here. Must run inside WithTx.
func (s *Store) GetPaymentForUpdate(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	err := sqlx.GetContext(ctx, s.ext(ctx), &p, "SELECT * FROM payments WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock payment: %w", err)
	}
	return &p, nil
}

// UpdatePaymentStatus updates a payment's status and optional completion
// time. A nil completedAt keeps whatever is already recorded, so a refund
// does not erase when the payment originally completed.
func (s *Store) UpdatePaymentStatus(ctx context.Context, id, status string, completedAt *time.Time) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE payments SET status = $1, completed_at = COALESCE($2, completed_at), updated_at = NOW() WHERE id = $3",
		status, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}

// CreatePaymentLog appends an audit record. Rows are never updated or
// deleted; the caller writes the log in the same transaction as the status
// change it documents.
func (s *Store) CreatePaymentLog(ctx context.Context, l *models.PaymentLog) error {
	query := `
		INSERT INTO payment_logs (id, payment_id, event, message, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := sqlx.GetContext(ctx, s.ext(ctx), l, query, l.ID, l.PaymentID, l.Event, l.Message, l.Data)
	if err != nil {
		return fmt.Errorf("failed to create payment log: %w", err)
	}
	return nil
}

// GetPaymentLogs retrieves the audit trail for a payment, oldest first
func (s *Store) GetPaymentLogs(ctx context.Context, paymentID string) ([]models.PaymentLog, error) {
	var logs []models.PaymentLog
	err := sqlx.SelectContext(ctx, s.ext(ctx), &logs,
		"SELECT * FROM payment_logs WHERE payment_id = $1 ORDER BY created_at", paymentID)
	return logs, err
}

// GetPaymentsByBookingID retrieves all payment attempts for a booking
func (s *Store) GetPaymentsByBookingID(ctx context.Context, bookingID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := sqlx.SelectContext(ctx, s.ext(ctx), &payments,
		"SELECT * FROM payments WHERE booking_id = $1 ORDER BY created_at", bookingID)
	return payments, err
}
