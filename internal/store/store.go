package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pottery-booking-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

type txKey struct{}

// WithTx runs fn inside a transaction carried on the context. All store
// reads/writes issued with that context join the same transaction, so a
// single WithTx covers the multi-row atomic commits the booking and payment
// flows require. Nested calls reuse the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func txFromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// ext returns the transaction bound to ctx, falling back to the pool.
func (s *Store) ext(ctx context.Context) sqlx.ExtContext {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// GetWorkshop retrieves a workshop by ID
func (s *Store) GetWorkshop(ctx context.Context, id string) (*models.Workshop, error) {
	var w models.Workshop
	err := sqlx.GetContext(ctx, s.ext(ctx), &w, "SELECT * FROM workshops WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workshop %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetSlot retrieves a slot by ID
func (s *Store) GetSlot(ctx context.Context, id string) (*models.Slot, error) {
	var slot models.Slot
	err := sqlx.GetContext(ctx, s.ext(ctx), &slot, "SELECT * FROM slots WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("slot %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// GetSlotForUpdate loads a slot under a row-level lock. Must run inside
// WithTx; the lock serializes concurrent reservations against the same slot.
func (s *Store) GetSlotForUpdate(ctx context.Context, id string) (*models.Slot, error) {
	var slot models.Slot
	err := sqlx.GetContext(ctx, s.ext(ctx), &slot, "SELECT * FROM slots WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("slot %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock slot: %w", err)
	}
	return &slot, nil
}

// AdjustSlotCapacity moves available capacity by delta (negative to reserve,
// positive to release). Callers hold the row lock via GetSlotForUpdate.
func (s *Store) AdjustSlotCapacity(ctx context.Context, id string, delta int) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE slots SET available_capacity = available_capacity + $1, updated_at = NOW() WHERE id = $2",
		delta, id)
	if err != nil {
		return fmt.Errorf("failed to adjust slot capacity: %w", err)
	}
	return nil
}

// GetCoupon retrieves a coupon by code without locking it
func (s *Store) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := sqlx.GetContext(ctx, s.ext(ctx), &c, "SELECT * FROM coupons WHERE code = $1", code)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("coupon %s: %w", code, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCouponForUpdate loads an active-or-not coupon by code under a row-level
// lock, serializing redemptions of the same code. Must run inside WithTx.
func (s *Store) GetCouponForUpdate(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := sqlx.GetContext(ctx, s.ext(ctx), &c, "SELECT * FROM coupons WHERE code = $1 FOR UPDATE", code)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("coupon %s: %w", code, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock coupon: %w", err)
	}
	return &c, nil
}

// IncrementCouponUses bumps the usage counter. Callers hold the row lock and
// have already checked the usage cap.
func (s *Store) IncrementCouponUses(ctx context.Context, id string) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE coupons SET current_uses = current_uses + 1, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to increment coupon uses: %w", err)
	}
	return nil
}
