package service

import (
	"context"
	"fmt"

	"pottery-booking-service/internal/models"
	"pottery-booking-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger owns slot capacity accounting and price computation. It is a leaf
// component: reserve and release expect to run inside the caller's
// transaction so the check-and-decrement is atomic against concurrent
// reservations on the same slot.
type Ledger struct {
	store  Store
	logger *zap.Logger
}

// NewLedger creates a capacity and pricing ledger
func NewLedger(store Store) *Ledger {
	return &Ledger{
		store:  store,
		logger: util.GetLogger(),
	}
}

// Price computes the total for a party. A party of exactly two gets the
// workshop's flat two-person price when one is set; a flat price of zero
// degrades to per-person pricing.
func (l *Ledger) Price(ctx context.Context, workshopID string, partySize int) (decimal.Decimal, error) {
	workshop, err := l.store.GetWorkshop(ctx, workshopID)
	if err != nil {
		return decimal.Zero, err
	}

	if partySize == 2 && workshop.PriceForTwo.IsPositive() {
		return workshop.PriceForTwo, nil
	}
	return workshop.PricePerPerson.Mul(decimal.NewFromInt(int64(partySize))), nil
}

// Reserve checks and decrements slot capacity under the slot's row lock.
// A party size exceeding available capacity fails with
// models.ErrInsufficientCapacity and performs no mutation.
func (l *Ledger) Reserve(ctx context.Context, slotID string, partySize int) error {
	if partySize <= 0 {
		return fmt.Errorf("invalid party size %d", partySize)
	}

	slot, err := l.store.GetSlotForUpdate(ctx, slotID)
	if err != nil {
		return err
	}

	if slot.AvailableCapacity < partySize {
		util.CapacityReservationsFailed.Inc()
		l.logger.Warn("Slot capacity exceeded",
			zap.String("slot_id", slotID),
			zap.Int("requested", partySize),
			zap.Int("available", slot.AvailableCapacity))
		return fmt.Errorf("slot %s has %d of %d requested: %w",
			slotID, slot.AvailableCapacity, partySize, models.ErrInsufficientCapacity)
	}

	return l.store.AdjustSlotCapacity(ctx, slotID, -partySize)
}

// Release gives capacity back, the compensating action for cancellation.
// The released amount is clamped so available capacity never exceeds total
// capacity; callers release at most once per booking.
func (l *Ledger) Release(ctx context.Context, slotID string, partySize int) error {
	if partySize <= 0 {
		return fmt.Errorf("invalid party size %d", partySize)
	}

	slot, err := l.store.GetSlotForUpdate(ctx, slotID)
	if err != nil {
		return err
	}

	delta := partySize
	if room := slot.TotalCapacity - slot.AvailableCapacity; delta > room {
		delta = room
	}
	if delta == 0 {
		return nil
	}

	return l.store.AdjustSlotCapacity(ctx, slotID, delta)
}
