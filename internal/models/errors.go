package models

import "errors"

// Error taxonomy. Storage and gateway errors are wrapped into these
// sentinels so callers can branch with errors.Is without seeing driver or
// provider internals.
var (
	// ErrNotFound covers missing workshop/slot/booking/payment/coupon rows.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientCapacity means the party size exceeds the slot's
	// remaining capacity. No state was mutated.
	ErrInsufficientCapacity = errors.New("insufficient capacity")

	// ErrInvalidCoupon marks an unknown/expired/exhausted/inactive coupon
	// on the validation endpoint. It never escapes booking creation, where
	// the coupon guard degrades to zero discount instead.
	ErrInvalidCoupon = errors.New("invalid coupon")

	// ErrGatewayFailure wraps an opaque payment provider error.
	ErrGatewayFailure = errors.New("gateway failure")

	// ErrInvalidStateTransition rejects operations against an entity whose
	// status does not allow them, e.g. refunding a non-completed payment.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrConflict is the concurrent-modification / unique-violation retry
	// signal. Callers retry once with fresh reads.
	ErrConflict = errors.New("persistence conflict")
)
