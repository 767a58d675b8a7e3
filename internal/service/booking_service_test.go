package service

import (
	"context"
	"testing"
	"time"

	"pottery-booking-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBookingFixture(t *testing.T) (*BookingService, *fakeStore, *fakePublisher, *fakeCache) {
	t.Helper()

	store := newFakeStore()
	store.workshops["ws-1"] = testWorkshop()
	store.slots["slot-1"] = &models.Slot{
		ID:                "slot-1",
		WorkshopID:        "ws-1",
		SlotDate:          time.Now().Add(48 * time.Hour),
		StartTime:         "10:00",
		EndTime:           "12:00",
		AvailableCapacity: 2,
		TotalCapacity:     2,
	}
	store.coupons["WELCOME10"] = validCoupon("WELCOME10")

	publisher := &fakePublisher{}
	cache := newFakeCache()
	ledger := NewLedger(store)
	coupons := NewCouponGuard(store)
	svc := NewBookingService(store, ledger, coupons, publisher, cache)
	return svc, store, publisher, cache
}

func newBookingRequest() *CreateBookingRequest {
	return &CreateBookingRequest{
		WorkshopID:     "ws-1",
		SlotID:         "slot-1",
		CustomerName:   "Priya Sharma",
		CustomerEmail:  "priya@example.com",
		CustomerPhone:  "+919876543210",
		NumberOfPeople: 2,
	}
}

func TestCreateBookingForTwoUsesFlatPrice(t *testing.T) {
	svc, store, publisher, _ := newBookingFixture(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, newBookingRequest())
	require.NoError(t, err)

	assert.Regexp(t, `^BK\d{18}$`, booking.BookingNumber)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.True(t, booking.TotalAmount.Equal(decimal.NewFromInt(1700)), "got %s", booking.TotalAmount)
	assert.True(t, booking.FinalAmount.Equal(decimal.NewFromInt(1700)))
	assert.Equal(t, 0, store.slots["slot-1"].AvailableCapacity)

	require.Len(t, publisher.created, 1)
	assert.Equal(t, booking.ID, publisher.created[0].BookingID)
}

func TestCreateBookingFailsWhenSlotIsFull(t *testing.T) {
	svc, store, _, _ := newBookingFixture(t)
	ctx := context.Background()

	_, err := svc.CreateBooking(ctx, newBookingRequest())
	require.NoError(t, err)

	_, err = svc.CreateBooking(ctx, newBookingRequest())
	assert.ErrorIs(t, err, models.ErrInsufficientCapacity)
	assert.Equal(t, 0, store.slots["slot-1"].AvailableCapacity)
	assert.Len(t, store.bookings, 1, "a failed booking must leave no row behind")
}

func TestCreateBookingAppliesCoupon(t *testing.T) {
	svc, store, _, _ := newBookingFixture(t)
	req := newBookingRequest()
	req.CouponCode = "WELCOME10"

	booking, err := svc.CreateBooking(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, booking.TotalAmount.Equal(decimal.NewFromInt(1700)))
	assert.True(t, booking.DiscountAmount.Equal(decimal.NewFromInt(170)), "got %s", booking.DiscountAmount)
	assert.True(t, booking.FinalAmount.Equal(decimal.NewFromInt(1530)), "got %s", booking.FinalAmount)
	assert.Equal(t, "WELCOME10", booking.CouponCode)
	assert.Equal(t, 1, store.coupons["WELCOME10"].CurrentUses)
}

func TestCreateBookingIgnoresInvalidCoupon(t *testing.T) {
	svc, _, _, _ := newBookingFixture(t)
	req := newBookingRequest()
	req.CouponCode = "NOSUCH"

	booking, err := svc.CreateBooking(context.Background(), req)
	require.NoError(t, err, "an invalid coupon must not fail the booking")

	assert.True(t, booking.DiscountAmount.IsZero())
	assert.True(t, booking.FinalAmount.Equal(decimal.NewFromInt(1700)))
	assert.Empty(t, booking.CouponCode)
}

func TestCreateBookingStoresParticipants(t *testing.T) {
	svc, store, _, _ := newBookingFixture(t)
	req := newBookingRequest()
	req.Participants = []ParticipantRequest{
		{Name: "Rahul Verma", Email: "rahul@example.com"},
	}

	booking, err := svc.CreateBooking(context.Background(), req)
	require.NoError(t, err)

	participants, err := store.GetParticipantsByBookingID(context.Background(), booking.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "Rahul Verma", participants[0].Name)
}

func TestCreateBookingRetriesOnNumberCollision(t *testing.T) {
	svc, store, _, _ := newBookingFixture(t)
	store.bookingConflicts = 1

	booking, err := svc.CreateBooking(context.Background(), newBookingRequest())
	require.NoError(t, err)

	assert.NotNil(t, booking)
	assert.Equal(t, 0, store.slots["slot-1"].AvailableCapacity,
		"the rolled-back attempt must not leak a reservation")
	assert.Len(t, store.bookings, 1)
}

func TestCreateBookingIdempotency(t *testing.T) {
	svc, store, _, _ := newBookingFixture(t)
	req := newBookingRequest()
	req.IdempotencyKey = "req-abc-123"
	ctx := context.Background()

	first, err := svc.CreateBooking(ctx, req)
	require.NoError(t, err)

	second, err := svc.CreateBooking(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.bookings, 1)
	assert.Equal(t, 0, store.slots["slot-1"].AvailableCapacity, "the duplicate must not reserve again")
}

func TestCancelBookingReleasesCapacityOnce(t *testing.T) {
	svc, store, publisher, _ := newBookingFixture(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, newBookingRequest())
	require.NoError(t, err)
	require.Equal(t, 0, store.slots["slot-1"].AvailableCapacity)

	require.NoError(t, svc.CancelBooking(ctx, booking.ID, "customer request"))

	got := store.bookings[booking.ID]
	assert.Equal(t, models.BookingStatusCancelled, got.Status)
	assert.Equal(t, "customer request", got.CancelReason)
	assert.True(t, got.CapacityReleased)
	assert.Equal(t, 2, store.slots["slot-1"].AvailableCapacity)
	require.Len(t, publisher.cancelled, 1)

	err = svc.CancelBooking(ctx, booking.ID, "again")
	assert.ErrorIs(t, err, models.ErrInvalidStateTransition)
	assert.Equal(t, 2, store.slots["slot-1"].AvailableCapacity, "capacity must be released exactly once")
}

func TestCancelBookingUnknownID(t *testing.T) {
	svc, _, _, _ := newBookingFixture(t)

	err := svc.CancelBooking(context.Background(), "missing", "whatever")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestReleaseForRefund(t *testing.T) {
	svc, store, _, _ := newBookingFixture(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, newBookingRequest())
	require.NoError(t, err)

	// A refund-driven cancellation sets CANCELLED without touching capacity.
	require.NoError(t, store.UpdateBookingStatus(ctx, booking.ID, models.BookingStatusCancelled))
	require.Equal(t, 0, store.slots["slot-1"].AvailableCapacity)

	require.NoError(t, svc.ReleaseForRefund(ctx, booking.ID))
	assert.Equal(t, 2, store.slots["slot-1"].AvailableCapacity)
	assert.True(t, store.bookings[booking.ID].CapacityReleased)

	// Second release is a no-op.
	require.NoError(t, svc.ReleaseForRefund(ctx, booking.ID))
	assert.Equal(t, 2, store.slots["slot-1"].AvailableCapacity)
}

func TestReleaseForRefundRequiresCancelledBooking(t *testing.T) {
	svc, _, _, _ := newBookingFixture(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, newBookingRequest())
	require.NoError(t, err)

	err = svc.ReleaseForRefund(ctx, booking.ID)
	assert.ErrorIs(t, err, models.ErrInvalidStateTransition)
}

func TestCheckIn(t *testing.T) {
	svc, store, _, _ := newBookingFixture(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, newBookingRequest())
	require.NoError(t, err)

	// A pending booking cannot check in.
	err = svc.CheckIn(ctx, booking.ID)
	assert.ErrorIs(t, err, models.ErrInvalidStateTransition)

	require.NoError(t, store.UpdateBookingStatus(ctx, booking.ID, models.BookingStatusConfirmed))
	require.NoError(t, svc.CheckIn(ctx, booking.ID))

	got := store.bookings[booking.ID]
	assert.Equal(t, models.BookingStatusCheckedIn, got.Status)
	require.NotNil(t, got.CheckInTime)
	assert.WithinDuration(t, time.Now(), *got.CheckInTime, 5*time.Second)
}

func TestSubmitFeedback(t *testing.T) {
	svc, store, _, _ := newBookingFixture(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, newBookingRequest())
	require.NoError(t, err)

	// The customer has not attended yet.
	err = svc.SubmitFeedback(ctx, booking.ID, "lovely glaze session", 5)
	assert.ErrorIs(t, err, models.ErrInvalidStateTransition)

	require.NoError(t, store.UpdateBookingStatus(ctx, booking.ID, models.BookingStatusConfirmed))
	require.NoError(t, svc.CheckIn(ctx, booking.ID))

	require.NoError(t, svc.SubmitFeedback(ctx, booking.ID, "lovely glaze session", 5))

	got := store.bookings[booking.ID]
	assert.Equal(t, "lovely glaze session", got.FeedbackText)
	require.NotNil(t, got.FeedbackRating)
	assert.Equal(t, 5, *got.FeedbackRating)
}

func TestSubmitFeedbackRejectsOutOfRangeRating(t *testing.T) {
	svc, store, _, _ := newBookingFixture(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, newBookingRequest())
	require.NoError(t, err)
	require.NoError(t, store.UpdateBookingStatus(ctx, booking.ID, models.BookingStatusConfirmed))
	require.NoError(t, svc.CheckIn(ctx, booking.ID))

	assert.Error(t, svc.SubmitFeedback(ctx, booking.ID, "", 0))
	assert.Error(t, svc.SubmitFeedback(ctx, booking.ID, "", 6))
	assert.Nil(t, store.bookings[booking.ID].FeedbackRating)
}

func TestSubmitFeedbackUnknownBooking(t *testing.T) {
	svc, _, _, _ := newBookingFixture(t)

	err := svc.SubmitFeedback(context.Background(), "missing", "great", 4)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetBookingAggregatesAndCaches(t *testing.T) {
	svc, _, _, cache := newBookingFixture(t)
	ctx := context.Background()

	req := newBookingRequest()
	req.Participants = []ParticipantRequest{{Name: "Rahul Verma"}}
	booking, err := svc.CreateBooking(ctx, req)
	require.NoError(t, err)

	detail, err := svc.GetBooking(ctx, booking.ID)
	require.NoError(t, err)

	assert.Equal(t, booking.ID, detail.Booking.ID)
	assert.Equal(t, "Wheel Throwing Basics", detail.Workshop.Name)
	assert.Equal(t, "slot-1", detail.Slot.ID)
	assert.Len(t, detail.Participants, 1)
	assert.NotNil(t, cache.details[booking.ID], "aggregate must be cached after the first read")

	// A second read is served from the cache.
	again, err := svc.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Same(t, cache.details[booking.ID], again)
}

func TestGenerateBookingNumberFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		n := generateBookingNumber()
		assert.Regexp(t, `^BK\d{18}$`, n)
		seen[n] = true
	}
	assert.Greater(t, len(seen), 1, "numbers should vary across calls")
}
