package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pottery-booking-service/internal/models"
)

// fakeStore is an in-memory Store. A transaction takes a snapshot and holds
// the tx mutex for its whole body, which models row-lock serialization well
// enough for these tests; an error restores the snapshot.
type fakeStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	workshops    map[string]*models.Workshop
	slots        map[string]*models.Slot
	coupons      map[string]*models.Coupon
	bookings     map[string]*models.Booking
	participants []models.Participant
	payments     map[string]*models.Payment
	logs         []models.PaymentLog

	// Forces the next N CreateBooking calls to report a number collision.
	bookingConflicts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		workshops: make(map[string]*models.Workshop),
		slots:     make(map[string]*models.Slot),
		coupons:   make(map[string]*models.Coupon),
		bookings:  make(map[string]*models.Booking),
		payments:  make(map[string]*models.Payment),
	}
}

type fakeSnapshot struct {
	workshops    map[string]models.Workshop
	slots        map[string]models.Slot
	coupons      map[string]models.Coupon
	bookings     map[string]models.Booking
	participants []models.Participant
	payments     map[string]models.Payment
	logs         []models.PaymentLog
}

func (f *fakeStore) snapshot() *fakeSnapshot {
	s := &fakeSnapshot{
		workshops:    make(map[string]models.Workshop, len(f.workshops)),
		slots:        make(map[string]models.Slot, len(f.slots)),
		coupons:      make(map[string]models.Coupon, len(f.coupons)),
		bookings:     make(map[string]models.Booking, len(f.bookings)),
		payments:     make(map[string]models.Payment, len(f.payments)),
		participants: append([]models.Participant(nil), f.participants...),
		logs:         append([]models.PaymentLog(nil), f.logs...),
	}
	for k, v := range f.workshops {
		s.workshops[k] = *v
	}
	for k, v := range f.slots {
		s.slots[k] = *v
	}
	for k, v := range f.coupons {
		s.coupons[k] = *v
	}
	for k, v := range f.bookings {
		s.bookings[k] = *v
	}
	for k, v := range f.payments {
		s.payments[k] = *v
	}
	return s
}

func (f *fakeStore) restore(s *fakeSnapshot) {
	f.workshops = make(map[string]*models.Workshop, len(s.workshops))
	f.slots = make(map[string]*models.Slot, len(s.slots))
	f.coupons = make(map[string]*models.Coupon, len(s.coupons))
	f.bookings = make(map[string]*models.Booking, len(s.bookings))
	f.payments = make(map[string]*models.Payment, len(s.payments))
	for k := range s.workshops {
		v := s.workshops[k]
		f.workshops[k] = &v
	}
	for k := range s.slots {
		v := s.slots[k]
		f.slots[k] = &v
	}
	for k := range s.coupons {
		v := s.coupons[k]
		f.coupons[k] = &v
	}
	for k := range s.bookings {
		v := s.bookings[k]
		f.bookings[k] = &v
	}
	for k := range s.payments {
		v := s.payments[k]
		f.payments[k] = &v
	}
	f.participants = append([]models.Participant(nil), s.participants...)
	f.logs = append([]models.PaymentLog(nil), s.logs...)
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	snap := f.snapshot()
	f.mu.Unlock()

	if err := fn(ctx); err != nil {
		f.mu.Lock()
		f.restore(snap)
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) GetWorkshop(ctx context.Context, id string) (*models.Workshop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.workshops[id]
	if !ok {
		return nil, fmt.Errorf("workshop %s: %w", id, models.ErrNotFound)
	}
	cp := *w
	return &cp, nil
}

func (f *fakeStore) GetSlot(ctx context.Context, id string) (*models.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil, fmt.Errorf("slot %s: %w", id, models.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) GetSlotForUpdate(ctx context.Context, id string) (*models.Slot, error) {
	return f.GetSlot(ctx, id)
}

func (f *fakeStore) AdjustSlotCapacity(ctx context.Context, id string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return fmt.Errorf("slot %s: %w", id, models.ErrNotFound)
	}
	s.AvailableCapacity += delta
	return nil
}

func (f *fakeStore) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	return f.GetCouponForUpdate(ctx, code)
}

func (f *fakeStore) GetCouponForUpdate(ctx context.Context, code string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[code]
	if !ok {
		return nil, fmt.Errorf("coupon %s: %w", code, models.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) IncrementCouponUses(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.coupons {
		if c.ID == id {
			c.CurrentUses++
			return nil
		}
	}
	return fmt.Errorf("coupon %s: %w", id, models.ErrNotFound)
}

func (f *fakeStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bookingConflicts > 0 {
		f.bookingConflicts--
		return fmt.Errorf("booking number %s: %w", b.BookingNumber, models.ErrConflict)
	}
	for _, existing := range f.bookings {
		if existing.BookingNumber == b.BookingNumber {
			return fmt.Errorf("booking number %s: %w", b.BookingNumber, models.ErrConflict)
		}
	}
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeStore) CreateParticipant(ctx context.Context, p *models.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.participants = append(f.participants, *p)
	return nil
}

func (f *fakeStore) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", id, models.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) GetBookingForUpdate(ctx context.Context, id string) (*models.Booking, error) {
	return f.GetBookingByID(ctx, id)
}

func (f *fakeStore) UpdateBookingStatus(ctx context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return fmt.Errorf("booking %s: %w", id, models.ErrNotFound)
	}
	b.Status = status
	b.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) MarkBookingCancelled(ctx context.Context, id, reason string, capacityReleased bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return fmt.Errorf("booking %s: %w", id, models.ErrNotFound)
	}
	b.Status = models.BookingStatusCancelled
	b.CancelReason = reason
	b.CapacityReleased = capacityReleased
	b.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) MarkCapacityReleased(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return fmt.Errorf("booking %s: %w", id, models.ErrNotFound)
	}
	b.CapacityReleased = true
	return nil
}

func (f *fakeStore) SetBookingCheckIn(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return fmt.Errorf("booking %s: %w", id, models.ErrNotFound)
	}
	b.Status = models.BookingStatusCheckedIn
	b.CheckInTime = &at
	return nil
}

func (f *fakeStore) SetBookingFeedback(ctx context.Context, id, text string, rating int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return fmt.Errorf("booking %s: %w", id, models.ErrNotFound)
	}
	b.FeedbackText = text
	b.FeedbackRating = &rating
	return nil
}

func (f *fakeStore) GetParticipantsByBookingID(ctx context.Context, bookingID string) ([]models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Participant
	for _, p := range f.participants {
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakeStore) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, models.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetPaymentByTransactionID(ctx context.Context, txID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.TransactionID == txID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("transaction %s: %w", txID, models.ErrNotFound)
}

func (f *fakeStore) GetPaymentForUpdate(ctx context.Context, id string) (*models.Payment, error) {
	return f.GetPaymentByID(ctx, id)
}

func (f *fakeStore) UpdatePaymentStatus(ctx context.Context, id, status string, completedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return fmt.Errorf("payment %s: %w", id, models.ErrNotFound)
	}
	p.Status = status
	if completedAt != nil {
		p.CompletedAt = completedAt
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) CreatePaymentLog(ctx context.Context, l *models.PaymentLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l.CreatedAt = time.Now()
	f.logs = append(f.logs, *l)
	return nil
}

func (f *fakeStore) GetPaymentLogs(ctx context.Context, paymentID string) ([]models.PaymentLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PaymentLog
	for _, l := range f.logs {
		if l.PaymentID == paymentID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPaymentsByBookingID(ctx context.Context, bookingID string) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if p.BookingID == bookingID {
			out = append(out, *p)
		}
	}
	return out, nil
}

// fakePublisher records published events.
type fakePublisher struct {
	mu        sync.Mutex
	created   []*models.BookingCreatedEvent
	cancelled []*models.BookingCancelledEvent
	initiated []*models.PaymentInitiatedEvent
	success   []*models.PaymentSuccessEvent
	failed    []*models.PaymentFailedEvent
	refunded  []*models.PaymentRefundedEvent
}

func (f *fakePublisher) PublishBookingCreated(ctx context.Context, e *models.BookingCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, e)
	return nil
}

func (f *fakePublisher) PublishBookingCancelled(ctx context.Context, e *models.BookingCancelledEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, e)
	return nil
}

func (f *fakePublisher) PublishPaymentInitiated(ctx context.Context, e *models.PaymentInitiatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiated = append(f.initiated, e)
	return nil
}

func (f *fakePublisher) PublishPaymentSuccess(ctx context.Context, e *models.PaymentSuccessEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.success = append(f.success, e)
	return nil
}

func (f *fakePublisher) PublishPaymentFailed(ctx context.Context, e *models.PaymentFailedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, e)
	return nil
}

func (f *fakePublisher) PublishPaymentRefunded(ctx context.Context, e *models.PaymentRefundedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunded = append(f.refunded, e)
	return nil
}

// fakeCache is a map-backed Cache.
type fakeCache struct {
	mu          sync.Mutex
	details     map[string]*models.BookingDetail
	idempotency map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		details:     make(map[string]*models.BookingDetail),
		idempotency: make(map[string]string),
	}
}

func (f *fakeCache) GetBookingDetail(ctx context.Context, bookingID string) (*models.BookingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.details[bookingID], nil
}

func (f *fakeCache) SetBookingDetail(ctx context.Context, detail *models.BookingDetail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[detail.Booking.ID] = detail
	return nil
}

func (f *fakeCache) InvalidateBooking(ctx context.Context, bookingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.details, bookingID)
	return nil
}

func (f *fakeCache) GetIdempotentBooking(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idempotency[key], nil
}

func (f *fakeCache) SetIdempotentBooking(ctx context.Context, key, bookingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idempotency[key] = bookingID
	return nil
}
