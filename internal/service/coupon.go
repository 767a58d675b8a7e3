package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pottery-booking-service/internal/models"
	"pottery-booking-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// CouponGuard validates and redeems coupon codes. Redemption is lenient: an
// unknown, inactive, expired or exhausted coupon degrades to a zero discount
// instead of failing the booking. The usage increment runs under the
// coupon's row lock inside the caller's transaction, so concurrent bookings
// cannot over-redeem a capped code.
type CouponGuard struct {
	store  Store
	logger *zap.Logger
}

// NewCouponGuard creates a coupon redemption guard
func NewCouponGuard(store Store) *CouponGuard {
	return &CouponGuard{
		store:  store,
		logger: util.GetLogger(),
	}
}

// rejectionReason returns why a coupon cannot be used right now, or "".
func rejectionReason(coupon *models.Coupon) string {
	now := time.Now().UTC()
	switch {
	case !coupon.IsActive:
		return "inactive"
	case now.Before(coupon.ValidFrom) || now.After(coupon.ValidUntil):
		return "expired"
	case coupon.MaxUses != nil && coupon.CurrentUses >= *coupon.MaxUses:
		return "exhausted"
	}
	return ""
}

// Validate checks a code without consuming a use, for pre-checkout lookups.
// Unusable codes fail with models.ErrInvalidCoupon carrying the reason.
func (g *CouponGuard) Validate(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := g.store.GetCoupon(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("coupon %s not found: %w", code, models.ErrInvalidCoupon)
		}
		return nil, err
	}

	if reason := rejectionReason(coupon); reason != "" {
		return nil, fmt.Errorf("coupon %s is %s: %w", code, reason, models.ErrInvalidCoupon)
	}
	return coupon, nil
}

// Redeem returns the discount for a code against the given total and, when
// the coupon is valid, consumes one use. applied reports whether the coupon
// counted; it is false for every rejected code.
func (g *CouponGuard) Redeem(ctx context.Context, code string, total decimal.Decimal) (discount decimal.Decimal, applied bool, err error) {
	coupon, err := g.store.GetCouponForUpdate(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			g.reject(code, "not_found")
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}

	if reason := rejectionReason(coupon); reason != "" {
		g.reject(code, reason)
		return decimal.Zero, false, nil
	}

	// Percentage takes precedence over a flat amount when both are set.
	if coupon.DiscountPercentage.IsPositive() {
		discount = total.Mul(coupon.DiscountPercentage).Div(hundred)
	} else if coupon.DiscountAmount != nil && coupon.DiscountAmount.IsPositive() {
		discount = *coupon.DiscountAmount
	}
	if discount.GreaterThan(total) {
		discount = total
	}

	if err := g.store.IncrementCouponUses(ctx, coupon.ID); err != nil {
		return decimal.Zero, false, err
	}

	util.CouponRedemptionsTotal.Inc()
	g.logger.Info("Coupon redeemed",
		zap.String("code", code),
		zap.String("discount", discount.String()))
	return discount, true, nil
}

func (g *CouponGuard) reject(code, reason string) {
	util.CouponRejectionsTotal.WithLabelValues(reason).Inc()
	g.logger.Info("Coupon ignored",
		zap.String("code", code),
		zap.String("reason", reason))
}
