package coupons

import (
	"context"
	"errors"
	"fmt"
	"log"
	"staylog/src/events"
	"staylog/src/models"
	"staylog/src/store"
	"staylog/src/types"
	"time"
)

var ErrRedemptionFailed = errors.New("coupon redemption failed")

const (
	WelcomeCouponName     = "Welcome coupon"
	WelcomeCouponDiscount = 5
	WelcomeCouponValidity = 30 * 24 * time.Hour
)

type Handler struct {
	store     store.Coupons
	publisher events.Publisher
	now       func() time.Time
}

func NewHandler(s store.Coupons, publisher events.Publisher) *Handler {
	return &Handler{store: s, publisher: publisher, now: time.Now}
}

func (h *Handler) Register(bus *events.Bus) {
	bus.Subscribe(events.KindSignupCompleted, "coupons.welcome", func(ctx context.Context, e events.Event) error {
		return h.OnSignupCompleted(ctx, e.(events.SignupCompleted))
	})
	bus.Subscribe(events.KindSettlementConfirmed, "coupons.redeem", func(ctx context.Context, e events.Event) error {
		return h.OnSettlementConfirmed(ctx, e.(events.SettlementConfirmed))
	})
}

// OnSignupCompleted issues one welcome coupon per event.
func (h *Handler) OnSignupCompleted(ctx context.Context, e events.SignupCompleted) error {
	now := h.now()
	expiredAt := now.Add(WelcomeCouponValidity)
	coupon := models.Coupon{
		UserID:    e.UserID,
		Name:      WelcomeCouponName,
		Discount:  WelcomeCouponDiscount,
		IsUsed:    types.COUPON_UNUSED,
		ExpiredAt: &expiredAt,
	}
	if err := h.store.IssueCoupon(ctx, &coupon); err != nil {
		return fmt.Errorf("issue welcome coupon for user %d: %w", e.UserID, err)
	}
	log.Printf("[Coupons] issued coupon %d to user %d\n", coupon.ID, e.UserID)

	if h.publisher != nil {
		h.publisher.Publish(ctx, events.CouponIssued{
			CouponID:  coupon.ID,
			UserID:    coupon.UserID,
			Name:      coupon.Name,
			Discount:  coupon.Discount,
			ExpiredAt: coupon.ExpiredAt,
		})
	}
	return nil
}

// OnSettlementConfirmed marks the settled payment's coupon as used. A failed
// redemption is reported, never undone into the settlement.
func (h *Handler) OnSettlementConfirmed(ctx context.Context, e events.SettlementConfirmed) error {
	if e.CouponID == nil {
		return nil
	}
	couponID := *e.CouponID
	now := h.now()
	affected, err := h.store.UseCoupon(ctx, couponID, now)
	if err != nil {
		return fmt.Errorf("use coupon %d for payment %d: %w", couponID, e.PaymentID, err)
	}
	if affected == 0 {
		reason := h.rejectionReason(ctx, couponID, now)
		log.Printf("[Coupons] ALERT coupon %d not redeemed for payment %d: %s\n", couponID, e.PaymentID, reason)
		return fmt.Errorf("%w: coupon %d %s", ErrRedemptionFailed, couponID, reason)
	}
	log.Printf("[Coupons] coupon %d redeemed by payment %d\n", couponID, e.PaymentID)
	return nil
}

// rejectionReason is read after the conditional write and is informational only.
func (h *Handler) rejectionReason(ctx context.Context, couponID uint, now time.Time) string {
	coupon, err := h.store.FindCouponByID(ctx, couponID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "does not exist"
	case err != nil:
		return "could not be inspected"
	case coupon.IsUsed == types.COUPON_USED:
		return "already used"
	case coupon.Expired(now):
		return "expired"
	default:
		return "was not redeemable"
	}
}
