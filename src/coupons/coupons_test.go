package coupons

import (
	"context"
	"staylog/src/events"
	"staylog/src/models"
	"staylog/src/store"
	"staylog/src/types"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(ctx context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestWelcomeCouponOnSignup(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	mem := store.NewMemory()
	pub := &recordingPublisher{}
	h := NewHandler(mem, pub)
	h.now = fixedClock(now)

	require.NoError(t, h.OnSignupCompleted(context.Background(), events.SignupCompleted{UserID: 3}))

	coupon, ok := mem.Coupon(1)
	require.True(t, ok)
	assert.Equal(t, uint(3), coupon.UserID)
	assert.Equal(t, WelcomeCouponDiscount, coupon.Discount)
	assert.Equal(t, types.COUPON_UNUSED, coupon.IsUsed)
	assert.Equal(t, now.AddDate(0, 0, 30), *coupon.ExpiredAt)

	require.Len(t, pub.events, 1)
	issued := pub.events[0].(events.CouponIssued)
	assert.Equal(t, uint(1), issued.CouponID)
	assert.Equal(t, uint(3), issued.UserID)
}

func TestSettlementWithoutCouponIsNoop(t *testing.T) {
	h := NewHandler(store.NewMemory(), nil)
	assert.NoError(t, h.OnSettlementConfirmed(context.Background(), events.SettlementConfirmed{PaymentID: 55}))
}

func TestRedeemCoupon(t *testing.T) {
	mem := store.NewMemory()
	mem.PutCoupon(models.Coupon{ID: 9, UserID: 3})
	h := NewHandler(mem, nil)
	couponID := uint(9)

	require.NoError(t, h.OnSettlementConfirmed(context.Background(), events.SettlementConfirmed{PaymentID: 55, CouponID: &couponID}))
	coupon, _ := mem.Coupon(9)
	assert.Equal(t, types.COUPON_USED, coupon.IsUsed)
	assert.NotNil(t, coupon.UsedAt)

	err := h.OnSettlementConfirmed(context.Background(), events.SettlementConfirmed{PaymentID: 56, CouponID: &couponID})
	assert.ErrorIs(t, err, ErrRedemptionFailed)
	assert.ErrorContains(t, err, "already used")
}

func TestExpiredCouponIsRejected(t *testing.T) {
	mem := store.NewMemory()
	yesterday := time.Now().Add(-24 * time.Hour)
	mem.PutCoupon(models.Coupon{ID: 9, UserID: 3, ExpiredAt: &yesterday})
	h := NewHandler(mem, nil)
	couponID := uint(9)

	err := h.OnSettlementConfirmed(context.Background(), events.SettlementConfirmed{PaymentID: 55, CouponID: &couponID})
	assert.ErrorIs(t, err, ErrRedemptionFailed)
	assert.ErrorContains(t, err, "expired")

	coupon, _ := mem.Coupon(9)
	assert.Equal(t, types.COUPON_UNUSED, coupon.IsUsed)
}

func TestMissingCouponIsRejected(t *testing.T) {
	h := NewHandler(store.NewMemory(), nil)
	couponID := uint(404)

	err := h.OnSettlementConfirmed(context.Background(), events.SettlementConfirmed{PaymentID: 55, CouponID: &couponID})
	assert.ErrorIs(t, err, ErrRedemptionFailed)
	assert.ErrorContains(t, err, "does not exist")
}

func TestConcurrentRedemptionSucceedsOnce(t *testing.T) {
	mem := store.NewMemory()
	mem.PutCoupon(models.Coupon{ID: 9, UserID: 3})
	h := NewHandler(mem, nil)
	couponID := uint(9)

	var wg sync.WaitGroup
	var redeemed, rejected atomic.Int32
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(paymentID uint) {
			defer wg.Done()
			err := h.OnSettlementConfirmed(context.Background(), events.SettlementConfirmed{PaymentID: paymentID, CouponID: &couponID})
			if err == nil {
				redeemed.Add(1)
			} else {
				rejected.Add(1)
			}
		}(uint(100 + i))
	}
	wg.Wait()

	assert.Equal(t, int32(1), redeemed.Load())
	assert.Equal(t, int32(1), rejected.Load())
}

func TestRegisterWiresBothEvents(t *testing.T) {
	mem := store.NewMemory()
	bus := events.NewBus(time.Second)
	NewHandler(mem, bus).Register(bus)

	bus.Publish(context.Background(), events.SignupCompleted{UserID: 7})
	bus.Wait()

	coupon, ok := mem.Coupon(1)
	require.True(t, ok)
	couponID := coupon.ID
	bus.Publish(context.Background(), events.SettlementConfirmed{PaymentID: 1, CouponID: &couponID})
	bus.Wait()

	coupon, _ = mem.Coupon(1)
	assert.Equal(t, types.COUPON_USED, coupon.IsUsed)
}
