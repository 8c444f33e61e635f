// Package store holds the persistence collaborators the settlement and
// notification pipeline depends on.
package store

import (
	"context"
	"errors"
	"staylog/src/models"
	"staylog/src/types"
	"time"
)

var ErrNotFound = errors.New("record not found")

// PaymentRefs carries the provider references written on approval.
type PaymentRefs struct {
	PaymentKey         *string
	LastTransactionKey *string
	ApprovedAt         time.Time
	DepositedAt        *time.Time
}

// Cursor is a keyset position for notification history, newest first.
type Cursor struct {
	LastCreatedAt *time.Time
	LastID        uint
	Limit         int
}

const DefaultPageSize = 20

func (c Cursor) normalized() Cursor {
	if c.Limit <= 0 {
		c.Limit = DefaultPageSize
	}
	if c.LastCreatedAt == nil {
		c.LastID = 0
	}
	return c
}

type Settlements interface {
	FindBookingByOrderRef(ctx context.Context, orderRef string) (*models.Booking, error)
	FindBookingByID(ctx context.Context, id uint) (*models.Booking, error)
	FindPaymentByBookingID(ctx context.Context, bookingID uint) (*models.Payment, error)
	// WithinTx runs fn in one storage transaction. fn returning an error rolls back.
	WithinTx(ctx context.Context, fn func(tx SettlementTx) error) error
}

// SettlementTx writes return the number of affected rows so callers can
// detect a lost conditional update.
type SettlementTx interface {
	UpdatePaymentApproved(ctx context.Context, paymentID uint, refs PaymentRefs) (int64, error)
	UpdateBookingStatus(ctx context.Context, bookingID uint, status types.BookingStatus) (int64, error)
}

type Coupons interface {
	FindCouponByID(ctx context.Context, id uint) (*models.Coupon, error)
	// UseCoupon flips an unused, unexpired coupon to used in a single conditional write.
	UseCoupon(ctx context.Context, id uint, now time.Time) (int64, error)
	IssueCoupon(ctx context.Context, coupon *models.Coupon) error
}

type Notifications interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID uint, cursor Cursor) ([]models.Notification, error)
}

type Store interface {
	Settlements
	Coupons
	Notifications
}
