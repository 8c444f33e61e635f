package store

import (
	"context"
	"errors"
	"staylog/src/models"
	"staylog/src/models/scopes"
	"staylog/src/types"
	"time"

	"gorm.io/gorm"
)

type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (g *Gorm) FindBookingByOrderRef(ctx context.Context, orderRef string) (*models.Booking, error) {
	var booking models.Booking
	if err := g.db.WithContext(ctx).
		Where("booking_num = ?", orderRef).
		First(&booking).
		Error; err != nil {
		return nil, notFound(err)
	}
	return &booking, nil
}

func (g *Gorm) FindBookingByID(ctx context.Context, id uint) (*models.Booking, error) {
	var booking models.Booking
	if err := g.db.WithContext(ctx).
		Scopes(scopes.WithID(id)).
		First(&booking).
		Error; err != nil {
		return nil, notFound(err)
	}
	return &booking, nil
}

func (g *Gorm) FindPaymentByBookingID(ctx context.Context, bookingID uint) (*models.Payment, error) {
	var payment models.Payment
	if err := g.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		First(&payment).
		Error; err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

func (g *Gorm) WithinTx(ctx context.Context, fn func(tx SettlementTx) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{tx: tx})
	})
}

type gormTx struct {
	tx *gorm.DB
}

func (t *gormTx) UpdatePaymentApproved(ctx context.Context, paymentID uint, refs PaymentRefs) (int64, error) {
	updates := map[string]any{
		"status":      types.PAYMENT_PAID,
		"approved_at": refs.ApprovedAt,
	}
	if refs.PaymentKey != nil {
		updates["payment_key"] = *refs.PaymentKey
	}
	if refs.LastTransactionKey != nil {
		updates["last_transaction_key"] = *refs.LastTransactionKey
	}
	if refs.DepositedAt != nil {
		updates["deposited_at"] = *refs.DepositedAt
	}
	result := t.tx.WithContext(ctx).
		Model(&models.Payment{}).
		Scopes(scopes.WithID(paymentID), scopes.WithUnpaidStatus).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (t *gormTx) UpdateBookingStatus(ctx context.Context, bookingID uint, status types.BookingStatus) (int64, error) {
	result := t.tx.WithContext(ctx).
		Model(&models.Booking{}).
		Scopes(scopes.WithID(bookingID), scopes.WithOpenBooking).
		Update("status", status)
	return result.RowsAffected, result.Error
}

func (g *Gorm) FindCouponByID(ctx context.Context, id uint) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := g.db.WithContext(ctx).
		Scopes(scopes.WithID(id)).
		First(&coupon).
		Error; err != nil {
		return nil, notFound(err)
	}
	return &coupon, nil
}

func (g *Gorm) UseCoupon(ctx context.Context, id uint, now time.Time) (int64, error) {
	result := g.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Scopes(scopes.WithID(id), scopes.WithRedeemableCoupon(now)).
		Updates(map[string]any{
			"is_used": types.COUPON_USED,
			"used_at": now,
		})
	return result.RowsAffected, result.Error
}

func (g *Gorm) IssueCoupon(ctx context.Context, coupon *models.Coupon) error {
	return g.db.WithContext(ctx).Create(coupon).Error
}

func (g *Gorm) CreateNotification(ctx context.Context, n *models.Notification) error {
	return g.db.WithContext(ctx).Create(n).Error
}

func (g *Gorm) ListNotifications(ctx context.Context, userID uint, cursor Cursor) ([]models.Notification, error) {
	cursor = cursor.normalized()
	notifications := make([]models.Notification, 0, cursor.Limit)
	if err := g.db.WithContext(ctx).
		Scopes(
			scopes.WithUser(userID),
			scopes.WithKeyset(cursor.LastCreatedAt, cursor.LastID, cursor.Limit),
		).
		Find(&notifications).
		Error; err != nil {
		return nil, err
	}
	return notifications, nil
}
