package scopes

import (
	"staylog/src/types"
	"time"

	"gorm.io/gorm"
)

func WithID(id uint) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}
}

func WithUser(userID uint) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	}
}

// WithUnpaidStatus guards payment transitions so a replay updates nothing.
func WithUnpaidStatus(db *gorm.DB) *gorm.DB {
	return db.Where("status <> ?", types.PAYMENT_PAID)
}

// WithOpenBooking keeps cancelled bookings out of status transitions.
func WithOpenBooking(db *gorm.DB) *gorm.DB {
	return db.Where("status <> ?", types.BOOKING_CANCELLED)
}

func WithRedeemableCoupon(now time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Where("is_used = ?", types.COUPON_UNUSED).
			Where("expired_at IS NULL OR expired_at > ?", now)
	}
}

// WithKeyset pages newest first, continuing strictly after (createdAt, id).
func WithKeyset(lastCreatedAt *time.Time, lastID uint, limit int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if lastCreatedAt != nil {
			db = db.Where("(created_at < ?) OR (created_at = ? AND id < ?)", *lastCreatedAt, *lastCreatedAt, lastID)
		}
		return db.Order("created_at desc").Order("id desc").Limit(limit)
	}
}
