package models

import (
	"staylog/src/types"
	"time"
)

type Coupon struct {
	ID        uint              `gorm:"primarykey" json:"id"`
	UserID    uint              `gorm:"index" json:"user_id"`
	Name      string            `json:"name"`
	Discount  int               `json:"discount"`
	IsUsed    types.CouponUsage `gorm:"type:char(1);default:N" json:"is_used"`
	ExpiredAt *time.Time        `json:"expired_at,omitempty"`
	UsedAt    *time.Time        `json:"used_at,omitempty"`

	types.Timestamps
}

func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiredAt != nil && !c.ExpiredAt.After(now)
}
