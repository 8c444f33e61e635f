package models

import (
	"staylog/src/types"
	"time"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID                 uint                `gorm:"primarykey" json:"id"`
	BookingID          uint                `gorm:"uniqueIndex" json:"booking_id"`
	Amount             decimal.Decimal     `gorm:"type:numeric(12,2)" json:"amount"`
	CouponID           *uint               `json:"coupon_id,omitempty"`
	Status             types.PaymentStatus `gorm:"default:PENDING;index" json:"status"`
	PaymentKey         *string             `json:"payment_key,omitempty"`
	LastTransactionKey *string             `json:"last_transaction_key,omitempty"`
	ApprovedAt         *time.Time          `json:"approved_at,omitempty"`
	DepositedAt        *time.Time          `json:"deposited_at,omitempty"`

	types.Timestamps
}

func (p *Payment) IsPaid() bool {
	return p.Status == types.PAYMENT_PAID
}
