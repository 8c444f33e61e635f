package events

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindSettlementConfirmed Kind = "settlement.confirmed"
	KindSignupCompleted     Kind = "user.signup_completed"
	KindCouponIssued        Kind = "coupon.issued"
	KindCommentCreated      Kind = "board.comment_created"
)

type Event interface {
	Kind() Kind
}

// SettlementConfirmed is raised once per payment, after the settlement commit.
type SettlementConfirmed struct {
	PaymentID   uint            `json:"paymentId"`
	BookingID   uint            `json:"bookingId"`
	Amount      decimal.Decimal `json:"amount"`
	CouponID    *uint           `json:"couponId,omitempty"`
	ConfirmedAt time.Time       `json:"confirmedAt"`
}

func (SettlementConfirmed) Kind() Kind { return KindSettlementConfirmed }

type SignupCompleted struct {
	UserID uint `json:"userId" validate:"required"`
}

func (SignupCompleted) Kind() Kind { return KindSignupCompleted }

type CouponIssued struct {
	CouponID  uint       `json:"couponId"`
	UserID    uint       `json:"userId"`
	Name      string     `json:"name"`
	Discount  int        `json:"discount"`
	ExpiredAt *time.Time `json:"expiredAt,omitempty"`
}

func (CouponIssued) Kind() Kind { return KindCouponIssued }

type CommentCreated struct {
	CommentID      uint   `json:"commentId" validate:"required"`
	BoardID        uint   `json:"boardId" validate:"required"`
	RecipientID    uint   `json:"recipientId" validate:"required"`
	WriterNickname string `json:"writerNickname" validate:"required"`
	WriterImageURL string `json:"writerImageUrl" validate:"omitempty,url"`
	Content        string `json:"content" validate:"required,max=2000"`
}

func (CommentCreated) Kind() Kind { return KindCommentCreated }
