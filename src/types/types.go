package types

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type Environment string

const (
	Local      Environment = "local"
	Test       Environment = "test"
	Production Environment = "production"
)

type PaymentStatus string

const (
	PAYMENT_PENDING PaymentStatus = "PENDING"
	PAYMENT_PAID    PaymentStatus = "PAID"
	PAYMENT_FAILED  PaymentStatus = "FAILED"
)

type BookingStatus string

const (
	BOOKING_PENDING   BookingStatus = "PENDING"
	BOOKING_CONFIRMED BookingStatus = "CONFIRMED"
	BOOKING_CANCELLED BookingStatus = "CANCELLED"
)

// CouponUsage is stored as a single character flag.
type CouponUsage string

const (
	COUPON_UNUSED CouponUsage = "N"
	COUPON_USED   CouponUsage = "Y"
)

type NotificationType string

const (
	NOTI_PAYMENT_CONFIRMED NotificationType = "NOTI_PAYMENT_CONFIRMED"
	NOTI_COUPON_ISSUED     NotificationType = "NOTI_COUPON_ISSUED"
	NOTI_NEW_COMMENT       NotificationType = "NOTI_NEW_COMMENT"
)

// NotificationDetails is the opaque body rendered by clients.
type NotificationDetails struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	ImageURL string `json:"imageUrl,omitempty"`
	Date     string `json:"date"`
	TypeName string `json:"typeName"`
}

type NotificationListQuery struct {
	LastCreatedAt *time.Time `form:"lastCreatedAt" time_format:"2006-01-02T15:04:05Z07:00"`
	LastNotiID    uint       `form:"lastNotiId"`
	Limit         int        `form:"limit" binding:"omitempty,min=1,max=100"`
}

type SubscribeQuery struct {
	Token string `form:"token" binding:"required"`
}

type APIResponseNotification struct {
	ID        uint                `json:"notiId"`
	UserID    uint                `json:"userId"`
	NotiType  string              `json:"notiType"`
	TargetID  uint                `json:"targetId"`
	Details   NotificationDetails `json:"details"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Handler processes one queued message body. A nil error acknowledges it.
type Handler func(ctx context.Context, payload string) error
