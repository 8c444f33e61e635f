package models

import "staylog/src/types"

type Booking struct {
	ID         uint                `gorm:"primarykey" json:"id"`
	BookingNum string              `gorm:"uniqueIndex;not null" json:"booking_num"`
	UserID     uint                `gorm:"index" json:"user_id"`
	Status     types.BookingStatus `gorm:"default:PENDING" json:"status"`

	types.Timestamps
}
