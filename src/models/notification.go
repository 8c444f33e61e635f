package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification rows are append-only.
type Notification struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	UserID    uint           `gorm:"index:idx_notifications_user_created,priority:1" json:"user_id"`
	NotiType  string         `gorm:"size:64" json:"noti_type"`
	TargetID  uint           `json:"target_id"`
	Details   datatypes.JSON `gorm:"type:jsonb" json:"details"`
	CreatedAt time.Time      `gorm:"index:idx_notifications_user_created,priority:2,sort:desc" json:"created_at"`
}
