package models

import (
	"time"

	"github.com/google/uuid"
)

// 通知發送狀態
const (
	StatusSent   = "SENT"
	StatusFailed = "FAILED"
)

// NotificationLog 記錄每一次推播發送嘗試，含失敗原因
type NotificationLog struct {
	UserID   uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	DeviceID uuid.UUID  `gorm:"type:uuid;index" json:"device_id"`
	Category string     `gorm:"size:30;index" json:"category"`
	Title    string     `gorm:"size:255" json:"title"`
	Body     string     `json:"body"`
	Status   string     `gorm:"size:20;index" json:"status"`
	ErrorMsg string     `json:"error_msg,omitempty"`
	SentAt   *time.Time `json:"sent_at"`
	Base
}
