package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// 通知類別，每個類別在設備上獨立開關
const (
	CategoryDailyReminder = "daily_reminder"
	CategoryCommunity     = "community"
	CategoryAchievement   = "achievement"
	CategorySystem        = "system"
)

// Slot 欄位使用的時間格式：日期與「時:分」分開儲存，
// 排程比對是精確到分鐘的相等比較，不是區間比較
const (
	SlotDateLayout = "2006-01-02"
	SlotTimeLayout = "15:04"
)

// AndroidDevice 儲存註冊推播的 Android 設備，所有訂閱資料保存在伺服器端
type AndroidDevice struct {
	UserID   uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_user_device;index:idx_user_active,priority:1" json:"user_id"`
	DeviceID string    `gorm:"size:255;uniqueIndex:idx_user_device" json:"device_id"`
	FCMToken string    `gorm:"size:512;uniqueIndex" json:"-"` // FCM registration token，可輪替

	// 設備資訊
	DeviceName     string `gorm:"size:100" json:"device_name"`
	DeviceModel    string `gorm:"size:100" json:"device_model"`
	Manufacturer   string `gorm:"size:50" json:"manufacturer"`
	AndroidVersion string `gorm:"size:20" json:"android_version"`
	AppVersion     string `gorm:"size:50" json:"app_version"`
	ScreenDensity  string `gorm:"size:20" json:"screen_density"`
	Language       string `gorm:"size:10;default:en" json:"language"`

	// 通知排程設定
	NotificationTime string `gorm:"size:5;default:'09:00';index" json:"notification_time"` // "HH:MM"
	Timezone         string `gorm:"size:50;default:UTC" json:"timezone"`                   // IANA 時區名稱，目前僅供參考，比對使用伺服器時間
	IsActive         bool   `gorm:"default:true;index:idx_user_active,priority:2" json:"is_active"`

	// 各類別通知開關
	DailyRemindersEnabled           bool `gorm:"default:true" json:"daily_reminders_enabled"`
	CommunityNotificationsEnabled   bool `gorm:"default:true" json:"community_notifications_enabled"`
	AchievementNotificationsEnabled bool `gorm:"default:true" json:"achievement_notifications_enabled"`
	SystemNotificationsEnabled      bool `gorm:"default:true" json:"system_notifications_enabled"`

	LastSeen *time.Time `json:"last_seen"`

	// 發送統計
	TotalNotificationsSent uint       `gorm:"default:0" json:"total_notifications_sent"`
	LastNotificationSent   *time.Time `json:"last_notification_sent"`

	// 每日提醒去重：兩個欄位一起記錄最近一次發送的 slot，
	// 必須同時等於當前日期與時刻才視為「本 slot 已處理」
	LastSentDate *string `gorm:"size:10;index:idx_last_sent,priority:1" json:"last_sent_date"`
	LastSentTime *string `gorm:"size:5;index:idx_last_sent,priority:2" json:"last_sent_time"`

	// FCM token 管理
	TokenLastUpdated  *time.Time `json:"token_last_updated"`
	TokenRefreshCount uint       `gorm:"default:0" json:"token_refresh_count"`

	Base
}

// HasValidFCMToken 檢查設備是否持有可用的 FCM token
func (d *AndroidDevice) HasValidFCMToken() bool {
	return strings.TrimSpace(d.FCMToken) != ""
}

// CategoryEnabled 回傳指定通知類別是否啟用
func (d *AndroidDevice) CategoryEnabled(category string) bool {
	switch category {
	case CategoryDailyReminder:
		return d.DailyRemindersEnabled
	case CategoryCommunity:
		return d.CommunityNotificationsEnabled
	case CategoryAchievement:
		return d.AchievementNotificationsEnabled
	case CategorySystem:
		return d.SystemNotificationsEnabled
	default:
		return false
	}
}

// IsScheduledFor 判斷設備在指定 (日期, 時刻) slot 是否應收到每日提醒。
// 條件：啟用中、每日提醒開啟、排程時刻相等、且本 slot 尚未發送過
func (d *AndroidDevice) IsScheduledFor(date, slot string) bool {
	if !d.IsActive || !d.DailyRemindersEnabled {
		return false
	}
	if d.LastSentDate != nil && d.LastSentTime != nil &&
		*d.LastSentDate == date && *d.LastSentTime == slot {
		return false
	}
	return d.NotificationTime == slot
}

// DeviceInfo 回傳設備資訊
func (d *AndroidDevice) DeviceInfo() map[string]string {
	return map[string]string{
		"device_id":       d.DeviceID,
		"device_name":     d.DeviceName,
		"device_model":    d.DeviceModel,
		"manufacturer":    d.Manufacturer,
		"android_version": d.AndroidVersion,
		"app_version":     d.AppVersion,
		"screen_density":  d.ScreenDensity,
		"language":        d.Language,
	}
}

// NotificationPreferences 回傳通知偏好設定
func (d *AndroidDevice) NotificationPreferences() map[string]interface{} {
	return map[string]interface{}{
		"daily_reminders":           d.DailyRemindersEnabled,
		"community_notifications":   d.CommunityNotificationsEnabled,
		"achievement_notifications": d.AchievementNotificationsEnabled,
		"system_notifications":      d.SystemNotificationsEnabled,
		"notification_time":         d.NotificationTime,
		"timezone":                  d.Timezone,
	}
}
