package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/saish660/Ecotrack-App/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrDeviceNotFound  = errors.New("device not found")
	ErrInvalidFCMToken = errors.New("invalid FCM token")
	ErrInvalidTime     = errors.New("invalid time format, use HH:MM")
)

// DeviceService 設備註冊與排程狀態管理
type DeviceService struct {
	DB      *gorm.DB
	Gateway Messenger
}

func NewDeviceService(db *gorm.DB, gateway Messenger) *DeviceService {
	return &DeviceService{DB: db, Gateway: gateway}
}

// RegisterDeviceRequest 設備註冊請求
type RegisterDeviceRequest struct {
	FCMToken         string `json:"fcmToken" binding:"required"`
	DeviceID         string `json:"deviceId" binding:"required"`
	DeviceName       string `json:"deviceName"`
	DeviceModel      string `json:"deviceModel"`
	Manufacturer     string `json:"manufacturer"`
	AndroidVersion   string `json:"androidVersion"`
	AppVersion       string `json:"appVersion"`
	ScreenDensity    string `json:"screenDensity"`
	Language         string `json:"language"`
	NotificationTime string `json:"notificationTime"`
	Timezone         string `json:"timezone"`

	DailyRemindersEnabled           *bool `json:"dailyRemindersEnabled"`
	CommunityNotificationsEnabled   *bool `json:"communityNotificationsEnabled"`
	AchievementNotificationsEnabled *bool `json:"achievementNotificationsEnabled"`
	SystemNotificationsEnabled      *bool `json:"systemNotificationsEnabled"`
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// normalizeNotificationTime 驗證 HH:MM 格式，無效時退回預設 09:00
func normalizeNotificationTime(value string) string {
	if value == "" {
		return "09:00"
	}
	parsed, err := time.Parse(models.SlotTimeLayout, value)
	if err != nil {
		log.Printf("Invalid notification time format: %s, using default 09:00", value)
		return "09:00"
	}
	return parsed.Format(models.SlotTimeLayout)
}

// normalizeTimezone 驗證 IANA 時區名稱，無效時退回 UTC
func normalizeTimezone(value string) string {
	if value == "" {
		return "UTC"
	}
	if _, err := time.LoadLocation(value); err != nil {
		log.Printf("Invalid timezone: %s, using UTC", value)
		return "UTC"
	}
	return value
}

// RegisterDevice 註冊或更新設備，以 (user, device_id) 做 upsert。
// 註冊前先向閘道驗證 token，不可用的 token 直接拒絕不入庫。
// token 輪替規則：既有記錄的 token 與本次不同才遞增 TokenRefreshCount
func (s *DeviceService) RegisterDevice(ctx context.Context, userID uuid.UUID, req RegisterDeviceRequest) (*models.AndroidDevice, bool, error) {
	if req.FCMToken == "" || req.DeviceID == "" {
		return nil, false, ErrInvalidFCMToken
	}

	if s.Gateway != nil && !s.Gateway.ValidateToken(ctx, req.FCMToken) {
		return nil, false, ErrInvalidFCMToken
	}

	now := time.Now()

	deviceName := req.DeviceName
	if deviceName == "" {
		if len(req.DeviceID) >= 8 {
			deviceName = "Android Device " + req.DeviceID[:8]
		} else {
			deviceName = "Android Device"
		}
	}

	var existing models.AndroidDevice
	err := s.DB.Where("user_id = ? AND device_id = ?", userID, req.DeviceID).First(&existing).Error

	if err == nil {
		tokenChanged := existing.FCMToken != req.FCMToken

		existing.FCMToken = req.FCMToken
		existing.DeviceName = deviceName
		existing.DeviceModel = req.DeviceModel
		existing.Manufacturer = req.Manufacturer
		existing.AndroidVersion = req.AndroidVersion
		existing.AppVersion = req.AppVersion
		existing.ScreenDensity = req.ScreenDensity
		if req.Language != "" {
			existing.Language = req.Language
		}
		existing.NotificationTime = normalizeNotificationTime(req.NotificationTime)
		existing.Timezone = normalizeTimezone(req.Timezone)
		existing.IsActive = true
		existing.DailyRemindersEnabled = boolOrDefault(req.DailyRemindersEnabled, true)
		existing.CommunityNotificationsEnabled = boolOrDefault(req.CommunityNotificationsEnabled, true)
		existing.AchievementNotificationsEnabled = boolOrDefault(req.AchievementNotificationsEnabled, true)
		existing.SystemNotificationsEnabled = boolOrDefault(req.SystemNotificationsEnabled, true)
		existing.LastSeen = &now

		if tokenChanged {
			existing.TokenLastUpdated = &now
			existing.TokenRefreshCount++
		}

		if err := s.DB.Save(&existing).Error; err != nil {
			return nil, false, err
		}
		log.Printf("Android device updated: user %s, device %s", userID, truncateToken(req.DeviceID))
		return &existing, false, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	language := req.Language
	if language == "" {
		language = "en"
	}

	device := models.AndroidDevice{
		UserID:                          userID,
		DeviceID:                        req.DeviceID,
		FCMToken:                        req.FCMToken,
		DeviceName:                      deviceName,
		DeviceModel:                     req.DeviceModel,
		Manufacturer:                    req.Manufacturer,
		AndroidVersion:                  req.AndroidVersion,
		AppVersion:                      req.AppVersion,
		ScreenDensity:                   req.ScreenDensity,
		Language:                        language,
		NotificationTime:                normalizeNotificationTime(req.NotificationTime),
		Timezone:                        normalizeTimezone(req.Timezone),
		IsActive:                        true,
		DailyRemindersEnabled:           boolOrDefault(req.DailyRemindersEnabled, true),
		CommunityNotificationsEnabled:   boolOrDefault(req.CommunityNotificationsEnabled, true),
		AchievementNotificationsEnabled: boolOrDefault(req.AchievementNotificationsEnabled, true),
		SystemNotificationsEnabled:      boolOrDefault(req.SystemNotificationsEnabled, true),
		LastSeen:                        &now,
		TokenLastUpdated:                &now,
		TokenRefreshCount:               0,
	}

	if err := s.DB.Create(&device).Error; err != nil {
		return nil, false, err
	}

	log.Printf("Android device registered: user %s, device %s", userID, truncateToken(req.DeviceID))

	// 新註冊發送歡迎通知，失敗不影響註冊結果
	if s.Gateway != nil {
		if err := s.Gateway.Send(ctx, device.FCMToken,
			"Welcome to EcoTrack! 🌱",
			"Your device is now registered for push notifications. Start tracking your eco-friendly habits!",
			map[string]string{"type": "welcome", "action": "open_app", "screen": "dashboard"},
		); err != nil {
			log.Printf("Failed to send welcome notification: %v", err)
		}
	}

	return &device, true, nil
}

// UpdateSettingsRequest 通知設定更新請求，nil 欄位表示不變更
type UpdateSettingsRequest struct {
	DeviceID                 string  `json:"deviceId" binding:"required"`
	NotificationTime         *string `json:"notificationTime"`
	DailyReminders           *bool   `json:"dailyReminders"`
	CommunityNotifications   *bool   `json:"communityNotifications"`
	AchievementNotifications *bool   `json:"achievementNotifications"`
	SystemNotifications      *bool   `json:"systemNotifications"`
	Timezone                 *string `json:"timezone"`
}

// UpdateSettings 更新設備通知設定，未知設備回傳 ErrDeviceNotFound
func (s *DeviceService) UpdateSettings(userID uuid.UUID, req UpdateSettingsRequest) (*models.AndroidDevice, error) {
	var device models.AndroidDevice
	err := s.DB.Where("user_id = ? AND device_id = ?", userID, req.DeviceID).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	if req.NotificationTime != nil {
		parsed, err := time.Parse(models.SlotTimeLayout, *req.NotificationTime)
		if err != nil {
			return nil, ErrInvalidTime
		}
		device.NotificationTime = parsed.Format(models.SlotTimeLayout)
	}

	if req.DailyReminders != nil {
		device.DailyRemindersEnabled = *req.DailyReminders
	}
	if req.CommunityNotifications != nil {
		device.CommunityNotificationsEnabled = *req.CommunityNotifications
	}
	if req.AchievementNotifications != nil {
		device.AchievementNotificationsEnabled = *req.AchievementNotifications
	}
	if req.SystemNotifications != nil {
		device.SystemNotificationsEnabled = *req.SystemNotifications
	}

	// 無效時區保留原值，與原有行為一致
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err == nil {
			device.Timezone = *req.Timezone
		}
	}

	now := time.Now()
	device.LastSeen = &now

	if err := s.DB.Save(&device).Error; err != nil {
		return nil, err
	}

	return &device, nil
}

// Deactivate 停用指定設備；deviceID 為空時停用該用戶全部設備。
// 設備不存在也視為成功（冪等）
func (s *DeviceService) Deactivate(userID uuid.UUID, deviceID string) (int64, error) {
	query := s.DB.Model(&models.AndroidDevice{}).
		Where("user_id = ?", userID).
		Where("is_active = ?", true)
	if deviceID != "" {
		query = query.Where("device_id = ?", deviceID)
	}

	result := query.Update("is_active", false)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// GetUserDevices 取得用戶全部設備，最近活動優先
func (s *DeviceService) GetUserDevices(userID uuid.UUID) ([]models.AndroidDevice, error) {
	var devices []models.AndroidDevice
	if err := s.DB.Where("user_id = ?", userID).Order("last_seen DESC").Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

// QueryDue 查詢指定類別在當前 tick 應收到通知的設備。
// 判準：啟用中、類別開啟、排程時刻等於當前時分、且本 slot 今天尚未發送
func (s *DeviceService) QueryDue(category string, now time.Time) ([]models.AndroidDevice, error) {
	slot := now.Format(models.SlotTimeLayout)
	date := now.Format(models.SlotDateLayout)

	flagColumn, ok := categoryFlagColumn(category)
	if !ok {
		return nil, errors.New("unknown notification category: " + category)
	}

	var devices []models.AndroidDevice
	err := s.DB.
		Where("is_active = ?", true).
		Where(flagColumn+" = ?", true).
		Where("notification_time = ?", slot).
		Where("last_sent_date IS NULL OR last_sent_time IS NULL OR NOT (last_sent_date = ? AND last_sent_time = ?)", date, slot).
		Find(&devices).Error
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func categoryFlagColumn(category string) (string, bool) {
	switch category {
	case models.CategoryDailyReminder:
		return "daily_reminders_enabled", true
	case models.CategoryCommunity:
		return "community_notifications_enabled", true
	case models.CategoryAchievement:
		return "achievement_notifications_enabled", true
	case models.CategorySystem:
		return "system_notifications_enabled", true
	default:
		return "", false
	}
}
