package services

import (
	"context"
	"log"
	"time"

	"github.com/saish660/Ecotrack-App/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CommunityService 社群與成就通知的事件觸發發送。
// 這些類別不走每分鐘的排程調度，由事件直接觸發
type CommunityService struct {
	DB      *gorm.DB
	Gateway Messenger
}

func NewCommunityService(db *gorm.DB, gateway Messenger) *CommunityService {
	return &CommunityService{DB: db, Gateway: gateway}
}

// NotifyCommunityMembers 對社群全體成員的啟用設備做批次推播，排除發送者本人。
// 同時寫入一筆公告訊息，metadata 記錄推播附帶的資料
func (s *CommunityService) NotifyCommunityMembers(ctx context.Context, communityID uuid.UUID, title, body string, senderID uuid.UUID, extra map[string]string) (*MulticastResult, error) {
	query := s.DB.Model(&models.AndroidDevice{}).
		Joins("JOIN community_memberships ON community_memberships.user_id = android_devices.user_id").
		Where("community_memberships.community_id = ? AND community_memberships.is_active = ?", communityID, true).
		Where("android_devices.is_active = ? AND android_devices.community_notifications_enabled = ?", true, true)

	if senderID != uuid.Nil {
		query = query.Where("android_devices.user_id <> ?", senderID)
	}

	var devices []models.AndroidDevice
	if err := query.Distinct("android_devices.*").Find(&devices).Error; err != nil {
		return nil, err
	}

	data := map[string]string{
		"action":       "open_community",
		"community_id": communityID.String(),
		"screen":       "community_detail",
		"type":         models.CategoryCommunity,
	}
	for k, v := range extra {
		data[k] = v
	}

	metadata := datatypes.JSONMap{}
	for k, v := range data {
		metadata[k] = v
	}
	message := models.CommunityMessage{
		CommunityID: communityID,
		SenderID:    senderID,
		MessageType: models.MessageTypeAnnouncement,
		Content:     body,
		Metadata:    metadata,
	}
	if err := s.DB.Create(&message).Error; err != nil {
		log.Printf("failed to record community message: %v", err)
	}

	tokens := make([]string, 0, len(devices))
	for _, device := range devices {
		if device.HasValidFCMToken() {
			tokens = append(tokens, device.FCMToken)
		}
	}

	if len(tokens) == 0 {
		return &MulticastResult{FailedTokens: []string{}}, nil
	}

	result, err := s.Gateway.SendMulticast(ctx, tokens, title, body, data)
	if err != nil {
		return result, err
	}

	s.logMulticast(devices, result, models.CategoryCommunity, title, body)

	return result, nil
}

// SendAchievement 對單一用戶啟用成就通知的設備逐台發送
func (s *CommunityService) SendAchievement(ctx context.Context, userID uuid.UUID, achievementType, title, body string) (int, int, error) {
	var devices []models.AndroidDevice
	err := s.DB.
		Where("user_id = ? AND is_active = ? AND achievement_notifications_enabled = ?", userID, true, true).
		Find(&devices).Error
	if err != nil {
		return 0, 0, err
	}

	data := map[string]string{
		"action":           "open_achievements",
		"achievement_type": achievementType,
		"screen":           "achievements",
		"type":             models.CategoryAchievement,
	}

	sent := 0
	failed := 0
	now := time.Now()

	for _, device := range devices {
		if !device.HasValidFCMToken() {
			failed++
			continue
		}

		entry := models.NotificationLog{
			UserID:   device.UserID,
			DeviceID: device.ID,
			Category: models.CategoryAchievement,
			Title:    title,
			Body:     body,
			Status:   models.StatusSent,
			SentAt:   &now,
		}

		if err := s.Gateway.Send(ctx, device.FCMToken, title, body, data); err != nil {
			failed++
			entry.Status = models.StatusFailed
			entry.ErrorMsg = err.Error()
			entry.SentAt = nil
		} else {
			sent++
			s.DB.Model(&models.AndroidDevice{}).Where("id = ?", device.ID).Update("last_seen", now)
		}

		if err := s.DB.Create(&entry).Error; err != nil {
			log.Printf("failed to write notification log: %v", err)
		}
	}

	return sent, failed, nil
}

func (s *CommunityService) logMulticast(devices []models.AndroidDevice, result *MulticastResult, category, title, body string) {
	failedTokens := make(map[string]bool, len(result.FailedTokens))
	for _, token := range result.FailedTokens {
		failedTokens[token] = true
	}

	now := time.Now()
	for _, device := range devices {
		if !device.HasValidFCMToken() {
			continue
		}
		entry := models.NotificationLog{
			UserID:   device.UserID,
			DeviceID: device.ID,
			Category: category,
			Title:    title,
			Body:     body,
			Status:   models.StatusSent,
			SentAt:   &now,
		}
		if failedTokens[device.FCMToken] {
			entry.Status = models.StatusFailed
			entry.SentAt = nil
		}
		if err := s.DB.Create(&entry).Error; err != nil {
			log.Printf("failed to write notification log: %v", err)
		}
	}
}
