package services

import (
	"context"
	"log"
	"time"

	"github.com/saish660/Ecotrack-App/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultSendTimeout 單一設備發送的逾時上限，避免單一慢速請求卡住整批
const DefaultSendTimeout = 10 * time.Second

// DispatchReport 單次調度的彙總結果
type DispatchReport struct {
	Status          string      `json:"status"`
	Time            string      `json:"time"`
	Date            string      `json:"date"`
	TotalCandidates int         `json:"total_candidates"`
	Sent            int         `json:"sent"`
	Failed          int         `json:"failed"`
	FailedIDs       []uuid.UUID `json:"failed_ids"`
}

// DispatchService 每日提醒調度器。
// 由外部觸發器每分鐘呼叫一次 Run；本身不含計時器也不做重試，
// 重複觸發的防護完全依賴設備上的 (last_sent_date, last_sent_time) 去重狀態
type DispatchService struct {
	DB          *gorm.DB
	Gateway     Messenger
	Composer    Composer
	SendTimeout time.Duration

	devices *DeviceService
}

func NewDispatchService(db *gorm.DB, gateway Messenger, composer Composer) *DispatchService {
	return &DispatchService{
		DB:          db,
		Gateway:     gateway,
		Composer:    composer,
		SendTimeout: DefaultSendTimeout,
		devices:     NewDeviceService(db, gateway),
	}
}

// Run 執行一個 tick 的調度：挑出本分鐘到期的設備、組一次文案、
// 逐台發送並回寫發送狀態。now 需已換算為伺服器時區
func (s *DispatchService) Run(ctx context.Context, now time.Time) DispatchReport {
	slot := now.Format(models.SlotTimeLayout)
	date := now.Format(models.SlotDateLayout)

	report := DispatchReport{
		Status:    "success",
		Time:      slot,
		Date:      date,
		FailedIDs: []uuid.UUID{},
	}

	due, err := s.devices.QueryDue(models.CategoryDailyReminder, now)
	if err != nil {
		log.Printf("dispatch: due query failed: %v", err)
		report.Status = "error"
		return report
	}

	report.TotalCandidates = len(due)
	if len(due) == 0 {
		return report
	}

	// 無可用 token 的設備直接計為失敗，不經過閘道
	usable := make([]models.AndroidDevice, 0, len(due))
	for _, device := range due {
		if device.HasValidFCMToken() {
			usable = append(usable, device)
		} else {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, device.ID)
		}
	}

	if len(usable) == 0 {
		return report
	}

	// 整批只組一次文案；Compose 永不失敗，內部已含備援
	title, body := s.Composer.Compose(ctx, models.CategoryDailyReminder)

	data := map[string]string{"type": models.CategoryDailyReminder, "url": "/"}

	for _, device := range usable {
		// 先以 CAS 認領本 slot，避免並發 tick 對同一設備重複發送
		claimed, err := s.claimSlot(device, date, slot)
		if err != nil {
			// 認領寫入失敗：這台設備本輪未處理，計入失敗
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, device.ID)
			s.logAttempt(device, title, body, models.StatusFailed, err.Error(), now)
			continue
		}
		if !claimed {
			// 另一個 tick 已處理過，跳過且不計入統計
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout())
		err = s.Gateway.Send(sendCtx, device.FCMToken, title, body, data)
		cancel()

		if err != nil {
			// 發送失敗：還原去重狀態，等待下一個符合的 slot
			s.releaseSlot(device)
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, device.ID)
			s.logAttempt(device, title, body, models.StatusFailed, err.Error(), now)
			continue
		}

		s.markSent(device, now)
		report.Sent++
		s.logAttempt(device, title, body, models.StatusSent, "", now)
	}

	log.Printf("dispatch %s %s: candidates=%d sent=%d failed=%d",
		date, slot, report.TotalCandidates, report.Sent, report.Failed)

	return report
}

func (s *DispatchService) sendTimeout() time.Duration {
	if s.SendTimeout > 0 {
		return s.SendTimeout
	}
	return DefaultSendTimeout
}

// claimSlot 以條件更新認領設備的發送 slot。
// 回傳 false 且無錯誤表示另一個 tick 已處理過，跳過即可
func (s *DispatchService) claimSlot(device models.AndroidDevice, date, slot string) (bool, error) {
	result := s.DB.Model(&models.AndroidDevice{}).
		Where("id = ?", device.ID).
		Where("last_sent_date IS NULL OR last_sent_time IS NULL OR NOT (last_sent_date = ? AND last_sent_time = ?)", date, slot).
		Updates(map[string]interface{}{
			"last_sent_date": date,
			"last_sent_time": slot,
		})
	if result.Error != nil {
		log.Printf("dispatch: claim slot failed for device %s: %v", device.ID, result.Error)
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// releaseSlot 發送失敗後還原認領前的去重欄位
func (s *DispatchService) releaseSlot(device models.AndroidDevice) {
	err := s.DB.Model(&models.AndroidDevice{}).
		Where("id = ?", device.ID).
		Updates(map[string]interface{}{
			"last_sent_date": device.LastSentDate,
			"last_sent_time": device.LastSentTime,
		}).Error
	if err != nil {
		log.Printf("dispatch: release slot failed for device %s: %v", device.ID, err)
	}
}

// markSent 發送成功後更新統計欄位
func (s *DispatchService) markSent(device models.AndroidDevice, now time.Time) {
	err := s.DB.Model(&models.AndroidDevice{}).
		Where("id = ?", device.ID).
		Updates(map[string]interface{}{
			"total_notifications_sent": gorm.Expr("total_notifications_sent + 1"),
			"last_notification_sent":   now,
		}).Error
	if err != nil {
		log.Printf("dispatch: mark sent failed for device %s: %v", device.ID, err)
	}
}

func (s *DispatchService) logAttempt(device models.AndroidDevice, title, body, status, errMsg string, now time.Time) {
	entry := models.NotificationLog{
		UserID:   device.UserID,
		DeviceID: device.ID,
		Category: models.CategoryDailyReminder,
		Title:    title,
		Body:     body,
		Status:   status,
		ErrorMsg: errMsg,
	}
	if status == models.StatusSent {
		entry.SentAt = &now
	}
	if err := s.DB.Create(&entry).Error; err != nil {
		log.Printf("dispatch: write notification log failed: %v", err)
	}
}
