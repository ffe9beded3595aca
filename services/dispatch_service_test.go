package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/saish660/Ecotrack-App/models"
	"github.com/saish660/Ecotrack-App/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// stubGateway 測試用推播閘道，可逐 token 指定失敗
type stubGateway struct {
	sendErr       map[string]error
	sentTokens    []string
	multicastFail map[string]bool
	validateFail  map[string]bool
	validateCalls int
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		sendErr:       map[string]error{},
		multicastFail: map[string]bool{},
		validateFail:  map[string]bool{},
	}
}

func (g *stubGateway) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if err, ok := g.sendErr[token]; ok {
		return err
	}
	g.sentTokens = append(g.sentTokens, token)
	return nil
}

func (g *stubGateway) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (*MulticastResult, error) {
	result := &MulticastResult{FailedTokens: []string{}}
	for _, token := range tokens {
		if g.multicastFail[token] {
			result.FailureCount++
			result.FailedTokens = append(result.FailedTokens, token)
		} else {
			result.SuccessCount++
			g.sentTokens = append(g.sentTokens, token)
		}
	}
	return result, nil
}

func (g *stubGateway) ValidateToken(ctx context.Context, token string) bool {
	g.validateCalls++
	return !g.validateFail[token]
}

// countingComposer 記錄 Compose 被呼叫的次數
type countingComposer struct {
	calls int
}

func (c *countingComposer) Compose(ctx context.Context, category string) (string, string) {
	c.calls++
	return DailyReminderTitle, FallbackReminderBody
}

func TestDispatchService_Run_Success(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := newStubGateway()
	composer := &countingComposer{}
	service := NewDispatchService(db, gateway, composer)

	user := testutil.CreateTestUser(t, db, "dispatch@example.com")
	device := testutil.CreateTestDevice(t, db, user, "device-1", "token-1", "09:00")

	now := time.Date(2026, 9, 1, 9, 0, 30, 0, time.UTC)
	report := service.Run(context.Background(), now)

	assert.Equal(t, "success", report.Status)
	assert.Equal(t, "09:00", report.Time)
	assert.Equal(t, "2026-09-01", report.Date)
	assert.Equal(t, 1, report.TotalCandidates)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, []string{"token-1"}, gateway.sentTokens)

	// 成功後去重欄位與統計更新
	var updated models.AndroidDevice
	assert.NoError(t, db.First(&updated, "id = ?", device.ID).Error)
	assert.NotNil(t, updated.LastSentDate)
	assert.NotNil(t, updated.LastSentTime)
	assert.Equal(t, "2026-09-01", *updated.LastSentDate)
	assert.Equal(t, "09:00", *updated.LastSentTime)
	assert.Equal(t, uint(1), updated.TotalNotificationsSent)
	assert.NotNil(t, updated.LastNotificationSent)

	// 寫入 SENT 發送記錄
	var logs []models.NotificationLog
	assert.NoError(t, db.Find(&logs).Error)
	assert.Len(t, logs, 1)
	assert.Equal(t, models.StatusSent, logs[0].Status)
	assert.Equal(t, models.CategoryDailyReminder, logs[0].Category)
	assert.NotNil(t, logs[0].SentAt)
}

func TestDispatchService_Run_IdempotentSameSlot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := newStubGateway()
	composer := &countingComposer{}
	service := NewDispatchService(db, gateway, composer)

	user := testutil.CreateTestUser(t, db, "idem@example.com")
	testutil.CreateTestDevice(t, db, user, "device-1", "token-1", "09:00")

	now := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	first := service.Run(context.Background(), now)
	assert.Equal(t, 1, first.Sent)

	// 同一 slot 重複觸發不會再發送
	second := service.Run(context.Background(), now.Add(20*time.Second))
	assert.Equal(t, 0, second.TotalCandidates)
	assert.Equal(t, 0, second.Sent)
	assert.Len(t, gateway.sentTokens, 1)
}

func TestDispatchService_Run_TimeChangeReEligibleSameDay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := newStubGateway()
	service := NewDispatchService(db, gateway, &countingComposer{})

	user := testutil.CreateTestUser(t, db, "rechange@example.com")
	device := testutil.CreateTestDevice(t, db, user, "device-1", "token-1", "09:00")

	first := service.Run(context.Background(), time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, first.Sent)

	// 用戶改排程時刻後，同一天的新 slot 會再次到期
	assert.NoError(t, db.Model(&models.AndroidDevice{}).
		Where("id = ?", device.ID).
		Update("notification_time", "14:30").Error)

	second := service.Run(context.Background(), time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC))
	assert.Equal(t, 1, second.Sent)
	assert.Len(t, gateway.sentTokens, 2)
}

func TestDispatchService_Run_NextDaySameSlot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := newStubGateway()
	service := NewDispatchService(db, gateway, &countingComposer{})

	user := testutil.CreateTestUser(t, db, "nextday@example.com")
	testutil.CreateTestDevice(t, db, user, "device-1", "token-1", "09:00")

	first := service.Run(context.Background(), time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, first.Sent)

	second := service.Run(context.Background(), time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, second.Sent)
}

func TestDispatchService_Run_InactiveNeverSelected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := newStubGateway()
	composer := &countingComposer{}
	service := NewDispatchService(db, gateway, composer)

	user := testutil.CreateTestUser(t, db, "inactive@example.com")
	device := testutil.CreateTestDevice(t, db, user, "device-1", "token-1", "09:00")
	assert.NoError(t, db.Model(&models.AndroidDevice{}).
		Where("id = ?", device.ID).
		Update("is_active", false).Error)

	disabled := testutil.CreateTestDevice(t, db, user, "device-2", "token-2", "09:00")
	assert.NoError(t, db.Model(&models.AndroidDevice{}).
		Where("id = ?", disabled.ID).
		Update("daily_reminders_enabled", false).Error)

	report := service.Run(context.Background(), time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, 0, report.TotalCandidates)
	assert.Equal(t, 0, report.Sent)
	assert.Empty(t, gateway.sentTokens)
}

func TestDispatchService_Run_EmptyBatchSkipsComposer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := newStubGateway()
	composer := &countingComposer{}
	service := NewDispatchService(db, gateway, composer)

	report := service.Run(context.Background(), time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, "success", report.Status)
	assert.Equal(t, 0, report.TotalCandidates)
	assert.Equal(t, 0, composer.calls)
	assert.Empty(t, gateway.sentTokens)
}

func TestDispatchService_Run_ComposerCalledOncePerBatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := newStubGateway()
	composer := &countingComposer{}
	service := NewDispatchService(db, gateway, composer)

	user := testutil.CreateTestUser(t, db, "batch@example.com")
	testutil.CreateTestDevice(t, db, user, "device-1", "token-1", "09:00")
	testutil.CreateTestDevice(t, db, user, "device-2", "token-2", "09:00")
	testutil.CreateTestDevice(t, db, user, "device-3", "token-3", "09:00")

	report := service.Run(context.Background(), time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, 3, report.Sent)
	assert.Equal(t, 1, composer.calls)
}

func TestDispatchService_Run_TokenlessCountedFailed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := newStubGateway()
	service := NewDispatchService(db, gateway, &countingComposer{})

	user := testutil.CreateTestUser(t, db, "tokenless@example.com")
	device := testutil.CreateTestDevice(t, db, user, "device-1", "token-1", "09:00")
	assert.NoError(t, db.Model(&models.AndroidDevice{}).
		Where("id = ?", device.ID).
		Update("fcm_token", "").Error)

	report := service.Run(context.Background(), time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, 1, report.TotalCandidates)
	assert.Equal(t, 0, report.Sent)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, gateway.sentTokens)
	assert.Contains(t, report.FailedIDs, device.ID)
}

func TestDispatchService_Run_SendFailureKeepsDeviceEligible(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := newStubGateway()
	gateway.sendErr["token-bad"] = errors.New("unavailable")
	service := NewDispatchService(db, gateway, &countingComposer{})

	user := testutil.CreateTestUser(t, db, "fail@example.com")
	good := testutil.CreateTestDevice(t, db, user, "device-good", "token-good", "09:00")
	bad := testutil.CreateTestDevice(t, db, user, "device-bad", "token-bad", "09:00")

	now := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	report := service.Run(context.Background(), now)

	assert.Equal(t, 2, report.TotalCandidates)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.FailedIDs, bad.ID)

	// 失敗設備的去重欄位還原，下一個 tick 仍會被挑中
	var failedDevice models.AndroidDevice
	assert.NoError(t, db.First(&failedDevice, "id = ?", bad.ID).Error)
	assert.Nil(t, failedDevice.LastSentDate)
	assert.Nil(t, failedDevice.LastSentTime)
	assert.Equal(t, uint(0), failedDevice.TotalNotificationsSent)

	var goodDevice models.AndroidDevice
	assert.NoError(t, db.First(&goodDevice, "id = ?", good.ID).Error)
	assert.NotNil(t, goodDevice.LastSentDate)

	// 失敗記錄含錯誤訊息且無發送時間
	var failedLogs []models.NotificationLog
	assert.NoError(t, db.Where("status = ?", models.StatusFailed).Find(&failedLogs).Error)
	assert.Len(t, failedLogs, 1)
	assert.Equal(t, "unavailable", failedLogs[0].ErrorMsg)
	assert.Nil(t, failedLogs[0].SentAt)
}

func TestDispatchService_Run_OnlyMatchingSlot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := newStubGateway()
	service := NewDispatchService(db, gateway, &countingComposer{})

	user := testutil.CreateTestUser(t, db, "slots@example.com")
	testutil.CreateTestDevice(t, db, user, "device-1", "token-1", "09:00")
	testutil.CreateTestDevice(t, db, user, "device-2", "token-2", "09:01")

	report := service.Run(context.Background(), time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, 1, report.TotalCandidates)
	assert.Equal(t, []string{"token-1"}, gateway.sentTokens)
}

// 認領更新寫入失敗的設備必須計入 failed，報表各欄位才加得起來
func TestDispatchService_Run_ClaimErrorCountedFailed(t *testing.T) {
	db, mock := testutil.SetupMockDB(t)
	gateway := newStubGateway()
	composer := &countingComposer{}
	service := NewDispatchService(db, gateway, composer)

	deviceID := uuid.New()
	deviceRows := sqlmock.NewRows([]string{
		"id", "user_id", "device_id", "fcm_token",
		"notification_time", "is_active", "daily_reminders_enabled",
	}).AddRow(deviceID, uuid.New(), "device-1", "token-1", "09:00", true, true)

	mock.ExpectQuery(`SELECT \* FROM "android_devices"`).
		WillReturnRows(deviceRows)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "android_devices"`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	report := service.Run(context.Background(), time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, 1, report.TotalCandidates)
	assert.Equal(t, 0, report.Sent)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []uuid.UUID{deviceID}, report.FailedIDs)
	assert.Empty(t, gateway.sentTokens, "認領失敗不應觸發發送")
	assert.NoError(t, mock.ExpectationsWereMet())
}
