package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/saish660/Ecotrack-App/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

// MulticastResult 批次發送結果
type MulticastResult struct {
	SuccessCount int      `json:"success_count"`
	FailureCount int      `json:"failure_count"`
	FailedTokens []string `json:"failed_tokens"`
}

// Messenger 推播閘道介面，調度器與控制器只依賴這個介面
type Messenger interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (*MulticastResult, error)
	ValidateToken(ctx context.Context, token string) bool
}

// fcmSender 是 *messaging.Client 實際用到的部分，抽出來方便測試替換
type fcmSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendDryRun(ctx context.Context, message *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FirebaseService 管理 Firebase 推播服務。
// Client 在啟動時明確建立並注入，建立失敗由呼叫端決定是否中止啟動
type FirebaseService struct {
	DB     *gorm.DB
	client fcmSender
}

// NewFirebaseService 以 service account 憑證建立 Firebase 推播服務
func NewFirebaseService(ctx context.Context, db *gorm.DB, credentialsFile string) (*FirebaseService, error) {
	if credentialsFile == "" {
		return nil, errors.New("firebase credentials file not configured")
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, err
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}

	return &FirebaseService{DB: db, client: client}, nil
}

// NewFirebaseServiceWithClient 使用自訂 client 建立服務（測試用）
func NewFirebaseServiceWithClient(db *gorm.DB, client fcmSender) *FirebaseService {
	return &FirebaseService{DB: db, client: client}
}

// EcoTrack Android 通知的共通設定
func androidConfig(title, body string) *messaging.AndroidConfig {
	ttl := time.Hour
	return &messaging.AndroidConfig{
		TTL:         &ttl,
		Priority:    "high",
		CollapseKey: "ecotrack_reminder",
		Notification: &messaging.AndroidNotification{
			Title:       title,
			Body:        body,
			Icon:        "ic_notification",
			Color:       "#4CAF50",
			Sound:       "default",
			ClickAction: "FLUTTER_NOTIFICATION_CLICK",
			ChannelID:   "ecotrack_notifications",
		},
	}
}

// Send 發送推播給單一設備
func (s *FirebaseService) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if token == "" {
		return errors.New("empty FCM token")
	}

	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data:    data,
		Android: androidConfig(title, body),
	}

	response, err := s.client.Send(ctx, message)
	if err != nil {
		// 分辨失敗原因，無效 token 自動停用
		switch {
		case messaging.IsRegistrationTokenNotRegistered(err):
			log.Printf("FCM token is unregistered: %s", truncateToken(token))
			s.DeactivateToken(token)
		case messaging.IsInvalidArgument(err):
			log.Printf("Invalid FCM message for token %s: %v", truncateToken(token), err)
			s.DeactivateToken(token)
		case messaging.IsQuotaExceeded(err):
			log.Printf("FCM quota exceeded: %v", err)
		case messaging.IsThirdPartyAuthError(err):
			log.Printf("FCM third party auth error: %v", err)
		default:
			log.Printf("Failed to send FCM notification to token %s: %v", truncateToken(token), err)
		}
		return err
	}

	log.Printf("Successfully sent message: %s", response)
	return nil
}

// SendMulticast 批次發送推播給多個設備（共用同一則訊息）
func (s *FirebaseService) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (*MulticastResult, error) {
	if len(tokens) == 0 {
		return &MulticastResult{FailedTokens: []string{}}, nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data:    data,
		Android: androidConfig(title, body),
	}

	batchResponse, err := s.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return &MulticastResult{FailureCount: len(tokens), FailedTokens: tokens}, err
	}

	failedTokens := []string{}
	for idx, response := range batchResponse.Responses {
		if !response.Success {
			failedTokens = append(failedTokens, tokens[idx])
			if messaging.IsRegistrationTokenNotRegistered(response.Error) || messaging.IsInvalidArgument(response.Error) {
				s.DeactivateToken(tokens[idx])
			}
		}
	}

	log.Printf("Multicast FCM sent. Success: %d, Failed: %d", batchResponse.SuccessCount, batchResponse.FailureCount)

	return &MulticastResult{
		SuccessCount: batchResponse.SuccessCount,
		FailureCount: batchResponse.FailureCount,
		FailedTokens: failedTokens,
	}, nil
}

// ValidateToken 以 dry-run 發送驗證 token 是否可用
func (s *FirebaseService) ValidateToken(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	message := &messaging.Message{
		Token: token,
		Data: map[string]string{
			"test": "validation",
		},
	}

	if _, err := s.client.SendDryRun(ctx, message); err != nil {
		log.Printf("validate token failed for %s: %v", truncateToken(token), err)
		return false
	}
	return true
}

// DeactivateToken 停用持有無效 token 的設備
func (s *FirebaseService) DeactivateToken(token string) error {
	if s.DB == nil {
		return nil
	}

	result := s.DB.Model(&models.AndroidDevice{}).
		Where("fcm_token = ?", token).
		Update("is_active", false)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		log.Printf("Deactivated invalid token: %s", truncateToken(token))
	}

	return nil
}

func truncateToken(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "..."
}
