package services

import (
	"errors"
	"time"

	"github.com/saish660/Ecotrack-App/auth"
	"github.com/saish660/Ecotrack-App/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type APIKeyService struct {
	DB *gorm.DB
}

func NewAPIKeyService(db *gorm.DB) *APIKeyService {
	return &APIKeyService{DB: db}
}

// RegenerateAPIKey 重新生成用戶的 API Key，舊的 Key 立即失效
func (s *APIKeyService) RegenerateAPIKey(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.DB.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("用戶不存在")
		}
		return nil, err
	}

	newKey, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.APIKey = newKey
	user.LastModificationTime = &now
	user.LastModifierId = userID

	if err := s.DB.Save(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

// ValidateAPIKey 驗證 API Key 並回傳對應的用戶
func (s *APIKeyService) ValidateAPIKey(apiKey string) (*models.User, error) {
	var user models.User
	if err := s.DB.Where("api_key = ? AND is_deleted = ?", apiKey, false).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("無效的 API Key")
		}
		return nil, err
	}

	return &user, nil
}
