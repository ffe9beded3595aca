package auth

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/saish660/Ecotrack-App/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type cacheEntry struct {
	user      *models.User
	expiresAt time.Time
}

var (
	apiKeyCache        = sync.Map{}
	cacheTTL           = 5 * time.Minute
	apiKeyMiddlewareDB *gorm.DB
)

func SetAPIKeyMiddlewareDB(db *gorm.DB) {
	apiKeyMiddlewareDB = db
	// 換 DB 時清空快取，避免測試間互相污染
	apiKeyCache = sync.Map{}
}

func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "ApiKey" {
			return parts[1]
		}
	}

	return ""
}

func getCachedEntry(apiKey string) (*cacheEntry, bool) {
	if val, ok := apiKeyCache.Load(apiKey); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return entry, true
		}
		apiKeyCache.Delete(apiKey)
	}
	return nil, false
}

func setCacheEntry(apiKey string, user *models.User) {
	entry := &cacheEntry{
		user:      user,
		expiresAt: time.Now().Add(cacheTTL),
	}
	apiKeyCache.Store(apiKey, entry)
}

// APIKeyMiddleware 以 API Key 識別用戶並寫入 gin context
func APIKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := extractAPIKey(c)

		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少 API Key"})
			c.Abort()
			return
		}

		if entry, ok := getCachedEntry(apiKey); ok {
			c.Set("user", entry.user)
			c.Set("user_id", entry.user.ID)
			c.Set("user_email", entry.user.Email)
			c.Next()
			return
		}

		if apiKeyMiddlewareDB == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "數據庫未配置"})
			c.Abort()
			return
		}

		var user models.User
		if err := apiKeyMiddlewareDB.Where("api_key = ? AND is_deleted = ?", apiKey, false).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "無效的 API Key"})
			c.Abort()
			return
		}

		setCacheEntry(apiKey, &user)

		c.Set("user", &user)
		c.Set("user_id", user.ID)
		c.Set("user_email", user.Email)

		c.Next()
	}
}
