package controllers

import (
	"net/http"

	"github.com/saish660/Ecotrack-App/models"
	"github.com/saish660/Ecotrack-App/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var db *gorm.DB

// SetDB 設定控制器使用的資料庫連線
func SetDB(database *gorm.DB) {
	db = database
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func checkDB(c *gin.Context) bool {
	if db == nil {
		respondError(c, http.StatusInternalServerError, "數據庫連接未配置")
		return false
	}
	return true
}

func getUserFromContext(c *gin.Context) (uuid.UUID, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, false
	}

	idValue, ok := userID.(uuid.UUID)
	if !ok {
		return uuid.Nil, false
	}

	return idValue, true
}

// RegenerateAPIKey 重新生成 API Key
// @Summary 重新生成 API Key
// @Description 重新生成當前用戶的 API Key，舊的 API Key 將失效
// @Tags 認證
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]string "重新生成成功"
// @Failure 401 {object} map[string]string "未認證"
// @Failure 500 {object} map[string]string "服務器錯誤"
// @Router /auth/regenerate-key [post]
func RegenerateAPIKey(c *gin.Context) {
	userID, ok := getUserFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未認證")
		return
	}

	if !checkDB(c) {
		return
	}

	svc := services.NewAPIKeyService(db)
	user, err := svc.RegenerateAPIKey(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "API Key 已重新生成",
		"api_key": user.APIKey,
	})
}

// VerifyAPIKey 驗證 API Key
// @Summary 驗證 API Key 是否有效
// @Description 驗證提供的 API Key 是否有效並返回用戶資訊
// @Tags 認證
// @Accept json
// @Produce json
// @Param X-API-Key header string false "API Key"
// @Param Authorization header string false "API Key (格式: ApiKey {key})"
// @Success 200 {object} map[string]interface{} "API Key 有效"
// @Failure 401 {object} map[string]string "無效的 API Key"
// @Failure 500 {object} map[string]string "服務器錯誤"
// @Router /auth/verify-key [get]
func VerifyAPIKey(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		respondError(c, http.StatusUnauthorized, "無效的 API Key")
		return
	}

	userData := user.(*models.User)
	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"user": gin.H{
			"id":    userData.ID,
			"name":  userData.Name,
			"email": userData.Email,
		},
	})
}
