package controllers

import (
	"net/http"

	"github.com/saish660/Ecotrack-App/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var communityService *services.CommunityService

// SetupNotificationController 初始化事件觸發通知控制器
func SetupNotificationController(database *gorm.DB, gateway services.Messenger) {
	communityService = services.NewCommunityService(database, gateway)
}

// AchievementNotificationRequest 成就通知請求
type AchievementNotificationRequest struct {
	AchievementType string `json:"achievementType"`
	Title           string `json:"title"`
	Message         string `json:"message"`
}

// CommunityNotificationRequest 社群通知請求
type CommunityNotificationRequest struct {
	Title   string            `json:"title" binding:"required"`
	Message string            `json:"message" binding:"required"`
	Extra   map[string]string `json:"extra"`
}

// SendAchievementNotification 發送成就通知
// @Summary 發送成就通知
// @Description 向當前用戶所有啟用成就通知的設備發送推播
// @Tags 通知
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body AchievementNotificationRequest true "成就通知請求"
// @Success 200 {object} map[string]interface{} "發送結果"
// @Failure 401 {object} map[string]string "未認證"
// @Failure 404 {object} map[string]string "找不到啟用成就通知的設備"
// @Failure 500 {object} map[string]string "服務器錯誤"
// @Router /notifications/achievement [post]
func SendAchievementNotification(c *gin.Context) {
	userID, ok := getUserFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未認證")
		return
	}

	if communityService == nil {
		respondError(c, http.StatusInternalServerError, "notification service not initialized")
		return
	}

	var req AchievementNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if req.AchievementType == "" {
		req.AchievementType = "general"
	}
	if req.Title == "" {
		req.Title = "Achievement Unlocked!"
	}
	if req.Message == "" {
		req.Message = "Congratulations on your eco-friendly achievement!"
	}

	sent, failed, err := communityService.SendAchievement(c.Request.Context(), userID, req.AchievementType, req.Title, req.Message)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	if sent == 0 && failed == 0 {
		respondError(c, http.StatusNotFound, "No active devices found with achievement notifications enabled")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"sent_to": sent,
		"failed":  failed,
	})
}

// NotifyCommunity 發送社群通知
// @Summary 發送社群通知
// @Description 向社群全體成員（發送者除外）的啟用設備做批次推播
// @Tags 通知
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "社群 ID (UUID)"
// @Param request body CommunityNotificationRequest true "社群通知請求"
// @Success 200 {object} map[string]interface{} "發送結果"
// @Failure 400 {object} map[string]string "請求參數錯誤"
// @Failure 401 {object} map[string]string "未認證"
// @Failure 500 {object} map[string]string "服務器錯誤"
// @Router /communities/{id}/notify [post]
func NotifyCommunity(c *gin.Context) {
	userID, ok := getUserFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未認證")
		return
	}

	if communityService == nil {
		respondError(c, http.StatusInternalServerError, "notification service not initialized")
		return
	}

	communityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid community id")
		return
	}

	var req CommunityNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := communityService.NotifyCommunityMembers(c.Request.Context(), communityID, req.Title, req.Message, userID, req.Extra)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"success_count": result.SuccessCount,
		"failure_count": result.FailureCount,
	})
}
