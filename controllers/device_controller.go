package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/saish660/Ecotrack-App/models"
	"github.com/saish660/Ecotrack-App/services"

	"github.com/gin-gonic/gin"
)

var deviceService *services.DeviceService

// SetupDeviceController 初始化設備控制器
func SetupDeviceController(svc *services.DeviceService) {
	deviceService = svc
}

// RegisterAndroidDevice 註冊 Android 設備
// @Summary 註冊 Android 設備
// @Description 註冊或更新推播設備，所有訂閱資料保存在伺服器端。註冊前會向 FCM 驗證 token
// @Tags 設備
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body services.RegisterDeviceRequest true "設備註冊請求"
// @Success 200 {object} map[string]interface{} "註冊成功"
// @Failure 400 {object} map[string]string "缺少必要欄位或 token 無效"
// @Failure 401 {object} map[string]string "未認證"
// @Failure 500 {object} map[string]string "服務器錯誤"
// @Router /devices/register [post]
func RegisterAndroidDevice(c *gin.Context) {
	userID, ok := getUserFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未認證")
		return
	}

	if deviceService == nil {
		respondError(c, http.StatusInternalServerError, "device service not initialized")
		return
	}

	var req services.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "FCM token and device ID are required")
		return
	}

	device, created, err := deviceService.RegisterDevice(c.Request.Context(), userID, req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidFCMToken) {
			respondError(c, http.StatusBadRequest, "Invalid FCM token. Please check your Firebase configuration.")
			return
		}
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	action := "updated"
	if created {
		action = "registered"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Android device " + action + " successfully",
		"data": gin.H{
			"device_id":                device.DeviceID,
			"database_id":              device.ID,
			"device_info":              device.DeviceInfo(),
			"notification_preferences": device.NotificationPreferences(),
			"is_active":                device.IsActive,
			"statistics": gin.H{
				"total_notifications_sent": device.TotalNotificationsSent,
				"token_refresh_count":      device.TokenRefreshCount,
				"token_last_updated":       device.TokenLastUpdated,
			},
		},
	})
}

// UnregisterAndroidDevice 解除註冊設備
// @Summary 解除註冊設備
// @Description 停用指定設備，未帶 deviceId 時停用全部設備。冪等：無設備可停用也回傳成功
// @Tags 設備
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]string "解除註冊成功"
// @Failure 401 {object} map[string]string "未認證"
// @Failure 500 {object} map[string]string "服務器錯誤"
// @Router /devices/unregister [post]
func UnregisterAndroidDevice(c *gin.Context) {
	userID, ok := getUserFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未認證")
		return
	}

	if deviceService == nil {
		respondError(c, http.StatusInternalServerError, "device service not initialized")
		return
	}

	var req struct {
		DeviceID string `json:"deviceId"`
	}
	// 空 body 視為「停用全部設備」
	_ = c.ShouldBindJSON(&req)

	updated, err := deviceService.Deactivate(userID, req.DeviceID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	message := "Android device unregistered successfully"
	if req.DeviceID == "" {
		message = "All Android devices unregistered successfully"
	}
	if updated == 0 {
		message = "No active device found; nothing to unregister"
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": message})
}

// UpdateNotificationSettings 更新通知設定
// @Summary 更新通知設定
// @Description 更新設備的通知時間、各類別開關與時區，未提供的欄位不變更
// @Tags 設備
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body services.UpdateSettingsRequest true "設定更新請求"
// @Success 200 {object} map[string]string "更新成功"
// @Failure 400 {object} map[string]string "時間格式錯誤"
// @Failure 401 {object} map[string]string "未認證"
// @Failure 404 {object} map[string]string "設備不存在"
// @Failure 500 {object} map[string]string "服務器錯誤"
// @Router /devices/settings [post]
func UpdateNotificationSettings(c *gin.Context) {
	userID, ok := getUserFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未認證")
		return
	}

	if deviceService == nil {
		respondError(c, http.StatusInternalServerError, "device service not initialized")
		return
	}

	var req services.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Device ID is required")
		return
	}

	if _, err := deviceService.UpdateSettings(userID, req); err != nil {
		switch {
		case errors.Is(err, services.ErrDeviceNotFound):
			respondError(c, http.StatusNotFound, "Device not found. Please register first.")
		case errors.Is(err, services.ErrInvalidTime):
			respondError(c, http.StatusBadRequest, "Invalid time format. Use HH:MM format")
		default:
			respondError(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Notification settings updated successfully"})
}

// GetAndroidDevices 取得用戶設備列表
// @Summary 取得設備列表
// @Description 取得當前用戶全部已註冊設備及其通知設定與發送統計
// @Tags 設備
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{} "設備列表"
// @Failure 401 {object} map[string]string "未認證"
// @Failure 500 {object} map[string]string "服務器錯誤"
// @Router /devices [get]
func GetAndroidDevices(c *gin.Context) {
	userID, ok := getUserFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未認證")
		return
	}

	if deviceService == nil {
		respondError(c, http.StatusInternalServerError, "device service not initialized")
		return
	}

	devices, err := deviceService.GetUserDevices(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	devicesData := make([]gin.H, 0, len(devices))
	activeCount := 0
	for _, device := range devices {
		if device.IsActive {
			activeCount++
		}
		devicesData = append(devicesData, gin.H{
			"deviceId":                device.DeviceID,
			"databaseId":              device.ID,
			"isActive":                device.IsActive,
			"deviceInfo":              device.DeviceInfo(),
			"notificationPreferences": device.NotificationPreferences(),
			"statistics": gin.H{
				"totalNotificationsSent": device.TotalNotificationsSent,
				"tokenRefreshCount":      device.TokenRefreshCount,
				"lastSeen":               device.LastSeen,
				"tokenLastUpdated":       device.TokenLastUpdated,
				"lastNotificationSent":   device.LastNotificationSent,
			},
			"scheduling": gin.H{
				"lastSentDate": device.LastSentDate,
				"lastSentTime": device.LastSentTime,
			},
			"hasValidToken": device.HasValidFCMToken(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"devices":       devicesData,
			"totalDevices":  len(devicesData),
			"activeDevices": activeCount,
		},
	})
}

// TestNotification 發送測試推播
// @Summary 發送測試推播
// @Description 向指定設備或用戶全部啟用設備發送測試通知
// @Tags 設備
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{} "發送結果"
// @Failure 401 {object} map[string]string "未認證"
// @Failure 404 {object} map[string]string "找不到啟用中的設備"
// @Failure 500 {object} map[string]string "全部發送失敗"
// @Router /devices/test [post]
func TestNotification(c *gin.Context) {
	userID, ok := getUserFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未認證")
		return
	}

	if deviceService == nil || deviceService.Gateway == nil {
		respondError(c, http.StatusInternalServerError, "device service not initialized")
		return
	}

	var req struct {
		DeviceID string `json:"deviceId"`
	}
	_ = c.ShouldBindJSON(&req)

	devices, err := deviceService.GetUserDevices(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	targets := make([]models.AndroidDevice, 0, len(devices))
	for _, device := range devices {
		if !device.IsActive {
			continue
		}
		if req.DeviceID != "" && device.DeviceID != req.DeviceID {
			continue
		}
		targets = append(targets, device)
	}

	if len(targets) == 0 {
		respondError(c, http.StatusNotFound, "No active Android devices found. Please register a device first.")
		return
	}

	successCount := 0
	failedCount := 0
	for _, device := range targets {
		if !device.HasValidFCMToken() {
			failedCount++
			continue
		}

		err := deviceService.Gateway.Send(c.Request.Context(), device.FCMToken,
			"EcoTrack Test Notification",
			"This is a test notification from EcoTrack! 🌱",
			map[string]string{
				"action":    "open_app",
				"screen":    "dashboard",
				"timestamp": time.Now().Format(time.RFC3339),
				"type":      "test",
			})
		if err != nil {
			failedCount++
			continue
		}
		successCount++
	}

	if successCount == 0 {
		respondError(c, http.StatusInternalServerError, "Failed to send test notification to any device.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"sent_to": successCount,
		"failed":  failedCount,
	})
}
