package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/saish660/Ecotrack-App/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetNotificationLogs returns notification logs with filtering and pagination
// @Summary 查詢發送記錄
// @Description 查詢當前用戶的推播發送記錄，支援多條件篩選和分頁
// @Tags 通知日誌
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "狀態篩選 (SENT, FAILED)"
// @Param category query string false "類別篩選 (daily_reminder, community, achievement, system)"
// @Param device_id query string false "設備篩選 (UUID)"
// @Param start_date query string false "開始時間 (RFC3339格式)"
// @Param end_date query string false "結束時間 (RFC3339格式)"
// @Param page query int false "頁碼" default(1)
// @Param page_size query int false "每頁數量" default(20)
// @Success 200 {object} map[string]interface{} "查詢成功"
// @Failure 401 {object} map[string]string "未認證"
// @Failure 500 {object} map[string]string "服務器錯誤"
// @Router /notifications/logs [get]
func GetNotificationLogs(c *gin.Context) {
	userID, ok := getUserFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未認證")
		return
	}

	if !checkDB(c) {
		return
	}

	query := db.WithContext(c.Request.Context()).Where("user_id = ?", userID)

	// 狀態篩選
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	// 類別篩選
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	// 設備篩選
	if deviceID := c.Query("device_id"); deviceID != "" {
		parsed, err := uuid.Parse(deviceID)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid device_id")
			return
		}
		query = query.Where("device_id = ?", parsed)
	}

	// 時間範圍篩選
	if startDate := c.Query("start_date"); startDate != "" {
		if parsedTime, err := time.Parse(time.RFC3339, startDate); err == nil {
			query = query.Where("creation_time >= ?", parsedTime)
		}
	}

	if endDate := c.Query("end_date"); endDate != "" {
		if parsedTime, err := time.Parse(time.RFC3339, endDate); err == nil {
			query = query.Where("creation_time <= ?", parsedTime)
		}
	}

	// 分頁參數
	page := 1
	pageSize := 20
	if p, ok := c.GetQuery("page"); ok {
		if val, err := parsePositiveInt(p); err == nil && val > 0 {
			page = val
		}
	}
	if ps, ok := c.GetQuery("page_size"); ok {
		if val, err := parsePositiveInt(ps); err == nil && val > 0 && val <= 100 {
			pageSize = val
		}
	}

	// 計算總數
	var total int64
	if err := query.Model(&models.NotificationLog{}).Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	// 查詢記錄
	var logs []models.NotificationLog
	offset := (page - 1) * pageSize
	if err := query.Order("creation_time DESC").Offset(offset).Limit(pageSize).Find(&logs).Error; err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": logs,
		"pagination": gin.H{
			"page":       page,
			"page_size":  pageSize,
			"total":      total,
			"total_page": (total + int64(pageSize) - 1) / int64(pageSize),
		},
	})
}

// GetNotificationLogStats returns statistics for notification logs
// @Summary 統計資訊
// @Description 獲取當前用戶推播發送記錄的統計資訊，包括成功率、失敗率和各類別使用量
// @Tags 通知日誌
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param start_date query string false "開始時間 (RFC3339格式)"
// @Param end_date query string false "結束時間 (RFC3339格式)"
// @Success 200 {object} map[string]interface{} "統計成功"
// @Failure 401 {object} map[string]string "未認證"
// @Failure 500 {object} map[string]string "服務器錯誤"
// @Router /notifications/logs/stats [get]
func GetNotificationLogStats(c *gin.Context) {
	userID, ok := getUserFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未認證")
		return
	}

	if !checkDB(c) {
		return
	}

	// 每個彙總各自重建查詢條件，避免 GROUP BY 子句在鏈上累積
	baseQuery := func() *gorm.DB {
		query := db.WithContext(c.Request.Context()).Model(&models.NotificationLog{}).Where("user_id = ?", userID)

		// 時間範圍篩選
		if startDate := c.Query("start_date"); startDate != "" {
			if parsedTime, err := time.Parse(time.RFC3339, startDate); err == nil {
				query = query.Where("creation_time >= ?", parsedTime)
			}
		}

		if endDate := c.Query("end_date"); endDate != "" {
			if parsedTime, err := time.Parse(time.RFC3339, endDate); err == nil {
				query = query.Where("creation_time <= ?", parsedTime)
			}
		}

		return query
	}

	// 計算總數
	var total int64
	if err := baseQuery().Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	// 按狀態統計
	type StatusCount struct {
		Status string
		Count  int64
	}
	var statusCounts []StatusCount
	if err := baseQuery().Select("status, COUNT(*) as count").Group("status").Scan(&statusCounts).Error; err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	statusStats := make(map[string]int64)
	for _, sc := range statusCounts {
		statusStats[sc.Status] = sc.Count
	}

	// 按類別統計
	type CategoryCount struct {
		Category string
		Count    int64
	}
	var categoryCounts []CategoryCount
	if err := baseQuery().Select("category, COUNT(*) as count").Group("category").Scan(&categoryCounts).Error; err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	categoryStats := make(map[string]int64)
	for _, cc := range categoryCounts {
		categoryStats[cc.Category] = cc.Count
	}

	// 計算成功率和失敗率
	sent := statusStats[models.StatusSent]
	failed := statusStats[models.StatusFailed]
	successRate := 0.0
	failureRate := 0.0
	if total > 0 {
		successRate = float64(sent) / float64(total) * 100
		failureRate = float64(failed) / float64(total) * 100
	}

	c.JSON(http.StatusOK, gin.H{
		"total":          total,
		"success_rate":   successRate,
		"failure_rate":   failureRate,
		"status_stats":   statusStats,
		"category_stats": categoryStats,
	})
}

// parsePositiveInt parses a string to a positive integer
func parsePositiveInt(s string) (int, error) {
	var val int
	if _, err := fmt.Sscanf(s, "%d", &val); err != nil {
		return 0, err
	}
	return val, nil
}
