package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/saish660/Ecotrack-App/auth"
	"github.com/saish660/Ecotrack-App/services"

	"github.com/gin-gonic/gin"
)

var (
	dispatchService *services.DispatchService
	cronSecret      string
	serverLocation  *time.Location
)

// SetupDispatchController 初始化調度控制器。
// location 為伺服器時區；排程比對一律使用伺服器當地時間
func SetupDispatchController(svc *services.DispatchService, secret string, location *time.Location) {
	dispatchService = svc
	cronSecret = secret
	serverLocation = location
}

func extractCronSecret(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// CronDispatch 排程推播觸發端點
// @Summary 觸發每日提醒調度
// @Description 由外部排程器每分鐘呼叫，發送當前時刻到期的每日提醒。以共享密鑰保護
// @Tags 調度
// @Accept json
// @Produce json
// @Param token query string false "共享密鑰"
// @Param Authorization header string false "共享密鑰 (格式: Bearer {secret})"
// @Success 200 {object} services.DispatchReport "調度結果"
// @Failure 401 {object} map[string]string "密鑰錯誤"
// @Failure 500 {object} map[string]string "調度器未初始化"
// @Router /api/cron/dispatch [post]
func CronDispatch(c *gin.Context) {
	if !auth.SecretMatches(extractCronSecret(c), cronSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Unauthorized"})
		return
	}

	if dispatchService == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "dispatch service not initialized"})
		return
	}

	now := time.Now()
	if serverLocation != nil {
		now = now.In(serverLocation)
	}

	report := dispatchService.Run(c.Request.Context(), now)
	c.JSON(http.StatusOK, report)
}
