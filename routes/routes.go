package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/saish660/Ecotrack-App/auth"
	"github.com/saish660/Ecotrack-App/controllers"
)

func SetupRouter(Router *gin.Engine) {
	Router.GET("/Hello", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "Hello, RESTful API!"})
	})

	// 排程觸發端點，使用共享密鑰驗證
	cron := Router.Group("/api/cron")
	{
		cron.POST("/dispatch", controllers.CronDispatch)
		cron.GET("/dispatch", controllers.CronDispatch)
	}

	protected := Router.Group("/api/v1")
	protected.Use(auth.APIKeyMiddleware())
	{
		protected.GET("/auth/verify-key", controllers.VerifyAPIKey)
		protected.POST("/auth/regenerate-key", controllers.RegenerateAPIKey)

		// 設備管理 API
		protected.POST("/devices/register", controllers.RegisterAndroidDevice)
		protected.POST("/devices/unregister", controllers.UnregisterAndroidDevice)
		protected.POST("/devices/settings", controllers.UpdateNotificationSettings)
		protected.GET("/devices", controllers.GetAndroidDevices)
		protected.POST("/devices/test", controllers.TestNotification)

		// 推播 API
		protected.POST("/notifications/achievement", controllers.SendAchievementNotification)
		protected.POST("/communities/:id/notify", controllers.NotifyCommunity)

		// 發送記錄 API
		protected.GET("/notifications/logs", controllers.GetNotificationLogs)
		protected.GET("/notifications/logs/stats", controllers.GetNotificationLogStats)
	}
}
