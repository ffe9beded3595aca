package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/saish660/Ecotrack-App/models"
	"github.com/saish660/Ecotrack-App/services"
	"github.com/saish660/Ecotrack-App/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

// fakeGateway 控制器測試用的推播閘道
type fakeGateway struct {
	sendErr    error
	sentTokens []string
}

func (g *fakeGateway) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if g.sendErr != nil {
		return g.sendErr
	}
	g.sentTokens = append(g.sentTokens, token)
	return nil
}

func (g *fakeGateway) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (*services.MulticastResult, error) {
	if g.sendErr != nil {
		return &services.MulticastResult{FailureCount: len(tokens), FailedTokens: tokens}, g.sendErr
	}
	g.sentTokens = append(g.sentTokens, tokens...)
	return &services.MulticastResult{SuccessCount: len(tokens), FailedTokens: []string{}}, nil
}

func (g *fakeGateway) ValidateToken(ctx context.Context, token string) bool {
	return token != ""
}

func setupDispatchTest(t *testing.T) (*gorm.DB, *fakeGateway, *gin.Engine) {
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	gateway := &fakeGateway{}
	svc := services.NewDispatchService(db, gateway, services.StaticComposer{})
	SetupDispatchController(svc, "cron-secret", time.UTC)

	router := gin.New()
	router.POST("/api/cron/dispatch", CronDispatch)
	router.GET("/api/cron/dispatch", CronDispatch)

	return db, gateway, router
}

func TestCronDispatch_Unauthorized(t *testing.T) {
	db, gateway, router := setupDispatchTest(t)

	user := testutil.CreateTestUser(t, db, "cron@example.com")
	slot := time.Now().UTC().Format(models.SlotTimeLayout)
	device := testutil.CreateTestDevice(t, db, user, "device-1", "token-1", slot)

	t.Run("缺少密鑰", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/cron/dispatch", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Unauthorized")
	})

	t.Run("密鑰錯誤", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/cron/dispatch?token=wrong", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("拒絕請求無任何副作用", func(t *testing.T) {
		assert.Empty(t, gateway.sentTokens)

		var updated models.AndroidDevice
		assert.NoError(t, db.First(&updated, "id = ?", device.ID).Error)
		assert.Nil(t, updated.LastSentDate)
		assert.Equal(t, uint(0), updated.TotalNotificationsSent)
	})
}

func TestCronDispatch_QueryToken(t *testing.T) {
	_, _, router := setupDispatchTest(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/cron/dispatch?token=cron-secret", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var report services.DispatchReport
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "success", report.Status)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, report.Date)
	assert.Regexp(t, `^\d{2}:\d{2}$`, report.Time)
}

func TestCronDispatch_BearerToken(t *testing.T) {
	_, _, router := setupDispatchTest(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/cron/dispatch", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var report services.DispatchReport
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "success", report.Status)
}
