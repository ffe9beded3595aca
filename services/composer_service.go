package services

import (
	"context"
	"log"
	"strings"

	"github.com/saish660/Ecotrack-App/models"

	"google.golang.org/genai"
)

// 產生失敗時的固定備援文案，組稿失敗絕不能讓整批發送中斷
const (
	FallbackReminderBody = "Hey user!, time to track your footprints 🌱"
	DailyReminderTitle   = "EcoTrack Reminder"
)

const geminiModel = "gemini-2.5-flash"

const dailyReminderPrompt = `
Generate 1 single short, catchy, and engaging notification message strictly to encourage users to fill out the EcoTrack check-in form.
EcoTrack is an app that helps users track their sustainability habits and promotes eco-friendly behavior. It includes features like:
- Daily surveys to track eco actions 🌱
- Personalized sustainability score 📊
- AI chatbot to guide users 🤖
- Personalized suggestions for greener living 💡
- Achievements for completing surveys and taking eco-friendly actions 🎁
- Daily streaks kept alive by submitting check-in everyday
Ensure the notifications are:
- under 60 characters
- Friendly, heartwarming, motivating, and aligned with EcoTrack's eco-conscious mission
- Include clear call-to-actions like "Share your thoughts", "fill now", "complete now"
- Include relevant emojis for engagement
- Highlight rewards or benefits if possible
Give the message a human touch, with some warmth, inviting gesture and showing that you care for the user.
`

// Composer 組出一則通知的標題與內文。
// 任何底層錯誤都在內部吸收，永遠回傳可用的文案
type Composer interface {
	Compose(ctx context.Context, category string) (title, body string)
}

// StaticComposer 回傳固定文案，用於未設定生成式服務時
type StaticComposer struct{}

func (StaticComposer) Compose(ctx context.Context, category string) (string, string) {
	return DailyReminderTitle, FallbackReminderBody
}

// GeminiComposer 呼叫 Gemini 產生每日提醒文案，失敗時退回固定文案
type GeminiComposer struct {
	client *genai.Client
}

// NewGeminiComposer 建立 Gemini 組稿服務
func NewGeminiComposer(ctx context.Context, apiKey string) (*GeminiComposer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiComposer{client: client}, nil
}

func (g *GeminiComposer) Compose(ctx context.Context, category string) (string, string) {
	if category != models.CategoryDailyReminder || g.client == nil {
		return DailyReminderTitle, FallbackReminderBody
	}

	resp, err := g.client.Models.GenerateContent(ctx, geminiModel, genai.Text(dailyReminderPrompt), nil)
	if err != nil {
		log.Printf("Gemini generation failed, using fallback: %v", err)
		return DailyReminderTitle, FallbackReminderBody
	}

	body := sanitizeBody(resp.Text())
	if body == "" {
		return DailyReminderTitle, FallbackReminderBody
	}
	return DailyReminderTitle, body
}

// sanitizeBody 去除模型輸出常見的引號與空白
func sanitizeBody(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`")
	// 只取第一行，模型偶爾會附帶說明文字
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}
	return s
}
