package models

// User EcoTrack 用戶，僅保留通知子系統需要的欄位。
// 認證（登入/註冊）由外部系統負責，這裡只透過 API Key 識別身份。
type User struct {
	Name                string `gorm:"size:100" json:"name"`
	Email               string `gorm:"size:255;uniqueIndex" json:"email"`
	APIKey              string `gorm:"size:128;uniqueIndex" json:"-"`
	SustainabilityScore uint   `gorm:"default:0" json:"sustainability_score"`
	Streak              uint   `gorm:"default:0" json:"streak"`
	Base
}
