package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
)

// GenerateAPIKey 產生 256-bit 隨機 API Key（URL-safe base64）
func GenerateAPIKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// SecretMatches 比對排程觸發端點的共享密鑰，使用常數時間比較。
// expected 為空視為未設定，一律拒絕。
func SecretMatches(provided, expected string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
