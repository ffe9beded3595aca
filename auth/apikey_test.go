package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateAPIKey(t *testing.T) {
	key, err := GenerateAPIKey()
	assert.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Len(t, key, 43)
}

func TestGenerateAPIKey_Uniqueness(t *testing.T) {
	keys := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateAPIKey()
		assert.NoError(t, err)
		assert.False(t, keys[key], "generated duplicate key")
		keys[key] = true
	}
}

func TestSecretMatches(t *testing.T) {
	t.Run("密鑰相符", func(t *testing.T) {
		assert.True(t, SecretMatches("secret-123", "secret-123"))
	})

	t.Run("密鑰不符", func(t *testing.T) {
		assert.False(t, SecretMatches("wrong", "secret-123"))
	})

	t.Run("未設定密鑰一律拒絕", func(t *testing.T) {
		assert.False(t, SecretMatches("", ""))
		assert.False(t, SecretMatches("anything", ""))
	})
}
