package testutil

import (
	"fmt"
	"testing"

	"github.com/saish660/Ecotrack-App/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Auto migrate the schema
	err = db.AutoMigrate(
		&models.User{},
		&models.AndroidDevice{},
		&models.NotificationLog{},
		&models.Community{},
		&models.CommunityMembership{},
		&models.CommunityMessage{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB cleans up test database
func CleanupTestDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

// CreateTestUser creates a test user in the database
func CreateTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	user := &models.User{
		Name:   "Test User",
		Email:  email,
		APIKey: "test-key-" + email,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// CreateTestDevice creates an active test device with daily reminders enabled
func CreateTestDevice(t *testing.T, db *gorm.DB, user *models.User, deviceID, fcmToken, notificationTime string) *models.AndroidDevice {
	device := &models.AndroidDevice{
		UserID:                          user.ID,
		DeviceID:                        deviceID,
		FCMToken:                        fcmToken,
		DeviceName:                      "Test Device",
		NotificationTime:                notificationTime,
		Timezone:                        "UTC",
		IsActive:                        true,
		DailyRemindersEnabled:           true,
		CommunityNotificationsEnabled:   true,
		AchievementNotificationsEnabled: true,
		SystemNotificationsEnabled:      true,
	}

	if err := db.Create(device).Error; err != nil {
		t.Fatalf("Failed to create test device: %v", err)
	}

	return device
}
