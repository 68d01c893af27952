package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/parpass/parpass-backend/v1/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupSQLiteTestDB creates an in-memory SQLite database for testing
func SetupSQLiteTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to SQLite test database: %v", err)
	}

	// Auto-migrate all models
	err = db.AutoMigrate(
		&models.PlanTier{},
		&models.HealthPlan{},
		&models.Member{},
		&models.Course{},
		&models.CheckIn{},
		&models.Review{},
		&models.Favorite{},
		&models.MemberPreference{},
		&models.NotificationLog{},
		&models.MemberNotification{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// SeedTier inserts a plan tier and returns it
func SeedTier(t *testing.T, db *gorm.DB, name models.Tier, monthlyRounds int) models.PlanTier {
	tier := models.PlanTier{
		TierID:        "tier_" + uuid.New().String(),
		Name:          name,
		MonthlyRounds: monthlyRounds,
	}
	if err := db.Create(&tier).Error; err != nil {
		t.Fatalf("Failed to seed plan tier: %v", err)
	}
	return tier
}

// SeedPlan inserts a health plan on the given tier and returns it
func SeedPlan(t *testing.T, db *gorm.DB, name string, tierID string) models.HealthPlan {
	plan := models.HealthPlan{
		PlanID:     "hp_" + uuid.New().String(),
		Name:       name,
		PlanTierID: tierID,
		IsActive:   true,
	}
	if err := db.Create(&plan).Error; err != nil {
		t.Fatalf("Failed to seed health plan: %v", err)
	}
	return plan
}

// SeedMember inserts an active member on the given plan and returns it
func SeedMember(t *testing.T, db *gorm.DB, email, code, planID string) models.Member {
	member := models.Member{
		MemberID:     "mem_" + uuid.New().String(),
		FirstName:    "Test",
		LastName:     "Member",
		Email:        email,
		ParpassCode:  code,
		Status:       models.MemberStatusActive,
		HealthPlanID: planID,
	}
	if err := db.Create(&member).Error; err != nil {
		t.Fatalf("Failed to seed member: %v", err)
	}
	return member
}

// SeedCourse inserts an active course and returns it
func SeedCourse(t *testing.T, db *gorm.DB, name string, tier models.Tier) models.Course {
	course := models.Course{
		CourseID:     "crs_" + uuid.New().String(),
		Name:         name,
		City:         "Austin",
		State:        "TX",
		Holes:        18,
		TierRequired: tier,
		IsActive:     true,
	}
	if err := db.Create(&course).Error; err != nil {
		t.Fatalf("Failed to seed course: %v", err)
	}
	return course
}

// SeedCheckIn inserts a check-in at the given time and returns it
func SeedCheckIn(t *testing.T, db *gorm.DB, memberID, courseID string, at time.Time) models.CheckIn {
	checkIn := models.CheckIn{
		CheckInID:   "chk_" + uuid.New().String(),
		MemberID:    memberID,
		CourseID:    courseID,
		HolesPlayed: 18,
		CheckedInAt: at,
	}
	if err := db.Create(&checkIn).Error; err != nil {
		t.Fatalf("Failed to seed check-in: %v", err)
	}
	return checkIn
}

// SeedPreference inserts preferences with notifications enabled and the
// given push token, and returns the record
func SeedPreference(t *testing.T, db *gorm.DB, memberID string, pushToken *string) models.MemberPreference {
	pref := models.MemberPreference{
		MemberID:             memberID,
		NotificationsEnabled: true,
		PushToken:            pushToken,
	}
	if err := db.Create(&pref).Error; err != nil {
		t.Fatalf("Failed to seed preferences: %v", err)
	}
	return pref
}
