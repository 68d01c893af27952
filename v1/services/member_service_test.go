package services

import (
	"errors"
	"testing"
	"time"

	"github.com/parpass/parpass-backend/v1/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnroll(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	tier := SeedTier(t, db, models.TierPremium, 8)
	plan := SeedPlan(t, db, "Premium Plan", tier.TierID)

	svc := NewMemberService(db, NewUsageService(db))
	detail, err := svc.Enroll(&models.CreateMemberRequest{
		HealthPlanID: plan.PlanID,
		FirstName:    "Alice",
		LastName:     "Nguyen",
		Email:        "Alice@Example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, "PP00001", detail.ParpassCode)
	assert.Equal(t, "alice@example.com", detail.Email)
	assert.Equal(t, models.MemberStatusActive, detail.Status)
	assert.Equal(t, models.TierPremium, detail.Tier)
	assert.Equal(t, 8, detail.MonthlyRounds)
	assert.Equal(t, "Premium Plan", detail.HealthPlanName)

	// Next enrollment takes the next code in sequence
	second, err := svc.Enroll(&models.CreateMemberRequest{
		HealthPlanID: plan.PlanID,
		FirstName:    "Bob",
		LastName:     "Smith",
		Email:        "bob@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "PP00002", second.ParpassCode)
}

func TestClassifyMemberConflict(t *testing.T) {
	// SQLite message shapes
	conflict := classifyMemberConflict(errors.New("UNIQUE constraint failed: members.email"))
	require.NotNil(t, conflict)
	assert.Contains(t, conflict.Message, "email")

	conflict = classifyMemberConflict(errors.New("UNIQUE constraint failed: members.parpass_code"))
	require.NotNil(t, conflict)
	assert.Contains(t, conflict.Message, "membership code")

	// Postgres message shape names the violated index
	conflict = classifyMemberConflict(errors.New(`duplicate key value violates unique constraint "idx_members_parpass_code"`))
	require.NotNil(t, conflict)
	assert.Contains(t, conflict.Message, "membership code")

	assert.Nil(t, classifyMemberConflict(errors.New("connection reset by peer")))
}

func TestEnroll_Validation(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	tier := SeedTier(t, db, models.TierCore, 4)
	plan := SeedPlan(t, db, "Core Plan", tier.TierID)
	svc := NewMemberService(db, NewUsageService(db))

	var validation *ValidationError
	_, err := svc.Enroll(&models.CreateMemberRequest{HealthPlanID: plan.PlanID})
	assert.True(t, errors.As(err, &validation))

	_, err = svc.Enroll(&models.CreateMemberRequest{
		HealthPlanID: plan.PlanID, FirstName: "A", LastName: "B", Email: "not-an-email",
	})
	assert.True(t, errors.As(err, &validation))

	var notFound *NotFoundError
	_, err = svc.Enroll(&models.CreateMemberRequest{
		HealthPlanID: "hp_missing", FirstName: "A", LastName: "B", Email: "a@b.com",
	})
	assert.True(t, errors.As(err, &notFound))
}

func TestEnroll_DuplicateEmail(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	tier := SeedTier(t, db, models.TierCore, 4)
	plan := SeedPlan(t, db, "Core Plan", tier.TierID)
	svc := NewMemberService(db, NewUsageService(db))

	_, err := svc.Enroll(&models.CreateMemberRequest{
		HealthPlanID: plan.PlanID, FirstName: "A", LastName: "B", Email: "dup@example.com",
	})
	require.NoError(t, err)

	var conflict *ConflictError
	_, err = svc.Enroll(&models.CreateMemberRequest{
		HealthPlanID: plan.PlanID, FirstName: "C", LastName: "D", Email: "dup@example.com",
	})
	assert.True(t, errors.As(err, &conflict))
}

func TestGetByCode(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	tier := SeedTier(t, db, models.TierCore, 4)
	plan := SeedPlan(t, db, "Core Plan", tier.TierID)
	member := SeedMember(t, db, "alice@example.com", "PP0007", plan.PlanID)

	svc := NewMemberService(db, NewUsageService(db))

	detail, err := svc.GetByCode("pp0007")
	require.NoError(t, err)
	assert.Equal(t, member.MemberID, detail.MemberID)
	assert.Equal(t, models.TierCore, detail.Tier)
	assert.Equal(t, 4, detail.MonthlyRounds)

	var notFound *NotFoundError
	_, err = svc.GetByCode("PP9999")
	assert.True(t, errors.As(err, &notFound))
}

func TestUsageAndHistory(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	tier := SeedTier(t, db, models.TierCore, 4)
	plan := SeedPlan(t, db, "Core Plan", tier.TierID)
	member := SeedMember(t, db, "alice@example.com", "PP0001", plan.PlanID)
	course := SeedCourse(t, db, "Cedar Creek", models.TierCore)

	now := time.Now()
	SeedCheckIn(t, db, member.MemberID, course.CourseID, now.Add(-2*time.Hour))
	SeedCheckIn(t, db, member.MemberID, course.CourseID, now.Add(-1*time.Hour))

	svc := NewMemberService(db, NewUsageService(db))

	usage, err := svc.Usage(member.MemberID)
	require.NoError(t, err)
	assert.Equal(t, 2, usage.RoundsUsed)

	history, err := svc.History(member.MemberID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	// Newest first
	assert.True(t, history[0].CheckedInAt.After(history[1].CheckedInAt))
	assert.Equal(t, "Cedar Creek", history[0].CourseName)
	assert.Equal(t, "Austin", history[0].City)

	var notFound *NotFoundError
	_, err = svc.Usage("mem_missing")
	assert.True(t, errors.As(err, &notFound))
}

func TestFavorites(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	tier := SeedTier(t, db, models.TierCore, 4)
	plan := SeedPlan(t, db, "Core Plan", tier.TierID)
	member := SeedMember(t, db, "alice@example.com", "PP0001", plan.PlanID)
	course := SeedCourse(t, db, "Cedar Creek", models.TierCore)

	svc := NewMemberService(db, NewUsageService(db))

	require.NoError(t, svc.AddFavorite(member.MemberID, course.CourseID))
	// Idempotent
	require.NoError(t, svc.AddFavorite(member.MemberID, course.CourseID))

	favorites, err := svc.Favorites(member.MemberID)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, course.CourseID, favorites[0].CourseID)

	require.NoError(t, svc.RemoveFavorite(member.MemberID, course.CourseID))

	favorites, err = svc.Favorites(member.MemberID)
	require.NoError(t, err)
	assert.Empty(t, favorites)

	var notFound *NotFoundError
	err = svc.RemoveFavorite(member.MemberID, course.CourseID)
	assert.True(t, errors.As(err, &notFound))

	err = svc.AddFavorite(member.MemberID, "crs_missing")
	assert.True(t, errors.As(err, &notFound))
}

func TestPreferencesUpsert(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	tier := SeedTier(t, db, models.TierCore, 4)
	plan := SeedPlan(t, db, "Core Plan", tier.TierID)
	member := SeedMember(t, db, "alice@example.com", "PP0001", plan.PlanID)

	svc := NewMemberService(db, NewUsageService(db))

	// Never submitted: empty record, onboarding incomplete
	pref, err := svc.GetPreferences(member.MemberID)
	require.NoError(t, err)
	assert.Nil(t, pref.SkillLevel)

	status, err := svc.OnboardingStatus(member.MemberID)
	require.NoError(t, err)
	assert.False(t, status.Completed)

	skill := "beginner"
	enabled := true
	token := "ExponentPushToken[aaa]"
	pref, err = svc.UpdatePreferences(member.MemberID, &models.UpdatePreferencesRequest{
		SkillLevel:           &skill,
		Goals:                []string{"improve_swing"},
		NotificationsEnabled: &enabled,
		PushToken:            &token,
	})
	require.NoError(t, err)
	require.NotNil(t, pref.SkillLevel)
	assert.Equal(t, "beginner", *pref.SkillLevel)
	assert.NotNil(t, pref.OnboardingCompletedAt)

	// Absent fields preserve stored values
	freq := "weekly"
	pref, err = svc.UpdatePreferences(member.MemberID, &models.UpdatePreferencesRequest{
		PlayFrequency: &freq,
	})
	require.NoError(t, err)
	require.NotNil(t, pref.SkillLevel)
	assert.Equal(t, "beginner", *pref.SkillLevel)
	assert.Equal(t, []string{"improve_swing"}, []string(pref.Goals))
	require.NotNil(t, pref.PushToken)
	assert.Equal(t, token, *pref.PushToken)

	status, err = svc.OnboardingStatus(member.MemberID)
	require.NoError(t, err)
	assert.True(t, status.Completed)

	var notFound *NotFoundError
	_, err = svc.UpdatePreferences("mem_missing", &models.UpdatePreferencesRequest{})
	assert.True(t, errors.As(err, &notFound))
}
