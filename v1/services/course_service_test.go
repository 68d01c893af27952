package services

import (
	"errors"
	"testing"
	"time"

	"github.com/parpass/parpass-backend/v1/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetCourse(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewCourseService(db)

	premium := models.TierPremium
	nine := 9
	course, err := svc.CreateCourse(&models.CreateCourseRequest{
		Name:         "Championship Links",
		City:         "Dallas",
		State:        "TX",
		Holes:        &nine,
		TierRequired: &premium,
	})
	require.NoError(t, err)
	assert.Equal(t, 9, course.Holes)
	assert.Equal(t, models.TierPremium, course.TierRequired)
	assert.True(t, course.IsActive)

	got, err := svc.GetCourse(course.CourseID)
	require.NoError(t, err)
	assert.Equal(t, course.Name, got.Name)
	assert.Nil(t, got.AverageRating)
	assert.Equal(t, 0, got.ReviewCount)

	var notFound *NotFoundError
	_, err = svc.GetCourse("crs_missing")
	assert.True(t, errors.As(err, &notFound))
}

func TestCreateCourse_Defaults(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewCourseService(db)

	course, err := svc.CreateCourse(&models.CreateCourseRequest{
		Name: "Cedar Creek", City: "Austin", State: "TX",
	})
	require.NoError(t, err)
	assert.Equal(t, 18, course.Holes)
	assert.Equal(t, models.TierCore, course.TierRequired)
}

func TestCreateCourse_Validation(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewCourseService(db)

	var validation *ValidationError
	_, err := svc.CreateCourse(&models.CreateCourseRequest{Name: "No Location"})
	assert.True(t, errors.As(err, &validation))

	bad := models.Tier("platinum")
	_, err = svc.CreateCourse(&models.CreateCourseRequest{
		Name: "X", City: "Y", State: "Z", TierRequired: &bad,
	})
	assert.True(t, errors.As(err, &validation))
}

func TestListCourses_TierFilterAndRatings(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	tier := SeedTier(t, db, models.TierCore, 4)
	plan := SeedPlan(t, db, "Core Plan", tier.TierID)
	member := SeedMember(t, db, "alice@example.com", "PP0001", plan.PlanID)
	core := SeedCourse(t, db, "Cedar Creek", models.TierCore)
	SeedCourse(t, db, "Championship Links", models.TierPremium)

	SeedCheckIn(t, db, member.MemberID, core.CourseID, time.Now())

	svc := NewCourseService(db)
	_, err := svc.UpsertReview(core.CourseID, &models.CreateReviewRequest{
		MemberID: member.MemberID, Rating: 4,
	})
	require.NoError(t, err)

	all, err := svc.ListCourses(nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	wantCore := models.TierCore
	coreOnly, err := svc.ListCourses(&wantCore)
	require.NoError(t, err)
	require.Len(t, coreOnly, 1)
	assert.Equal(t, core.CourseID, coreOnly[0].CourseID)
	require.NotNil(t, coreOnly[0].AverageRating)
	assert.Equal(t, 4.0, *coreOnly[0].AverageRating)
	assert.Equal(t, 1, coreOnly[0].ReviewCount)
}

func TestUpsertReview_RequiresPlay(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	tier := SeedTier(t, db, models.TierCore, 4)
	plan := SeedPlan(t, db, "Core Plan", tier.TierID)
	member := SeedMember(t, db, "alice@example.com", "PP0001", plan.PlanID)
	course := SeedCourse(t, db, "Cedar Creek", models.TierCore)

	svc := NewCourseService(db)

	_, err := svc.UpsertReview(course.CourseID, &models.CreateReviewRequest{
		MemberID: member.MemberID, Rating: 5,
	})
	var forbidden *ForbiddenError
	require.True(t, errors.As(err, &forbidden))
	assert.Equal(t, models.ReasonNotPlayed, forbidden.Reason)

	SeedCheckIn(t, db, member.MemberID, course.CourseID, time.Now())

	review, err := svc.UpsertReview(course.CourseID, &models.CreateReviewRequest{
		MemberID: member.MemberID, Rating: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, review.Rating)

	// A second submission replaces the first, never adds a row
	comment := "Greens in great shape"
	updated, err := svc.UpsertReview(course.CourseID, &models.CreateReviewRequest{
		MemberID: member.MemberID, Rating: 3, Comment: &comment,
	})
	require.NoError(t, err)
	assert.Equal(t, review.ReviewID, updated.ReviewID)
	assert.Equal(t, 3, updated.Rating)

	var count int64
	db.Model(&models.Review{}).Count(&count)
	assert.Equal(t, int64(1), count)

	summary, err := svc.Rating(course.CourseID)
	require.NoError(t, err)
	require.NotNil(t, summary.AverageRating)
	assert.Equal(t, 3.0, *summary.AverageRating)
	assert.Equal(t, 1, summary.ReviewCount)
}

func TestUpsertReview_Validation(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewCourseService(db)

	var validation *ValidationError
	_, err := svc.UpsertReview("crs_x", &models.CreateReviewRequest{MemberID: "mem_x", Rating: 0})
	assert.True(t, errors.As(err, &validation))

	_, err = svc.UpsertReview("crs_x", &models.CreateReviewRequest{MemberID: "mem_x", Rating: 6})
	assert.True(t, errors.As(err, &validation))

	_, err = svc.UpsertReview("crs_x", &models.CreateReviewRequest{Rating: 3})
	assert.True(t, errors.As(err, &validation))
}

func TestListReviews_WithAuthor(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	tier := SeedTier(t, db, models.TierCore, 4)
	plan := SeedPlan(t, db, "Core Plan", tier.TierID)
	member := SeedMember(t, db, "alice@example.com", "PP0001", plan.PlanID)
	course := SeedCourse(t, db, "Cedar Creek", models.TierCore)
	SeedCheckIn(t, db, member.MemberID, course.CourseID, time.Now())

	svc := NewCourseService(db)
	_, err := svc.UpsertReview(course.CourseID, &models.CreateReviewRequest{
		MemberID: member.MemberID, Rating: 4,
	})
	require.NoError(t, err)

	reviews, err := svc.ListReviews(course.CourseID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "Test", reviews[0].MemberFirstName)
	assert.Equal(t, 4, reviews[0].Rating)
}

func TestListHealthPlans(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	tier := SeedTier(t, db, models.TierPremium, 8)
	SeedPlan(t, db, "Premium Plan", tier.TierID)
	inactive := SeedPlan(t, db, "Legacy Plan", tier.TierID)
	db.Model(&inactive).Update("is_active", false)

	svc := NewCourseService(db)
	plans, err := svc.ListHealthPlans()
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "Premium Plan", plans[0].Name)
	assert.Equal(t, models.TierPremium, plans[0].TierName)
	assert.Equal(t, 8, plans[0].MonthlyRounds)
}

func TestStats(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	coreTier := SeedTier(t, db, models.TierCore, 4)
	premiumTier := SeedTier(t, db, models.TierPremium, 8)
	corePlan := SeedPlan(t, db, "Core Plan", coreTier.TierID)
	premiumPlan := SeedPlan(t, db, "Premium Plan", premiumTier.TierID)
	alice := SeedMember(t, db, "alice@example.com", "PP0001", corePlan.PlanID)
	bob := SeedMember(t, db, "bob@example.com", "PP0002", premiumPlan.PlanID)
	coreCourse := SeedCourse(t, db, "Cedar Creek", models.TierCore)
	premiumCourse := SeedCourse(t, db, "Championship Links", models.TierPremium)

	now := time.Now()
	SeedCheckIn(t, db, alice.MemberID, coreCourse.CourseID, now)
	SeedCheckIn(t, db, alice.MemberID, coreCourse.CourseID, now)
	SeedCheckIn(t, db, alice.MemberID, coreCourse.CourseID, now)
	SeedCheckIn(t, db, bob.MemberID, premiumCourse.CourseID, now)
	SeedCheckIn(t, db, bob.MemberID, coreCourse.CourseID, models.MonthStart(now).AddDate(0, -2, 0).Add(time.Hour))

	svc := NewCourseService(db)

	overview, err := svc.OverviewStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), overview.ActiveMembers)
	assert.Equal(t, int64(2), overview.TotalCourses)
	assert.Equal(t, int64(5), overview.TotalRounds)
	assert.Equal(t, int64(4), overview.RoundsThisMonth)

	popular, err := svc.PopularCourses(0)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, coreCourse.CourseID, popular[0].CourseID)
	assert.Equal(t, 4, popular[0].TotalRounds)
	assert.Equal(t, 2, popular[0].UniqueMembers)

	months, err := svc.RoundsByMonth()
	require.NoError(t, err)
	require.Len(t, months, 6)
	assert.Equal(t, 4, months[5].Rounds)
	assert.Equal(t, 1, months[3].Rounds)

	tiers, err := svc.TierBreakdown()
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	byTier := map[models.Tier]int{}
	for _, row := range tiers {
		byTier[row.Tier] = row.Rounds
	}
	assert.Equal(t, 4, byTier[models.TierCore])
	assert.Equal(t, 1, byTier[models.TierPremium])

	top, err := svc.TopMembers(0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, alice.MemberID, top[0].MemberID)
	assert.Equal(t, 3, top[0].TotalRounds)
	assert.Equal(t, "Premium Plan", top[1].HealthPlan)
}
