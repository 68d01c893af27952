package services

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/parpass/parpass-backend/v1/models"
	"gorm.io/gorm"
)

// CourseService handles the course catalog, reviews, plans, and statistics
type CourseService struct {
	db *gorm.DB
}

// NewCourseService creates a new course service
func NewCourseService(db *gorm.DB) *CourseService {
	return &CourseService{db: db}
}

// ListCourses lists active courses, optionally filtered by required tier,
// each joined with its review aggregate
func (s *CourseService) ListCourses(tierFilter *models.Tier) ([]models.CourseWithRating, error) {
	q := s.db.Where("is_active = ?", true).Order("name ASC")
	if tierFilter != nil {
		q = q.Where("tier_required = ?", *tierFilter)
	}
	var courses []models.Course
	if err := q.Find(&courses).Error; err != nil {
		return nil, fmt.Errorf("failed to load courses: %w", err)
	}

	result := make([]models.CourseWithRating, 0, len(courses))
	for _, course := range courses {
		summary, err := s.Rating(course.CourseID)
		if err != nil {
			return nil, err
		}
		result = append(result, models.CourseWithRating{
			Course:        course,
			AverageRating: summary.AverageRating,
			ReviewCount:   summary.ReviewCount,
		})
	}
	return result, nil
}

// GetCourse loads a single course by ID
func (s *CourseService) GetCourse(courseID string) (*models.CourseWithRating, error) {
	var course models.Course
	if err := s.db.First(&course, "course_id = ?", courseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Entity: "course", ID: courseID}
		}
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	summary, err := s.Rating(courseID)
	if err != nil {
		return nil, err
	}
	return &models.CourseWithRating{
		Course:        course,
		AverageRating: summary.AverageRating,
		ReviewCount:   summary.ReviewCount,
	}, nil
}

// CreateCourse adds a course to the catalog
func (s *CourseService) CreateCourse(req *models.CreateCourseRequest) (*models.Course, error) {
	if req.Name == "" || req.City == "" || req.State == "" {
		return nil, &ValidationError{Message: "name, city and state are required"}
	}
	if len(req.Name) > models.MaxNameLength {
		return nil, &ValidationError{Message: fmt.Sprintf("name must be at most %d characters", models.MaxNameLength)}
	}

	course := models.Course{
		CourseID:     "crs_" + uuid.New().String(),
		Name:         req.Name,
		Address:      req.Address,
		City:         req.City,
		State:        req.State,
		Zip:          req.Zip,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Holes:        models.DefaultHolesPlayed,
		TierRequired: models.TierCore,
		Phone:        req.Phone,
		IsActive:     true,
	}
	if req.Holes != nil {
		if *req.Holes <= 0 {
			return nil, &ValidationError{Message: "holes must be positive"}
		}
		course.Holes = *req.Holes
	}
	if req.TierRequired != nil {
		if *req.TierRequired != models.TierCore && *req.TierRequired != models.TierPremium {
			return nil, &ValidationError{Message: "tier_required must be core or premium"}
		}
		course.TierRequired = *req.TierRequired
	}

	if err := s.db.Create(&course).Error; err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}
	slog.Info("Course created", "courseID", course.CourseID, "name", course.Name)
	return &course, nil
}

// ListReviews lists a course's reviews with the reviewer's first name
func (s *CourseService) ListReviews(courseID string) ([]models.ReviewWithAuthor, error) {
	if _, err := s.GetCourse(courseID); err != nil {
		return nil, err
	}
	var reviews []models.ReviewWithAuthor
	err := s.db.Table("reviews").
		Select("reviews.review_id, reviews.rating, reviews.comment, reviews.created_at, members.first_name as member_first_name").
		Joins("JOIN members ON members.member_id = reviews.member_id").
		Where("reviews.course_id = ?", courseID).
		Order("reviews.created_at DESC").
		Scan(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}
	return reviews, nil
}

// UpsertReview creates or replaces the member's review of a course. Only
// members who have played the course may review it.
func (s *CourseService) UpsertReview(courseID string, req *models.CreateReviewRequest) (*models.Review, error) {
	if req.MemberID == "" {
		return nil, &ValidationError{Message: "member_id is required"}
	}
	if req.Rating < models.MinRating || req.Rating > models.MaxRating {
		return nil, &ValidationError{Message: fmt.Sprintf("rating must be between %d and %d", models.MinRating, models.MaxRating)}
	}
	if req.Comment != nil && len(*req.Comment) > models.MaxCommentLength {
		return nil, &ValidationError{Message: fmt.Sprintf("comment must be at most %d characters", models.MaxCommentLength)}
	}

	if _, err := loadMemberPlan(s.db, req.MemberID, false); err != nil {
		return nil, err
	}
	if _, err := s.GetCourse(courseID); err != nil {
		return nil, err
	}

	var played int64
	err := s.db.Model(&models.CheckIn{}).
		Where("member_id = ? AND course_id = ?", req.MemberID, courseID).
		Count(&played).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check play history: %w", err)
	}
	if played == 0 {
		return nil, &ForbiddenError{
			Reason:  models.ReasonNotPlayed,
			Message: "you can only review courses you have played",
		}
	}

	var review models.Review
	err = s.db.First(&review, "member_id = ? AND course_id = ?", req.MemberID, courseID).Error
	if err == gorm.ErrRecordNotFound {
		review = models.Review{
			ReviewID: "rev_" + uuid.New().String(),
			MemberID: req.MemberID,
			CourseID: courseID,
			Rating:   req.Rating,
			Comment:  req.Comment,
		}
		if err := s.db.Create(&review).Error; err != nil {
			return nil, fmt.Errorf("failed to create review: %w", err)
		}
		return &review, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load review: %w", err)
	}

	review.Rating = req.Rating
	review.Comment = req.Comment
	if err := s.db.Save(&review).Error; err != nil {
		return nil, fmt.Errorf("failed to update review: %w", err)
	}
	return &review, nil
}

// Rating aggregates a course's reviews
func (s *CourseService) Rating(courseID string) (*models.RatingSummary, error) {
	type agg struct {
		Avg   *float64
		Count int
	}
	var a agg
	err := s.db.Model(&models.Review{}).
		Select("AVG(rating) as avg, COUNT(*) as count").
		Where("course_id = ?", courseID).
		Scan(&a).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate reviews: %w", err)
	}
	return &models.RatingSummary{AverageRating: a.Avg, ReviewCount: a.Count}, nil
}

// ListHealthPlans lists active health plans joined with their tier
func (s *CourseService) ListHealthPlans() ([]models.HealthPlanDetail, error) {
	var plans []models.HealthPlan
	if err := s.db.Where("is_active = ?", true).Order("name ASC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to load health plans: %w", err)
	}

	result := make([]models.HealthPlanDetail, 0, len(plans))
	for _, plan := range plans {
		var tier models.PlanTier
		if err := s.db.First(&tier, "tier_id = ?", plan.PlanTierID).Error; err != nil {
			return nil, fmt.Errorf("failed to load plan tier: %w", err)
		}
		result = append(result, models.HealthPlanDetail{
			HealthPlan:    plan,
			TierName:      tier.Name,
			MonthlyRounds: tier.MonthlyRounds,
		})
	}
	return result, nil
}

// OverviewStats returns the platform-wide counters
func (s *CourseService) OverviewStats() (*models.OverviewStats, error) {
	var stats models.OverviewStats

	if err := s.db.Model(&models.Member{}).Where("status = ?", models.MemberStatusActive).Count(&stats.ActiveMembers).Error; err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	if err := s.db.Model(&models.Course{}).Where("is_active = ?", true).Count(&stats.TotalCourses).Error; err != nil {
		return nil, fmt.Errorf("failed to count courses: %w", err)
	}
	if err := s.db.Model(&models.CheckIn{}).Count(&stats.TotalRounds).Error; err != nil {
		return nil, fmt.Errorf("failed to count rounds: %w", err)
	}
	err := s.db.Model(&models.CheckIn{}).
		Where("checked_in_at >= ?", models.MonthStart(time.Now())).
		Count(&stats.RoundsThisMonth).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count rounds this month: %w", err)
	}
	return &stats, nil
}

// PopularCourses ranks courses by total rounds played
func (s *CourseService) PopularCourses(limit int) ([]models.PopularCourse, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	var rows []models.PopularCourse
	err := s.db.Table("check_ins").
		Select("courses.course_id, courses.name, courses.city, courses.tier_required, COUNT(*) as total_rounds, COUNT(DISTINCT check_ins.member_id) as unique_members").
		Joins("JOIN courses ON courses.course_id = check_ins.course_id").
		Group("courses.course_id, courses.name, courses.city, courses.tier_required").
		Order("total_rounds DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank courses: %w", err)
	}
	return rows, nil
}

// RoundsByMonth returns round counts for the trailing six calendar months,
// oldest first. Grouping happens here so the month arithmetic does not
// depend on dialect-specific date functions.
func (s *CourseService) RoundsByMonth() ([]models.MonthlyRoundCount, error) {
	now := time.Now()
	start := models.MonthStart(now).AddDate(0, -5, 0)

	var checkIns []models.CheckIn
	err := s.db.Where("checked_in_at >= ?", start).Find(&checkIns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load check-ins: %w", err)
	}

	counts := make(map[string]int)
	for _, c := range checkIns {
		counts[c.CheckedInAt.Format("2006-01")]++
	}

	months := make([]models.MonthlyRoundCount, 0, 6)
	for i := 0; i < 6; i++ {
		m := start.AddDate(0, i, 0).Format("2006-01")
		months = append(months, models.MonthlyRoundCount{Month: m, Rounds: counts[m]})
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month < months[j].Month })
	return months, nil
}

// TierBreakdown returns round counts grouped by the played course's tier
func (s *CourseService) TierBreakdown() ([]models.TierRoundCount, error) {
	var rows []models.TierRoundCount
	err := s.db.Table("check_ins").
		Select("courses.tier_required as tier, COUNT(*) as rounds").
		Joins("JOIN courses ON courses.course_id = check_ins.course_id").
		Group("courses.tier_required").
		Order("courses.tier_required ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to break down rounds by tier: %w", err)
	}
	return rows, nil
}

// TopMembers ranks members by total rounds played
func (s *CourseService) TopMembers(limit int) ([]models.TopMember, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	var rows []models.TopMember
	err := s.db.Table("check_ins").
		Select("members.member_id, members.first_name, members.last_name, health_plans.name as health_plan, plan_tiers.name as tier, COUNT(*) as total_rounds").
		Joins("JOIN members ON members.member_id = check_ins.member_id").
		Joins("JOIN health_plans ON health_plans.plan_id = members.health_plan_id").
		Joins("JOIN plan_tiers ON plan_tiers.tier_id = health_plans.plan_tier_id").
		Group("members.member_id, members.first_name, members.last_name, health_plans.name, plan_tiers.name").
		Order("total_rounds DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank members: %w", err)
	}
	return rows, nil
}
