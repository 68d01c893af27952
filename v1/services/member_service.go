package services

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parpass/parpass-backend/v1/models"
	"gorm.io/gorm"
)

// MemberService handles member enrollment, lookup, and member-scoped data
type MemberService struct {
	db    *gorm.DB
	usage *UsageService
}

// NewMemberService creates a new member service
func NewMemberService(db *gorm.DB, usage *UsageService) *MemberService {
	return &MemberService{db: db, usage: usage}
}

// Enroll creates a member on a health plan and assigns the next parpass code
func (s *MemberService) Enroll(req *models.CreateMemberRequest) (*models.MemberDetail, error) {
	if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.HealthPlanID == "" {
		return nil, &ValidationError{Message: "first_name, last_name, email and health_plan_id are required"}
	}
	if len(req.FirstName) > models.MaxNameLength || len(req.LastName) > models.MaxNameLength {
		return nil, &ValidationError{Message: fmt.Sprintf("names must be at most %d characters", models.MaxNameLength)}
	}
	if len(req.Email) > models.MaxEmailLength || !strings.Contains(req.Email, "@") {
		return nil, &ValidationError{Message: "invalid email address"}
	}

	var plan models.HealthPlan
	if err := s.db.First(&plan, "plan_id = ? AND is_active = ?", req.HealthPlanID, true).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Entity: "health plan", ID: req.HealthPlanID}
		}
		return nil, fmt.Errorf("failed to load health plan: %w", err)
	}

	member := models.Member{
		MemberID:     "mem_" + uuid.New().String(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        strings.ToLower(req.Email),
		Status:       models.MemberStatusActive,
		HealthPlanID: plan.PlanID,
	}

	// The count is only advisory: a concurrent enrollment in another process
	// can mint the same code, which the unique index rejects below
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Member{}).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}
		member.ParpassCode = fmt.Sprintf("PP%05d", existing+1)

		if err := tx.Create(&member).Error; err != nil {
			if conflict := classifyMemberConflict(err); conflict != nil {
				return conflict
			}
			return fmt.Errorf("failed to create member: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Member enrolled", "memberID", member.MemberID, "parpassCode", member.ParpassCode)
	return s.detail(member)
}

// classifyMemberConflict maps a unique-constraint violation on the members
// table to the colliding column. Covers the SQLite and Postgres message shapes.
func classifyMemberConflict(err error) *ConflictError {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE") && !strings.Contains(msg, "duplicate") {
		return nil
	}
	if strings.Contains(msg, "parpass_code") {
		return &ConflictError{Message: "membership code allocation collided, retry enrollment"}
	}
	return &ConflictError{Message: "a member with this email already exists"}
}

func (s *MemberService) detail(member models.Member) (*models.MemberDetail, error) {
	mp, err := loadMemberPlan(s.db, member.MemberID, false)
	if err != nil {
		return nil, err
	}
	return &models.MemberDetail{
		Member:         mp.Member,
		HealthPlanName: mp.PlanName,
		Tier:           mp.Tier,
		MonthlyRounds:  mp.MonthlyRounds,
	}, nil
}

// GetByCode resolves a member by parpass code, joined with plan and tier
func (s *MemberService) GetByCode(code string) (*models.MemberDetail, error) {
	var member models.Member
	err := s.db.First(&member, "parpass_code = ?", strings.ToUpper(code)).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Entity: "member", ID: code}
		}
		return nil, fmt.Errorf("failed to load member: %w", err)
	}
	return s.detail(member)
}

// Usage reports the member's rounds used this month
func (s *MemberService) Usage(memberID string) (*models.UsageResponse, error) {
	if _, err := loadMemberPlan(s.db, memberID, false); err != nil {
		return nil, err
	}
	used, err := s.usage.RoundsUsed(memberID, time.Now())
	if err != nil {
		return nil, err
	}
	return &models.UsageResponse{RoundsUsed: used}, nil
}

// History lists the member's latest check-ins with course details
func (s *MemberService) History(memberID string) ([]models.RoundHistoryItem, error) {
	var items []models.RoundHistoryItem
	err := s.db.Table("check_ins").
		Select("check_ins.check_in_id, check_ins.checked_in_at, check_ins.holes_played, courses.name as course_name, courses.city, courses.state, courses.tier_required").
		Joins("JOIN courses ON courses.course_id = check_ins.course_id").
		Where("check_ins.member_id = ?", memberID).
		Order("check_ins.checked_in_at DESC").
		Limit(50).
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load round history: %w", err)
	}
	return items, nil
}

// Favorites lists the member's favorited courses, newest first
func (s *MemberService) Favorites(memberID string) ([]models.Course, error) {
	var courses []models.Course
	err := s.db.Table("courses").
		Select("courses.*").
		Joins("JOIN favorites ON favorites.course_id = courses.course_id").
		Where("favorites.member_id = ?", memberID).
		Order("favorites.created_at DESC").
		Scan(&courses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}
	return courses, nil
}

// AddFavorite favorites a course for the member. Idempotent: favoriting an
// already-favorited course succeeds without a second row.
func (s *MemberService) AddFavorite(memberID, courseID string) error {
	if _, err := loadMemberPlan(s.db, memberID, false); err != nil {
		return err
	}
	var course models.Course
	if err := s.db.First(&course, "course_id = ?", courseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &NotFoundError{Entity: "course", ID: courseID}
		}
		return fmt.Errorf("failed to load course: %w", err)
	}

	var existing models.Favorite
	err := s.db.First(&existing, "member_id = ? AND course_id = ?", memberID, courseID).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return fmt.Errorf("failed to check favorite: %w", err)
	}

	favorite := models.Favorite{
		FavoriteID: "fav_" + uuid.New().String(),
		MemberID:   memberID,
		CourseID:   courseID,
	}
	if err := s.db.Create(&favorite).Error; err != nil {
		return fmt.Errorf("failed to create favorite: %w", err)
	}
	return nil
}

// RemoveFavorite unfavorites a course for the member
func (s *MemberService) RemoveFavorite(memberID, courseID string) error {
	result := s.db.Where("member_id = ? AND course_id = ?", memberID, courseID).
		Delete(&models.Favorite{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove favorite: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Entity: "favorite", ID: courseID}
	}
	return nil
}

// GetPreferences loads the member's preferences. A member who has never
// submitted preferences gets an empty record, not an error.
func (s *MemberService) GetPreferences(memberID string) (*models.MemberPreference, error) {
	if _, err := loadMemberPlan(s.db, memberID, false); err != nil {
		return nil, err
	}
	var pref models.MemberPreference
	err := s.db.First(&pref, "member_id = ?", memberID).Error
	if err == gorm.ErrRecordNotFound {
		return &models.MemberPreference{MemberID: memberID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return &pref, nil
}

// UpdatePreferences upserts the member's preferences. Absent request fields
// preserve previously stored values. Completing the survey (a skill level on
// record) stamps onboarding_completed_at once.
func (s *MemberService) UpdatePreferences(memberID string, req *models.UpdatePreferencesRequest) (*models.MemberPreference, error) {
	if _, err := loadMemberPlan(s.db, memberID, false); err != nil {
		return nil, err
	}

	var pref models.MemberPreference
	err := s.db.First(&pref, "member_id = ?", memberID).Error
	isNew := err == gorm.ErrRecordNotFound
	if err != nil && !isNew {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	if isNew {
		pref = models.MemberPreference{MemberID: memberID}
	}

	if req.SkillLevel != nil {
		pref.SkillLevel = req.SkillLevel
	}
	if req.Goals != nil {
		pref.Goals = models.StringSlice(req.Goals)
	}
	if req.PlayFrequency != nil {
		pref.PlayFrequency = req.PlayFrequency
	}
	if req.PreferredTime != nil {
		pref.PreferredTime = req.PreferredTime
	}
	if req.Interests != nil {
		pref.Interests = models.StringSlice(req.Interests)
	}
	if req.NotificationsEnabled != nil {
		pref.NotificationsEnabled = *req.NotificationsEnabled
	}
	if req.PushToken != nil {
		pref.PushToken = req.PushToken
	}
	if pref.OnboardingCompletedAt == nil && pref.SkillLevel != nil {
		now := time.Now()
		pref.OnboardingCompletedAt = &now
	}

	if isNew {
		if err := s.db.Create(&pref).Error; err != nil {
			return nil, fmt.Errorf("failed to create preferences: %w", err)
		}
	} else {
		if err := s.db.Save(&pref).Error; err != nil {
			return nil, fmt.Errorf("failed to update preferences: %w", err)
		}
	}
	return &pref, nil
}

// OnboardingStatus reports whether onboarding has been completed
func (s *MemberService) OnboardingStatus(memberID string) (*models.OnboardingStatusResponse, error) {
	pref, err := s.GetPreferences(memberID)
	if err != nil {
		return nil, err
	}
	return &models.OnboardingStatusResponse{Completed: pref.OnboardingCompletedAt != nil}, nil
}
