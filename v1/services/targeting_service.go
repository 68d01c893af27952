package services

import (
	"fmt"
	"time"

	"github.com/parpass/parpass-backend/v1/models"
	"gorm.io/gorm"
)

// Recipient is one resolved push target
type Recipient struct {
	MemberID  string
	PushToken string
}

// TargetingService resolves notification criteria to push recipients
type TargetingService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTargetingService creates a new targeting service
func NewTargetingService(db *gorm.DB) *TargetingService {
	return &TargetingService{db: db, now: time.Now}
}

// candidateRow carries the columns needed to evaluate the in-process filters
type candidateRow struct {
	MemberID      string
	PushToken     string
	Goals         models.StringSlice `gorm:"column:goals"`
	MonthlyRounds int
}

// ResolveRecipients returns the members matching criteria who can actually
// receive a push: notifications enabled and a stored token, always. A nil
// criteria matches every reachable member. An empty result is not an error.
func (s *TargetingService) ResolveRecipients(criteria *models.Criteria) ([]Recipient, error) {
	now := s.now()

	q := s.db.Table("member_preferences").
		Select("member_preferences.member_id, member_preferences.push_token, member_preferences.goals, plan_tiers.monthly_rounds").
		Joins("JOIN members ON members.member_id = member_preferences.member_id").
		Joins("JOIN health_plans ON health_plans.plan_id = members.health_plan_id").
		Joins("JOIN plan_tiers ON plan_tiers.tier_id = health_plans.plan_tier_id").
		Where("member_preferences.notifications_enabled = ?", true).
		Where("member_preferences.push_token IS NOT NULL AND member_preferences.push_token <> ''")

	if criteria != nil {
		if criteria.Tier != nil {
			q = q.Where("plan_tiers.name = ?", *criteria.Tier)
		}
		if criteria.SkillLevel != nil {
			q = q.Where("member_preferences.skill_level = ?", *criteria.SkillLevel)
		}
		if criteria.PlayFrequency != nil {
			q = q.Where("member_preferences.play_frequency = ?", *criteria.PlayFrequency)
		}
		if criteria.InactiveDays != nil {
			cutoff := now.AddDate(0, 0, -*criteria.InactiveDays)
			q = q.Where("NOT EXISTS (SELECT 1 FROM check_ins WHERE check_ins.member_id = member_preferences.member_id AND check_ins.checked_in_at >= ?)", cutoff)
		}
		if criteria.ActiveDays != nil {
			cutoff := now.AddDate(0, 0, -*criteria.ActiveDays)
			q = q.Where("EXISTS (SELECT 1 FROM check_ins WHERE check_ins.member_id = member_preferences.member_id AND check_ins.checked_in_at >= ?)", cutoff)
		}
		if criteria.HasRoundsRemaining {
			q = q.Where("plan_tiers.monthly_rounds > (SELECT COUNT(*) FROM check_ins WHERE check_ins.member_id = member_preferences.member_id AND check_ins.checked_in_at >= ?)", models.MonthStart(now))
		}
	}

	var rows []candidateRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}

	// Goals overlap is evaluated here rather than in SQL: goals is a JSON
	// column and set-intersection over it is not portable across dialects
	recipients := make([]Recipient, 0, len(rows))
	for _, row := range rows {
		if criteria != nil && len(criteria.Goals) > 0 && !row.Goals.Intersects(criteria.Goals) {
			continue
		}
		recipients = append(recipients, Recipient{MemberID: row.MemberID, PushToken: row.PushToken})
	}
	return recipients, nil
}
