package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/parpass/parpass-backend/shared/monitoring"
	"github.com/parpass/parpass-backend/v1/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CheckInService authorizes and records course check-ins
type CheckInService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCheckInService creates a new check-in service
func NewCheckInService(db *gorm.DB) *CheckInService {
	return &CheckInService{db: db, now: time.Now}
}

// memberPlan is a member row joined with its plan and tier
type memberPlan struct {
	Member        models.Member
	PlanName      string
	Tier          models.Tier
	MonthlyRounds int
}

// loadMemberPlan resolves a member together with its health plan and tier.
// When forUpdate is set the member row is locked for the duration of the
// surrounding transaction so concurrent check-ins for one member serialize.
func loadMemberPlan(tx *gorm.DB, memberID string, forUpdate bool) (*memberPlan, error) {
	var member models.Member
	q := tx.Where("member_id = ?", memberID)
	// SQLite has no FOR UPDATE; its single-writer model serializes anyway
	if forUpdate && tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(&member).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Entity: "member", ID: memberID}
		}
		return nil, fmt.Errorf("failed to load member: %w", err)
	}

	var plan models.HealthPlan
	if err := tx.First(&plan, "plan_id = ?", member.HealthPlanID).Error; err != nil {
		return nil, fmt.Errorf("failed to load health plan: %w", err)
	}

	var tier models.PlanTier
	if err := tx.First(&tier, "tier_id = ?", plan.PlanTierID).Error; err != nil {
		return nil, fmt.Errorf("failed to load plan tier: %w", err)
	}

	return &memberPlan{
		Member:        member,
		PlanName:      plan.Name,
		Tier:          tier.Name,
		MonthlyRounds: tier.MonthlyRounds,
	}, nil
}

// CheckIn runs the authorization gates in order and, when all pass, records
// the round. The quota gate and the insert share one transaction holding a
// row lock on the member, so two racing check-ins cannot both pass a
// one-round-remaining quota.
func (s *CheckInService) CheckIn(req *models.CheckInRequest) (*models.CheckInResponse, error) {
	if req.MemberID == "" || req.CourseID == "" {
		return nil, &ValidationError{Message: "member_id and course_id are required"}
	}

	holes := models.DefaultHolesPlayed
	if req.HolesPlayed != nil {
		if *req.HolesPlayed <= 0 {
			return nil, &ValidationError{Message: "holes_played must be positive"}
		}
		holes = *req.HolesPlayed
	}

	now := s.now()
	var response *models.CheckInResponse

	err := s.db.Transaction(func(tx *gorm.DB) error {
		mp, err := loadMemberPlan(tx, req.MemberID, true)
		if err != nil {
			return err
		}

		if mp.Member.Status != models.MemberStatusActive {
			return &ForbiddenError{
				Reason:  models.ReasonInactive,
				Message: "membership is not active",
			}
		}

		roundsUsed, err := roundsUsedTx(tx, req.MemberID, now)
		if err != nil {
			return err
		}
		if roundsUsed >= mp.MonthlyRounds {
			return &ForbiddenError{
				Reason:  models.ReasonQuotaExhausted,
				Message: fmt.Sprintf("monthly round limit of %d reached", mp.MonthlyRounds),
			}
		}

		var course models.Course
		if err := tx.First(&course, "course_id = ?", req.CourseID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &NotFoundError{Entity: "course", ID: req.CourseID}
			}
			return fmt.Errorf("failed to load course: %w", err)
		}

		if course.TierRequired == models.TierPremium && mp.Tier != models.TierPremium {
			return &ForbiddenError{
				Reason:  models.ReasonTierMismatch,
				Message: "this course requires a premium membership",
			}
		}

		checkIn := models.CheckIn{
			CheckInID:   "chk_" + uuid.New().String(),
			MemberID:    req.MemberID,
			CourseID:    req.CourseID,
			HolesPlayed: holes,
			CheckedInAt: now,
		}
		if err := tx.Create(&checkIn).Error; err != nil {
			return fmt.Errorf("failed to record check-in: %w", err)
		}

		// The insert above is part of this transaction, so the pre-insert
		// count plus one is exact: remaining = quota - used - 1
		response = &models.CheckInResponse{
			CheckIn:         checkIn,
			RoundsRemaining: mp.MonthlyRounds - roundsUsed - 1,
		}
		return nil
	})
	if err != nil {
		monitoring.RecordBusinessEvent("check_in", "denied")
		return nil, err
	}

	monitoring.RecordBusinessEvent("check_in", "success")
	slog.Info("Check-in recorded", "checkInID", response.CheckIn.CheckInID,
		"memberID", req.MemberID, "courseID", req.CourseID,
		"roundsRemaining", response.RoundsRemaining)
	return response, nil
}
