package services

import (
	"fmt"
	"time"

	"github.com/parpass/parpass-backend/v1/models"
	"gorm.io/gorm"
)

// UsageService answers questions about a member's monthly round consumption
type UsageService struct {
	db *gorm.DB
}

// NewUsageService creates a new usage service
func NewUsageService(db *gorm.DB) *UsageService {
	return &UsageService{db: db}
}

// RoundsUsed counts the check-ins a member has recorded since the start of
// the calendar month containing now. The month boundary is computed in Go so
// the query behaves identically across database dialects.
func (s *UsageService) RoundsUsed(memberID string, now time.Time) (int, error) {
	return roundsUsedTx(s.db, memberID, now)
}

func roundsUsedTx(tx *gorm.DB, memberID string, now time.Time) (int, error) {
	var count int64
	err := tx.Model(&models.CheckIn{}).
		Where("member_id = ? AND checked_in_at >= ?", memberID, models.MonthStart(now)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count rounds used: %w", err)
	}
	return int(count), nil
}
