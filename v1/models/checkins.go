package models

import (
	"time"

	"gorm.io/gorm"
)

// CheckIn is an immutable utilization record: one row per round played.
// Rows are only ever inserted, never updated or deleted; the count of a
// member's rows within the current calendar month is its rounds-used figure.
type CheckIn struct {
	CheckInID   string    `gorm:"primarykey;column:check_in_id" json:"checkInId"`
	MemberID    string    `gorm:"column:member_id;not null;index" json:"memberId"`
	CourseID    string    `gorm:"column:course_id;not null;index" json:"courseId"`
	HolesPlayed int       `gorm:"column:holes_played;not null" json:"holesPlayed"`
	CheckedInAt time.Time `gorm:"column:checked_in_at;not null;index" json:"checkedInAt"`
}

// TableName sets the table name for GORM
func (CheckIn) TableName() string {
	return "check_ins"
}

// BeforeCreate GORM hook stamps the check-in time if the caller did not
func (c *CheckIn) BeforeCreate(tx *gorm.DB) error {
	if c.CheckedInAt.IsZero() {
		c.CheckedInAt = time.Now()
	}
	return nil
}

// MonthStart returns the start of the calendar month containing t in t's
// location. The quota window predicate compares check-in timestamps against
// this boundary.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
