package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Criteria describes the optional filters for targeted notifications.
// Absent filters impose no constraint; specified filters combine with AND.
type Criteria struct {
	Tier               *Tier    `json:"tier,omitempty"`
	SkillLevel         *string  `json:"skillLevel,omitempty"`
	PlayFrequency      *string  `json:"playFrequency,omitempty"`
	InactiveDays       *int     `json:"inactiveDays,omitempty"`
	ActiveDays         *int     `json:"activeDays,omitempty"`
	HasRoundsRemaining bool     `json:"hasRoundsRemaining,omitempty"`
	Goals              []string `json:"goals,omitempty"`
}

// CriteriaJSON stores a Criteria object as a JSON column on the batch log
type CriteriaJSON struct {
	Criteria *Criteria
}

// Scan implements the sql.Scanner interface for CriteriaJSON
func (cj *CriteriaJSON) Scan(value interface{}) error {
	if value == nil {
		cj.Criteria = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CriteriaJSON", value)
	}

	if len(bytes) == 0 || string(bytes) == "null" {
		cj.Criteria = nil
		return nil
	}
	return json.Unmarshal(bytes, &cj.Criteria)
}

// Value implements the driver.Valuer interface for CriteriaJSON
func (cj *CriteriaJSON) Value() (driver.Value, error) {
	return json.Marshal(cj.Criteria)
}

// GormDataType gorm common data type
func (CriteriaJSON) GormDataType() string {
	return "jsonb"
}

// GormValue implements the GormValuerInterface
func (cj CriteriaJSON) GormValue(ctx context.Context, db *gorm.DB) clause.Expr {
	data, err := json.Marshal(cj.Criteria)
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal CriteriaJSON to JSON: %v", err))
	}

	dialector := db.Dialector.Name()
	var sqlExpr string
	if dialector == "sqlite" {
		sqlExpr = "?"
	} else {
		sqlExpr = "?::jsonb"
	}

	return clause.Expr{
		SQL:  sqlExpr,
		Vars: []interface{}{string(data)},
	}
}

// MarshalJSON forwards to the wrapped criteria
func (cj CriteriaJSON) MarshalJSON() ([]byte, error) {
	return json.Marshal(cj.Criteria)
}

// UnmarshalJSON forwards to the wrapped criteria
func (cj *CriteriaJSON) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &cj.Criteria)
}

// NotificationLog is the parent batch row: one per send invocation. Created
// in pending status before dispatch, updated exactly once with final counts.
type NotificationLog struct {
	NotificationID string           `gorm:"primarykey;column:notification_id" json:"notificationId"`
	Type           NotificationType `gorm:"column:type;not null" json:"type"`
	Title          string           `gorm:"column:title;not null" json:"title"`
	Body           string           `gorm:"column:body;not null" json:"body"`
	Criteria       CriteriaJSON     `gorm:"column:criteria" json:"criteria"`
	RecipientCount int              `gorm:"column:recipient_count;default:0" json:"recipientCount"`
	SentCount      int              `gorm:"column:sent_count;default:0" json:"sentCount"`
	FailedCount    int              `gorm:"column:failed_count;default:0" json:"failedCount"`
	Status         BatchStatus      `gorm:"column:status;default:pending" json:"status"`
	BaseModel
}

// TableName sets the table name for GORM
func (NotificationLog) TableName() string {
	return "notification_log"
}

// MemberNotification is a child delivery record referencing its batch.
// Created during dispatch; the only later mutation is mark-read.
type MemberNotification struct {
	MemberNotificationID string         `gorm:"primarykey;column:member_notification_id" json:"memberNotificationId"`
	NotificationID       string         `gorm:"column:notification_id;not null;index" json:"notificationId"`
	MemberID             string         `gorm:"column:member_id;not null;index" json:"memberId"`
	Title                string         `gorm:"column:title;not null" json:"title"`
	Body                 string         `gorm:"column:body;not null" json:"body"`
	Status               DeliveryStatus `gorm:"column:status;not null" json:"status"`
	Error                *string        `gorm:"column:error" json:"error,omitempty"`
	ReadAt               *time.Time     `gorm:"column:read_at" json:"readAt"`
	BaseModel
}

// TableName sets the table name for GORM
func (MemberNotification) TableName() string {
	return "member_notifications"
}
