package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StringSlice represents a JSON array of strings with custom scanning,
// used for member goals and interests
type StringSlice []string

// Scan implements the sql.Scanner interface for StringSlice
func (ss *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*ss = StringSlice{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringSlice", value)
	}

	return json.Unmarshal(bytes, ss)
}

// Value implements the driver.Valuer interface for StringSlice
func (ss *StringSlice) Value() (driver.Value, error) {
	return json.Marshal(*ss)
}

// GormDataType gorm common data type
func (StringSlice) GormDataType() string {
	return "jsonb"
}

// GormValue implements the GormValuerInterface
func (ss StringSlice) GormValue(ctx context.Context, db *gorm.DB) clause.Expr {
	data, err := json.Marshal(ss)
	if err != nil {
		// JSON marshaling of a string slice should never fail
		panic(fmt.Sprintf("Failed to marshal StringSlice to JSON: %v", err))
	}

	// SQLite stores JSON as TEXT, PostgreSQL uses jsonb with a cast
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

// Intersects reports whether the slice shares at least one element with other
func (ss StringSlice) Intersects(other []string) bool {
	if len(ss) == 0 || len(other) == 0 {
		return false
	}
	set := make(map[string]bool, len(ss))
	for _, s := range ss {
		set[s] = true
	}
	for _, o := range other {
		if set[o] {
			return true
		}
	}
	return false
}

// Scan implements the sql.Scanner interface for Tier
func (t *Tier) Scan(value interface{}) error {
	if value == nil {
		*t = TierCore
		return nil
	}
	if str, ok := value.(string); ok {
		*t = Tier(str)
		return nil
	}
	return fmt.Errorf("cannot scan %T into Tier", value)
}

// Value implements the driver.Valuer interface for Tier
func (t *Tier) Value() (driver.Value, error) {
	return string(*t), nil
}

// Scan implements the sql.Scanner interface for MemberStatus
func (ms *MemberStatus) Scan(value interface{}) error {
	if value == nil {
		*ms = MemberStatusActive
		return nil
	}
	if str, ok := value.(string); ok {
		*ms = MemberStatus(str)
		return nil
	}
	return fmt.Errorf("cannot scan %T into MemberStatus", value)
}

// Value implements the driver.Valuer interface for MemberStatus
func (ms *MemberStatus) Value() (driver.Value, error) {
	return string(*ms), nil
}
