package models

import "time"

// PlanTier represents a named access tier with a monthly round quota
type PlanTier struct {
	TierID        string `gorm:"primarykey;column:tier_id" json:"tierId"`
	Name          Tier   `gorm:"column:name;not null;unique" json:"name"`
	MonthlyRounds int    `gorm:"column:monthly_rounds;not null" json:"monthlyRounds"`
	BaseModel
}

// TableName sets the table name for GORM
func (PlanTier) TableName() string {
	return "plan_tiers"
}

// HealthPlan represents a health plan that maps members to a tier
type HealthPlan struct {
	PlanID     string `gorm:"primarykey;column:plan_id" json:"planId"`
	Name       string `gorm:"column:name;not null" json:"name"`
	PlanTierID string `gorm:"column:plan_tier_id;not null" json:"planTierId"`
	IsActive   bool   `gorm:"column:is_active;default:true" json:"isActive"`
	BaseModel
}

// TableName sets the table name for GORM
func (HealthPlan) TableName() string {
	return "health_plans"
}

// Member represents an enrolled member. The member's tier resolves through
// its health plan, never stored on the member row itself.
type Member struct {
	MemberID     string       `gorm:"primarykey;column:member_id" json:"memberId"`
	FirstName    string       `gorm:"column:first_name;not null" json:"firstName"`
	LastName     string       `gorm:"column:last_name;not null" json:"lastName"`
	Email        string       `gorm:"column:email;not null;unique" json:"email"`
	ParpassCode  string       `gorm:"column:parpass_code;not null;unique" json:"parpassCode"`
	Status       MemberStatus `gorm:"column:status;default:active" json:"status"`
	HealthPlanID string       `gorm:"column:health_plan_id;not null" json:"healthPlanId"`
	BaseModel
}

// TableName sets the table name for GORM
func (Member) TableName() string {
	return "members"
}

// MemberPreference holds a member's onboarding survey data and push settings
type MemberPreference struct {
	MemberID               string      `gorm:"primarykey;column:member_id" json:"memberId"`
	SkillLevel             *string     `gorm:"column:skill_level" json:"skillLevel"`
	Goals                  StringSlice `gorm:"column:goals" json:"goals"`
	PlayFrequency          *string     `gorm:"column:play_frequency" json:"playFrequency"`
	PreferredTime          *string     `gorm:"column:preferred_time" json:"preferredTime"`
	Interests              StringSlice `gorm:"column:interests" json:"interests"`
	NotificationsEnabled   bool        `gorm:"column:notifications_enabled;default:false" json:"notificationsEnabled"`
	PushToken              *string     `gorm:"column:push_token" json:"pushToken"`
	OnboardingCompletedAt  *time.Time  `gorm:"column:onboarding_completed_at" json:"onboardingCompletedAt"`
	BaseModel
}

// TableName sets the table name for GORM
func (MemberPreference) TableName() string {
	return "member_preferences"
}
