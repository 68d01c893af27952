package models

import "time"

// CreateCourseRequest is the payload for adding a course
type CreateCourseRequest struct {
	Name         string   `json:"name"`
	Address      *string  `json:"address"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	Zip          *string  `json:"zip"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Holes        *int     `json:"holes"`
	TierRequired *Tier    `json:"tier_required"`
	Phone        *string  `json:"phone"`
}

// CourseWithRating is a course joined with its review aggregate
type CourseWithRating struct {
	Course
	AverageRating *float64 `json:"averageRating"`
	ReviewCount   int      `json:"reviewCount"`
}

// CreateMemberRequest is the payload for enrolling a member
type CreateMemberRequest struct {
	HealthPlanID string `json:"health_plan_id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
}

// MemberDetail is a member joined with its resolved plan and tier
type MemberDetail struct {
	Member
	HealthPlanName string `json:"healthPlanName"`
	Tier           Tier   `json:"tier"`
	MonthlyRounds  int    `json:"monthlyRounds"`
}

// CheckInRequest is the payload for a course check-in
type CheckInRequest struct {
	MemberID    string `json:"member_id"`
	CourseID    string `json:"course_id"`
	HolesPlayed *int   `json:"holes_played"`
}

// CheckInResponse is returned on successful check-in
type CheckInResponse struct {
	CheckIn         CheckIn `json:"check_in"`
	RoundsRemaining int     `json:"rounds_remaining"`
}

// UsageResponse reports a member's rounds used this month
type UsageResponse struct {
	RoundsUsed int `json:"rounds_used"`
}

// RoundHistoryItem is one entry in a member's round history
type RoundHistoryItem struct {
	CheckInID    string    `json:"checkInId"`
	CheckedInAt  time.Time `json:"checkedInAt"`
	HolesPlayed  int       `json:"holesPlayed"`
	CourseName   string    `json:"courseName"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	TierRequired Tier      `json:"tierRequired"`
}

// UpdatePreferencesRequest upserts a member's preferences. Nil fields
// preserve any previously stored values.
type UpdatePreferencesRequest struct {
	SkillLevel           *string  `json:"skill_level"`
	Goals                []string `json:"goals"`
	PlayFrequency        *string  `json:"play_frequency"`
	PreferredTime        *string  `json:"preferred_time"`
	Interests            []string `json:"interests"`
	NotificationsEnabled *bool    `json:"notifications_enabled"`
	PushToken            *string  `json:"push_token"`
}

// OnboardingStatusResponse reports whether onboarding has been completed
type OnboardingStatusResponse struct {
	Completed bool `json:"completed"`
}

// CreateReviewRequest is the payload for adding or updating a review
type CreateReviewRequest struct {
	MemberID string  `json:"member_id"`
	Rating   int     `json:"rating"`
	Comment  *string `json:"comment"`
}

// ReviewWithAuthor is a review joined with the reviewer's first name
type ReviewWithAuthor struct {
	ReviewID        string    `json:"reviewId"`
	Rating          int       `json:"rating"`
	Comment         *string   `json:"comment"`
	CreatedAt       time.Time `json:"createdAt"`
	MemberFirstName string    `json:"memberFirstName"`
}

// RatingSummary aggregates a course's reviews
type RatingSummary struct {
	AverageRating *float64 `json:"averageRating"`
	ReviewCount   int      `json:"reviewCount"`
}

// AddFavoriteRequest is the payload for favoriting a course
type AddFavoriteRequest struct {
	CourseID string `json:"course_id"`
}

// HealthPlanDetail is a plan joined with its tier
type HealthPlanDetail struct {
	HealthPlan
	TierName      Tier `json:"tierName"`
	MonthlyRounds int  `json:"monthlyRounds"`
}

// BroadcastRequest is the payload for a broadcast notification
type BroadcastRequest struct {
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data"`
}

// TargetedRequest is the payload for a criteria-targeted notification
type TargetedRequest struct {
	Title    string                 `json:"title"`
	Body     string                 `json:"body"`
	Criteria *Criteria              `json:"criteria"`
	Data     map[string]interface{} `json:"data"`
}

// DispatchResponse reports the outcome of a notification send
type DispatchResponse struct {
	Success bool `json:"success"`
	Sent    int  `json:"sent"`
	Failed  int  `json:"failed"`
}

// OverviewStats holds the platform-wide counters
type OverviewStats struct {
	ActiveMembers   int64 `json:"activeMembers"`
	TotalCourses    int64 `json:"totalCourses"`
	TotalRounds     int64 `json:"totalRounds"`
	RoundsThisMonth int64 `json:"roundsThisMonth"`
}

// PopularCourse is a course ranked by utilization
type PopularCourse struct {
	CourseID      string `json:"courseId"`
	Name          string `json:"name"`
	City          string `json:"city"`
	TierRequired  Tier   `json:"tierRequired"`
	TotalRounds   int    `json:"totalRounds"`
	UniqueMembers int    `json:"uniqueMembers"`
}

// MonthlyRoundCount is the number of rounds played in one calendar month
type MonthlyRoundCount struct {
	Month  string `json:"month"`
	Rounds int    `json:"rounds"`
}

// TierRoundCount is the number of rounds played on courses of one tier
type TierRoundCount struct {
	Tier   Tier `json:"tier"`
	Rounds int  `json:"rounds"`
}

// TopMember is a member ranked by total rounds played
type TopMember struct {
	MemberID    string `json:"memberId"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	HealthPlan  string `json:"healthPlan"`
	Tier        Tier   `json:"tier"`
	TotalRounds int    `json:"totalRounds"`
}

// NotificationStats aggregates the batch log
type NotificationStats struct {
	TotalNotifications int64 `json:"totalNotifications"`
	TotalSent          int64 `json:"totalSent"`
	TotalFailed        int64 `json:"totalFailed"`
	BroadcastCount     int64 `json:"broadcastCount"`
	TargetedCount      int64 `json:"targetedCount"`
	IndividualCount    int64 `json:"individualCount"`
	Last7Days          int64 `json:"last7Days"`
	Last30Days         int64 `json:"last30Days"`
}

// UnreadCountResponse reports a member's unread notification count
type UnreadCountResponse struct {
	UnreadCount int64 `json:"unreadCount"`
}
