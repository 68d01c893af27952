package models

// Tier represents a plan tier name
type Tier string

const (
	TierCore    Tier = "core"
	TierPremium Tier = "premium"
)

// MemberStatus represents the lifecycle status of a member
type MemberStatus string

const (
	MemberStatusActive    MemberStatus = "active"
	MemberStatusSuspended MemberStatus = "suspended"
	MemberStatusCancelled MemberStatus = "cancelled"
)

// NotificationType represents how a notification batch was targeted
type NotificationType string

const (
	NotificationTypeBroadcast  NotificationType = "broadcast"
	NotificationTypeTargeted   NotificationType = "targeted"
	NotificationTypeIndividual NotificationType = "individual"
)

// BatchStatus represents the status of a notification batch
type BatchStatus string

const (
	BatchStatusPending BatchStatus = "pending"
	BatchStatusSent    BatchStatus = "sent"
	BatchStatusPartial BatchStatus = "partial"
	BatchStatusFailed  BatchStatus = "failed"
)

// DeliveryStatus represents the status of a single member notification
type DeliveryStatus string

const (
	DeliveryStatusSent   DeliveryStatus = "sent"
	DeliveryStatusFailed DeliveryStatus = "failed"
	DeliveryStatusRead   DeliveryStatus = "read"
)

// Forbidden reason codes returned by business-rule rejections
const (
	ReasonInactive       = "inactive"
	ReasonQuotaExhausted = "quota_exhausted"
	ReasonTierMismatch   = "tier_mismatch"
	ReasonNotPlayed      = "not_played"
)

// DefaultHolesPlayed is recorded when a check-in omits holes_played
const DefaultHolesPlayed = 18

// Field length constraints
const (
	MaxNameLength    = 255
	MaxEmailLength   = 320 // RFC 3696 specification
	MaxCommentLength = 1000
	MinRating        = 1
	MaxRating        = 5
)
