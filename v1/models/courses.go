package models

// Course represents a golf course in the catalog
type Course struct {
	CourseID     string   `gorm:"primarykey;column:course_id" json:"courseId"`
	Name         string   `gorm:"column:name;not null" json:"name"`
	Address      *string  `gorm:"column:address" json:"address"`
	City         string   `gorm:"column:city;not null" json:"city"`
	State        string   `gorm:"column:state;not null" json:"state"`
	Zip          *string  `gorm:"column:zip" json:"zip"`
	Latitude     *float64 `gorm:"column:latitude" json:"latitude"`
	Longitude    *float64 `gorm:"column:longitude" json:"longitude"`
	Holes        int      `gorm:"column:holes;default:18" json:"holes"`
	TierRequired Tier     `gorm:"column:tier_required;default:core" json:"tierRequired"`
	Phone        *string  `gorm:"column:phone" json:"phone"`
	IsActive     bool     `gorm:"column:is_active;default:true" json:"isActive"`
	BaseModel
}

// TableName sets the table name for GORM
func (Course) TableName() string {
	return "courses"
}

// Review represents a member's rating of a course, one per member per course
type Review struct {
	ReviewID string  `gorm:"primarykey;column:review_id" json:"reviewId"`
	MemberID string  `gorm:"column:member_id;not null;uniqueIndex:idx_review_member_course" json:"memberId"`
	CourseID string  `gorm:"column:course_id;not null;uniqueIndex:idx_review_member_course" json:"courseId"`
	Rating   int     `gorm:"column:rating;not null" json:"rating"`
	Comment  *string `gorm:"column:comment" json:"comment"`
	BaseModel
}

// TableName sets the table name for GORM
func (Review) TableName() string {
	return "reviews"
}

// Favorite marks a course as a member favorite
type Favorite struct {
	FavoriteID string `gorm:"primarykey;column:favorite_id" json:"favoriteId"`
	MemberID   string `gorm:"column:member_id;not null;uniqueIndex:idx_favorite_member_course" json:"memberId"`
	CourseID   string `gorm:"column:course_id;not null;uniqueIndex:idx_favorite_member_course" json:"courseId"`
	BaseModel
}

// TableName sets the table name for GORM
func (Favorite) TableName() string {
	return "favorites"
}
