package domain

import "time"

// Profile roles. The role column is the only source of truth for staff
// permissions.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Profile is a website user.
type Profile struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Email     string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex"`
	FullName  string    `json:"full_name"  gorm:"type:varchar(255)"`
	Role      string    `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('user','moderator','admin')"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// IsStaff reports whether the profile may act as a moderator.
func (p Profile) IsStaff() bool { return p.Role == RoleModerator || p.Role == RoleAdmin }

// Moderator is a read model derived from staff profiles. Only the moderator
// service writes it.
type Moderator struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:char(36);not null;uniqueIndex"`
	Email     string    `json:"email"      gorm:"type:varchar(255);not null"`
	FullName  string    `json:"full_name"  gorm:"type:varchar(255)"`
	IsActive  bool      `json:"is_active"  gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Moderator.
func (Moderator) TableName() string { return "moderators" }
