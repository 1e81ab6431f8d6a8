package domain

import "time"

type User struct {
	ID          UserID    `gorm:"type:uuid;primaryKey" db:"id" json:"id"`
	Email       *string   `gorm:"type:text;uniqueIndex:ux_users_email" db:"email" json:"email,omitempty"`
	Username    string    `gorm:"type:text;not null;uniqueIndex:ux_users_username" db:"username" json:"username"`
	IsStaff     bool      `gorm:"not null;default:false" db:"is_staff" json:"isStaff"`
	IsSuperuser bool      `gorm:"not null;default:false" db:"is_superuser" json:"isSuperuser"`
	IsDisabled  bool      `gorm:"not null;default:false" db:"is_disabled" json:"isDisabled"`
	CreatedAt   time.Time `gorm:"not null" db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"not null" db:"updated_at" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// Elevated reports administrator-level privilege. It is read live on every
// request; devices only snapshot it once, at creation.
func (u *User) Elevated() bool {
	return u != nil && (u.IsSuperuser || u.IsStaff)
}
