package model

import "time"

// Role distinguishes admins, who assign and approve work, from regular users.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// AdminTypes lists the admin seats a signup may claim. Each seat holds at most one admin.
var AdminTypes = []string{"Admin 1", "Admin 2", "Admin 3"}

// ValidAdminType reports whether t is one of AdminTypes.
func ValidAdminType(t string) bool {
	for _, at := range AdminTypes {
		if at == t {
			return true
		}
	}
	return false
}

// User is an account. Role is fixed at signup.
type User struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"not null" json:"name"`
	Email            string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash     string    `gorm:"not null" json:"-"`
	Role             Role      `gorm:"index;not null" json:"role"`
	AdminType        string    `gorm:"index" json:"adminType,omitempty"`
	AdminID          *uint     `gorm:"index" json:"admin,omitempty"`
	TelegramChatID   *int64    `gorm:"index" json:"-"`
	TelegramLinkCode string    `gorm:"index" json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
