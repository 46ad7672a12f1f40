package domain

import "time"

// UserRole scopes what a caller may do with tickets.
type UserRole string

const (
	UserRoleUser    UserRole = "user"
	UserRoleManager UserRole = "manager"
)

// User is the domain model for people who submit and manage tickets.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsManager reports whether the user may act on any ticket.
func (u *User) IsManager() bool {
	return u.Role == UserRoleManager
}
