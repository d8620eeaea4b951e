package domain

import "time"

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleAgent StaffRole = "AGENT"
	StaffRoleAdmin StaffRole = "ADMIN"
)

// StaffMember models a verification agent or administrator.
type StaffMember struct {
	ID           string
	Username     string
	FullName     string
	Email        string
	PasswordHash string
	Role         StaffRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the staff member holds the admin role.
func (m *StaffMember) IsAdmin() bool {
	return m != nil && m.Role == StaffRoleAdmin
}
