package domain

import "time"

// Role enumerates directory roles.
type Role string

const (
	RoleStudent  Role = "Student"
	RoleAdmin    Role = "Admin"
	RoleIT       Role = "IT"
	RoleAccounts Role = "Accounts"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleAdmin, RoleIT, RoleAccounts:
		return true
	}
	return false
}

// Staff reports whether the role belongs to an office handler.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleIT || r == RoleAccounts
}

// User is a directory entry for students and office staff.
type User struct {
	ID           string
	Name         string
	StudentID    string
	Department   string
	Email        string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
}
