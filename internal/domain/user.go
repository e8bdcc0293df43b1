package domain

import "strings"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// ParseRole normalizes a role asserted by the gateway. ok is false for
// anything other than user or admin.
func ParseRole(s string) (UserRole, bool) {
	switch UserRole(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// Caller is the identity attached to every request by the trusted edge.
type Caller struct {
	UserID int64
	Role   UserRole
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }
