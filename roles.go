package auth

import "strings"

// Role is the dashboard role carried by the custom:role attribute.
type Role string

const (
	// RoleEmployee works the floor of assigned stores (i.e. view, record transactions)
	RoleEmployee Role = "employee"
	// RoleManager runs assigned stores (i.e. employee plus product edits)
	RoleManager Role = "manager"
	// RoleAdmin administers every store and user
	RoleAdmin Role = "admin"
)

var roleHierarchy = map[Role]int{
	RoleEmployee: 0,
	RoleManager:  1,
	RoleAdmin:    2,
}

// IsValid checks if the role is one of the predefined roles
func (r Role) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// IsAtLeast checks if this role meets the minimum required level
func (r Role) IsAtLeast(minRole Role) bool {
	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

func (r Role) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []Role {
	return []Role{
		RoleEmployee,
		RoleManager,
		RoleAdmin,
	}
}

// ParseRole maps the raw attribute to a Role, falling back to employee for
// empty or unknown values.
func ParseRole(raw string) Role {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.IsValid() {
		return RoleEmployee
	}
	return role
}
