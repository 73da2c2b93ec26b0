package auth

import (
	"fmt"
	"strconv"
)

// Role is the closed set of platform roles
type Role string

const (
	RoleUser      Role = "user"      // Default role, may author reviews and comments
	RoleModerator Role = "moderator" // May edit or delete any review or comment
	RoleAdmin     Role = "admin"     // Manages the catalog and user directory
)

// Roles lists every valid role
func Roles() []Role {
	return []Role{RoleUser, RoleModerator, RoleAdmin}
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole converts a string to a Role. The empty string yields the default role.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleUser, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%q is not a valid choice", s)
	}
	return r, nil
}

// Actor is the caller a request is evaluated for. A nil *Actor is anonymous.
type Actor struct {
	UserID      int64
	Username    string
	Role        Role
	IsStaff     bool
	IsSuperuser bool
}

// Elevated reports the staff-or-superuser capability, which is independent of Role
func (a *Actor) Elevated() bool {
	return a != nil && (a.IsStaff || a.IsSuperuser)
}

// IsAdmin reports whether the actor holds the admin role or is a superuser
func (a *Actor) IsAdmin() bool {
	return a != nil && (a.Role == RoleAdmin || a.IsSuperuser)
}

// Authenticated reports whether the actor is a known user
func (a *Actor) Authenticated() bool {
	return a != nil
}

// Subject returns the user id formatted for logs and token subjects
func (a *Actor) Subject() string {
	if a == nil {
		return ""
	}
	return strconv.FormatInt(a.UserID, 10)
}
