package users

import (
	"errors"
	"time"

	"github.com/platinummonkey/verdict/pkg/auth"
)

// ErrUserNotFound is wrapped by every lookup that finds no user
var ErrUserNotFound = errors.New("user not found")

// User is a registered account. Confirmation state and timestamps never leave the service.
type User struct {
	ID          int64     `json:"-"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Bio         string    `json:"bio"`
	Role        auth.Role `json:"role"`
	IsStaff     bool      `json:"-"`
	IsSuperuser bool      `json:"-"`

	ConfirmationCode string     `json:"-"` // bcrypt hash, empty once consumed
	CodeIssuedAt     *time.Time `json:"-"`
	DateJoined       time.Time  `json:"-"`
	LastLogin        *time.Time `json:"-"`
}

// Actor returns the access-control view of the user
func (u *User) Actor() *auth.Actor {
	return &auth.Actor{
		UserID:      u.ID,
		Username:    u.Username,
		Role:        u.Role,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
	}
}

// OwnerID implements rbac.Owned; a user owns their own record
func (u *User) OwnerID() int64 {
	return u.ID
}

// SignupRequest starts the confirmation-code handshake
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SignupResponse echoes the accepted identity
type SignupResponse struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// TokenRequest exchanges a confirmation code for an access token
type TokenRequest struct {
	Username         string `json:"username"`
	ConfirmationCode string `json:"confirmation_code"`
}

// TokenResponse carries the issued access token
type TokenResponse struct {
	Token string `json:"token"`
}

// CreateRequest is an administrator creating a user directly
type CreateRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Bio       string `json:"bio"`
	Role      string `json:"role"`
}

// Patch is a partial update; nil fields are left unchanged
type Patch struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Bio       *string `json:"bio"`
	Role      *string `json:"role"`
}

// Empty reports whether the patch changes nothing
func (p *Patch) Empty() bool {
	return p == nil || (p.Username == nil && p.Email == nil && p.FirstName == nil &&
		p.LastName == nil && p.Bio == nil && p.Role == nil)
}

// ListFilter narrows the user directory
type ListFilter struct {
	Search string // exact username
	Limit  int
	Offset int
}
