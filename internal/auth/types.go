package auth

import (
	"errors"
	"regexp"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// Role is an authorisation tier.
type Role string

const (
	// RoleOperator may change setpoints, switches and selects.
	RoleOperator Role = "operator"

	// RoleAdmin may also reboot the controller.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of assignable roles.
var ValidRoles = []Role{RoleOperator, RoleAdmin}

// IsValidRole returns true if the role can be assigned to an account.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Account is a configured login.
type Account struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // never serialised
	Role         Role   `json:"role"`
}

// Principal is the identity behind a verified token.
type Principal struct {
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	SessionID string `json:"session_id"`
}

// Can reports whether the principal's role grants a permission.
func (p Principal) Can(perm Permission) bool {
	return HasPermission(p.Role, perm)
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidAccount     = errors.New("auth: invalid account")
	ErrSecretRequired     = errors.New("auth: signing secret is required")
	ErrInvalidHash        = errors.New("auth: invalid password hash")
	ErrTokenInvalid       = errors.New("auth: invalid token")
	ErrForbidden          = errors.New("auth: insufficient permissions")
)
