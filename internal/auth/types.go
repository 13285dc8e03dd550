package auth

import (
	"strings"
	"time"
)

// UserStatus is the lifecycle state of a user account. The current status is
// derived from the latest status history entry and defaults to active.
type UserStatus string

const (
	UserStatusActive  UserStatus = "active"
	UserStatusBanned  UserStatus = "banned"
	UserStatusDeleted UserStatus = "deleted"
)

// ParseUserStatus validates a status string against the closed enum.
func ParseUserStatus(raw string) (UserStatus, bool) {
	switch UserStatus(strings.TrimSpace(strings.ToLower(raw))) {
	case UserStatusActive:
		return UserStatusActive, true
	case UserStatusBanned:
		return UserStatusBanned, true
	case UserStatusDeleted:
		return UserStatusDeleted, true
	}
	return "", false
}

// RecordStatus is the soft-delete state carried by roles and permissions.
// The only supported transition is active -> deleted.
type RecordStatus string

const (
	RecordStatusActive  RecordStatus = "active"
	RecordStatusDeleted RecordStatus = "deleted"
)

// TokenStatus is the lifecycle state of a bearer token. Revoked tokens are
// kept for session history, never deleted.
type TokenStatus string

const (
	TokenStatusActive  TokenStatus = "active"
	TokenStatusRevoked TokenStatus = "revoked"
)

// RegistrationStatus is the state of a pending registration request.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

// User is an account operated by a person. Password hashes never leave the
// auth package.
type User struct {
	ID           string    `json:"id"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	Surname      string    `json:"surname"`
	Name         string    `json:"name"`
	TabNum       string    `json:"tab_num,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StatusEntry is one append-only status history record.
type StatusEntry struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Role groups permissions. Three role names are semantically privileged:
// superadmin, admin, and everything else is a regular role. The comparison
// is by name, case-insensitive.
type Role struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Status    RecordStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Permission is a named coarse capability such as user_read. Names are
// matched case-sensitively.
type Permission struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Status      RecordStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Token is a persisted opaque bearer credential. Only the SHA-256 hash of
// the raw value is stored.
type Token struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	TokenHash string      `json:"-"`
	Status    TokenStatus `json:"status"`
	ExpiresAt time.Time   `json:"expires_at"`
	CreatedAt time.Time   `json:"created_at"`
}

// Usable reports whether the token may still authenticate requests.
func (t Token) Usable(now time.Time) bool {
	return t.Status == TokenStatusActive && now.Before(t.ExpiresAt)
}

// Session records one login: which device and address presented the token.
type Session struct {
	ID           string    `json:"id"`
	TokenID      string    `json:"token_id"`
	Device       string    `json:"device,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	LastActiveAt time.Time `json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// RegistrationRequest is a pending account application awaiting approval.
type RegistrationRequest struct {
	ID           string             `json:"id"`
	Login        string             `json:"login"`
	PasswordHash string             `json:"-"`
	Surname      string             `json:"surname"`
	Name         string             `json:"name"`
	TabNum       string             `json:"tab_num"`
	Status       RegistrationStatus `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
}

// Principal is an authenticated user with resolved roles, permissions and
// current status.
type Principal struct {
	User        User                `json:"user"`
	Status      UserStatus          `json:"status"`
	Roles       []Role              `json:"roles"`
	Permissions map[string]struct{} `json:"-"`
}

// HasPermission reports whether the principal holds the named coarse
// permission. Matching is case-sensitive.
func (p Principal) HasPermission(name string) bool {
	_, ok := p.Permissions[name]
	return ok
}

// HasRole reports whether the principal holds the named role,
// case-insensitively.
func (p Principal) HasRole(name string) bool {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return false
	}
	for _, r := range p.Roles {
		if strings.ToLower(r.Name) == name {
			return true
		}
	}
	return false
}

// RoleNames returns the principal's role names lower-cased, the form the
// policy layer works with.
func (p Principal) RoleNames() []string {
	out := make([]string, 0, len(p.Roles))
	for _, r := range p.Roles {
		out = append(out, strings.ToLower(r.Name))
	}
	return out
}

// PermissionNames returns the permission set as a sorted-free slice for
// serialization.
func (p Principal) PermissionNames() []string {
	out := make([]string, 0, len(p.Permissions))
	for name := range p.Permissions {
		out = append(out, name)
	}
	return out
}
