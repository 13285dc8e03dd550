package auth

import (
	"context"
	"time"
)

// Store describes the persistence required by the authentication service:
// credential lookup, token lifecycle, session recording and the per-request
// reads behind principal resolution.
type Store interface {
	FindUserByLogin(ctx context.Context, login string) (User, error)
	FindUserByID(ctx context.Context, id string) (User, error)

	CreateToken(ctx context.Context, tok Token) error
	FindTokenByHash(ctx context.Context, hash string) (Token, error)
	// RevokeToken marks the token revoked and reports whether a matching
	// row existed. Revoking an already revoked token still counts as a
	// match; only an unknown hash returns false.
	RevokeToken(ctx context.Context, hash string) (bool, error)

	CreateSession(ctx context.Context, sess Session) error
	SessionsForUser(ctx context.Context, userID string) ([]Session, error)
	TouchSession(ctx context.Context, tokenID string, at time.Time) error

	// LatestStatus returns the most recent status history entry for the
	// user, or ErrNotFound when no entry exists (callers default to active).
	LatestStatus(ctx context.Context, userID string) (UserStatus, error)
	AppendStatus(ctx context.Context, entry StatusEntry) error

	// RolesForUser returns the user's active roles.
	RolesForUser(ctx context.Context, userID string) ([]Role, error)
	// PermissionsForUser returns the distinct permission names granted via
	// the user's active roles.
	PermissionsForUser(ctx context.Context, userID string) ([]string, error)
}

// GraphStore describes persistence for the role/permission graph and user
// administration, including the transactional registration approval.
type GraphStore interface {
	CreateRole(ctx context.Context, name string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, roleID string) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	UpdateRole(ctx context.Context, roleID, name string) (Role, error)
	SoftDeleteRole(ctx context.Context, roleID string) error

	CreatePermission(ctx context.Context, name, description string) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermission(ctx context.Context, permID string) (Permission, error)
	UpdatePermission(ctx context.Context, permID string, upd PermissionUpdate) (Permission, error)
	SoftDeletePermission(ctx context.Context, permID string) error

	// GrantPermission is idempotent: granting an existing edge succeeds.
	GrantPermission(ctx context.Context, roleID, permID string) error
	RevokePermission(ctx context.Context, roleID, permID string) error
	RolePermissions(ctx context.Context, roleID string) ([]Permission, error)

	CreateUser(ctx context.Context, u User) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, userID string) (User, error)
	UpdateUser(ctx context.Context, userID string, upd UserUpdate) (User, error)
	AssignRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
	RolesForUser(ctx context.Context, userID string) ([]Role, error)

	AppendStatus(ctx context.Context, entry StatusEntry) error
	LatestStatus(ctx context.Context, userID string) (UserStatus, error)

	CreateRegistration(ctx context.Context, req RegistrationRequest) (RegistrationRequest, error)
	ListRegistrations(ctx context.Context, status RegistrationStatus) ([]RegistrationRequest, error)
	// ApproveRegistration creates the user, assigns the role and records the
	// initial status in one transaction, locking the request row so
	// concurrent approvals process it exactly once. A request that is not
	// pending returns ErrNotFound.
	ApproveRegistration(ctx context.Context, requestID, roleID string) (User, error)
	RejectRegistration(ctx context.Context, requestID string) error

	// EnsurePermissions inserts any missing catalog entries, used at startup
	// for the builtin permission set.
	EnsurePermissions(ctx context.Context, perms []Permission) error
}

// PermissionUpdate carries the optional fields of a permission update.
type PermissionUpdate struct {
	Name        *string
	Description *string
}

// UserUpdate carries the optional fields of a user update. Password is
// plaintext on input and hashed at the service boundary.
type UserUpdate struct {
	Login    *string
	Password *string
	Surname  *string
	Name     *string
	TabNum   *string
}
