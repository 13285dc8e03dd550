package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"adminhub.org/internal/ids"
)

// GraphService owns the role/permission graph and user administration.
// Reads filter to active records; deletes are soft and never reversed.
type GraphService struct {
	store GraphStore
}

// NewGraphService constructs the graph service.
func NewGraphService(store GraphStore) (*GraphService, error) {
	if store == nil {
		return nil, errors.New("graph store is required")
	}
	return &GraphService{store: store}, nil
}

// EnsureBuiltins makes sure the builtin permission catalog exists.
func (s *GraphService) EnsureBuiltins(ctx context.Context) error {
	return s.store.EnsurePermissions(ctx, BuiltinPermissions)
}

// Bootstrap creates the named role if missing and a first user holding it.
// An existing login means the deployment is already bootstrapped; that is
// not an error.
func (s *GraphService) Bootstrap(ctx context.Context, roleName, login, password string) error {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	role, err := s.store.GetRoleByName(ctx, roleName)
	if errors.Is(err, ErrNotFound) {
		role, err = s.store.CreateRole(ctx, roleName)
	}
	if err != nil {
		return err
	}
	user, err := s.CreateUser(ctx, login, password, "System", "Administrator", "0")
	if errors.Is(err, ErrConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.store.AssignRole(ctx, user.ID, role.ID); err != nil {
		return err
	}
	return s.store.AppendStatus(ctx, StatusEntry{
		ID:     ids.New(),
		UserID: user.ID,
		Status: UserStatusActive,
	})
}

// Roles -------------------------------------------------------------------

func (s *GraphService) CreateRole(ctx context.Context, name string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	return s.store.CreateRole(ctx, name)
}

func (s *GraphService) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *GraphService) GetRole(ctx context.Context, roleID string) (Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.GetRole(ctx, roleID)
}

func (s *GraphService) GetRoleByName(ctx context.Context, name string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	return s.store.GetRoleByName(ctx, name)
}

// RoleName resolves a role id to its name; used by the access-check
// middleware when a request carries roleId instead of a role name.
func (s *GraphService) RoleName(ctx context.Context, roleID string) (string, error) {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return "", err
	}
	return role.Name, nil
}

func (s *GraphService) UpdateRole(ctx context.Context, roleID, name string) (Role, error) {
	roleID = strings.TrimSpace(roleID)
	name = strings.TrimSpace(name)
	if roleID == "" || name == "" {
		return Role{}, fmt.Errorf("%w: role_id and name are required", ErrInvalidInput)
	}
	return s.store.UpdateRole(ctx, roleID, name)
}

func (s *GraphService) DeleteRole(ctx context.Context, roleID string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.SoftDeleteRole(ctx, roleID)
}

// Permissions --------------------------------------------------------------

func (s *GraphService) CreatePermission(ctx context.Context, name, description string) (Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Permission{}, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
	}
	return s.store.CreatePermission(ctx, name, strings.TrimSpace(description))
}

func (s *GraphService) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

func (s *GraphService) GetPermission(ctx context.Context, permID string) (Permission, error) {
	permID = strings.TrimSpace(permID)
	if permID == "" {
		return Permission{}, fmt.Errorf("%w: access_id is required", ErrInvalidInput)
	}
	return s.store.GetPermission(ctx, permID)
}

func (s *GraphService) UpdatePermission(ctx context.Context, permID string, upd PermissionUpdate) (Permission, error) {
	permID = strings.TrimSpace(permID)
	if permID == "" {
		return Permission{}, fmt.Errorf("%w: access_id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Permission{}, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		upd.Description = &desc
	}
	return s.store.UpdatePermission(ctx, permID, upd)
}

func (s *GraphService) DeletePermission(ctx context.Context, permID string) error {
	permID = strings.TrimSpace(permID)
	if permID == "" {
		return fmt.Errorf("%w: access_id is required", ErrInvalidInput)
	}
	return s.store.SoftDeletePermission(ctx, permID)
}

// Role-access edges --------------------------------------------------------

func (s *GraphService) GrantPermission(ctx context.Context, roleID, permID string) error {
	roleID = strings.TrimSpace(roleID)
	permID = strings.TrimSpace(permID)
	if roleID == "" || permID == "" {
		return fmt.Errorf("%w: role_id and access_id are required", ErrInvalidInput)
	}
	return s.store.GrantPermission(ctx, roleID, permID)
}

func (s *GraphService) RevokePermission(ctx context.Context, roleID, permID string) error {
	roleID = strings.TrimSpace(roleID)
	permID = strings.TrimSpace(permID)
	if roleID == "" || permID == "" {
		return fmt.Errorf("%w: role_id and access_id are required", ErrInvalidInput)
	}
	return s.store.RevokePermission(ctx, roleID, permID)
}

func (s *GraphService) RolePermissions(ctx context.Context, roleID string) ([]Permission, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.RolePermissions(ctx, roleID)
}

// Users --------------------------------------------------------------------

func (s *GraphService) CreateUser(ctx context.Context, login, password, surname, name, tabNum string) (User, error) {
	login = strings.TrimSpace(login)
	surname = strings.TrimSpace(surname)
	name = strings.TrimSpace(name)
	if login == "" || password == "" || surname == "" || name == "" {
		return User{}, fmt.Errorf("%w: login, password, surname and name are required", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}
	return s.store.CreateUser(ctx, User{
		ID:           ids.New(),
		Login:        login,
		PasswordHash: hash,
		Surname:      surname,
		Name:         name,
		TabNum:       strings.TrimSpace(tabNum),
	})
}

func (s *GraphService) ListUsers(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

func (s *GraphService) GetUser(ctx context.Context, userID string) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.GetUser(ctx, userID)
}

func (s *GraphService) UpdateUser(ctx context.Context, userID string, upd UserUpdate) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if upd.Login != nil {
		login := strings.TrimSpace(*upd.Login)
		if login == "" {
			return User{}, fmt.Errorf("%w: login is required", ErrInvalidInput)
		}
		upd.Login = &login
	}
	if upd.Password != nil {
		pw := strings.TrimSpace(*upd.Password)
		if pw == "" {
			return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		hash, err := HashPassword(pw)
		if err != nil {
			return User{}, err
		}
		upd.Password = &hash
	}
	return s.store.UpdateUser(ctx, userID, upd)
}

// SetUserStatus appends a status history entry. History is never mutated;
// the new entry simply becomes the current status.
func (s *GraphService) SetUserStatus(ctx context.Context, userID string, status UserStatus) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	switch status {
	case UserStatusActive, UserStatusBanned, UserStatusDeleted:
	default:
		return fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, status)
	}
	return s.store.AppendStatus(ctx, StatusEntry{
		ID:     ids.New(),
		UserID: userID,
		Status: status,
	})
}

// DeleteUser soft-deletes by appending a deleted status entry; the user row
// itself is kept.
func (s *GraphService) DeleteUser(ctx context.Context, userID string) error {
	return s.SetUserStatus(ctx, userID, UserStatusDeleted)
}

func (s *GraphService) AssignRole(ctx context.Context, userID, roleID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	return s.store.AssignRole(ctx, userID, roleID)
}

func (s *GraphService) RemoveRole(ctx context.Context, userID, roleID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	return s.store.RemoveRole(ctx, userID, roleID)
}

func (s *GraphService) RolesForUser(ctx context.Context, userID string) ([]Role, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.RolesForUser(ctx, userID)
}

// Registrations ------------------------------------------------------------

func (s *GraphService) SubmitRegistration(ctx context.Context, login, password, surname, name, tabNum string) (RegistrationRequest, error) {
	login = strings.TrimSpace(login)
	surname = strings.TrimSpace(surname)
	name = strings.TrimSpace(name)
	tabNum = strings.TrimSpace(tabNum)
	if login == "" || password == "" || surname == "" || name == "" || tabNum == "" {
		return RegistrationRequest{}, fmt.Errorf("%w: login, password, surname, name and tab_num are required", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return RegistrationRequest{}, err
	}
	return s.store.CreateRegistration(ctx, RegistrationRequest{
		ID:           ids.New(),
		Login:        login,
		PasswordHash: hash,
		Surname:      surname,
		Name:         name,
		TabNum:       tabNum,
		Status:       RegistrationPending,
	})
}

func (s *GraphService) ListRegistrations(ctx context.Context) ([]RegistrationRequest, error) {
	return s.store.ListRegistrations(ctx, RegistrationPending)
}

// ApproveRegistration turns a pending request into a user with the given
// role. The store runs the whole flow in one transaction with the request
// row locked, so a concurrent second approval observes not-found.
func (s *GraphService) ApproveRegistration(ctx context.Context, requestID, roleID string) (User, error) {
	requestID = strings.TrimSpace(requestID)
	roleID = strings.TrimSpace(roleID)
	if requestID == "" || roleID == "" {
		return User{}, fmt.Errorf("%w: request_id and role_id are required", ErrInvalidInput)
	}
	return s.store.ApproveRegistration(ctx, requestID, roleID)
}

func (s *GraphService) RejectRegistration(ctx context.Context, requestID string) error {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return fmt.Errorf("%w: request_id is required", ErrInvalidInput)
	}
	return s.store.RejectRegistration(ctx, requestID)
}
