package auth

import (
	"context"
	"errors"
	"testing"
)

// stubGraphStore records calls; unset functions return zero values.
type stubGraphStore struct {
	createRoleFn    func(context.Context, string) (Role, error)
	getRoleByNameFn func(context.Context, string) (Role, error)
	createUserFn    func(context.Context, User) (User, error)
	assignRoleFn    func(context.Context, string, string) error
	appendStatusFn  func(context.Context, StatusEntry) error
	createRegFn     func(context.Context, RegistrationRequest) (RegistrationRequest, error)
	approveRegFn    func(context.Context, string, string) (User, error)
	ensurePermsFn   func(context.Context, []Permission) error
}

func (s *stubGraphStore) CreateRole(ctx context.Context, name string) (Role, error) {
	if s.createRoleFn != nil {
		return s.createRoleFn(ctx, name)
	}
	return Role{}, nil
}
func (s *stubGraphStore) ListRoles(context.Context) ([]Role, error) { return nil, nil }
func (s *stubGraphStore) GetRole(context.Context, string) (Role, error) {
	return Role{}, ErrNotFound
}
func (s *stubGraphStore) GetRoleByName(ctx context.Context, name string) (Role, error) {
	if s.getRoleByNameFn != nil {
		return s.getRoleByNameFn(ctx, name)
	}
	return Role{}, ErrNotFound
}
func (s *stubGraphStore) UpdateRole(context.Context, string, string) (Role, error) {
	return Role{}, nil
}
func (s *stubGraphStore) SoftDeleteRole(context.Context, string) error { return nil }
func (s *stubGraphStore) CreatePermission(context.Context, string, string) (Permission, error) {
	return Permission{}, nil
}
func (s *stubGraphStore) ListPermissions(context.Context) ([]Permission, error) { return nil, nil }
func (s *stubGraphStore) GetPermission(context.Context, string) (Permission, error) {
	return Permission{}, nil
}
func (s *stubGraphStore) UpdatePermission(context.Context, string, PermissionUpdate) (Permission, error) {
	return Permission{}, nil
}
func (s *stubGraphStore) SoftDeletePermission(context.Context, string) error { return nil }
func (s *stubGraphStore) GrantPermission(context.Context, string, string) error { return nil }
func (s *stubGraphStore) RevokePermission(context.Context, string, string) error { return nil }
func (s *stubGraphStore) RolePermissions(context.Context, string) ([]Permission, error) {
	return nil, nil
}
func (s *stubGraphStore) CreateUser(ctx context.Context, u User) (User, error) {
	if s.createUserFn != nil {
		return s.createUserFn(ctx, u)
	}
	return u, nil
}
func (s *stubGraphStore) ListUsers(context.Context) ([]User, error) { return nil, nil }
func (s *stubGraphStore) GetUser(context.Context, string) (User, error) { return User{}, nil }
func (s *stubGraphStore) UpdateUser(context.Context, string, UserUpdate) (User, error) {
	return User{}, nil
}
func (s *stubGraphStore) AssignRole(ctx context.Context, userID, roleID string) error {
	if s.assignRoleFn != nil {
		return s.assignRoleFn(ctx, userID, roleID)
	}
	return nil
}
func (s *stubGraphStore) RemoveRole(context.Context, string, string) error { return nil }
func (s *stubGraphStore) RolesForUser(context.Context, string) ([]Role, error) {
	return nil, nil
}
func (s *stubGraphStore) AppendStatus(ctx context.Context, entry StatusEntry) error {
	if s.appendStatusFn != nil {
		return s.appendStatusFn(ctx, entry)
	}
	return nil
}
func (s *stubGraphStore) LatestStatus(context.Context, string) (UserStatus, error) {
	return "", ErrNotFound
}
func (s *stubGraphStore) CreateRegistration(ctx context.Context, req RegistrationRequest) (RegistrationRequest, error) {
	if s.createRegFn != nil {
		return s.createRegFn(ctx, req)
	}
	return req, nil
}
func (s *stubGraphStore) ListRegistrations(context.Context, RegistrationStatus) ([]RegistrationRequest, error) {
	return nil, nil
}
func (s *stubGraphStore) ApproveRegistration(ctx context.Context, requestID, roleID string) (User, error) {
	if s.approveRegFn != nil {
		return s.approveRegFn(ctx, requestID, roleID)
	}
	return User{}, nil
}
func (s *stubGraphStore) RejectRegistration(context.Context, string) error { return nil }
func (s *stubGraphStore) EnsurePermissions(ctx context.Context, perms []Permission) error {
	if s.ensurePermsFn != nil {
		return s.ensurePermsFn(ctx, perms)
	}
	return nil
}

func newTestGraph(t *testing.T, store GraphStore) *GraphService {
	t.Helper()
	svc, err := NewGraphService(store)
	if err != nil {
		t.Fatalf("NewGraphService: %v", err)
	}
	return svc
}

func TestCreateUserHashesPassword(t *testing.T) {
	var stored User
	store := &stubGraphStore{
		createUserFn: func(_ context.Context, u User) (User, error) {
			stored = u
			return u, nil
		},
	}
	svc := newTestGraph(t, store)

	user, err := svc.CreateUser(context.Background(), "jdoe", "s3cret", "Doe", "Jane", "1042")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected generated id")
	}
	if stored.PasswordHash == "s3cret" || stored.PasswordHash == "" {
		t.Fatal("expected stored password to be hashed")
	}
	if err := VerifyPassword(stored.PasswordHash, "s3cret"); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestCreateUserValidatesInput(t *testing.T) {
	svc := newTestGraph(t, &stubGraphStore{})

	cases := [][5]string{
		{"", "pw", "Doe", "Jane", "1"},
		{"jdoe", "", "Doe", "Jane", "1"},
		{"jdoe", "pw", "", "Jane", "1"},
		{"jdoe", "pw", "Doe", "", "1"},
	}
	for _, c := range cases {
		if _, err := svc.CreateUser(context.Background(), c[0], c[1], c[2], c[3], c[4]); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %v, got %v", c, err)
		}
	}
}

func TestSetUserStatusRejectsUnknownValue(t *testing.T) {
	svc := newTestGraph(t, &stubGraphStore{})

	if err := svc.SetUserStatus(context.Background(), "u1", UserStatus("suspended")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	var appended []StatusEntry
	store := &stubGraphStore{
		appendStatusFn: func(_ context.Context, entry StatusEntry) error {
			appended = append(appended, entry)
			return nil
		},
	}
	svc = newTestGraph(t, store)
	if err := svc.SetUserStatus(context.Background(), "u1", UserStatusBanned); err != nil {
		t.Fatalf("SetUserStatus: %v", err)
	}
	if err := svc.DeleteUser(context.Background(), "u1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if len(appended) != 2 || appended[0].Status != UserStatusBanned || appended[1].Status != UserStatusDeleted {
		t.Fatalf("unexpected status history %v", appended)
	}
}

func TestSubmitRegistrationHashesAndDefaultsPending(t *testing.T) {
	var captured RegistrationRequest
	store := &stubGraphStore{
		createRegFn: func(_ context.Context, req RegistrationRequest) (RegistrationRequest, error) {
			captured = req
			return req, nil
		},
	}
	svc := newTestGraph(t, store)

	reg, err := svc.SubmitRegistration(context.Background(), "newbie", "pw12345", "New", "Bie", "7")
	if err != nil {
		t.Fatalf("SubmitRegistration: %v", err)
	}
	if reg.Status != RegistrationPending {
		t.Fatalf("expected pending status, got %s", reg.Status)
	}
	if captured.PasswordHash == "pw12345" {
		t.Fatal("expected password to be hashed before storage")
	}

	if _, err := svc.SubmitRegistration(context.Background(), "newbie", "pw", "New", "Bie", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without tab_num, got %v", err)
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	created := 0
	store := &stubGraphStore{
		getRoleByNameFn: func(_ context.Context, name string) (Role, error) {
			return Role{ID: "r-super", Name: name}, nil
		},
		createUserFn: func(_ context.Context, u User) (User, error) {
			created++
			if created > 1 {
				return User{}, ErrConflict
			}
			return u, nil
		},
	}
	svc := newTestGraph(t, store)

	if err := svc.Bootstrap(context.Background(), "superadmin", "root", "pw"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if err := svc.Bootstrap(context.Background(), "superadmin", "root", "pw"); err != nil {
		t.Fatalf("Bootstrap repeat: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected two create attempts, got %d", created)
	}
}
