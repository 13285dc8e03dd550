package auth

import (
	"context"
	"testing"
	"time"
)

// memAuthStore is an in-memory Store backing the service tests.
type memAuthStore struct {
	users    map[string]User // keyed by login
	statuses map[string][]StatusEntry
	tokens   map[string]Token // keyed by hash
	sessions []Session
	roles    map[string][]Role
	perms    map[string][]string
}

func newMemAuthStore() *memAuthStore {
	return &memAuthStore{
		users:    make(map[string]User),
		statuses: make(map[string][]StatusEntry),
		tokens:   make(map[string]Token),
		roles:    make(map[string][]Role),
		perms:    make(map[string][]string),
	}
}

func (m *memAuthStore) addUser(t *testing.T, login, password string) User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := User{ID: "user-" + login, Login: login, PasswordHash: hash, Surname: "Doe", Name: "Jane"}
	m.users[login] = u
	return u
}

func (m *memAuthStore) FindUserByLogin(_ context.Context, login string) (User, error) {
	u, ok := m.users[login]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memAuthStore) FindUserByID(_ context.Context, id string) (User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memAuthStore) CreateToken(_ context.Context, tok Token) error {
	m.tokens[tok.TokenHash] = tok
	return nil
}

func (m *memAuthStore) FindTokenByHash(_ context.Context, hash string) (Token, error) {
	tok, ok := m.tokens[hash]
	if !ok {
		return Token{}, ErrNotFound
	}
	return tok, nil
}

func (m *memAuthStore) RevokeToken(_ context.Context, hash string) (bool, error) {
	tok, ok := m.tokens[hash]
	if !ok {
		return false, nil
	}
	tok.Status = TokenStatusRevoked
	m.tokens[hash] = tok
	return true, nil
}

func (m *memAuthStore) CreateSession(_ context.Context, sess Session) error {
	m.sessions = append(m.sessions, sess)
	return nil
}

func (m *memAuthStore) SessionsForUser(_ context.Context, userID string) ([]Session, error) {
	var out []Session
	for _, sess := range m.sessions {
		for _, tok := range m.tokens {
			if tok.ID == sess.TokenID && tok.UserID == userID {
				out = append(out, sess)
			}
		}
	}
	return out, nil
}

func (m *memAuthStore) TouchSession(_ context.Context, tokenID string, at time.Time) error {
	for i := range m.sessions {
		if m.sessions[i].TokenID == tokenID {
			m.sessions[i].LastActiveAt = at
		}
	}
	return nil
}

func (m *memAuthStore) LatestStatus(_ context.Context, userID string) (UserStatus, error) {
	history := m.statuses[userID]
	if len(history) == 0 {
		return "", ErrNotFound
	}
	return history[len(history)-1].Status, nil
}

func (m *memAuthStore) AppendStatus(_ context.Context, entry StatusEntry) error {
	m.statuses[entry.UserID] = append(m.statuses[entry.UserID], entry)
	return nil
}

func (m *memAuthStore) RolesForUser(_ context.Context, userID string) ([]Role, error) {
	return m.roles[userID], nil
}

func (m *memAuthStore) PermissionsForUser(_ context.Context, userID string) ([]string, error) {
	return m.perms[userID], nil
}

func newTestService(t *testing.T, store Store, opts ...ServiceOption) *Service {
	t.Helper()
	svc, err := NewService(store, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestLoginIssuesUsableToken(t *testing.T) {
	store := newMemAuthStore()
	user := store.addUser(t, "jdoe", "s3cret")
	store.roles[user.ID] = []Role{{ID: "r1", Name: "Admin"}}
	store.perms[user.ID] = []string{PermUserRead}

	svc := newTestService(t, store)

	issued, err := svc.Login(context.Background(), "jdoe", "s3cret", "cli", "127.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if issued.Token == "" {
		t.Fatal("expected a token")
	}
	if time.Until(issued.ExpiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %v", issued.ExpiresAt)
	}
	if len(store.sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(store.sessions))
	}

	principal, err := svc.ResolvePrincipal(context.Background(), issued.Token)
	if err != nil {
		t.Fatalf("ResolvePrincipal: %v", err)
	}
	if principal.User.ID != user.ID {
		t.Fatalf("unexpected principal user %s", principal.User.ID)
	}
	if !principal.HasRole("admin") {
		t.Fatal("expected role match to be case-insensitive")
	}
	if !principal.HasPermission(PermUserRead) {
		t.Fatalf("expected permission %s", PermUserRead)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store := newMemAuthStore()
	store.addUser(t, "jdoe", "s3cret")
	svc := newTestService(t, store)

	cases := []struct {
		name     string
		login    string
		password string
	}{
		{"unknown login", "ghost", "s3cret"},
		{"wrong password", "jdoe", "wrong"},
		{"empty login", "", "s3cret"},
		{"empty password", "jdoe", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Login(context.Background(), tc.login, tc.password, "", ""); err != ErrInvalidCredentials {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	store := newMemAuthStore()
	user := store.addUser(t, "jdoe", "s3cret")
	store.statuses[user.ID] = []StatusEntry{{UserID: user.ID, Status: UserStatusBanned}}
	svc := newTestService(t, store)

	if _, err := svc.Login(context.Background(), "jdoe", "s3cret", "", ""); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for banned user, got %v", err)
	}
}

func TestResolveRejectsRevokedToken(t *testing.T) {
	store := newMemAuthStore()
	store.addUser(t, "jdoe", "s3cret")
	svc := newTestService(t, store)

	issued, err := svc.Login(context.Background(), "jdoe", "s3cret", "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	revoked, err := svc.Logout(context.Background(), issued.Token)
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if !revoked {
		t.Fatal("expected token revocation to match a row")
	}

	if _, err := svc.ResolvePrincipal(context.Background(), issued.Token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken after logout, got %v", err)
	}

	// second logout still reports the row as matched
	revoked, err = svc.Logout(context.Background(), issued.Token)
	if err != nil {
		t.Fatalf("Logout again: %v", err)
	}
	if !revoked {
		t.Fatal("expected repeat revocation to match")
	}
}

func TestResolveRejectsExpiredToken(t *testing.T) {
	store := newMemAuthStore()
	store.addUser(t, "jdoe", "s3cret")

	current := time.Now().UTC()
	svc := newTestService(t, store,
		WithClock(func() time.Time { return current }),
		WithTokenTTL(time.Minute),
	)

	issued, err := svc.Login(context.Background(), "jdoe", "s3cret", "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := svc.ResolvePrincipal(context.Background(), issued.Token); err != nil {
		t.Fatalf("ResolvePrincipal before expiry: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, err := svc.ResolvePrincipal(context.Background(), issued.Token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestResolveRejectsBannedOwner(t *testing.T) {
	store := newMemAuthStore()
	user := store.addUser(t, "jdoe", "s3cret")
	svc := newTestService(t, store)

	issued, err := svc.Login(context.Background(), "jdoe", "s3cret", "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	store.statuses[user.ID] = []StatusEntry{{UserID: user.ID, Status: UserStatusBanned}}
	if _, err := svc.ResolvePrincipal(context.Background(), issued.Token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for banned owner, got %v", err)
	}
}

func TestResolveRejectsUnknownToken(t *testing.T) {
	store := newMemAuthStore()
	svc := newTestService(t, store)

	if _, err := svc.ResolvePrincipal(context.Background(), "not-a-token"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.ResolvePrincipal(context.Background(), ""); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for empty input, got %v", err)
	}
}

func TestTouchSessionUpdatesLastActive(t *testing.T) {
	store := newMemAuthStore()
	store.addUser(t, "jdoe", "s3cret")

	current := time.Now().UTC()
	svc := newTestService(t, store, WithClock(func() time.Time { return current }))

	issued, err := svc.Login(context.Background(), "jdoe", "s3cret", "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	current = current.Add(10 * time.Minute)
	if err := svc.TouchSession(context.Background(), issued.Token); err != nil {
		t.Fatalf("TouchSession: %v", err)
	}
	if !store.sessions[0].LastActiveAt.Equal(current) {
		t.Fatalf("expected last_active_at %v, got %v", current, store.sessions[0].LastActiveAt)
	}
}

func TestOpaqueTokensAreUniqueAndHashed(t *testing.T) {
	a, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	b, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct tokens")
	}
	if HashToken(a) == a {
		t.Fatal("hash must differ from the raw token")
	}
	if len(HashToken(a)) != 64 {
		t.Fatalf("expected sha-256 hex digest, got %d chars", len(HashToken(a)))
	}
}
