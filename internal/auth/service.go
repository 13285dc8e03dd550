package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"adminhub.org/internal/ids"
)

const defaultTokenTTL = time.Hour

// Service authenticates credentials, mints and revokes opaque bearer
// tokens, and resolves tokens back to principals.
type Service struct {
	store    Store
	now      func() time.Time
	tokenTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithTokenTTL configures the token expiry window.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// NewService constructs the authentication service.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth store is required")
	}
	svc := &Service{
		store:    store,
		now:      time.Now,
		tokenTTL: defaultTokenTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// IssuedToken is the result of a successful login.
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login validates credentials and issues a fresh token plus a session
// record. Unknown logins and password mismatches both come back as
// ErrInvalidCredentials; the password comparison runs either way so the two
// paths cost the same.
func (s *Service) Login(ctx context.Context, login, password, device, ipAddress string) (IssuedToken, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return IssuedToken{}, ErrInvalidCredentials
	}

	user, err := s.store.FindUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = VerifyPassword(dummyHash, password)
			return IssuedToken{}, ErrInvalidCredentials
		}
		return IssuedToken{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return IssuedToken{}, ErrInvalidCredentials
	}

	status, err := s.currentStatus(ctx, user.ID)
	if err != nil {
		return IssuedToken{}, err
	}
	if status != UserStatusActive {
		return IssuedToken{}, ErrInvalidCredentials
	}

	raw, err := NewOpaqueToken()
	if err != nil {
		return IssuedToken{}, err
	}
	now := s.now().UTC()
	tok := Token{
		ID:        ids.New(),
		UserID:    user.ID,
		TokenHash: HashToken(raw),
		Status:    TokenStatusActive,
		ExpiresAt: now.Add(s.tokenTTL),
		CreatedAt: now,
	}
	if err := s.store.CreateToken(ctx, tok); err != nil {
		return IssuedToken{}, err
	}
	sess := Session{
		ID:           uuid.NewString(),
		TokenID:      tok.ID,
		Device:       strings.TrimSpace(device),
		IPAddress:    strings.TrimSpace(ipAddress),
		LastActiveAt: now,
		CreatedAt:    now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Token: raw, ExpiresAt: tok.ExpiresAt}, nil
}

// ResolvePrincipal maps a raw bearer token to an authenticated principal.
// It fails closed with ErrInvalidToken when the token is unknown, revoked,
// expired, or when the owner's current status is not active.
func (s *Service) ResolvePrincipal(ctx context.Context, raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, ErrInvalidToken
	}
	tok, err := s.store.FindTokenByHash(ctx, HashToken(raw))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	if !tok.Usable(s.now()) {
		return Principal{}, ErrInvalidToken
	}

	user, err := s.store.FindUserByID(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	status, err := s.currentStatus(ctx, user.ID)
	if err != nil {
		return Principal{}, err
	}
	if status != UserStatusActive {
		return Principal{}, ErrInvalidToken
	}

	roles, err := s.store.RolesForUser(ctx, user.ID)
	if err != nil {
		return Principal{}, err
	}
	perms, err := s.store.PermissionsForUser(ctx, user.ID)
	if err != nil {
		return Principal{}, err
	}
	permSet := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		permSet[p] = struct{}{}
	}
	return Principal{User: user, Status: status, Roles: roles, Permissions: permSet}, nil
}

// Logout revokes the presented token. It reports false only when no
// matching token row exists at all; revoking an already revoked token is a
// success.
func (s *Service) Logout(ctx context.Context, raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	return s.store.RevokeToken(ctx, HashToken(raw))
}

// Sessions returns the login session history for a user, newest first.
func (s *Service) Sessions(ctx context.Context, userID string) ([]Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.store.SessionsForUser(ctx, userID)
}

// TouchSession updates the last-active timestamp of the sessions tied to a
// raw token. Called on demand, not on every request.
func (s *Service) TouchSession(ctx context.Context, raw string) error {
	tok, err := s.store.FindTokenByHash(ctx, HashToken(raw))
	if err != nil {
		return err
	}
	return s.store.TouchSession(ctx, tok.ID, s.now().UTC())
}

func (s *Service) currentStatus(ctx context.Context, userID string) (UserStatus, error) {
	status, err := s.store.LatestStatus(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return UserStatusActive, nil
	}
	if err != nil {
		return "", err
	}
	return status, nil
}
