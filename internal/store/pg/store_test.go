package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"adminhub.org/internal/auth"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindTokenByHash(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("select id, user_id, token_hash, status, expires_at, created_at.*from user_tokens").
		WithArgs("hash-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "status", "expires_at", "created_at"}).
			AddRow("tok-1", "user-1", "hash-1", "active", now.Add(time.Hour), now))

	tok, err := store.FindTokenByHash(context.Background(), "hash-1")
	if err != nil {
		t.Fatalf("FindTokenByHash: %v", err)
	}
	if tok.UserID != "user-1" || tok.Status != auth.TokenStatusActive {
		t.Fatalf("unexpected token %+v", tok)
	}

	mock.ExpectQuery("select id, user_id, token_hash, status, expires_at, created_at.*from user_tokens").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "status", "expires_at", "created_at"}))

	if _, err := store.FindTokenByHash(context.Background(), "missing"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestRevokeTokenReportsMatch(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update user_tokens set status = 'revoked'").
		WithArgs("hash-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	revoked, err := store.RevokeToken(context.Background(), "hash-1")
	if err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if !revoked {
		t.Fatal("expected revocation to match a row")
	}

	mock.ExpectExec("update user_tokens set status = 'revoked'").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	revoked, err = store.RevokeToken(context.Background(), "missing")
	if err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if revoked {
		t.Fatal("expected no match for an unknown hash")
	}
	expectationsMet(t, mock)
}

func TestLatestStatusDefaultsToNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select status.*from user_status_history").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	if _, err := store.LatestStatus(context.Background(), "user-1"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty history, got %v", err)
	}

	mock.ExpectQuery("select status.*from user_status_history").
		WithArgs("user-2").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("banned"))

	status, err := store.LatestStatus(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("LatestStatus: %v", err)
	}
	if status != auth.UserStatusBanned {
		t.Fatalf("expected banned, got %s", status)
	}
	expectationsMet(t, mock)
}

func TestGrantPermissionChecksActiveEndpoints(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select 1 from roles where id = \\$1 and status = 'active'").
		WithArgs("role-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("select 1 from access where id = \\$1 and status = 'active'").
		WithArgs("perm-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec("insert into role_access").
		WithArgs("role-1", "perm-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.GrantPermission(context.Background(), "role-1", "perm-1"); err != nil {
		t.Fatalf("GrantPermission: %v", err)
	}

	// repeat grant hits on-conflict-do-nothing and still succeeds
	mock.ExpectQuery("select 1 from roles where id = \\$1 and status = 'active'").
		WithArgs("role-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("select 1 from access where id = \\$1 and status = 'active'").
		WithArgs("perm-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec("insert into role_access").
		WithArgs("role-1", "perm-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.GrantPermission(context.Background(), "role-1", "perm-1"); err != nil {
		t.Fatalf("repeat GrantPermission: %v", err)
	}
	expectationsMet(t, mock)
}

func TestSoftDeleteRoleNotFoundWhenAlreadyDeleted(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update roles set status = 'deleted'").
		WithArgs("role-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.SoftDeleteRole(context.Background(), "role-1"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestApproveRegistrationTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("select id, login, password_hash, surname, name, tab_num, status, created_at.*from registration_requests.*for update").
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "login", "password_hash", "surname", "name", "tab_num", "status", "created_at"}).
			AddRow("req-1", "newbie", "hash", "New", "Bie", "77", "pending", now))
	mock.ExpectQuery("select 1 from roles where id = \\$1 and status = 'active'").
		WithArgs("role-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("insert into users").
		WithArgs(sqlmock.AnyArg(), "newbie", "hash", "New", "Bie", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "login", "password_hash", "surname", "name", "tab_num", "created_at", "updated_at"}).
			AddRow("user-9", "newbie", "hash", "New", "Bie", "77", now, now))
	mock.ExpectExec("insert into users_role").
		WithArgs(sqlmock.AnyArg(), "role-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into user_status_history").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update registration_requests set status = 'approved'").
		WithArgs("req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user, err := store.ApproveRegistration(context.Background(), "req-1", "role-1")
	if err != nil {
		t.Fatalf("ApproveRegistration: %v", err)
	}
	if user.Login != "newbie" {
		t.Fatalf("unexpected user %+v", user)
	}
	expectationsMet(t, mock)
}

func TestApproveRegistrationMissingRequestRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select id, login, password_hash, surname, name, tab_num, status, created_at.*from registration_requests.*for update").
		WithArgs("req-404").
		WillReturnRows(sqlmock.NewRows([]string{"id", "login", "password_hash", "surname", "name", "tab_num", "status", "created_at"}))
	mock.ExpectRollback()

	if _, err := store.ApproveRegistration(context.Background(), "req-404", "role-1"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestRejectRegistrationOnlyPending(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update registration_requests set status = 'rejected'").
		WithArgs("req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.RejectRegistration(context.Background(), "req-1"); err != nil {
		t.Fatalf("RejectRegistration: %v", err)
	}

	mock.ExpectExec("update registration_requests set status = 'rejected'").
		WithArgs("req-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.RejectRegistration(context.Background(), "req-1"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-pending request, got %v", err)
	}
	expectationsMet(t, mock)
}
