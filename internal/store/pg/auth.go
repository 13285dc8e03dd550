package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"adminhub.org/internal/auth"
)

var _ auth.Store = (*Store)(nil)

func (s *Store) FindUserByLogin(ctx context.Context, login string) (auth.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		select id, login, password_hash, surname, name, coalesce(tab_num, ''), created_at, updated_at
		from users
		where lower(login) = lower($1)
	`, login))
}

func (s *Store) FindUserByID(ctx context.Context, id string) (auth.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		select id, login, password_hash, surname, name, coalesce(tab_num, ''), created_at, updated_at
		from users
		where id = $1
	`, id))
}

func (s *Store) scanUser(row *sql.Row) (auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.Surname, &u.Name, &u.TabNum, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}

func (s *Store) CreateToken(ctx context.Context, tok auth.Token) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_tokens (id, user_id, token_hash, status, expires_at, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, tok.ID, tok.UserID, tok.TokenHash, string(tok.Status), tok.ExpiresAt, tok.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) FindTokenByHash(ctx context.Context, hash string) (auth.Token, error) {
	var (
		tok    auth.Token
		status string
	)
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, token_hash, status, expires_at, created_at
		from user_tokens
		where token_hash = $1
	`, hash).Scan(&tok.ID, &tok.UserID, &tok.TokenHash, &status, &tok.ExpiresAt, &tok.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Token{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Token{}, err
	}
	tok.Status = auth.TokenStatus(status)
	return tok, nil
}

func (s *Store) RevokeToken(ctx context.Context, hash string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update user_tokens set status = 'revoked' where token_hash = $1
	`, hash)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}

func (s *Store) CreateSession(ctx context.Context, sess auth.Session) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_sessions (id, token_id, device, ip_address, last_active_at, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, sess.ID, sess.TokenID, nullIfEmpty(sess.Device), nullIfEmpty(sess.IPAddress), sess.LastActiveAt, sess.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) SessionsForUser(ctx context.Context, userID string) ([]auth.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		select s.id, s.token_id, coalesce(s.device, ''), coalesce(s.ip_address, ''), s.last_active_at, s.created_at
		from user_sessions s
		join user_tokens t on t.id = s.token_id
		where t.user_id = $1
		order by s.created_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []auth.Session
	for rows.Next() {
		var sess auth.Session
		if err := rows.Scan(&sess.ID, &sess.TokenID, &sess.Device, &sess.IPAddress, &sess.LastActiveAt, &sess.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *Store) TouchSession(ctx context.Context, tokenID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		update user_sessions set last_active_at = $2 where token_id = $1
	`, tokenID, at)
	return err
}

func (s *Store) LatestStatus(ctx context.Context, userID string) (auth.UserStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `
		select status
		from user_status_history
		where user_id = $1
		order by created_at desc, id desc
		limit 1
	`, userID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", auth.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return auth.UserStatus(status), nil
}

func (s *Store) AppendStatus(ctx context.Context, entry auth.StatusEntry) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_status_history (id, user_id, status, created_at)
		values ($1, $2, $3, now())
	`, entry.ID, entry.UserID, string(entry.Status))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) RolesForUser(ctx context.Context, userID string) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.status, r.created_at, r.updated_at
		from users_role ur
		join roles r on r.id = ur.role_id
		where ur.user_id = $1 and r.status = 'active'
		order by r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		var (
			role   auth.Role
			status string
		)
		if err := rows.Scan(&role.ID, &role.Name, &status, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		role.Status = auth.RecordStatus(status)
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) PermissionsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct a.name
		from users_role ur
		join roles r on r.id = ur.role_id and r.status = 'active'
		join role_access ra on ra.role_id = ur.role_id
		join access a on a.id = ra.access_id and a.status = 'active'
		where ur.user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}
