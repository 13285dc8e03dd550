package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"adminhub.org/internal/auth"
	"adminhub.org/internal/ids"
)

var _ auth.GraphStore = (*Store)(nil)

// Roles ---------------------------------------------------------------------

func (s *Store) CreateRole(ctx context.Context, name string) (auth.Role, error) {
	var (
		role   auth.Role
		status string
	)
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, name, status)
		values ($1, $2, 'active')
		returning id, name, status, created_at, updated_at
	`, ids.New(), name)
	if err := row.Scan(&role.ID, &role.Name, &status, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.Role{}, auth.ErrConflict
		}
		return auth.Role{}, err
	}
	role.Status = auth.RecordStatus(status)
	return role, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, status, created_at, updated_at
		from roles
		where status = 'active'
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}

func (s *Store) GetRole(ctx context.Context, roleID string) (auth.Role, error) {
	return s.roleWhere(ctx, `id = $1`, roleID)
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (auth.Role, error) {
	return s.roleWhere(ctx, `lower(name) = lower($1)`, name)
}

func (s *Store) roleWhere(ctx context.Context, cond, arg string) (auth.Role, error) {
	var (
		role   auth.Role
		status string
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, status, created_at, updated_at
		from roles
		where `+cond+` and status = 'active'
	`, arg).Scan(&role.ID, &role.Name, &status, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Role{}, err
	}
	role.Status = auth.RecordStatus(status)
	return role, nil
}

func (s *Store) UpdateRole(ctx context.Context, roleID, name string) (auth.Role, error) {
	res, err := s.db.ExecContext(ctx, `
		update roles set name = $2, updated_at = now()
		where id = $1 and status = 'active'
	`, roleID, name)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.Role{}, auth.ErrConflict
		}
		return auth.Role{}, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return auth.Role{}, err
	}
	if aff == 0 {
		return auth.Role{}, auth.ErrNotFound
	}
	return s.GetRole(ctx, roleID)
}

func (s *Store) SoftDeleteRole(ctx context.Context, roleID string) error {
	res, err := s.db.ExecContext(ctx, `
		update roles set status = 'deleted', updated_at = now()
		where id = $1 and status = 'active'
	`, roleID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func scanRoles(rows *sql.Rows) ([]auth.Role, error) {
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

// Permissions ---------------------------------------------------------------

func (s *Store) CreatePermission(ctx context.Context, name, description string) (auth.Permission, error) {
	var (
		perm   auth.Permission
		desc   sql.NullString
		status string
	)
	row := s.db.QueryRowContext(ctx, `
		insert into access (id, name, description, status)
		values ($1, $2, $3, 'active')
		returning id, name, description, status, created_at, updated_at
	`, ids.New(), name, nullIfEmpty(description))
	if err := row.Scan(&perm.ID, &perm.Name, &desc, &status, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.Permission{}, auth.ErrConflict
		}
		return auth.Permission{}, err
	}
	if desc.Valid {
		perm.Description = desc.String
	}
	perm.Status = auth.RecordStatus(status)
	return perm, nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, status, created_at, updated_at
		from access
		where status = 'active'
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func (s *Store) GetPermission(ctx context.Context, permID string) (auth.Permission, error) {
	var (
		perm   auth.Permission
		desc   sql.NullString
		status string
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, description, status, created_at, updated_at
		from access
		where id = $1 and status = 'active'
	`, permID).Scan(&perm.ID, &perm.Name, &desc, &status, &perm.CreatedAt, &perm.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Permission{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Permission{}, err
	}
	if desc.Valid {
		perm.Description = desc.String
	}
	perm.Status = auth.RecordStatus(status)
	return perm, nil
}

func (s *Store) UpdatePermission(ctx context.Context, permID string, upd auth.PermissionUpdate) (auth.Permission, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		if *upd.Description == "" {
			sets = append(sets, "description = NULL")
		} else {
			sets = append(sets, fmt.Sprintf("description = $%d", idx))
			args = append(args, *upd.Description)
			idx++
		}
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(
			`update access set %s where id = $%d and status = 'active'`,
			strings.Join(sets, ", "), idx,
		)
		args = append(args, permID)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return auth.Permission{}, auth.ErrConflict
			}
			return auth.Permission{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return auth.Permission{}, err
		}
		if aff == 0 {
			return auth.Permission{}, auth.ErrNotFound
		}
	}
	return s.GetPermission(ctx, permID)
}

func (s *Store) SoftDeletePermission(ctx context.Context, permID string) error {
	res, err := s.db.ExecContext(ctx, `
		update access set status = 'deleted', updated_at = now()
		where id = $1 and status = 'active'
	`, permID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func scanPermissions(rows *sql.Rows) ([]auth.Permission, error) {
	var perms []auth.Permission
	for rows.Next() {
		var (
			perm   auth.Permission
			desc   sql.NullString
			status string
		)
		if err := rows.Scan(&perm.ID, &perm.Name, &desc, &status, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			perm.Description = desc.String
		}
		perm.Status = auth.RecordStatus(status)
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// Role-access edges ---------------------------------------------------------

func (s *Store) GrantPermission(ctx context.Context, roleID, permID string) error {
	if err := s.requireActive(ctx, "roles", roleID); err != nil {
		return err
	}
	if err := s.requireActive(ctx, "access", permID); err != nil {
		return err
	}
	// Re-granting an existing edge is a success.
	_, err := s.db.ExecContext(ctx, `
		insert into role_access (role_id, access_id)
		values ($1, $2)
		on conflict (role_id, access_id) do nothing
	`, roleID, permID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) RevokePermission(ctx context.Context, roleID, permID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from role_access where role_id = $1 and access_id = $2
	`, roleID, permID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) RolePermissions(ctx context.Context, roleID string) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select a.id, a.name, a.description, a.status, a.created_at, a.updated_at
		from role_access ra
		join access a on a.id = ra.access_id
		where ra.role_id = $1 and a.status = 'active'
		order by a.name
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func (s *Store) requireActive(ctx context.Context, table, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`select 1 from `+table+` where id = $1 and status = 'active'`, id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	return err
}

// Users ---------------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u auth.User) (auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, login, password_hash, surname, name, tab_num)
		values ($1, $2, $3, $4, $5, $6)
		returning id, login, password_hash, surname, name, coalesce(tab_num, ''), created_at, updated_at
	`, u.ID, u.Login, u.PasswordHash, u.Surname, u.Name, nullIfEmpty(u.TabNum))
	created, err := scanUserRow(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.User{}, auth.ErrConflict
		}
		return auth.User{}, err
	}
	return created, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, login, password_hash, surname, name, coalesce(tab_num, ''), created_at, updated_at
		from users
		order by login
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []auth.User
	for rows.Next() {
		var u auth.User
		if err := rows.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.Surname, &u.Name, &u.TabNum, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (auth.User, error) {
	return s.FindUserByID(ctx, userID)
}

func (s *Store) UpdateUser(ctx context.Context, userID string, upd auth.UserUpdate) (auth.User, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Login != nil {
		sets = append(sets, fmt.Sprintf("login = $%d", idx))
		args = append(args, *upd.Login)
		idx++
	}
	if upd.Password != nil {
		sets = append(sets, fmt.Sprintf("password_hash = $%d", idx))
		args = append(args, *upd.Password)
		idx++
	}
	if upd.Surname != nil {
		sets = append(sets, fmt.Sprintf("surname = $%d", idx))
		args = append(args, *upd.Surname)
		idx++
	}
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.TabNum != nil {
		sets = append(sets, fmt.Sprintf("tab_num = $%d", idx))
		args = append(args, nullIfEmpty(*upd.TabNum))
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, userID)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return auth.User{}, auth.ErrConflict
			}
			return auth.User{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return auth.User{}, err
		}
		if aff == 0 {
			return auth.User{}, auth.ErrNotFound
		}
	}
	return s.FindUserByID(ctx, userID)
}

func (s *Store) AssignRole(ctx context.Context, userID, roleID string) error {
	if err := s.requireActive(ctx, "roles", roleID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		insert into users_role (user_id, role_id)
		values ($1, $2)
		on conflict (user_id, role_id) do nothing
	`, userID, roleID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) RemoveRole(ctx context.Context, userID, roleID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from users_role where user_id = $1 and role_id = $2
	`, userID, roleID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func scanUserRow(row *sql.Row) (auth.User, error) {
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

// Registrations -------------------------------------------------------------

func (s *Store) CreateRegistration(ctx context.Context, req auth.RegistrationRequest) (auth.RegistrationRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into registration_requests (id, login, password_hash, surname, name, tab_num, status)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning id, login, password_hash, surname, name, tab_num, status, created_at
	`, req.ID, req.Login, req.PasswordHash, req.Surname, req.Name, req.TabNum, string(req.Status))
	created, err := scanRegistration(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.RegistrationRequest{}, auth.ErrConflict
		}
		return auth.RegistrationRequest{}, err
	}
	return created, nil
}

func (s *Store) ListRegistrations(ctx context.Context, status auth.RegistrationStatus) ([]auth.RegistrationRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, login, password_hash, surname, name, tab_num, status, created_at
		from registration_requests
		where status = $1
		order by created_at
	`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []auth.RegistrationRequest
	for rows.Next() {
		var (
			req       auth.RegistrationRequest
			reqStatus string
		)
		if err := rows.Scan(&req.ID, &req.Login, &req.PasswordHash, &req.Surname, &req.Name, &req.TabNum, &reqStatus, &req.CreatedAt); err != nil {
			return nil, err
		}
		req.Status = auth.RegistrationStatus(reqStatus)
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reqs, nil
}

// ApproveRegistration processes a pending request in one transaction. The
// request row is locked with FOR UPDATE so two concurrent approvals cannot
// both create the user; the loser sees the status flip and gets not-found.
func (s *Store) ApproveRegistration(ctx context.Context, requestID, roleID string) (auth.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var req auth.RegistrationRequest
	var reqStatus string
	err = tx.QueryRowContext(ctx, `
		select id, login, password_hash, surname, name, tab_num, status, created_at
		from registration_requests
		where id = $1 and status = 'pending'
		for update
	`, requestID).Scan(&req.ID, &req.Login, &req.PasswordHash, &req.Surname, &req.Name, &req.TabNum, &reqStatus, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, err
	}

	var one int
	err = tx.QueryRowContext(ctx, `select 1 from roles where id = $1 and status = 'active'`, roleID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, err
	}

	userID := ids.New()
	row := tx.QueryRowContext(ctx, `
		insert into users (id, login, password_hash, surname, name, tab_num)
		values ($1, $2, $3, $4, $5, $6)
		returning id, login, password_hash, surname, name, coalesce(tab_num, ''), created_at, updated_at
	`, userID, req.Login, req.PasswordHash, req.Surname, req.Name, nullIfEmpty(req.TabNum))
	user, err := scanUserRow(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.User{}, auth.ErrConflict
		}
		return auth.User{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		insert into users_role (user_id, role_id) values ($1, $2)
	`, userID, roleID); err != nil {
		return auth.User{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into user_status_history (id, user_id, status, created_at)
		values ($1, $2, 'active', now())
	`, ids.New(), userID); err != nil {
		return auth.User{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		update registration_requests set status = 'approved' where id = $1
	`, requestID); err != nil {
		return auth.User{}, err
	}

	if err := tx.Commit(); err != nil {
		return auth.User{}, err
	}
	return user, nil
}

func (s *Store) RejectRegistration(ctx context.Context, requestID string) error {
	res, err := s.db.ExecContext(ctx, `
		update registration_requests set status = 'rejected'
		where id = $1 and status = 'pending'
	`, requestID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// EnsurePermissions inserts missing catalog entries, leaving existing rows
// untouched.
func (s *Store) EnsurePermissions(ctx context.Context, perms []auth.Permission) error {
	for _, perm := range perms {
		if _, err := s.db.ExecContext(ctx, `
			insert into access (id, name, description, status)
			values ($1, $2, $3, 'active')
			on conflict (name) do nothing
		`, ids.New(), perm.Name, nullIfEmpty(perm.Description)); err != nil {
			return err
		}
	}
	return nil
}

func scanRegistration(row *sql.Row) (auth.RegistrationRequest, error) {
	var (
		req    auth.RegistrationRequest
		status string
	)
	err := row.Scan(&req.ID, &req.Login, &req.PasswordHash, &req.Surname, &req.Name, &req.TabNum, &status, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.RegistrationRequest{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.RegistrationRequest{}, err
	}
	req.Status = auth.RegistrationStatus(status)
	return req, nil
}
