package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/verdict/pkg/apperrors"
	"github.com/platinummonkey/verdict/pkg/auth"
	"github.com/platinummonkey/verdict/pkg/storage"
)

const userColumns = `id, username, email, role, bio, first_name, last_name, is_staff, is_superuser,
	confirmation_code, code_issued_at, date_joined, last_login`

// Store persists users. It runs against a *sql.DB or a *sql.Tx.
type Store struct {
	q storage.Querier
}

// NewStore creates a user store
func NewStore(q storage.Querier) *Store {
	return &Store{q: q}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u            User
		role         string
		code         sql.NullString
		codeIssuedAt sql.NullTime
		lastLogin    sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &role, &u.Bio, &u.FirstName, &u.LastName,
		&u.IsStaff, &u.IsSuperuser, &code, &codeIssuedAt, &u.DateJoined, &lastLogin)
	if err != nil {
		return nil, err
	}

	u.Role = auth.Role(role)
	u.ConfirmationCode = code.String
	if codeIssuedAt.Valid {
		t := codeIssuedAt.Time
		u.CodeIssuedAt = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func violatedUserColumn(err error) string {
	return storage.ViolatedColumn(err, "username", "email")
}

// Create inserts u and sets its ID. DateJoined must already be set.
func (s *Store) Create(ctx context.Context, u *User) error {
	if u.Role == "" {
		u.Role = auth.RoleUser
	}
	query := `
		INSERT INTO users (username, email, role, bio, first_name, last_name, is_staff, is_superuser,
			confirmation_code, code_issued_at, date_joined)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := s.q.QueryRowContext(ctx, query,
		u.Username, u.Email, string(u.Role), u.Bio, u.FirstName, u.LastName, u.IsStaff, u.IsSuperuser,
		nullString(u.ConfirmationCode), nullTime(u.CodeIssuedAt), u.DateJoined.UTC(),
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) getBy(ctx context.Context, column string, value interface{}) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1`, userColumns, column)
	u, err := scanUser(s.q.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by id
func (s *Store) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.getBy(ctx, "id", id)
}

// GetByUsername retrieves a user by exact username
func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.getBy(ctx, "username", username)
}

// Update applies the non-nil fields of p. The role, when present, must already be validated.
func (s *Store) Update(ctx context.Context, id int64, p *Patch) error {
	if p.Empty() {
		return nil
	}

	var setClauses []string
	var args []interface{}
	argPos := 1

	set := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if p.Username != nil {
		set("username", *p.Username)
	}
	if p.Email != nil {
		set("email", *p.Email)
	}
	if p.FirstName != nil {
		set("first_name", *p.FirstName)
	}
	if p.LastName != nil {
		set("last_name", *p.LastName)
	}
	if p.Bio != nil {
		set("bio", *p.Bio)
	}
	if p.Role != nil {
		set("role", *p.Role)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectOneRow(result)
}

// SetRole overwrites the role of a user
func (s *Store) SetRole(ctx context.Context, id int64, role auth.Role) error {
	result, err := s.q.ExecContext(ctx, `UPDATE users SET role = $1 WHERE id = $2`, string(role), id)
	if err != nil {
		return fmt.Errorf("failed to set user role: %w", err)
	}
	return expectOneRow(result)
}

// Delete removes a user; their reviews and comments cascade
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectOneRow(result)
}

// List returns one page of users ordered by id, plus the total matching count
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*User, int, error) {
	where := ""
	var args []interface{}
	if filter.Search != "" {
		where = " WHERE username = $1"
		args = append(args, filter.Search)
	}

	var count int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+where, args...).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM users%s ORDER BY id LIMIT $%d OFFSET $%d",
		userColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, count, nil
}

// SetConfirmationCode stores a freshly hashed code
func (s *Store) SetConfirmationCode(ctx context.Context, id int64, hash string, issuedAt time.Time) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE users SET confirmation_code = $1, code_issued_at = $2 WHERE id = $3`,
		hash, issuedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set confirmation code: %w", err)
	}
	return expectOneRow(result)
}

// ConsumeCode clears the code if it is still the stored one and records the login.
// It reports false when another request consumed or replaced the code first.
func (s *Store) ConsumeCode(ctx context.Context, id int64, hash string, at time.Time) (bool, error) {
	result, err := s.q.ExecContext(ctx, `
		UPDATE users SET confirmation_code = NULL, code_issued_at = NULL, last_login = $1
		WHERE id = $2 AND confirmation_code = $3
	`, at.UTC(), id, hash)
	if err != nil {
		return false, fmt.Errorf("failed to consume confirmation code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// ClearExpiredCodes drops every code issued before cutoff and returns how many were cleared
func (s *Store) ClearExpiredCodes(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.q.ExecContext(ctx, `
		UPDATE users SET confirmation_code = NULL, code_issued_at = NULL
		WHERE confirmation_code IS NOT NULL AND code_issued_at < $1
	`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired codes: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// LoadActor returns the current access-control view of a user
func (s *Store) LoadActor(ctx context.Context, id int64) (*auth.Actor, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Actor(), nil
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound(ErrUserNotFound)
	}
	return nil
}
