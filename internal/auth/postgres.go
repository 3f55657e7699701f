package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"taskdeck.org/internal/ids"
)

const pgErrUniqueViolation = "23505"

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into users (id, username, full_name, email, department, password_hash, role)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at
	`, u.ID, u.Username, u.FullName, u.Email, u.Department, u.PasswordHash, u.Role).Scan(&u.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return ErrConflict
		}
		return err
	}
	return nil
}

const userColumns = `id, username, full_name, email, department, password_hash, role, created_at`

func (s *PGStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id)
	return scanUser(row)
}

func (s *PGStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where username = $1`, username)
	return scanUser(row)
}

func (s *PGStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users order by full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.Department, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &u)
	}
	return res, rows.Err()
}

// ResolveUsernames maps the given usernames to user records. Usernames with no
// account are absent from the result; the lookup is case-sensitive.
func (s *PGStore) ResolveUsernames(ctx context.Context, usernames []string) (map[string]*User, error) {
	result := make(map[string]*User, len(usernames))
	if len(usernames) == 0 {
		return result, nil
	}
	seen := make(map[string]struct{}, len(usernames))
	for _, username := range usernames {
		if _, dup := seen[username]; dup {
			continue
		}
		seen[username] = struct{}{}
		u, err := s.FindByUsername(ctx, username)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result[username] = u
	}
	return result, nil
}

func (s *PGStore) UpdateProfile(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx, `
		update users set full_name = $1, email = $2, department = $3, role = $4
		where id = $5
	`, u.FullName, u.Email, u.Department, u.Role, u.ID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *PGStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash = $1 where id = $2`, passwordHash, userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.Department, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func requireRowAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
