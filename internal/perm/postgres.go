package perm

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

func (s *PGStore) FindGrant(ctx context.Context, userID, departmentID string) (*Grant, error) {
	var g Grant
	err := s.db.QueryRowContext(ctx, `
		select department_id, can_view, can_edit
		from user_department_permissions
		where user_id = $1 and department_id = $2
	`, userID, departmentID).Scan(&g.DepartmentID, &g.CanView, &g.CanEdit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *PGStore) GrantsForUser(ctx context.Context, userID string) ([]Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select udp.department_id, d.name, udp.can_view, udp.can_edit
		from user_department_permissions udp
		join departments d on d.id = udp.department_id
		where udp.user_id = $1
		order by d.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.DepartmentID, &g.DepartmentName, &g.CanView, &g.CanEdit); err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

// UpsertGrant writes both flags for the (user, department) pair. The unique
// constraint on the pair makes this safe against concurrent identical
// updates; the last write wins.
func (s *PGStore) UpsertGrant(ctx context.Context, userID string, g Grant) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_department_permissions (user_id, department_id, can_view, can_edit)
		values ($1, $2, $3, $4)
		on conflict (user_id, department_id) do update
		set can_view = excluded.can_view, can_edit = excluded.can_edit
	`, userID, g.DepartmentID, g.CanView, g.CanEdit)
	return err
}

func (s *PGStore) AccessibleDepartments(ctx context.Context, userID string) ([]Department, error) {
	rows, err := s.db.QueryContext(ctx, `
		select d.id, d.name, d.description
		from departments d
		join user_department_permissions udp on d.id = udp.department_id
		where udp.user_id = $1 and udp.can_view = true
		order by d.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDepartments(rows)
}

func (s *PGStore) CreateDepartment(ctx context.Context, d *Department) error {
	if d.ID == "" {
		d.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into departments (id, name, description) values ($1, $2, $3)`,
		d.ID, d.Name, d.Description)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *PGStore) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, description from departments order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDepartments(rows)
}

func (s *PGStore) FindDepartment(ctx context.Context, id string) (*Department, error) {
	return s.findDepartment(ctx, `select id, name, description from departments where id = $1`, id)
}

func (s *PGStore) FindDepartmentByName(ctx context.Context, name string) (*Department, error) {
	return s.findDepartment(ctx, `select id, name, description from departments where name = $1`, name)
}

func (s *PGStore) findDepartment(ctx context.Context, query, arg string) (*Department, error) {
	var d Department
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&d.ID, &d.Name, &d.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func collectDepartments(rows *sql.Rows) ([]Department, error) {
	var res []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Description); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}
