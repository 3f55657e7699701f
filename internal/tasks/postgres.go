package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskdeck.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// CreateTask writes the task, its tag catalog rows and links, and the
// optional assignee notification in one transaction.
func (s *PGStore) CreateTask(ctx context.Context, task *Task, tags []string, note *AssigneeNote) error {
	if task.ID == "" {
		task.ID = ids.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		insert into tasks (id, title, description, assignee_id, reporter_id, status_id, priority, deadline, department_id)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning created_at, updated_at
	`, task.ID, task.Title, task.Description, nullable(task.AssigneeID), task.ReporterID,
		task.StatusID, task.Priority, nullableTime(task.Deadline), task.DepartmentID,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	for _, tag := range tags {
		tagID := ids.New()
		if _, err := tx.ExecContext(ctx, `
			insert into tags (id, name) values ($1, $2)
			on conflict (name) do nothing
		`, tagID, tag); err != nil {
			return fmt.Errorf("insert tag %q: %w", tag, err)
		}
		if err := tx.QueryRowContext(ctx,
			`select id from tags where name = $1`, tag).Scan(&tagID); err != nil {
			return fmt.Errorf("find tag %q: %w", tag, err)
		}
		if _, err := tx.ExecContext(ctx, `
			insert into task_tags (task_id, tag_id) values ($1, $2)
			on conflict (task_id, tag_id) do nothing
		`, task.ID, tagID); err != nil {
			return fmt.Errorf("link tag %q: %w", tag, err)
		}
	}

	if note != nil {
		if err := insertNotification(ctx, tx, task.ID, note); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateTaskStatus moves the task to the given status and records the
// assignee notification in the same transaction.
func (s *PGStore) UpdateTaskStatus(ctx context.Context, taskID, statusID string, note *AssigneeNote) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`update tasks set status_id = $1, updated_at = now() where id = $2`, statusID, taskID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	if note != nil {
		if err := insertNotification(ctx, tx, taskID, note); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertNotification(ctx context.Context, tx *sql.Tx, taskID string, note *AssigneeNote) error {
	link := note.Link
	if link == "" {
		link = "/task/" + taskID
	}
	if _, err := tx.ExecContext(ctx, `
		insert into notifications (id, user_id, content, link, is_read)
		values ($1, $2, $3, $4, false)
	`, ids.New(), note.UserID, note.Content, link); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

const taskColumns = `
	t.id, t.title, t.description,
	t.assignee_id, u_assignee.full_name,
	t.reporter_id, u_reporter.full_name,
	t.status_id, s.name, t.priority, t.deadline, t.department_id,
	t.created_at, t.updated_at`

const taskJoins = `
	from tasks t
	join statuses s on t.status_id = s.id
	left join users u_assignee on t.assignee_id = u_assignee.id
	join users u_reporter on t.reporter_id = u_reporter.id`

func (s *PGStore) FindTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `select`+taskColumns+taskJoins+` where t.id = $1`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *PGStore) TagsForTask(ctx context.Context, taskID string) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		select tg.id, tg.name
		from tags tg
		join task_tags tt on tt.tag_id = tg.id
		where tt.task_id = $1
		order by tg.name
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Tag
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, err
		}
		res = append(res, tag)
	}
	return res, rows.Err()
}

func (s *PGStore) ListStatuses(ctx context.Context) ([]Status, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, display_order from statuses order by display_order`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Status
	for rows.Next() {
		var st Status
		if err := rows.Scan(&st.ID, &st.Name, &st.DisplayOrder); err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

func (s *PGStore) FindStatusByName(ctx context.Context, name string) (*Status, error) {
	var st Status
	err := s.db.QueryRowContext(ctx,
		`select id, name, display_order from statuses where name = $1`, name).
		Scan(&st.ID, &st.Name, &st.DisplayOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStatus, name)
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *PGStore) ListByDepartment(ctx context.Context, departmentID string) ([]Task, error) {
	return s.listTasks(ctx,
		`select`+taskColumns+taskJoins+` where t.department_id = $1 order by t.deadline nulls last`,
		departmentID)
}

func (s *PGStore) ListByDepartmentStatus(ctx context.Context, departmentID, statusID string) ([]Task, error) {
	return s.listTasks(ctx,
		`select`+taskColumns+taskJoins+` where t.department_id = $1 and t.status_id = $2 order by t.deadline nulls last`,
		departmentID, statusID)
}

func (s *PGStore) ListAssigned(ctx context.Context, userID string) ([]Task, error) {
	return s.listTasks(ctx,
		`select`+taskColumns+taskJoins+` where t.assignee_id = $1 order by t.deadline nulls last`,
		userID)
}

func (s *PGStore) ListReported(ctx context.Context, userID string) ([]Task, error) {
	return s.listTasks(ctx,
		`select`+taskColumns+taskJoins+` where t.reporter_id = $1 order by t.deadline nulls last`,
		userID)
}

func (s *PGStore) ListAll(ctx context.Context) ([]Task, error) {
	return s.listTasks(ctx,
		`select`+taskColumns+taskJoins+` order by t.deadline nulls last`)
}

func (s *PGStore) listTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *task)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		task         Task
		assigneeID   sql.NullString
		assigneeName sql.NullString
		deadline     sql.NullTime
	)
	err := row.Scan(
		&task.ID, &task.Title, &task.Description,
		&assigneeID, &assigneeName,
		&task.ReporterID, &task.ReporterName,
		&task.StatusID, &task.StatusName, &task.Priority, &deadline, &task.DepartmentID,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if assigneeID.Valid {
		task.AssigneeID = assigneeID.String
	}
	if assigneeName.Valid {
		task.AssigneeName = assigneeName.String
	}
	if deadline.Valid {
		d := deadline.Time
		task.Deadline = &d
	}
	return &task, nil
}

func (s *PGStore) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		select s.name, count(t.id)
		from statuses s
		left join tasks t on t.status_id = s.id
		group by s.name, s.display_order
		order by s.display_order
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []StatusCount
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, err
		}
		res = append(res, sc)
	}
	return res, rows.Err()
}

func (s *PGStore) CountByPriority(ctx context.Context) ([]PriorityCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		select priority, count(id)
		from tasks
		group by priority
		order by case priority when 'High' then 1 when 'Medium' then 2 else 3 end
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []PriorityCount
	for rows.Next() {
		var pc PriorityCount
		if err := rows.Scan(&pc.Priority, &pc.Count); err != nil {
			return nil, err
		}
		res = append(res, pc)
	}
	return res, rows.Err()
}

func (s *PGStore) Overdue(ctx context.Context) ([]OverdueTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		select t.id, t.title, t.priority, t.deadline,
		       (current_date - t.deadline)::int,
		       s.name, coalesce(u.full_name, '')
		from tasks t
		join statuses s on t.status_id = s.id
		left join users u on t.assignee_id = u.id
		where t.deadline < current_date and s.name != 'Done'
		order by t.deadline
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []OverdueTask
	for rows.Next() {
		var ot OverdueTask
		if err := rows.Scan(&ot.ID, &ot.Title, &ot.Priority, &ot.Deadline, &ot.DaysOverdue, &ot.Status, &ot.Assignee); err != nil {
			return nil, err
		}
		res = append(res, ot)
	}
	return res, rows.Err()
}

func (s *PGStore) CompletionTimes(ctx context.Context) ([]CompletionTime, error) {
	rows, err := s.db.QueryContext(ctx, `
		select t.priority, date_part('day', t.updated_at - t.created_at)::int
		from tasks t
		join statuses s on t.status_id = s.id
		where s.name = 'Done'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []CompletionTime
	for rows.Next() {
		var ct CompletionTime
		if err := rows.Scan(&ct.Priority, &ct.DaysToComplete); err != nil {
			return nil, err
		}
		res = append(res, ct)
	}
	return res, rows.Err()
}

func (s *PGStore) UpcomingDeadlines(ctx context.Context, departmentID string, days int) ([]UpcomingDeadline, error) {
	query := `
		select t.title, t.deadline, s.name, coalesce(u.full_name, '')
		from tasks t
		join statuses s on t.status_id = s.id
		left join users u on t.assignee_id = u.id
		where t.deadline >= current_date and t.deadline <= current_date + $1`
	args := []any{days}
	if departmentID != "" {
		query += ` and t.department_id = $2`
		args = append(args, departmentID)
	}
	query += ` order by t.deadline`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []UpcomingDeadline
	for rows.Next() {
		var ud UpcomingDeadline
		if err := rows.Scan(&ud.Title, &ud.Deadline, &ud.Status, &ud.Assignee); err != nil {
			return nil, err
		}
		res = append(res, ud)
	}
	return res, rows.Err()
}

func (s *PGStore) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		select t.title, u.full_name, s.name, t.updated_at
		from tasks t
		join users u on t.reporter_id = u.id
		join statuses s on t.status_id = s.id
		order by t.updated_at desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.Title, &a.Reporter, &a.Status, &a.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
