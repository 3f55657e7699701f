package comments

import (
	"context"
	"database/sql"

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

func (s *PGStore) CreateComment(ctx context.Context, c *Comment) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	return s.db.QueryRowContext(ctx, `
		insert into comments (id, task_id, user_id, comment)
		values ($1, $2, $3, $4)
		returning created_at
	`, c.ID, c.TaskID, c.AuthorID, c.Body).Scan(&c.CreatedAt)
}

func (s *PGStore) ListByTask(ctx context.Context, taskID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select c.id, c.task_id, c.user_id, u.full_name, c.comment, c.created_at
		from comments c
		join users u on c.user_id = u.id
		where c.task_id = $1
		order by c.created_at
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.AuthorName, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (s *PGStore) CreateMention(ctx context.Context, m Mention) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_mentions (comment_id, user_id, is_read)
		values ($1, $2, false)
	`, m.CommentID, m.UserID)
	return err
}
