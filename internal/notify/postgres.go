package notify

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

func (s *PGStore) Create(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = ids.New()
	}
	var link any
	if n.Link != "" {
		link = n.Link
	}
	return s.db.QueryRowContext(ctx, `
		insert into notifications (id, user_id, content, link, is_read)
		values ($1, $2, $3, $4, false)
		returning created_at
	`, n.ID, n.UserID, n.Content, link).Scan(&n.CreatedAt)
}

func (s *PGStore) ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, content, link, is_read, created_at
		from notifications
		where user_id = $1
		order by created_at desc
		limit $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Notification
	for rows.Next() {
		var (
			n    Notification
			link sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Content, &link, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		if link.Valid {
			n.Link = link.String
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (s *PGStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from notifications where user_id = $1 and is_read = false`,
		userID).Scan(&count)
	return count, err
}

// MarkRead sets is_read regardless of its current value, so repeating the
// call for an already-read row changes nothing.
func (s *PGStore) MarkRead(ctx context.Context, notificationID string) error {
	res, err := s.db.ExecContext(ctx,
		`update notifications set is_read = true where id = $1`, notificationID)
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
	return nil
}

func (s *PGStore) MarkAllRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`update notifications set is_read = true where user_id = $1`, userID)
	return err
}
