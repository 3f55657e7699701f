// Package notify is the per-user notification inbox fed by comment mentions
// and task status changes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("notify: not found")
	ErrInvalidInput = errors.New("notify: invalid input")
)

// feedLimit caps the inbox read at the most recent notifications.
const feedLimit = 50

// Notification is a message addressed to one user, optionally linking to the
// resource it describes.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Feed groups a user's notifications by calendar day relative to the moment
// of the read, newest first within each bucket.
type Feed struct {
	Today     []Notification `json:"today"`
	Yesterday []Notification `json:"yesterday"`
	Older     []Notification `json:"older"`
}

// Store describes notification persistence.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// Service implements the inbox operations.
type Service struct {
	store Store
	now   func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	svc := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Notify records a notification for the recipient.
func (s *Service) Notify(ctx context.Context, userID, content, link string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidInput)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	return s.store.Create(ctx, &Notification{UserID: userID, Content: content, Link: link})
}

// ListForUser returns the user's most recent notifications, newest first,
// capped at 50.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Notification, error) {
	return s.store.ListForUser(ctx, userID, feedLimit)
}

// FeedForUser buckets the recent notifications by calendar day. Buckets are
// computed against the wall clock at read time, so the same notification
// drifts from today to yesterday to older as days pass.
func (s *Service) FeedForUser(ctx context.Context, userID string) (Feed, error) {
	items, err := s.ListForUser(ctx, userID)
	if err != nil {
		return Feed{}, err
	}
	return bucketByDay(items, s.now()), nil
}

// UnreadCount returns the user's number of unread notifications.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.UnreadCount(ctx, userID)
}

// MarkRead flips one notification to read. Marking an already-read
// notification is a no-op.
func (s *Service) MarkRead(ctx context.Context, notificationID string) error {
	return s.store.MarkRead(ctx, notificationID)
}

// MarkAllRead flips every notification for the user to read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	return s.store.MarkAllRead(ctx, userID)
}

func bucketByDay(items []Notification, now time.Time) Feed {
	today := civilDate(now)
	yesterday := civilDate(now.AddDate(0, 0, -1))
	var feed Feed
	for _, n := range items {
		switch civilDate(n.CreatedAt.In(now.Location())) {
		case today:
			feed.Today = append(feed.Today, n)
		case yesterday:
			feed.Yesterday = append(feed.Yesterday, n)
		default:
			feed.Older = append(feed.Older, n)
		}
	}
	return feed
}

type date struct {
	year  int
	month time.Month
	day   int
}

func civilDate(t time.Time) date {
	y, m, d := t.Date()
	return date{year: y, month: m, day: d}
}
