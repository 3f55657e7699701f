// Package comments persists task comments and fans out @mentions to the
// notification inbox.
package comments

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"taskdeck.org/internal/auth"
)

var (
	ErrNotFound     = errors.New("comments: not found")
	ErrInvalidInput = errors.New("comments: invalid input")
)

// mentionPattern matches @ followed by word characters. Tokens that do not
// resolve to a username are ignored, not rejected.
var mentionPattern = regexp.MustCompile(`@(\w+)`)

// Comment belongs to exactly one task and is immutable once written.
type Comment struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// Mention records that a comment referenced a user.
type Mention struct {
	CommentID string `json:"comment_id"`
	UserID    string `json:"user_id"`
	IsRead    bool   `json:"is_read"`
}

// Store describes comment and mention persistence.
type Store interface {
	CreateComment(ctx context.Context, c *Comment) error
	ListByTask(ctx context.Context, taskID string) ([]Comment, error)
	CreateMention(ctx context.Context, m Mention) error
}

// Directory looks up user records. Unknown usernames are simply absent from
// ResolveUsernames results.
type Directory interface {
	Find(ctx context.Context, id string) (*auth.User, error)
	ResolveUsernames(ctx context.Context, usernames []string) (map[string]*auth.User, error)
}

// Notifier delivers a notification to one recipient.
type Notifier interface {
	Notify(ctx context.Context, userID, content, link string) error
}

// TaskTitles looks up the display title of a task.
type TaskTitles interface {
	Title(ctx context.Context, taskID string) (string, error)
}

// Service implements comment creation with mention fan-out.
type Service struct {
	store    Store
	users    Directory
	notifier Notifier
	tasks    TaskTitles
}

func NewService(store Store, users Directory, notifier Notifier, tasks TaskTitles) *Service {
	return &Service{store: store, users: users, notifier: notifier, tasks: tasks}
}

// AddComment persists the comment, then creates one Mention and one
// Notification per resolved @username. The comment write commits before any
// fan-out: a fan-out failure returns an error but never rolls the comment or
// the mentions already written back. Resubmitting the comment is the retry
// path.
func (s *Service) AddComment(ctx context.Context, taskID, authorID, body string) (*Comment, error) {
	if strings.TrimSpace(taskID) == "" || strings.TrimSpace(authorID) == "" {
		return nil, fmt.Errorf("%w: task and author are required", ErrInvalidInput)
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: comment body is required", ErrInvalidInput)
	}

	author, err := s.users.Find(ctx, authorID)
	if err != nil {
		return nil, err
	}

	comment := &Comment{TaskID: taskID, AuthorID: authorID, AuthorName: author.FullName, Body: body}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, err
	}

	mentioned, err := s.resolveMentions(ctx, body)
	if err != nil {
		return comment, fmt.Errorf("resolve mentions: %w", err)
	}
	if len(mentioned) == 0 {
		return comment, nil
	}

	title, err := s.tasks.Title(ctx, taskID)
	if err != nil {
		return comment, fmt.Errorf("mention fan-out: %w", err)
	}
	for _, user := range mentioned {
		if err := s.store.CreateMention(ctx, Mention{CommentID: comment.ID, UserID: user.ID}); err != nil {
			return comment, fmt.Errorf("mention fan-out: %w", err)
		}
		content := fmt.Sprintf("%s mentioned you in a comment on task '%s'", comment.AuthorName, title)
		if err := s.notifier.Notify(ctx, user.ID, content, "/task/"+taskID); err != nil {
			return comment, fmt.Errorf("mention fan-out: %w", err)
		}
	}
	return comment, nil
}

// ListForTask returns the task's comments ordered by creation time ascending.
func (s *Service) ListForTask(ctx context.Context, taskID string) ([]Comment, error) {
	return s.store.ListByTask(ctx, taskID)
}

// ExtractMentionTokens returns the candidate usernames referenced in body, in
// order of appearance, deduplicated.
func ExtractMentionTokens(body string) []string {
	matches := mentionPattern.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var tokens []string
	for _, m := range matches {
		token := m[1]
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	return tokens
}

func (s *Service) resolveMentions(ctx context.Context, body string) ([]*auth.User, error) {
	tokens := ExtractMentionTokens(body)
	if len(tokens) == 0 {
		return nil, nil
	}
	resolved, err := s.users.ResolveUsernames(ctx, tokens)
	if err != nil {
		return nil, err
	}
	// Preserve appearance order; the lookup is case-sensitive, so @Alice does
	// not match username alice.
	var users []*auth.User
	for _, token := range tokens {
		if user, ok := resolved[token]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}
