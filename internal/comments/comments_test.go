package comments

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"taskdeck.org/internal/auth"
)

type memStore struct {
	comments   []Comment
	mentions   []Mention
	mentionErr error
}

func (m *memStore) CreateComment(_ context.Context, c *Comment) error {
	c.ID = fmt.Sprintf("comment-%d", len(m.comments)+1)
	m.comments = append(m.comments, *c)
	return nil
}

func (m *memStore) ListByTask(_ context.Context, taskID string) ([]Comment, error) {
	var res []Comment
	for _, c := range m.comments {
		if c.TaskID == taskID {
			res = append(res, c)
		}
	}
	return res, nil
}

func (m *memStore) CreateMention(_ context.Context, mention Mention) error {
	if m.mentionErr != nil {
		return m.mentionErr
	}
	m.mentions = append(m.mentions, mention)
	return nil
}

type memDirectory struct {
	users map[string]*auth.User // keyed by username
}

func (d *memDirectory) Find(_ context.Context, id string) (*auth.User, error) {
	for _, u := range d.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (d *memDirectory) ResolveUsernames(_ context.Context, usernames []string) (map[string]*auth.User, error) {
	res := make(map[string]*auth.User)
	for _, name := range usernames {
		if u, ok := d.users[name]; ok {
			res[name] = u
		}
	}
	return res, nil
}

type memNotifier struct {
	sent []struct {
		UserID, Content, Link string
	}
	err error
}

func (n *memNotifier) Notify(_ context.Context, userID, content, link string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, struct{ UserID, Content, Link string }{userID, content, link})
	return nil
}

type memTitles map[string]string

func (m memTitles) Title(_ context.Context, taskID string) (string, error) {
	title, ok := m[taskID]
	if !ok {
		return "", errors.New("task not found")
	}
	return title, nil
}

func fixture() (*Service, *memStore, *memNotifier) {
	store := &memStore{}
	dir := &memDirectory{users: map[string]*auth.User{
		"alice": {ID: "user-alice", Username: "alice", FullName: "Alice Liu"},
		"bob":   {ID: "user-bob", Username: "bob", FullName: "Bob Stone"},
	}}
	notifier := &memNotifier{}
	svc := NewService(store, dir, notifier, memTitles{"task-1": "Launch checklist"})
	return svc, store, notifier
}

func TestAddCommentMentionFanOut(t *testing.T) {
	svc, store, notifier := fixture()

	comment, err := svc.AddComment(context.Background(), "task-1", "user-bob", "ping @alice about this")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if comment.ID == "" {
		t.Fatal("expected comment id")
	}
	if len(store.mentions) != 1 || store.mentions[0].UserID != "user-alice" {
		t.Fatalf("expected one mention for alice, got %+v", store.mentions)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.sent))
	}
	sent := notifier.sent[0]
	if sent.UserID != "user-alice" {
		t.Fatalf("notification addressed to %s", sent.UserID)
	}
	want := "Bob Stone mentioned you in a comment on task 'Launch checklist'"
	if sent.Content != want {
		t.Fatalf("content = %q, want %q", sent.Content, want)
	}
	if sent.Link != "/task/task-1" {
		t.Fatalf("link = %q", sent.Link)
	}
}

func TestAddCommentUnknownMentionIgnored(t *testing.T) {
	svc, store, notifier := fixture()

	if _, err := svc.AddComment(context.Background(), "task-1", "user-bob", "cc @ghost"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if len(store.mentions) != 0 || len(notifier.sent) != 0 {
		t.Fatalf("unknown username must produce no fan-out: %+v %+v", store.mentions, notifier.sent)
	}
}

func TestAddCommentMentionIsCaseSensitive(t *testing.T) {
	svc, store, _ := fixture()

	if _, err := svc.AddComment(context.Background(), "task-1", "user-bob", "hey @Alice"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if len(store.mentions) != 0 {
		t.Fatalf("@Alice must not match username alice: %+v", store.mentions)
	}
}

func TestAddCommentSurvivesFanOutFailure(t *testing.T) {
	svc, store, notifier := fixture()
	notifier.err = errors.New("notification insert failed")

	comment, err := svc.AddComment(context.Background(), "task-1", "user-bob", "ping @alice")
	if err == nil {
		t.Fatal("expected fan-out error")
	}
	// The comment and the already-created mention stay; retry is resubmission.
	if comment == nil || len(store.comments) != 1 {
		t.Fatalf("comment must persist despite fan-out failure: %+v", store.comments)
	}
	if len(store.mentions) != 1 {
		t.Fatalf("mention created before the failure must remain: %+v", store.mentions)
	}
}

func TestListForTaskOrdering(t *testing.T) {
	svc, _, _ := fixture()

	for _, body := range []string{"first", "second", "third"} {
		if _, err := svc.AddComment(context.Background(), "task-1", "user-bob", body); err != nil {
			t.Fatalf("AddComment: %v", err)
		}
	}
	listed, err := svc.ListForTask(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("ListForTask: %v", err)
	}
	var bodies []string
	for _, c := range listed {
		bodies = append(bodies, c.Body)
	}
	if !reflect.DeepEqual(bodies, []string{"first", "second", "third"}) {
		t.Fatalf("unexpected order: %v", bodies)
	}
}

func TestExtractMentionTokens(t *testing.T) {
	cases := map[string][]string{
		"no mentions here":        nil,
		"@alice please review":    {"alice"},
		"@alice and @bob, @alice": {"alice", "bob"},
		"email a@b.c is not you":  {"b"},
		"@under_score @d1git":     {"under_score", "d1git"},
	}
	for body, want := range cases {
		if got := ExtractMentionTokens(body); !reflect.DeepEqual(got, want) {
			t.Fatalf("ExtractMentionTokens(%q)=%v, want %v", body, got, want)
		}
	}
}
