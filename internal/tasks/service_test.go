package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var statusCatalog = []struct {
	id    string
	name  string
	order int
}{
	{"st-1", "To Do", 1},
	{"st-2", "In Progress", 2},
	{"st-3", "Review", 3},
	{"st-4", "Done", 4},
}

func statusRows() *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "name", "display_order"})
	for _, st := range statusCatalog {
		rows.AddRow(st.id, st.name, st.order)
	}
	return rows
}

func taskRow(id, title, assigneeID, statusID string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "title", "description",
		"assignee_id", "assignee_name",
		"reporter_id", "reporter_name",
		"status_id", "status", "priority", "deadline", "department_id",
		"created_at", "updated_at",
	})
	var assignee, assigneeName any
	if assigneeID != "" {
		assignee = assigneeID
		assigneeName = "Assignee Name"
	}
	now := time.Now().UTC()
	rows.AddRow(id, title, "", assignee, assigneeName, "user-rep", "Reporter Name",
		statusID, statusName(statusID), PriorityMedium, nil, "dept-1", now, now)
	return rows
}

func statusName(id string) string {
	for _, st := range statusCatalog {
		if st.id == id {
			return st.name
		}
	}
	return ""
}

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return NewService(NewPGStore(db)), mock, func() { db.Close() }
}

func TestAdvanceStatusMovesOneStepAndNotifiesAssignee(t *testing.T) {
	svc, mock, done := newMockService(t)
	defer done()

	mock.ExpectQuery("select.*from tasks t").
		WithArgs("task-1").WillReturnRows(taskRow("task-1", "Ship it", "user-a", "st-2"))
	mock.ExpectQuery("select id, name, display_order from statuses").
		WillReturnRows(statusRows())
	mock.ExpectBegin()
	mock.ExpectExec("update tasks set status_id").
		WithArgs("st-3", "task-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into notifications").
		WithArgs(sqlmock.AnyArg(), "user-a", "Task 'Ship it' has been moved to Review", "/task/task-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	next, err := svc.AdvanceStatus(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("AdvanceStatus: %v", err)
	}
	if next.Name != "Review" {
		t.Fatalf("expected Review, got %s", next.Name)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdvanceStatusWithoutAssigneeSkipsNotification(t *testing.T) {
	svc, mock, done := newMockService(t)
	defer done()

	mock.ExpectQuery("select.*from tasks t").
		WithArgs("task-1").WillReturnRows(taskRow("task-1", "Ship it", "", "st-1"))
	mock.ExpectQuery("select id, name, display_order from statuses").
		WillReturnRows(statusRows())
	mock.ExpectBegin()
	mock.ExpectExec("update tasks set status_id").
		WithArgs("st-2", "task-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	next, err := svc.AdvanceStatus(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("AdvanceStatus: %v", err)
	}
	if next.Name != "In Progress" {
		t.Fatalf("expected In Progress, got %s", next.Name)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdvanceStatusTerminalIsNoOp(t *testing.T) {
	svc, mock, done := newMockService(t)
	defer done()

	mock.ExpectQuery("select.*from tasks t").
		WithArgs("task-1").WillReturnRows(taskRow("task-1", "Ship it", "user-a", "st-4"))
	mock.ExpectQuery("select id, name, display_order from statuses").
		WillReturnRows(statusRows())

	_, err := svc.AdvanceStatus(context.Background(), "task-1")
	if !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("expected ErrTerminalStatus, got %v", err)
	}
	// No update and no notification once the terminal status is detected.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(nil)

	cases := map[string]Draft{
		"missing title":      {ReporterID: "u1", DepartmentID: "d1", Priority: PriorityLow},
		"missing reporter":   {Title: "x", DepartmentID: "d1", Priority: PriorityLow},
		"missing department": {Title: "x", ReporterID: "u1", Priority: PriorityLow},
		"bad priority":       {Title: "x", ReporterID: "u1", DepartmentID: "d1", Priority: "Critical"},
	}
	for name, draft := range cases {
		if _, err := svc.Create(context.Background(), draft); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestCreateWritesTaskTagsAndNotificationTogether(t *testing.T) {
	svc, mock, done := newMockService(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectQuery("select id, name, display_order from statuses where name =").
		WithArgs("To Do").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "display_order"}).AddRow("st-1", "To Do", 1))
	mock.ExpectBegin()
	mock.ExpectQuery("insert into tasks").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	for _, tag := range []string{"urgent", "q3"} {
		mock.ExpectExec("insert into tags").
			WithArgs(sqlmock.AnyArg(), tag).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("select id from tags where name =").
			WithArgs(tag).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tag-" + tag))
		mock.ExpectExec("insert into task_tags").
			WithArgs(sqlmock.AnyArg(), "tag-"+tag).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec("insert into notifications").
		WithArgs(sqlmock.AnyArg(), "user-a", "You have been assigned task 'Quarterly report'", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	task, err := svc.Create(context.Background(), Draft{
		Title:        "Quarterly report",
		Priority:     PriorityHigh,
		AssigneeID:   "user-a",
		ReporterID:   "user-r",
		DepartmentID: "dept-1",
		Tags:         []string{"urgent", " q3 ", "urgent"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.ID == "" {
		t.Fatal("expected generated task id")
	}
	if task.StatusName != "To Do" {
		t.Fatalf("expected default status To Do, got %s", task.StatusName)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateRollsBackOnTagFailure(t *testing.T) {
	svc, mock, done := newMockService(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectQuery("select id, name, display_order from statuses where name =").
		WithArgs("To Do").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "display_order"}).AddRow("st-1", "To Do", 1))
	mock.ExpectBegin()
	mock.ExpectQuery("insert into tasks").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("insert into tags").
		WithArgs(sqlmock.AnyArg(), "urgent").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), Draft{
		Title:        "Doomed",
		Priority:     PriorityLow,
		ReporterID:   "user-r",
		DepartmentID: "dept-1",
		Tags:         []string{"urgent"},
	})
	if err == nil {
		t.Fatal("expected error from tag insert")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTagsRoundTrip(t *testing.T) {
	svc, mock, done := newMockService(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow("tag-1", "q3").
		AddRow("tag-2", "urgent")
	mock.ExpectQuery("select tg.id, tg.name").
		WithArgs("task-1").WillReturnRows(rows)

	tags, err := svc.Tags(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	names := map[string]bool{}
	for _, tag := range tags {
		names[tag.Name] = true
	}
	if len(names) != 2 || !names["urgent"] || !names["q3"] {
		t.Fatalf("unexpected tags: %v", tags)
	}
}

func TestNextStatusUnknown(t *testing.T) {
	var catalog []Status
	for _, st := range statusCatalog {
		catalog = append(catalog, Status{ID: st.id, Name: st.name, DisplayOrder: st.order})
	}
	if _, err := nextStatus(catalog, "st-999"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}
