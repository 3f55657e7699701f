package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AssigneeNote is a notification written alongside a task mutation, inside
// the same unit of work.
type AssigneeNote struct {
	UserID  string
	Content string
	Link    string
}

// Store describes task persistence. Multi-row writes (task plus tag links
// plus assignee notification) happen under one transaction.
type Store interface {
	CreateTask(ctx context.Context, task *Task, tags []string, note *AssigneeNote) error
	FindTask(ctx context.Context, id string) (*Task, error)
	UpdateTaskStatus(ctx context.Context, taskID, statusID string, note *AssigneeNote) error
	TagsForTask(ctx context.Context, taskID string) ([]Tag, error)

	ListStatuses(ctx context.Context) ([]Status, error)
	FindStatusByName(ctx context.Context, name string) (*Status, error)

	ListByDepartment(ctx context.Context, departmentID string) ([]Task, error)
	ListByDepartmentStatus(ctx context.Context, departmentID, statusID string) ([]Task, error)
	ListAssigned(ctx context.Context, userID string) ([]Task, error)
	ListReported(ctx context.Context, userID string) ([]Task, error)
	ListAll(ctx context.Context) ([]Task, error)

	CountByStatus(ctx context.Context) ([]StatusCount, error)
	CountByPriority(ctx context.Context) ([]PriorityCount, error)
	Overdue(ctx context.Context) ([]OverdueTask, error)
	CompletionTimes(ctx context.Context) ([]CompletionTime, error)
	UpcomingDeadlines(ctx context.Context, departmentID string, days int) ([]UpcomingDeadline, error)
	RecentActivity(ctx context.Context, limit int) ([]Activity, error)
}

// deadlineWindowDays is the horizon of the upcoming-deadlines report.
const deadlineWindowDays = 7

// Service implements task creation, the one-step status transition and the
// report queries.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Draft is the input for Create.
type Draft struct {
	Title        string
	Description  string
	Priority     string
	Status       string
	AssigneeID   string
	ReporterID   string
	DepartmentID string
	Deadline     *time.Time
	Tags         []string
}

// Create validates the draft and persists the task, its tag links and, when
// an assignee is set, an assignment notification, all under one transaction
// so a failure leaves no partial task behind.
func (s *Service) Create(ctx context.Context, draft Draft) (*Task, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	if draft.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if strings.TrimSpace(draft.ReporterID) == "" {
		return nil, fmt.Errorf("%w: reporter is required", ErrInvalidInput)
	}
	if strings.TrimSpace(draft.DepartmentID) == "" {
		return nil, fmt.Errorf("%w: department is required", ErrInvalidInput)
	}
	if !ValidPriority(draft.Priority) {
		return nil, fmt.Errorf("%w: priority must be High, Medium or Low", ErrInvalidInput)
	}
	statusName := draft.Status
	if statusName == "" {
		statusName = "To Do"
	}
	status, err := s.store.FindStatusByName(ctx, statusName)
	if err != nil {
		return nil, err
	}

	task := &Task{
		Title:        draft.Title,
		Description:  strings.TrimSpace(draft.Description),
		AssigneeID:   draft.AssigneeID,
		ReporterID:   draft.ReporterID,
		StatusID:     status.ID,
		StatusName:   status.Name,
		Priority:     draft.Priority,
		Deadline:     draft.Deadline,
		DepartmentID: draft.DepartmentID,
	}
	tags := normalizeTags(draft.Tags)

	var note *AssigneeNote
	if task.AssigneeID != "" {
		note = &AssigneeNote{
			UserID:  task.AssigneeID,
			Content: fmt.Sprintf("You have been assigned task '%s'", task.Title),
		}
	}
	if err := s.store.CreateTask(ctx, task, tags, note); err != nil {
		return nil, err
	}
	if note != nil {
		note.Link = "/task/" + task.ID
	}
	return task, nil
}

// AdvanceStatus moves the task one step forward in display order and
// notifies the assignee if one is set. A task in the terminal status is left
// untouched and reported with ErrTerminalStatus.
func (s *Service) AdvanceStatus(ctx context.Context, taskID string) (*Status, error) {
	task, err := s.store.FindTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	statuses, err := s.store.ListStatuses(ctx)
	if err != nil {
		return nil, err
	}
	next, err := nextStatus(statuses, task.StatusID)
	if err != nil {
		return nil, err
	}

	var note *AssigneeNote
	if task.AssigneeID != "" {
		note = &AssigneeNote{
			UserID:  task.AssigneeID,
			Content: fmt.Sprintf("Task '%s' has been moved to %s", task.Title, next.Name),
			Link:    "/task/" + task.ID,
		}
	}
	if err := s.store.UpdateTaskStatus(ctx, task.ID, next.ID, note); err != nil {
		return nil, err
	}
	return next, nil
}

func nextStatus(statuses []Status, currentID string) (*Status, error) {
	for i, st := range statuses {
		if st.ID != currentID {
			continue
		}
		if i == len(statuses)-1 {
			return nil, ErrTerminalStatus
		}
		return &statuses[i+1], nil
	}
	return nil, fmt.Errorf("%w: status %s not in catalog", ErrUnknownStatus, currentID)
}

// Find returns one task by id.
func (s *Service) Find(ctx context.Context, id string) (*Task, error) {
	return s.store.FindTask(ctx, id)
}

// Title returns the display title of a task.
func (s *Service) Title(ctx context.Context, taskID string) (string, error) {
	task, err := s.store.FindTask(ctx, taskID)
	if err != nil {
		return "", err
	}
	return task.Title, nil
}

// Tags returns the task's tags.
func (s *Service) Tags(ctx context.Context, taskID string) ([]Tag, error) {
	return s.store.TagsForTask(ctx, taskID)
}

// Statuses returns the catalog in display order.
func (s *Service) Statuses(ctx context.Context) ([]Status, error) {
	return s.store.ListStatuses(ctx)
}

// ByDepartment lists a department's tasks ordered by deadline, optionally
// narrowed to one status.
func (s *Service) ByDepartment(ctx context.Context, departmentID, statusName string) ([]Task, error) {
	if statusName == "" {
		return s.store.ListByDepartment(ctx, departmentID)
	}
	status, err := s.store.FindStatusByName(ctx, statusName)
	if err != nil {
		return nil, err
	}
	return s.store.ListByDepartmentStatus(ctx, departmentID, status.ID)
}

// Assigned lists tasks assigned to the user.
func (s *Service) Assigned(ctx context.Context, userID string) ([]Task, error) {
	return s.store.ListAssigned(ctx, userID)
}

// Reported lists tasks the user reported.
func (s *Service) Reported(ctx context.Context, userID string) ([]Task, error) {
	return s.store.ListReported(ctx, userID)
}

// All lists every task ordered by deadline.
func (s *Service) All(ctx context.Context) ([]Task, error) {
	return s.store.ListAll(ctx)
}

// StatusCounts reports task counts per status in display order.
func (s *Service) StatusCounts(ctx context.Context) ([]StatusCount, error) {
	return s.store.CountByStatus(ctx)
}

// PriorityCounts reports task counts per priority, High first.
func (s *Service) PriorityCounts(ctx context.Context) ([]PriorityCount, error) {
	return s.store.CountByPriority(ctx)
}

// OverdueTasks reports tasks past their deadline that are not Done.
func (s *Service) OverdueTasks(ctx context.Context) ([]OverdueTask, error) {
	return s.store.Overdue(ctx)
}

// CompletionTimes reports creation-to-last-update durations of Done tasks.
func (s *Service) CompletionTimes(ctx context.Context) ([]CompletionTime, error) {
	return s.store.CompletionTimes(ctx)
}

// UpcomingDeadlines reports tasks due within the next seven days, optionally
// scoped to a department.
func (s *Service) UpcomingDeadlines(ctx context.Context, departmentID string) ([]UpcomingDeadline, error) {
	return s.store.UpcomingDeadlines(ctx, departmentID, deadlineWindowDays)
}

// RecentActivity returns the most recently updated tasks for the dashboard.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.RecentActivity(ctx, limit)
}

func normalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	var tags []string
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
