package tasks

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("tasks: not found")
	ErrInvalidInput   = errors.New("tasks: invalid input")
	ErrUnknownStatus  = errors.New("tasks: unknown status")
	ErrTerminalStatus = errors.New("tasks: task is already in the terminal status")
)

// Priority values accepted on a task.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// ValidPriority reports whether p is one of the accepted priorities.
func ValidPriority(p string) bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Status is an entry of the ordered status catalog. DisplayOrder defines both
// the board column order and the "next status" transition; the entry with the
// highest order is terminal.
type Status struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"display_order"`
}

// Tag is a free-form label linked to tasks many-to-many.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Task is a unit of tracked work. Reporter is always set; assignee may be
// empty. Names are denormalized on read for display.
type Task struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	AssigneeID   string     `json:"assignee_id,omitempty"`
	AssigneeName string     `json:"assignee_name,omitempty"`
	ReporterID   string     `json:"reporter_id"`
	ReporterName string     `json:"reporter_name,omitempty"`
	StatusID     string     `json:"status_id"`
	StatusName   string     `json:"status,omitempty"`
	Priority     string     `json:"priority"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	DepartmentID string     `json:"department_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// StatusCount is a report row: tasks per status in display order.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// PriorityCount is a report row: tasks per priority, High first.
type PriorityCount struct {
	Priority string `json:"priority"`
	Count    int    `json:"count"`
}

// OverdueTask is a report row for a task past its deadline and not Done.
type OverdueTask struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Priority    string    `json:"priority"`
	Deadline    time.Time `json:"deadline"`
	DaysOverdue int       `json:"days_overdue"`
	Status      string    `json:"status"`
	Assignee    string    `json:"assignee,omitempty"`
}

// CompletionTime is a report row: days from creation to the last update of a
// Done task.
type CompletionTime struct {
	Priority       string `json:"priority"`
	DaysToComplete int    `json:"days_to_complete"`
}

// UpcomingDeadline is a report row for a task due within the report window.
type UpcomingDeadline struct {
	Title    string    `json:"title"`
	Deadline time.Time `json:"deadline"`
	Status   string    `json:"status"`
	Assignee string    `json:"assignee,omitempty"`
}

// Activity is a dashboard feed row for recently updated tasks.
type Activity struct {
	Title     string    `json:"title"`
	Reporter  string    `json:"reporter"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}
