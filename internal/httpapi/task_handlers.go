package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"taskdeck.org/internal/comments"
	"taskdeck.org/internal/perm"
	"taskdeck.org/internal/tasks"
)

type createTaskRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Priority     string   `json:"priority"`
	Status       string   `json:"status"`
	AssigneeID   string   `json:"assignee_id"`
	DepartmentID string   `json:"department_id"`
	Deadline     string   `json:"deadline"`
	Tags         []string `json:"tags"`
}

type addCommentRequest struct {
	Body string `json:"body"`
}

type advanceResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

func (a *API) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createTask(w, r)
	case http.MethodGet:
		a.listTasks(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.DepartmentID) == "" {
		writeError(w, r, http.StatusBadRequest, "department_id is required")
		return
	}
	if err := a.perm.Authorize(r.Context(), id, req.DepartmentID, perm.AccessEdit); err != nil {
		handlePermError(w, r, err)
		return
	}

	var deadline *time.Time
	if strings.TrimSpace(req.Deadline) != "" {
		d, err := time.Parse("2006-01-02", req.Deadline)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "deadline must be YYYY-MM-DD")
			return
		}
		deadline = &d
	}

	task, err := a.tasks.Create(r.Context(), tasks.Draft{
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		Status:       req.Status,
		AssigneeID:   req.AssigneeID,
		ReporterID:   id.UserID,
		DepartmentID: req.DepartmentID,
		Deadline:     deadline,
		Tags:         req.Tags,
	})
	if err != nil {
		handleTaskError(w, r, err)
		return
	}

	a.audit(r.Context(), "tasks.create", map[string]any{
		"task_id":       task.ID,
		"department_id": task.DepartmentID,
		"priority":      task.Priority,
	})
	w.Header().Set("Location", "/v1/tasks/"+task.ID)
	writeJSON(w, http.StatusCreated, task)
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	filter := r.URL.Query().Get("filter")
	if filter == "" {
		filter = "assigned"
	}

	var (
		items []tasks.Task
		err   error
	)
	switch filter {
	case "assigned":
		items, err = a.tasks.Assigned(r.Context(), id.UserID)
	case "reported":
		items, err = a.tasks.Reported(r.Context(), id.UserID)
	case "all":
		if !id.IsAdmin() {
			writeError(w, r, http.StatusForbidden, "admin role required")
			return
		}
		items, err = a.tasks.All(r.Context())
	default:
		writeError(w, r, http.StatusBadRequest, "filter must be one of assigned, reported, all")
		return
	}
	if err != nil {
		handleTaskError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleTaskScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/tasks/"), "/")
	parts := strings.Split(path, "/")
	if parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	taskID := parts[0]
	if len(parts) == 1 {
		a.getTask(w, r, taskID)
		return
	}
	if len(parts) != 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch parts[1] {
	case "advance":
		a.advanceTask(w, r, taskID)
	case "comments":
		a.handleTaskComments(w, r, taskID)
	case "tags":
		a.listTaskTags(w, r, taskID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// authorizeTask loads the task and checks the caller's access to its
// department. It writes the error response on failure.
func (a *API) authorizeTask(w http.ResponseWriter, r *http.Request, taskID string, need perm.Access) (*tasks.Task, bool) {
	id, ok := a.identity(w, r)
	if !ok {
		return nil, false
	}
	task, err := a.tasks.Find(r.Context(), taskID)
	if err != nil {
		handleTaskError(w, r, err)
		return nil, false
	}
	if err := a.perm.Authorize(r.Context(), id, task.DepartmentID, need); err != nil {
		handlePermError(w, r, err)
		return nil, false
	}
	return task, true
}

func (a *API) getTask(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	task, ok := a.authorizeTask(w, r, taskID, perm.AccessView)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *API) advanceTask(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	task, ok := a.authorizeTask(w, r, taskID, perm.AccessEdit)
	if !ok {
		return
	}
	status, err := a.tasks.AdvanceStatus(r.Context(), task.ID)
	if err != nil {
		handleTaskError(w, r, err)
		return
	}
	a.audit(r.Context(), "tasks.status.advance", map[string]any{
		"task_id": task.ID,
		"status":  status.Name,
	})
	writeJSON(w, http.StatusOK, advanceResponse{TaskID: task.ID, Status: status.Name})
}

func (a *API) handleTaskComments(w http.ResponseWriter, r *http.Request, taskID string) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.authorizeTask(w, r, taskID, perm.AccessView); !ok {
			return
		}
		items, err := a.comments.ListForTask(r.Context(), taskID)
		if err != nil {
			handleCommentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		id, ok := a.identity(w, r)
		if !ok {
			return
		}
		if _, ok := a.authorizeTask(w, r, taskID, perm.AccessEdit); !ok {
			return
		}
		var req addCommentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		comment, err := a.comments.AddComment(r.Context(), taskID, id.UserID, req.Body)
		if err != nil {
			handleCommentError(w, r, err)
			return
		}
		a.audit(r.Context(), "comments.create", map[string]any{
			"task_id":    taskID,
			"comment_id": comment.ID,
		})
		writeJSON(w, http.StatusCreated, comment)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listTaskTags(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.authorizeTask(w, r, taskID, perm.AccessView); !ok {
		return
	}
	items, err := a.tasks.Tags(r.Context(), taskID)
	if err != nil {
		handleTaskError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func handleTaskError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tasks.ErrInvalidInput), errors.Is(err, tasks.ErrUnknownStatus):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, tasks.ErrTerminalStatus):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, tasks.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "task operation failed")
	}
}

func handleCommentError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, comments.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, comments.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "comment operation failed")
	}
}
