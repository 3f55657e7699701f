// Package httpapi is the HTTP layer: routing, authentication middleware and
// handlers over the domain services.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"taskdeck.org/internal/audit"
	"taskdeck.org/internal/auth"
	"taskdeck.org/internal/comments"
	"taskdeck.org/internal/notify"
	"taskdeck.org/internal/obs"
	"taskdeck.org/internal/perm"
	"taskdeck.org/internal/roster"
	"taskdeck.org/internal/tasks"
)

// ReadyProbe checks backing-store readiness (DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// AuthService covers login, password management and profile updates.
type AuthService interface {
	Verify(ctx context.Context, username, password string) (*auth.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	UpdateProfile(ctx context.Context, userID string, upd auth.ProfileUpdate) (*auth.User, error)
}

// Directory exposes user lookups the handlers need.
type Directory interface {
	Find(ctx context.Context, id string) (*auth.User, error)
	List(ctx context.Context) ([]*auth.User, error)
}

// PermService answers access questions and manages departments and grants.
type PermService interface {
	Authorize(ctx context.Context, id auth.Identity, departmentID string, need perm.Access) error
	ListDepartments(ctx context.Context) ([]perm.Department, error)
	AccessibleDepartments(ctx context.Context, userID string) ([]perm.Department, error)
	CreateDepartment(ctx context.Context, name, description string) (*perm.Department, error)
	FindDepartment(ctx context.Context, id string) (*perm.Department, error)
	GrantsForUser(ctx context.Context, userID string) ([]perm.Grant, error)
	ApplyGrants(ctx context.Context, userID string, grants []perm.Grant) (perm.BatchResult, error)
}

// TaskService covers task creation, workflow and reports.
type TaskService interface {
	Create(ctx context.Context, draft tasks.Draft) (*tasks.Task, error)
	Find(ctx context.Context, id string) (*tasks.Task, error)
	AdvanceStatus(ctx context.Context, taskID string) (*tasks.Status, error)
	Tags(ctx context.Context, taskID string) ([]tasks.Tag, error)
	ByDepartment(ctx context.Context, departmentID, statusName string) ([]tasks.Task, error)
	Assigned(ctx context.Context, userID string) ([]tasks.Task, error)
	Reported(ctx context.Context, userID string) ([]tasks.Task, error)
	All(ctx context.Context) ([]tasks.Task, error)
	StatusCounts(ctx context.Context) ([]tasks.StatusCount, error)
	PriorityCounts(ctx context.Context) ([]tasks.PriorityCount, error)
	OverdueTasks(ctx context.Context) ([]tasks.OverdueTask, error)
	CompletionTimes(ctx context.Context) ([]tasks.CompletionTime, error)
	UpcomingDeadlines(ctx context.Context, departmentID string) ([]tasks.UpcomingDeadline, error)
	RecentActivity(ctx context.Context, limit int) ([]tasks.Activity, error)
}

// CommentService posts and lists task comments.
type CommentService interface {
	AddComment(ctx context.Context, taskID, authorID, body string) (*comments.Comment, error)
	ListForTask(ctx context.Context, taskID string) ([]comments.Comment, error)
}

// NotifyService is the per-user notification inbox.
type NotifyService interface {
	FeedForUser(ctx context.Context, userID string) (notify.Feed, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// RosterService handles team onboarding.
type RosterService interface {
	AddMember(ctx context.Context, username, fullName, email, department string) (*roster.Member, error)
	ImportCSV(ctx context.Context, r io.Reader) (*roster.Report, error)
}

// Config wires the API's dependencies.
type Config struct {
	Ready         ReadyProbe
	Version       string
	Auth          AuthService
	Users         Directory
	Perm          PermService
	Tasks         TaskService
	Comments      CommentService
	Notifications NotifyService
	Roster        RosterService
}

// API is the HTTP layer.
type API struct {
	mux           *http.ServeMux
	readyProbe    ReadyProbe
	version       string
	auth          AuthService
	users         Directory
	perm          PermService
	tasks         TaskService
	comments      CommentService
	notifications NotifyService
	roster        RosterService
}

func New(cfg Config) *API {
	a := &API{
		mux:           http.NewServeMux(),
		readyProbe:    cfg.Ready,
		version:       cfg.Version,
		auth:          cfg.Auth,
		users:         cfg.Users,
		perm:          cfg.Perm,
		tasks:         cfg.Tasks,
		comments:      cfg.Comments,
		notifications: cfg.Notifications,
		roster:        cfg.Roster,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/password", a.handlePasswordChange)

	a.mux.HandleFunc("/v1/departments", a.handleDepartments)
	a.mux.HandleFunc("/v1/departments/", a.handleDepartmentScoped)
	a.mux.HandleFunc("/v1/users/", a.handleUserScoped)

	a.mux.HandleFunc("/v1/tasks", a.handleTasks)
	a.mux.HandleFunc("/v1/tasks/", a.handleTaskScoped)

	a.mux.HandleFunc("/v1/notifications", a.handleNotificationFeed)
	a.mux.HandleFunc("/v1/notifications/", a.handleNotificationScoped)

	a.mux.HandleFunc("/v1/reports/", a.handleReports)

	a.mux.HandleFunc("/v1/team/members", a.handleTeamMembers)
	a.mux.HandleFunc("/v1/team/import", a.handleTeamImport)
	a.mux.HandleFunc("/v1/team/template.csv", a.handleTeamTemplate)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 50, 25)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "taskdeck-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// identity returns the authenticated caller, responding 401 when absent.
func (a *API) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Identity{}, false
	}
	return id, true
}

// requireAdmin gates admin-only surfaces on the role capability.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := a.identity(w, r)
	if !ok {
		return auth.Identity{}, false
	}
	if !id.IsAdmin() {
		writeError(w, r, http.StatusForbidden, "admin role required")
		return auth.Identity{}, false
	}
	return id, true
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	// audit failures must not fail the request
	_ = audit.LogEvent(ctx, event, fields)
}
