package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Reports are dashboard aggregates; the admin capability gates all of them.
func (a *API) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}

	report := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/reports/"), "/")
	ctx := r.Context()

	var (
		items any
		err   error
	)
	switch report {
	case "status_counts":
		items, err = a.tasks.StatusCounts(ctx)
	case "priority_counts":
		items, err = a.tasks.PriorityCounts(ctx)
	case "overdue":
		items, err = a.tasks.OverdueTasks(ctx)
	case "completion_time":
		items, err = a.tasks.CompletionTimes(ctx)
	case "deadlines":
		items, err = a.tasks.UpcomingDeadlines(ctx, r.URL.Query().Get("department_id"))
	case "activity":
		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 1 || limit > 100 {
				writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 100")
				return
			}
		}
		items, err = a.tasks.RecentActivity(ctx, limit)
	default:
		writeError(w, r, http.StatusNotFound, "unknown report")
		return
	}
	if err != nil {
		handleTaskError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"report": report,
		"as_of":  time.Now().UTC(),
		"items":  items,
	})
}
