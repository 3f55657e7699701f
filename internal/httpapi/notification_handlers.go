package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"taskdeck.org/internal/notify"
)

func (a *API) handleNotificationFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	feed, err := a.notifications.FeedForUser(r.Context(), id.UserID)
	if err != nil {
		handleNotifyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (a *API) handleNotificationScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/notifications/"), "/")
	switch path {
	case "":
		writeError(w, r, http.StatusNotFound, "resource not found")
	case "unread_count":
		a.unreadCount(w, r)
	case "read_all":
		a.markAllRead(w, r)
	default:
		parts := strings.Split(path, "/")
		if len(parts) != 2 || parts[1] != "read" {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.markRead(w, r, parts[0])
	}
}

func (a *API) unreadCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	count, err := a.notifications.UnreadCount(r.Context(), id.UserID)
	if err != nil {
		handleNotifyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

func (a *API) markRead(w http.ResponseWriter, r *http.Request, notificationID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.identity(w, r); !ok {
		return
	}
	if err := a.notifications.MarkRead(r.Context(), notificationID); err != nil {
		handleNotifyError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) markAllRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	if err := a.notifications.MarkAllRead(r.Context(), id.UserID); err != nil {
		handleNotifyError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleNotifyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, notify.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, notify.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "notification operation failed")
	}
}
