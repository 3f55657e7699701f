package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"taskdeck.org/internal/auth"
	"taskdeck.org/internal/perm"
)

type createDepartmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateGrantsRequest struct {
	Grants []perm.Grant `json:"grants"`
}

type memberResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

func (a *API) handleDepartments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listDepartments(w, r)
	case http.MethodPost:
		a.createDepartment(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// listDepartments returns the full catalog for admins and only the
// departments the caller holds a view grant on otherwise.
func (a *API) listDepartments(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	var (
		departments []perm.Department
		err         error
	)
	if id.IsAdmin() {
		departments, err = a.perm.ListDepartments(r.Context())
	} else {
		departments, err = a.perm.AccessibleDepartments(r.Context(), id.UserID)
	}
	if err != nil {
		handlePermError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": departments})
}

func (a *API) createDepartment(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	var req createDepartmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	dept, err := a.perm.CreateDepartment(r.Context(), req.Name, req.Description)
	if err != nil {
		handlePermError(w, r, err)
		return
	}
	a.audit(r.Context(), "perm.department.create", map[string]any{
		"department_id": dept.ID,
		"name":          dept.Name,
	})
	w.Header().Set("Location", "/v1/departments/"+dept.ID)
	writeJSON(w, http.StatusCreated, dept)
}

func (a *API) handleDepartmentScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/departments/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	deptID := parts[0]
	switch parts[1] {
	case "tasks":
		a.listDepartmentTasks(w, r, deptID)
	case "members":
		a.listDepartmentMembers(w, r, deptID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listDepartmentTasks(w http.ResponseWriter, r *http.Request, deptID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	if err := a.perm.Authorize(r.Context(), id, deptID, perm.AccessView); err != nil {
		handlePermError(w, r, err)
		return
	}
	items, err := a.tasks.ByDepartment(r.Context(), deptID, r.URL.Query().Get("status"))
	if err != nil {
		handleTaskError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) listDepartmentMembers(w http.ResponseWriter, r *http.Request, deptID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	if err := a.perm.Authorize(r.Context(), id, deptID, perm.AccessView); err != nil {
		handlePermError(w, r, err)
		return
	}
	dept, err := a.perm.FindDepartment(r.Context(), deptID)
	if err != nil {
		handlePermError(w, r, err)
		return
	}
	users, err := a.users.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "member lookup failed")
		return
	}
	members := make([]memberResponse, 0)
	for _, u := range users {
		if u.Department != dept.Name {
			continue
		}
		members = append(members, memberResponse{
			ID:       u.ID,
			Username: u.Username,
			FullName: u.FullName,
			Email:    u.Email,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": members})
}

func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	parts := strings.Split(path, "/")
	if parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	userID := parts[0]
	if len(parts) == 1 {
		a.handleUserProfile(w, r, userID)
		return
	}
	if len(parts) != 2 || parts[1] != "grants" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.listGrants(w, r, userID)
	case http.MethodPut:
		a.updateGrants(w, r, userID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

type updateProfileRequest struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Role       string `json:"role"`
}

func (a *API) handleUserProfile(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.auth.UpdateProfile(r.Context(), userID, auth.ProfileUpdate{
		FullName:   req.FullName,
		Email:      req.Email,
		Department: req.Department,
		Role:       req.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "user not found")
		default:
			writeError(w, r, http.StatusInternalServerError, "profile update failed")
		}
		return
	}
	a.audit(r.Context(), "auth.profile.update", map[string]any{
		"user_id": user.ID,
		"role":    user.Role,
	})
	writeJSON(w, http.StatusOK, user)
}

func (a *API) listGrants(w http.ResponseWriter, r *http.Request, userID string) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	grants, err := a.perm.GrantsForUser(r.Context(), userID)
	if err != nil {
		handlePermError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": grants})
}

// updateGrants applies the submitted grants one by one; a failing row is
// reported in the result and does not abort the rest.
func (a *API) updateGrants(w http.ResponseWriter, r *http.Request, userID string) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	if _, err := a.users.Find(r.Context(), userID); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "user lookup failed")
		return
	}
	var req updateGrantsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	result, err := a.perm.ApplyGrants(r.Context(), userID, req.Grants)
	if err != nil {
		handlePermError(w, r, err)
		return
	}
	a.audit(r.Context(), "perm.grants.update", map[string]any{
		"user_id": userID,
		"applied": result.Applied,
		"total":   result.Total,
	})
	writeJSON(w, http.StatusOK, result)
}

func handlePermError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, perm.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, perm.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, perm.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, perm.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "permission operation failed")
	}
}
