package httpapi

import (
	"errors"
	"net/http"

	"taskdeck.org/internal/auth"
	"taskdeck.org/internal/roster"
)

type addMemberRequest struct {
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

func (a *API) handleTeamMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	member, err := a.roster.AddMember(r.Context(), req.Username, req.FullName, req.Email, req.Department)
	if err != nil {
		handleRosterError(w, r, err)
		return
	}
	a.audit(r.Context(), "team.member.create", map[string]any{
		"user_id":  member.User.ID,
		"username": member.User.Username,
	})
	w.Header().Set("Location", "/v1/users/"+member.User.ID)
	writeJSON(w, http.StatusCreated, member)
}

// handleTeamImport accepts a CSV body and answers with the per-row result
// report, also as CSV. The report carries generated passwords; it is marked
// no-store.
func (a *API) handleTeamImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}

	report, err := a.roster.ImportCSV(r.Context(), r.Body)
	if err != nil {
		handleRosterError(w, r, err)
		return
	}
	a.audit(r.Context(), "team.import", map[string]any{
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	})

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="import_results.csv"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = report.CSV(w)
}

func (a *API) handleTeamTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.identity(w, r); !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="team_import_template.csv"`)
	_, _ = w.Write(roster.TemplateCSV())
}

func handleRosterError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, roster.ErrInvalidInput), errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "team operation failed")
	}
}
