// Package perm implements department-scoped access control. Visibility and
// edit rights come only from explicit grant rows; the single admin override
// lives in Authorize so no call site needs its own role check.
package perm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskdeck.org/internal/auth"
)

var (
	ErrNotFound     = errors.New("perm: not found")
	ErrConflict     = errors.New("perm: already exists")
	ErrInvalidInput = errors.New("perm: invalid input")
	ErrForbidden    = errors.New("perm: forbidden")
)

// Department is a catalog entry used for access grants. It is independent of
// the free-text department label on user profiles.
type Department struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Grant is a (user, department) permission row. Absence of a row means no
// access.
type Grant struct {
	DepartmentID   string `json:"department_id"`
	DepartmentName string `json:"department_name,omitempty"`
	CanView        bool   `json:"can_view"`
	CanEdit        bool   `json:"can_edit"`
}

// Access is the capability being checked against a department.
type Access int

const (
	AccessView Access = iota
	AccessEdit
)

func (a Access) String() string {
	if a == AccessEdit {
		return "edit"
	}
	return "view"
}

// Store describes grant and department persistence.
type Store interface {
	FindGrant(ctx context.Context, userID, departmentID string) (*Grant, error)
	GrantsForUser(ctx context.Context, userID string) ([]Grant, error)
	UpsertGrant(ctx context.Context, userID string, g Grant) error
	AccessibleDepartments(ctx context.Context, userID string) ([]Department, error)

	CreateDepartment(ctx context.Context, d *Department) error
	ListDepartments(ctx context.Context) ([]Department, error)
	FindDepartment(ctx context.Context, id string) (*Department, error)
	FindDepartmentByName(ctx context.Context, name string) (*Department, error)
}

// Service answers access questions and applies grant updates.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// CanView reports whether an explicit grant gives the user view access to the
// department. No implicit access exists, admin or not; use Authorize for the
// role-aware check.
func (s *Service) CanView(ctx context.Context, userID, departmentID string) (bool, error) {
	return s.hasAccess(ctx, userID, departmentID, AccessView)
}

// CanEdit reports whether an explicit grant gives the user edit access.
func (s *Service) CanEdit(ctx context.Context, userID, departmentID string) (bool, error) {
	return s.hasAccess(ctx, userID, departmentID, AccessEdit)
}

func (s *Service) hasAccess(ctx context.Context, userID, departmentID string, need Access) (bool, error) {
	grant, err := s.store.FindGrant(ctx, userID, departmentID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if need == AccessEdit {
		return grant.CanEdit, nil
	}
	return grant.CanView, nil
}

// Authorize is the uniform access check applied at the HTTP layer: the admin
// role passes for any department, everyone else needs an explicit grant.
func (s *Service) Authorize(ctx context.Context, id auth.Identity, departmentID string, need Access) error {
	if id.IsAdmin() {
		return nil
	}
	ok, err := s.hasAccess(ctx, id.UserID, departmentID, need)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no %s access to department", ErrForbidden, need)
	}
	return nil
}

// AccessibleDepartments lists departments the user can view, ordered by name.
func (s *Service) AccessibleDepartments(ctx context.Context, userID string) ([]Department, error) {
	return s.store.AccessibleDepartments(ctx, userID)
}

// GrantsForUser returns the user's grant rows with department names.
func (s *Service) GrantsForUser(ctx context.Context, userID string) ([]Grant, error) {
	return s.store.GrantsForUser(ctx, userID)
}

// GrantError records one failed upsert within a batch.
type GrantError struct {
	DepartmentID string `json:"department_id"`
	Message      string `json:"message"`
}

// BatchResult reports how many of N upserts succeeded. The batch is not
// atomic: departments updated before a failure stay updated.
type BatchResult struct {
	Applied int          `json:"applied"`
	Total   int          `json:"total"`
	Errors  []GrantError `json:"errors,omitempty"`
}

// ApplyGrants upserts the full set of (department, can_view, can_edit) tuples
// for one user, continuing past per-department failures.
func (s *Service) ApplyGrants(ctx context.Context, userID string, grants []Grant) (BatchResult, error) {
	if strings.TrimSpace(userID) == "" {
		return BatchResult{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	result := BatchResult{Total: len(grants)}
	for _, g := range grants {
		if strings.TrimSpace(g.DepartmentID) == "" {
			result.Errors = append(result.Errors, GrantError{Message: "department id is required"})
			continue
		}
		if err := s.store.UpsertGrant(ctx, userID, g); err != nil {
			result.Errors = append(result.Errors, GrantError{
				DepartmentID: g.DepartmentID,
				Message:      err.Error(),
			})
			continue
		}
		result.Applied++
	}
	return result, nil
}

// CreateDepartment adds a department to the catalog.
func (s *Service) CreateDepartment(ctx context.Context, name, description string) (*Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: department name is required", ErrInvalidInput)
	}
	dept := &Department{Name: name, Description: strings.TrimSpace(description)}
	if err := s.store.CreateDepartment(ctx, dept); err != nil {
		return nil, err
	}
	return dept, nil
}

// ListDepartments returns the catalog ordered by name.
func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	return s.store.ListDepartments(ctx)
}

// FindDepartment looks up a catalog entry by id.
func (s *Service) FindDepartment(ctx context.Context, id string) (*Department, error) {
	return s.store.FindDepartment(ctx, id)
}

// DepartmentByName looks up a catalog entry by its unique name.
func (s *Service) DepartmentByName(ctx context.Context, name string) (*Department, error) {
	return s.store.FindDepartmentByName(ctx, name)
}
