// Package roster handles team onboarding: single member creation with a
// generated initial password, and CSV bulk import producing a downloadable
// result report. Initial passwords are returned in plaintext exactly once and
// must be distributed out-of-band.
package roster

import (
	"context"
	"crypto/rand"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"taskdeck.org/internal/auth"
)

var ErrInvalidInput = errors.New("roster: invalid input")

const (
	passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	passwordLength   = 10
)

// Registrar creates accounts; satisfied by the auth service.
type Registrar interface {
	Register(ctx context.Context, reg auth.Registration) (*auth.User, error)
}

// Service implements team member onboarding.
type Service struct {
	registrar Registrar
}

func NewService(registrar Registrar) *Service {
	return &Service{registrar: registrar}
}

// Member is the result of a successful AddMember call. InitialPassword is the
// only copy of the plaintext; it is never stored.
type Member struct {
	User            *auth.User `json:"user"`
	InitialPassword string     `json:"initial_password"`
}

// AddMember registers a user with a generated initial password.
func (s *Service) AddMember(ctx context.Context, username, fullName, email, department string) (*Member, error) {
	password, err := generatePassword()
	if err != nil {
		return nil, err
	}
	user, err := s.registrar.Register(ctx, auth.Registration{
		Username:   username,
		FullName:   fullName,
		Email:      email,
		Department: department,
		Password:   password,
	})
	if err != nil {
		return nil, err
	}
	return &Member{User: user, InitialPassword: password}, nil
}

// RowResult is the per-row outcome of a bulk import.
type RowResult struct {
	Username string `json:"username"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Password string `json:"password,omitempty"`
}

// Report aggregates a bulk import run.
type Report struct {
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Rows      []RowResult `json:"rows"`
}

// importColumns are the required CSV header columns; department is optional.
var importColumns = []string{"username", "full_name", "email"}

// ImportCSV reads member rows and registers each one. A failing row is
// recorded in the report and does not stop the batch.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (*Report, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: missing CSV header", ErrInvalidInput)
	}
	index, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		username := field(record, index, "username")
		member, err := s.AddMember(ctx,
			username,
			field(record, index, "full_name"),
			field(record, index, "email"),
			field(record, index, "department"),
		)
		if err != nil {
			report.Failed++
			report.Rows = append(report.Rows, RowResult{
				Username: username,
				Status:   "Error",
				Message:  importErrorMessage(err),
			})
			continue
		}
		report.Succeeded++
		report.Rows = append(report.Rows, RowResult{
			Username: member.User.Username,
			Status:   "Success",
			Message:  "User created",
			Password: member.InitialPassword,
		})
	}
	return report, nil
}

// CSV renders the report as the downloadable result file. It contains the
// initial passwords and must be handled accordingly.
func (r *Report) CSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"username", "status", "message", "password"}); err != nil {
		return err
	}
	for _, row := range r.Rows {
		if err := writer.Write([]string{row.Username, row.Status, row.Message, row.Password}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// TemplateCSV returns the downloadable import template.
func TemplateCSV() []byte {
	return []byte("username,full_name,email,department\n" +
		"john_doe,John Doe,john@example.com,Engineering\n" +
		"jane_smith,Jane Smith,jane@example.com,Marketing\n")
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.ToLower(col))] = i
	}
	for _, required := range importColumns {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("%w: CSV must contain columns %s", ErrInvalidInput, strings.Join(importColumns, ", "))
		}
	}
	return index, nil
}

func field(record []string, index map[string]int, name string) string {
	i, ok := index[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func importErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrConflict):
		return "Username already exists"
	case errors.Is(err, auth.ErrInvalidInput):
		return strings.TrimPrefix(err.Error(), "auth: invalid input: ")
	case err != nil && strings.HasPrefix(err.Error(), "auth: "):
		return strings.TrimPrefix(err.Error(), "auth: ")
	default:
		return "Failed to create user"
	}
}

func generatePassword() (string, error) {
	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, passwordLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
