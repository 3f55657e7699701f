package roster

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"taskdeck.org/internal/auth"
)

type fakeRegistrar struct {
	calls []auth.Registration
	fail  map[string]error
}

func (f *fakeRegistrar) Register(ctx context.Context, reg auth.Registration) (*auth.User, error) {
	f.calls = append(f.calls, reg)
	if err, ok := f.fail[reg.Username]; ok {
		return nil, err
	}
	return &auth.User{
		ID:         "u-" + reg.Username,
		Username:   reg.Username,
		FullName:   reg.FullName,
		Email:      reg.Email,
		Department: reg.Department,
		Role:       auth.RoleUser,
	}, nil
}

func TestAddMemberGeneratesPassword(t *testing.T) {
	reg := &fakeRegistrar{}
	svc := NewService(reg)

	member, err := svc.AddMember(context.Background(), "carol", "Carol Reyes", "carol@example.com", "Engineering")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if len(member.InitialPassword) != passwordLength {
		t.Fatalf("expected %d character password, got %q", passwordLength, member.InitialPassword)
	}
	for _, r := range member.InitialPassword {
		if !strings.ContainsRune(passwordAlphabet, r) {
			t.Fatalf("password contains unexpected character %q", r)
		}
	}
	if len(reg.calls) != 1 || reg.calls[0].Password != member.InitialPassword {
		t.Fatalf("registrar did not receive the generated password")
	}
}

func TestImportCSVContinuesPastFailures(t *testing.T) {
	reg := &fakeRegistrar{fail: map[string]error{"bob": auth.ErrConflict}}
	svc := NewService(reg)

	input := strings.NewReader(
		"username,full_name,email,department\n" +
			"alice,Alice Stone,alice@example.com,Engineering\n" +
			"bob,Bob Stone,bob@example.com,Marketing\n" +
			"dave,Dave Lin,dave@example.com,\n")

	report, err := svc.ImportCSV(context.Background(), input)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("expected 2 succeeded / 1 failed, got %d / %d", report.Succeeded, report.Failed)
	}
	if len(report.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(report.Rows))
	}
	bob := report.Rows[1]
	if bob.Status != "Error" || bob.Message != "Username already exists" || bob.Password != "" {
		t.Fatalf("unexpected failed row: %+v", bob)
	}
	alice := report.Rows[0]
	if alice.Status != "Success" || alice.Password == "" {
		t.Fatalf("unexpected success row: %+v", alice)
	}
}

func TestImportCSVHeaderOrderIndependent(t *testing.T) {
	reg := &fakeRegistrar{}
	svc := NewService(reg)

	input := strings.NewReader(
		"email,department,username,full_name\n" +
			"erin@example.com,Support,erin,Erin Zhou\n")

	report, err := svc.ImportCSV(context.Background(), input)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("expected 1 succeeded, got %d", report.Succeeded)
	}
	call := reg.calls[0]
	if call.Username != "erin" || call.Email != "erin@example.com" || call.Department != "Support" {
		t.Fatalf("columns mapped incorrectly: %+v", call)
	}
}

func TestImportCSVRejectsMissingColumns(t *testing.T) {
	svc := NewService(&fakeRegistrar{})

	_, err := svc.ImportCSV(context.Background(), strings.NewReader("username,email\nalice,a@example.com\n"))
	if err == nil || !strings.Contains(err.Error(), "must contain columns") {
		t.Fatalf("expected missing-column error, got %v", err)
	}
}

func TestReportCSVRoundTrip(t *testing.T) {
	report := &Report{
		Succeeded: 1,
		Failed:    1,
		Rows: []RowResult{
			{Username: "alice", Status: "Success", Message: "User created", Password: "s3cretpass"},
			{Username: "bob", Status: "Error", Message: "Username already exists"},
		},
	}

	var buf bytes.Buffer
	if err := report.CSV(&buf); err != nil {
		t.Fatalf("render csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "username,status,message,password" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if lines[1] != "alice,Success,User created,s3cretpass" {
		t.Fatalf("unexpected row: %q", lines[1])
	}
}

func TestTemplateCSVHasHeader(t *testing.T) {
	template := string(TemplateCSV())
	if !strings.HasPrefix(template, "username,full_name,email,department\n") {
		t.Fatalf("unexpected template header: %q", template)
	}
}
