package masthead

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC)

func sopMetadata() Metadata {
	return Metadata{
		DocName:    "Cleaning of Production Area",
		DocNumber:  "QC-SOP-001",
		RevisionNo: 2,
		Status:     StatusApproved,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		meta Metadata
		ok   bool
	}{
		{"valid", sopMetadata(), true},
		{"upper status", Metadata{DocName: "a", DocNumber: "b", Status: "ISSUED"}, true},
		{"empty status", Metadata{DocName: "a", DocNumber: "b"}, true},
		{"missing name", Metadata{DocNumber: "b"}, false},
		{"blank number", Metadata{DocName: "a", DocNumber: "   "}, false},
		{"negative revision", Metadata{DocName: "a", DocNumber: "b", RevisionNo: -1}, false},
		{"unknown status", Metadata{DocName: "a", DocNumber: "b", Status: "archived"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrInvalidMetadata) {
					t.Fatalf("expected ErrInvalidMetadata, got %v", err)
				}
			}
		})
	}
}

func TestResolve_Defaults(t *testing.T) {
	f := Resolve(Metadata{DocName: "Doc", DocNumber: "D-1"}, nil, fixedNow)

	checks := map[string][2]string{
		"issue no":      {f.IssueNo, "01"},
		"date of issue": {f.DateOfIssue, "09/03/2026"},
		"revision":      {f.RevisionNo, "0"},
		"revision date": {f.DateOfRevision, "N/A"},
		"due date":      {f.DueDate, "N/A"},
		"department":    {f.Department, "Management Representative"},
		"prepared":      {f.PreparedBy, "Pending"},
		"approved":      {f.ApprovedBy, "HOD"},
		"issued":        {f.IssuedBy, "QA"},
		"status":        {f.Status, "PENDING"},
		"company":       {f.Company, "COMPANY NAME"},
	}
	for name, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s = %q, want %q", name, c[0], c[1])
		}
	}
	if f.ControlCopy != "" {
		t.Errorf("expected no control copy banner, got %q", f.ControlCopy)
	}
}

func TestResolve_Values(t *testing.T) {
	issued := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	due := time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC)
	meta := sopMetadata()
	meta.CompanyName = "Acme Pharma"
	meta.DateOfIssue = &issued
	meta.ReviewDueDate = &due
	meta.DepartmentNames = []string{" Quality Control ", "Production"}
	meta.PreparerName = "A. Author"

	f := Resolve(meta, nil, fixedNow)
	if f.Company != "ACME PHARMA" {
		t.Errorf("company = %q", f.Company)
	}
	if f.DateOfIssue != "01/12/2025" {
		t.Errorf("date of issue = %q", f.DateOfIssue)
	}
	if f.DueDate != "31/01/2027" {
		t.Errorf("due date = %q", f.DueDate)
	}
	if f.Department != "Quality Control" {
		t.Errorf("department = %q", f.Department)
	}
	if f.Departments != "Quality Control, Production" {
		t.Errorf("departments = %q", f.Departments)
	}
	if f.Status != "APPROVED" {
		t.Errorf("status = %q", f.Status)
	}
	if f.RevisionNo != "2" {
		t.Errorf("revision = %q", f.RevisionNo)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	meta := Metadata{DocName: "Doc", DocNumber: "D-1"}
	a := Resolve(meta, nil, fixedNow)
	b := Resolve(meta, nil, fixedNow)

	if HeaderHTML(a) != HeaderHTML(b) || FooterHTML(a) != FooterHTML(b) {
		t.Fatal("HTML blocks differ for identical input")
	}
	if strings.Join(HeaderLines(a, "1", "2"), "\n") != strings.Join(HeaderLines(b, "1", "2"), "\n") {
		t.Fatal("header lines differ for identical input")
	}
	if strings.Join(FooterLines(a), "\n") != strings.Join(FooterLines(b), "\n") {
		t.Fatal("footer lines differ for identical input")
	}
}

func TestDueDateNotApplicable_BothForms(t *testing.T) {
	f := Resolve(sopMetadata(), nil, fixedNow)

	if !strings.Contains(HeaderHTML(f), "Due Date of Revision:</span> N/A") {
		t.Errorf("HTML header missing N/A due date:\n%s", HeaderHTML(f))
	}
	if !strings.Contains(strings.Join(HeaderLines(f, "1", "1"), "\n"), "Due Date of Revision: N/A") {
		t.Error("text header missing N/A due date")
	}
}

func TestSameCellsInBothForms(t *testing.T) {
	f := Resolve(sopMetadata(), nil, fixedNow)
	headerHTML := HeaderHTML(f)
	headerText := strings.Join(HeaderLines(f, "1", "1"), "\n")

	for _, row := range [][]Cell{f.IdentityRow(), f.OwnershipRow()} {
		for _, c := range row {
			if !strings.Contains(headerHTML, c.Label+":</span> "+c.Value) {
				t.Errorf("HTML header missing %s=%s", c.Label, c.Value)
			}
			if !strings.Contains(headerText, c.Label+": "+c.Value) {
				t.Errorf("text header missing %s=%s", c.Label, c.Value)
			}
		}
	}

	footerHTML := FooterHTML(f)
	footerText := strings.Join(FooterLines(f), "\n")
	for _, c := range f.FooterRow() {
		if !strings.Contains(footerHTML, c.Label+":</span> "+c.Value) {
			t.Errorf("HTML footer missing %s=%s", c.Label, c.Value)
		}
		if !strings.Contains(footerText, c.Label+": "+c.Value) {
			t.Errorf("text footer missing %s=%s", c.Label, c.Value)
		}
	}
}

func TestHeaderHTML_PageMarker(t *testing.T) {
	f := Resolve(sopMetadata(), nil, fixedNow)
	want := `Page <span class="pageNumber"></span> of <span class="totalPages"></span>`
	if !strings.Contains(HeaderHTML(f), want) {
		t.Fatalf("header missing engine page counters")
	}
}

func TestFooter_ControlCopy(t *testing.T) {
	cc := &ControlCopy{UserID: "42", UserFullName: "J. Smith", ControlCopyNumber: "CC-7"}
	f := Resolve(sopMetadata(), cc, fixedNow)

	want := "CONTROLLED COPY - Issued to: J. Smith (ID 42) | Copy No: CC-7 | Date: 09/03/2026"
	if f.ControlCopy != want {
		t.Fatalf("banner = %q, want %q", f.ControlCopy, want)
	}
	if !strings.Contains(FooterHTML(f), "J. Smith") {
		t.Error("HTML footer missing recipient")
	}
	lines := FooterLines(f)
	if lines[len(lines)-1] != want {
		t.Errorf("last footer line = %q", lines[len(lines)-1])
	}

	plain := Resolve(sopMetadata(), nil, fixedNow)
	if strings.Contains(FooterHTML(plain), ControlledCopyMarker) {
		t.Error("HTML footer has marker without control copy")
	}
	if strings.Contains(strings.Join(FooterLines(plain), "\n"), ControlledCopyMarker) {
		t.Error("text footer has marker without control copy")
	}
}

func TestHeaderHTML_Escapes(t *testing.T) {
	meta := sopMetadata()
	meta.DocName = `<script>alert("x")</script>`
	f := Resolve(meta, nil, fixedNow)
	if strings.Contains(HeaderHTML(f), "<script>") {
		t.Fatal("title not escaped")
	}
}

func TestBannerLine(t *testing.T) {
	f := Resolve(sopMetadata(), nil, fixedNow)
	if got := BannerLine(f); got != "Cleaning of Production Area (QC-SOP-001)" {
		t.Fatalf("BannerLine = %q", got)
	}
}

func TestControlCopyValidate(t *testing.T) {
	tests := []struct {
		name string
		cc   *ControlCopy
		ok   bool
	}{
		{"nil", nil, true},
		{"named", &ControlCopy{UserID: "42", UserFullName: "Jane Smith"}, true},
		{"accented", &ControlCopy{UserFullName: "José Núñez"}, true},
		{"empty name", &ControlCopy{UserID: "42"}, false},
		{"blank name", &ControlCopy{UserID: "42", UserFullName: "   "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cc.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidMetadata) {
				t.Fatalf("expected ErrInvalidMetadata, got %v", err)
			}
		})
	}
}
