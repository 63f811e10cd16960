package masthead

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the DD/MM/YYYY layout used for every rendered date.
const DateLayout = "02/01/2006"

// ControlledCopyMarker is the literal text every controlled page carries.
const ControlledCopyMarker = "CONTROLLED COPY"

// Placeholders used when a value is absent.
const (
	NotApplicable      = "N/A"
	DefaultIssueNo     = "01"
	DefaultCompany     = "COMPANY NAME"
	DefaultDepartment  = "Management Representative"
	DefaultPreparer    = "Pending"
	DefaultApprover    = "HOD"
	DefaultIssuer      = "QA"
	DefaultStatusLabel = "PENDING"
)

// Cell is one labelled value of the header or footer grid.
type Cell struct {
	Label string
	Value string
}

// Fields holds every resolved header/footer value. Renderers only read
// Fields; no renderer computes a default on its own.
type Fields struct {
	Company        string
	IssueNo        string
	DateOfIssue    string
	RevisionNo     string
	DateOfRevision string
	DueDate        string
	Department     string
	Departments    string
	Title          string
	DocNumber      string
	PreparedBy     string
	ApprovedBy     string
	IssuedBy       string
	Status         string

	// ControlCopy is the stamp banner, empty when no control copy was requested.
	ControlCopy string
	Recipient   string

	HeaderInfo string
	FooterInfo string
	Content    string
}

// Resolve applies defaults to meta and cc. now supplies "today" for the
// issue date default; equal inputs give equal Fields.
func Resolve(meta Metadata, cc *ControlCopy, now time.Time) Fields {
	f := Fields{
		Company:        strings.ToUpper(orDefault(meta.CompanyName, DefaultCompany)),
		IssueNo:        orDefault(meta.IssueNo, DefaultIssueNo),
		DateOfIssue:    now.Format(DateLayout),
		RevisionNo:     strconv.Itoa(max(meta.RevisionNo, 0)),
		DateOfRevision: formatDate(meta.DateOfRevision),
		DueDate:        formatDate(meta.ReviewDueDate),
		Department:     DefaultDepartment,
		Title:          strings.TrimSpace(meta.DocName),
		DocNumber:      strings.TrimSpace(meta.DocNumber),
		PreparedBy:     orDefault(meta.PreparerName, DefaultPreparer),
		ApprovedBy:     orDefault(meta.ApproverName, DefaultApprover),
		IssuedBy:       orDefault(meta.IssuerName, DefaultIssuer),
		Status:         DefaultStatusLabel,
		HeaderInfo:     meta.HeaderInfo,
		FooterInfo:     meta.FooterInfo,
		Content:        meta.Content,
	}
	if meta.DateOfIssue != nil {
		f.DateOfIssue = meta.DateOfIssue.Format(DateLayout)
	}
	if s := strings.TrimSpace(string(meta.Status)); s != "" {
		f.Status = strings.ToUpper(s)
	}

	var depts []string
	for _, d := range meta.DepartmentNames {
		if d = strings.TrimSpace(d); d != "" {
			depts = append(depts, d)
		}
	}
	if len(depts) > 0 {
		f.Department = depts[0]
		f.Departments = strings.Join(depts, ", ")
	} else {
		f.Departments = DefaultDepartment
	}

	if cc != nil {
		f.ControlCopy = ControlCopyBanner(*cc, now)
		f.Recipient = strings.TrimSpace(cc.UserFullName)
	}
	return f
}

// ControlCopyBanner formats the controlled-copy line, e.g.
// "CONTROLLED COPY - Issued to: J. Smith (ID 42) | Copy No: 3 | Date: 01/02/2026".
func ControlCopyBanner(cc ControlCopy, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(ControlledCopyMarker)
	sb.WriteString(" - Issued to: ")
	sb.WriteString(strings.TrimSpace(cc.UserFullName))
	if cc.UserID != "" {
		sb.WriteString(" (ID ")
		sb.WriteString(cc.UserID)
		sb.WriteString(")")
	}
	if cc.ControlCopyNumber != "" {
		sb.WriteString(" | Copy No: ")
		sb.WriteString(cc.ControlCopyNumber)
	}
	date := cc.Date
	if date.IsZero() {
		date = now
	}
	sb.WriteString(" | Date: ")
	sb.WriteString(date.Format(DateLayout))
	return sb.String()
}

// PageMarker formats the running page indicator. The arguments are either
// numbers or engine placeholders resolved at layout time.
func PageMarker(page, total string) string {
	return "Page " + page + " of " + total
}

// IdentityRow is row 2 of the header grid, without the page marker.
func (f Fields) IdentityRow() []Cell {
	return []Cell{
		{"Issue No", f.IssueNo},
		{"Date of Issue", f.DateOfIssue},
		{"Revision No", f.RevisionNo},
		{"Date of Revision", f.DateOfRevision},
		{"Due Date of Revision", f.DueDate},
	}
}

// OwnershipRow is row 3 of the header grid.
func (f Fields) OwnershipRow() []Cell {
	return []Cell{
		{"Department", f.Department},
		{"Title", f.Title},
		{"Doc. No", f.DocNumber},
	}
}

// FooterRow is the approval chain and status.
func (f Fields) FooterRow() []Cell {
	return []Cell{
		{"Prepared by", f.PreparedBy},
		{"Approved by", f.ApprovedBy},
		{"Issued by", f.IssuedBy},
		{"Status", f.Status},
	}
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return NotApplicable
	}
	return t.Format(DateLayout)
}
