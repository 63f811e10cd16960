// Package masthead builds the regulated header and footer of a controlled
// document. Both renderers draw the same Fields, so document number,
// revision, dates and roles never differ between primary and fallback output.
//
//	f := masthead.Resolve(meta, cc, time.Now())
//	header := masthead.HeaderHTML(f)   // Chrome header template
//	lines := masthead.HeaderLines(f, "1", "{nb}") // compositor rows
package masthead

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidMetadata is returned by Validate for unusable metadata.
var ErrInvalidMetadata = errors.New("masthead: invalid metadata")

// Status is a workflow state of the document. Rendered upper-cased.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusIssued      Status = "issued"
)

var knownStatuses = map[Status]bool{
	StatusDraft:       true,
	StatusPending:     true,
	StatusUnderReview: true,
	StatusApproved:    true,
	StatusRejected:    true,
	StatusIssued:      true,
}

// Metadata describes the document being rendered. It is read-only input;
// the pipeline never stores or mutates it.
type Metadata struct {
	DocName    string `json:"doc_name" yaml:"doc_name"`
	DocNumber  string `json:"doc_number" yaml:"doc_number"`
	IssueNo    string `json:"issue_no,omitempty" yaml:"issue_no"`
	RevisionNo int    `json:"revision_no" yaml:"revision_no"`

	DateOfIssue    *time.Time `json:"date_of_issue,omitempty" yaml:"date_of_issue"`
	DateOfRevision *time.Time `json:"date_of_revision,omitempty" yaml:"date_of_revision"`
	ReviewDueDate  *time.Time `json:"review_due_date,omitempty" yaml:"review_due_date"`

	Status      Status `json:"status" yaml:"status"`
	CompanyName string `json:"company_name,omitempty" yaml:"company_name"`

	PreparerName string `json:"preparer_name,omitempty" yaml:"preparer_name"`
	ApproverName string `json:"approver_name,omitempty" yaml:"approver_name"`
	IssuerName   string `json:"issuer_name,omitempty" yaml:"issuer_name"`

	DepartmentNames []string `json:"department_names,omitempty" yaml:"department_names"`

	// Supplementary markup blocks, appended after the body when present.
	HeaderInfo string `json:"header_info,omitempty" yaml:"header_info"`
	FooterInfo string `json:"footer_info,omitempty" yaml:"footer_info"`
	Content    string `json:"content,omitempty" yaml:"content"`

	// ReasonForRevision is part of the record but never rendered.
	ReasonForRevision string `json:"reason_for_revision,omitempty" yaml:"reason_for_revision"`
}

// Validate checks required fields and the status value.
func (m *Metadata) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil metadata", ErrInvalidMetadata)
	}
	if strings.TrimSpace(m.DocName) == "" {
		return fmt.Errorf("%w: doc_name is required", ErrInvalidMetadata)
	}
	if strings.TrimSpace(m.DocNumber) == "" {
		return fmt.Errorf("%w: doc_number is required", ErrInvalidMetadata)
	}
	if m.RevisionNo < 0 {
		return fmt.Errorf("%w: revision_no must be >= 0, got %d", ErrInvalidMetadata, m.RevisionNo)
	}
	if m.Status != "" && !knownStatuses[Status(strings.ToLower(string(m.Status)))] {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidMetadata, m.Status)
	}
	return nil
}

// ControlCopy identifies the recipient of a controlled copy. When present,
// every page of the output carries a CONTROLLED COPY stamp naming them.
type ControlCopy struct {
	UserID            string    `json:"user_id,omitempty" yaml:"user_id"`
	UserFullName      string    `json:"user_full_name" yaml:"user_full_name"`
	ControlCopyNumber string    `json:"control_copy_number,omitempty" yaml:"control_copy_number"`
	Date              time.Time `json:"date,omitempty" yaml:"date"`
}

// Validate checks that the copy names a recipient: a controlled copy that
// names nobody cannot be traced.
func (c *ControlCopy) Validate() error {
	if c == nil {
		return nil
	}
	if strings.TrimSpace(c.UserFullName) == "" {
		return fmt.Errorf("%w: control_copy.user_full_name is required", ErrInvalidMetadata)
	}
	return nil
}
