package core

// report.go folds validation violations or commit failures into the single
// result handed back to the caller. Raw cell values are echoed as they
// appeared in the file so the source can be corrected directly.

import (
	"errors"
	"slices"
	"time"
)

// ReportStatus is the final outcome of an import.
type ReportStatus string

const (
	StatusValidated ReportStatus = "validated" // dry run, no violations
	StatusRejected  ReportStatus = "rejected"  // violations, nothing written
	StatusCommitted ReportStatus = "committed" // every row written
	StatusPartial   ReportStatus = "partial"   // some rows failed to write
	StatusFailed    ReportStatus = "failed"    // file unusable or no row written
	StatusCancelled ReportStatus = "cancelled" // stopped during commit
)

// FieldError is one problem on one field of a row.
type FieldError struct {
	Field       string    `json:"field"`
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	RelatedRows []int     `json:"relatedRows,omitempty"`
}

// RowErrors groups every problem found on one row.
type RowErrors struct {
	Row      int               `json:"row"`
	UnitCode string            `json:"unitCode"`
	Errors   []FieldError      `json:"errors"`
	Raw      map[string]string `json:"raw,omitempty"`
}

// Messages returns the row's error messages in order.
func (r RowErrors) Messages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Message
	}
	return out
}

// FatalError describes a file-level failure that stopped the import
// before any row was validated.
type FatalError struct {
	Kind    ErrorKind `json:"kind,omitempty"`
	Message string    `json:"message"`
	Columns []string  `json:"columns,omitempty"`
}

// Report is the result of an import or a dry run.
type Report struct {
	ImportID   string       `json:"importId"`
	RegistryID string       `json:"registryId"`
	FileName   string       `json:"fileName"`
	Status     ReportStatus `json:"status"`

	TotalRows    int `json:"totalRows"`
	Accepted     int `json:"accepted"`
	Rejected     int `json:"rejected"`
	NotAttempted int `json:"notAttempted,omitempty"`

	ErrorsByRow   []RowErrors    `json:"errorsByRow"`
	ErrorsByField map[string]int `json:"errorsByField"`
	Warnings      []Violation    `json:"warnings,omitempty"`
	Units         []Unit         `json:"units,omitempty"`
	Fatal         *FatalError    `json:"fatal,omitempty"`

	DurationMs int64 `json:"durationMs"`
}

// HasErrors reports whether any row or the file itself had a problem.
func (r *Report) HasErrors() bool {
	return r.Fatal != nil || len(r.ErrorsByRow) > 0
}

func newReport(s *ImportSession) *Report {
	return &Report{
		ImportID:      s.ID,
		RegistryID:    s.RegistryID,
		FileName:      s.FileName,
		TotalRows:     len(s.Rows),
		ErrorsByRow:   []RowErrors{},
		ErrorsByField: map[string]int{},
		Warnings:      s.Warnings,
		DurationMs:    time.Since(s.StartedAt).Milliseconds(),
	}
}

// BuildReport summarizes a session after validation and, if it ran, commit.
func BuildReport(s *ImportSession) *Report {
	r := newReport(s)

	switch {
	case len(s.Violations) > 0:
		r.Status = StatusRejected
		r.addViolations(s)

	case s.Commit == nil:
		r.Status = StatusValidated
		r.Accepted = r.TotalRows

	default:
		c := s.Commit
		r.Units = c.Succeeded
		r.Accepted = len(c.Succeeded)
		r.NotAttempted = r.TotalRows - c.TotalAttempted
		r.addFailures(s)

		switch {
		case c.Cancelled:
			r.Status = StatusCancelled
		case len(c.Failed) == 0:
			r.Status = StatusCommitted
		case len(c.Succeeded) == 0:
			r.Status = StatusFailed
		default:
			r.Status = StatusPartial
		}
	}

	r.Rejected = r.TotalRows - r.Accepted
	return r
}

// NewFatalReport reports a file that could not be read or mapped.
func NewFatalReport(s *ImportSession, err error) *Report {
	r := newReport(s)
	r.Status = StatusFailed
	r.Rejected = r.TotalRows
	r.Fatal = &FatalError{Message: err.Error()}

	var missing *MissingColumnsError
	if errors.As(err, &missing) {
		r.Fatal.Kind = missing.Kind()
		r.Fatal.Columns = missing.Columns
	}
	return r
}

func (r *Report) addViolations(s *ImportSession) {
	byRow := make(map[int]*RowErrors)
	rawByRow := make(map[int]map[string]string, len(s.Rows))
	for _, row := range s.Rows {
		rawByRow[row.Number] = row.Raw
	}

	var order []int
	for _, v := range s.Violations {
		re, ok := byRow[v.Row]
		if !ok {
			re = &RowErrors{Row: v.Row, UnitCode: v.UnitCode, Raw: map[string]string{}}
			byRow[v.Row] = re
			order = append(order, v.Row)
		}
		re.Errors = append(re.Errors, FieldError{
			Field:       v.Field,
			Kind:        v.Kind,
			Message:     v.Message,
			RelatedRows: v.RelatedRows,
		})
		if raw, ok := rawByRow[v.Row][v.Field]; ok {
			re.Raw[v.Field] = raw
		}
		r.ErrorsByField[v.Field]++
	}

	slices.Sort(order)
	for _, n := range order {
		r.ErrorsByRow = append(r.ErrorsByRow, *byRow[n])
	}
}

func (r *Report) addFailures(s *ImportSession) {
	rawByRow := make(map[int]map[string]string, len(s.Rows))
	for _, row := range s.Rows {
		rawByRow[row.Number] = row.Raw
	}

	for _, f := range s.Commit.Failed {
		r.ErrorsByRow = append(r.ErrorsByRow, RowErrors{
			Row:      f.Row,
			UnitCode: f.UnitCode,
			Errors: []FieldError{{
				Field:   FieldRecord,
				Kind:    KindPersistenceFailure,
				Message: f.Message,
			}},
			Raw: rawByRow[f.Row],
		})
		r.ErrorsByField[FieldRecord]++
	}
}
