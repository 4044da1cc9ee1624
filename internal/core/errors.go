package core

// errors.go defines the closed set of failures an import can produce.
//
// Kinds split into three groups:
//   - Fatal to the whole file before any row is looked at (MissingRequiredColumn)
//   - Row-level and blocking: any one of these rejects the entire import
//   - Non-blocking: MalformedStructuredField (soft) and PersistenceFailure,
//     which only ever affects its own row after the validation gate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrorKind tags a violation or failure with its category.
type ErrorKind string

const (
	KindMissingRequiredColumn    ErrorKind = "MissingRequiredColumn"
	KindMissingValue             ErrorKind = "MissingValue"
	KindInvalidNumber            ErrorKind = "InvalidNumber"
	KindInvalidEnumValue         ErrorKind = "InvalidEnumValue"
	KindOutOfRangeValue          ErrorKind = "OutOfRangeValue"
	KindPrecisionOverflow        ErrorKind = "PrecisionOverflow"
	KindShareSumMismatch         ErrorKind = "ShareSumMismatch"
	KindDuplicateCode            ErrorKind = "DuplicateCode"
	KindMalformedStructuredField ErrorKind = "MalformedStructuredField"
	KindPersistenceFailure       ErrorKind = "PersistenceFailure"
)

// Blocking reports whether a violation of this kind rejects the import.
func (k ErrorKind) Blocking() bool {
	switch k {
	case KindMalformedStructuredField, KindPersistenceFailure:
		return false
	default:
		return true
	}
}

var (
	// ErrTooManyImports is returned when all import slots are occupied and
	// the wait timeout expires.
	ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

	// ErrImportNotFound is returned for unknown or expired import IDs.
	ErrImportNotFound = errors.New("import not found")

	// ErrEmptyFile is returned when the file has no header row.
	ErrEmptyFile = errors.New("empty file")

	// ErrNoDataRows is returned when the file has a header but no data.
	ErrNoDataRows = errors.New("no data rows after header")

	// ErrFileTooLarge is returned when the file exceeds the configured limit.
	ErrFileTooLarge = errors.New("file too large")
)

// Violation is a single problem found in a row during validation.
type Violation struct {
	Row         int       `json:"row"` // 1-indexed, header is row 1
	UnitCode    string    `json:"unitCode"`
	Field       string    `json:"field"`
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	RawValue    string    `json:"rawValue,omitempty"`
	RelatedRows []int     `json:"relatedRows,omitempty"`
}

func (v Violation) Error() string {
	var b strings.Builder
	b.WriteString("row ")
	b.WriteString(strconv.Itoa(v.Row))
	if v.Field != "" {
		b.WriteString(" ")
		b.WriteString(v.Field)
	}
	b.WriteString(": ")
	b.WriteString(v.Message)
	return b.String()
}

// MissingColumnsError is returned when required canonical headers are absent.
type MissingColumnsError struct {
	Columns []string // canonical names that were not found
	Headers []string // canonical headers that were found
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required column(s): %s", strings.Join(e.Columns, ", "))
}

// Kind returns KindMissingRequiredColumn.
func (e *MissingColumnsError) Kind() ErrorKind {
	return KindMissingRequiredColumn
}

// RowFailure records a row whose persistence call failed after validation.
type RowFailure struct {
	Row      int    `json:"row"`
	UnitCode string `json:"unitCode"`
	Err      error  `json:"-"`
	Message  string `json:"error"`
}

func (f RowFailure) Error() string {
	return fmt.Sprintf("row %d (%s): %s", f.Row, f.UnitCode, f.Message)
}

func (f RowFailure) Unwrap() error {
	return f.Err
}

// Kind returns KindPersistenceFailure.
func (f RowFailure) Kind() ErrorKind {
	return KindPersistenceFailure
}
