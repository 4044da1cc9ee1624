package core

import (
	"time"

	"github.com/google/uuid"
)

// fieldIssue is a transform problem attached to one cell.
type fieldIssue struct {
	Field string
	Raw   string
	*Issue
}

// ParsedRow is a data row after header mapping and cell transformation.
type ParsedRow struct {
	Number int               // file row, header is row 1
	Raw    map[string]string // canonical field -> untransformed cell
	Unit   Unit
	issues []fieldIssue
}

// ImportSession carries one import through every stage. Each stage reads
// what the previous one filled in and adds its own result.
type ImportSession struct {
	ID         string
	RegistryID string
	FileName   string
	Options    Options
	StartedAt  time.Time

	RawHeaders []string
	Headers    []string // canonical, same order as RawHeaders
	Rows       []ParsedRow

	Violations []Violation // blocking, from validation
	Warnings   []Violation // soft, never block

	Commit *CommitResult
}

// NewSession starts a session for one file.
func NewSession(registryID, fileName string, opts Options) *ImportSession {
	return &ImportSession{
		ID:         uuid.New().String(),
		RegistryID: registryID,
		FileName:   fileName,
		Options:    opts,
		StartedAt:  time.Now(),
	}
}

// Load maps headers and transforms every row. A file missing any required
// column returns *MissingColumnsError and no rows are transformed.
func (s *ImportSession) Load(table *RawTable) error {
	s.RawHeaders = table.Headers
	s.Headers = NormalizeHeaders(table.Headers)

	idx := MakeHeaderIndex(s.Headers)
	if missing := idx.MissingRequired(); len(missing) > 0 {
		return &MissingColumnsError{Columns: missing, Headers: s.Headers}
	}

	s.Rows = make([]ParsedRow, 0, len(table.Rows))
	for _, raw := range table.Rows {
		s.Rows = append(s.Rows, transformRow(s.RegistryID, idx, raw))
	}
	return nil
}

// Validated reports whether validation ran clean.
func (s *ImportSession) Validated() bool {
	return len(s.Violations) == 0
}

// Units returns the transformed unit of every row in file order.
func (s *ImportSession) Units() []Unit {
	units := make([]Unit, len(s.Rows))
	for i, r := range s.Rows {
		units[i] = r.Unit
	}
	return units
}

func transformRow(registryID string, idx HeaderIndex, raw RawRow) ParsedRow {
	row := ParsedRow{
		Number: raw.Number,
		Raw:    make(map[string]string, len(CanonicalFields)),
	}
	for _, f := range CanonicalFields {
		if _, ok := idx[f]; ok {
			row.Raw[f] = idx.Cell(raw.Cells, f)
		}
	}

	add := func(field string, issue *Issue) {
		if issue != nil {
			row.issues = append(row.issues, fieldIssue{Field: field, Raw: row.Raw[field], Issue: issue})
		}
	}

	u := &row.Unit
	u.RegistryID = registryID
	u.Code = CleanCell(row.Raw[FieldUnitCode])
	u.HolderName = CleanText(row.Raw[FieldHolderName])
	u.Observations = CleanText(row.Raw[FieldObservations])

	if CleanCell(row.Raw[FieldHolderType]) != "" {
		ht, issue := ParseHolderType(row.Raw[FieldHolderType])
		u.HolderType = ht
		add(FieldHolderType, issue)
	}

	usages, issues := ParseUsageTypes(row.Raw[FieldUsageType])
	u.UsageTypes = usages
	for _, issue := range issues {
		add(FieldUsageType, issue)
	}

	share, issue := ParseShare(row.Raw[FieldShare])
	u.OwnershipShare = share
	add(FieldShare, issue)

	roles, issues := ParseRoles(row.Raw[FieldRoles])
	u.CBRRoles = roles
	for _, issue := range issues {
		add(FieldRoles, issue)
	}

	coHolders, soft, issues := ParseCoHolders(row.Raw[FieldCoHolders])
	u.CoHolders = coHolders
	add(FieldCoHolders, soft)
	for _, issue := range issues {
		add(FieldCoHolders, issue)
	}

	contact, soft := ParseContact(row.Raw[FieldContact])
	u.Contact = contact
	add(FieldContact, soft)

	return row
}
