package core

import (
	"context"
	"errors"
	"testing"
)

func committedSession(t *testing.T, store *memStore, rows ...[]string) *ImportSession {
	t.Helper()
	s := loadSession(t, csvFile(t, testHeaders, rows...), Options{})
	if err := s.Validate(context.Background(), nil); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !s.Validated() {
		t.Fatalf("unexpected violations: %v", s.Violations)
	}
	s.Commit = NewCommitter(store, 10, 0).Commit(context.Background(), s.RegistryID, s.Rows)
	return s
}

func TestBuildReport_DryRun(t *testing.T) {
	s := loadSession(t, csvFile(t, testHeaders, validRow("A-1"), validRow("A-2")), Options{})
	if err := s.Validate(context.Background(), nil); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	r := BuildReport(s)
	if r.Status != StatusValidated {
		t.Errorf("Status = %s, want validated", r.Status)
	}
	if r.TotalRows != 2 || r.Accepted != 2 || r.Rejected != 0 {
		t.Errorf("counts = %d/%d/%d, want 2/2/0", r.TotalRows, r.Accepted, r.Rejected)
	}
	if r.HasErrors() {
		t.Error("HasErrors() = true for a clean dry run")
	}
}

func TestBuildReport_RejectedEchoesOffendingCells(t *testing.T) {
	s := loadSession(t, csvFile(t, testHeaders,
		[]string{"A-1", "Alien", "Ana", "Unit", "150", "", ""},
		validRow("A-2"),
	), Options{})
	if err := s.Validate(context.Background(), nil); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	r := BuildReport(s)
	if r.Status != StatusRejected {
		t.Fatalf("Status = %s, want rejected", r.Status)
	}
	if r.Accepted != 0 || r.Rejected != 2 {
		t.Errorf("Accepted/Rejected = %d/%d, want 0/2", r.Accepted, r.Rejected)
	}
	if len(r.ErrorsByRow) != 1 {
		t.Fatalf("ErrorsByRow = %+v, want 1 row", r.ErrorsByRow)
	}

	row := r.ErrorsByRow[0]
	if row.Row != 2 || row.UnitCode != "A-1" || len(row.Errors) != 2 {
		t.Errorf("row = %+v", row)
	}
	if row.Raw[FieldHolderType] != "Alien" || row.Raw[FieldShare] != "150" {
		t.Errorf("Raw = %v, want offending cells", row.Raw)
	}
	if _, ok := row.Raw[FieldHolderName]; ok {
		t.Error("Raw should only echo fields with errors")
	}
	if r.ErrorsByField[FieldHolderType] != 1 || r.ErrorsByField[FieldShare] != 1 {
		t.Errorf("ErrorsByField = %v", r.ErrorsByField)
	}
	if len(row.Messages()) != 2 {
		t.Errorf("Messages() = %v", row.Messages())
	}
}

func TestBuildReport_CommitOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		failOn     []string
		wantStatus ReportStatus
		wantOK     int
	}{
		{"all written", nil, StatusCommitted, 3},
		{"one failed", []string{"A-2"}, StatusPartial, 2},
		{"all failed", []string{"A-1", "A-2", "A-3"}, StatusFailed, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			for _, code := range tt.failOn {
				store.failOn[code] = errors.New("connection reset by peer")
			}
			s := committedSession(t, store, validRow("A-1"), validRow("A-2"), validRow("A-3"))

			r := BuildReport(s)
			if r.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", r.Status, tt.wantStatus)
			}
			if r.Accepted != tt.wantOK || len(r.Units) != tt.wantOK {
				t.Errorf("Accepted = %d, Units = %d, want %d", r.Accepted, len(r.Units), tt.wantOK)
			}
			if r.Rejected != 3-tt.wantOK {
				t.Errorf("Rejected = %d, want %d", r.Rejected, 3-tt.wantOK)
			}
			if r.ErrorsByField[FieldRecord] != len(tt.failOn) {
				t.Errorf("ErrorsByField[record] = %d, want %d", r.ErrorsByField[FieldRecord], len(tt.failOn))
			}
		})
	}
}

func TestBuildReport_PersistenceFailureEchoesWholeRow(t *testing.T) {
	store := newMemStore()
	store.failOn["A-2"] = errors.New("deadlock detected")
	s := committedSession(t, store, validRow("A-1"), validRow("A-2"))

	r := BuildReport(s)
	if len(r.ErrorsByRow) != 1 {
		t.Fatalf("ErrorsByRow = %+v", r.ErrorsByRow)
	}
	row := r.ErrorsByRow[0]
	if row.Row != 3 || row.Errors[0].Kind != KindPersistenceFailure {
		t.Errorf("row = %+v", row)
	}
	if row.Raw[FieldHolderName] != "Ana Pérez" || row.Raw[FieldUnitCode] != "A-2" {
		t.Errorf("Raw = %v, want the whole row", row.Raw)
	}
}

func TestBuildReport_Cancelled(t *testing.T) {
	s := loadSession(t, csvFile(t, testHeaders, validRow("A-1"), validRow("A-2"), validRow("A-3")), Options{})
	s.Commit = &CommitResult{
		Succeeded:      []Unit{s.Rows[0].Unit},
		TotalAttempted: 1,
		Cancelled:      true,
	}

	r := BuildReport(s)
	if r.Status != StatusCancelled {
		t.Errorf("Status = %s, want cancelled", r.Status)
	}
	if r.NotAttempted != 2 || r.Accepted != 1 || r.Rejected != 2 {
		t.Errorf("NotAttempted/Accepted/Rejected = %d/%d/%d, want 2/1/2", r.NotAttempted, r.Accepted, r.Rejected)
	}
}

func TestNewFatalReport(t *testing.T) {
	s := NewSession("condo-1", "units.csv", Options{})
	r := NewFatalReport(s, ErrNoDataRows)

	if r.Status != StatusFailed || r.Fatal == nil {
		t.Fatalf("report = %+v", r)
	}
	if r.Fatal.Message != ErrNoDataRows.Error() || r.Fatal.Kind != "" {
		t.Errorf("Fatal = %+v", r.Fatal)
	}
	if !r.HasErrors() {
		t.Error("HasErrors() = false for a fatal report")
	}
}
