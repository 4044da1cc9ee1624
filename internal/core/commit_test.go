package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"
)

func parsedRows(n int) []ParsedRow {
	rows := make([]ParsedRow, n)
	for i := range rows {
		code := fmt.Sprintf("U-%03d", i+1)
		rows[i] = ParsedRow{
			Number: i + 2,
			Raw:    map[string]string{FieldUnitCode: code},
			Unit:   Unit{Code: code, HolderType: HolderNatural, HolderName: "Ana", UsageTypes: []UsageType{UsageUnit}},
		}
	}
	return rows
}

func TestCommit_WritesInFileOrder(t *testing.T) {
	store := newMemStore()
	rows := parsedRows(25)

	result := NewCommitter(store, 10, 0).Commit(context.Background(), "condo-1", rows)

	if len(result.Succeeded) != 25 || len(result.Failed) != 0 {
		t.Fatalf("succeeded/failed = %d/%d, want 25/0", len(result.Succeeded), len(result.Failed))
	}
	if result.TotalAttempted != 25 {
		t.Errorf("TotalAttempted = %d, want 25", result.TotalAttempted)
	}

	want := make([]string, len(rows))
	for i, r := range rows {
		want[i] = r.Unit.Code
	}
	if got := store.writes(); !slices.Equal(got, want) {
		t.Errorf("write order = %v, want %v", got, want)
	}
}

func TestCommit_FailureIsolatedToItsRow(t *testing.T) {
	store := newMemStore()
	store.failOn["U-004"] = errors.New("violates check constraint")
	rows := parsedRows(6)

	result := NewCommitter(store, 2, 0).Commit(context.Background(), "condo-1", rows)

	if len(result.Failed) != 1 {
		t.Fatalf("failed = %v, want 1", result.Failed)
	}
	f := result.Failed[0]
	if f.Row != 5 || f.UnitCode != "U-004" {
		t.Errorf("failure = %+v, want row 5 U-004", f)
	}
	if len(result.Succeeded) != 5 {
		t.Errorf("succeeded = %d, want 5", len(result.Succeeded))
	}
	// Rows after the failure were still attempted.
	if got := store.writes(); len(got) != 6 {
		t.Errorf("writes = %v, want all 6 attempted", got)
	}
}

func TestCommit_PanicIsolatedToItsRow(t *testing.T) {
	store := newMemStore()
	store.panicOn["U-002"] = true

	result := NewCommitter(store, 10, 0).Commit(context.Background(), "condo-1", parsedRows(3))

	if len(result.Failed) != 1 || result.Failed[0].UnitCode != "U-002" {
		t.Fatalf("failed = %v", result.Failed)
	}
	if len(result.Succeeded) != 2 {
		t.Errorf("succeeded = %d, want 2", len(result.Succeeded))
	}
}

func TestCommit_ProgressAtBatchBoundaries(t *testing.T) {
	store := newMemStore()
	store.failOn["U-003"] = errors.New("boom")

	var seen []CommitProgress
	NewCommitter(store, 4, 0).
		OnProgress(func(p CommitProgress) { seen = append(seen, p) }).
		Commit(context.Background(), "condo-1", parsedRows(10))

	processed := make([]int, len(seen))
	for i, p := range seen {
		processed[i] = p.Processed
		if p.Total != 10 {
			t.Errorf("Total = %d, want 10", p.Total)
		}
		if p.Succeeded+p.Failed != p.Processed {
			t.Errorf("progress %+v does not add up", p)
		}
	}
	if !slices.Equal(processed, []int{4, 8, 10}) {
		t.Errorf("processed = %v, want [4 8 10]", processed)
	}
	if last := seen[len(seen)-1]; last.Failed != 1 {
		t.Errorf("final Failed = %d, want 1", last.Failed)
	}
}

func TestCommit_PacesBatches(t *testing.T) {
	store := newMemStore()
	pause := 30 * time.Millisecond

	start := time.Now()
	NewCommitter(store, 2, pause).Commit(context.Background(), "condo-1", parsedRows(6))
	elapsed := time.Since(start)

	// Three batches: the first starts immediately, the next two wait.
	if elapsed < 3*pause/2 {
		t.Errorf("elapsed = %v, want batches spaced by %v", elapsed, pause)
	}
}

func TestCommit_CancelStopsBeforeNextBatch(t *testing.T) {
	store := newMemStore()
	ctx, cancel := context.WithCancel(context.Background())

	var seen []CommitProgress
	result := NewCommitter(store, 3, 0).
		OnProgress(func(p CommitProgress) {
			seen = append(seen, p)
			cancel()
		}).
		Commit(ctx, "condo-1", parsedRows(9))

	if !result.Cancelled {
		t.Error("Cancelled = false, want true")
	}
	if result.TotalAttempted != 3 {
		t.Errorf("TotalAttempted = %d, want 3", result.TotalAttempted)
	}
	if len(store.writes()) != 3 {
		t.Errorf("writes = %v, want first batch only", store.writes())
	}
	if len(seen) != 1 {
		t.Errorf("progress events = %d, want 1", len(seen))
	}
}

func TestNewCommitter_Defaults(t *testing.T) {
	c := NewCommitter(newMemStore(), 0, -1)
	if c.batchSize != DefaultBatchSize {
		t.Errorf("batchSize = %d, want %d", c.batchSize, DefaultBatchSize)
	}
}
