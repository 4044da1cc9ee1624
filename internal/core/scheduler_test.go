package core

import (
	"context"
	"testing"
	"time"
)

func TestPruneHistory_DeletesOldEntries(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	store.runs = []ImportRun{
		{ID: "old", RegistryID: "condo-1", CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "new", RegistryID: "condo-1", CreatedAt: now.Add(-time.Hour)},
	}
	svc := newTestService(store)

	if n := svc.pruneHistory(context.Background(), store, 24*time.Hour); n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
	if len(store.runs) != 1 || store.runs[0].ID != "new" {
		t.Errorf("runs = %+v, want only the recent entry", store.runs)
	}
}

func TestStartHistoryPruner_StopsOnCancel(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartHistoryPruner(ctx, PruneConfig{Retention: time.Hour, CheckInterval: 10 * time.Millisecond})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pruner did not stop after cancel")
	}
}

func TestStartHistoryPruner_NoHistoryReturns(t *testing.T) {
	svc := NewService(newMemStore(), ServiceOptions{})

	done := make(chan struct{})
	go func() {
		svc.StartHistoryPruner(context.Background(), PruneConfig{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pruner without history should return immediately")
	}
}

func TestGetImportRun(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	store.runs = []ImportRun{{ID: "abc", RegistryID: "condo-1", Status: StatusCommitted}}

	run, err := svc.GetImportRun(context.Background(), "abc")
	if err != nil || run.Status != StatusCommitted {
		t.Errorf("GetImportRun = %+v, %v", run, err)
	}
}
