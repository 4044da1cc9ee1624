package core

import (
	"context"
	"time"
)

// UnitStore is the registry the importer reads codes from and writes
// units to.
type UnitStore interface {
	CodeLookup
	UnitWriter
}

// ImportHistory records finished imports.
type ImportHistory interface {
	RecordImport(ctx context.Context, run ImportRun) error
	ListImports(ctx context.Context, registryID string, limit int) ([]ImportRun, error)
	GetImport(ctx context.Context, importID string) (ImportRun, error)
}

// HistoryPurger deletes old history entries.
type HistoryPurger interface {
	PurgeImports(ctx context.Context, cutoff time.Time) (int64, error)
}

// DefaultHistoryLimit caps history listings when no limit is given.
const DefaultHistoryLimit = 50

// NewImportRun summarizes a report for the history.
func NewImportRun(ctx context.Context, r *Report) ImportRun {
	return ImportRun{
		ID:         r.ImportID,
		RegistryID: r.RegistryID,
		FileName:   r.FileName,
		Status:     r.Status,
		TotalRows:  r.TotalRows,
		Accepted:   r.Accepted,
		Rejected:   r.Rejected,
		DurationMs: r.DurationMs,
		IPAddress:  GetIPAddressFromContext(ctx),
		UserAgent:  GetUserAgentFromContext(ctx),
	}
}
