package core

// commit.go writes validated rows to the registry.
//
// Rows are written strictly in file order, one call per row, in fixed-size
// batches paced by a token bucket. A failed row is recorded and skipped;
// it never stops the batch or the import. Progress is published only at
// batch boundaries.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBatchSize is the number of rows written between pauses.
const DefaultBatchSize = 10

// DefaultBatchPause is the minimum gap between the start of two batches.
const DefaultBatchPause = 250 * time.Millisecond

// UnitWriter persists one unit. Calls must be idempotent by unit code
// within a registry.
type UnitWriter interface {
	CreateOrUpdateUnit(ctx context.Context, registryID string, u Unit) (Unit, error)
}

// CommitProgress is published after each batch.
type CommitProgress struct {
	Processed int
	Total     int
	Succeeded int
	Failed    int
}

// CommitResult is the outcome of a commit run.
type CommitResult struct {
	Succeeded      []Unit       `json:"succeeded"`
	Failed         []RowFailure `json:"failed"`
	TotalAttempted int          `json:"totalAttempted"`
	Cancelled      bool         `json:"cancelled,omitempty"`
}

// Committer writes rows in paced batches.
type Committer struct {
	writer     UnitWriter
	batchSize  int
	pause      time.Duration
	onProgress func(CommitProgress)
	logger     *slog.Logger
}

// NewCommitter creates a committer. Non-positive batchSize uses
// DefaultBatchSize; a non-positive pause disables pacing.
func NewCommitter(w UnitWriter, batchSize int, pause time.Duration) *Committer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Committer{
		writer:    w,
		batchSize: batchSize,
		pause:     pause,
		logger:    slog.Default(),
	}
}

// OnProgress registers a callback invoked at every batch boundary.
func (c *Committer) OnProgress(fn func(CommitProgress)) *Committer {
	c.onProgress = fn
	return c
}

// WithLogger sets the logger used for row failures.
func (c *Committer) WithLogger(l *slog.Logger) *Committer {
	if l != nil {
		c.logger = l
	}
	return c
}

func (c *Committer) limiter() *rate.Limiter {
	if c.pause <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(c.pause), 1)
}

// Commit writes rows in order. When ctx is cancelled the loop stops before
// the next row; rows not reached are neither succeeded nor failed.
func (c *Committer) Commit(ctx context.Context, registryID string, rows []ParsedRow) *CommitResult {
	result := &CommitResult{
		Succeeded: make([]Unit, 0, len(rows)),
	}
	progress := CommitProgress{Total: len(rows)}
	limiter := c.limiter()

	for start := 0; start < len(rows); start += c.batchSize {
		if err := limiter.Wait(ctx); err != nil {
			result.Cancelled = true
			break
		}

		end := min(start+c.batchSize, len(rows))
		for _, row := range rows[start:end] {
			if ctx.Err() != nil {
				result.Cancelled = true
				break
			}

			saved, err := c.commitRow(ctx, registryID, row)
			result.TotalAttempted++
			if err != nil {
				result.Failed = append(result.Failed, RowFailure{
					Row:      row.Number,
					UnitCode: row.Unit.Code,
					Err:      err,
					Message:  err.Error(),
				})
				c.logger.Warn("unit commit failed",
					"row", row.Number,
					"unit_code", row.Unit.Code,
					"error", err,
				)
				continue
			}
			result.Succeeded = append(result.Succeeded, saved)
		}

		if result.TotalAttempted > progress.Processed {
			progress.Processed = result.TotalAttempted
			progress.Succeeded = len(result.Succeeded)
			progress.Failed = len(result.Failed)
			if c.onProgress != nil {
				c.onProgress(progress)
			}
		}

		if result.Cancelled {
			break
		}
	}

	return result
}

// commitRow isolates a single write so a panicking writer only fails its
// own row.
func (c *Committer) commitRow(ctx context.Context, registryID string, row ParsedRow) (saved Unit, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return c.writer.CreateOrUpdateUnit(ctx, registryID, row.Unit)
}
