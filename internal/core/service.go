package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/condoreg/internal/config"
	"github.com/JonMunkholm/condoreg/internal/logging"
	"github.com/JonMunkholm/condoreg/internal/metrics"
)

// ErrNoStore is returned when a commit is requested on a service built
// without a unit store.
var ErrNoStore = errors.New("no unit store configured")

// ServiceOptions tunes the import pipeline. Zero values fall back to the
// package defaults.
type ServiceOptions struct {
	MaxFileSize     int64
	BatchSize       int
	BatchPause      time.Duration
	Timeout         time.Duration
	ResultRetention time.Duration
	MaxConcurrent   int
	MaxWaitTime     time.Duration
}

// DefaultServiceOptions returns the options used when none are given.
func DefaultServiceOptions() ServiceOptions {
	return ServiceOptions{
		MaxFileSize:     20 << 20,
		BatchSize:       DefaultBatchSize,
		BatchPause:      DefaultBatchPause,
		Timeout:         10 * time.Minute,
		ResultRetention: 15 * time.Minute,
		MaxConcurrent:   DefaultMaxConcurrentImports,
		MaxWaitTime:     DefaultMaxWaitTime,
	}
}

// ServiceOptionsFromConfig maps the import configuration onto the
// pipeline options.
func ServiceOptionsFromConfig(c config.ImportConfig) ServiceOptions {
	return ServiceOptions{
		MaxFileSize:     c.MaxFileSize,
		BatchSize:       c.BatchSize,
		BatchPause:      c.BatchPause,
		Timeout:         c.Timeout,
		ResultRetention: c.ResultRetention,
		MaxConcurrent:   c.MaxConcurrent,
		MaxWaitTime:     c.MaxWaitTime,
	}
}

func (o ServiceOptions) withDefaults() ServiceOptions {
	d := DefaultServiceOptions()
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = d.MaxFileSize
	}
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.ResultRetention <= 0 {
		o.ResultRetention = d.ResultRetention
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = d.MaxConcurrent
	}
	if o.MaxWaitTime <= 0 {
		o.MaxWaitTime = d.MaxWaitTime
	}
	return o
}

// Service runs imports against a unit store. Synchronous callers use
// Validate and Import; the web layer uses StartImport and follows progress.
type Service struct {
	store   UnitStore
	history ImportHistory
	metrics *metrics.Metrics
	limiter *ImportLimiter
	opts    ServiceOptions

	mu      sync.RWMutex
	imports map[string]*activeImport
}

type activeImport struct {
	ID         string
	RegistryID string
	FileName   string
	Cancel     context.CancelFunc
	Done       chan struct{}
	Result     *Report
	Err        error

	mu        sync.Mutex
	progress  ImportProgress
	listeners []chan ImportProgress
	closed    bool
}

// NewService creates a Service. A nil store limits the service to dry runs
// without a registry check.
func NewService(store UnitStore, opts ServiceOptions) *Service {
	opts = opts.withDefaults()
	return &Service{
		store:   store,
		opts:    opts,
		limiter: NewImportLimiter(opts.MaxConcurrent, opts.MaxWaitTime),
		imports: make(map[string]*activeImport),
	}
}

// WithHistory records every committed or rejected import in h.
func (s *Service) WithHistory(h ImportHistory) *Service {
	s.history = h
	return s
}

// WithMetrics reports pipeline outcomes to m.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Options returns the effective pipeline options.
func (s *Service) Options() ServiceOptions {
	return s.opts
}

// Validate reads, maps and validates a file without writing anything.
// File-level problems come back as a report with Fatal set; the error is
// reserved for a failed registry lookup.
func (s *Service) Validate(ctx context.Context, registryID, fileName string, r io.Reader, opts Options) (*Report, error) {
	sess := NewSession(registryID, fileName, opts)
	return s.run(ctx, sess, r, true, nil)
}

// Import runs the whole pipeline synchronously. onProgress, if non-nil,
// receives every phase change and batch boundary.
func (s *Service) Import(ctx context.Context, registryID, fileName string, r io.Reader, opts Options, onProgress func(ImportProgress)) (*Report, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	sess := NewSession(registryID, fileName, opts)
	progress := ImportProgress{ImportID: sess.ID, RegistryID: registryID, FileName: fileName}

	var update progressFunc
	if onProgress != nil {
		update = func(phase ImportPhase, cp CommitProgress) {
			progress.apply(phase, cp)
			onProgress(progress)
		}
	}
	return s.run(ctx, sess, r, false, update)
}

// StartImport begins an asynchronous import and returns its ID
// immediately. Use SubscribeProgress to follow it and GetImportResult to
// collect the report.
//
// Returns ErrTooManyImports if no import slot frees up within the
// configured wait time.
func (s *Service) StartImport(ctx context.Context, registryID, fileName string, data []byte, opts Options) (string, error) {
	if s.store == nil {
		return "", ErrNoStore
	}

	// Acquire import slot (blocks until available or timeout)
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	sess := NewSession(registryID, fileName, opts)

	// Detached from the request so the import outlives it, but keeps its
	// values for logging and history.
	importCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)

	imp := &activeImport{
		ID:         sess.ID,
		RegistryID: registryID,
		FileName:   fileName,
		Cancel:     cancel,
		Done:       make(chan struct{}),
		progress: ImportProgress{
			ImportID:   sess.ID,
			RegistryID: registryID,
			FileName:   fileName,
			Phase:      PhaseStarting,
		},
	}

	s.mu.Lock()
	s.imports[imp.ID] = imp
	s.mu.Unlock()

	logger := logging.ForImport(ctx, imp.ID, registryID)

	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in import", "panic", r)
				imp.Err = fmt.Errorf("internal error: %v", r)
				imp.update(func(p *ImportProgress) {
					p.Phase = PhaseFailed
					p.Error = imp.Err.Error()
				})
			}
			imp.closeListeners()
			close(imp.Done)
			s.cleanup(imp.ID, s.opts.ResultRetention)
		}()

		report, err := s.run(importCtx, sess, bytes.NewReader(data), false, func(phase ImportPhase, cp CommitProgress) {
			imp.update(func(p *ImportProgress) { p.apply(phase, cp) })
		})
		imp.Result = report
		imp.Err = err

		imp.update(func(p *ImportProgress) {
			p.Phase = phaseFor(report.Status)
			switch {
			case err != nil:
				p.Error = err.Error()
			case report.Status == StatusCancelled:
				p.Error = "import cancelled"
			case report.Fatal != nil:
				p.Error = report.Fatal.Message
			}
		})
	}()

	return imp.ID, nil
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the import completes.
func (s *Service) SubscribeProgress(importID string) (<-chan ImportProgress, error) {
	imp, err := s.lookup(importID)
	if err != nil {
		return nil, err
	}

	ch := make(chan ImportProgress, 10)

	imp.mu.Lock()
	defer imp.mu.Unlock()

	if imp.closed {
		// Finished: deliver the final state and close.
		ch <- imp.progress
		close(ch)
		return ch, nil
	}

	imp.listeners = append(imp.listeners, ch)
	// Send current progress immediately
	select {
	case ch <- imp.progress:
	default:
	}
	return ch, nil
}

// CancelImport stops an in-progress import at the next row boundary.
// Rows already written stay written.
func (s *Service) CancelImport(importID string) error {
	imp, err := s.lookup(importID)
	if err != nil {
		return err
	}
	imp.Cancel()
	return nil
}

// GetImportResult returns the report of an import, blocking until it
// completes or ctx is done.
func (s *Service) GetImportResult(ctx context.Context, importID string) (*Report, error) {
	imp, err := s.lookup(importID)
	if err != nil {
		return nil, err
	}

	select {
	case <-imp.Done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if imp.Result == nil {
		return nil, imp.Err
	}
	return imp.Result, nil
}

// GetImportProgress returns the current progress without blocking.
func (s *Service) GetImportProgress(importID string) (ImportProgress, error) {
	imp, err := s.lookup(importID)
	if err != nil {
		return ImportProgress{}, err
	}
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.progress, nil
}

// ListImportHistory returns recorded imports for a registry, newest first.
func (s *Service) ListImportHistory(ctx context.Context, registryID string, limit int) ([]ImportRun, error) {
	if s.history == nil {
		return []ImportRun{}, nil
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	runs, err := s.history.ListImports(ctx, registryID, limit)
	if err != nil {
		return nil, fmt.Errorf("list import history: %w", err)
	}
	return runs, nil
}

// GetImportRun returns the history entry of a finished import. It outlives
// the in-memory result kept by GetImportResult.
func (s *Service) GetImportRun(ctx context.Context, importID string) (ImportRun, error) {
	if s.history == nil {
		return ImportRun{}, fmt.Errorf("%w: %s", ErrImportNotFound, importID)
	}
	return s.history.GetImport(ctx, importID)
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until every running import has finished or ctx
// is done. Used during graceful shutdown.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) lookup(importID string) (*activeImport, error) {
	s.mu.RLock()
	imp, ok := s.imports[importID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, importID)
	}
	return imp, nil
}

// cleanup removes the import from tracking after a delay.
func (s *Service) cleanup(importID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.imports, importID)
		s.mu.Unlock()
	})
}

// progressFunc observes phase changes and commit batches.
type progressFunc func(ImportPhase, CommitProgress)

// run executes one pipeline and records its outcome.
func (s *Service) run(ctx context.Context, sess *ImportSession, r io.Reader, dryRun bool, update progressFunc) (report *Report, err error) {
	if update == nil {
		update = func(ImportPhase, CommitProgress) {}
	}
	logger := logging.ForImport(ctx, sess.ID, sess.RegistryID)
	start := time.Now()

	s.metrics.ImportStarted()
	defer func() {
		if report == nil {
			// Panicked before a report existed.
			s.metrics.ImportFinished(string(StatusFailed), 0, 0, start)
			return
		}
		s.metrics.ImportFinished(string(report.Status), report.Accepted, report.Rejected, start)
	}()

	logger.Info("import started", "file", sess.FileName, "dry_run", dryRun, "update_existing", sess.Options.UpdateExisting)

	report, err = s.process(ctx, sess, r, dryRun, update, logger)

	attrs := []any{
		"status", report.Status,
		"total_rows", report.TotalRows,
		"accepted", report.Accepted,
		"rejected", report.Rejected,
		"duration_ms", report.DurationMs,
	}
	switch {
	case err != nil:
		logger.Error("import failed", append(attrs, "error", err)...)
	case report.Fatal != nil:
		logger.Warn("import failed", append(attrs, "error", report.Fatal.Message)...)
	default:
		logger.Info("import finished", attrs...)
	}

	if !dryRun {
		s.recordHistory(ctx, report, logger)
	}
	return report, err
}

func (s *Service) process(ctx context.Context, sess *ImportSession, r io.Reader, dryRun bool, update progressFunc, logger *slog.Logger) (*Report, error) {
	update(PhaseReading, CommitProgress{})
	table, err := ReadTable(r, sess.FileName, s.opts.MaxFileSize)
	if err != nil {
		return NewFatalReport(sess, err), nil
	}

	if err := sess.Load(table); err != nil {
		return NewFatalReport(sess, err), nil
	}

	update(PhaseValidating, CommitProgress{Total: len(sess.Rows)})
	if err := sess.Validate(ctx, s.store); err != nil {
		return NewFatalReport(sess, err), err
	}

	for _, v := range sess.Violations {
		s.metrics.ObserveViolation(string(v.Kind))
	}
	for _, w := range sess.Warnings {
		s.metrics.ObserveViolation(string(w.Kind))
	}

	if !sess.Validated() {
		logger.Info("import rejected by validation", "violations", len(sess.Violations))
		return BuildReport(sess), nil
	}
	if dryRun {
		return BuildReport(sess), nil
	}
	if s.store == nil {
		return NewFatalReport(sess, ErrNoStore), ErrNoStore
	}

	update(PhaseCommitting, CommitProgress{Total: len(sess.Rows)})
	committer := NewCommitter(s.store, s.opts.BatchSize, s.opts.BatchPause).
		WithLogger(logger).
		OnProgress(func(p CommitProgress) { update(PhaseCommitting, p) })
	sess.Commit = committer.Commit(ctx, sess.RegistryID, sess.Rows)

	return BuildReport(sess), nil
}

func (s *Service) recordHistory(ctx context.Context, report *Report, logger *slog.Logger) {
	if s.history == nil {
		return
	}
	// The import context may already be cancelled or timed out.
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.history.RecordImport(hctx, NewImportRun(ctx, report)); err != nil {
		logger.Warn("failed to record import history", "error", err)
	}
}

// phaseFor maps a report status to the terminal progress phase.
func phaseFor(status ReportStatus) ImportPhase {
	switch status {
	case StatusRejected:
		return PhaseRejected
	case StatusFailed:
		return PhaseFailed
	case StatusCancelled:
		return PhaseCancelled
	default:
		return PhaseComplete
	}
}

func (p *ImportProgress) apply(phase ImportPhase, cp CommitProgress) {
	p.Phase = phase
	if cp.Total > 0 {
		p.Total = cp.Total
	}
	p.Processed = cp.Processed
	p.Succeeded = cp.Succeeded
	p.Failed = cp.Failed
}

// update mutates the progress under lock and notifies listeners.
func (imp *activeImport) update(fn func(*ImportProgress)) {
	imp.mu.Lock()
	defer imp.mu.Unlock()

	fn(&imp.progress)
	for _, ch := range imp.listeners {
		select {
		case ch <- imp.progress:
		default:
			// Listener is slow, skip this update
		}
	}
}

// closeListeners closes all listener channels.
func (imp *activeImport) closeListeners() {
	imp.mu.Lock()
	defer imp.mu.Unlock()

	for _, ch := range imp.listeners {
		close(ch)
	}
	imp.listeners = nil
	imp.closed = true
}
