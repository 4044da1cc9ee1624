package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory UnitStore and ImportHistory for tests.
type memStore struct {
	mu       sync.Mutex
	units    map[string]Unit // keyed by NormalizeCode
	calls    []string        // codes in write order
	failOn   map[string]error
	panicOn  map[string]bool
	blockOn  string        // code whose write waits for release
	entered  chan struct{} // closed when the blockOn write starts
	release  chan struct{} // closed to unblock blockOn
	runs     []ImportRun
	existing map[string]struct{}
}

func newMemStore() *memStore {
	return &memStore{
		units:    make(map[string]Unit),
		failOn:   make(map[string]error),
		panicOn:  make(map[string]bool),
		existing: make(map[string]struct{}),
	}
}

func (m *memStore) ExistingCodes(ctx context.Context, registryID string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{}, len(m.existing)+len(m.units))
	for c := range m.existing {
		out[c] = struct{}{}
	}
	for c := range m.units {
		out[c] = struct{}{}
	}
	return out, nil
}

func (m *memStore) CreateOrUpdateUnit(ctx context.Context, registryID string, u Unit) (Unit, error) {
	if u.Code == m.blockOn && m.release != nil {
		if m.entered != nil {
			close(m.entered)
		}
		select {
		case <-m.release:
		case <-ctx.Done():
			return Unit{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, u.Code)
	if m.panicOn[u.Code] {
		panic("writer exploded")
	}
	if err := m.failOn[u.Code]; err != nil {
		return Unit{}, err
	}

	key := NormalizeCode(u.Code)
	if prev, ok := m.units[key]; ok {
		u.ID = prev.ID
	} else {
		u.ID = uuid.New()
	}
	u.RegistryID = registryID
	m.units[key] = u
	return u, nil
}

func (m *memStore) RecordImport(ctx context.Context, run ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *memStore) ListImports(ctx context.Context, registryID string, limit int) ([]ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ImportRun
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.runs[i].RegistryID == registryID {
			out = append(out, m.runs[i])
		}
	}
	return out, nil
}

// block makes the write of code wait until the returned release func is
// called or the import context ends. The returned channel closes when the
// write starts.
func (m *memStore) block(code string) (entered <-chan struct{}, release func()) {
	m.blockOn = code
	m.entered = make(chan struct{})
	m.release = make(chan struct{})
	var once sync.Once
	return m.entered, func() { once.Do(func() { close(m.release) }) }
}

func (m *memStore) writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *memStore) GetImport(ctx context.Context, importID string) (ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == importID {
			return r, nil
		}
	}
	return ImportRun{}, fmt.Errorf("%w: %s", ErrImportNotFound, importID)
}

func (m *memStore) PurgeImports(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.runs[:0]
	var n int64
	for _, r := range m.runs {
		if r.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.runs = kept
	return n, nil
}
