package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/JonMunkholm/condoreg/internal/config"
	"github.com/JonMunkholm/condoreg/internal/core"
)

// memStore is an in-memory registry.
type memStore struct {
	mu    sync.Mutex
	units map[string]core.Unit
}

func (m *memStore) ExistingCodes(ctx context.Context, registryID string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]struct{}{}
	for code := range m.units {
		out[code] = struct{}{}
	}
	return out, nil
}

func (m *memStore) CreateOrUpdateUnit(ctx context.Context, registryID string, u core.Unit) (core.Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[core.NormalizeCode(u.Code)] = u
	return u, nil
}

// opener returns a ServiceOpener backed by store, or by nothing when store is nil.
func opener(store *memStore) ServiceOpener {
	return func(ctx context.Context, cfg *config.Config, requireStore bool) (*core.Service, func(), error) {
		opts := core.ServiceOptions{BatchSize: 2}
		if store == nil {
			if requireStore {
				return nil, nil, errNoDatabase
			}
			return core.NewService(nil, opts), func() {}, nil
		}
		return core.NewService(store, opts), func() {}, nil
	}
}

// run executes unitctl with args and returns stdout, stderr and the error.
func run(t *testing.T, open ServiceOpener, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")

	var stdout, stderr bytes.Buffer
	root := newRootCmd(open)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

var headers = []string{"Código Unidad", "Tipo Titular", "Titular", "Uso", "Prorrateo", "Co-titulares", "Contacto"}

func row(code string) []string {
	return []string{code, "NaturalPerson", "Ana Pérez", "Unit", "2.5", "", ""}
}

func writeCSV(t *testing.T, rows ...[]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "units.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(append([][]string{headers}, rows...)); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

// =============================================================================
// template
// =============================================================================

func TestTemplate_CSVToStdout(t *testing.T) {
	var want bytes.Buffer
	if err := core.WriteTemplateCSV(&want); err != nil {
		t.Fatal(err)
	}

	out, _, err := run(t, opener(nil), "template")
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	if out != want.String() {
		t.Errorf("stdout differs from WriteTemplateCSV:\n%s", out)
	}
}

func TestTemplate_XLSXToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.xlsx")

	if _, _, err := run(t, opener(nil), "template", "--format", "xlsx", "-o", path); err != nil {
		t.Fatalf("template: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Error("output is not a zip archive")
	}
}

func TestTemplate_UnknownFormat(t *testing.T) {
	_, _, err := run(t, opener(nil), "template", "--format", "ods")
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("err = %v, want unknown format", err)
	}
}

// =============================================================================
// validate
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		rows     [][]string
		wantErr  bool
		wantText []string
	}{
		{"clean file", [][]string{row("A-101"), row("A-102")}, false, []string{"VALIDATED", "accepted: 2"}},
		{"duplicates", [][]string{row("A-101"), row("A-102"), row("A-101")}, true, []string{"REJECTED", "accepted: 0", "rejected: 3", "A-101"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, opener(nil), "validate", writeCSV(t, tt.rows...))
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errImportFailed) {
				t.Errorf("err = %v, want errImportFailed", err)
			}
			for _, want := range tt.wantText {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestValidate_RegistryCollision(t *testing.T) {
	store := &memStore{units: map[string]core.Unit{"A-101": {Code: "A-101"}}}

	out, _, err := run(t, opener(store), "validate", "--registry", "condo-1", writeCSV(t, row("A-101")))
	if !errors.Is(err, errImportFailed) {
		t.Fatalf("err = %v, want errImportFailed", err)
	}
	if !strings.Contains(out, "REJECTED") {
		t.Errorf("output:\n%s", out)
	}
	if len(store.units) != 1 {
		t.Errorf("validate wrote to the store")
	}
}

func TestValidate_MissingFile(t *testing.T) {
	_, _, err := run(t, opener(nil), "validate", filepath.Join(t.TempDir(), "nope.csv"))
	if err == nil || !strings.Contains(err.Error(), "open") {
		t.Errorf("err = %v, want open error", err)
	}
}

// =============================================================================
// import
// =============================================================================

func TestImport_Commits(t *testing.T) {
	store := &memStore{units: map[string]core.Unit{}}

	out, errOut, err := run(t, opener(store), "import", "--registry", "condo-1", writeCSV(t, row("A-1"), row("A-2"), row("A-3")))
	if err != nil {
		t.Fatalf("import: %v\n%s", err, errOut)
	}
	if !strings.Contains(out, "COMMITTED") {
		t.Errorf("output:\n%s", out)
	}
	if !strings.Contains(errOut, "committing...") || !strings.Contains(errOut, "3/3 rows (100%)") {
		t.Errorf("progress output:\n%s", errOut)
	}
	if len(store.units) != 3 {
		t.Errorf("store has %d units, want 3", len(store.units))
	}
}

func TestImport_JSON(t *testing.T) {
	store := &memStore{units: map[string]core.Unit{}}

	out, _, err := run(t, opener(store), "import", "-r", "condo-1", "--json", writeCSV(t, row("A-1")))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	var report struct {
		Status   string `json:"status"`
		Accepted int    `json:"accepted"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if report.Status != "committed" || report.Accepted != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestImport_RequiresRegistryAndDatabase(t *testing.T) {
	path := writeCSV(t, row("A-1"))

	if _, _, err := run(t, opener(nil), "import", path); err == nil || !strings.Contains(err.Error(), "--registry") {
		t.Errorf("without registry: err = %v", err)
	}
	if _, _, err := run(t, opener(nil), "import", "-r", "condo-1", path); !errors.Is(err, errNoDatabase) {
		t.Errorf("without database: err = %v, want errNoDatabase", err)
	}
}

func TestOpenPostgres_WithoutDatabase(t *testing.T) {
	cfg := &config.Config{}

	svc, closeFn, err := openPostgres(context.Background(), cfg, false)
	if err != nil || svc == nil {
		t.Fatalf("openPostgres = %v, %v", svc, err)
	}
	closeFn()

	if _, _, err := openPostgres(context.Background(), cfg, true); !errors.Is(err, errNoDatabase) {
		t.Errorf("err = %v, want errNoDatabase", err)
	}
}
