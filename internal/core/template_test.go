package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"maps"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestTemplate_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		write    func(*bytes.Buffer) error
	}{
		{"csv", "plantilla.csv", func(b *bytes.Buffer) error { return WriteTemplateCSV(b) }},
		{"xlsx", "plantilla.xlsx", func(b *bytes.Buffer) error { return WriteTemplateXLSX(b) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.write(&buf); err != nil {
				t.Fatalf("write template: %v", err)
			}

			table, err := ReadTable(&buf, tt.fileName, 0)
			if err != nil {
				t.Fatalf("ReadTable: %v", err)
			}

			s := NewSession("condo-1", tt.fileName, Options{})
			if err := s.Load(table); err != nil {
				t.Fatalf("Load: %v", err)
			}
			if err := s.Validate(context.Background(), nil); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if len(s.Violations) != 0 || len(s.Warnings) != 0 {
				t.Fatalf("template produced violations %v, warnings %v", s.Violations, s.Warnings)
			}

			examples := ExampleUnits()
			if len(s.Rows) != len(examples) {
				t.Fatalf("rows = %d, want %d", len(s.Rows), len(examples))
			}
			for i, want := range examples {
				got := FormatUnit(s.Rows[i].Unit)
				if !maps.Equal(got, FormatUnit(want)) {
					t.Errorf("row %d:\n got  %v\n want %v", i+2, got, FormatUnit(want))
				}
			}
		})
	}
}

func TestFormatUnit_RoundTripKeepsQuotedText(t *testing.T) {
	u := ExampleUnits()[0]
	u.HolderName = `Comunidad "El Roble"`
	u.Observations = `'Piso 3' con terraza`

	header := make([]string, len(CanonicalFields))
	record := make([]string, len(CanonicalFields))
	cells := FormatUnit(u)
	for i, f := range CanonicalFields {
		header[i] = TemplateHeaders[f]
		record[i] = cells[f]
	}

	var buf bytes.Buffer
	if err := csv.NewWriter(&buf).WriteAll([][]string{header, record}); err != nil {
		t.Fatal(err)
	}

	table, err := ReadTable(&buf, "export.csv", 0)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	s := NewSession("condo-1", "export.csv", Options{})
	if err := s.Load(table); err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := s.Rows[0].Unit
	if got.HolderName != u.HolderName {
		t.Errorf("HolderName = %q, want %q", got.HolderName, u.HolderName)
	}
	if got.Observations != u.Observations {
		t.Errorf("Observations = %q, want %q", got.Observations, u.Observations)
	}
}

func TestTemplate_HeadersMapToCanonicalFields(t *testing.T) {
	for _, field := range CanonicalFields {
		label, ok := TemplateHeaders[field]
		if !ok {
			t.Errorf("no template header for %s", field)
			continue
		}
		if got := CanonicalHeader(label); got != field {
			t.Errorf("CanonicalHeader(%q) = %q, want %q", label, got, field)
		}
	}
}

func TestWriteTemplateXLSX_Sheets(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTemplateXLSX(&buf); err != nil {
		t.Fatalf("WriteTemplateXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetName(0); got != templateSheet {
		t.Errorf("first sheet = %q, want %q", got, templateSheet)
	}
	rows, err := f.GetRows(instructionsSheet)
	if err != nil {
		t.Fatalf("read instructions: %v", err)
	}
	if len(rows) != len(CanonicalFields)+1 {
		t.Errorf("instruction rows = %d, want %d", len(rows), len(CanonicalFields)+1)
	}
}
