package core

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		head     []byte
		want     FileFormat
	}{
		{"csv extension", "units.csv", []byte("a,b"), FormatCSV},
		{"xlsx extension", "units.XLSX", []byte("PK\x03\x04"), FormatXLSX},
		{"renamed workbook", "units.csv", []byte("PK\x03\x04"), FormatXLSX},
		{"no extension text", "units", []byte("a;b"), FormatCSV},
		{"no extension zip", "units", []byte("PK\x03\x04"), FormatXLSX},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.fileName, tt.head); got != tt.want {
				t.Errorf("DetectFormat(%q) = %s, want %s", tt.fileName, got, tt.want)
			}
		})
	}
}

func TestReadTable_CSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"comma", "Código,Titular\nA-1,Ana\n"},
		{"semicolon", "Código;Titular\nA-1;Ana\n"},
		{"tab", "Código\tTitular\nA-1\tAna\n"},
		{"crlf", "Código,Titular\r\nA-1,Ana\r\n"},
		{"utf8 bom", "\ufeffCódigo,Titular\nA-1,Ana\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ReadTable(strings.NewReader(tt.input), "units.csv", 0)
			if err != nil {
				t.Fatalf("ReadTable: %v", err)
			}
			if got := NormalizeHeaders(table.Headers); !slices.Equal(got, []string{FieldUnitCode, FieldHolderName}) {
				t.Errorf("headers = %v", got)
			}
			if len(table.Rows) != 1 || !slices.Equal(table.Rows[0].Cells, []string{"A-1", "Ana"}) {
				t.Errorf("rows = %+v", table.Rows)
			}
		})
	}
}

func TestReadTable_SemicolonIgnoresQuotedCommas(t *testing.T) {
	input := "\"Código, unidad\";Titular;Uso\nA-1;Ana;Unit;Storage\n"
	table, err := ReadTable(strings.NewReader(input), "units.csv", 0)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(table.Headers) != 3 {
		t.Errorf("headers = %v, want 3 semicolon-separated", table.Headers)
	}
}

func TestReadTable_Windows1252(t *testing.T) {
	// "Código" with ó encoded as 0xF3.
	input := []byte("C\xf3digo,Titular\nA-1,Jos\xe9\n")
	table, err := ReadTable(bytes.NewReader(input), "units.csv", 0)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if table.Headers[0] != "Código" {
		t.Errorf("header = %q, want Código", table.Headers[0])
	}
	if table.Rows[0].Cells[1] != "José" {
		t.Errorf("cell = %q, want José", table.Rows[0].Cells[1])
	}
}

func TestReadTable_RowNumbersSkipBlankLines(t *testing.T) {
	input := "Código,Titular\nA-1,Ana\n,\nA-2,Luis\n"
	table, err := ReadTable(strings.NewReader(input), "units.csv", 0)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(table.Rows))
	}
	if table.Rows[0].Number != 2 || table.Rows[1].Number != 4 {
		t.Errorf("numbers = %d,%d, want 2,4", table.Rows[0].Number, table.Rows[1].Number)
	}
}

func TestReadTable_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		max     int64
		wantErr error
	}{
		{"empty file", "", 0, ErrEmptyFile},
		{"header only", "Código,Titular\n", 0, ErrNoDataRows},
		{"header and blank rows", "Código,Titular\n,\n", 0, ErrNoDataRows},
		{"too large", "Código,Titular\nA-1,Ana\n", 10, ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tt.input), "units.csv", tt.max)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadTable_InvalidWorkbook(t *testing.T) {
	_, err := ReadTable(strings.NewReader("PK\x03\x04garbage"), "units.xlsx", 0)
	if err == nil || !strings.HasPrefix(err.Error(), "invalid xlsx") {
		t.Errorf("error = %v, want invalid xlsx", err)
	}
}

func TestReadTable_XLSXFirstSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetRow("Sheet1", "A1", &[]any{"Código", "Titular"}); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow("Sheet1", "A2", &[]any{"A-1", "Ana"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.NewSheet("Other"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow("Other", "A1", &[]any{"ignored"}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	table, err := ReadTable(&buf, "units.xlsx", 0)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if !slices.Equal(table.Headers, []string{"Código", "Titular"}) {
		t.Errorf("headers = %v", table.Headers)
	}
	if len(table.Rows) != 1 || table.Rows[0].Number != 2 {
		t.Errorf("rows = %+v", table.Rows)
	}
}
