package core

// reader.go loads an uploaded CSV or XLSX file into a RawTable.
//
// Format is chosen by file extension, falling back to the ZIP magic number
// so an .xlsx renamed to .csv still opens. CSV delimiters are sniffed from
// the header line since Spanish-locale spreadsheet exports use ';'.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// FileFormat identifies the container of an uploaded file.
type FileFormat string

const (
	FormatCSV  FileFormat = "csv"
	FormatXLSX FileFormat = "xlsx"
)

var zipMagic = []byte("PK\x03\x04")

// RawRow is one data row as read from the file.
type RawRow struct {
	Number int // 1-indexed file row, header is row 1
	Cells  []string
}

// RawTable is the header row plus data rows of an uploaded file.
type RawTable struct {
	Headers []string
	Rows    []RawRow
}

// DetectFormat picks the file format from the name and the first bytes.
func DetectFormat(fileName string, head []byte) FileFormat {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".csv", ".txt", ".tsv":
		if !bytes.HasPrefix(head, zipMagic) {
			return FormatCSV
		}
	}
	if bytes.HasPrefix(head, zipMagic) {
		return FormatXLSX
	}
	return FormatCSV
}

// ReadTable reads a whole file into a RawTable. maxBytes of 0 disables the
// size limit.
func ReadTable(r io.Reader, fileName string, maxBytes int64) (*RawTable, error) {
	counted := NewCountingReader(r, maxBytes)
	br := bufio.NewReader(counted)
	head, _ := br.Peek(len(zipMagic))

	var (
		records [][]string
		err     error
	)
	switch DetectFormat(fileName, head) {
	case FormatXLSX:
		records, err = readXLSX(br)
	default:
		records, err = readCSV(br)
	}
	if errors.Is(err, ErrFileTooLarge) || (maxBytes > 0 && counted.BytesRead > maxBytes) {
		return nil, ErrFileTooLarge
	}
	if err != nil {
		return nil, err
	}

	return newRawTable(records)
}

func newRawTable(records [][]string) (*RawTable, error) {
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	table := &RawTable{Headers: records[0]}
	for i, rec := range records[1:] {
		if isBlankRecord(rec) {
			continue
		}
		table.Rows = append(table.Rows, RawRow{Number: i + 2, Cells: rec})
	}
	if len(table.Rows) == 0 {
		return nil, ErrNoDataRows
	}
	return table, nil
}

func isBlankRecord(rec []string) bool {
	for _, c := range rec {
		if CleanCell(c) != "" {
			return false
		}
	}
	return true
}

func readCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(NewTextReader(r))
	line, _ := br.Peek(sniffSize)

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(line)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	return records, nil
}

// sniffDelimiter picks the most frequent candidate delimiter on the first
// line, ignoring quoted text. Comma wins ties.
func sniffDelimiter(head []byte) rune {
	first := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		first = head[:i]
	}

	counts := map[rune]int{}
	inQuotes := false
	for _, r := range string(first) {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case !inQuotes && (r == ',' || r == ';' || r == '\t'):
			counts[r]++
		}
	}

	best := ','
	for _, c := range []rune{';', '\t'} {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("invalid xlsx: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}
	return rows, nil
}
