package core

// template.go produces the example spreadsheet offered to users. It is
// written with the same header aliases and cell formats the importer reads,
// so a downloaded template imports cleanly without edits.

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// TemplateHeaders are the display labels written to the template, one per
// entry of CanonicalFields.
var TemplateHeaders = map[string]string{
	FieldUnitCode:     "Código Unidad",
	FieldHolderType:   "Tipo Titular",
	FieldHolderName:   "Titular",
	FieldUsageType:    "Uso",
	FieldShare:        "Prorrateo",
	FieldRoles:        "Rol CBR",
	FieldCoHolders:    "Co-titulares",
	FieldContact:      "Contacto",
	FieldObservations: "Observaciones",
}

const (
	templateSheet     = "Unidades"
	instructionsSheet = "Instrucciones"
)

func exampleRole(token string, appliesTo ...UsageType) CBRRole {
	r := CBRRole{Role: token, AppliesTo: appliesTo}
	r.RegistryFolio, r.RegistryNumber, r.RegistryYear = splitRoleToken(token)
	return r
}

func exampleShare(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

// ExampleUnits returns the sample rows shipped in the template.
func ExampleUnits() []Unit {
	return []Unit{
		{
			Code:           "A-101",
			HolderType:     HolderNatural,
			HolderName:     "María González",
			UsageTypes:     []UsageType{UsageUnit},
			OwnershipShare: exampleShare("2.5"),
			CBRRoles:       []CBRRole{exampleRole("1234-56-2019", UsageUnit)},
			Contact: Soft[Contact]{
				Value: Contact{Email: "maria.gonzalez@example.com", Phone: "+56 9 1234 5678"},
				Valid: true,
			},
			Observations: "Departamento con terraza",
		},
		{
			Code:           "B-12",
			HolderType:     HolderLegal,
			HolderName:     "Inversiones Los Andes SpA",
			UsageTypes:     []UsageType{UsageStorage, UsageParking},
			OwnershipShare: exampleShare("0.75"),
			CBRRoles: []CBRRole{
				exampleRole("998-12-2020", UsageStorage),
				exampleRole("999-12-2020", UsageParking),
			},
		},
		{
			Code:           "E-07",
			HolderType:     HolderNatural,
			HolderName:     "Jorge Rojas",
			UsageTypes:     []UsageType{UsageParking},
			OwnershipShare: exampleShare("0.3125"),
			CoHolders: Soft[[]CoHolder]{
				Value: []CoHolder{
					{Name: "Jorge Rojas", SharePercent: decimal.RequireFromString("50")},
					{Name: "Carla Muñoz", SharePercent: decimal.RequireFromString("50")},
				},
				Valid: true,
			},
		},
	}
}

// FormatUnit renders a unit back into raw cells keyed by canonical field.
// It is the inverse of the cell transforms.
func FormatUnit(u Unit) map[string]string {
	cells := map[string]string{
		FieldUnitCode:     u.Code,
		FieldHolderType:   string(u.HolderType),
		FieldHolderName:   u.HolderName,
		FieldUsageType:    FormatUsageTypes(u.UsageTypes),
		FieldRoles:        FormatRoles(u.CBRRoles),
		FieldCoHolders:    FormatSoft(u.CoHolders),
		FieldContact:      FormatSoft(u.Contact),
		FieldObservations: u.Observations,
	}
	if u.OwnershipShare.Valid {
		cells[FieldShare] = u.OwnershipShare.Decimal.String()
	}
	return cells
}

func templateRecords() [][]string {
	header := make([]string, len(CanonicalFields))
	for i, f := range CanonicalFields {
		header[i] = TemplateHeaders[f]
	}

	records := [][]string{header}
	for _, u := range ExampleUnits() {
		cells := FormatUnit(u)
		rec := make([]string, len(CanonicalFields))
		for i, f := range CanonicalFields {
			rec[i] = cells[f]
		}
		records = append(records, rec)
	}
	return records
}

// WriteTemplateCSV writes the example template as CSV.
func WriteTemplateCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(templateRecords()); err != nil {
		return fmt.Errorf("write template csv: %w", err)
	}
	return nil
}

// WriteTemplateXLSX writes the example template as a workbook with a data
// sheet and an instructions sheet.
func WriteTemplateXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for r, rec := range templateRecords() {
		for c, val := range rec {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellStr(templateSheet, cell, val); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	last, _ := excelize.CoordinatesToCellName(len(CanonicalFields), 1)
	if err := f.SetCellStyle(templateSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(CanonicalFields))
	if err := f.SetColWidth(templateSheet, "A", lastCol, 22); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(templateSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := writeInstructions(f, headerStyle); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write template xlsx: %w", err)
	}
	return nil
}

func writeInstructions(f *excelize.File, headerStyle int) error {
	if _, err := f.NewSheet(instructionsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	required := make(map[string]bool, len(RequiredFields))
	for _, rf := range RequiredFields {
		required[rf] = true
	}

	rows := [][]string{{"Columna", "Obligatoria", "Formato"}}
	for _, field := range CanonicalFields {
		req := "No"
		if required[field] {
			req = "Sí"
		}
		rows = append(rows, []string{TemplateHeaders[field], req, fieldFormatHint(field)})
	}

	for r, rec := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+1)
		vals := make([]any, len(rec))
		for i, v := range rec {
			vals[i] = v
		}
		if err := f.SetSheetRow(instructionsSheet, cell, &vals); err != nil {
			return fmt.Errorf("write instructions: %w", err)
		}
	}
	if err := f.SetCellStyle(instructionsSheet, "A1", "C1", headerStyle); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}
	return f.SetColWidth(instructionsSheet, "A", "C", 30)
}

func fieldFormatHint(field string) string {
	usages := FormatUsageTypes(UsageTypes)
	switch field {
	case FieldHolderType:
		return fmt.Sprintf("%s o %s", HolderNatural, HolderLegal)
	case FieldUsageType:
		return "Uno o más de " + strings.ReplaceAll(usages, ListDelimiter, ", ") + ", separados por ;"
	case FieldShare:
		return "Número entre 0 y 100, hasta 4 decimales y 5 dígitos"
	case FieldRoles:
		return "foja-número-año:Usos, varias entradas separadas por |"
	case FieldCoHolders:
		return `JSON: [{"name":"...","sharePercent":50}], suma 100`
	case FieldContact:
		return `JSON: {"email":"...","phone":"..."}`
	default:
		return "Texto"
	}
}
