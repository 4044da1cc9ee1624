package core

import (
	"slices"
	"testing"
)

// ----------------------------------------------------------------------------
// NormalizeHeader / CanonicalHeader Tests
// ----------------------------------------------------------------------------

func TestCanonicalHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		// Alias variants of the same column
		{"spaced", "Unidad Codigo", FieldUnitCode},
		{"snake case", "unidad_codigo", FieldUnitCode},
		{"upper case", "UNIDAD CODIGO", FieldUnitCode},
		{"accented", "Código Unidad", FieldUnitCode},
		{"dashed", "codigo-unidad", FieldUnitCode},
		{"dotted", "Cod. Unidad", FieldUnitCode},
		{"english", "Unit", FieldUnitCode},

		// Artifacts around the label
		{"BOM prefix", "\ufeffUnidad Codigo", FieldUnitCode},
		{"surrounding whitespace", "  Tipo Titular  ", FieldHolderType},
		{"quoted", `"Titular"`, FieldHolderName},
		{"excel formula", `="Uso"`, FieldUsageType},
		{"repeated separators", "tipo  __ titular", FieldHolderType},

		// Other canonical fields
		{"share", "Prorrateo", FieldShare},
		{"share accented", "Alícuota", FieldShare},
		{"roles", "Rol CBR", FieldRoles},
		{"co-holders", "Co-titulares", FieldCoHolders},
		{"contact", "Contacto", FieldContact},
		{"observations", "Observaciones", FieldObservations},

		// Unknown labels pass through normalized
		{"unknown", "Piso Número", "piso_numero"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalHeader(tt.input); got != tt.want {
				t.Errorf("CanonicalHeader(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeHeaders_PreservesOrderAndLength(t *testing.T) {
	raw := []string{"Titular", "Extra Column", "Código", "Uso"}
	got := NormalizeHeaders(raw)
	want := []string{FieldHolderName, "extra_column", FieldUnitCode, FieldUsageType}

	if !slices.Equal(got, want) {
		t.Errorf("NormalizeHeaders(%v) = %v, want %v", raw, got, want)
	}
}

func TestHeaderAliases_KeysAreNormalized(t *testing.T) {
	for alias, canonical := range headerAliases {
		if NormalizeHeader(alias) != alias {
			t.Errorf("alias %q is not in normalized form (%q)", alias, NormalizeHeader(alias))
		}
		if !slices.Contains(CanonicalFields, canonical) {
			t.Errorf("alias %q maps to unknown field %q", alias, canonical)
		}
	}
}

// ----------------------------------------------------------------------------
// HeaderIndex Tests
// ----------------------------------------------------------------------------

func TestMakeHeaderIndex(t *testing.T) {
	idx := MakeHeaderIndex([]string{FieldUnitCode, "", FieldHolderName, FieldUnitCode})

	if got := idx[FieldUnitCode]; got != 0 {
		t.Errorf("idx[unit_code] = %d, want 0 (first column wins)", got)
	}
	if got := idx[FieldHolderName]; got != 2 {
		t.Errorf("idx[holder_name] = %d, want 2", got)
	}
	if _, ok := idx[""]; ok {
		t.Error("empty header should not be indexed")
	}
}

func TestHeaderIndex_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    []string
	}{
		{
			name:    "all present",
			headers: []string{FieldUnitCode, FieldHolderType, FieldHolderName, FieldUsageType},
			want:    nil,
		},
		{
			name:    "optional only",
			headers: []string{FieldShare, FieldContact},
			want:    RequiredFields,
		},
		{
			name:    "missing two",
			headers: []string{FieldUnitCode, FieldHolderName},
			want:    []string{FieldHolderType, FieldUsageType},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MakeHeaderIndex(tt.headers).MissingRequired()
			if !slices.Equal(got, tt.want) {
				t.Errorf("MissingRequired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHeaderIndex_Cell(t *testing.T) {
	idx := MakeHeaderIndex([]string{FieldUnitCode, FieldHolderName, FieldShare})
	row := []string{"A-101", "María"}

	if got := idx.Cell(row, FieldUnitCode); got != "A-101" {
		t.Errorf("Cell(unit_code) = %q, want %q", got, "A-101")
	}
	if got := idx.Cell(row, FieldShare); got != "" {
		t.Errorf("Cell(share) on short row = %q, want empty", got)
	}
	if got := idx.Cell(row, FieldContact); got != "" {
		t.Errorf("Cell(contact) absent column = %q, want empty", got)
	}
}
