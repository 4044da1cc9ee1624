package core

// headers.go maps arbitrary spreadsheet column labels onto canonical field
// names. Normalization never fails: unknown labels pass through as their
// normalized token and are simply ignored downstream.

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical field names.
const (
	FieldUnitCode     = "unit_code"
	FieldHolderType   = "holder_type"
	FieldHolderName   = "holder_name"
	FieldUsageType    = "usage_type"
	FieldShare        = "share"
	FieldRoles        = "roles"
	FieldCoHolders    = "co_holders"
	FieldContact      = "contact"
	FieldObservations = "observations"

	// FieldRecord keys failures that concern the whole row rather than a cell.
	FieldRecord = "record"
)

// CanonicalFields lists every importable field in template column order.
var CanonicalFields = []string{
	FieldUnitCode,
	FieldHolderType,
	FieldHolderName,
	FieldUsageType,
	FieldShare,
	FieldRoles,
	FieldCoHolders,
	FieldContact,
	FieldObservations,
}

// RequiredFields must be present as headers and non-empty in every row.
var RequiredFields = []string{
	FieldUnitCode,
	FieldHolderType,
	FieldHolderName,
	FieldUsageType,
}

// headerAliases maps normalized header tokens to canonical names.
// Keys must already be in NormalizeHeader form.
var headerAliases = map[string]string{
	// unit_code
	"unidad_codigo": FieldUnitCode,
	"codigo_unidad": FieldUnitCode,
	"codigo":        FieldUnitCode,
	"cod_unidad":    FieldUnitCode,
	"unidad":        FieldUnitCode,
	"code":          FieldUnitCode,
	"unit":          FieldUnitCode,
	"unit_id":       FieldUnitCode,
	"numero_unidad": FieldUnitCode,
	"n_unidad":      FieldUnitCode,
	"departamento":  FieldUnitCode,

	// holder_type
	"tipo_titular":     FieldHolderType,
	"tipo_propietario": FieldHolderType,
	"tipo_persona":     FieldHolderType,
	"titular_tipo":     FieldHolderType,
	"owner_type":       FieldHolderType,

	// holder_name
	"titular":            FieldHolderName,
	"nombre_titular":     FieldHolderName,
	"propietario":        FieldHolderName,
	"nombre_propietario": FieldHolderName,
	"razon_social":       FieldHolderName,
	"owner":              FieldHolderName,
	"owner_name":         FieldHolderName,

	// usage_type
	"uso":         FieldUsageType,
	"usos":        FieldUsageType,
	"tipo_uso":    FieldUsageType,
	"destino":     FieldUsageType,
	"tipo_unidad": FieldUsageType,
	"usage":       FieldUsageType,
	"usage_types": FieldUsageType,

	// share
	"prorrateo":          FieldShare,
	"alicuota":           FieldShare,
	"porcentaje":         FieldShare,
	"porcentaje_dominio": FieldShare,
	"derechos":           FieldShare,
	"ownership_share":    FieldShare,

	// roles
	"rol":         FieldRoles,
	"roles_cbr":   FieldRoles,
	"rol_cbr":     FieldRoles,
	"cbr":         FieldRoles,
	"inscripcion": FieldRoles,

	// co_holders
	"co_titulares":   FieldCoHolders,
	"cotitulares":    FieldCoHolders,
	"copropietarios": FieldCoHolders,
	"coholders":      FieldCoHolders,

	// contact
	"contacto":       FieldContact,
	"datos_contacto": FieldContact,

	// observations
	"observaciones": FieldObservations,
	"observacion":   FieldObservations,
	"notas":         FieldObservations,
	"comentarios":   FieldObservations,
	"notes":         FieldObservations,
}

// foldAccents removes combining marks so "Código" and "Codigo" compare equal.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// isHeaderSeparator reports runes that split a header into tokens.
func isHeaderSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '_' || r == '-' || r == '.'
}

// NormalizeHeader folds a raw header label into its lookup token:
// BOM stripped, trimmed, lowercased, accents removed, separators collapsed
// to a single underscore.
func NormalizeHeader(raw string) string {
	s := strings.ReplaceAll(raw, "\ufeff", "")
	s = CleanCell(s)
	s = strings.ToLower(foldAccents(s))
	return strings.Join(strings.FieldsFunc(s, isHeaderSeparator), "_")
}

// CanonicalHeader returns the canonical field name for a raw header label,
// or the normalized token when no alias matches.
func CanonicalHeader(raw string) string {
	token := NormalizeHeader(raw)
	if canonical, ok := headerAliases[token]; ok {
		return canonical
	}
	return token
}

// NormalizeHeaders maps a raw header row to canonical names, preserving
// length and column order.
func NormalizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	for i, h := range raw {
		out[i] = CanonicalHeader(h)
	}
	return out
}

// HeaderIndex maps canonical field names to their position in a row.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from canonical headers.
// When a field appears twice the first column wins.
func MakeHeaderIndex(canonical []string) HeaderIndex {
	idx := make(HeaderIndex, len(canonical))
	for i, h := range canonical {
		if h == "" {
			continue
		}
		if _, seen := idx[h]; !seen {
			idx[h] = i
		}
	}
	return idx
}

// MissingRequired returns the required fields absent from the index,
// in RequiredFields order.
func (idx HeaderIndex) MissingRequired() []string {
	var missing []string
	for _, f := range RequiredFields {
		if _, ok := idx[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// Cell returns the raw cell for a field, or "" when the column is absent
// or the row is short.
func (idx HeaderIndex) Cell(row []string, field string) string {
	pos, ok := idx[field]
	if !ok || pos >= len(row) {
		return ""
	}
	return row[pos]
}
