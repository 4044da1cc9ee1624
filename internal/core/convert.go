package core

// convert.go turns raw spreadsheet cells into typed unit values.
//
// Every transform here is total: it never panics and never returns a Go
// error. A cell either converts cleanly or comes back with an *Issue that
// says what was wrong, so the validator can collect every problem in the
// file in a single pass. Handles the usual spreadsheet noise:
//   - Excel formula prefixes (="value") and stray quotes
//   - Decimal commas ("12,5") and embedded whitespace in numbers
//   - Case and accent differences in enumerated values
//   - JSON cells that are not actually JSON (kept as raw text)

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Delimiters used inside cells.
const (
	ListDelimiter  = ";"
	GroupDelimiter = "|"
	KeyDelimiter   = ":"
)

// Share precision limits: at most MaxShareScale fractional digits and
// MaxShareDigits digits overall.
const (
	MaxShareScale  = 4
	MaxShareDigits = 5
)

var (
	shareMin = decimal.Zero
	shareMax = decimal.NewFromInt(100)
)

// Issue describes why a cell could not be converted.
type Issue struct {
	Kind    ErrorKind
	Message string
}

func (i *Issue) Error() string {
	return i.Message
}

func issuef(kind ErrorKind, format string, args ...any) *Issue {
	return &Issue{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// CleanCell removes common spreadsheet artifacts from a cell value:
//   - Trims whitespace
//   - Removes Excel formula prefix (="...")
//   - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// CleanText trims a free-text cell. Quotes and apostrophes are content
// here, so only a complete ="..." formula wrapper is removed.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 3 && strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = strings.TrimSpace(s[2 : len(s)-1])
	}
	return s
}

// ParseList splits a delimited cell, trimming tokens and dropping empties.
func ParseList(raw string) []string {
	parts := strings.Split(CleanCell(raw), ListDelimiter)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// number is a parsed numeric cell. huge marks magnitudes of at least
// 10^(MaxShareDigits+1), which are classified without expanding the exponent.
type number struct {
	value decimal.Decimal
	text  string
	huge  bool
}

// parseNumber cleans and parses a numeric cell, accepting a decimal comma.
// Exponent notation is bounded here: every later step (comparison,
// rounding) rescales to the exponent, so 1e20000000 would otherwise build a
// twenty-million digit integer.
func parseNumber(raw string) (number, *Issue) {
	s := strings.ReplaceAll(CleanCell(raw), ",", ".")
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return number{}, issuef(KindInvalidNumber, "empty number")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return number{}, issuef(KindInvalidNumber, "invalid number %q", raw)
	}
	if d.IsZero() {
		return number{value: decimal.Zero, text: s}, nil
	}

	exp := int(d.Exponent())
	if exp > MaxShareDigits {
		return number{value: d, text: s, huge: true}, nil
	}

	// |d| < 10^(digits+exp); below 10^-(MaxShareScale+1) it rounds to zero.
	c := d.Coefficient()
	digits := len(c.Abs(c).String())
	if digits+exp <= -(MaxShareScale + 1) {
		return number{value: decimal.Zero, text: s}, nil
	}
	return number{value: d, text: s}, nil
}

// round rounds n to MaxShareScale fractional digits and enforces the
// MaxShareDigits limit.
func (n number) round() (decimal.Decimal, *Issue) {
	if n.huge {
		return decimal.Zero, issuef(KindPrecisionOverflow,
			"%s needs more than %d digits (%d decimals)", n.text, MaxShareDigits, MaxShareScale)
	}
	rounded := n.value.Round(MaxShareScale)
	if d := significantDigits(rounded); d > MaxShareDigits {
		return decimal.Zero, issuef(KindPrecisionOverflow,
			"%s needs %d digits, at most %d allowed (%d decimals)", n.text, d, MaxShareDigits, MaxShareScale)
	}
	return rounded, nil
}

// ParseDecimal converts a numeric cell, accepting a decimal comma, and
// rounds it to MaxShareScale fractional digits. Values that need more than
// MaxShareDigits digits after rounding are reported as PrecisionOverflow
// rather than clamped.
func ParseDecimal(raw string) (decimal.Decimal, *Issue) {
	n, issue := parseNumber(raw)
	if issue != nil {
		return decimal.Zero, issue
	}
	return n.round()
}

// significantDigits counts the digits of d ignoring sign, separator,
// leading zeros and trailing fractional zeros.
func significantDigits(d decimal.Decimal) int {
	s := d.Abs().String()
	s = strings.Replace(s, ".", "", 1)
	s = strings.TrimLeft(s, "0")
	return len(s)
}

// ParseShare converts the ownership share cell. An empty cell means no
// share is recorded and is not an issue.
func ParseShare(raw string) (decimal.NullDecimal, *Issue) {
	if CleanCell(raw) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, issue := parseShareDecimal(raw)
	if issue != nil {
		return decimal.NullDecimal{}, issue
	}
	return decimal.NewNullDecimal(d), nil
}

// parseShareDecimal parses a percentage. The range is checked before the
// precision so 12345 is reported as out of range, not as too many digits.
func parseShareDecimal(raw string) (decimal.Decimal, *Issue) {
	n, issue := parseNumber(raw)
	if issue != nil {
		return decimal.Zero, issue
	}
	if n.huge {
		return decimal.Zero, issuef(KindOutOfRangeValue, "%s is outside 0-100", n.text)
	}
	if r := n.value.Round(MaxShareScale); r.LessThan(shareMin) || r.GreaterThan(shareMax) {
		return decimal.Zero, issuef(KindOutOfRangeValue, "%s is outside 0-100", n.text)
	}
	return n.round()
}

// enumKey folds an enum token for lookup: lowercase, accents removed,
// separators dropped.
func enumKey(s string) string {
	s = strings.ToLower(foldAccents(CleanCell(s)))
	return strings.Join(strings.FieldsFunc(s, isHeaderSeparator), "")
}

var holderTypeAliases = map[string]HolderType{
	"naturalperson":   HolderNatural,
	"natural":         HolderNatural,
	"personanatural":  HolderNatural,
	"pn":              HolderNatural,
	"legalperson":     HolderLegal,
	"legal":           HolderLegal,
	"juridica":        HolderLegal,
	"personajuridica": HolderLegal,
	"pj":              HolderLegal,
	"empresa":         HolderLegal,
	"sociedad":        HolderLegal,
}

var usageTypeAliases = map[string]UsageType{
	"unit":            UsageUnit,
	"unidad":          UsageUnit,
	"departamento":    UsageUnit,
	"depto":           UsageUnit,
	"casa":            UsageUnit,
	"local":           UsageUnit,
	"oficina":         UsageUnit,
	"storage":         UsageStorage,
	"bodega":          UsageStorage,
	"parkingspot":     UsageParking,
	"parking":         UsageParking,
	"estacionamiento": UsageParking,
}

// ParseHolderType resolves a holder type token.
func ParseHolderType(raw string) (HolderType, *Issue) {
	if ht, ok := holderTypeAliases[enumKey(raw)]; ok {
		return ht, nil
	}
	return "", issuef(KindInvalidEnumValue,
		"invalid enum %q, expected one of: %s, %s", CleanCell(raw), HolderNatural, HolderLegal)
}

// ParseUsageType resolves a single usage type token.
func ParseUsageType(raw string) (UsageType, *Issue) {
	if ut, ok := usageTypeAliases[enumKey(raw)]; ok {
		return ut, nil
	}
	return "", issuef(KindInvalidEnumValue,
		"invalid enum %q, expected one of: %s, %s, %s", CleanCell(raw), UsageUnit, UsageStorage, UsageParking)
}

// ParseUsageTypes splits and resolves a usage type list. Duplicates are
// collapsed; every unrecognized token is reported.
func ParseUsageTypes(raw string) ([]UsageType, []*Issue) {
	var (
		out    []UsageType
		issues []*Issue
		seen   = make(map[UsageType]bool)
	)
	for _, tok := range ParseList(raw) {
		ut, issue := ParseUsageType(tok)
		if issue != nil {
			issues = append(issues, issue)
			continue
		}
		if !seen[ut] {
			seen[ut] = true
			out = append(out, ut)
		}
	}
	return out, issues
}

// ParseRoles converts a composite roles cell such as
// "1234-56-2019:Unit;Storage|998-12-2020:ParkingSpot". Entries without a
// role token are dropped. Unknown appliesTo tokens are reported.
func ParseRoles(raw string) ([]CBRRole, []*Issue) {
	var (
		roles  []CBRRole
		issues []*Issue
	)
	for _, entry := range strings.Split(CleanCell(raw), GroupDelimiter) {
		role, appliesTo, _ := strings.Cut(entry, KeyDelimiter)
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}

		r := CBRRole{Role: role}
		r.RegistryFolio, r.RegistryNumber, r.RegistryYear = splitRoleToken(role)

		usages, bad := ParseUsageTypes(appliesTo)
		r.AppliesTo = usages
		issues = append(issues, bad...)

		roles = append(roles, r)
	}
	return roles, issues
}

// splitRoleToken splits "folio-number-year" (or with "/") into its parts.
// Tokens of any other shape leave the parts empty.
func splitRoleToken(role string) (folio, number, year string) {
	parts := strings.FieldsFunc(role, func(r rune) bool { return r == '-' || r == '/' })
	if len(parts) != 3 {
		return "", "", ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
}

// FormatRoles is the inverse of ParseRoles.
func FormatRoles(roles []CBRRole) string {
	entries := make([]string, 0, len(roles))
	for _, r := range roles {
		entry := r.Role
		if len(r.AppliesTo) > 0 {
			entry += KeyDelimiter + FormatUsageTypes(r.AppliesTo)
		}
		entries = append(entries, entry)
	}
	return strings.Join(entries, GroupDelimiter)
}

// FormatUsageTypes is the inverse of ParseUsageTypes.
func FormatUsageTypes(usages []UsageType) string {
	parts := make([]string, len(usages))
	for i, u := range usages {
		parts[i] = string(u)
	}
	return strings.Join(parts, ListDelimiter)
}

// coHolderJSON accepts sharePercent as a JSON number or string.
type coHolderJSON struct {
	Name         string          `json:"name"`
	SharePercent json.RawMessage `json:"sharePercent"`
}

// ParseCoHolders parses the co-holders JSON array. Text that is not valid
// JSON is kept raw and reported as a soft MalformedStructuredField issue.
// Share values inside valid JSON are parsed like the share column and their issues are
// returned as hard issues.
func ParseCoHolders(raw string) (Soft[[]CoHolder], *Issue, []*Issue) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Soft[[]CoHolder]{}, nil, nil
	}

	var entries []coHolderJSON
	if err := json.Unmarshal([]byte(s), &entries); err != nil {
		return Soft[[]CoHolder]{Raw: s},
			issuef(KindMalformedStructuredField, "not a JSON array, kept as text: %v", err), nil
	}

	var issues []*Issue
	holders := make([]CoHolder, 0, len(entries))
	for i, e := range entries {
		share, issue := parseJSONDecimal(e.SharePercent)
		if issue != nil {
			issue.Message = fmt.Sprintf("co-holder %d: %s", i+1, issue.Message)
			issues = append(issues, issue)
		}
		holders = append(holders, CoHolder{
			Name:         strings.TrimSpace(e.Name),
			SharePercent: share,
		})
	}
	return Soft[[]CoHolder]{Value: holders, Raw: s, Valid: true}, nil, issues
}

func parseJSONDecimal(msg json.RawMessage) (decimal.Decimal, *Issue) {
	if len(msg) == 0 || string(msg) == "null" {
		return decimal.Zero, issuef(KindMissingValue, "sharePercent is missing")
	}
	var str string
	if err := json.Unmarshal(msg, &str); err == nil {
		return parseShareDecimal(str)
	}
	return parseShareDecimal(string(msg))
}

// ParseContact parses the contact JSON object. Text that is not valid
// JSON is kept raw and reported as a soft issue.
func ParseContact(raw string) (Soft[Contact], *Issue) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Soft[Contact]{}, nil
	}

	var c Contact
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return Soft[Contact]{Raw: s},
			issuef(KindMalformedStructuredField, "not a JSON object, kept as text: %v", err)
	}
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	return Soft[Contact]{Value: c, Raw: s, Valid: true}, nil
}

// FormatSoft is the inverse of ParseCoHolders / ParseContact.
func FormatSoft[T any](s Soft[T]) string {
	if !s.Valid {
		return s.Raw
	}
	b, err := json.Marshal(s.Value)
	if err != nil {
		return s.Raw
	}
	return string(b)
}

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgNumeric converts an optional decimal to pgtype.Numeric.
func ToPgNumeric(d decimal.NullDecimal) pgtype.Numeric {
	if !d.Valid {
		return pgtype.Numeric{Valid: false}
	}
	var n pgtype.Numeric
	if err := n.Scan(d.Decimal.String()); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// FromPgText converts numeric text read back from the database.
func FromPgText(t pgtype.Text) decimal.NullDecimal {
	if !t.Valid {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(t.String)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
