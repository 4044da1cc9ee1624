package core

// validation.go enforces the unit invariants over a loaded session.
//
// Validation happens in two passes:
//  1. Per row: required values, enums, share range and precision, and the
//     co-holder share sum
//  2. Across rows: duplicate codes inside the file, then one batched lookup
//     of the codes already in the registry
//
// Every problem is collected; nothing short-circuits. Any blocking violation
// rejects the whole file before a single row is written.

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	coHolderTotal     = decimal.NewFromInt(100)
	coHolderTolerance = decimal.RequireFromString("0.01")
)

// CodeLookup returns the codes already present in a registry.
type CodeLookup interface {
	ExistingCodes(ctx context.Context, registryID string) (map[string]struct{}, error)
}

// NormalizeCode is the key used for uniqueness checks.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckRow runs the per-row invariants and splits the findings into
// blocking violations and soft warnings.
func CheckRow(row ParsedRow) (violations, warnings []Violation) {
	u := row.Unit
	newViolation := func(field string, kind ErrorKind, msg string) Violation {
		return Violation{
			Row:      row.Number,
			UnitCode: u.Code,
			Field:    field,
			Kind:     kind,
			Message:  msg,
			RawValue: row.Raw[field],
		}
	}

	// Required values. A cell that failed to parse already has an issue.
	failed := make(map[string]bool, len(row.issues))
	for _, fi := range row.issues {
		failed[fi.Field] = true
	}
	required := map[string]bool{
		FieldUnitCode:   u.Code == "",
		FieldHolderType: u.HolderType == "" && !failed[FieldHolderType],
		FieldHolderName: u.HolderName == "",
		FieldUsageType:  len(u.UsageTypes) == 0 && !failed[FieldUsageType],
	}
	for _, f := range RequiredFields {
		if required[f] {
			violations = append(violations, newViolation(f, KindMissingValue, "required field is empty"))
		}
	}

	for _, fi := range row.issues {
		v := newViolation(fi.Field, fi.Kind, fi.Message)
		if fi.Kind.Blocking() {
			violations = append(violations, v)
		} else {
			warnings = append(warnings, v)
		}
	}

	if !failed[FieldCoHolders] && u.CoHolders.Valid && len(u.CoHolders.Value) > 0 {
		sum := decimal.Zero
		for _, h := range u.CoHolders.Value {
			sum = sum.Add(h.SharePercent)
		}
		if sum.Sub(coHolderTotal).Abs().GreaterThan(coHolderTolerance) {
			violations = append(violations, newViolation(FieldCoHolders, KindShareSumMismatch,
				fmt.Sprintf("co-holder shares sum to %s, expected 100", sum.String())))
		}
	}

	return violations, warnings
}

// FindDuplicateCodes flags every row whose normalized code appears more
// than once in the file. Each flagged row lists the other rows sharing its
// code.
func FindDuplicateCodes(rows []ParsedRow) []Violation {
	groups := make(map[string][]int)
	var order []string
	for i, r := range rows {
		key := NormalizeCode(r.Unit.Code)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	var out []Violation
	for _, key := range order {
		idxs := groups[key]
		if len(idxs) < 2 {
			continue
		}
		numbers := make([]int, len(idxs))
		for i, idx := range idxs {
			numbers[i] = rows[idx].Number
		}
		for _, idx := range idxs {
			r := rows[idx]
			related := make([]int, 0, len(numbers)-1)
			for _, n := range numbers {
				if n != r.Number {
					related = append(related, n)
				}
			}
			out = append(out, Violation{
				Row:         r.Number,
				UnitCode:    r.Unit.Code,
				Field:       FieldUnitCode,
				Kind:        KindDuplicateCode,
				Message:     "duplicate in file",
				RawValue:    r.Raw[FieldUnitCode],
				RelatedRows: related,
			})
		}
	}
	return out
}

// FindRegistryCollisions flags rows whose code already exists in the
// registry. existing must be keyed by NormalizeCode.
func FindRegistryCollisions(rows []ParsedRow, existing map[string]struct{}) []Violation {
	var out []Violation
	for _, r := range rows {
		key := NormalizeCode(r.Unit.Code)
		if key == "" {
			continue
		}
		if _, ok := existing[key]; ok {
			out = append(out, Violation{
				Row:      r.Number,
				UnitCode: r.Unit.Code,
				Field:    FieldUnitCode,
				Kind:     KindDuplicateCode,
				Message:  "already exists in registry",
				RawValue: r.Raw[FieldUnitCode],
			})
		}
	}
	return out
}

// Validate runs both passes and stores the results on the session. The
// returned error is only for a failed registry lookup; violations are data.
// A nil lookup skips the registry check.
func (s *ImportSession) Validate(ctx context.Context, lookup CodeLookup) error {
	s.Violations = nil
	s.Warnings = nil

	for _, row := range s.Rows {
		v, w := CheckRow(row)
		s.Violations = append(s.Violations, v...)
		s.Warnings = append(s.Warnings, w...)
	}

	s.Violations = append(s.Violations, FindDuplicateCodes(s.Rows)...)

	if lookup != nil && !s.Options.UpdateExisting {
		existing, err := lookup.ExistingCodes(ctx, s.RegistryID)
		if err != nil {
			return fmt.Errorf("registry lookup: %w", err)
		}
		s.Violations = append(s.Violations, FindRegistryCollisions(s.Rows, normalizeCodeSet(existing))...)
	}

	slices.SortStableFunc(s.Violations, func(a, b Violation) int { return a.Row - b.Row })
	slices.SortStableFunc(s.Warnings, func(a, b Violation) int { return a.Row - b.Row })
	return nil
}

func normalizeCodeSet(codes map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(codes))
	for c := range codes {
		out[NormalizeCode(c)] = struct{}{}
	}
	return out
}
