// Package core provides the business logic for unit registry imports.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HolderType classifies the registered holder of a unit.
type HolderType string

const (
	HolderNatural HolderType = "NaturalPerson"
	HolderLegal   HolderType = "LegalPerson"
)

// UsageType is the use a unit record is registered for.
type UsageType string

const (
	UsageUnit    UsageType = "Unit"
	UsageStorage UsageType = "Storage"
	UsageParking UsageType = "ParkingSpot"
)

// HolderTypes lists the accepted holder types in display order.
var HolderTypes = []HolderType{HolderNatural, HolderLegal}

// UsageTypes lists the accepted usage types in display order.
var UsageTypes = []UsageType{UsageUnit, UsageStorage, UsageParking}

// CBRRole is a property registry inscription (foja, number, year) and the
// usages it covers.
type CBRRole struct {
	Role           string      `json:"role"`
	RegistryFolio  string      `json:"registryFolio,omitempty"`
	RegistryNumber string      `json:"registryNumber,omitempty"`
	RegistryYear   string      `json:"registryYear,omitempty"`
	AppliesTo      []UsageType `json:"appliesTo,omitempty"`
}

// CoHolder is a secondary owner and the percentage of title it holds.
type CoHolder struct {
	Name         string          `json:"name"`
	SharePercent decimal.Decimal `json:"sharePercent"`
}

// Contact holds optional contact details for the holder.
type Contact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// DocumentRef is an opaque reference to an uploaded file.
type DocumentRef struct {
	Key        string    `json:"key"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Soft is a structured field that falls back to its raw text when the
// source cell was not valid JSON.
type Soft[T any] struct {
	Value T
	Raw   string
	Valid bool // Value was parsed from Raw
}

// IsZero reports whether the field carries neither a value nor raw text.
func (s Soft[T]) IsZero() bool {
	return !s.Valid && s.Raw == ""
}

// Degraded reports whether the field kept only its raw text.
func (s Soft[T]) Degraded() bool {
	return !s.Valid && s.Raw != ""
}

// MarshalJSON encodes the parsed value, the raw string, or null.
func (s Soft[T]) MarshalJSON() ([]byte, error) {
	switch {
	case s.Valid:
		return json.Marshal(s.Value)
	case s.Raw != "":
		return json.Marshal(s.Raw)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON: a JSON string is raw text,
// anything else is the parsed value.
func (s *Soft[T]) UnmarshalJSON(data []byte) error {
	*s = Soft[T]{}
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "" || trimmed == "null":
		return nil
	case strings.HasPrefix(trimmed, `"`):
		return json.Unmarshal(data, &s.Raw)
	}
	if err := json.Unmarshal(data, &s.Value); err != nil {
		return err
	}
	s.Raw = trimmed
	s.Valid = true
	return nil
}

// Unit is a single condominium sub-property tracked as one registry record.
type Unit struct {
	ID                uuid.UUID           `json:"id"`
	RegistryID        string              `json:"registryId"`
	Code              string              `json:"code"`
	OwnershipShare    decimal.NullDecimal `json:"ownershipShare"`
	HolderType        HolderType          `json:"holderType"`
	HolderName        string              `json:"holderName"`
	UsageTypes        []UsageType         `json:"usageTypes"`
	CBRRoles          []CBRRole           `json:"cbrRoles,omitempty"`
	CoHolders         Soft[[]CoHolder]    `json:"coHolders"`
	Contact           Soft[Contact]       `json:"contact"`
	RegistrationProof *DocumentRef        `json:"registrationProof,omitempty"`
	GoodStandingProof *DocumentRef        `json:"goodStandingProof,omitempty"`
	Observations      string              `json:"observations,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
	LastModifiedAt    time.Time           `json:"lastModifiedAt"`
}

// ImportPhase indicates the current stage of import processing.
type ImportPhase string

const (
	PhaseStarting   ImportPhase = "starting"
	PhaseReading    ImportPhase = "reading"
	PhaseValidating ImportPhase = "validating"
	PhaseCommitting ImportPhase = "committing"
	PhaseComplete   ImportPhase = "complete"
	PhaseRejected   ImportPhase = "rejected"
	PhaseFailed     ImportPhase = "failed"
	PhaseCancelled  ImportPhase = "cancelled"
)

// Terminal reports whether no further progress will follow this phase.
func (p ImportPhase) Terminal() bool {
	switch p {
	case PhaseComplete, PhaseRejected, PhaseFailed, PhaseCancelled:
		return true
	}
	return false
}

// ImportProgress represents the current state of an import operation.
type ImportProgress struct {
	ImportID   string      `json:"importId"`
	RegistryID string      `json:"registryId"`
	FileName   string      `json:"fileName"`
	Phase      ImportPhase `json:"phase"`
	Total      int         `json:"total"`
	Processed  int         `json:"processed"`
	Succeeded  int         `json:"succeeded"`
	Failed     int         `json:"failed"`
	Error      string      `json:"error,omitempty"` // Non-empty if Phase is PhaseFailed
}

// Percent returns the commit progress as a percentage (0-100).
func (p ImportProgress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Processed * 100) / p.Total
}

// Options controls how an import treats the existing registry.
type Options struct {
	// UpdateExisting reconciles rows whose code already exists in the
	// registry as updates instead of rejecting them as duplicates.
	UpdateExisting bool
}

// ImportRun is a finished import as recorded in the history.
type ImportRun struct {
	ID         string       `json:"id"`
	RegistryID string       `json:"registryId"`
	FileName   string       `json:"fileName"`
	Status     ReportStatus `json:"status"`
	TotalRows  int          `json:"totalRows"`
	Accepted   int          `json:"accepted"`
	Rejected   int          `json:"rejected"`
	DurationMs int64        `json:"durationMs"`
	IPAddress  string       `json:"ipAddress,omitempty"`
	UserAgent  string       `json:"userAgent,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}
