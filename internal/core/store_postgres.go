package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	db "github.com/JonMunkholm/condoreg/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements UnitStore and ImportHistory over a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ExistingCodes returns every unit code in the registry.
func (p *PostgresStore) ExistingCodes(ctx context.Context, registryID string) (map[string]struct{}, error) {
	codes, err := db.New(p.pool).ListUnitCodes(ctx, registryID)
	if err != nil {
		return nil, fmt.Errorf("list unit codes: %w", err)
	}
	out := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		out[c] = struct{}{}
	}
	return out, nil
}

// CreateOrUpdateUnit upserts a unit keyed by its normalized code.
func (p *PostgresStore) CreateOrUpdateUnit(ctx context.Context, registryID string, u Unit) (Unit, error) {
	params, err := upsertParams(registryID, u)
	if err != nil {
		return Unit{}, err
	}

	row, err := db.New(p.pool).UpsertUnit(ctx, params)
	if err != nil {
		return Unit{}, fmt.Errorf("upsert unit %s: %w", u.Code, err)
	}
	return unitFromRow(row)
}

func upsertParams(registryID string, u Unit) (db.UpsertUnitParams, error) {
	id := u.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	usages := make([]string, len(u.UsageTypes))
	for i, ut := range u.UsageTypes {
		usages[i] = string(ut)
	}

	roles, err := json.Marshal(u.CBRRoles)
	if err != nil {
		return db.UpsertUnitParams{}, fmt.Errorf("encode roles: %w", err)
	}
	coHolders, err := softJSON(u.CoHolders)
	if err != nil {
		return db.UpsertUnitParams{}, fmt.Errorf("encode co-holders: %w", err)
	}
	contact, err := softJSON(u.Contact)
	if err != nil {
		return db.UpsertUnitParams{}, fmt.Errorf("encode contact: %w", err)
	}

	return db.UpsertUnitParams{
		ID:             pgtype.UUID{Bytes: id, Valid: true},
		RegistryID:     registryID,
		Code:           u.Code,
		CodeKey:        NormalizeCode(u.Code),
		OwnershipShare: ToPgNumeric(u.OwnershipShare),
		HolderType:     string(u.HolderType),
		HolderName:     u.HolderName,
		UsageTypes:     usages,
		CbrRoles:       roles,
		CoHolders:      coHolders,
		Contact:        contact,
		Observations:   ToPgText(u.Observations),
	}, nil
}

// softJSON encodes a soft field for a nullable JSONB column.
func softJSON[T any](s Soft[T]) ([]byte, error) {
	if s.IsZero() {
		return nil, nil
	}
	return s.MarshalJSON()
}

func unitFromRow(row db.Unit) (Unit, error) {
	u := Unit{
		ID:             row.ID.Bytes,
		RegistryID:     row.RegistryID,
		Code:           row.Code,
		OwnershipShare: FromPgText(row.OwnershipShare),
		HolderType:     HolderType(row.HolderType),
		HolderName:     row.HolderName,
		Observations:   row.Observations.String,
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
		LastModifiedAt: row.LastModifiedAt.Time,
	}
	for _, ut := range row.UsageTypes {
		u.UsageTypes = append(u.UsageTypes, UsageType(ut))
	}

	if len(row.CbrRoles) > 0 {
		if err := json.Unmarshal(row.CbrRoles, &u.CBRRoles); err != nil {
			return Unit{}, fmt.Errorf("decode roles: %w", err)
		}
	}
	if err := unmarshalNullable(row.CoHolders, &u.CoHolders); err != nil {
		return Unit{}, fmt.Errorf("decode co-holders: %w", err)
	}
	if err := unmarshalNullable(row.Contact, &u.Contact); err != nil {
		return Unit{}, fmt.Errorf("decode contact: %w", err)
	}
	if err := unmarshalNullable(row.RegistrationProof, &u.RegistrationProof); err != nil {
		return Unit{}, fmt.Errorf("decode registration proof: %w", err)
	}
	if err := unmarshalNullable(row.GoodStandingProof, &u.GoodStandingProof); err != nil {
		return Unit{}, fmt.Errorf("decode good standing proof: %w", err)
	}
	return u, nil
}

func unmarshalNullable(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// RecordImport inserts a finished import into the history.
func (p *PostgresStore) RecordImport(ctx context.Context, run ImportRun) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("parse import id: %w", err)
	}

	err = db.New(p.pool).InsertImportRun(ctx, db.InsertImportRunParams{
		ID:         pgtype.UUID{Bytes: id, Valid: true},
		RegistryID: run.RegistryID,
		FileName:   run.FileName,
		Status:     string(run.Status),
		TotalRows:  int32(run.TotalRows),
		Accepted:   int32(run.Accepted),
		Rejected:   int32(run.Rejected),
		DurationMs: run.DurationMs,
		IpAddress:  ToPgText(run.IPAddress),
		UserAgent:  ToPgText(run.UserAgent),
	})
	if err != nil {
		return fmt.Errorf("record import: %w", err)
	}
	return nil
}

// ListImports returns the most recent imports for a registry.
func (p *PostgresStore) ListImports(ctx context.Context, registryID string, limit int) ([]ImportRun, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := db.New(p.pool).ListImportRuns(ctx, db.ListImportRunsParams{
		RegistryID: registryID,
		Limit:      int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}

	runs := make([]ImportRun, len(rows))
	for i, r := range rows {
		runs[i] = importRunFromRow(r)
	}
	return runs, nil
}

// GetImport returns one recorded import.
func (p *PostgresStore) GetImport(ctx context.Context, importID string) (ImportRun, error) {
	id, err := uuid.Parse(importID)
	if err != nil {
		return ImportRun{}, fmt.Errorf("%w: %s", ErrImportNotFound, importID)
	}
	row, err := db.New(p.pool).GetImportRun(ctx, pgtype.UUID{Bytes: id, Valid: true})
	if errors.Is(err, pgx.ErrNoRows) {
		return ImportRun{}, fmt.Errorf("%w: %s", ErrImportNotFound, importID)
	}
	if err != nil {
		return ImportRun{}, fmt.Errorf("get import: %w", err)
	}
	return importRunFromRow(row), nil
}

// PurgeImports deletes history entries created before cutoff.
func (p *PostgresStore) PurgeImports(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := db.New(p.pool).PurgeImportRuns(ctx, pgtype.Timestamptz{Time: cutoff, Valid: true})
	if err != nil {
		return 0, fmt.Errorf("purge imports: %w", err)
	}
	return n, nil
}

func importRunFromRow(r db.ImportRun) ImportRun {
	return ImportRun{
		ID:         uuid.UUID(r.ID.Bytes).String(),
		RegistryID: r.RegistryID,
		FileName:   r.FileName,
		Status:     ReportStatus(r.Status),
		TotalRows:  int(r.TotalRows),
		Accepted:   int(r.Accepted),
		Rejected:   int(r.Rejected),
		DurationMs: r.DurationMs,
		IPAddress:  r.IpAddress.String,
		UserAgent:  r.UserAgent.String,
		CreatedAt:  r.CreatedAt.Time.In(time.UTC),
	}
}
