package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const listUnitCodes = `-- name: ListUnitCodes :many
SELECT code FROM units
WHERE registry_id = $1
ORDER BY code
`

func (q *Queries) ListUnitCodes(ctx context.Context, registryID string) ([]string, error) {
	rows, err := q.db.Query(ctx, listUnitCodes, registryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		items = append(items, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertUnit = `-- name: UpsertUnit :one
INSERT INTO units (
    id, registry_id, code, code_key, ownership_share, holder_type, holder_name,
    usage_types, cbr_roles, co_holders, contact, observations
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
)
ON CONFLICT (registry_id, code_key) DO UPDATE SET
    code             = EXCLUDED.code,
    ownership_share  = EXCLUDED.ownership_share,
    holder_type      = EXCLUDED.holder_type,
    holder_name      = EXCLUDED.holder_name,
    usage_types      = EXCLUDED.usage_types,
    cbr_roles        = EXCLUDED.cbr_roles,
    co_holders       = EXCLUDED.co_holders,
    contact          = EXCLUDED.contact,
    observations     = EXCLUDED.observations,
    updated_at       = now(),
    last_modified_at = now()
RETURNING id, registry_id, code, ownership_share::text, holder_type, holder_name,
    usage_types, cbr_roles, co_holders, contact, registration_proof,
    good_standing_proof, observations, created_at, updated_at, last_modified_at
`

type UpsertUnitParams struct {
	ID             pgtype.UUID
	RegistryID     string
	Code           string
	CodeKey        string
	OwnershipShare pgtype.Numeric
	HolderType     string
	HolderName     string
	UsageTypes     []string
	CbrRoles       []byte
	CoHolders      []byte
	Contact        []byte
	Observations   pgtype.Text
}

func (q *Queries) UpsertUnit(ctx context.Context, arg UpsertUnitParams) (Unit, error) {
	row := q.db.QueryRow(ctx, upsertUnit,
		arg.ID,
		arg.RegistryID,
		arg.Code,
		arg.CodeKey,
		arg.OwnershipShare,
		arg.HolderType,
		arg.HolderName,
		arg.UsageTypes,
		arg.CbrRoles,
		arg.CoHolders,
		arg.Contact,
		arg.Observations,
	)
	var i Unit
	err := row.Scan(
		&i.ID,
		&i.RegistryID,
		&i.Code,
		&i.OwnershipShare,
		&i.HolderType,
		&i.HolderName,
		&i.UsageTypes,
		&i.CbrRoles,
		&i.CoHolders,
		&i.Contact,
		&i.RegistrationProof,
		&i.GoodStandingProof,
		&i.Observations,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.LastModifiedAt,
	)
	return i, err
}
