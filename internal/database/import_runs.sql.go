package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const insertImportRun = `-- name: InsertImportRun :exec
INSERT INTO import_runs (
    id, registry_id, file_name, status, total_rows, accepted, rejected,
    duration_ms, ip_address, user_agent
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
)
`

type InsertImportRunParams struct {
	ID         pgtype.UUID
	RegistryID string
	FileName   string
	Status     string
	TotalRows  int32
	Accepted   int32
	Rejected   int32
	DurationMs int64
	IpAddress  pgtype.Text
	UserAgent  pgtype.Text
}

func (q *Queries) InsertImportRun(ctx context.Context, arg InsertImportRunParams) error {
	_, err := q.db.Exec(ctx, insertImportRun,
		arg.ID,
		arg.RegistryID,
		arg.FileName,
		arg.Status,
		arg.TotalRows,
		arg.Accepted,
		arg.Rejected,
		arg.DurationMs,
		arg.IpAddress,
		arg.UserAgent,
	)
	return err
}

const getImportRun = `-- name: GetImportRun :one
SELECT id, registry_id, file_name, status, total_rows, accepted, rejected,
    duration_ms, ip_address, user_agent, created_at
FROM import_runs
WHERE id = $1
`

func (q *Queries) GetImportRun(ctx context.Context, id pgtype.UUID) (ImportRun, error) {
	row := q.db.QueryRow(ctx, getImportRun, id)
	var i ImportRun
	err := row.Scan(
		&i.ID,
		&i.RegistryID,
		&i.FileName,
		&i.Status,
		&i.TotalRows,
		&i.Accepted,
		&i.Rejected,
		&i.DurationMs,
		&i.IpAddress,
		&i.UserAgent,
		&i.CreatedAt,
	)
	return i, err
}

const listImportRuns = `-- name: ListImportRuns :many
SELECT id, registry_id, file_name, status, total_rows, accepted, rejected,
    duration_ms, ip_address, user_agent, created_at
FROM import_runs
WHERE registry_id = $1
ORDER BY created_at DESC
LIMIT $2
`

type ListImportRunsParams struct {
	RegistryID string
	Limit      int32
}

func (q *Queries) ListImportRuns(ctx context.Context, arg ListImportRunsParams) ([]ImportRun, error) {
	rows, err := q.db.Query(ctx, listImportRuns, arg.RegistryID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ImportRun
	for rows.Next() {
		var i ImportRun
		if err := rows.Scan(
			&i.ID,
			&i.RegistryID,
			&i.FileName,
			&i.Status,
			&i.TotalRows,
			&i.Accepted,
			&i.Rejected,
			&i.DurationMs,
			&i.IpAddress,
			&i.UserAgent,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const purgeImportRuns = `-- name: PurgeImportRuns :execrows
DELETE FROM import_runs
WHERE created_at < $1
`

func (q *Queries) PurgeImportRuns(ctx context.Context, before pgtype.Timestamptz) (int64, error) {
	result, err := q.db.Exec(ctx, purgeImportRuns, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
