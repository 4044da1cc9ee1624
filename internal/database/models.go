package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Unit struct {
	ID                pgtype.UUID
	RegistryID        string
	Code              string
	OwnershipShare    pgtype.Text
	HolderType        string
	HolderName        string
	UsageTypes        []string
	CbrRoles          []byte
	CoHolders         []byte
	Contact           []byte
	RegistrationProof []byte
	GoodStandingProof []byte
	Observations      pgtype.Text
	CreatedAt         pgtype.Timestamptz
	UpdatedAt         pgtype.Timestamptz
	LastModifiedAt    pgtype.Timestamptz
}

type ImportRun struct {
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
	CreatedAt  pgtype.Timestamptz
}
