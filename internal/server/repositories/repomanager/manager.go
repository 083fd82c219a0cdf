package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/myhealthdata/internal/dbx"
	"github.com/dmitrijs2005/myhealthdata/internal/server/repositories/documents"
	"github.com/dmitrijs2005/myhealthdata/internal/server/repositories/recordtypes"
	"github.com/dmitrijs2005/myhealthdata/internal/server/repositories/shares"
	"github.com/dmitrijs2005/myhealthdata/internal/server/repositories/users"
	"github.com/dmitrijs2005/myhealthdata/internal/server/repositories/zones"
)

// RepositoryManager vends repositories bound to a handle or a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Zones(db dbx.DBTX) zones.Repository
	RecordTypes(db dbx.DBTX) recordtypes.Repository
	Documents(db dbx.DBTX) documents.Repository
	Shares(db dbx.DBTX) shares.Repository
}
