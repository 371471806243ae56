package repomanager

import (
	"context"
	"database/sql"

	"github.com/expensebook/expensebook/internal/dbx"
	"github.com/expensebook/expensebook/internal/server/repositories/friends"
	"github.com/expensebook/expensebook/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to a DBTX, so services can
// use the same repository inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Friends(db dbx.DBTX) friends.Repository
}
