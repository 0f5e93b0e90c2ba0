package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophsubmit/internal/dbx"
	"github.com/dmitrijs2005/gophsubmit/internal/server/repositories/files"
	"github.com/dmitrijs2005/gophsubmit/internal/server/repositories/submissions"
)

// RepositoryManager vends repositories bound to a *sql.DB or a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Files(db dbx.DBTX) files.Repository
	Submissions(db dbx.DBTX) submissions.Repository
}
