// Package repomanager wires repository constructors and database
// migrations behind one interface so services stay decoupled from the
// concrete database.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/propertyhub/docgate/internal/dbx"
	"github.com/propertyhub/docgate/internal/server/repositories/documents"
	"github.com/propertyhub/docgate/internal/server/repositories/sessions"
	"github.com/propertyhub/docgate/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Documents(db dbx.DBTX) documents.Repository
}
