package repository

import (
	"context"
	"database/sql"

	"github.com/crmkit/pipeline-engine/internal/infrastructure/persistence/sqlite"
)

// executor covers both *sql.DB and *sql.Tx so repositories transparently
// join a transaction carried in the context.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getExecutor(ctx context.Context, db *sql.DB) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return db
}
