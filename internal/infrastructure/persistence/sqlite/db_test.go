package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	_, err = sqlDB.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	return NewDB(sqlDB, zap.NewNop())
}

func countItems(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM items").Scan(&n))
	return n
}

func insertItem(ctx context.Context, db *DB, name string) error {
	tx := ExtractTx(ctx)
	if tx == nil {
		return fmt.Errorf("no transaction in context")
	}
	_, err := tx.ExecContext(ctx, "INSERT INTO items (name) VALUES (?)", name)
	return err
}

func TestWithTransactionCommits(t *testing.T) {
	db := newTestDB(t)

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		return insertItem(ctx, db, "first")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countItems(t, db))
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db := newTestDB(t)

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		if err := insertItem(ctx, db, "doomed"); err != nil {
			return err
		}
		return fmt.Errorf("late failure")
	})
	require.Error(t, err)
	assert.Zero(t, countItems(t, db))
}

func TestWithTransactionRollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)

	assert.Panics(t, func() {
		_ = db.WithTransaction(context.Background(), func(ctx context.Context) error {
			if err := insertItem(ctx, db, "doomed"); err != nil {
				return err
			}
			panic("boom")
		})
	})
	assert.Zero(t, countItems(t, db))
}

func TestWithTransactionNestedReusesTransaction(t *testing.T) {
	db := newTestDB(t)

	err := db.WithTransaction(context.Background(), func(outer context.Context) error {
		outerTx := ExtractTx(outer)
		return db.WithTransaction(outer, func(inner context.Context) error {
			assert.Same(t, outerTx, ExtractTx(inner))
			return insertItem(inner, db, "nested")
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countItems(t, db))
}

func TestExtractTxWithoutTransaction(t *testing.T) {
	assert.Nil(t, ExtractTx(context.Background()))
}
