// Package dbtest opens throwaway in-memory sqlite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mind-engage/mindengage-quiz/internal/db"
)

var seq atomic.Int64

// Open returns a fresh schema-initialised database that is closed when t ends.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return dbh
}

// Account inserts an account with the given role directly and returns its id.
func Account(t testing.TB, dbh *sql.DB, username, role string) int64 {
	t.Helper()
	ctx := context.Background()
	var id int64
	if err := dbh.QueryRowContext(ctx,
		`INSERT INTO accounts (username, password_hash, created_at) VALUES ($1,'x',0) RETURNING id`,
		username).Scan(&id); err != nil {
		t.Fatalf("insert account %s: %v", username, err)
	}
	if _, err := dbh.ExecContext(ctx,
		`INSERT INTO role_profiles (account_id, role) VALUES ($1,$2)`, id, role); err != nil {
		t.Fatalf("insert role profile %s: %v", username, err)
	}
	return id
}

// Count runs a SELECT COUNT(*) query and returns the result.
func Count(t testing.TB, dbh *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := dbh.QueryRowContext(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}
