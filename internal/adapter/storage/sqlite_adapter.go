package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteAdapter is the embedded single-node store. It runs in WAL mode with a
// busy timeout; with one open connection all writers are serialised.
type SQLiteAdapter struct {
	*sqlStore
}

func NewSQLiteAdapter(db *sql.DB) *SQLiteAdapter {
	return &SQLiteAdapter{sqlStore: newSQLStore(db, dialect{
		name:         "sqlite",
		schema:       sqliteSchema,
		isDuplicate:  isSQLiteDuplicate,
		isForeignKey: isSQLiteForeignKey,
	})}
}

func OpenSQLite(ctx context.Context, path string, maxOpenConns int) (*sql.DB, error) {
	if maxOpenConns < 1 {
		maxOpenConns = 1
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

func isSQLiteDuplicate(err error) bool {
	return isSQLiteConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, "UNIQUE")
}

func isSQLiteForeignKey(err error) bool {
	return isSQLiteConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, "FOREIGN KEY")
}

func isSQLiteConstraint(err error, code int, marker string) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	if liteErr.Code() == code {
		return true
	}
	return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), marker)
}
