package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	mysqlErrDuplicateEntry   = 1062
	mysqlErrRowIsReferenced  = 1451
	mysqlErrNoReferencedRow  = 1452
	mysqlErrRowIsReferenced2 = 1217
)

type MySQLAdapter struct {
	*sqlStore
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{sqlStore: newSQLStore(db, dialect{
		name:         "mysql",
		schema:       mysqlSchema,
		forUpdate:    " FOR UPDATE",
		isDuplicate:  isMySQLDuplicate,
		isForeignKey: isMySQLForeignKey,
	})}
}

// OpenMySQL opens a pooled connection and verifies it. The DSN should carry
// parseTime and explicit timeouts so no call hangs on a dead server.
func OpenMySQL(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func isMySQLDuplicate(err error) bool {
	return isMySQLError(err, mysqlErrDuplicateEntry)
}

func isMySQLForeignKey(err error) bool {
	return isMySQLError(err, mysqlErrRowIsReferenced, mysqlErrRowIsReferenced2, mysqlErrNoReferencedRow)
}

func isMySQLError(err error, numbers ...uint16) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	for _, n := range numbers {
		if myErr.Number == n {
			return true
		}
	}
	return false
}
