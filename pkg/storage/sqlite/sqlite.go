// Package sqlite provides the SQLite-backed FolderDatastore, suited to
// single-node deployments and local development.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/bookmarkd/bookmarkd/pkg/storage/sqlcommon"
)

type dialect struct{}

func (dialect) PlaceholderFormat() sq.PlaceholderFormat {
	return sq.Question
}

func (dialect) IsDuplicateError(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func (dialect) UseReturning() bool {
	return true
}

func (dialect) MetricSummaryUpsert() string {
	return "ON CONFLICT (folder_id, actor_id, metric_type) DO UPDATE SET total = total + excluded.total"
}

// New opens an SQLite database at the given path (or ":memory:").
func New(uri string, opts ...sqlcommon.Option) (*sqlcommon.Datastore, error) {
	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent pipelines.
	db.SetMaxOpenConns(1)

	return sqlcommon.New(db, dialect{}, opts...)
}
