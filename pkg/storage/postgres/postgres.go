// Package postgres provides the PostgreSQL-backed FolderDatastore.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/bookmarkd/bookmarkd/pkg/storage/sqlcommon"
)

const pgUniqueViolation = "23505"

type dialect struct{}

func (dialect) PlaceholderFormat() sq.PlaceholderFormat {
	return sq.Dollar
}

func (dialect) IsDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (dialect) UseReturning() bool {
	return true
}

func (dialect) MetricSummaryUpsert() string {
	return "ON CONFLICT (folder_id, actor_id, metric_type) DO UPDATE SET total = folder_metric_summary.total + excluded.total"
}

// New opens a PostgreSQL connection for the given URI.
func New(uri string, opts ...sqlcommon.Option) (*sqlcommon.Datastore, error) {
	db, err := sql.Open("pgx", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	return sqlcommon.New(db, dialect{}, opts...)
}
