// Package mysql provides the MySQL-backed FolderDatastore.
package mysql

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"

	"github.com/bookmarkd/bookmarkd/pkg/storage/sqlcommon"
)

const mysqlDuplicateEntry = 1062

type dialect struct{}

func (dialect) PlaceholderFormat() sq.PlaceholderFormat {
	return sq.Question
}

func (dialect) IsDuplicateError(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func (dialect) UseReturning() bool {
	return false
}

func (dialect) MetricSummaryUpsert() string {
	return "ON DUPLICATE KEY UPDATE total = total + VALUES(total)"
}

// New opens a MySQL connection for the given DSN. The DSN must carry
// parseTime=true so DATETIME columns scan into time.Time.
func New(uri string, opts ...sqlcommon.Option) (*sqlcommon.Datastore, error) {
	db, err := sql.Open("mysql", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}
	return sqlcommon.New(db, dialect{}, opts...)
}
