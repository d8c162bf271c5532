// Package sqlcommon implements the FolderDatastore contract on top of
// database/sql. The engine packages (mysql, postgres, sqlite) only supply a
// driver, a placeholder format and the few dialect quirks; everything else,
// including the two-phase compilation of fetch queries, lives here.
package sqlcommon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bookmarkd/bookmarkd/pkg/logger"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
)

var tracer = otel.Tracer("bookmarkd/storage")

// Dialect carries the engine-specific behavior sqlcommon cannot express
// portably.
type Dialect interface {
	// PlaceholderFormat is the statement placeholder style ("?" or "$1").
	PlaceholderFormat() sq.PlaceholderFormat

	// IsDuplicateError reports whether err is the driver's unique-constraint
	// violation.
	IsDuplicateError(err error) bool

	// UseReturning selects RETURNING over LastInsertId for generated ids.
	UseReturning() bool

	// MetricSummaryUpsert is the clause appended to the summary insert to
	// turn it into an insert-or-increment.
	MetricSummaryUpsert() string
}

// Config tunes the connection pool and wires observability.
type Config struct {
	Logger logger.Logger

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type Option func(*Config)

func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func WithMaxOpenConns(n int) Option {
	return func(c *Config) {
		c.MaxOpenConns = n
	}
}

func WithMaxIdleConns(n int) Option {
	return func(c *Config) {
		c.MaxIdleConns = n
	}
}

func WithConnMaxIdleTime(d time.Duration) Option {
	return func(c *Config) {
		c.ConnMaxIdleTime = d
	}
}

func WithConnMaxLifetime(d time.Duration) Option {
	return func(c *Config) {
		c.ConnMaxLifetime = d
	}
}

// Datastore is the SQL-backed FolderDatastore shared by every engine.
type Datastore struct {
	db      *sql.DB
	stbl    sq.StatementBuilderType
	dialect Dialect
	logger  logger.Logger
	tracer  trace.Tracer
}

var _ storage.FolderDatastore = (*Datastore)(nil)

// New wraps an opened connection, applies the pool settings and waits for
// the database to answer a ping before returning.
func New(db *sql.DB, dialect Dialect, opts ...Option) (*Datastore, error) {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoopLogger()
	}

	if cfg.MaxOpenConns != 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime != 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime != 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 1 * time.Minute
	attempt := 1
	err := backoff.Retry(func() error {
		if err := db.PingContext(context.Background()); err != nil {
			cfg.Logger.Info("waiting for database", zap.Int("attempt", attempt))
			attempt++
			return err
		}
		return nil
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database connection: %w", err)
	}

	return &Datastore{
		db:      db,
		stbl:    sq.StatementBuilder.PlaceholderFormat(dialect.PlaceholderFormat()).RunWith(db),
		dialect: dialect,
		logger:  cfg.Logger,
		tracer:  tracer,
	}, nil
}

func (d *Datastore) Close() {
	_ = d.db.Close()
}

// handleError translates driver errors into the storage sentinels callers
// key on.
func (d *Datastore) handleError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return storage.ErrNotFound
	case errors.Is(err, context.Canceled):
		return storage.ErrCancelled
	case d.dialect.IsDuplicateError(err):
		return storage.ErrCollision
	default:
		return fmt.Errorf("sql error: %w", err)
	}
}
