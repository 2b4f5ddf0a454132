package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/docbatch/internal/common"
)

// DB is an ent SQL driver over either SQLite or a pgx pool.
type DB struct {
	Driver  *entsql.Driver
	Dialect string
	pool    *pgxpool.Pool
	logger  *slog.Logger
}

// Open connects to the configured store and creates missing tables.
func Open(ctx context.Context, cfg common.StoreConfig, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		db  *DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = openPostgres(ctx, cfg, logger)
	case "sqlite", "":
		db, err = openSQLite(cfg, logger)
	default:
		return nil, common.NewAppError("STORE_ERROR", "unsupported driver "+cfg.Driver, common.ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("successfully connected to database", "driver", db.Dialect)
	return db, nil
}

func openPostgres(ctx context.Context, cfg common.StoreConfig, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, common.NewAppError("STORE_ERROR", "parse dsn", err)
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "docbatch"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, common.NewAppError("STORE_ERROR", "connect", err)
	}

	// Wrap pool as *sql.DB for the ent driver
	sqlDB := stdlib.OpenDBFromPool(pool)
	return &DB{
		Driver:  entsql.OpenDB(dialect.Postgres, sqlDB),
		Dialect: dialect.Postgres,
		pool:    pool,
		logger:  logger,
	}, nil
}

func openSQLite(cfg common.StoreConfig, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "sqlite", "dsn", cfg.DSN)
	sqlDB, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, common.NewAppError("STORE_ERROR", "open sqlite", err)
	}
	// one writer; also keeps ":memory:" databases on a single connection
	sqlDB.SetMaxOpenConns(1)
	if cfg.MaxConnLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
	return &DB{
		Driver:  entsql.OpenDB(dialect.SQLite, sqlDB),
		Dialect: dialect.SQLite,
		logger:  logger,
	}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS batches (
		id          TEXT PRIMARY KEY,
		label       TEXT NOT NULL DEFAULT '',
		concurrency INTEGER NOT NULL,
		total       INTEGER NOT NULL,
		state       TEXT NOT NULL,
		succeeded   INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		cancelled   INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		finished_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS job_outcomes (
		job_id          TEXT PRIMARY KEY,
		batch_id        TEXT NOT NULL,
		seq             INTEGER NOT NULL,
		operation       TEXT NOT NULL,
		inputs          TEXT NOT NULL,
		output          TEXT NOT NULL,
		state           TEXT NOT NULL,
		artifact        TEXT NOT NULL DEFAULT '',
		artifacts       TEXT NOT NULL DEFAULT '[]',
		failure_kind    TEXT NOT NULL DEFAULT '',
		failure_message TEXT NOT NULL DEFAULT '',
		started_at      TEXT,
		finished_at     TEXT NOT NULL,
		duration_ms     BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS job_outcomes_batch_seq ON job_outcomes (batch_id, seq)`,
}

// Migrate creates the history tables when they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := db.Driver.Exec(ctx, stmt, []any{}, nil); err != nil {
			db.logger.Error("failed to migrate database", "error", err)
			return common.NewAppError("STORE_ERROR", "migrate", err)
		}
	}
	return nil
}

// Close closes the database connections gracefully
func (db *DB) Close() {
	db.logger.Info("closing database connections")
	if err := db.Driver.Close(); err != nil {
		db.logger.Error("failed to close ent driver", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
	db.logger.Info("database connections closed")
}

// HealthCheck pings using database/sql to catch DSN issues early.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	db.logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.Driver.DB().PingContext(ctx); err != nil {
		db.logger.Error("database ping failed", "error", err)
		return common.NewAppError("STORE_ERROR", "ping", err)
	}
	db.logger.Debug("database ping successful")
	return nil
}
