// Package pgutil wires bun to PostgreSQL through pgdriver.
package pgutil

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"github.com/chainsafe/purgatory-reaper/pkg/config"
)

const (
	dialTimeout  = 5 * time.Second
	queryTimeout = 30 * time.Second
	maxOpenConns = 10
)

// OpenDB returns a pooled handle to the configured database without dialing
// it. Connections are made on first use, so a database that is down at
// startup surfaces as query errors in the callers' retry loops.
func OpenDB(cfg *config.DatabaseConfig) *bun.DB {
	// Functional options escape special characters in credentials.
	connector := pgdriver.NewConnector(
		pgdriver.WithNetwork("tcp"),
		pgdriver.WithAddr(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithDatabase(cfg.Database),
		pgdriver.WithInsecure(cfg.SSLMode == "disable"),
		pgdriver.WithDialTimeout(dialTimeout),
		pgdriver.WithReadTimeout(queryTimeout),
		pgdriver.WithWriteTimeout(queryTimeout),
		pgdriver.WithApplicationName("purgatory-reaper"),
	)

	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(maxOpenConns)

	return bun.NewDB(sqldb, pgdialect.New())
}

// ConnectDB is OpenDB followed by a ping; it fails when the database is
// unreachable.
func ConnectDB(ctx context.Context, cfg *config.DatabaseConfig) (*bun.DB, error) {
	db := OpenDB(cfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", cfg.Database, err)
	}
	return db, nil
}

// OpenLogged is OpenDB for long-running processes: the initial ping result is
// only logged, never returned.
func OpenLogged(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) *bun.DB {
	db := OpenDB(cfg)
	fields := []zap.Field{
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	}

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Warn("Database unreachable at startup, will retry on use", append(fields, zap.Error(err))...)
	} else {
		logger.Info("Database connection established", fields...)
	}
	return db
}
