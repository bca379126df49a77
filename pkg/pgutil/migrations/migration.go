// Package migrations holds bun migration helpers shared by the schema packages
// and the migrate command.
package migrations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// Commands accepted by Run.
const (
	CmdInit   = "init"
	CmdUp     = "up"
	CmdDown   = "down"
	CmdStatus = "status"
)

// ErrUnknownCommand is returned by Run for anything other than the Cmd* values.
var ErrUnknownCommand = errors.New("unknown migration command")

// CreateSchema creates tables for models if they do not exist yet.
func CreateSchema(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

// DropTables drops the tables of models, cascading to dependent objects.
func DropTables(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		if _, err := db.NewDropTable().
			Model(model).
			IfExists().
			Cascade().
			Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", model, err)
		}
	}
	return nil
}

// CreateModelIndexes creates one index per entry of specs on the model's table.
// An entry may name several comma separated columns for a composite index;
// index names are idx_<table>_<col1>_<col2>.
func CreateModelIndexes(ctx context.Context, db bun.IDB, model any, specs ...string) error {
	return createIndexes(ctx, db, model, false, specs)
}

// CreateModelUniqueIndexes is CreateModelIndexes with UNIQUE indexes.
func CreateModelUniqueIndexes(ctx context.Context, db bun.IDB, model any, specs ...string) error {
	return createIndexes(ctx, db, model, true, specs)
}

func createIndexes(ctx context.Context, db bun.IDB, model any, unique bool, specs []string) error {
	for _, spec := range specs {
		name, cols, err := indexSpec(db, model, spec)
		if err != nil {
			return err
		}
		q := db.NewCreateIndex().
			Model(model).
			Index(name).
			Column(cols...).
			IfNotExists()
		if unique {
			q = q.Unique()
		}
		if _, err = q.Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", name, err)
		}
	}
	return nil
}

// DropModelIndexes drops indexes created by CreateModelIndexes.
func DropModelIndexes(ctx context.Context, db bun.IDB, model any, specs ...string) error {
	for _, spec := range specs {
		name, _, err := indexSpec(db, model, spec)
		if err != nil {
			return err
		}
		if _, err = db.NewDropIndex().
			Model(model).
			Index(name).
			IfExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("drop index %s: %w", name, err)
		}
	}
	return nil
}

// IndexName returns the generated index name for a column spec.
func IndexName(db bun.IDB, model any, spec string) (string, error) {
	name, _, err := indexSpec(db, model, spec)
	return name, err
}

func indexSpec(db bun.IDB, model any, spec string) (string, []string, error) {
	if model == nil {
		return "", nil, fmt.Errorf("model cannot be nil")
	}
	table := db.NewCreateIndex().Model(model).GetTableName()
	if table == "" {
		return "", nil, fmt.Errorf("failed to resolve table name for model %T", model)
	}

	cols := strings.Split(spec, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	table = strings.NewReplacer(`"`, "", ".", "_").Replace(table)
	return fmt.Sprintf("idx_%s_%s", table, strings.Join(cols, "_")), cols, nil
}

// Run executes one migration command against migrator.
func Run(ctx context.Context, migrator *migrate.Migrator, logger *zap.Logger, command string) error {
	switch command {
	case CmdInit:
		if err := migrator.Init(ctx); err != nil {
			return err
		}
		logger.Info("Migration table created")
		return nil

	case CmdUp:
		return withLock(ctx, migrator, logger, func() error {
			group, err := migrator.Migrate(ctx)
			if err != nil {
				return err
			}
			if group.IsZero() {
				logger.Info("No new migrations to run, database is up to date")
			} else {
				logger.Info("Migrated", zap.String("group", group.String()))
			}
			return nil
		})

	case CmdDown:
		return withLock(ctx, migrator, logger, func() error {
			group, err := migrator.Rollback(ctx)
			if err != nil {
				return err
			}
			if group.IsZero() {
				logger.Info("No migrations to roll back")
			} else {
				logger.Info("Rolled back", zap.String("group", group.String()))
			}
			return nil
		})

	case CmdStatus:
		ms, err := migrator.MigrationsWithStatus(ctx)
		if err != nil {
			return err
		}
		logger.Info("Migration status",
			zap.Stringer("migrations", ms),
			zap.Stringer("unapplied", ms.Unapplied()),
			zap.Stringer("last_group", ms.LastGroup()))
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
}

func withLock(ctx context.Context, migrator *migrate.Migrator, logger *zap.Logger, fn func() error) error {
	if err := migrator.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if err := migrator.Unlock(ctx); err != nil {
			logger.Warn("Failed to release migration lock", zap.Error(err))
		}
	}()
	return fn()
}
