package purgatorydb

import (
	"context"
	"testing"

	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/purgatory-reaper/pkg/pgutil"
)

func TestMigrations_ApplyAndRollback(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if group.IsZero() {
		t.Fatal("expected migrations to run, but none were applied")
	}

	for _, table := range []string{
		"holdings",
		"disposal_reports",
		"collection_reputation",
		"reaper_runs",
		"indexer_cursors",
		"bun_migrations",
	} {
		pgutil.AssertTableExists(t, db, table)
	}

	for _, index := range []string{
		"idx_holdings_status_deposit_timestamp",
		"idx_holdings_depositor",
		"idx_holdings_item_type",
		"idx_disposal_reports_item_id",
		"idx_disposal_reports_item_type_reporter_address",
		"idx_collection_reputation_malicious_count",
		"idx_reaper_runs_run_timestamp",
	} {
		pgutil.AssertIndexExists(t, db, index)
	}

	if _, err = migrator.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}
	pgutil.AssertTableNotExists(t, db, "holdings")
	pgutil.AssertTableNotExists(t, db, "indexer_cursors")
}
