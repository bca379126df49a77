package purgatorydb

import (
	"context"

	"github.com/uptrace/bun"

	mghelper "github.com/chainsafe/purgatory-reaper/pkg/pgutil/migrations"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore"
)

// holdingIndexes back the reaper's expiry scan and the per-depositor lookup.
var holdingIndexes = []string{"status,deposit_timestamp", "depositor", "item_type"}

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if err := mghelper.CreateSchema(ctx, db, &purgatorystore.HoldingDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &purgatorystore.HoldingDao{}, holdingIndexes...)
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, &purgatorystore.HoldingDao{})
	})
}
