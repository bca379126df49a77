package purgatorydb

import (
	"context"

	"github.com/uptrace/bun"

	mghelper "github.com/chainsafe/purgatory-reaper/pkg/pgutil/migrations"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if err := mghelper.CreateSchema(ctx, db, &purgatorystore.DisposalReportDao{}); err != nil {
			return err
		}
		// One report per item; the indexer's ON CONFLICT (item_id) relies on it.
		if err := mghelper.CreateModelUniqueIndexes(ctx, db, &purgatorystore.DisposalReportDao{}, "item_id"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &purgatorystore.DisposalReportDao{}, "item_type,reporter_address")
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, &purgatorystore.DisposalReportDao{})
	})
}
