package purgatorydb

import (
	"context"

	"github.com/uptrace/bun"

	mghelper "github.com/chainsafe/purgatory-reaper/pkg/pgutil/migrations"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if err := mghelper.CreateSchema(ctx, db, &purgatorystore.RunLogDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &purgatorystore.RunLogDao{}, "run_timestamp")
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, &purgatorystore.RunLogDao{})
	})
}
