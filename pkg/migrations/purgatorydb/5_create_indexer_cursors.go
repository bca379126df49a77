package purgatorydb

import (
	"context"

	"github.com/uptrace/bun"

	mghelper "github.com/chainsafe/purgatory-reaper/pkg/pgutil/migrations"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		return mghelper.CreateSchema(ctx, db, &purgatorystore.CursorDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, &purgatorystore.CursorDao{})
	})
}
