package purgatorydb

import (
	"context"

	"github.com/uptrace/bun"

	mghelper "github.com/chainsafe/purgatory-reaper/pkg/pgutil/migrations"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if err := mghelper.CreateSchema(ctx, db, &purgatorystore.CollectionReputationDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &purgatorystore.CollectionReputationDao{},
			"malicious_count", "spam_count", "reputation_score")
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, &purgatorystore.CollectionReputationDao{})
	})
}
