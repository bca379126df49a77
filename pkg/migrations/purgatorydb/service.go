// Package purgatorydb holds all the migrations for the purgatory database
package purgatorydb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the purgatory database
var Migrations = migrate.NewMigrations()
