package pgutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/purgatory-reaper/pkg/config"
)

const (
	testImage    = "postgres:15-alpine"
	testDatabase = "purgatory_test"
	testUser     = "reaper"
	testPassword = "reaper"
)

// RequireDocker skips the test when no Docker daemon socket is reachable.
func RequireDocker(t *testing.T) {
	t.Helper()
	if host := os.Getenv("DOCKER_HOST"); host != "" {
		return
	}
	if _, err := os.Stat("/var/run/docker.sock"); err != nil {
		t.Skip("docker is not available, skipping database test")
	}
}

// SetupTestDB starts a disposable PostgreSQL container and returns a connection
// plus a cleanup func that closes it and terminates the container.
func SetupTestDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()
	RequireDocker(t)
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		testImage,
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	terminate := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	}

	host, err := container.Host(ctx)
	if err != nil {
		terminate()
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		terminate()
		t.Fatalf("container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		User:     testUser,
		Password: testPassword,
		Database: testDatabase,
		SSLMode:  "disable",
	}

	// The log line can precede the listener by a few hundred milliseconds.
	var db *bun.DB
	backoff := 100 * time.Millisecond
	for attempt := 1; ; attempt++ {
		db, err = ConnectDB(ctx, cfg)
		if err == nil {
			break
		}
		if attempt == 8 {
			terminate()
			t.Fatalf("connect to test database after %d attempts: %v", attempt, err)
		}
		time.Sleep(backoff)
		backoff *= 2
	}

	return db, func() {
		_ = db.Close()
		terminate()
	}
}

// SetupMigratedTestDB is SetupTestDB followed by applying every migration in ms.
func SetupMigratedTestDB(t *testing.T, ms *migrate.Migrations) (*bun.DB, func()) {
	t.Helper()
	db, cleanup := SetupTestDB(t)

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, ms)
	if err := migrator.Init(ctx); err != nil {
		cleanup()
		t.Fatalf("init migrations: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		cleanup()
		t.Fatalf("apply migrations: %v", err)
	}
	return db, cleanup
}

// AssertTableExists fails the test unless tableName exists in the public schema.
func AssertTableExists(t *testing.T, db bun.IDB, tableName string) {
	t.Helper()
	if !relationExists(t, db, "SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = ?", tableName) {
		t.Errorf("table %s does not exist", tableName)
	}
}

// AssertTableNotExists fails the test if tableName exists in the public schema.
func AssertTableNotExists(t *testing.T, db bun.IDB, tableName string) {
	t.Helper()
	if relationExists(t, db, "SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = ?", tableName) {
		t.Errorf("table %s should not exist", tableName)
	}
}

// AssertIndexExists fails the test unless indexName exists in the public schema.
func AssertIndexExists(t *testing.T, db bun.IDB, indexName string) {
	t.Helper()
	if !relationExists(t, db, "SELECT 1 FROM pg_indexes WHERE schemaname = 'public' AND indexname = ?", indexName) {
		t.Errorf("index %s does not exist", indexName)
	}
}

func relationExists(t *testing.T, db bun.IDB, query, name string) bool {
	t.Helper()
	var exists bool
	err := db.NewSelect().
		ColumnExpr("EXISTS ("+query+")", name).
		Scan(context.Background(), &exists)
	if err != nil {
		t.Fatalf("check %s: %v", name, err)
	}
	return exists
}
