package migrations_test

import (
	"context"
	"testing"

	"github.com/nerrad567/pilight-gateway/internal/infrastructure/database"
	_ "github.com/nerrad567/pilight-gateway/migrations"
)

func TestSchemaApplies(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for _, table := range []string{"catalog_revisions", "rejections"} {
		var count int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&count); err != nil {
			t.Fatalf("query error: %v", err)
		}
		if count != 1 {
			t.Errorf("table %s missing after Migrate()", table)
		}
	}

	for {
		applied, _, err := db.GetMigrationStatus(ctx)
		if err != nil {
			t.Fatalf("GetMigrationStatus() error = %v", err)
		}
		if len(applied) == 0 {
			break
		}
		if err := db.MigrateDown(ctx); err != nil {
			t.Fatalf("MigrateDown() error = %v", err)
		}
	}
}
