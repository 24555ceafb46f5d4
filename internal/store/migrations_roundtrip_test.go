package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"sowdiff/api/internal/revdiff"
)

func openTestDatabase(t *testing.T) *sql.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("SOW_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("SOW_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func TestMigrationsRoundTripPostgres(t *testing.T) {
	db := openTestDatabase(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	migrationsDir := filepath.Join("..", "..", "db", "migrations")
	if err := applyDownMigrations(ctx, db, migrationsDir); err != nil {
		t.Fatalf("apply down migrations: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		t.Fatalf("clear schema_migrations: %v", err)
	}
	if err := ApplyMigrations(ctx, db, migrationsDir); err != nil {
		t.Fatalf("apply up migrations (pass 2): %v", err)
	}
}

func TestSnapshotInsertAndLookupPostgres(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()
	store := NewPostgresStore(db)

	first, err := store.InsertSnapshot(ctx, revdiff.Snapshot{
		DocumentID: "sow-1",
		Status:     "draft",
		Fields: revdiff.Fields{
			{Name: "title", Value: "Managed Services"},
			{Name: "status", Value: "draft"},
			{Name: "project_scope", Value: "<p>Phase one</p>"},
		},
	})
	if err != nil {
		t.Fatalf("InsertSnapshot() error = %v", err)
	}
	if first.Version != 1 || first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("unexpected inserted snapshot: %+v", first)
	}

	second, err := store.InsertSnapshot(ctx, revdiff.Snapshot{
		DocumentID: "sow-1",
		Status:     "in_review",
		Fields:     revdiff.Fields{{Name: "title", Value: "Managed Services"}},
	})
	if err != nil {
		t.Fatalf("InsertSnapshot() error = %v", err)
	}
	if second.Version != 2 {
		t.Fatalf("expected version 2, got %d", second.Version)
	}

	loaded, err := store.GetSnapshot(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	names := make([]string, 0, len(loaded.Fields))
	for _, field := range loaded.Fields {
		names = append(names, field.Name)
	}
	if strings.Join(names, ",") != "title,status,project_scope" {
		t.Fatalf("field order not preserved: %v", names)
	}

	if _, err := store.GetSnapshot(ctx, "snap_missing"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}

	_, err = db.ExecContext(ctx, `UPDATE sow_snapshots SET status = 'approved' WHERE id = $1`, first.ID)
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.SQLState() != "55000" {
		t.Fatalf("expected immutability guard to reject UPDATE, got %v", err)
	}
}

func resetPublicSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	return err
}

func applyDownMigrations(ctx context.Context, db *sql.DB, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return err
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.down\.sql$`)
	type migration struct {
		version string
		path    string
	}
	downs := make([]migration, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		downs = append(downs, migration{version: match[1], path: filepath.Join(migrationsDir, entry.Name())})
	}
	sort.Slice(downs, func(i, j int) bool {
		return downs[i].version > downs[j].version
	})

	for _, down := range downs {
		sqlBytes, err := os.ReadFile(down.path)
		if err != nil {
			return err
		}
		sqlText := strings.TrimSpace(string(sqlBytes))
		if sqlText == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, sqlText); err != nil {
			return err
		}
	}
	return nil
}
