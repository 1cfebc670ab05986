package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/lootmarket-backend/pkg/migrate"
)

func TestMigrationDirectoryIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
	require.NoError(t, migrate.ValidateEmbedded())
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	write := func(t *testing.T, dir, name, body string) {
		t.Helper()
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	const ok = "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"

	t.Run("bad name", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "add_things.sql", ok)
		assert.ErrorContains(t, migrate.ValidateDir(dir), "YYYYMMDDHHMMSS")
	})
	t.Run("duplicate version", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "20260101000000_a.sql", ok)
		write(t, dir, "20260101000000_b.sql", ok)
		assert.ErrorContains(t, migrate.ValidateDir(dir), "share version")
	})
	t.Run("sections out of order", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "20260101000000_a.sql", "-- +goose Down\n-- +goose Up\n")
		assert.ErrorContains(t, migrate.ValidateDir(dir), "precedes")
	})
	t.Run("empty", func(t *testing.T) {
		assert.Error(t, migrate.ValidateDir(t.TempDir()))
	})
}

func TestOrdersMigrationConstrainsStatus(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_orders_table.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"'pending', 'processing', 'delivered', 'refunded', 'cancelled'",
		"CREATE INDEX IF NOT EXISTS idx_orders_user_created",
		"quantity INTEGER NOT NULL CHECK (quantity > 0)",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestUpAppliesOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_up?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migrate.Up(context.Background(), sqlDB, migrate.DialectFor("sqlite")))

	for _, table := range []string{"users", "categories", "games", "listings", "orders", "outbox_events", "notifications"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}

	var slugs []string
	require.NoError(t, conn.Raw("SELECT slug FROM categories ORDER BY sort_order").Scan(&slugs).Error)
	assert.Equal(t, []string{"gold", "items", "accounts", "boosting", "skins"}, slugs)
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Listing Tags!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_listing_tags.sql"))
	require.NoError(t, migrate.ValidateDir(dir))

	_, err = migrate.CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}

func TestCreateSQLMigrationStaysAheadOfNewestVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "29991231235958_from_the_future.sql"),
		[]byte("-- +goose Up\n-- +goose Down\n"), 0o644))

	next, err := migrate.CreateSQLMigration(dir, "next")
	require.NoError(t, err)
	assert.Equal(t, "29991231235959_next.sql", filepath.Base(next))

	after, err := migrate.CreateSQLMigration(dir, "after")
	require.NoError(t, err)
	assert.Equal(t, "30000101000000_after.sql", filepath.Base(after))
	require.NoError(t, migrate.ValidateDir(dir))
}
