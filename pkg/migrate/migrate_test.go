package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestRunEmbeddedMigrationsOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "migrate.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	require.NoError(t, Run(ctx, sqlDB, GooseDialect("sqlite"), "", "up"))

	_, err = sqlDB.ExecContext(ctx,
		"INSERT INTO storage_entries (namespace, entry_key, value, updated_at) VALUES ('c1', 'cart', '[]', CURRENT_TIMESTAMP)")
	require.NoError(t, err)

	require.NoError(t, MigrateToVersion(ctx, sqlDB, "sqlite3", "", "0"))
	_, err = sqlDB.ExecContext(ctx, "SELECT 1 FROM storage_entries")
	require.Error(t, err, "down migration should drop the table")
}

func TestRunRequiresDB(t *testing.T) {
	require.Error(t, Run(context.Background(), nil, "postgres", "", "up"))
}

func TestGooseDialect(t *testing.T) {
	require.Equal(t, "sqlite3", GooseDialect("sqlite"))
	require.Equal(t, "postgres", GooseDialect("postgres"))
}

func TestCreateThenValidate(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Storage TTL!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_storage_ttl.sql"), path)
	require.NoError(t, ValidateDir(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("-- nothing"), 0o644))
	require.Error(t, ValidateDir(dir))
}

func TestShippedMigrationsValidate(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}
