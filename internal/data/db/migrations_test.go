package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "migrations must be contiguous from 1")
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
	assert.Equal(t, "kv_store", migrations[0].Name)
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name      string
		filename  string
		version   int
		migration string
		direction string
		wantErr   bool
	}{
		{name: "up", filename: "0001_kv_store.up.sql", version: 1, migration: "kv_store", direction: "up"},
		{name: "down", filename: "0012_add_index.down.sql", version: 12, migration: "add_index", direction: "down"},
		{name: "missing direction", filename: "0001_kv_store.sql", wantErr: true},
		{name: "missing name", filename: "0001.up.sql", wantErr: true},
		{name: "zero version", filename: "0000_init.up.sql", wantErr: true},
		{name: "non numeric version", filename: "abcd_init.up.sql", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, name, direction, err := parseFilename(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.migration, name)
			assert.Equal(t, tt.direction, direction)
		})
	}
}

func TestOpen_AppliesMigrationsOnce(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	database, err := Open(dir, DefaultOpenOptions())
	require.NoError(t, err)
	require.NoError(t, database.Close())

	// Reopening must not re-run applied migrations.
	database, err = Open(dir, DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	var count int
	require.NoError(t, database.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count))

	migrations, err := loadMigrations()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)

	var table string
	err = database.Conn().QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='kv_store'").Scan(&table)
	require.NoError(t, err)
	assert.Equal(t, "kv_store", table)
}
