package stores

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suevga/suvega-darkstore-sub001/internal/data/db"
)

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, IsNotFoundError(sql.ErrNoRows))
	assert.True(t, IsNotFoundError(fmt.Errorf("wrapped: %w", sql.ErrNoRows)))
	assert.False(t, IsNotFoundError(errors.New("other")))
}

func TestIsCorruptionError_Messages(t *testing.T) {
	assert.True(t, IsCorruptionError(errors.New("database disk image is malformed")))
	assert.True(t, IsCorruptionError(errors.New("file is not a database")))
	assert.False(t, IsCorruptionError(errors.New("constraint failed")))
	assert.False(t, IsCorruptionError(nil))
}

func TestRecoverFromCorruption(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, db.FileName)

	require.NoError(t, os.WriteFile(dbPath, []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(dbPath+"-wal", []byte("wal"), 0o644))

	require.NoError(t, RecoverFromCorruption(dir))

	_, err := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(dbPath + "-wal")
	assert.True(t, os.IsNotExist(err))

	// A fresh database can be opened in its place.
	database, err := db.Open(dir, db.DefaultOpenOptions())
	require.NoError(t, err)
	require.NoError(t, database.Close())
}

func TestRecoverFromCorruption_MissingFile(t *testing.T) {
	assert.NoError(t, RecoverFromCorruption(t.TempDir()))
}
