package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: MemoryPath}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLoadMigrations_SortsByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_later.sql":  {Data: []byte("SELECT 1;")},
		"m/002_second.sql": {Data: []byte("SELECT 1;")},
		"m/001_first.sql":  {Data: []byte("SELECT 1;")},
		"m/README.md":      {Data: []byte("ignored")},
	}

	migrations, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{migrations[0].Version, migrations[1].Version, migrations[2].Version})
	assert.Equal(t, "first", migrations[0].Name)
}

func TestLoadMigrations_RejectsBadNames(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{"m/init.sql": {Data: []byte("SELECT 1;")}}, "m")
	assert.Error(t, err)

	_, err = LoadMigrations(fstest.MapFS{
		"m/001_a.sql": {Data: []byte("SELECT 1;")},
		"m/001_b.sql": {Data: []byte("SELECT 1;")},
	}, "m")
	assert.ErrorContains(t, err, "duplicate migration version 1")
}

func TestMigrator_RunIsIdempotent(t *testing.T) {
	db := openMemory(t)
	fsys := fstest.MapFS{
		"m/001_widgets.sql": {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);")},
		"m/002_seed.sql":    {Data: []byte("INSERT INTO widgets (id) VALUES (1);")},
	}

	migrator := NewMigrator(db, zap.NewNop())

	applied, err := migrator.Run(fsys, "m")
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	applied, err = migrator.Run(fsys, "m")
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM widgets").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMigrator_FailedMigrationRollsBack(t *testing.T) {
	db := openMemory(t)
	fsys := fstest.MapFS{
		"m/001_ok.sql":     {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"m/002_broken.sql": {Data: []byte("CREATE TABLE broken (;")},
	}

	applied, err := NewMigrator(db, zap.NewNop()).Run(fsys, "m")
	require.Error(t, err)
	assert.Equal(t, 1, applied)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}
