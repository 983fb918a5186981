package dbx

import (
	"io/fs"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations_SortedAndNonEmpty(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	assert.Equal(t, sorted, names, "migration files must sort into their intended apply order")

	for _, name := range names {
		body, err := migrationFiles.ReadFile("migrations/" + name)
		require.NoError(t, err)
		assert.NotEmpty(t, body)
	}
}
