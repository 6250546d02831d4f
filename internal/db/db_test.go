package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func TestOpenCreatesBuckets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cookies.db")

	database, err := Open(path)
	require.NoError(t, err)
	defer database.Close()

	err = database.View(func(tx *bolt.Tx) error {
		require.NotNil(t, tx.Bucket(CookieBucket))
		return nil
	})
	require.NoError(t, err)
}

func TestOpenIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
