package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dropDatabas3/brokerdisco/internal/storage"
	"github.com/dropDatabas3/brokerdisco/internal/storage/storagetest"
	"github.com/stretchr/testify/require"
)

func TestFSStore_Conformance(t *testing.T) {
	dir := t.TempDir()
	storagetest.Run(t, func(t *testing.T, ns string) storage.Store {
		s, err := New(dir, ns)
		require.NoError(t, err)
		return s
	})
}

func TestFSStore_CorruptFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "client.json"), []byte("{not json"), 0o600))

	s, err := New(dir, "client")
	require.NoError(t, err)
	_, err = s.Get(context.Background(), "k")
	require.Error(t, err)
	require.False(t, storage.IsNotFound(err))
}
