package atomicwrite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile_ReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")

	require.NoError(t, AtomicWriteFile(path, []byte(`{"a":"1"}`), 0o600))
	require.NoError(t, AtomicWriteFile(path, []byte(`{"a":"2"}`), 0o600))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `{"a":"2"}`, string(b))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}
