package sha256

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloWorld = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func TestHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	assert.Equal(t, helloWorld, h.Hash([]byte("hello world")))
	assert.Equal(t, h.Hash([]byte("hello world")), h.Hash([]byte("hello world")))
}

func TestFilesMatchesHash(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "items-available.tsv")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	h := New()
	sum, err := h.File(path)
	require.NoError(t, err)
	assert.Equal(t, helloWorld, sum)

	sums, err := h.Files([]string{path})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"items-available.tsv": helloWorld}, sums)

	_, err = h.Files([]string{filepath.Join(dir, "missing.tsv")})
	assert.Error(t, err)
}
