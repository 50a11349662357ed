package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputLocation_ResolvesOnce(t *testing.T) {
	root := filepath.Join(t.TempDir(), "results")
	location := NewOutputLocation(root, "run-1")

	first, err := location.Root()
	require.NoError(t, err)
	assert.Equal(t, root, first)
	info, err := os.Stat(filepath.Join(root, "run-1"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, os.RemoveAll(root))
	second, err := location.Root()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err))
}

func TestOutputLocation_GeneratesRunId(t *testing.T) {
	a := NewOutputLocation(t.TempDir(), "")
	b := NewOutputLocation(t.TempDir(), "")

	assert.NotEmpty(t, a.RunId())
	assert.NotEqual(t, a.RunId(), b.RunId())
}

func TestOutputLocation_ComparisonDir(t *testing.T) {
	root := t.TempDir()
	location := NewOutputLocation(root, "run")

	dir, err := location.ComparisonDir("host:443", "padding")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "run", "comparisons", "host_443", "padding"), dir)
}
