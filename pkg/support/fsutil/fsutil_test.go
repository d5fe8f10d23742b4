package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	exists, err := FileExists(dir)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = FileExists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReplaceTildeInDir(t *testing.T) {
	got, err := ReplaceTildeInDir("/tmp/x")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", got)

	got, err = ReplaceTildeInDir("~/cache")
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(got, "~"))
	assert.True(t, strings.HasSuffix(got, "/cache"))
}

func TestCacheDir(t *testing.T) {
	base := t.TempDir()
	defaultDir := filepath.Join(base, "default")
	t.Setenv("SRVPFD_TEST_CACHE", "")
	got, err := CacheDir("SRVPFD_TEST_CACHE", defaultDir)
	require.NoError(t, err)
	assert.Equal(t, defaultDir, got)
	info, err := os.Stat(got)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	fromEnv := filepath.Join(base, "env")
	t.Setenv("SRVPFD_TEST_CACHE", fromEnv)
	got, err = CacheDir("SRVPFD_TEST_CACHE", defaultDir)
	require.NoError(t, err)
	assert.Equal(t, fromEnv, got)
}

func TestCommitTemp(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sub", "model.pt")
	tmp := TempPathFor(filepath.Join(dir, "model.pt"))
	assert.NotEqual(t, tmp, TempPathFor(filepath.Join(dir, "model.pt")))
	require.NoError(t, os.WriteFile(tmp, []byte("weights"), 0644))
	require.NoError(t, CommitTemp(tmp, target))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
	exists, err := FileExists(tmp)
	require.NoError(t, err)
	assert.False(t, exists)
}
