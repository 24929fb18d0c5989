package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMoveFile(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	dest := filepath.Join(dir, "nested", "dest.mp4")
	require.NoError(os.WriteFile(src, []byte("video bytes"), 0644))

	require.NoError(MoveFile(src, dest))

	_, err := os.Stat(src)
	require.True(os.IsNotExist(err))
	data, err := os.ReadFile(dest)
	require.NoError(err)
	require.Equal("video bytes", string(data))
}
