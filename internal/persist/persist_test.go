package persist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TYEclipse/AD-LOAM/internal/geom"
)

func TestTrajectoryWriterAppendsLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "traj.txt")
	w, err := NewTrajectoryWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteFrame(geom.Identity()))
	require.NoError(t, w.WriteFrame(geom.Identity()))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
	assert.Len(t, strings.Fields(lines[0]), 12)
}

func TestTimingWriterAppendsLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timing.txt")
	w, err := NewTimingWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteMillis(12.5))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "12.5")
}
