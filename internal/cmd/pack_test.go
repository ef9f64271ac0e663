package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/zonetiles/internal/mbtiles"
	"github.com/MeKo-Tech/zonetiles/internal/tile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTiles(t *testing.T, dir string, scheme tile.Scheme, coords ...tile.Coords) {
	t.Helper()
	for _, c := range coords {
		path := filepath.Join(dir, c.RelPath(scheme))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(c.String()), 0o644))
	}
}

func TestPackRegion(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "ht-haiti")
	writeTiles(t, dir, tile.SchemeTMS, tile.NewCoords(1, 0, 0), tile.NewCoords(2, 1, 3))

	stats, err := packRegion(context.Background(), packOptions{Dir: dir, TMS: true})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Tiles)

	out := dir + ".mbtiles"
	r, err := mbtiles.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()

	data, err := r.ReadTile(tile.NewCoords(2, 1, 3))
	require.NoError(t, err)
	assert.Equal(t, "2/1/3", string(data))

	meta, err := r.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "ht-haiti", meta.Name)
	assert.Equal(t, 1, meta.MinZoom)
	assert.Equal(t, 2, meta.MaxZoom)
}

func TestPackRegionExistingOutput(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "r")
	writeTiles(t, dir, tile.SchemeXYZ, tile.NewCoords(0, 0, 0))

	out := filepath.Join(tmp, "out.mbtiles")
	require.NoError(t, os.WriteFile(out, []byte("old"), 0o644))

	_, err := packRegion(context.Background(), packOptions{Dir: dir, Output: out})
	assert.Error(t, err)

	stats, err := packRegion(context.Background(), packOptions{Dir: dir, Output: out, Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Tiles)
}

func TestPackRegionEmpty(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "empty")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	_, err := packRegion(context.Background(), packOptions{Dir: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tiles found")

	_, statErr := os.Stat(dir + ".mbtiles")
	assert.True(t, os.IsNotExist(statErr), "failed pack leaves no output")
}

func TestPackRegionNotADir(t *testing.T) {
	_, err := packRegion(context.Background(), packOptions{Dir: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}
