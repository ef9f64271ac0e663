package mbtiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/zonetiles/internal/tile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, dir string, scheme tile.Scheme, coords ...tile.Coords) {
	t.Helper()
	for _, c := range coords {
		path := filepath.Join(dir, c.RelPath(scheme))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("png:"+c.String()), 0o644))
	}
}

func TestPackDir(t *testing.T) {
	for _, scheme := range []tile.Scheme{tile.SchemeXYZ, tile.SchemeTMS} {
		t.Run(string(scheme), func(t *testing.T) {
			tmp := t.TempDir()
			dir := filepath.Join(tmp, "ht-haiti")
			coords := []tile.Coords{
				tile.NewCoords(0, 0, 0),
				tile.NewCoords(11, 588, 899),
				tile.NewCoords(11, 589, 899),
				tile.NewCoords(13, 2353, 3597),
			}
			writeTree(t, dir, scheme, coords...)

			// Noise that is not a tile.
			require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("x"), 0o644))
			require.NoError(t, os.MkdirAll(filepath.Join(dir, "11", "junk"), 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "11", "junk", "a.png"), []byte("x"), 0o644))

			dbPath := filepath.Join(tmp, "ht-haiti.mbtiles")
			w, err := New(dbPath, Metadata{Name: "ht-haiti", Format: "png"})
			require.NoError(t, err)

			stats, err := PackDir(context.Background(), dir, scheme, w, nil)
			require.NoError(t, err)
			assert.Equal(t, 4, stats.Tiles)
			assert.Equal(t, 1, stats.Skipped)
			assert.Equal(t, 0, stats.MinZoom)
			assert.Equal(t, 13, stats.MaxZoom)

			meta := stats.Metadata(Metadata{Name: "ht-haiti", Format: "png"})
			require.NoError(t, w.SetMetadata(meta))
			require.NoError(t, w.Close())

			r, err := OpenReader(dbPath)
			require.NoError(t, err)
			defer r.Close()

			// Tiles come back under their XYZ coordinates whatever the tree scheme.
			for _, c := range coords {
				data, err := r.ReadTile(c)
				require.NoError(t, err, c.String())
				assert.Equal(t, "png:"+c.String(), string(data))
			}

			got, err := r.Metadata()
			require.NoError(t, err)
			assert.True(t, got.HasZoom)
			assert.Equal(t, 0, got.MinZoom)
			assert.Equal(t, 13, got.MaxZoom)
			assert.InDelta(t, -180, got.Bounds[0], 1e-6)
		})
	}
}

func TestPackDirCancelled(t *testing.T) {
	tmp := t.TempDir()
	writeTree(t, tmp, tile.SchemeXYZ, tile.NewCoords(1, 0, 0))

	w, err := New(filepath.Join(t.TempDir(), "x.mbtiles"), Metadata{Name: "x"})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = PackDir(ctx, tmp, tile.SchemeXYZ, w, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMetadataZeroZoom(t *testing.T) {
	var m Metadata
	assert.NotContains(t, m.ToMap(), "minzoom")

	m.SetZoom(0, 0)
	assert.Equal(t, "0", m.ToMap()["minzoom"])
	assert.Equal(t, "0", m.ToMap()["maxzoom"])
}
