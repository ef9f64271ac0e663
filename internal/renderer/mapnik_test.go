package renderer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/zonetiles/internal/projection"
	"github.com/MeKo-Tech/zonetiles/internal/tile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckVersion(t *testing.T) {
	assert.NoError(t, CheckVersion("3.1.0"))
	assert.NoError(t, CheckVersion("4.0.2"))
	assert.Error(t, CheckVersion("2.3.0"))
	assert.Error(t, CheckVersion("not-a-version"))
}

func TestParseHexColor(t *testing.T) {
	c, err := parseHexColor("#f8f4e8")
	require.NoError(t, err)
	assert.Equal(t, uint8(0xf8), c.R)
	assert.Equal(t, uint8(255), c.A)

	c, err = parseHexColor("00000080")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x80), c.A)

	_, err = parseHexColor("#fff")
	assert.Error(t, err)
}

func TestTileExtent(t *testing.T) {
	proj := projection.New(projection.DefaultLevels)

	world, err := TileExtent(proj, tile.NewCoords(0, 0, 0))
	require.NoError(t, err)

	// The whole world is the square +-20037508 m, up to the clamped latitude.
	const half = 20037508.342789244
	assert.InDelta(t, -half, world.Min.X(), 1e-3)
	assert.InDelta(t, half, world.Max.X(), 1e-3)
	assert.InDelta(t, -world.Min.Y(), world.Max.Y(), 1e-3)
	assert.Greater(t, world.Max.Y(), 0.99*half)

	// Bottom-left corner is south-west: min really is min.
	c := tile.NewCoords(13, 4297, 2754)
	ext, err := TileExtent(proj, c)
	require.NoError(t, err)
	assert.Less(t, ext.Min.X(), ext.Max.X())
	assert.Less(t, ext.Min.Y(), ext.Max.Y())

	// Same tile as the orb/maptile bounds.
	want := projection.BoundToWebMercator(c.Bounds())
	assert.InDelta(t, want.Min.X(), ext.Min.X(), 1e-3)
	assert.InDelta(t, want.Max.Y(), ext.Max.Y(), 1e-3)

	_, err = TileExtent(projection.New(5), tile.NewCoords(6, 0, 0))
	assert.ErrorIs(t, err, projection.ErrZoomOutOfRange)
}

func TestMapnikRenderer_RenderTile(t *testing.T) {
	requireIntegration(t)

	r, err := NewMapnikRenderer(Config{BackgroundColor: "#f8f4e8"})
	require.NoError(t, err)
	defer r.Close()

	out := filepath.Join(t.TempDir(), "13", "4297", "2754.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))

	require.NoError(t, r.RenderTile(context.Background(), tile.NewCoords(13, 4297, 2754), out))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
	t.Logf("Rendered %s (%d bytes) with Mapnik %s", out, info.Size(), Version())
}

func TestMapnikRenderer_Cancelled(t *testing.T) {
	requireIntegration(t)

	r, err := NewMapnikRenderer(Config{})
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = r.RenderTile(ctx, tile.NewCoords(0, 0, 0), filepath.Join(t.TempDir(), "0.png"))
	assert.ErrorIs(t, err, context.Canceled)
}
