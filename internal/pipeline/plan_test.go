package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/zonetiles/internal/projection"
	"github.com/MeKo-Tech/zonetiles/internal/region"
	"github.com/MeKo-Tech/zonetiles/internal/tile"
	"github.com/MeKo-Tech/zonetiles/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var proj = projection.New(projection.DefaultLevels)

func TestPlanWorld(t *testing.T) {
	set, err := Plan(proj, []region.Pass{{BBox: types.World, Zoom: region.ZoomRange{Min: 0, Max: 3}}})
	require.NoError(t, err)

	// Every tile of the pyramid and nothing outside it.
	assert.Equal(t, 1+4+16+64, set.Len())
	for _, c := range set.Coords() {
		assert.True(t, c.Valid(), "invalid tile %s", c)
	}

	zooms, counts := set.CountByZoom()
	assert.Equal(t, []uint32{0, 1, 2, 3}, zooms)
	assert.Equal(t, 64, counts[3])
}

func TestPlanBBoxMatchesMaptile(t *testing.T) {
	bbox := types.NewBoundingBox([4]float64{9.7, 52.3, 9.9, 52.4})
	set := tile.NewSet()
	require.NoError(t, PlanBBox(proj, set, bbox, 13, 13))

	nw := maptile.At(orb.Point{9.7, 52.4}, 13)
	se := maptile.At(orb.Point{9.9, 52.3}, 13)
	want := int(se.X-nw.X+1) * int(se.Y-nw.Y+1)
	assert.Equal(t, want, set.Len())

	// Columns outer, rows inner, starting at the north-west corner.
	list := set.Coords()
	assert.Equal(t, tile.FromTile(nw), list[0])
	assert.Equal(t, tile.FromTile(se), list[len(list)-1])
	assert.Equal(t, nw.X, list[1].X)
	assert.Equal(t, nw.Y+1, list[1].Y)

	for _, c := range list {
		assert.True(t, c.Bounds().Intersects(bbox.Bound()), "tile %s outside bbox", c)
	}
}

func TestPlanUnorderedCorners(t *testing.T) {
	ordered := types.NewBoundingBox([4]float64{-73.22473, 18.69888, -72.80139, 18.73972})
	unordered := types.NewBoundingBox([4]float64{-72.80139, 18.73972, -73.22473, 18.69888})

	a := tile.NewSet()
	require.NoError(t, PlanBBox(proj, a, ordered, 5, 12))
	b := tile.NewSet()
	require.NoError(t, PlanBBox(proj, b, unordered, 5, 12))

	assert.Positive(t, a.Len())
	assert.Equal(t, a.Coords(), b.Coords())
}

func TestPlanDeduplicatesPasses(t *testing.T) {
	box := types.NewBoundingBox([4]float64{-72.81557, 18.69888, -73.22473, 18.73972})
	r := &region.Region{
		Name:  "ht-haiti",
		Zooms: []region.ZoomRange{{Min: 0, Max: 11}, {Min: 13, Max: 13}},
		Boxes: []types.BoundingBox{box, box},
	}

	once, err := Plan(proj, r.Passes()[:2])
	require.NoError(t, err)
	twice, err := Plan(proj, r.Passes())
	require.NoError(t, err)

	assert.Equal(t, once.Len(), twice.Len())
}

func TestPlanErrors(t *testing.T) {
	set := tile.NewSet()
	assert.Error(t, PlanBBox(proj, set, types.World, 3, 2))
	assert.ErrorIs(t, PlanBBox(projection.New(4), set, types.World, 0, 5), projection.ErrZoomOutOfRange)
}

func TestPlanPolygon(t *testing.T) {
	square := orb.Polygon{{{9.7, 52.3}, {9.9, 52.3}, {9.9, 52.4}, {9.7, 52.4}, {9.7, 52.3}}}

	set := tile.NewSet()
	require.NoError(t, PlanPolygon(set, square, 10, 12))
	assert.Positive(t, set.Len())

	// A polygon never needs more tiles than its bounding box.
	boxSet := tile.NewSet()
	require.NoError(t, PlanBBox(proj, boxSet, types.NewBoundingBox([4]float64{9.7, 52.3, 9.9, 52.4}), 10, 12))
	assert.LessOrEqual(t, set.Len(), boxSet.Len())

	assert.Error(t, PlanPolygon(set, square, 5, 4))
}

func TestPlanRegionWithPolygon(t *testing.T) {
	dir := t.TempDir()
	poly := "square\n1\n 9.7 52.3\n 9.9 52.3\n 9.9 52.4\n 9.7 52.4\nEND\nEND\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "square.poly"), []byte(poly), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "square.yaml"),
		[]byte("name: square\npolygon: square.poly\nzooms: [\"8-10\"]\n"), 0o644))

	r, err := region.Load(filepath.Join(dir, "square.yaml"))
	require.NoError(t, err)

	set, err := PlanRegion(proj, r)
	require.NoError(t, err)
	assert.Positive(t, set.Len())

	zooms, _ := set.CountByZoom()
	assert.Equal(t, []uint32{8, 9, 10}, zooms)
}
