package pipeline

import (
	"fmt"
	"sort"

	"github.com/MeKo-Tech/zonetiles/internal/projection"
	"github.com/MeKo-Tech/zonetiles/internal/region"
	"github.com/MeKo-Tech/zonetiles/internal/tile"
	"github.com/MeKo-Tech/zonetiles/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"
)

// PlanBBox adds every tile touching bbox at zoom levels minZ..maxZ to set.
// Columns run outer, rows inner. Indices outside [0, 2^z) are skipped.
func PlanBBox(proj *projection.GoogleProjection, set *tile.Set, bbox types.BoundingBox, minZ, maxZ int) error {
	if minZ > maxZ {
		return fmt.Errorf("min zoom %d greater than max zoom %d", minZ, maxZ)
	}

	b := bbox.Normalize()
	ll0 := b.TopLeft()
	ll1 := b.BottomRight()

	for z := minZ; z <= maxZ; z++ {
		px0, err := proj.FromLLToPixel(ll0, z)
		if err != nil {
			return err
		}
		px1, err := proj.FromLLToPixel(ll1, z)
		if err != nil {
			return err
		}

		for x := projection.TileIndex(px0.X()); x <= projection.TileIndex(px1.X()); x++ {
			if !projection.ValidTile(x, z) {
				continue
			}
			for y := projection.TileIndex(px0.Y()); y <= projection.TileIndex(px1.Y()); y++ {
				if !projection.ValidTile(y, z) {
					continue
				}
				set.Add(tile.NewCoords(uint32(z), uint32(x), uint32(y)))
			}
		}
	}
	return nil
}

// Plan enumerates the tiles of every pass, de-duplicated across passes.
func Plan(proj *projection.GoogleProjection, passes []region.Pass) (*tile.Set, error) {
	set := tile.NewSet()
	for i, p := range passes {
		if err := PlanBBox(proj, set, p.BBox, p.Zoom.Min, p.Zoom.Max); err != nil {
			return nil, fmt.Errorf("pass %d (%s, zoom %s): %w", i, p.BBox, p.Zoom, err)
		}
	}
	return set, nil
}

// PlanPolygon adds the tiles covering g at zoom levels minZ..maxZ to set.
func PlanPolygon(set *tile.Set, g orb.Geometry, minZ, maxZ int) error {
	if minZ > maxZ {
		return fmt.Errorf("min zoom %d greater than max zoom %d", minZ, maxZ)
	}

	for z := minZ; z <= maxZ; z++ {
		cover, err := tilecover.Geometry(g, maptile.Zoom(z))
		if err != nil {
			return fmt.Errorf("failed to cover polygon at zoom %d: %w", z, err)
		}

		tiles := make([]maptile.Tile, 0, len(cover))
		for t := range cover {
			tiles = append(tiles, t)
		}
		sort.Slice(tiles, func(i, j int) bool {
			if tiles[i].X != tiles[j].X {
				return tiles[i].X < tiles[j].X
			}
			return tiles[i].Y < tiles[j].Y
		})

		for _, t := range tiles {
			set.Add(tile.FromTile(t))
		}
	}
	return nil
}

// PlanRegion enumerates a region: its boxes per pass, plus its polygon
// cover over every zoom range when a polygon is set.
func PlanRegion(proj *projection.GoogleProjection, r *region.Region) (*tile.Set, error) {
	set, err := Plan(proj, r.Passes())
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", r.Name, err)
	}

	if r.Polygon == "" {
		return set, nil
	}

	mp, err := region.LoadPolygon(r.PolygonPath())
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", r.Name, err)
	}
	for _, z := range r.Zooms {
		if err := PlanPolygon(set, mp, z.Min, z.Max); err != nil {
			return nil, fmt.Errorf("region %s: %w", r.Name, err)
		}
	}
	return set, nil
}
