package tile

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Extension is the file extension of rendered tiles.
const Extension = "png"

// Coords represents a tile coordinate in the Web Mercator tile system (z/x/y).
// Y always follows the XYZ (slippy map) convention; the TMS row is derived
// through a Scheme when paths are built.
type Coords struct {
	Z uint32 // Zoom level
	X uint32 // X coordinate (column)
	Y uint32 // Y coordinate (row, north to south)
}

// NewCoords creates a new Coords from zoom, x, y values
func NewCoords(z, x, y uint32) Coords {
	return Coords{Z: z, X: x, Y: y}
}

// String returns the tile coordinate as "z/x/y".
func (c Coords) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Valid reports whether X and Y lie in [0, 2^Z).
func (c Coords) Valid() bool {
	n := uint64(1) << c.Z
	return uint64(c.X) < n && uint64(c.Y) < n
}

// Tile returns the maptile.Tile for this coordinate
func (c Coords) Tile() maptile.Tile {
	return maptile.New(c.X, c.Y, maptile.Zoom(c.Z))
}

// FromTile converts an orb maptile to Coords.
func FromTile(t maptile.Tile) Coords {
	return Coords{Z: uint32(t.Z), X: t.X, Y: t.Y}
}

// Bounds returns the geographic bounding box for this tile in WGS84 (EPSG:4326)
func (c Coords) Bounds() orb.Bound {
	return c.Tile().Bound()
}

// Scheme selects the row numbering used on disk.
type Scheme string

const (
	// SchemeXYZ numbers rows from the north (slippy map, Google, OSM).
	SchemeXYZ Scheme = "xyz"
	// SchemeTMS numbers rows from the south (OSGeo TMS).
	SchemeTMS Scheme = "tms"
)

// ParseScheme accepts "xyz" or "tms" (case-insensitive). Empty means xyz.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case "", SchemeXYZ:
		return SchemeXYZ, nil
	case SchemeTMS:
		return SchemeTMS, nil
	default:
		return "", fmt.Errorf("invalid tile scheme %q: must be 'xyz' or 'tms'", s)
	}
}

// Row returns the row of c under the scheme.
func (s Scheme) Row(c Coords) uint32 {
	if s == SchemeTMS {
		return flip(c.Y, c.Z)
	}
	return c.Y
}

func flip(y, z uint32) uint32 {
	return uint32((uint64(1)<<z)-1) - y
}

// RelPath returns "{z}/{x}/{y}.png" relative to a region directory.
func (c Coords) RelPath(scheme Scheme) string {
	return filepath.Join(
		strconv.FormatUint(uint64(c.Z), 10),
		strconv.FormatUint(uint64(c.X), 10),
		strconv.FormatUint(uint64(scheme.Row(c)), 10)+"."+Extension,
	)
}

// Path returns "{root}/{region}/{z}/{x}/{y}.png".
func (c Coords) Path(root, region string, scheme Scheme) string {
	return filepath.Join(root, region, c.RelPath(scheme))
}

// ParsePath parses a "{z}/{x}/{y}.png" path relative to a region directory.
// Rows stored under the TMS scheme are converted back to XYZ.
func ParsePath(rel string, scheme Scheme) (Coords, error) {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(rel)), "/")
	if len(parts) != 3 {
		return Coords{}, fmt.Errorf("invalid tile path %q: expected z/x/y.%s", rel, Extension)
	}

	name, ok := strings.CutSuffix(parts[2], "."+Extension)
	if !ok {
		return Coords{}, fmt.Errorf("invalid tile path %q: not a .%s file", rel, Extension)
	}

	var v [3]uint32
	for i, s := range []string{parts[0], parts[1], name} {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return Coords{}, fmt.Errorf("invalid tile path %q: %w", rel, err)
		}
		v[i] = uint32(n)
	}

	c := NewCoords(v[0], v[1], v[2])
	if v[0] > 30 || !c.Valid() {
		return Coords{}, fmt.Errorf("invalid tile path %q: coordinates out of range", rel)
	}
	if scheme == SchemeTMS {
		c.Y = flip(c.Y, c.Z)
	}
	return c, nil
}

// Set is an insertion-ordered set of tile coordinates.
type Set struct {
	seen map[Coords]struct{}
	list []Coords
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{seen: make(map[Coords]struct{})}
}

// Add inserts c and reports whether it was new.
func (s *Set) Add(c Coords) bool {
	if _, ok := s.seen[c]; ok {
		return false
	}
	s.seen[c] = struct{}{}
	s.list = append(s.list, c)
	return true
}

// Contains reports whether c is in the set.
func (s *Set) Contains(c Coords) bool {
	_, ok := s.seen[c]
	return ok
}

// Len returns the number of distinct tiles.
func (s *Set) Len() int {
	return len(s.list)
}

// Coords returns the tiles in insertion order.
func (s *Set) Coords() []Coords {
	return s.list
}

// CountByZoom returns the number of tiles per zoom level, with the zoom levels sorted.
func (s *Set) CountByZoom() ([]uint32, map[uint32]int) {
	counts := make(map[uint32]int)
	for _, c := range s.list {
		counts[c.Z]++
	}

	zooms := make([]uint32, 0, len(counts))
	for z := range counts {
		zooms = append(zooms, z)
	}
	sort.Slice(zooms, func(i, j int) bool { return zooms[i] < zooms[j] })

	return zooms, counts
}

// Bound returns the union of the WGS84 bounds of every tile in the set.
func (s *Set) Bound() orb.Bound {
	if len(s.list) == 0 {
		return orb.Bound{}
	}
	b := s.list[0].Bounds()
	for _, c := range s.list[1:] {
		b = b.Union(c.Bounds())
	}
	return b
}
