// Package projection converts between geographic coordinates and the pixel
// plane of the spherical (Web) Mercator tile pyramid.
package projection

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const (
	// TileSize is the edge length of a tile in pixels.
	TileSize = 256

	// DefaultLevels covers zoom 0 to 22.
	DefaultLevels = 23

	// MaxLatitude is the northern limit of the square Mercator plane.
	MaxLatitude = 85.0511287798

	// sinLimit keeps log((1+f)/(1-f)) finite at the poles.
	sinLimit = 0.9999

	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// ErrZoomOutOfRange is returned when a zoom level has no precomputed table entry.
var ErrZoomOutOfRange = errors.New("zoom level out of range")

// GoogleProjection projects between lon/lat and pixel coordinates for a fixed
// number of zoom levels. Tables are built once; all methods are safe for
// concurrent use.
type GoogleProjection struct {
	bc []float64 // pixels per degree of longitude
	cc []float64 // pixels per radian
	zc []float64 // pixel origin (centre of the plane)
	ac []float64 // plane size in pixels
}

// New builds tables for zoom levels 0..levels-1.
func New(levels int) *GoogleProjection {
	if levels < 1 {
		levels = 1
	}

	p := &GoogleProjection{
		bc: make([]float64, levels),
		cc: make([]float64, levels),
		zc: make([]float64, levels),
		ac: make([]float64, levels),
	}

	c := float64(TileSize)
	for z := 0; z < levels; z++ {
		p.bc[z] = c / 360.0
		p.cc[z] = c / (2 * math.Pi)
		p.zc[z] = c / 2
		p.ac[z] = c
		c *= 2
	}

	return p
}

// Levels returns the number of zoom levels the projection covers.
func (p *GoogleProjection) Levels() int {
	return len(p.ac)
}

func (p *GoogleProjection) check(zoom int) error {
	if zoom < 0 || zoom >= len(p.ac) {
		return fmt.Errorf("%w: %d (have 0-%d)", ErrZoomOutOfRange, zoom, len(p.ac)-1)
	}
	return nil
}

// FromLLToPixel projects a lon/lat point to the continuous pixel plane at zoom.
func (p *GoogleProjection) FromLLToPixel(ll orb.Point, zoom int) (orb.Point, error) {
	if err := p.check(zoom); err != nil {
		return orb.Point{}, err
	}

	d := p.zc[zoom]
	e := d + ll.Lon()*p.bc[zoom]
	f := clamp(math.Sin(degToRad*ll.Lat()), -sinLimit, sinLimit)
	g := d + 0.5*math.Log((1+f)/(1-f))*-p.cc[zoom]

	return orb.Point{e, g}, nil
}

// FromPixelToLL is the inverse of FromLLToPixel.
func (p *GoogleProjection) FromPixelToLL(px orb.Point, zoom int) (orb.Point, error) {
	if err := p.check(zoom); err != nil {
		return orb.Point{}, err
	}

	e := p.zc[zoom]
	f := (px[0] - e) / p.bc[zoom]
	g := (px[1] - e) / -p.cc[zoom]
	h := radToDeg * (2*math.Atan(math.Exp(g)) - 0.5*math.Pi)

	return orb.Point{f, h}, nil
}

// PlaneSize returns the pixel width of the plane at zoom.
func (p *GoogleProjection) PlaneSize(zoom int) (float64, error) {
	if err := p.check(zoom); err != nil {
		return 0, err
	}
	return p.ac[zoom], nil
}

// TileIndex returns the tile row or column containing pixel coordinate v.
func TileIndex(v float64) int {
	return int(math.Floor(v / TileSize))
}

// TileCount returns the number of tiles along one axis at zoom.
func TileCount(zoom int) int {
	return 1 << uint(zoom)
}

// ValidTile reports whether index i lies in [0, 2^zoom).
func ValidTile(i, zoom int) bool {
	return i >= 0 && i < TileCount(zoom)
}

// FlipY converts a row between the XYZ and TMS numbering conventions.
// Applying it twice returns the original row.
func FlipY(y, zoom int) int {
	return TileCount(zoom) - 1 - y
}

func clamp(a, lo, hi float64) float64 {
	return math.Min(math.Max(a, lo), hi)
}
