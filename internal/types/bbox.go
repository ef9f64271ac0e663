// Package types holds geographic value types shared by the region, pipeline and cmd packages.
package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

// BoundingBox represents a geographic bounding box in WGS84 (EPSG:4326).
// Region tables list boxes as (lon0, lat0, lon1, lat1) without guaranteeing
// corner order; call Normalize before treating the fields as min/max.
type BoundingBox struct {
	MinLon float64 // Western edge (degrees)
	MinLat float64 // Southern edge (degrees)
	MaxLon float64 // Eastern edge (degrees)
	MaxLat float64 // Northern edge (degrees)
}

// World covers the whole lon/lat range.
var World = BoundingBox{MinLon: -180, MinLat: -90, MaxLon: 180, MaxLat: 90}

// NewBoundingBox builds a box from the (lon0, lat0, lon1, lat1) tuple used by region tables.
func NewBoundingBox(v [4]float64) BoundingBox {
	return BoundingBox{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}
}

// ParseBoundingBox parses "minLon,minLat,maxLon,maxLat".
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		v[i] = f
	}

	b := NewBoundingBox(v)
	if err := b.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return b, nil
}

// Validate checks that every coordinate lies in the WGS84 range.
func (b BoundingBox) Validate() error {
	for _, lon := range []float64{b.MinLon, b.MaxLon} {
		if lon < -180 || lon > 180 {
			return fmt.Errorf("longitude %.6f outside [-180,180]", lon)
		}
	}
	for _, lat := range []float64{b.MinLat, b.MaxLat} {
		if lat < -90 || lat > 90 {
			return fmt.Errorf("latitude %.6f outside [-90,90]", lat)
		}
	}
	return nil
}

// Normalize returns the box with min and max swapped where the corners were given out of order.
func (b BoundingBox) Normalize() BoundingBox {
	if b.MinLon > b.MaxLon {
		b.MinLon, b.MaxLon = b.MaxLon, b.MinLon
	}
	if b.MinLat > b.MaxLat {
		b.MinLat, b.MaxLat = b.MaxLat, b.MinLat
	}
	return b
}

// TopLeft returns the north-west corner as a lon/lat point.
func (b BoundingBox) TopLeft() orb.Point {
	return orb.Point{b.MinLon, b.MaxLat}
}

// BottomRight returns the south-east corner as a lon/lat point.
func (b BoundingBox) BottomRight() orb.Point {
	return orb.Point{b.MaxLon, b.MinLat}
}

// Bound converts the (normalised) box to an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	n := b.Normalize()
	return orb.Bound{
		Min: orb.Point{n.MinLon, n.MinLat},
		Max: orb.Point{n.MaxLon, n.MaxLat},
	}
}

// Array returns the box as [minLon, minLat, maxLon, maxLat].
func (b BoundingBox) Array() [4]float64 {
	return [4]float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat}
}

// String returns a human-readable representation of the bounding box
func (b BoundingBox) String() string {
	return fmt.Sprintf("bbox(%.5f,%.5f,%.5f,%.5f)", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// Width returns the width of the bounding box in degrees
func (b BoundingBox) Width() float64 {
	n := b.Normalize()
	return n.MaxLon - n.MinLon
}

// Height returns the height of the bounding box in degrees
func (b BoundingBox) Height() float64 {
	n := b.Normalize()
	return n.MaxLat - n.MinLat
}

// MarshalYAML writes the box as a flow sequence of four numbers.
func (b BoundingBox) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range b.Array() {
		node.Content = append(node.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!float",
			Value: strconv.FormatFloat(v, 'f', -1, 64),
		})
	}
	return node, nil
}

// UnmarshalYAML accepts either [lon0, lat0, lon1, lat1] or "lon0,lat0,lon1,lat1".
func (b *BoundingBox) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var v []float64
		if err := value.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		if len(v) != 4 {
			return fmt.Errorf("line %d: bbox needs 4 values, got %d", value.Line, len(v))
		}
		nb := NewBoundingBox([4]float64{v[0], v[1], v[2], v[3]})
		if err := nb.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*b = nb
		return nil
	case yaml.ScalarNode:
		nb, err := ParseBoundingBox(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*b = nb
		return nil
	default:
		return fmt.Errorf("line %d: bbox must be a sequence or string", value.Line)
	}
}
