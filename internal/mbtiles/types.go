// Package mbtiles packs rendered region folders into MBTiles databases.
package mbtiles

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
)

// Metadata contains MBTiles metadata fields.
type Metadata struct {
	Name        string // Human-readable tileset identifier
	Format      string // Tile data type (png, jpg, webp, pbf)
	Attribution string
	Description string
	Type        string // "baselayer" or "overlay"
	Version     string
	Bounds      [4]float64
	Center      [3]float64
	MinZoom     int
	MaxZoom     int
	// HasZoom marks MinZoom/MaxZoom as set, so zoom 0 is written too.
	HasZoom bool
}

// SetBound fills Bounds and Center from a lon/lat bound, centred at zoom.
func (m *Metadata) SetBound(b orb.Bound, zoom int) {
	m.Bounds = [4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
	c := b.Center()
	m.Center = [3]float64{c.Lon(), c.Lat(), float64(zoom)}
}

// SetZoom sets the zoom range.
func (m *Metadata) SetZoom(minZoom, maxZoom int) {
	m.MinZoom = minZoom
	m.MaxZoom = maxZoom
	m.HasZoom = true
}

// ToMap converts Metadata to a map for database insertion.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Format != "" {
		result["format"] = m.Format
	}
	if m.HasZoom || m.MinZoom > 0 || m.MaxZoom > 0 {
		result["minzoom"] = strconv.Itoa(m.MinZoom)
		result["maxzoom"] = strconv.Itoa(m.MaxZoom)
	}
	if m.Bounds != [4]float64{} {
		result["bounds"] = fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
			m.Bounds[0], m.Bounds[1], m.Bounds[2], m.Bounds[3])
	}
	if m.Center != [3]float64{} {
		result["center"] = fmt.Sprintf("%.6f,%.6f,%d",
			m.Center[0], m.Center[1], int(m.Center[2]))
	}
	if m.Attribution != "" {
		result["attribution"] = m.Attribution
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Type != "" {
		result["type"] = m.Type
	}
	if m.Version != "" {
		result["version"] = m.Version
	}

	return result
}
