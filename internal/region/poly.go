package region

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ParsePoly reads an Osmosis polygon filter file. Sections whose name starts
// with '!' are holes of the preceding outer ring.
func ParsePoly(r io.Reader) (orb.MultiPolygon, error) {
	sc := bufio.NewScanner(r)
	line := 0
	next := func() (string, bool) {
		for sc.Scan() {
			line++
			s := strings.TrimSpace(sc.Text())
			if s != "" {
				return s, true
			}
		}
		return "", false
	}

	// First line is the file name.
	if _, ok := next(); !ok {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty poly file")
	}

	var mp orb.MultiPolygon
	for {
		name, ok := next()
		if !ok {
			return nil, fmt.Errorf("line %d: missing final END", line)
		}
		if name == "END" {
			break
		}

		var ring orb.Ring
		for {
			s, ok := next()
			if !ok {
				return nil, fmt.Errorf("line %d: section %q not terminated", line, name)
			}
			if s == "END" {
				break
			}
			fields := strings.Fields(s)
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: expected 'lon lat'", line)
			}
			lon, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			lat, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			ring = append(ring, orb.Point{lon, lat})
		}

		if len(ring) < 3 {
			return nil, fmt.Errorf("section %q: ring needs at least 3 points", name)
		}
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}

		if strings.HasPrefix(name, "!") {
			if len(mp) == 0 {
				return nil, fmt.Errorf("section %q: hole before any outer ring", name)
			}
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(mp) == 0 {
		return nil, fmt.Errorf("poly file has no rings")
	}
	return mp, nil
}

// LoadGeoJSON reads polygons from a GeoJSON FeatureCollection, Feature or bare geometry.
// Non-areal geometries are ignored.
func LoadGeoJSON(data []byte) (orb.MultiPolygon, error) {
	var mp orb.MultiPolygon
	add := func(g orb.Geometry) {
		switch v := g.(type) {
		case orb.Polygon:
			mp = append(mp, v)
		case orb.MultiPolygon:
			mp = append(mp, v...)
		}
	}

	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && len(fc.Features) > 0 {
		for _, f := range fc.Features {
			add(f.Geometry)
		}
	} else if f, err := geojson.UnmarshalFeature(data); err == nil && f.Geometry != nil {
		add(f.Geometry)
	} else {
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
		}
		add(g.Geometry())
	}

	if len(mp) == 0 {
		return nil, fmt.Errorf("GeoJSON contains no polygons")
	}
	return mp, nil
}

// LoadPolygon reads a .poly or GeoJSON file, chosen by extension.
func LoadPolygon(path string) (orb.MultiPolygon, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".poly":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open polygon: %w", err)
		}
		defer f.Close() // nolint:errcheck // Read-only file

		mp, err := ParsePoly(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return mp, nil
	case ".geojson", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read polygon: %w", err)
		}
		mp, err := LoadGeoJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("unsupported polygon format %q (want .poly or .geojson)", filepath.Ext(path))
	}
}
