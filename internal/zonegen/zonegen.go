// Package zonegen turns administrative boundary polygons into region tables.
package zonegen

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/MeKo-Tech/zonetiles/internal/region"
	"github.com/MeKo-Tech/zonetiles/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"
)

// Mapping names the feature properties holding the region id and name.
type Mapping struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Zone is one entry of the zones file: a GeoJSON source split into regions.
type Zone struct {
	Name     string             `yaml:"name"`
	Source   string             `yaml:"source"`
	Disabled bool               `yaml:"disabled"`
	Mapping  Mapping            `yaml:"mapping"`
	Zooms    []region.ZoomRange `yaml:"zooms,omitempty"`
}

// Config is the zones file.
type Config struct {
	Zones []Zone `yaml:"zones"`

	dir string
}

// LoadConfig reads a zones file. Zone sources are resolved relative to it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zones file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse zones file: %w", err)
	}
	cfg.dir = filepath.Dir(path)

	for i, z := range cfg.Zones {
		if z.Name == "" || z.Source == "" {
			return nil, fmt.Errorf("zone %d: name and source are required", i)
		}
		if z.Mapping.ID == "" {
			cfg.Zones[i].Mapping.ID = "id"
		}
		if z.Mapping.Name == "" {
			cfg.Zones[i].Mapping.Name = "name"
		}
	}
	return &cfg, nil
}

// SourcePath resolves a zone's source against the zones file directory.
func (c *Config) SourcePath(z Zone) string {
	if filepath.IsAbs(z.Source) || c.dir == "" {
		return z.Source
	}
	return filepath.Join(c.dir, z.Source)
}

// Generator writes region tables for the zones of a Config.
type Generator struct {
	OutputDir string
	Logger    *slog.Logger
}

func (g *Generator) log() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// Run generates every enabled zone and returns the written file paths.
func (g *Generator) Run(cfg *Config) ([]string, error) {
	var written []string
	for _, z := range cfg.Zones {
		if z.Disabled {
			g.log().Info("Skipping disabled zone", "zone", z.Name)
			continue
		}

		data, err := os.ReadFile(cfg.SourcePath(z))
		if err != nil {
			return written, fmt.Errorf("zone %s: failed to read source: %w", z.Name, err)
		}
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return written, fmt.Errorf("zone %s: failed to parse source: %w", z.Name, err)
		}

		regions, err := Regions(z, fc)
		if err != nil {
			return written, err
		}

		dir := filepath.Join(g.OutputDir, strings.ToLower(z.Name))
		for _, r := range regions {
			path := filepath.Join(dir, r.Name+".yaml")
			if err := region.Write(path, r); err != nil {
				return written, fmt.Errorf("zone %s: %w", z.Name, err)
			}
			g.log().Info("Wrote region", "zone", z.Name, "region", r.Name, "boxes", len(r.Boxes))
			written = append(written, path)
		}
	}
	return written, nil
}

// Regions builds one region per polygon feature of fc.
func Regions(z Zone, fc *geojson.FeatureCollection) ([]*region.Region, error) {
	zooms := z.Zooms
	if len(zooms) == 0 {
		zooms = region.DefaultZooms
	}

	var out []*region.Region
	for i, f := range fc.Features {
		rings := Rings(f.Geometry)
		if len(rings) == 0 {
			continue
		}

		id := strings.TrimSpace(fmt.Sprint(property(f, z.Mapping.ID)))
		name := strings.TrimSpace(fmt.Sprint(property(f, z.Mapping.Name)))
		if id == "" && name == "" {
			return nil, fmt.Errorf("zone %s feature %d: missing %q and %q properties", z.Name, i, z.Mapping.ID, z.Mapping.Name)
		}

		var boxes []types.BoundingBox
		for _, ring := range rings {
			boxes = append(boxes, Boxes(ring)...)
		}
		if len(boxes) == 0 {
			continue
		}

		out = append(out, &region.Region{
			Name:  RegionName(id, name),
			Zone:  strings.ToLower(z.Name),
			Code:  id,
			Title: name,
			Zooms: zooms,
			Boxes: boxes,
		})
	}
	if len(out) == 0 {
		return nil, errors.New("zone " + z.Name + ": no polygon features")
	}
	return out, nil
}

func property(f *geojson.Feature, key string) interface{} {
	v, ok := f.Properties[key]
	if !ok || v == nil {
		return ""
	}
	return v
}

var unsafeName = regexp.MustCompile(`[^a-z0-9._-]+`)

// RegionName is lower("{id}-{name}") with spaces turned into dashes.
// Characters outside [a-z0-9._-] are dropped so the name is a safe directory.
func RegionName(id, name string) string {
	s := strings.ToLower(id + "-" + strings.ReplaceAll(name, " ", "-"))
	s = unsafeName.ReplaceAllString(s, "")
	return strings.Trim(s, "-.")
}

// Rings returns every ring (outer and inner) of an areal geometry.
func Rings(g orb.Geometry) []orb.Ring {
	switch v := g.(type) {
	case orb.Polygon:
		return v
	case orb.MultiPolygon:
		var rings []orb.Ring
		for _, p := range v {
			rings = append(rings, p...)
		}
		return rings
	default:
		return nil
	}
}

// Boxes covers a ring with one box per vertex: the vertex paired with the
// vertex at the nearest different latitude. Vertices are rounded to five
// decimals first. A ring with a single latitude yields no boxes.
func Boxes(ring orb.Ring) []types.BoundingBox {
	pts := make([]orb.Point, len(ring))
	for i, p := range ring {
		pts[i] = orb.Point{round5(p[0]), round5(p[1])}
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i][1] < pts[j][1] })

	boxes := make([]types.BoundingBox, 0, len(pts))
	for _, a := range pts {
		b, ok := nearestLatitude(a[1], pts)
		if !ok {
			continue
		}
		boxes = append(boxes, types.NewBoundingBox([4]float64{a[0], a[1], b[0], b[1]}))
	}
	return boxes
}

// nearestLatitude returns the first point whose latitude is closest to lat
// without being equal to it.
func nearestLatitude(lat float64, pts []orb.Point) (orb.Point, bool) {
	var best orb.Point
	found := false
	for _, p := range pts {
		if p[1] == lat {
			continue
		}
		if !found || math.Abs(p[1]-lat) < math.Abs(best[1]-lat) {
			best = p
			found = true
		}
	}
	return best, found
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
