package renderer

// #cgo LDFLAGS: -lmapnik
// #cgo CXXFLAGS: -std=c++14
import "C"

import (
	"context"
	"fmt"
	"image/color"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/MeKo-Tech/zonetiles/internal/projection"
	"github.com/MeKo-Tech/zonetiles/internal/tile"
	mapnik "github.com/omniscale/go-mapnik/v2"
	"github.com/paulmach/orb"
)

const (
	// DefaultDatasourcesDir is where Debian/Ubuntu install the Mapnik input plugins.
	DefaultDatasourcesDir = "/usr/lib/mapnik/3.1/input"
	// DefaultFormat is the palette PNG format used for every tile.
	DefaultFormat = "png256"
	// MinBufferSize is the smallest render buffer (pixels) used around a tile.
	MinBufferSize = 128
	// MinMapnikVersion is the oldest Mapnik the renderer is tested against.
	MinMapnikVersion = ">= 3.0.0"
)

// Config configures a MapnikRenderer.
type Config struct {
	StyleFile       string
	TileSize        int
	BufferSize      int
	Format          string
	DatasourcesDir  string
	FontsDir        string
	BackgroundColor string
	Projection      *projection.GoogleProjection
}

func (c Config) withDefaults() Config {
	if c.TileSize <= 0 {
		c.TileSize = projection.TileSize
	}
	if c.BufferSize < MinBufferSize {
		c.BufferSize = MinBufferSize
	}
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if c.DatasourcesDir == "" {
		c.DatasourcesDir = DefaultDatasourcesDir
	}
	if c.Projection == nil {
		c.Projection = projection.New(projection.DefaultLevels)
	}
	return c
}

var (
	setupOnce sync.Once
	setupErr  error
)

// setup registers plugins and fonts once per process.
func setup(cfg Config) error {
	setupOnce.Do(func() {
		if err := CheckVersion(mapnik.Version.String); err != nil {
			setupErr = err
			return
		}
		if err := mapnik.RegisterDatasources(cfg.DatasourcesDir); err != nil {
			setupErr = fmt.Errorf("failed to register datasources: %w", err)
			return
		}
		if cfg.FontsDir != "" {
			if err := mapnik.RegisterFonts(cfg.FontsDir); err != nil {
				setupErr = fmt.Errorf("failed to register fonts: %w", err)
				return
			}
		}
	})
	return setupErr
}

// CheckVersion verifies a Mapnik version string against MinMapnikVersion.
func CheckVersion(v string) error {
	version, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("unparseable Mapnik version %q: %w", v, err)
	}
	constraint, err := semver.NewConstraint(MinMapnikVersion)
	if err != nil {
		return err
	}
	if !constraint.Check(version) {
		return fmt.Errorf("mapnik %s is too old (need %s)", version, MinMapnikVersion)
	}
	return nil
}

// Version reports the linked Mapnik version.
func Version() string {
	return mapnik.Version.String
}

// MapnikRenderer renders tiles from one Mapnik map. It is not safe for
// concurrent use; give every worker its own renderer.
type MapnikRenderer struct {
	mapObject *mapnik.Map
	proj      *projection.GoogleProjection
	cfg       Config
}

// NewMapnikRenderer creates a renderer with the style loaded.
func NewMapnikRenderer(cfg Config) (*MapnikRenderer, error) {
	cfg = cfg.withDefaults()

	if err := setup(cfg); err != nil {
		return nil, err
	}

	m := mapnik.NewSized(cfg.TileSize, cfg.TileSize)

	if cfg.StyleFile != "" {
		if err := m.Load(cfg.StyleFile); err != nil {
			m.Free()
			return nil, fmt.Errorf("failed to load Mapnik style: %w", err)
		}
	}

	// Tiles are addressed in Web Mercator regardless of the style's own SRS.
	m.SetSRS(projection.WebMercatorSRS)
	m.SetBufferSize(cfg.BufferSize)

	r := &MapnikRenderer{
		mapObject: m,
		proj:      cfg.Projection,
		cfg:       cfg,
	}

	if cfg.BackgroundColor != "" {
		if err := r.SetBackgroundColor(cfg.BackgroundColor); err != nil {
			r.Close() // nolint:errcheck // Already returning an error
			return nil, err
		}
	}
	return r, nil
}

// TileExtent returns the EPSG:3857 extent of a tile: the pixel corners
// (x*256, (y+1)*256) and ((x+1)*256, y*256) converted to lon/lat and then
// to metres.
func TileExtent(proj *projection.GoogleProjection, c tile.Coords) (orb.Bound, error) {
	z := int(c.Z)
	size := float64(projection.TileSize)

	p0 := orb.Point{float64(c.X) * size, float64(c.Y+1) * size}
	p1 := orb.Point{float64(c.X+1) * size, float64(c.Y) * size}

	l0, err := proj.FromPixelToLL(p0, z)
	if err != nil {
		return orb.Bound{}, err
	}
	l1, err := proj.FromPixelToLL(p1, z)
	if err != nil {
		return orb.Bound{}, err
	}

	return orb.Bound{
		Min: projection.ToWebMercator(l0),
		Max: projection.ToWebMercator(l1),
	}, nil
}

// RenderTile renders c into outputPath. The parent directory must exist.
func (r *MapnikRenderer) RenderTile(ctx context.Context, c tile.Coords, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	extent, err := TileExtent(r.proj, c)
	if err != nil {
		return fmt.Errorf("tile %s: %w", c, err)
	}

	r.mapObject.Resize(r.cfg.TileSize, r.cfg.TileSize)
	r.mapObject.ZoomTo(extent.Min.X(), extent.Min.Y(), extent.Max.X(), extent.Max.Y())
	r.mapObject.SetBufferSize(r.cfg.BufferSize)

	if err := r.mapObject.RenderToFile(mapnik.RenderOpts{Format: r.cfg.Format}, outputPath); err != nil {
		return fmt.Errorf("failed to render tile %s: %w", c, err)
	}
	return nil
}

// Close releases Mapnik resources
func (r *MapnikRenderer) Close() error {
	if r.mapObject != nil {
		r.mapObject.Free()
		r.mapObject = nil
	}
	return nil
}

// SetBackgroundColor sets the map background color (hex string like "#f8f4e8")
func (r *MapnikRenderer) SetBackgroundColor(hexColor string) error {
	c, err := parseHexColor(hexColor)
	if err != nil {
		return fmt.Errorf("invalid color format: %w", err)
	}
	r.mapObject.SetBackgroundColor(c)
	return nil
}

// parseHexColor converts hex color string to color.NRGBA
func parseHexColor(s string) (color.NRGBA, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(s) {
	case 6: // RGB
		_, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b)
		if err != nil {
			return color.NRGBA{}, err
		}
	case 8: // RGBA
		_, err := fmt.Sscanf(s, "%02x%02x%02x%02x", &r, &g, &b, &a)
		if err != nil {
			return color.NRGBA{}, err
		}
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color length: %d", len(s))
	}

	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}
