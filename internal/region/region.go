// Package region loads the per-region tables that drive a render run: the
// bounding boxes of a region and the zoom passes rendered for each box.
package region

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/zonetiles/internal/types"
	"gopkg.in/yaml.v3"
)

// MaxZoom is the deepest zoom level a region may request.
const MaxZoom = 22

// DefaultZooms are the passes written for generated regions: an overview
// down to 11, then every second level.
var DefaultZooms = []ZoomRange{{0, 11}, {13, 13}, {15, 15}, {17, 17}}

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// ZoomRange is an inclusive range of zoom levels.
type ZoomRange struct {
	Min int
	Max int
}

// ParseZoomRange parses "11" or "0-11".
func ParseZoomRange(s string) (ZoomRange, error) {
	s = strings.TrimSpace(s)
	var zr ZoomRange

	if lo, hi, ok := strings.Cut(s, "-"); ok {
		var errLo, errHi error
		zr.Min, errLo = strconv.Atoi(strings.TrimSpace(lo))
		zr.Max, errHi = strconv.Atoi(strings.TrimSpace(hi))
		if errLo != nil || errHi != nil {
			return ZoomRange{}, fmt.Errorf("invalid zoom range %q", s)
		}
	} else {
		n, err := strconv.Atoi(s)
		if err != nil {
			return ZoomRange{}, fmt.Errorf("invalid zoom level %q", s)
		}
		zr.Min, zr.Max = n, n
	}

	if err := zr.Validate(); err != nil {
		return ZoomRange{}, err
	}
	return zr, nil
}

// ParseZoomRanges parses a comma-separated list like "0-11,13,15,17".
func ParseZoomRanges(s string) ([]ZoomRange, error) {
	var out []ZoomRange
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		zr, err := ParseZoomRange(part)
		if err != nil {
			return nil, err
		}
		out = append(out, zr)
	}
	if len(out) == 0 {
		return nil, errors.New("no zoom levels given")
	}
	return out, nil
}

// Validate checks 0 <= Min <= Max <= MaxZoom.
func (z ZoomRange) Validate() error {
	if z.Min < 0 || z.Max > MaxZoom {
		return fmt.Errorf("zoom range %s outside 0-%d", z, MaxZoom)
	}
	if z.Min > z.Max {
		return fmt.Errorf("zoom range %s: min must be <= max", z)
	}
	return nil
}

func (z ZoomRange) String() string {
	if z.Min == z.Max {
		return fmt.Sprintf("%d", z.Min)
	}
	return fmt.Sprintf("%d-%d", z.Min, z.Max)
}

// MarshalYAML writes the range as "0-11" or "13".
func (z ZoomRange) MarshalYAML() (interface{}, error) {
	return z.String(), nil
}

// UnmarshalYAML accepts "0-11", "13", 13 or [0, 11].
func (z *ZoomRange) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		zr, err := ParseZoomRange(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*z = zr
		return nil
	case yaml.SequenceNode:
		var v []int
		if err := value.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		if len(v) != 2 {
			return fmt.Errorf("line %d: zoom range needs [min, max]", value.Line)
		}
		zr := ZoomRange{Min: v[0], Max: v[1]}
		if err := zr.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*z = zr
		return nil
	default:
		return fmt.Errorf("line %d: zoom range must be a string or [min, max]", value.Line)
	}
}

// Pass is one render request: a box rendered over a zoom range.
type Pass struct {
	BBox types.BoundingBox
	Zoom ZoomRange
}

// Region is a named output directory and the areas rendered into it.
type Region struct {
	Name    string              `yaml:"name"`
	Zone    string              `yaml:"zone,omitempty"`
	Code    string              `yaml:"code,omitempty"`
	Title   string              `yaml:"title,omitempty"`
	Polygon string              `yaml:"polygon,omitempty"`
	Zooms   []ZoomRange         `yaml:"zooms"`
	Boxes   []types.BoundingBox `yaml:"boxes,omitempty"`

	// path is the file the region was loaded from, used to resolve Polygon.
	path string
}

// Validate checks the region is renderable.
func (r *Region) Validate() error {
	if !namePattern.MatchString(r.Name) {
		return fmt.Errorf("invalid region name %q: use lowercase letters, digits, '.', '_' or '-'", r.Name)
	}
	if len(r.Zooms) == 0 {
		return fmt.Errorf("region %s: no zoom levels", r.Name)
	}
	for _, z := range r.Zooms {
		if err := z.Validate(); err != nil {
			return fmt.Errorf("region %s: %w", r.Name, err)
		}
	}
	if len(r.Boxes) == 0 && r.Polygon == "" {
		return fmt.Errorf("region %s: needs boxes or a polygon", r.Name)
	}
	for i, b := range r.Boxes {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("region %s box %d: %w", r.Name, i, err)
		}
	}
	return nil
}

// Passes expands boxes x zooms in file order.
func (r *Region) Passes() []Pass {
	passes := make([]Pass, 0, len(r.Boxes)*len(r.Zooms))
	for _, b := range r.Boxes {
		for _, z := range r.Zooms {
			passes = append(passes, Pass{BBox: b, Zoom: z})
		}
	}
	return passes
}

// ZoomSpan returns the lowest and highest zoom level of the region.
func (r *Region) ZoomSpan() (int, int) {
	if len(r.Zooms) == 0 {
		return 0, 0
	}
	lo, hi := r.Zooms[0].Min, r.Zooms[0].Max
	for _, z := range r.Zooms[1:] {
		lo = min(lo, z.Min)
		hi = max(hi, z.Max)
	}
	return lo, hi
}

// PolygonPath resolves Polygon relative to the region file.
func (r *Region) PolygonPath() string {
	if r.Polygon == "" || filepath.IsAbs(r.Polygon) || r.path == "" {
		return r.Polygon
	}
	return filepath.Join(filepath.Dir(r.path), r.Polygon)
}

// Source returns the file the region was loaded from, if any.
func (r *Region) Source() string {
	return r.path
}

// Load reads and validates one region file.
func Load(path string) (*Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read region file: %w", err)
	}

	var r Region
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse region file %s: %w", path, err)
	}
	r.path = path

	if r.Name == "" {
		r.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &r, nil
}

// LoadDir reads every *.yaml / *.yml file under dir (recursively), sorted by path.
func LoadDir(dir string) ([]*Region, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan region directory: %w", err)
	}
	sort.Strings(paths)

	regions := make([]*Region, 0, len(paths))
	for _, p := range paths {
		r, err := Load(p)
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, nil
}

// LoadAll resolves a mix of region files and zone directories.
func LoadAll(paths []string) ([]*Region, error) {
	var regions []*Region
	seen := make(map[string]string)

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}

		var loaded []*Region
		if info.IsDir() {
			loaded, err = LoadDir(p)
		} else {
			var r *Region
			r, err = Load(p)
			loaded = []*Region{r}
		}
		if err != nil {
			return nil, err
		}

		for _, r := range loaded {
			if prev, ok := seen[r.Name]; ok {
				return nil, fmt.Errorf("region %s defined twice (%s, %s)", r.Name, prev, r.path)
			}
			seen[r.Name] = r.path
			regions = append(regions, r)
		}
	}
	return regions, nil
}

// Write stores the region as YAML at path, creating parent directories.
func Write(path string, r *Region) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create region directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create region file: %w", err)
	}

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		f.Close() // nolint:errcheck // Already returning an error
		return fmt.Errorf("failed to encode region: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close() // nolint:errcheck // Already returning an error
		return fmt.Errorf("failed to encode region: %w", err)
	}
	return f.Close()
}
