package tile

import (
	"path/filepath"
	"testing"

	"github.com/paulmach/orb/maptile"
)

func TestCoordsString(t *testing.T) {
	tests := []struct {
		coords   Coords
		expected string
	}{
		{Coords{Z: 13, X: 4297, Y: 2754}, "13/4297/2754"},
		{Coords{Z: 0, X: 0, Y: 0}, "0/0/0"},
		{Coords{Z: 18, X: 12345, Y: 67890}, "18/12345/67890"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := tt.coords.String()
			if result != tt.expected {
				t.Errorf("String() = %s, want %s", result, tt.expected)
			}
		})
	}
}

func TestCoordsValid(t *testing.T) {
	if !NewCoords(0, 0, 0).Valid() {
		t.Error("0/0/0 should be valid")
	}
	if NewCoords(0, 1, 0).Valid() {
		t.Error("0/1/0 should be invalid")
	}
	if !NewCoords(3, 7, 7).Valid() {
		t.Error("3/7/7 should be valid")
	}
	if NewCoords(3, 7, 8).Valid() {
		t.Error("3/7/8 should be invalid")
	}
}

func TestCoordsBounds(t *testing.T) {
	coords := Coords{Z: 13, X: 4297, Y: 2754}
	bounds := coords.Bounds()

	t.Logf("Tile %s bounds: %v", coords, bounds)

	if bounds.Min.Lon() >= bounds.Max.Lon() {
		t.Errorf("minLon >= maxLon: %.6f >= %.6f", bounds.Min.Lon(), bounds.Max.Lon())
	}
	if bounds.Min.Lat() >= bounds.Max.Lat() {
		t.Errorf("minLat >= maxLat: %.6f >= %.6f", bounds.Min.Lat(), bounds.Max.Lat())
	}

	back := FromTile(maptile.At(bounds.Center(), 13))
	if back != coords {
		t.Errorf("tile at bounds centre = %s, want %s", back, coords)
	}
}

func TestParseScheme(t *testing.T) {
	tests := []struct {
		in      string
		want    Scheme
		wantErr bool
	}{
		{"", SchemeXYZ, false},
		{"xyz", SchemeXYZ, false},
		{"TMS", SchemeTMS, false},
		{" tms ", SchemeTMS, false},
		{"wmts", "", true},
	}

	for _, tt := range tests {
		got, err := ParseScheme(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseScheme(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseScheme(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestSchemeRow(t *testing.T) {
	c := NewCoords(3, 2, 1)

	if got := SchemeXYZ.Row(c); got != 1 {
		t.Errorf("xyz row = %d, want 1", got)
	}
	if got := SchemeTMS.Row(c); got != 6 {
		t.Errorf("tms row = %d, want 6", got)
	}

	// Flipping twice returns the original row.
	flipped := NewCoords(c.Z, c.X, SchemeTMS.Row(c))
	if got := SchemeTMS.Row(flipped); got != c.Y {
		t.Errorf("double flip = %d, want %d", got, c.Y)
	}

	if got := SchemeTMS.Row(NewCoords(0, 0, 0)); got != 0 {
		t.Errorf("tms row at z0 = %d, want 0", got)
	}
}

func TestCoordsPath(t *testing.T) {
	c := NewCoords(11, 553, 904)

	if got, want := c.Path("out", "ht-haiti", SchemeXYZ), filepath.Join("out", "ht-haiti", "11", "553", "904.png"); got != want {
		t.Errorf("xyz path = %s, want %s", got, want)
	}
	if got, want := c.Path("out", "ht-haiti", SchemeTMS), filepath.Join("out", "ht-haiti", "11", "553", "1143.png"); got != want {
		t.Errorf("tms path = %s, want %s", got, want)
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		rel     string
		scheme  Scheme
		want    Coords
		wantErr bool
	}{
		{"11/553/904.png", SchemeXYZ, NewCoords(11, 553, 904), false},
		{"11/553/1143.png", SchemeTMS, NewCoords(11, 553, 904), false},
		{"0/0/0.png", SchemeXYZ, NewCoords(0, 0, 0), false},
		{"11/553/904.jpg", SchemeXYZ, Coords{}, true},
		{"11/553.png", SchemeXYZ, Coords{}, true},
		{"a/553/904.png", SchemeXYZ, Coords{}, true},
		{"2/4/0.png", SchemeXYZ, Coords{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			got, err := ParsePath(filepath.FromSlash(tt.rel), tt.scheme)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParsePath(%q) expected error, got %v", tt.rel, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePath(%q) unexpected error: %v", tt.rel, err)
			}
			if got != tt.want {
				t.Errorf("ParsePath(%q) = %s, want %s", tt.rel, got, tt.want)
			}
			if back := got.RelPath(tt.scheme); back != filepath.FromSlash(tt.rel) {
				t.Errorf("RelPath round trip = %s, want %s", back, tt.rel)
			}
		})
	}
}

func TestSet(t *testing.T) {
	s := NewSet()

	if !s.Add(NewCoords(1, 0, 0)) {
		t.Error("first add should be new")
	}
	if !s.Add(NewCoords(2, 1, 1)) {
		t.Error("second add should be new")
	}
	if s.Add(NewCoords(1, 0, 0)) {
		t.Error("duplicate add should not be new")
	}
	s.Add(NewCoords(2, 1, 2))

	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	if !s.Contains(NewCoords(2, 1, 1)) || s.Contains(NewCoords(2, 0, 0)) {
		t.Error("Contains returned wrong result")
	}

	list := s.Coords()
	if list[0] != NewCoords(1, 0, 0) || list[2] != NewCoords(2, 1, 2) {
		t.Errorf("insertion order not kept: %v", list)
	}

	zooms, counts := s.CountByZoom()
	if len(zooms) != 2 || zooms[0] != 1 || zooms[1] != 2 {
		t.Errorf("zooms = %v", zooms)
	}
	if counts[1] != 1 || counts[2] != 2 {
		t.Errorf("counts = %v", counts)
	}

	b := s.Bound()
	if b.Min.Lon() != -180 || b.Max.Lon() != 0 {
		t.Errorf("unexpected bound %v", b)
	}
}
