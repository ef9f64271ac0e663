package mbtiles

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/zonetiles/internal/tile"
	"github.com/paulmach/orb"
)

// PackStats describes the tiles found by PackDir.
type PackStats struct {
	Tiles   int
	Skipped int
	Bytes   int64
	MinZoom int
	MaxZoom int
	Bound   orb.Bound
}

func (s *PackStats) add(c tile.Coords, size int64) {
	z := int(c.Z)
	if s.Tiles == 0 {
		s.MinZoom, s.MaxZoom = z, z
		s.Bound = c.Bounds()
	} else {
		s.MinZoom = min(s.MinZoom, z)
		s.MaxZoom = max(s.MaxZoom, z)
		s.Bound = s.Bound.Union(c.Bounds())
	}
	s.Tiles++
	s.Bytes += size
}

// Metadata fills zoom range, bounds and centre of meta from the stats.
func (s PackStats) Metadata(meta Metadata) Metadata {
	if s.Tiles == 0 {
		return meta
	}
	meta.SetZoom(s.MinZoom, s.MaxZoom)
	meta.SetBound(s.Bound, (s.MinZoom+s.MaxZoom)/2)
	return meta
}

// PackDir walks a {z}/{x}/{y}.png tree and writes every tile to w. Rows in a
// TMS tree are converted back to XYZ. Files that are not tiles are skipped.
func PackDir(ctx context.Context, dir string, scheme tile.Scheme, w *Writer, logger *slog.Logger) (PackStats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var stats PackStats
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), "."+tile.Extension) {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		c, err := tile.ParsePath(rel, scheme)
		if err != nil {
			logger.Debug("Skipping non-tile file", "path", path, "error", err)
			stats.Skipped++
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := w.WriteTile(c, data); err != nil {
			return err
		}
		stats.add(c, int64(len(data)))
		return nil
	})
	if err != nil {
		return stats, err
	}

	if err := w.Flush(); err != nil {
		return stats, err
	}
	return stats, nil
}
