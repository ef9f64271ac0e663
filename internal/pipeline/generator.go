// Package pipeline plans and runs region renders on a worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MeKo-Tech/zonetiles/internal/projection"
	"github.com/MeKo-Tech/zonetiles/internal/region"
	"github.com/MeKo-Tech/zonetiles/internal/tile"
	"github.com/MeKo-Tech/zonetiles/internal/types"
	"github.com/MeKo-Tech/zonetiles/internal/worker"
	"github.com/dustin/go-humanize"
)

// ErrInterrupted is returned when a run is cancelled before all tiles were queued.
var ErrInterrupted = errors.New("render interrupted")

// Config configures a Generator.
type Config struct {
	OutputDir string
	Scheme    tile.Scheme

	Workers     int
	QueueSize   int
	NewRenderer worker.RendererFactory

	DeleteEmpty    bool
	EmptyTileSize  int64
	PruneEmptyDirs bool
	Progress       bool

	Projection *projection.GoogleProjection
	Metrics    *worker.Metrics
	OnResult   worker.ResultFunc
	Logger     *slog.Logger
}

// Generator renders regions into {OutputDir}/{region}/{z}/{x}/{y}.png.
type Generator struct {
	cfg Config
}

// NewGenerator validates cfg and prepares a generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	if cfg.NewRenderer == nil {
		return nil, errors.New("renderer factory is required")
	}
	if cfg.Scheme == "" {
		cfg.Scheme = tile.SchemeXYZ
	}
	if cfg.Projection == nil {
		cfg.Projection = projection.New(projection.DefaultLevels)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = worker.NewMetrics(nil)
	}
	return &Generator{cfg: cfg}, nil
}

func (g *Generator) log() *slog.Logger {
	if g.cfg.Logger != nil {
		return g.cfg.Logger
	}
	return slog.Default()
}

// Metrics returns the metrics shared by all runs of this generator.
func (g *Generator) Metrics() *worker.Metrics {
	return g.cfg.Metrics
}

// RenderTiles renders bbox at zoom levels minZ..maxZ into the region directory name.
func (g *Generator) RenderTiles(ctx context.Context, bbox types.BoundingBox, minZ, maxZ int, name string) (*Summary, error) {
	if name == "" {
		return nil, errors.New("region name is required")
	}
	zr := region.ZoomRange{Min: minZ, Max: maxZ}
	if err := zr.Validate(); err != nil {
		return nil, err
	}

	set, err := Plan(g.cfg.Projection, []region.Pass{{BBox: bbox, Zoom: zr}})
	if err != nil {
		return nil, err
	}
	return g.run(ctx, name, set)
}

// RenderRegion renders every pass of r through one worker pool.
func (g *Generator) RenderRegion(ctx context.Context, r *region.Region) (*Summary, error) {
	set, err := PlanRegion(g.cfg.Projection, r)
	if err != nil {
		return nil, err
	}
	return g.run(ctx, r.Name, set)
}

// RenderSet renders an already planned tile set.
func (g *Generator) RenderSet(ctx context.Context, name string, set *tile.Set) (*Summary, error) {
	return g.run(ctx, name, set)
}

func (g *Generator) run(ctx context.Context, name string, set *tile.Set) (*Summary, error) {
	start := time.Now()
	summary := &Summary{Region: name, Planned: set.Len()}
	regionDir := filepath.Join(g.cfg.OutputDir, name)

	g.log().Info("Rendering region",
		"region", name,
		"tiles", set.Len(),
		"dir", regionDir,
		"scheme", string(g.cfg.Scheme))

	progress := worker.NewProgress(set.Len(), g.cfg.Progress)

	pool := worker.New(worker.Config{
		Workers:       g.cfg.Workers,
		QueueSize:     g.cfg.QueueSize,
		NewRenderer:   g.cfg.NewRenderer,
		DeleteEmpty:   g.cfg.DeleteEmpty,
		EmptyTileSize: g.cfg.EmptyTileSize,
		Metrics:       g.cfg.Metrics,
		Logger:        g.cfg.Logger,
		OnProgress:    progress.Callback(),
		OnResult: func(res worker.Result) {
			summary.Add(res)
			g.log().Debug("Tile",
				"region", name,
				"tile", res.Task.Coords.String(),
				"status", res.Status.String(),
				"bytes", res.Size)
			if g.cfg.OnResult != nil {
				g.cfg.OnResult(res)
			}
		},
	})

	if err := pool.Start(ctx); err != nil {
		progress.Done()
		return nil, err
	}

	submitted := 0
	var submitErr error
	for _, c := range set.Coords() {
		task := worker.Task{
			Coords: c,
			Path:   c.Path(g.cfg.OutputDir, name, g.cfg.Scheme),
			Region: name,
		}
		if err := pool.Submit(ctx, task); err != nil {
			submitErr = err
			break
		}
		submitted++
	}
	pool.Close()
	progress.Done()

	// Tiles never queued count as cancelled.
	summary.Cancelled += set.Len() - submitted
	summary.Elapsed = time.Since(start)

	if g.cfg.PruneEmptyDirs {
		removed, err := PruneEmptyDirs(regionDir)
		if err != nil {
			g.log().Warn("Failed to prune empty directories", "dir", regionDir, "error", err)
		} else if removed > 0 {
			g.log().Info("Pruned empty directories", "region", name, "count", removed)
		}
	}

	g.log().Info("Region done", "region", name, "summary", summary.String())

	if submitErr != nil {
		return summary, fmt.Errorf("%w: %w", ErrInterrupted, submitErr)
	}
	return summary, nil
}

// PruneEmptyDirs removes empty directories below root, deepest first, and
// returns how many were removed. root itself is kept.
func PruneEmptyDirs(root string) (int, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Reverse lexical order visits children before their parents.
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))

	removed := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return removed, err
		}
		if len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Summary counts the outcome of a region run.
type Summary struct {
	Region    string
	Planned   int
	Rendered  int
	Existing  int
	Empty     int
	Failed    int
	Cancelled int
	Bytes     int64
	Elapsed   time.Duration
}

// Add counts one result.
func (s *Summary) Add(res worker.Result) {
	switch res.Status {
	case worker.StatusRendered:
		s.Rendered++
		s.Bytes += res.Size
	case worker.StatusExists:
		s.Existing++
	case worker.StatusEmpty:
		s.Empty++
	case worker.StatusFailed:
		s.Failed++
	case worker.StatusCancelled:
		s.Cancelled++
	}
}

// Merge adds the counts of o.
func (s *Summary) Merge(o *Summary) {
	if o == nil {
		return
	}
	s.Planned += o.Planned
	s.Rendered += o.Rendered
	s.Existing += o.Existing
	s.Empty += o.Empty
	s.Failed += o.Failed
	s.Cancelled += o.Cancelled
	s.Bytes += o.Bytes
	s.Elapsed += o.Elapsed
}

// Done is the number of tiles with a final outcome.
func (s *Summary) Done() int {
	return s.Rendered + s.Existing + s.Empty + s.Failed
}

func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d tiles: %d rendered (%s), %d existing, %d empty",
		s.Done(), s.Planned, s.Rendered, humanize.Bytes(uint64(s.Bytes)), s.Existing, s.Empty)
	if s.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", s.Failed)
	}
	if s.Cancelled > 0 {
		fmt.Fprintf(&b, ", %d cancelled", s.Cancelled)
	}
	fmt.Fprintf(&b, " in %s", worker.FormatDuration(s.Elapsed))
	return b.String()
}
