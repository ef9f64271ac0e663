package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/zonetiles/internal/pipeline"
	"github.com/MeKo-Tech/zonetiles/internal/region"
	"github.com/MeKo-Tech/zonetiles/internal/renderer"
	"github.com/MeKo-Tech/zonetiles/internal/tile"
	"github.com/MeKo-Tech/zonetiles/internal/types"
	"github.com/MeKo-Tech/zonetiles/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var renderCmd = &cobra.Command{
	Use:   "render [region.yaml|zone-dir ...]",
	Short: "Render map tiles for regions",
	Long: `Render every tile covering the given regions through Mapnik.

Regions come from region files or zone directories given as arguments, or
from --bbox/--zooms/--name for a single ad-hoc region. Existing tiles are kept,
so an interrupted run can simply be started again.`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	addRegionFlags(renderCmd)

	renderCmd.Flags().IntP("workers", "w", 0, "Number of parallel render workers (default: number of CPU cores)")
	renderCmd.Flags().Int("queue-size", worker.DefaultQueueSize, "Number of tiles queued ahead of the workers")
	renderCmd.Flags().Bool("tms", false, "Number rows from the south (TMS) instead of the north (XYZ)")
	renderCmd.Flags().Bool("delete-empty", true, "Delete rendered tiles of exactly --empty-tile-size bytes")
	renderCmd.Flags().Int64("empty-tile-size", worker.DefaultEmptyTileSize, "Size in bytes of an empty tile for the style")
	renderCmd.Flags().Bool("prune-empty-dirs", false, "Remove empty directories below each region after rendering")
	renderCmd.Flags().Bool("progress", true, "Show progress bar")
	renderCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some tiles fail to render")

	// Mapnik
	renderCmd.Flags().String("fonts-dir", "", "Directory with fonts to register")
	renderCmd.Flags().String("datasources-dir", renderer.DefaultDatasourcesDir, "Directory with Mapnik input plugins")
	renderCmd.Flags().Int("buffer-size", renderer.MinBufferSize, "Render buffer around each tile in pixels")
	renderCmd.Flags().String("format", renderer.DefaultFormat, "Mapnik image format")
	renderCmd.Flags().String("background", "", "Background color (#rrggbb or #rrggbbaa), overrides the style")

	bindFlags(renderCmd, [][2]string{
		{"render.bbox", "bbox"},
		{"render.zooms", "zooms"},
		{"render.name", "name"},
		{"render.polygon", "polygon"},
		{"render.workers", "workers"},
		{"render.queue_size", "queue-size"},
		{"render.tms", "tms"},
		{"render.delete_empty", "delete-empty"},
		{"render.empty_tile_size", "empty-tile-size"},
		{"render.prune_empty_dirs", "prune-empty-dirs"},
		{"render.progress", "progress"},
		{"render.allow_failures", "allow-failures"},
		{"render.fonts_dir", "fonts-dir"},
		{"render.datasources_dir", "datasources-dir"},
		{"render.buffer_size", "buffer-size"},
		{"render.format", "format"},
		{"render.background", "background"},
	})
}

// addRegionFlags adds the ad-hoc region flags shared by render and plan.
func addRegionFlags(cmd *cobra.Command) {
	cmd.Flags().String("bbox", "", "Bounding box: lon0,lat0,lon1,lat1 (e.g., \"-73.22,18.69,-72.80,18.73\")")
	cmd.Flags().String("zooms", "", "Zoom ranges, e.g. \"0-11,13,15,17\" (default: 0-11,13,15,17)")
	cmd.Flags().String("name", "", "Region (output directory) name for --bbox")
	cmd.Flags().String("polygon", "", "Polygon file (.poly or .geojson) covered in addition to --bbox")
}

// regionArgs is how a command selects its regions.
type regionArgs struct {
	Paths   []string
	BBox    string
	Zooms   string
	Name    string
	Polygon string
}

func readRegionArgs(prefix string, args []string) regionArgs {
	return regionArgs{
		Paths:   args,
		BBox:    viper.GetString(prefix + ".bbox"),
		Zooms:   viper.GetString(prefix + ".zooms"),
		Name:    viper.GetString(prefix + ".name"),
		Polygon: viper.GetString(prefix + ".polygon"),
	}
}

// loadRegions resolves region files and directories, or builds a single
// region from the ad-hoc flags.
func loadRegions(a regionArgs) ([]*region.Region, error) {
	adhoc := a.BBox != "" || a.Polygon != ""
	if len(a.Paths) > 0 {
		if adhoc {
			return nil, errors.New("use either region files or --bbox/--polygon, not both")
		}
		regions, err := region.LoadAll(a.Paths)
		if err != nil {
			return nil, err
		}
		if len(regions) == 0 {
			return nil, errors.New("no regions found")
		}
		return regions, nil
	}

	if !adhoc {
		return nil, errors.New("no regions given: pass region files or --bbox")
	}
	if a.Name == "" {
		return nil, errors.New("--name is required with --bbox")
	}

	r := &region.Region{Name: a.Name, Polygon: a.Polygon, Zooms: region.DefaultZooms}
	if a.Zooms != "" {
		zooms, err := region.ParseZoomRanges(a.Zooms)
		if err != nil {
			return nil, fmt.Errorf("invalid --zooms: %w", err)
		}
		r.Zooms = zooms
	}
	if a.BBox != "" {
		bbox, err := types.ParseBoundingBox(a.BBox)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox: %w", err)
		}
		r.Boxes = []types.BoundingBox{bbox}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return []*region.Region{r}, nil
}

func schemeFromFlag(tms bool) tile.Scheme {
	if tms {
		return tile.SchemeTMS
	}
	return tile.SchemeXYZ
}

func runRender(cmd *cobra.Command, args []string) error {
	outputDir := viper.GetString("output-dir")
	style := viper.GetString("style")
	workers := viper.GetInt("render.workers")
	allowFailures := viper.GetBool("render.allow_failures")

	if logger == nil {
		initLogging()
	}

	if style == "" {
		return errors.New("--style is required")
	}
	if _, err := os.Stat(style); err != nil {
		return fmt.Errorf("style file: %w", err)
	}

	regions, err := loadRegions(readRegionArgs("render", args))
	if err != nil {
		return err
	}

	if workers <= 0 {
		workers = worker.DefaultWorkers()
	}

	rcfg := renderer.Config{
		StyleFile:       style,
		BufferSize:      viper.GetInt("render.buffer_size"),
		Format:          viper.GetString("render.format"),
		DatasourcesDir:  viper.GetString("render.datasources_dir"),
		FontsDir:        viper.GetString("render.fonts_dir"),
		BackgroundColor: viper.GetString("render.background"),
	}

	gen, err := pipeline.NewGenerator(pipeline.Config{
		OutputDir: outputDir,
		Scheme:    schemeFromFlag(viper.GetBool("render.tms")),
		Workers:   workers,
		QueueSize: viper.GetInt("render.queue_size"),
		NewRenderer: func() (worker.Renderer, error) {
			r, err := renderer.NewMapnikRenderer(rcfg)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
		DeleteEmpty:    viper.GetBool("render.delete_empty"),
		EmptyTileSize:  viper.GetInt64("render.empty_tile_size"),
		PruneEmptyDirs: viper.GetBool("render.prune_empty_dirs"),
		Progress:       viper.GetBool("render.progress"),
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to init generator: %w", err)
	}

	logger.Info("Starting render",
		"regions", len(regions),
		"style", style,
		"output_dir", outputDir,
		"workers", workers,
		"mapnik", renderer.Version(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	total := &pipeline.Summary{Region: "total"}
	for _, r := range regions {
		summary, err := gen.RenderRegion(ctx, r)
		total.Merge(summary)
		if err != nil {
			if errors.Is(err, pipeline.ErrInterrupted) {
				logger.Warn("Interrupted, rerun to continue", "region", r.Name)
			}
			return fmt.Errorf("region %s: %w", r.Name, err)
		}
	}

	m := gen.Metrics()
	logger.Info("Render complete",
		"summary", total.String(),
		"mean_render_ms", fmt.Sprintf("%.1f", m.MeanRender()),
		"p95_render_ms", fmt.Sprintf("%.1f", m.P95Render()),
	)

	if total.Failed > 0 {
		if allowFailures {
			logger.Warn("Some tiles failed to render, but continuing due to --allow-failures flag", "failed_count", total.Failed)
			return nil
		}
		return fmt.Errorf("%d tiles failed to render", total.Failed)
	}
	return nil
}
