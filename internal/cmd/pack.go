package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/MeKo-Tech/zonetiles/internal/mbtiles"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var packCmd = &cobra.Command{
	Use:   "pack region-dir",
	Short: "Pack a rendered region folder into MBTiles",
	Long: `Pack a {z}/{x}/{y}.png region folder into an MBTiles database. Zoom range,
bounds and centre are taken from the tiles found.`,
	Args: cobra.ExactArgs(1),
	RunE: runPack,
}

func init() {
	rootCmd.AddCommand(packCmd)

	packCmd.Flags().StringP("output", "o", "", "Output MBTiles file (default: {region-dir}.mbtiles)")
	packCmd.Flags().Bool("tms", false, "The folder numbers rows from the south (TMS)")
	packCmd.Flags().String("name", "", "Tileset name (default: folder name)")
	packCmd.Flags().String("description", "", "Tileset description")
	packCmd.Flags().String("attribution", "© OpenStreetMap contributors", "Attribution text")
	packCmd.Flags().Bool("overwrite", false, "Replace an existing output file")

	bindFlags(packCmd, [][2]string{
		{"pack.output", "output"},
		{"pack.tms", "tms"},
		{"pack.name", "name"},
		{"pack.description", "description"},
		{"pack.attribution", "attribution"},
		{"pack.overwrite", "overwrite"},
	})
}

type packOptions struct {
	Dir         string
	Output      string
	TMS         bool
	Name        string
	Description string
	Attribution string
	Overwrite   bool
}

func runPack(cmd *cobra.Command, args []string) error {
	opts := packOptions{
		Dir:         args[0],
		Output:      viper.GetString("pack.output"),
		TMS:         viper.GetBool("pack.tms"),
		Name:        viper.GetString("pack.name"),
		Description: viper.GetString("pack.description"),
		Attribution: viper.GetString("pack.attribution"),
		Overwrite:   viper.GetBool("pack.overwrite"),
	}

	if logger == nil {
		initLogging()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := packRegion(ctx, opts)
	if err != nil {
		return err
	}

	logger.Info("Pack complete",
		"output", opts.Output,
		"tiles", stats.Tiles,
		"size", humanize.Bytes(uint64(stats.Bytes)),
		"zooms", fmt.Sprintf("%d-%d", stats.MinZoom, stats.MaxZoom),
	)
	return nil
}

func packRegion(ctx context.Context, opts packOptions) (mbtiles.PackStats, error) {
	dir := filepath.Clean(opts.Dir)
	info, err := os.Stat(dir)
	if err != nil {
		return mbtiles.PackStats{}, fmt.Errorf("input directory: %w", err)
	}
	if !info.IsDir() {
		return mbtiles.PackStats{}, fmt.Errorf("%s is not a directory", dir)
	}

	if opts.Output == "" {
		opts.Output = dir + ".mbtiles"
	}
	if opts.Name == "" {
		opts.Name = filepath.Base(dir)
	}

	if _, err := os.Stat(opts.Output); err == nil {
		if !opts.Overwrite {
			return mbtiles.PackStats{}, fmt.Errorf("%s exists (use --overwrite)", opts.Output)
		}
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(opts.Output + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
				return mbtiles.PackStats{}, fmt.Errorf("failed to remove old output: %w", err)
			}
		}
	}

	meta := mbtiles.Metadata{
		Name:        opts.Name,
		Format:      "png",
		Attribution: opts.Attribution,
		Description: opts.Description,
		Type:        "baselayer",
		Version:     "1.0",
	}

	w, err := mbtiles.New(opts.Output, meta)
	if err != nil {
		return mbtiles.PackStats{}, fmt.Errorf("failed to create MBTiles writer: %w", err)
	}

	logger.Info("Packing region", "dir", dir, "output", opts.Output, "tms", opts.TMS)

	stats, err := mbtiles.PackDir(ctx, dir, schemeFromFlag(opts.TMS), w, logger)
	if err == nil && stats.Tiles == 0 {
		err = fmt.Errorf("no tiles found in %s", dir)
	}
	if err == nil {
		err = w.SetMetadata(stats.Metadata(meta))
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(opts.Output) // nolint:errcheck
		return stats, fmt.Errorf("pack %s: %w", filepath.Base(dir), err)
	}
	return stats, nil
}
