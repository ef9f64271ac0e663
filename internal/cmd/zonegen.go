package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/zonetiles/internal/zonegen"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var zonegenCmd = &cobra.Command{
	Use:   "zonegen zones.yaml",
	Short: "Generate region tables from GeoJSON boundaries",
	Long: `Read a zone list and write one region file per polygon feature of each
zone's GeoJSON source to {regions-dir}/{zone}/{region}.yaml.`,
	Args: cobra.ExactArgs(1),
	RunE: runZonegen,
}

func init() {
	rootCmd.AddCommand(zonegenCmd)

	zonegenCmd.Flags().String("regions-dir", "./regions", "Directory the region tables are written to")

	bindFlags(zonegenCmd, [][2]string{
		{"zonegen.regions_dir", "regions-dir"},
	})
}

func runZonegen(cmd *cobra.Command, args []string) error {
	regionsDir := viper.GetString("zonegen.regions_dir")

	if logger == nil {
		initLogging()
	}

	cfg, err := zonegen.LoadConfig(args[0])
	if err != nil {
		return err
	}

	gen := &zonegen.Generator{OutputDir: regionsDir, Logger: logger}
	written, err := gen.Run(cfg)
	if err != nil {
		return fmt.Errorf("zonegen: %w", err)
	}

	logger.Info("Region tables written", "count", len(written), "dir", regionsDir)
	return nil
}
