package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "zonetiles",
	Short: "A batch Mapnik tile renderer for regions",
	Long: `zonetiles renders map tiles for named regions through Mapnik.

Each region lists bounding boxes (or a polygon) and zoom ranges; every tile
covering them is rendered into {output-dir}/{region}/{z}/{x}/{y}.png. Region
folders can then be packed into MBTiles databases and published to OSS.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	closeLogging()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("output-dir", "./tiles", "Output directory for rendered tiles")
	rootCmd.PersistentFlags().String("style", "", "Mapnik XML style file")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this file (rotated)")

	for _, key := range []string{"output-dir", "style", "verbose", "log-file"} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// render.delete_empty <- ZONETILES_RENDER_DELETE_EMPTY
	viper.SetEnvPrefix("ZONETILES")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// bindFlags binds command flags to viper keys, panicking on unknown flags.
func bindFlags(cmd *cobra.Command, pairs [][2]string) {
	for _, p := range pairs {
		if err := viper.BindPFlag(p[0], cmd.Flags().Lookup(p[1])); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", p[1], err))
		}
	}
}
