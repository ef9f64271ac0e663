package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/MeKo-Tech/zonetiles/internal/pipeline"
	"github.com/MeKo-Tech/zonetiles/internal/projection"
	"github.com/MeKo-Tech/zonetiles/internal/region"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var planCmd = &cobra.Command{
	Use:   "plan [region.yaml|zone-dir ...]",
	Short: "Count the tiles a render would produce",
	Long:  `Enumerate the tiles of each region without rendering and print them per zoom level.`,
	RunE:  runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	addRegionFlags(planCmd)
	planCmd.Flags().String("style-table", "light", "Table style: default, light, rounded, bold, double")
	planCmd.Flags().Bool("by-zoom", true, "Print one row per region and zoom level")

	bindFlags(planCmd, [][2]string{
		{"plan.bbox", "bbox"},
		{"plan.zooms", "zooms"},
		{"plan.name", "name"},
		{"plan.polygon", "polygon"},
		{"plan.style_table", "style-table"},
		{"plan.by_zoom", "by-zoom"},
	})
}

// planRow is the tile count of a region at one zoom level, or over all of
// them when Zoom is negative.
type planRow struct {
	Region string
	Zone   string
	Zoom   int
	Tiles  int
}

func planRegions(regions []*region.Region, byZoom bool) ([]planRow, error) {
	proj := projection.New(projection.DefaultLevels)

	var rows []planRow
	for _, r := range regions {
		set, err := pipeline.PlanRegion(proj, r)
		if err != nil {
			return nil, err
		}
		if !byZoom {
			rows = append(rows, planRow{Region: r.Name, Zone: r.Zone, Zoom: -1, Tiles: set.Len()})
			continue
		}
		zooms, counts := set.CountByZoom()
		for _, z := range zooms {
			rows = append(rows, planRow{Region: r.Name, Zone: r.Zone, Zoom: int(z), Tiles: counts[z]})
		}
	}
	return rows, nil
}

func tableStyle(name string) table.Style {
	switch strings.ToLower(name) {
	case "light":
		return table.StyleLight
	case "rounded", "round":
		return table.StyleRounded
	case "bold":
		return table.StyleBold
	case "double":
		return table.StyleDouble
	default:
		return table.StyleDefault
	}
}

func writePlanTable(w io.Writer, rows []planRow, style string) int {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(tableStyle(style))
	tw.AppendHeader(table.Row{"Region", "Zone", "Zoom", "Tiles"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	total := 0
	for _, r := range rows {
		zoom := "all"
		if r.Zoom >= 0 {
			zoom = fmt.Sprint(r.Zoom)
		}
		tw.AppendRow(table.Row{r.Region, r.Zone, zoom, humanize.Comma(int64(r.Tiles))})
		total += r.Tiles
	}
	tw.AppendFooter(table.Row{"Total", "", "", humanize.Comma(int64(total))})
	tw.Render()
	return total
}

func runPlan(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	regions, err := loadRegions(readRegionArgs("plan", args))
	if err != nil {
		return err
	}

	rows, err := planRegions(regions, viper.GetBool("plan.by_zoom"))
	if err != nil {
		return err
	}

	total := writePlanTable(cmd.OutOrStdout(), rows, viper.GetString("plan.style_table"))
	logger.Debug("Plan complete", "regions", len(regions), "tiles", total)
	return nil
}
