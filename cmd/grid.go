package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/popgrid/internal/config"
	"github.com/sells-group/popgrid/internal/grid"
	"github.com/sells-group/popgrid/internal/pipeline"
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Build the cell grid of a department",
	Long: `Reads the department boundary, tiles it with square cells of the configured
resolution and writes the grid as GeoJSON with one idINSPIRE per cell.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		applyGridFlags(cmd, cfg)
		if err := cfg.Validate("grid"); err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "grid: create %s", out)
		}
		defer f.Close() //nolint:errcheck

		g, err := writeGrid(f, cfg)
		if err != nil {
			return err
		}

		zap.L().Info("grid: written",
			zap.String("command", "grid"),
			zap.String("path", out),
			zap.Int("cells", g.Len()),
			zap.Int("resolution", g.Resolution),
		)
		return nil
	},
}

func init() {
	gridCmd.Flags().String("department", "", "department code (default: from config)")
	gridCmd.Flags().Int("resolution", 0, "cell size in meters, 100 to 1000 (default: from config)")
	gridCmd.Flags().Bool("snap", false, "align the origin on a multiple of the resolution")
	gridCmd.Flags().String("out", "grid.geojson", "output GeoJSON path")
	rootCmd.AddCommand(gridCmd)
}

// applyGridFlags overrides the territory and grid settings set on the
// command line.
func applyGridFlags(cmd *cobra.Command, c *config.Config) {
	if dep, _ := cmd.Flags().GetString("department"); dep != "" {
		c.Territory.Department = dep
	}
	if res, _ := cmd.Flags().GetInt("resolution"); res > 0 {
		c.Grid.Resolution = res
	}
	if cmd.Flags().Changed("snap") {
		c.Grid.Snap, _ = cmd.Flags().GetBool("snap")
	}
}

// writeGrid builds the application grid of c and encodes it to w.
func writeGrid(w io.Writer, c *config.Config) (*grid.Grid, error) {
	boundary, err := pipeline.ReadBoundary(c.Territory.Boundary, c.Territory.CodeField, c.Territory.Department, c.Territory.SRID)
	if err != nil {
		return nil, err
	}
	g, err := grid.Build(boundary, c.Grid.Resolution, grid.Options{Snap: c.Grid.Snap})
	if err != nil {
		return nil, err
	}
	if err := grid.WriteGeoJSON(w, g); err != nil {
		return nil, err
	}
	return g, nil
}
