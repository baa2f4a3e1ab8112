package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/popgrid/internal/config"
	"github.com/sells-group/popgrid/internal/grid"
	"github.com/sells-group/popgrid/internal/mobiliscope"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Write Mobiliscope day and night targets per cell",
	Long: `Reads every <city>_secteurs.geojson and <city>_pop_choro_stacked.csv of the
Mobiliscope directory, averages the present population over the day hours
(10am to 4pm) and the night hours (12am to 6am) of each sector, grids the
sectors at the training resolution and writes one row per cell with the
sector covering most of it.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
			cfg.Layers.Mobiliscope = dir
		}
		if out, _ := cmd.Flags().GetString("out"); out != "" {
			cfg.Output.Targets = out
		}
		if err := cfg.Validate("targets"); err != nil {
			return err
		}

		f, err := os.Create(cfg.Output.Targets)
		if err != nil {
			return eris.Wrapf(err, "targets: create %s", cfg.Output.Targets)
		}
		defer f.Close() //nolint:errcheck

		n, err := writeTargets(ctx, f, cfg)
		if err != nil {
			return err
		}
		zap.L().Info("targets: written",
			zap.String("command", "targets"),
			zap.String("path", cfg.Output.Targets),
			zap.Int("cells", n),
		)
		return nil
	},
}

func init() {
	targetsCmd.Flags().String("dir", "", "Mobiliscope export directory (default: layers.mobiliscope)")
	targetsCmd.Flags().String("out", "", "output CSV path (default: output.targets)")
	rootCmd.AddCommand(targetsCmd)
}

// writeTargets grids the sectors of the Mobiliscope directory and writes the
// cell assignments with their targets. It returns the number of cells written.
func writeTargets(ctx context.Context, w io.Writer, c *config.Config) (int, error) {
	ds, err := mobiliscope.LoadDir(ctx, c.Layers.Mobiliscope, c.Territory.SRID)
	if err != nil {
		return 0, err
	}
	boundary, err := mobiliscope.Boundary(ds.Sectors)
	if err != nil {
		return 0, err
	}
	g, err := grid.Build(boundary, c.Grid.TrainingResolution, grid.Options{
		Snap:   c.Grid.Snap,
		Buffer: c.Grid.SectorBuffer,
	})
	if err != nil {
		return 0, err
	}

	assigned := mobiliscope.Assign(g, ds.Sectors)
	if err := mobiliscope.WriteAssignments(w, assigned, ds.Targets, c.Output.NoData); err != nil {
		return 0, err
	}
	return len(assigned), nil
}
