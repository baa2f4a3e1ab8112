package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/popgrid/internal/config"
	"github.com/sells-group/popgrid/internal/model"
	"github.com/sells-group/popgrid/internal/pipeline"
	"github.com/sells-group/popgrid/internal/store"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Compute the feature table",
	Long: `Runs the full pipeline: grid, layer loading, spatial indexing and per-cell
aggregation of every predictor, then validates the table and writes it with
its schema descriptor.

In application mode the configured department is gridded at the configured
resolution. In model mode the grid covers the Mobiliscope sectors at the
training resolution and the cell and sector targets are written too.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mode, err := applyFeaturesFlags(cmd, cfg)
		if err != nil {
			return err
		}
		if err := cfg.Validate(string(mode)); err != nil {
			return err
		}

		res, err := runFeatures(ctx, cfg, mode)
		if err != nil {
			return err
		}
		printSummary(os.Stdout, res)
		return nil
	},
}

func init() {
	featuresCmd.Flags().String("mode", string(model.ModeApplication), "application or model")
	featuresCmd.Flags().String("department", "", "department code (default: from config)")
	featuresCmd.Flags().Int("resolution", 0, "cell size in meters, 100 to 1000 (default: from config)")
	featuresCmd.Flags().Bool("snap", false, "align the origin on a multiple of the resolution")
	featuresCmd.Flags().String("format", "", "output format: csv, sqlite, postgres, xlsx, parquet (default: from config)")
	featuresCmd.Flags().String("output", "", "output path (default: from config)")
	featuresCmd.Flags().String("expected", "", "schema descriptor the table must match")
	featuresCmd.Flags().Bool("extended", false, "add densite_voirie")
	featuresCmd.Flags().Int("workers", 0, "parallel cell workers (default: from config or GOMAXPROCS)")
	rootCmd.AddCommand(featuresCmd)
}

// applyFeaturesFlags merges the command line into c and returns the mode.
func applyFeaturesFlags(cmd *cobra.Command, c *config.Config) (model.Mode, error) {
	applyGridFlags(cmd, c)

	if v, _ := cmd.Flags().GetString("format"); v != "" {
		c.Output.Format = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		c.Output.Path = v
	}
	if v, _ := cmd.Flags().GetString("expected"); v != "" {
		c.Output.Expected = v
	}
	if cmd.Flags().Changed("extended") {
		c.Features.Extended, _ = cmd.Flags().GetBool("extended")
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		c.Features.Workers = v
	}

	raw, _ := cmd.Flags().GetString("mode")
	switch mode := model.Mode(raw); mode {
	case model.ModeApplication, model.ModeModel:
		return mode, nil
	default:
		return "", eris.Errorf("features: unknown mode %q", raw)
	}
}

// runFeatures opens the sink and the optional run store and runs the pipeline.
func runFeatures(ctx context.Context, c *config.Config, mode model.Mode) (*pipeline.Result, error) {
	sink, err := store.OpenSink(ctx, store.SinkConfig{
		Format:      store.Format(c.Output.Format),
		Path:        c.Output.Path,
		DatabaseURL: c.Store.DatabaseURL,
		Table:       c.Output.Table,
		Upsert:      c.Output.Upsert,
	})
	if err != nil {
		return nil, eris.Wrap(err, "features: open sink")
	}
	defer sink.Close() //nolint:errcheck

	st, err := store.OpenStore(ctx, c.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "features: open store")
	}
	if st != nil {
		defer st.Close() //nolint:errcheck
	} else {
		zap.L().Debug("features: run tracking disabled", zap.String("command", "features"))
	}

	return pipeline.New(c, st, sink).Run(ctx, mode)
}

// printSummary writes the run outcome and NoData counts to w.
func printSummary(out io.Writer, res *pipeline.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", res.RunID)
	_, _ = fmt.Fprintf(w, "Cells:\t%d\n", res.Summary.Cells)
	_, _ = fmt.Fprintf(w, "Variables:\t%d\n", len(res.Summary.Variables))
	if res.Sectors != nil {
		_, _ = fmt.Fprintf(w, "Sectors:\t%d\n", res.Sectors.Len())
	}

	names := make([]string, 0, len(res.Summary.NoData))
	for name := range res.Summary.NoData {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "  NoData %s:\t%d\n", name, res.Summary.NoData[name])
	}
	_ = w.Flush()
}
