package pipeline

import (
	"context"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/popgrid/internal/features"
	"github.com/sells-group/popgrid/internal/grid"
	"github.com/sells-group/popgrid/internal/spatial"
	"github.com/sells-group/popgrid/internal/table"
)

// DefaultChunkSize is the number of cells handed to a worker at once.
const DefaultChunkSize = 256

// AggregateOptions tune the cell worker pool.
type AggregateOptions struct {
	// Workers bounds concurrent chunks. Zero means GOMAXPROCS.
	Workers int
	// ChunkSize is the number of cells per task. Zero means DefaultChunkSize.
	ChunkSize int
	// NoData is the marker declared in the table schema. Empty means "NA".
	NoData string
}

func (o AggregateOptions) withDefaults() AggregateOptions {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.NoData == "" {
		o.NoData = table.DefaultNoData
	}
	return o
}

// Aggregate runs every computer on every cell and returns one record per cell
// in grid order, with columns in computer order. Cells are processed in
// parallel chunks; each worker writes only the records of its own chunk. The
// first failing computer cancels the remaining chunks and its
// *features.ComputationError is returned.
func Aggregate(ctx context.Context, g *grid.Grid, computers []features.Computer, set *spatial.Set, opts AggregateOptions) (*table.Table, error) {
	opts = opts.withDefaults()
	names := features.Names(computers)
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return nil, eris.Errorf("aggregate: duplicate variable %s", n)
		}
		seen[n] = true
	}

	t := &table.Table{
		Schema:  table.NewSchema(names, opts.NoData),
		Records: make([]table.Record, g.Len()),
	}

	log := zap.L().With(zap.String("component", "aggregate"))
	start := time.Now()

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Workers)

	chunks := 0
	for lo := 0; lo < g.Len(); lo += opts.ChunkSize {
		lo := lo
		if gctx.Err() != nil {
			break
		}
		hi := min(lo+opts.ChunkSize, g.Len())
		chunks++

		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				cell := g.Cells[i]
				values := make([]features.Value, len(computers))
				for j, c := range computers {
					v, err := c.Compute(cell, set)
					if err != nil {
						return &features.ComputationError{Variable: c.Name(), CellID: cell.ID, Err: err}
					}
					values[j] = v
				}
				t.Records[i] = table.Record{CellID: cell.ID, Values: values}
			}
			log.Debug("aggregate: chunk done", zap.Int("from", lo), zap.Int("to", hi))
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, eris.Wrap(err, "aggregate")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "aggregate")
	}

	log.Info("aggregate: complete",
		zap.Int("cells", g.Len()),
		zap.Int("variables", len(computers)),
		zap.Int("chunks", chunks),
		zap.Int("workers", opts.Workers),
		zap.Duration("elapsed", time.Since(start)),
	)
	return t, nil
}
