// Package pipeline runs the feature engine end to end: inputs are loaded,
// gridded, indexed and aggregated into a validated feature table that is
// handed to a sink.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/popgrid/internal/config"
	"github.com/sells-group/popgrid/internal/features"
	"github.com/sells-group/popgrid/internal/grid"
	"github.com/sells-group/popgrid/internal/layer"
	"github.com/sells-group/popgrid/internal/mobiliscope"
	"github.com/sells-group/popgrid/internal/model"
	"github.com/sells-group/popgrid/internal/spatial"
	"github.com/sells-group/popgrid/internal/store"
	"github.com/sells-group/popgrid/internal/table"
)

// Pipeline orchestrates one feature run.
type Pipeline struct {
	cfg   *config.Config
	store store.Store // optional run tracking
	sink  store.Sink
}

// New creates a Pipeline. st may be nil.
func New(cfg *config.Config, st store.Store, sink store.Sink) *Pipeline {
	return &Pipeline{cfg: cfg, store: st, sink: sink}
}

// Result is everything a run produced.
type Result struct {
	RunID   string
	Grid    *grid.Grid
	Table   *table.Table
	Summary *model.RunResult

	// Model mode only.
	Assignments []mobiliscope.Assignment
	Sectors     *table.Table
}

// Run executes the pipeline in the given mode.
func (p *Pipeline) Run(ctx context.Context, mode model.Mode) (*Result, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("mode", string(mode)))
	log.Info("pipeline: starting run")

	spec := p.runSpec(mode)
	res := &Result{Summary: &model.RunResult{}}

	// Create run record.
	if p.store != nil {
		run, err := p.store.CreateRun(ctx, spec)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		res.RunID = run.ID
	} else {
		res.RunID = uuid.New().String()
	}
	log = log.With(zap.String("run_id", res.RunID))

	setStatus := func(status model.RunStatus) {
		if p.store == nil {
			return
		}
		if statusErr := p.store.UpdateRunStatus(ctx, res.RunID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) error {
		var phase *model.RunPhase
		if p.store != nil {
			var phaseErr error
			phase, phaseErr = p.store.CreatePhase(ctx, res.RunID, name)
			if phaseErr != nil {
				log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
			}
		}

		start := time.Now()
		phaseResult, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if phaseResult == nil {
			phaseResult = &model.PhaseResult{}
		}
		phaseResult.Name = name
		phaseResult.Duration = duration

		if fnErr != nil {
			phaseResult.Status = model.PhaseStatusFailed
			phaseResult.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			phaseResult.Status = model.PhaseStatusComplete
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if phase != nil {
			_ = p.store.CompletePhase(ctx, phase.ID, phaseResult)
		}
		res.Summary.Phases = append(res.Summary.Phases, *phaseResult)
		return fnErr
	}

	finish := func(runErr error) {
		if runErr != nil {
			res.Summary.Error = runErr.Error()
		}
		if p.store == nil {
			return
		}
		if saveErr := p.store.UpdateRunResult(ctx, res.RunID, res.Summary); saveErr != nil {
			log.Warn("pipeline: failed to save run result", zap.Error(saveErr))
		}
	}

	err := p.run(ctx, mode, res, setStatus, trackPhase)
	finish(err)
	if err != nil {
		return nil, err
	}

	log.Info("pipeline: run complete",
		zap.Int("cells", res.Summary.Cells),
		zap.Int("variables", len(res.Summary.Variables)),
	)
	return res, nil
}

func (p *Pipeline) run(
	ctx context.Context,
	mode model.Mode,
	res *Result,
	setStatus func(model.RunStatus),
	trackPhase func(string, func() (*model.PhaseResult, error)) error,
) error {
	var (
		boundary geom.T
		dataset  *mobiliscope.Dataset
		layers   []*layer.Layer
		set      *spatial.Set
		tables   features.Tables
	)

	// ===== Phase 1: Boundary =====
	setStatus(model.RunStatusLoading)
	err := trackPhase("1_boundary", func() (*model.PhaseResult, error) {
		switch mode {
		case model.ModeApplication:
			b, err := ReadBoundary(p.cfg.Territory.Boundary, p.cfg.Territory.CodeField, p.cfg.Territory.Department, p.cfg.Territory.SRID)
			if err != nil {
				return nil, err
			}
			boundary = b
			return &model.PhaseResult{Metadata: map[string]any{"department": p.cfg.Territory.Department}}, nil
		case model.ModeModel:
			ds, err := mobiliscope.LoadDir(ctx, p.cfg.Layers.Mobiliscope, p.cfg.Territory.SRID)
			if err != nil {
				return nil, err
			}
			b, err := mobiliscope.Boundary(ds.Sectors)
			if err != nil {
				return nil, err
			}
			dataset, boundary = ds, b
			return &model.PhaseResult{Metadata: map[string]any{
				"sectors": ds.Sectors.Len(),
				"targets": len(ds.Targets),
			}}, nil
		default:
			return nil, eris.Errorf("pipeline: unknown mode %q", mode)
		}
	})
	if err != nil {
		return err
	}

	// ===== Phase 2: Grid =====
	setStatus(model.RunStatusGridding)
	err = trackPhase("2_grid", func() (*model.PhaseResult, error) {
		g, err := p.buildGrid(mode, boundary)
		if err != nil {
			return nil, err
		}
		res.Grid = g
		return &model.PhaseResult{Metadata: map[string]any{
			"cells":      g.Len(),
			"resolution": g.Resolution,
		}}, nil
	})
	if err != nil {
		return err
	}

	// ===== Phase 3: Layers =====
	setStatus(model.RunStatusLoading)
	err = trackPhase("3_layers", func() (*model.PhaseResult, error) {
		ls, err := p.loadLayers(ctx, res.Grid)
		if err != nil {
			return nil, err
		}
		layers = ls
		meta := make(map[string]any, len(ls))
		for _, l := range ls {
			meta[string(l.Kind)] = l.Len()
		}
		return &model.PhaseResult{Metadata: meta}, nil
	})
	if err != nil {
		return err
	}

	// ===== Phase 4: Index =====
	err = trackPhase("4_index", func() (*model.PhaseResult, error) {
		set = spatial.NewSet(layers...)
		t, err := p.lookupTables(ctx, findLayer(layers, layer.KindEstablishments))
		if err != nil {
			return nil, err
		}
		tables = t
		return &model.PhaseResult{Metadata: map[string]any{
			"poi_weights": len(t.POIWeights),
			"naf_jobs":    len(t.NAFJobs),
		}}, nil
	})
	if err != nil {
		return err
	}

	// ===== Phase 5: Aggregate =====
	setStatus(model.RunStatusComputing)
	err = trackPhase("5_aggregate", func() (*model.PhaseResult, error) {
		computers := features.DefaultComputers(tables, features.Options{
			Extended:        p.cfg.Features.Extended,
			MinBuiltSurface: p.cfg.Features.MinBuiltSurface,
		})
		t, err := Aggregate(ctx, res.Grid, computers, set, AggregateOptions{
			Workers:   p.cfg.Features.Workers,
			ChunkSize: p.cfg.Features.ChunkSize,
			NoData:    p.cfg.Output.NoData,
		})
		if err != nil {
			return nil, err
		}
		res.Table = t
		res.Summary.Cells = t.Len()
		res.Summary.Variables = t.Schema.Names()
		res.Summary.NoData = CountNoData(t)
		return &model.PhaseResult{Metadata: map[string]any{"records": t.Len()}}, nil
	})
	if err != nil {
		return err
	}

	// ===== Phase 6: Validate =====
	setStatus(model.RunStatusValidating)
	err = trackPhase("6_validate", func() (*model.PhaseResult, error) {
		if p.cfg.Output.Expected == "" {
			return &model.PhaseResult{Metadata: map[string]any{"checked": false}}, nil
		}
		expected, err := table.ReadSchema(p.cfg.Output.Expected)
		if err != nil {
			return nil, err
		}
		if err := table.Validate(res.Table, expected); err != nil {
			return nil, eris.Wrapf(err, "pipeline: validate against %s", p.cfg.Output.Expected)
		}
		return &model.PhaseResult{Metadata: map[string]any{"checked": true}}, nil
	})
	if err != nil {
		return err
	}

	// ===== Phase 7: Targets (model mode) =====
	if mode == model.ModeModel {
		err = trackPhase("7_targets", func() (*model.PhaseResult, error) {
			return p.buildTargets(res, dataset, set)
		})
		if err != nil {
			return err
		}
	}

	// ===== Phase 8: Write =====
	setStatus(model.RunStatusWriting)
	return trackPhase("8_write", func() (*model.PhaseResult, error) {
		n, err := p.sink.Write(ctx, store.Output{Table: res.Table, Grid: res.Grid, RunID: res.RunID})
		if err != nil {
			return nil, err
		}
		if p.cfg.Output.Schema != "" {
			if err := table.WriteSchema(p.cfg.Output.Schema, res.Table.Schema); err != nil {
				return nil, err
			}
		}
		return &model.PhaseResult{Metadata: map[string]any{
			"rows":   n,
			"format": p.cfg.Output.Format,
		}}, nil
	})
}

func (p *Pipeline) runSpec(mode model.Mode) model.RunSpec {
	spec := model.RunSpec{
		Mode:       mode,
		Territory:  p.cfg.Territory.Department,
		SRID:       p.cfg.Territory.SRID,
		Resolution: p.cfg.Grid.Resolution,
		Output:     p.cfg.Output.Format,
	}
	if mode == model.ModeModel {
		spec.Territory = "mobiliscope"
		spec.Resolution = p.cfg.Grid.TrainingResolution
	}
	return spec
}

func (p *Pipeline) buildGrid(mode model.Mode, boundary geom.T) (*grid.Grid, error) {
	opts := grid.Options{Snap: p.cfg.Grid.Snap}
	resolution := p.cfg.Grid.Resolution
	if mode == model.ModeModel {
		opts.Buffer = p.cfg.Grid.SectorBuffer
		resolution = p.cfg.Grid.TrainingResolution
	}
	return grid.Build(boundary, resolution, opts)
}

// buildTargets assigns cells to sectors, writes the cell targets and, when
// configured, the built-surface weighted sector table.
func (p *Pipeline) buildTargets(res *Result, ds *mobiliscope.Dataset, set *spatial.Set) (*model.PhaseResult, error) {
	res.Assignments = mobiliscope.Assign(res.Grid, ds.Sectors)

	built := make(map[string]float64, res.Grid.Len())
	for _, c := range res.Grid.Cells {
		built[c.ID] = features.BuiltSurface(c, set)
	}
	res.Sectors = mobiliscope.SectorTable(res.Table, res.Assignments, built, ds.Targets)

	if path := p.cfg.Output.Targets; path != "" {
		if err := writeFile(path, func(f *os.File) error {
			return mobiliscope.WriteAssignments(f, res.Assignments, ds.Targets, res.Table.Schema.NoData)
		}); err != nil {
			return nil, err
		}
	}
	if path := p.cfg.Output.Sectors; path != "" {
		if err := writeFile(path, func(f *os.File) error {
			return table.WriteCSV(f, res.Sectors)
		}); err != nil {
			return nil, err
		}
	}
	return &model.PhaseResult{Metadata: map[string]any{
		"assigned": len(res.Assignments),
		"sectors":  res.Sectors.Len(),
	}}, nil
}

// CountNoData returns the number of NoData values per variable. Variables
// without NoData are left out.
func CountNoData(t *table.Table) map[string]int {
	out := make(map[string]int)
	for j, c := range t.Schema.Columns {
		for _, r := range t.Records {
			if j < len(r.Values) && !r.Values[j].Valid {
				out[c.Name]++
			}
		}
	}
	return out
}

func writeFile(path string, fn func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "pipeline: create %s", path)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "pipeline: close %s", path)
	}
	return nil
}
