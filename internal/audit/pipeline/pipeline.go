// Package pipeline composes the audit calculators into one run. Every
// collaborator call is issued concurrently and bounded by a timeout; derived
// metrics are computed only after all of them have resolved.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/biomass"
	"co2nex/carbon-audit/audit-backend/internal/audit/climate"
	"co2nex/carbon-audit/audit-backend/internal/audit/forest"
	"co2nex/carbon-audit/audit-backend/internal/audit/report"
	"co2nex/carbon-audit/audit-backend/internal/audit/soil"
	"co2nex/carbon-audit/audit-backend/internal/audit/units"
	"co2nex/carbon-audit/audit-backend/internal/audit/vegetation"
	"co2nex/carbon-audit/audit-backend/internal/audit/window"
	"co2nex/carbon-audit/audit-backend/pkg/geospatial"
)

var (
	ErrMissingSource = errors.New("pipeline source is not configured")
	ErrInvalidInput  = errors.New("invalid audit input")
)

// DefaultMaxConcurrentCalls caps in-flight collaborator calls per run.
const DefaultMaxConcurrentCalls = 8

// Input is one audit request.
type Input struct {
	Region   *geospatial.Region
	AsOf     time.Time
	Metadata report.Metadata
	// Plots optionally calibrate the biomass proxy.
	Plots []biomass.Plot
}

// Pipeline runs audits against a fixed configuration and set of sources.
type Pipeline struct {
	cfg         Config
	src         Sources
	soil        *soil.Calculator
	ndvi        *vegetation.Calculator
	proxy       biomass.Proxy
	moisture    units.MoistureOptions
	maxInFlight int
	now         func() time.Time
	logger      *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for generated-at timestamps and defaulted
// as-of dates.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithMaxConcurrentCalls caps in-flight collaborator calls.
func WithMaxConcurrentCalls(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxInFlight = n
		}
	}
}

// New validates the configuration and binds the calculators. Configuration
// errors are returned here, before any run.
func New(cfg Config, src Sources, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := src.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	socCalc, err := soil.NewCalculator(cfg.DatasetVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	p := &Pipeline{
		cfg:  cfg,
		src:  src,
		soil: socCalc,
		ndvi: vegetation.NewCalculator(vegetation.Options{
			CloudThreshold: cfg.CloudThreshold,
			Composite:      cfg.Composite,
		}),
		proxy:       biomass.Proxy{ScaleFactor: cfg.BiomeScaleFactor, CarbonFraction: cfg.CarbonFraction},
		moisture:    units.MoistureOptions{PercentHeuristic: cfg.SoilMoistureHeuristic},
		maxInFlight: DefaultMaxConcurrentCalls,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the bound configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Run executes one audit. Collaborator failures and timeouts become no-data
// metrics; cancelling ctx aborts the run with ctx.Err().
func (p *Pipeline) Run(ctx context.Context, in Input) (*report.AuditReport, error) {
	if in.Region == nil {
		return nil, fmt.Errorf("%w: region is required", ErrInvalidInput)
	}
	if in.AsOf.IsZero() {
		in.AsOf = p.now()
	}
	windows, err := window.Derive(in.AsOf, p.cfg.Period)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	runID := uuid.NewString()
	logger := p.logger.With(
		zap.String("run_id", runID),
		zap.String("project_id", in.Metadata.ProjectID),
		zap.String("region_id", in.Region.ID()),
	)
	started := time.Now()
	logger.Info("Audit run started",
		zap.Time("as_of", in.AsOf),
		zap.String("baseline", windows.Baseline.String()),
		zap.String("current", windows.Current.String()),
		zap.Float64("area_ha", in.Region.AreaHectares()),
	)

	g := p.gather(ctx, logger, in, windows)
	if err := ctx.Err(); err != nil {
		logger.Warn("Audit run cancelled", zap.Error(err))
		return nil, err
	}

	rep, err := p.assemble(logger, in, windows, g)
	if err != nil {
		logger.Error("Audit run failed", zap.Error(err))
		return nil, err
	}

	counts := rep.Counts()
	logger.Info("Audit run finished",
		zap.Duration("duration", time.Since(started)),
		zap.Int("metrics_ok", counts[band.StatusOK]),
		zap.Int("metrics_no_data", counts[band.StatusNoData]),
		zap.Int("metrics_invalid", counts[band.StatusInvalid]),
	)
	return rep, nil
}

// gathered holds every collaborator result. Each field is written by exactly
// one goroutine and read only after the group has joined.
type gathered struct {
	ocd, bdod []band.Statistic

	s2, viirs [2]vegetation.Result

	gediAGB, rh100, lai band.Statistic
	structureWindow     window.Window
	precipitation       band.Statistic
	smMedian, smP5      band.Statistic
	smP95               band.Statistic
	occMean, occMin     band.Statistic
	occMax              band.Statistic

	forestGrid   *forest.Grid
	forestReason string
	waterGrid    *climate.WaterGrid
	waterReason  string
	fires        []forest.Detection
	firesReason  string
	firesWindow  window.Window
}

const (
	baselineIdx = 0
	currentIdx  = 1
)

func (p *Pipeline) gather(ctx context.Context, logger *zap.Logger, in Input, w window.Pair) *gathered {
	out := &gathered{
		ocd:  make([]band.Statistic, len(p.cfg.SoilIntervals)),
		bdod: make([]band.Statistic, len(p.cfg.SoilIntervals)),
	}
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(p.maxInFlight)

	reduce := func(dst *band.Statistic, req ReduceRequest) {
		req.Region = in.Region
		grp.Go(func() error {
			*dst = p.reduce(gctx, logger, req)
			return nil
		})
	}

	for i, iv := range p.cfg.SoilIntervals {
		reduce(&out.ocd[i], ReduceRequest{Dataset: DatasetSoilGrids, Band: "ocd_" + iv.Name, Window: w.Current, Reducer: band.ReducerMean, Scale: ScaleSoilGrids})
		reduce(&out.bdod[i], ReduceRequest{Dataset: DatasetSoilGrids, Band: "bdod_" + iv.Name, Window: w.Current, Reducer: band.ReducerMean, Scale: ScaleSoilGrids})
	}

	out.structureWindow = window.Lookback(w.Current.End, p.cfg.StructureYears)
	reduce(&out.gediAGB, ReduceRequest{Dataset: DatasetGEDIL4A, Band: "agbd", Window: out.structureWindow, Reducer: band.ReducerMean, Temporal: band.ReducerMean, Scale: ScaleGEDI})
	reduce(&out.rh100, ReduceRequest{Dataset: DatasetGEDIL2A, Band: "rh100", Window: out.structureWindow, Reducer: band.ReducerMean, Temporal: band.ReducerMean, Scale: ScaleGEDI})
	reduce(&out.lai, ReduceRequest{Dataset: DatasetMODISLAI, Band: "Lai", Window: out.structureWindow, Reducer: band.ReducerMean, Temporal: band.ReducerMean, Scale: ScaleGEDI})

	reduce(&out.precipitation, ReduceRequest{Dataset: DatasetCHIRPS, Band: "precipitation", Window: w.Current, Reducer: band.ReducerMean, Temporal: band.ReducerSum, Scale: ScaleCHIRPS})
	reduce(&out.smMedian, ReduceRequest{Dataset: DatasetSMAP, Band: "sm_surface", Window: w.Current, Reducer: band.ReducerMedian, Temporal: band.ReducerMean, Scale: ScaleSMAP})
	reduce(&out.smP5, ReduceRequest{Dataset: DatasetSMAP, Band: "sm_surface", Window: w.Current, Reducer: band.ReducerPercentile, Percentile: 5, Temporal: band.ReducerMean, Scale: ScaleSMAP})
	reduce(&out.smP95, ReduceRequest{Dataset: DatasetSMAP, Band: "sm_surface", Window: w.Current, Reducer: band.ReducerPercentile, Percentile: 95, Temporal: band.ReducerMean, Scale: ScaleSMAP})

	reduce(&out.occMean, ReduceRequest{Dataset: DatasetJRC, Band: "occurrence", Window: w.Current, Reducer: band.ReducerMean, Scale: ScaleJRC})
	reduce(&out.occMin, ReduceRequest{Dataset: DatasetJRC, Band: "occurrence", Window: w.Current, Reducer: band.ReducerMin, Scale: ScaleJRC})
	reduce(&out.occMax, ReduceRequest{Dataset: DatasetJRC, Band: "occurrence", Window: w.Current, Reducer: band.ReducerMax, Scale: ScaleJRC})

	for i, win := range [2]window.Window{w.Baseline, w.Current} {
		i, req := i, SceneRequest{Region: in.Region, Window: win}
		grp.Go(func() error {
			req := req
			req.Sensor = SensorSentinel2
			scenes, err := call(gctx, p, logger, "scenes "+req.Sensor+" "+req.Window.String(), func(ctx context.Context) ([]vegetation.Scene, error) {
				return p.src.Scenes.Scenes(ctx, req)
			})
			if err != nil {
				out.s2[i] = missingResult(vegetation.SourceSentinel2, err.Error())
				return nil
			}
			out.s2[i] = p.ndvi.Composite(scenes)
			return nil
		})
		grp.Go(func() error {
			req := req
			req.Sensor = SensorVIIRSVNP13A1
			scenes, err := call(gctx, p, logger, "index scenes "+req.Sensor+" "+req.Window.String(), func(ctx context.Context) ([]vegetation.IndexScene, error) {
				return p.src.Scenes.IndexScenes(ctx, req)
			})
			if err != nil {
				out.viirs[i] = missingResult(vegetation.SourceVIIRS, err.Error())
				return nil
			}
			out.viirs[i] = vegetation.CompositeIndex(scenes)
			return nil
		})
	}

	span := window.Window{Start: w.Baseline.Start, End: w.Current.End}
	grp.Go(func() error {
		grid, err := call(gctx, p, logger, "forest change", func(ctx context.Context) (*forest.Grid, error) {
			return p.src.Grids.ForestChange(ctx, GridRequest{Region: in.Region, Window: span, BufferMeters: p.cfg.FireBufferMeters})
		})
		if err != nil {
			out.forestReason = err.Error()
		}
		out.forestGrid = grid
		return nil
	})
	grp.Go(func() error {
		grid, err := call(gctx, p, logger, "water signals", func(ctx context.Context) (*climate.WaterGrid, error) {
			return p.src.Grids.WaterSignals(ctx, GridRequest{Region: in.Region, Window: w.Current})
		})
		if err != nil {
			out.waterReason = err.Error()
		}
		out.waterGrid = grid
		return nil
	})
	out.firesWindow = window.Trailing(in.AsOf, p.cfg.AlertLookbackDays)
	fireReq := GridRequest{
		Region:       in.Region,
		Window:       out.firesWindow,
		BufferMeters: p.cfg.AlertBufferMeters,
		SearchArea:   in.Region.Buffer(p.cfg.AlertBufferMeters),
	}
	grp.Go(func() error {
		fires, err := call(gctx, p, logger, "fire detections", func(ctx context.Context) ([]forest.Detection, error) {
			return p.src.Grids.FireDetections(ctx, fireReq)
		})
		if err != nil {
			out.firesReason = err.Error()
		}
		out.fires = fires
		return nil
	})

	_ = grp.Wait()
	return out
}

func (p *Pipeline) reduce(ctx context.Context, logger *zap.Logger, req ReduceRequest) band.Statistic {
	s, err := call(ctx, p, logger, req.Key(), func(ctx context.Context) (band.Statistic, error) {
		return p.src.Reducer.Reduce(ctx, req)
	})
	if err != nil {
		return band.Missing(req.Band, err.Error())
	}
	if s.Band == "" {
		s.Band = req.Band
	}
	return s.Normalize()
}

// call bounds fn by the reduction timeout and rewrites failures as no-data
// reasons. fn runs on its own goroutine so a collaborator that ignores ctx
// cannot hold the run past the deadline; its late result is discarded.
// Failures caused by the parent context are not logged.
func call[T any](ctx context.Context, p *Pipeline, logger *zap.Logger, what string, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, p.cfg.ReductionTimeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(cctx)
		done <- result{v, err}
	}()

	var (
		zero T
		err  error
	)
	select {
	case r := <-done:
		if r.err == nil {
			return r.v, nil
		}
		err = r.err
	case <-cctx.Done():
		err = cctx.Err()
	}

	if ctx.Err() != nil {
		return zero, ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("Collaborator call timed out", zap.String("request", what), zap.Duration("timeout", p.cfg.ReductionTimeout))
		return zero, fmt.Errorf("timed out after %s", p.cfg.ReductionTimeout)
	}
	logger.Warn("Collaborator call failed", zap.String("request", what), zap.Error(err))
	return zero, err
}

func missingResult(source, reason string) vegetation.Result {
	return vegetation.Result{
		Source: source,
		Mean:   band.Missing("NDVI", reason),
		StdDev: band.Missing("NDVI", reason),
	}
}

func formatPercentile(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
