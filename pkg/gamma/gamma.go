// Package gamma compares two dose distributions with the gamma index of
// Low et al. (1998), combining dose difference and distance to agreement.
//
// For every reference point at or above the dose cutoff, the evaluation
// grid is refined InterpFraction times along each axis and the minimum of
//
//	sqrt(((Dr-De)/(DosePercentThreshold/100*Dnorm))^2 + (|xr-xe|/DistanceMMThreshold)^2)
//
// over the refined evaluation samples within MaxGamma*DistanceMMThreshold
// is reported, capped at MaxGamma. Dnorm is the global normalisation dose,
// or the reference point's own dose in local mode.
//
// The computation is stateless and read-only on its inputs. Qualifying
// points are split into chunks that a bounded pool of workers processes
// independently, each writing its own cells of the gamma map.
package gamma

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"dosegamma/internal/models"
	"dosegamma/pkg/interpolation"
)

// Map is a gamma map on the reference grid. Cells of reference points that
// were not evaluated hold NaN.
type Map struct {
	Axes   [][]float64
	Values []float64
}

// Shape returns the number of cells along each axis
func (m *Map) Shape() []int {
	shape := make([]int, len(m.Axes))
	for d, axis := range m.Axes {
		shape[d] = len(axis)
	}
	return shape
}

// Evaluated returns the non-NaN gamma values in row-major order
func (m *Map) Evaluated() []float64 {
	values := make([]float64, 0, len(m.Values))
	for _, v := range m.Values {
		if !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	return values
}

// Metadata records how a result was produced
type Metadata struct {
	// Normalisation is the dose normalisation mode
	Normalisation NormalisationMode `yaml:"normalisation"`

	// NormalisationDose is the global normalisation dose. In local mode it
	// is still used for the percent dose cutoff.
	NormalisationDose float64 `yaml:"normalisationDose"`

	// Cutoff is the effective lower dose cutoff
	Cutoff float64 `yaml:"cutoff"`

	// Qualifying counts reference points at or above the cutoff
	Qualifying int `yaml:"qualifying"`

	// Evaluated counts points actually searched (less than Qualifying when a
	// random subset was requested)
	Evaluated int `yaml:"evaluated"`

	// Search is the candidate search strategy used
	Search Strategy `yaml:"search"`

	// Params are the parameters of the computation
	Params Params `yaml:"params"`
}

// Result is the outcome of a gamma comparison
type Result struct {
	Map       *Map
	Summary   Summary
	Histogram Histogram
	Metadata  Metadata
}

// PassRate returns the fraction of evaluated points with gamma <= 1
func (r *Result) PassRate() float64 { return r.Summary.PassRate }

// Mean returns the mean gamma of evaluated points
func (r *Result) Mean() float64 { return r.Summary.Mean }

// Max returns the largest gamma of evaluated points
func (r *Result) Max() float64 { return r.Summary.Max }

// chunkSize bounds how many reference points one worker task handles
const chunkSize = 256

// Compute calculates the gamma map of evaluation against reference.
//
// Parameters and grids are checked before any work starts. It returns an
// *InvalidParameterError, a *models.InvalidGridError or a *GridMismatchError
// for bad input, and the context error if ctx ends before completion.
func Compute(ctx context.Context, reference, evaluation *models.DoseGrid, params Params, opts ...Option) (*Result, error) {
	o := newOptions(opts)

	if err := params.Validate(); err != nil {
		return nil, err
	}
	strategy, err := ParseStrategy(string(o.strategy))
	if err != nil {
		return nil, err
	}
	o.strategy = strategy
	if err := reference.Validate(); err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	if err := evaluation.Validate(); err != nil {
		return nil, fmt.Errorf("evaluation: %w", err)
	}
	if err := checkOverlap(reference, evaluation); err != nil {
		return nil, err
	}

	normDose := params.GlobalNormalisation
	if normDose == 0 {
		normDose = reference.MaxDose()
	}
	cutoff := math.Max(params.LowerDoseCutoff, params.LowerPercentDoseCutoff/100*normDose)

	qualifying := make([]int, 0, reference.Len())
	for i, v := range reference.Dose {
		if v >= cutoff {
			qualifying = append(qualifying, i)
		}
	}
	points := selectSubset(qualifying, params.RandomSubset, params.Seed)
	if err := checkZeroNormalisation(reference, points, params, normDose); err != nil {
		return nil, err
	}

	refined, err := interpolation.NewRefinedGrid(evaluation, params.InterpFraction)
	if err != nil {
		return nil, err
	}

	var hood neighbourhood
	switch o.strategy {
	case SearchKDTree:
		report(o.progress, 0, 0, fmt.Sprintf("Building k-d tree over %d evaluation samples...", refined.Len()))
		hood = newKDNeighbourhood(refined)
	case SearchExhaustive:
		hood = &exhaustiveNeighbourhood{refined: refined}
	default:
		hood = &gridNeighbourhood{refined: refined}
	}

	gm := &Map{
		Axes:   reference.Axes,
		Values: make([]float64, reference.Len()),
	}
	for i := range gm.Values {
		gm.Values[i] = math.NaN()
	}

	report(o.progress, 0, 0, fmt.Sprintf("Computing %s gamma for %d of %d points (%d workers, %s search)",
		params.Mode(), len(points), reference.Len(), o.workers, o.strategy))

	if err := run(ctx, reference, points, params, normDose, hood, gm.Values, o); err != nil {
		return nil, err
	}

	values := make([]float64, len(points))
	for i, flat := range points {
		values[i] = gm.Values[flat]
	}

	return &Result{
		Map:       gm,
		Summary:   Summarise(values),
		Histogram: NewHistogram(values, o.histogramBins, params.MaxGamma),
		Metadata: Metadata{
			Normalisation:     params.Mode(),
			NormalisationDose: normDose,
			Cutoff:            cutoff,
			Qualifying:        len(qualifying),
			Evaluated:         len(points),
			Search:            o.strategy,
			Params:            params,
		},
	}, nil
}

// run fans the selected points out over the worker pool
func run(ctx context.Context, reference *models.DoseGrid, points []int, params Params,
	normDose float64, hood neighbourhood, out []float64, o options) error {

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	var mu sync.Mutex
	completed := 0
	total := len(points)

	for start := 0; start < total; start += chunkSize {
		if gctx.Err() != nil {
			break
		}
		end := min(start+chunkSize, total)
		chunk := points[start:end]

		g.Go(func() error {
			if err := evaluateChunk(gctx, reference, chunk, params, normDose, hood, out); err != nil {
				return err
			}
			if o.progress != nil {
				mu.Lock()
				completed += len(chunk)
				o.progress(completed, total, "points evaluated")
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// evaluateChunk computes gamma for a run of reference points
func evaluateChunk(ctx context.Context, reference *models.DoseGrid, chunk []int, params Params,
	normDose float64, hood neighbourhood, out []float64) error {

	dims := reference.NDims()
	var xBuf [models.MaxDims]float64
	x := xBuf[:dims]

	limit := params.SearchRadius()
	s := &pointSearch{
		dta2:     params.DistanceMMThreshold * params.DistanceMMThreshold,
		skipPass: params.SkipOncePassed,
	}

	for i, flat := range chunk {
		if i%32 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		dr := reference.Dose[flat]
		norm := normDose
		if params.LocalGamma {
			norm = dr
		}
		s.reset(dr, params.DosePercentThreshold/100*norm)
		reference.Coords(flat, x)

		hood.seed(x, limit, s)
		if !s.done() {
			hood.visit(x, s.radius(limit), s)
		}
		out[flat] = s.gamma(params.MaxGamma)
	}
	return nil
}

// checkOverlap rejects grids whose physical extents are disjoint on any axis
func checkOverlap(reference, evaluation *models.DoseGrid) error {
	if reference.NDims() != evaluation.NDims() {
		return &GridMismatchError{
			Axis:   -1,
			Reason: fmt.Sprintf("reference has %d axes, evaluation has %d", reference.NDims(), evaluation.NDims()),
		}
	}
	for d := 0; d < reference.NDims(); d++ {
		rlo, rhi := reference.Extent(d)
		elo, ehi := evaluation.Extent(d)
		tol := 1e-9 * math.Max(1, math.Max(rhi-rlo, ehi-elo))
		if rhi < elo-tol || ehi < rlo-tol {
			return &GridMismatchError{
				Axis:   d,
				Reason: fmt.Sprintf("reference [%g, %g] and evaluation [%g, %g] do not overlap", rlo, rhi, elo, ehi),
			}
		}
	}
	return nil
}

// checkZeroNormalisation rejects an unbounded MaxGamma when a point to be
// evaluated has a zero normalisation dose. Such a point fails with gamma
// MaxGamma, which must then be finite.
func checkZeroNormalisation(reference *models.DoseGrid, points []int, params Params, normDose float64) error {
	if !math.IsInf(params.MaxGamma, 1) || len(points) == 0 {
		return nil
	}
	zero := normDose == 0
	if params.LocalGamma {
		zero = false
		for _, flat := range points {
			if reference.Dose[flat] == 0 {
				zero = true
				break
			}
		}
	}
	if !zero {
		return nil
	}
	return &InvalidParameterError{
		Name:   "max_gamma",
		Value:  params.MaxGamma,
		Reason: "must be finite when evaluated points have a zero normalisation dose; raise the dose cutoff",
	}
}

// selectSubset picks n points with a seeded generator, keeping row-major order
func selectSubset(points []int, n int, seed uint64) []int {
	if n <= 0 || n >= len(points) {
		return points
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	picked := append([]int(nil), points...)
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(picked)-i)
		picked[i], picked[j] = picked[j], picked[i]
	}
	picked = picked[:n]
	sort.Ints(picked)
	return picked
}

func report(cb ProgressCallback, completed, total int, message string) {
	if cb != nil {
		cb(completed, total, message)
	}
}
