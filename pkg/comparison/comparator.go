package comparison

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"dosegamma/internal/models"
	"dosegamma/pkg/config"
	"dosegamma/pkg/dicomdose"
	"dosegamma/pkg/gamma"
	"dosegamma/pkg/gridio"
	"dosegamma/pkg/visualization"
)

// Output file names inside Params.OutputDir
const (
	GammaMapFile  = "gamma_map.yaml"
	HistogramFile = "gamma_histogram.png"
	SlicesDir     = "slices"
)

// Params holds the inputs of a comparison run
type Params struct {
	// ReferencePath is the reference dose, as RT Dose (.dcm) or YAML grid
	ReferencePath string

	// EvaluationPath is the evaluated dose, in the same formats
	EvaluationPath string

	// OutputDir receives the gamma map, histogram and slice images
	OutputDir string

	// Config holds gamma, processing and output settings. Nil means defaults.
	Config *config.Config
}

// Comparator runs a gamma comparison between two dose files:
// 1. Loading the reference dose
// 2. Loading the evaluation dose
// 3. Computing the gamma map
// 4. Saving the report, histogram and slices
type Comparator struct {
	params *Params
	cfg    *config.Config

	// id identifies the run in reports
	id string

	reference  *models.DoseGrid
	evaluation *models.DoseGrid

	result  *gamma.Result
	elapsed time.Duration
	outputs []string
}

// NewComparator creates a comparator for the given parameters
func NewComparator(params *Params) *Comparator {
	cfg := params.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Comparator{
		params: params,
		cfg:    cfg,
		id:     uuid.NewString(),
	}
}

// Process runs the complete comparison pipeline
func (c *Comparator) Process(ctx context.Context) error {
	var err error

	c.logf("Step 1: Loading reference dose from %s...", c.params.ReferencePath)
	if c.reference, err = LoadGrid(c.params.ReferencePath); err != nil {
		return fmt.Errorf("failed to load reference dose: %w", err)
	}
	c.describe(c.reference)

	c.logf("Step 2: Loading evaluation dose from %s...", c.params.EvaluationPath)
	if c.evaluation, err = LoadGrid(c.params.EvaluationPath); err != nil {
		return fmt.Errorf("failed to load evaluation dose: %w", err)
	}
	c.describe(c.evaluation)

	if c.reference.Units != "" && c.evaluation.Units != "" &&
		!strings.EqualFold(c.reference.Units, c.evaluation.Units) {
		c.logf("Warning: dose units differ (%s vs %s)", c.reference.Units, c.evaluation.Units)
	}

	c.logf("Step 3: Computing gamma index...")
	strategy, err := c.cfg.SearchStrategy()
	if err != nil {
		return err
	}
	opts := []gamma.Option{
		gamma.WithWorkers(c.cfg.Processing.NumCores),
		gamma.WithSearch(strategy),
		gamma.WithHistogramBins(c.cfg.Output.HistogramBins),
	}
	if c.cfg.Output.Verbose {
		opts = append(opts, gamma.WithProgress(c.progress()))
	}

	start := time.Now()
	c.result, err = gamma.Compute(ctx, c.reference, c.evaluation, c.cfg.GammaParams(), opts...)
	if err != nil {
		return fmt.Errorf("gamma computation failed: %w", err)
	}
	c.elapsed = time.Since(start)

	c.logf("Step 4: Saving results to %s...", c.params.OutputDir)
	return c.save()
}

// LoadGrid reads a dose grid, choosing the reader from the file extension
func LoadGrid(path string) (*models.DoseGrid, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dcm", ".dicom":
		return dicomdose.Load(path)
	case ".yaml", ".yml":
		return gridio.LoadDoseGrid(path)
	default:
		return nil, fmt.Errorf("unsupported dose file %s (expected .dcm, .yaml or .yml)", path)
	}
}

func (c *Comparator) save() error {
	out := c.cfg.Output

	if out.SaveGammaMap {
		rep := gridio.NewReport(c.id, c.result)
		rep.Reference = c.params.ReferencePath
		rep.Evaluation = c.params.EvaluationPath

		path := filepath.Join(c.params.OutputDir, GammaMapFile)
		if err := gridio.SaveReport(path, rep); err != nil {
			return fmt.Errorf("failed to save gamma map: %w", err)
		}
		c.outputs = append(c.outputs, path)
	}

	if out.SaveHistogram {
		path := filepath.Join(c.params.OutputDir, HistogramFile)
		if err := visualization.SaveHistogram(c.result, path); err != nil {
			c.logf("Warning: Failed to save gamma histogram: %v", err)
		} else {
			c.outputs = append(c.outputs, path)
		}
	}

	if out.SaveSlices {
		viewer, err := visualization.NewViewer(c.result.Map, c.result.Metadata.Params.MaxGamma)
		if err != nil {
			return fmt.Errorf("failed to create gamma map viewer: %w", err)
		}
		for _, axis := range sliceAxes(c.result.Map) {
			dir := filepath.Join(c.params.OutputDir, SlicesDir, axis)
			if err := viewer.SaveSliceSequence(axis, dir); err != nil {
				c.logf("Warning: Failed to save %s-axis slices: %v", axis, err)
				continue
			}
			c.outputs = append(c.outputs, dir)
		}
	}

	return nil
}

// sliceAxes lists the axes worth slicing. Maps with fewer than three axes
// are a single z plane.
func sliceAxes(m *gamma.Map) []string {
	if len(m.Axes) == 3 {
		return []string{"x", "y", "z"}
	}
	return []string{"z"}
}

// progress returns a callback printing every tenth of the work
func (c *Comparator) progress() gamma.ProgressCallback {
	last := -1
	return func(completed, total int, message string) {
		if total == 0 {
			fmt.Println("  " + message)
			return
		}
		step := completed * 10 / total
		if step == last {
			return
		}
		last = step
		fmt.Printf("  %3d%% %s (%d/%d)\n", step*10, message, completed, total)
	}
}

func (c *Comparator) describe(g *models.DoseGrid) {
	units := g.Units
	if units == "" {
		units = "unknown units"
	}
	c.logf("  grid %v, max dose %.4g %s", g.Shape(), g.MaxDose(), units)
}

func (c *Comparator) logf(format string, args ...any) {
	if c.cfg.Output.Verbose {
		fmt.Printf(format+"\n", args...)
	}
}

// ID returns the run identifier written to the report
func (c *Comparator) ID() string {
	return c.id
}

// GetResult returns the gamma result of the last successful Process call
func (c *Comparator) GetResult() *gamma.Result {
	return c.result
}

// Elapsed returns how long the gamma computation took
func (c *Comparator) Elapsed() time.Duration {
	return c.elapsed
}

// Outputs lists the files and directories written by Process
func (c *Comparator) Outputs() []string {
	return c.outputs
}
