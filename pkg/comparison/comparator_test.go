package comparison

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dosegamma/internal/models"
	"dosegamma/pkg/config"
	"dosegamma/pkg/gamma"
	"dosegamma/pkg/gridio"
)

func writeGrid(t *testing.T, dir, name string, shift float64) string {
	t.Helper()
	axis := models.RegularAxis(0, 1, 8)
	dose := make([]float64, 0, len(axis)*len(axis))
	for _, y := range axis {
		for _, x := range axis {
			dose = append(dose, 50+2*(x+shift)+y)
		}
	}
	g, err := models.NewDoseGrid([][]float64{axis, axis}, dose)
	require.NoError(t, err)
	g.Units = "Gy"

	path := filepath.Join(dir, name)
	require.NoError(t, gridio.SaveDoseGrid(path, g))
	return path
}

func TestProcessWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Output.SaveSlices = true
	cfg.Output.Verbose = false
	cfg.Processing.NumCores = 2

	c := NewComparator(&Params{
		ReferencePath:  writeGrid(t, dir, "ref.yaml", 0),
		EvaluationPath: writeGrid(t, dir, "eval.yml", 0),
		OutputDir:      filepath.Join(dir, "out"),
		Config:         cfg,
	})
	require.NoError(t, c.Process(context.Background()))

	_, err := uuid.Parse(c.ID())
	assert.NoError(t, err)

	res := c.GetResult()
	require.NotNil(t, res)
	assert.Equal(t, 1.0, res.PassRate())
	assert.Equal(t, 64, res.Metadata.Evaluated)

	for _, name := range []string{GammaMapFile, HistogramFile, filepath.Join(SlicesDir, "z", "gamma_z_000.png")} {
		_, err := os.Stat(filepath.Join(dir, "out", name))
		assert.NoError(t, err, name)
	}
	assert.Len(t, c.Outputs(), 3)

	rep, err := gridio.LoadReport(filepath.Join(dir, "out", GammaMapFile))
	require.NoError(t, err)
	assert.Equal(t, c.ID(), rep.ID)
	assert.Equal(t, filepath.Join(dir, "ref.yaml"), rep.Reference)
	assert.Equal(t, res.Summary, rep.Summary)
}

func TestProcessDetectsShift(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Output.SaveGammaMap = false
	cfg.Output.SaveHistogram = false
	cfg.Output.Verbose = false
	cfg.Gamma.DosePercentThreshold = 1
	cfg.Gamma.DistanceMMThreshold = 1
	cfg.Gamma.LowerPercentDoseCutoff = 0
	cfg.Processing.Search = string(gamma.SearchExhaustive)

	c := NewComparator(&Params{
		ReferencePath:  writeGrid(t, dir, "ref.yaml", 0),
		EvaluationPath: writeGrid(t, dir, "eval.yaml", 3),
		OutputDir:      filepath.Join(dir, "out"),
		Config:         cfg,
	})
	require.NoError(t, c.Process(context.Background()))

	res := c.GetResult()
	assert.Less(t, res.PassRate(), 1.0)
	assert.Equal(t, gamma.SearchExhaustive, res.Metadata.Search)
	assert.Empty(t, c.Outputs())
}

func TestProcessErrors(t *testing.T) {
	dir := t.TempDir()
	ref := writeGrid(t, dir, "ref.yaml", 0)

	tests := map[string]*Params{
		"missing reference":   {ReferencePath: filepath.Join(dir, "none.yaml"), EvaluationPath: ref},
		"unsupported format":  {ReferencePath: ref, EvaluationPath: filepath.Join(dir, "eval.txt")},
		"missing rt dose":     {ReferencePath: ref, EvaluationPath: filepath.Join(dir, "eval.dcm")},
		"invalid search name": {ReferencePath: ref, EvaluationPath: ref, Config: badSearchConfig()},
	}
	for name, p := range tests {
		p.OutputDir = filepath.Join(dir, "out")
		err := NewComparator(p).Process(context.Background())
		assert.Error(t, err, name)
	}
}

func TestProcessCancelled(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Output.Verbose = false

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewComparator(&Params{
		ReferencePath:  writeGrid(t, dir, "ref.yaml", 0),
		EvaluationPath: writeGrid(t, dir, "eval.yaml", 1),
		OutputDir:      filepath.Join(dir, "out"),
		Config:         cfg,
	})
	err := c.Process(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, c.GetResult())
}

func badSearchConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Processing.Search = "octree"
	cfg.Output.Verbose = false
	return cfg
}
