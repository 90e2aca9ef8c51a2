package gridio

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dosegamma/internal/models"
	"dosegamma/pkg/gamma"
)

func TestReadDoseGrid(t *testing.T) {
	in := `
units: cGy
axes: [[0, 1], [0, 2, 4]]
dose: [1, 2, 3, 4, 5, 6]
`
	g, err := ReadDoseGrid(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "cGy", g.Units)
	assert.Equal(t, []int{2, 3}, g.Shape())
	assert.Equal(t, 6.0, g.MaxDose())
}

func TestReadDoseGridRejectsInvalid(t *testing.T) {
	_, err := ReadDoseGrid(strings.NewReader("axes: [[0, 1]]\ndose: [1]\n"))
	var gerr *models.InvalidGridError
	assert.ErrorAs(t, err, &gerr)

	_, err = ReadDoseGrid(strings.NewReader("axes: {"))
	assert.Error(t, err)
}

func TestDoseGridRoundTrip(t *testing.T) {
	g, err := models.NewDoseGrid([][]float64{{2, 1, 0}, {0.5, 1.5}}, []float64{0, 1.25, 2, 3, 4, 5.5})
	require.NoError(t, err)
	g.Units = "Gy"

	path := filepath.Join(t.TempDir(), "grids", "ref.yaml")
	require.NoError(t, SaveDoseGrid(path, g))

	got, err := LoadDoseGrid(path)
	require.NoError(t, err)
	if diff := cmp.Diff(g, got); diff != "" {
		t.Errorf("dose grid mismatch (-want +got):\n%s", diff)
	}
}

func TestReportRoundTripKeepsNaN(t *testing.T) {
	ref, err := models.NewDoseGrid([][]float64{models.RegularAxis(0, 1, 6)}, []float64{100, 2, 100, 100, 1, 100})
	require.NoError(t, err)

	params := gamma.DefaultParams()
	params.LowerDoseCutoff = 10
	res, err := gamma.Compute(context.Background(), ref, ref.Clone(), params)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, NewReport("run-1", res)))

	rep, err := ReadReport(&buf)
	require.NoError(t, err)
	assert.Equal(t, "run-1", rep.ID)
	assert.True(t, math.IsNaN(rep.Gamma[1]))
	assert.True(t, math.IsNaN(rep.Gamma[4]))
	assert.Equal(t, 0.0, rep.Gamma[0])
	assert.Equal(t, 4, rep.Metadata.Qualifying)
	assert.Equal(t, gamma.Global, rep.Metadata.Normalisation)
	assert.Equal(t, 1.0, rep.Summary.PassRate)

	if diff := cmp.Diff(res.Map.Values, rep.Map().Values, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("gamma values mismatch (-want +got):\n%s", diff)
	}
}

func TestReadReportRejectsShapeMismatch(t *testing.T) {
	_, err := ReadReport(strings.NewReader("axes: [[0, 1, 2]]\ngamma: [0, 1]\n"))
	assert.Error(t, err)
}
