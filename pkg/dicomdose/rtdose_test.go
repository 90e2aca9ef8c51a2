package dicomdose

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"github.com/suyashkumar/dicom/pkg/uid"
)

func headFirstSupine() Attributes {
	return Attributes{
		Rows:                    2,
		Columns:                 3,
		ImagePositionPatient:    [3]float64{-10, 20, 5},
		ImageOrientationPatient: [6]float64{1, 0, 0, 0, 1, 0},
		PixelSpacing:            [2]float64{2.5, 2},
		GridFrameOffsetVector:   []float64{0, 3},
		DoseGridScaling:         0.5,
		DoseUnits:               "GY",
		Frames: [][]int{
			{0, 1, 2, 3, 4, 5},
			{6, 7, 8, 9, 10, 11},
		},
	}
}

func TestFromAttributes(t *testing.T) {
	g, err := FromAttributes(headFirstSupine())
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 3}, g.Shape())
	assert.Equal(t, []float64{5, 8}, g.Axes[0])
	assert.Equal(t, []float64{20, 22.5}, g.Axes[1])
	assert.Equal(t, []float64{-10, -8, -6}, g.Axes[2])
	assert.Equal(t, "GY", g.Units)
	assert.Equal(t, 0.0, g.Dose[0])
	assert.Equal(t, 5.5, g.Dose[11])
}

func TestFromAttributesAbsoluteOffsets(t *testing.T) {
	a := headFirstSupine()
	a.GridFrameOffsetVector = []float64{5, 7}

	g, err := FromAttributes(a)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 7}, g.Axes[0])
}

func TestFromAttributesFlippedOrientation(t *testing.T) {
	a := headFirstSupine()
	a.ImageOrientationPatient = [6]float64{-1, 0, 0, 0, -1, 0}

	g, err := FromAttributes(a)
	require.NoError(t, err)
	assert.Equal(t, []float64{-10, -12, -14}, g.Axes[2])
	assert.Equal(t, []float64{20, 17.5}, g.Axes[1])
}

func TestFromAttributesFeetFirstOffsets(t *testing.T) {
	a := headFirstSupine()
	a.ImageOrientationPatient = [6]float64{-1, 0, 0, 0, 1, 0}

	// Row x column points along -z, so relative offsets count down from z0
	g, err := FromAttributes(a)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 2}, g.Axes[0])
	assert.Equal(t, []float64{-10, -12, -14}, g.Axes[2])
	assert.Equal(t, []float64{20, 22.5}, g.Axes[1])

	a.GridFrameOffsetVector = []float64{5, 2}
	g, err = FromAttributes(a)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 2}, g.Axes[0])
}

func TestFromAttributesSingleFrame(t *testing.T) {
	a := headFirstSupine()
	a.GridFrameOffsetVector = nil
	a.Frames = a.Frames[:1]

	g, err := FromAttributes(a)
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, g.Axes[0])
}

func TestFromAttributesErrors(t *testing.T) {
	tests := map[string]func(a *Attributes){
		"oblique orientation": func(a *Attributes) { a.ImageOrientationPatient = [6]float64{0.7, 0.7, 0, 0, 1, 0} },
		"no frames":           func(a *Attributes) { a.Frames = nil },
		"short frame":         func(a *Attributes) { a.Frames[1] = []int{1, 2} },
		"offset count":        func(a *Attributes) { a.GridFrameOffsetVector = []float64{0} },
		"missing offsets":     func(a *Attributes) { a.GridFrameOffsetVector = nil },
		"zero scaling":        func(a *Attributes) { a.DoseGridScaling = 0 },
		"zero spacing":        func(a *Attributes) { a.PixelSpacing = [2]float64{0, 1} },
		"non-monotonic z":     func(a *Attributes) { a.GridFrameOffsetVector = []float64{0, 0} },
	}
	for name, mutate := range tests {
		a := headFirstSupine()
		mutate(&a)
		_, err := FromAttributes(a)
		assert.Error(t, err, name)
	}
}

func TestParseDecimalStrings(t *testing.T) {
	got, err := ParseDecimalStrings([]string{" 1.5", `2\-3.25 `, ""})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2, -3.25}, got)

	_, err = ParseDecimalStrings([]string{"abc"})
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.dcm"))
	assert.Error(t, err)
}

// writeRTDose writes a two frame 16 bit RT Dose file built from headFirstSupine
func writeRTDose(t *testing.T, modality string) string {
	t.Helper()
	a := headFirstSupine()

	frames := make([]*frame.Frame, len(a.Frames))
	for i, values := range a.Frames {
		data := make([][]int, len(values))
		for p, v := range values {
			data[p] = []int{v}
		}
		frames[i] = &frame.Frame{NativeData: frame.NativeFrame{
			Data:          data,
			Rows:          a.Rows,
			Cols:          a.Columns,
			BitsPerSample: 16,
		}}
	}

	values := []struct {
		tag  tag.Tag
		data any
	}{
		{tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.481.2"}},
		{tag.MediaStorageSOPInstanceUID, []string{"1.2.826.0.1.3680043.2.1125.1"}},
		{tag.TransferSyntaxUID, []string{uid.ExplicitVRLittleEndian}},
		{tag.Modality, []string{modality}},
		{tag.ImagePositionPatient, []string{"-10", "20", "5"}},
		{tag.ImageOrientationPatient, []string{"1", "0", "0", "0", "1", "0"}},
		{tag.SamplesPerPixel, []int{1}},
		{tag.NumberOfFrames, []string{"2"}},
		{tag.Rows, []int{a.Rows}},
		{tag.Columns, []int{a.Columns}},
		{tag.PixelSpacing, []string{"2.5", "2"}},
		{tag.BitsAllocated, []int{16}},
		{tag.BitsStored, []int{16}},
		{tag.HighBit, []int{15}},
		{tag.PixelRepresentation, []int{0}},
		{tag.DoseUnits, []string{"GY"}},
		{tag.GridFrameOffsetVector, []string{"0", "3"}},
		{tag.DoseGridScaling, []string{"0.5"}},
		{tag.PixelData, dicom.PixelDataInfo{Frames: frames}},
	}
	var ds dicom.Dataset
	for _, v := range values {
		elem, err := dicom.NewElement(v.tag, v.data)
		require.NoError(t, err, "tag %v", v.tag)
		ds.Elements = append(ds.Elements, elem)
	}

	path := filepath.Join(t.TempDir(), "rtdose.dcm")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, dicom.Write(f, ds))
	require.NoError(t, f.Close())
	return path
}

func TestLoad(t *testing.T) {
	g, err := Load(writeRTDose(t, "RTDOSE"))
	require.NoError(t, err)

	want, err := FromAttributes(headFirstSupine())
	require.NoError(t, err)

	assert.Equal(t, want.Axes, g.Axes)
	assert.Equal(t, want.Dose, g.Dose)
	assert.Equal(t, "GY", g.Units)
	assert.Equal(t, []float64{5, 8}, g.Axes[0])
	assert.Equal(t, 5.5, g.Dose[11])
}

func TestLoadWrongModality(t *testing.T) {
	_, err := Load(writeRTDose(t, "CT"))
	assert.ErrorContains(t, err, "expected RTDOSE")
}
