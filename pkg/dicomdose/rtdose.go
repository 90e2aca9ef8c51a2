// Package dicomdose converts DICOM RT Dose objects into dose grids.
//
// Only the attributes needed to place the dose samples in patient
// coordinates are read. Axis aligned orientations are supported, which
// covers dose grids exported by treatment planning systems.
package dicomdose

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dosegamma/internal/models"
)

// Attributes holds the RT Dose attributes a dose grid is built from
type Attributes struct {
	Rows    int
	Columns int

	// ImagePositionPatient is the centre of the first voxel in mm
	ImagePositionPatient [3]float64

	// ImageOrientationPatient holds the row and column direction cosines
	ImageOrientationPatient [6]float64

	// PixelSpacing is the row spacing followed by the column spacing in mm
	PixelSpacing [2]float64

	// GridFrameOffsetVector holds per-frame z offsets. Offsets starting at
	// zero are relative to ImagePositionPatient along the plane normal.
	GridFrameOffsetVector []float64

	DoseGridScaling float64
	DoseUnits       string

	// Frames holds the stored pixel values of each frame in row-major order
	Frames [][]int
}

// FromAttributes builds a dose grid with axes ordered z, y, x
func FromAttributes(a Attributes) (*models.DoseGrid, error) {
	if a.Rows <= 0 || a.Columns <= 0 {
		return nil, fmt.Errorf("invalid dose plane size %dx%d", a.Rows, a.Columns)
	}
	if len(a.Frames) == 0 {
		return nil, fmt.Errorf("dose has no frames")
	}
	if a.DoseGridScaling <= 0 {
		return nil, fmt.Errorf("invalid dose grid scaling %v", a.DoseGridScaling)
	}
	if a.PixelSpacing[0] <= 0 || a.PixelSpacing[1] <= 0 {
		return nil, fmt.Errorf("invalid pixel spacing %v", a.PixelSpacing)
	}

	rowDir, colDir, err := axisDirections(a.ImageOrientationPatient)
	if err != nil {
		return nil, err
	}

	ipp := a.ImagePositionPatient
	x := make([]float64, a.Columns)
	for c := range x {
		x[c] = ipp[0] + rowDir*float64(c)*a.PixelSpacing[1]
	}
	y := make([]float64, a.Rows)
	for r := range y {
		y[r] = ipp[1] + colDir*float64(r)*a.PixelSpacing[0]
	}

	// Relative offsets run along the plane normal, row x column
	z, err := frameCoordinates(ipp[2], rowDir*colDir, a.GridFrameOffsetVector, len(a.Frames))
	if err != nil {
		return nil, err
	}

	plane := a.Rows * a.Columns
	dose := make([]float64, 0, plane*len(a.Frames))
	for i, frame := range a.Frames {
		if len(frame) != plane {
			return nil, fmt.Errorf("frame %d has %d values, expected %d", i, len(frame), plane)
		}
		for _, v := range frame {
			dose = append(dose, float64(v)*a.DoseGridScaling)
		}
	}

	g, err := models.NewDoseGrid([][]float64{z, y, x}, dose)
	if err != nil {
		return nil, err
	}
	g.Units = a.DoseUnits
	return g, nil
}

// axisDirections returns the sign of the x step along a row and of the
// y step down a column. Oblique orientations are rejected.
func axisDirections(iop [6]float64) (float64, float64, error) {
	const eps = 1e-6
	aligned := func(v float64) bool { return math.Abs(math.Abs(v)-1) < eps }
	zero := func(v float64) bool { return math.Abs(v) < eps }

	if !aligned(iop[0]) || !zero(iop[1]) || !zero(iop[2]) ||
		!zero(iop[3]) || !aligned(iop[4]) || !zero(iop[5]) {
		return 0, 0, fmt.Errorf("unsupported image orientation %v", iop)
	}
	return math.Copysign(1, iop[0]), math.Copysign(1, iop[4]), nil
}

// frameCoordinates returns the z coordinate of each frame. normal is the
// sign of the z component of the plane normal.
func frameCoordinates(z0, normal float64, offsets []float64, frames int) ([]float64, error) {
	if len(offsets) == 0 {
		if frames != 1 {
			return nil, fmt.Errorf("grid frame offset vector missing for %d frames", frames)
		}
		return []float64{z0}, nil
	}
	if len(offsets) != frames {
		return nil, fmt.Errorf("grid frame offset vector has %d entries for %d frames", len(offsets), frames)
	}

	z := make([]float64, frames)
	relative := offsets[0] == 0
	for i, off := range offsets {
		if relative {
			z[i] = z0 + normal*off
		} else {
			z[i] = off
		}
	}
	return z, nil
}

// Load reads an RT Dose file and converts it to a dose grid
func Load(path string) (*models.DoseGrid, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}

	if modality, err := stringsOf(ds, tag.Modality); err == nil && len(modality) > 0 {
		if m := strings.TrimSpace(modality[0]); m != "RTDOSE" {
			return nil, fmt.Errorf("%s: modality is %s, expected RTDOSE", path, m)
		}
	}

	a, err := attributesOf(ds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return FromAttributes(a)
}

func attributesOf(ds dicom.Dataset) (Attributes, error) {
	var a Attributes
	var err error

	if a.Rows, err = intOf(ds, tag.Rows); err != nil {
		return a, err
	}
	if a.Columns, err = intOf(ds, tag.Columns); err != nil {
		return a, err
	}

	ipp, err := decimalsOf(ds, tag.ImagePositionPatient, 3)
	if err != nil {
		return a, err
	}
	copy(a.ImagePositionPatient[:], ipp)

	iop, err := decimalsOf(ds, tag.ImageOrientationPatient, 6)
	if err != nil {
		return a, err
	}
	copy(a.ImageOrientationPatient[:], iop)

	spacing, err := decimalsOf(ds, tag.PixelSpacing, 2)
	if err != nil {
		return a, err
	}
	copy(a.PixelSpacing[:], spacing)

	// Single frame doses may omit the offsets
	if offsets, err := decimalsOf(ds, tag.GridFrameOffsetVector, 1); err == nil {
		a.GridFrameOffsetVector = offsets
	}

	scaling, err := decimalsOf(ds, tag.DoseGridScaling, 1)
	if err != nil {
		return a, err
	}
	a.DoseGridScaling = scaling[0]

	if units, err := stringsOf(ds, tag.DoseUnits); err == nil && len(units) > 0 {
		a.DoseUnits = strings.TrimSpace(units[0])
	}

	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return a, fmt.Errorf("pixel data: %w", err)
	}
	info, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return a, fmt.Errorf("pixel data has unexpected value type")
	}
	if info.IsEncapsulated {
		return a, fmt.Errorf("encapsulated pixel data is not supported for dose grids")
	}
	for i, fr := range info.Frames {
		native, err := fr.GetNativeFrame()
		if err != nil {
			return a, fmt.Errorf("frame %d: %w", i, err)
		}
		values := make([]int, len(native.Data))
		for p, sample := range native.Data {
			if len(sample) > 0 {
				values[p] = sample[0]
			}
		}
		a.Frames = append(a.Frames, values)
	}
	return a, nil
}

func intOf(ds dicom.Dataset, t tag.Tag) (int, error) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, fmt.Errorf("tag %v: %w", t, err)
	}
	switch v := elem.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0], nil
		}
	case []string:
		if len(v) > 0 {
			return strconv.Atoi(strings.TrimSpace(v[0]))
		}
	}
	return 0, fmt.Errorf("tag %v has no integer value", t)
}

func stringsOf(ds dicom.Dataset, t tag.Tag) ([]string, error) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return nil, err
	}
	v, ok := elem.Value.GetValue().([]string)
	if !ok {
		return nil, fmt.Errorf("tag %v is not a string value", t)
	}
	return v, nil
}

func decimalsOf(ds dicom.Dataset, t tag.Tag, min int) ([]float64, error) {
	s, err := stringsOf(ds, t)
	if err != nil {
		return nil, fmt.Errorf("tag %v: %w", t, err)
	}
	values, err := ParseDecimalStrings(s)
	if err != nil {
		return nil, fmt.Errorf("tag %v: %w", t, err)
	}
	if len(values) < min {
		return nil, fmt.Errorf("tag %v has %d values, need %d", t, len(values), min)
	}
	return values, nil
}

// ParseDecimalStrings parses DICOM decimal string (DS) values. Values may
// also arrive joined by backslashes in a single string.
func ParseDecimalStrings(values []string) ([]float64, error) {
	var out []float64
	for _, v := range values {
		for _, part := range strings.Split(v, `\`) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			f, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid decimal string %q", part)
			}
			out = append(out, f)
		}
	}
	return out, nil
}
