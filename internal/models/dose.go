package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// MaxDims is the largest number of spatial axes a dose grid may have
const MaxDims = 3

// DoseGrid represents a sampled dose distribution with its coordinate axes
type DoseGrid struct {
	// Axes holds one coordinate array per dimension in mm.
	// For grids read from RT Dose files the order is z, y, x.
	Axes [][]float64

	// Dose is the dose data as a 1D array in row-major order
	// (the last axis varies fastest)
	Dose []float64

	// Units is the dose unit label, e.g. "Gy" or "cGy"
	Units string
}

// InvalidGridError reports a dose grid that violates its invariants
type InvalidGridError struct {
	// Axis is the offending axis, or -1 when the problem is not axis specific
	Axis int

	// Reason describes the violation
	Reason string
}

func (e *InvalidGridError) Error() string {
	if e.Axis < 0 {
		return fmt.Sprintf("invalid dose grid: %s", e.Reason)
	}
	return fmt.Sprintf("invalid dose grid: axis %d: %s", e.Axis, e.Reason)
}

// NewDoseGrid builds a grid from axes and dose values and validates it
func NewDoseGrid(axes [][]float64, dose []float64) (*DoseGrid, error) {
	g := &DoseGrid{Axes: axes, Dose: dose}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate checks the grid invariants: 1 to MaxDims strictly monotonic
// axes, a dose array matching the shape, and finite non-negative doses.
func (g *DoseGrid) Validate() error {
	if len(g.Axes) == 0 || len(g.Axes) > MaxDims {
		return &InvalidGridError{Axis: -1, Reason: fmt.Sprintf("need 1 to %d axes, got %d", MaxDims, len(g.Axes))}
	}

	size := 1
	for d, axis := range g.Axes {
		if len(axis) == 0 {
			return &InvalidGridError{Axis: d, Reason: "empty axis"}
		}
		for i, v := range axis {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &InvalidGridError{Axis: d, Reason: fmt.Sprintf("non-finite coordinate at index %d", i)}
			}
		}
		if !strictlyMonotonic(axis) {
			return &InvalidGridError{Axis: d, Reason: "coordinates are not strictly monotonic"}
		}
		size *= len(axis)
	}

	if len(g.Dose) != size {
		return &InvalidGridError{Axis: -1, Reason: fmt.Sprintf("dose has %d values, shape needs %d", len(g.Dose), size)}
	}
	for i, v := range g.Dose {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return &InvalidGridError{Axis: -1, Reason: fmt.Sprintf("dose at index %d is %v, must be finite and non-negative", i, v)}
		}
	}
	return nil
}

func strictlyMonotonic(axis []float64) bool {
	if len(axis) < 2 {
		return true
	}
	increasing := axis[1] > axis[0]
	for i := 1; i < len(axis); i++ {
		if increasing && axis[i] <= axis[i-1] {
			return false
		}
		if !increasing && axis[i] >= axis[i-1] {
			return false
		}
	}
	return true
}

// NDims returns the number of axes
func (g *DoseGrid) NDims() int { return len(g.Axes) }

// Shape returns the number of samples along each axis
func (g *DoseGrid) Shape() []int {
	shape := make([]int, len(g.Axes))
	for d, axis := range g.Axes {
		shape[d] = len(axis)
	}
	return shape
}

// Len returns the total number of samples
func (g *DoseGrid) Len() int {
	n := 1
	for _, axis := range g.Axes {
		n *= len(axis)
	}
	return n
}

// Strides returns the row-major stride of each axis
func (g *DoseGrid) Strides() []int {
	return Strides(g.Shape())
}

// Strides returns the row-major strides for a shape
func Strides(shape []int) []int {
	strides := make([]int, len(shape))
	s := 1
	for d := len(shape) - 1; d >= 0; d-- {
		strides[d] = s
		s *= shape[d]
	}
	return strides
}

// Unravel converts a flat index to per-axis indices, writing into idx
func Unravel(flat int, shape []int, idx []int) {
	for d := len(shape) - 1; d >= 0; d-- {
		idx[d] = flat % shape[d]
		flat /= shape[d]
	}
}

// Coords writes the coordinates of the sample at a flat index into x
func (g *DoseGrid) Coords(flat int, x []float64) {
	for d := len(g.Axes) - 1; d >= 0; d-- {
		n := len(g.Axes[d])
		x[d] = g.Axes[d][flat%n]
		flat /= n
	}
}

// Extent returns the minimum and maximum coordinate along an axis
func (g *DoseGrid) Extent(d int) (lo, hi float64) {
	axis := g.Axes[d]
	lo, hi = axis[0], axis[len(axis)-1]
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

// MaxDose returns the largest dose value in the grid
func (g *DoseGrid) MaxDose() float64 {
	if len(g.Dose) == 0 {
		return 0
	}
	return floats.Max(g.Dose)
}

// Clone returns a deep copy of the grid
func (g *DoseGrid) Clone() *DoseGrid {
	c := &DoseGrid{
		Axes:  make([][]float64, len(g.Axes)),
		Dose:  append([]float64(nil), g.Dose...),
		Units: g.Units,
	}
	for d, axis := range g.Axes {
		c.Axes[d] = append([]float64(nil), axis...)
	}
	return c
}

// RegularAxis returns n coordinates starting at origin with the given spacing
func RegularAxis(origin, spacing float64, n int) []float64 {
	axis := make([]float64, n)
	for i := range axis {
		axis[i] = origin + float64(i)*spacing
	}
	return axis
}
