package interpolation

import (
	"fmt"
	"math"
	"sort"

	"dosegamma/internal/models"
)

// RefinedAxis is a native axis with every interval split into equal steps
type RefinedAxis struct {
	// Coords are the refined coordinates in the native axis order
	Coords []float64

	// Cell and Frac locate each refined coordinate on the native axis
	Cell []int
	Frac []float64

	increasing bool
}

// Refine splits each interval of axis into fraction equal steps.
// Native samples are kept exactly; an axis of n samples becomes
// (n-1)*fraction+1 samples.
func Refine(axis []float64, fraction int) RefinedAxis {
	if fraction < 1 {
		fraction = 1
	}
	n := len(axis)
	size := (n-1)*fraction + 1

	r := RefinedAxis{
		Coords:     make([]float64, size),
		Cell:       make([]int, size),
		Frac:       make([]float64, size),
		increasing: n < 2 || axis[1] > axis[0],
	}
	for j := 0; j < size; j++ {
		i := j / fraction
		k := j % fraction
		r.Cell[j] = i
		if k == 0 {
			r.Coords[j] = axis[i]
			continue
		}
		f := float64(k) / float64(fraction)
		r.Frac[j] = f
		r.Coords[j] = axis[i] + f*(axis[i+1]-axis[i])
	}
	return r
}

// Len returns the number of refined samples
func (a RefinedAxis) Len() int { return len(a.Coords) }

// Window returns the index range [start, end) of refined coordinates
// lying within [lo, hi]
func (a RefinedAxis) Window(lo, hi float64) (start, end int) {
	n := len(a.Coords)
	if a.increasing {
		start = sort.Search(n, func(k int) bool { return a.Coords[k] >= lo })
		end = sort.Search(n, func(k int) bool { return a.Coords[k] > hi })
		return start, end
	}
	start = sort.Search(n, func(k int) bool { return a.Coords[k] <= hi })
	end = sort.Search(n, func(k int) bool { return a.Coords[k] < lo })
	return start, end
}

// Nearest returns the refined index closest to x
func (a RefinedAxis) Nearest(x float64) int {
	n := len(a.Coords)
	var i int
	if a.increasing {
		i = sort.Search(n, func(k int) bool { return a.Coords[k] >= x })
	} else {
		i = sort.Search(n, func(k int) bool { return a.Coords[k] <= x })
	}
	if i >= n {
		return n - 1
	}
	if i > 0 && math.Abs(a.Coords[i-1]-x) <= math.Abs(a.Coords[i]-x) {
		return i - 1
	}
	return i
}

// RefinedGrid is an evaluation grid refined along every axis. Doses at
// refined samples are interpolated on demand and never materialised.
type RefinedGrid struct {
	Axes  []RefinedAxis
	Shape []int

	interp *Multilinear
}

// NewRefinedGrid refines every axis of grid by fraction
func NewRefinedGrid(grid *models.DoseGrid, fraction int) (*RefinedGrid, error) {
	if fraction < 1 {
		return nil, fmt.Errorf("interpolation fraction must be at least 1, got %d", fraction)
	}
	r := &RefinedGrid{
		Axes:   make([]RefinedAxis, grid.NDims()),
		Shape:  make([]int, grid.NDims()),
		interp: NewMultilinear(grid),
	}
	for d, axis := range grid.Axes {
		r.Axes[d] = Refine(axis, fraction)
		r.Shape[d] = r.Axes[d].Len()
	}
	return r, nil
}

// NDims returns the number of axes
func (r *RefinedGrid) NDims() int { return len(r.Axes) }

// Len returns the total number of refined samples
func (r *RefinedGrid) Len() int {
	n := 1
	for _, s := range r.Shape {
		n *= s
	}
	return n
}

// Coords writes the coordinates of the refined sample idx into x
func (r *RefinedGrid) Coords(idx []int, x []float64) {
	for d, j := range idx {
		x[d] = r.Axes[d].Coords[j]
	}
}

// DoseAt returns the interpolated dose at refined sample idx
func (r *RefinedGrid) DoseAt(idx []int) float64 {
	n := len(idx)
	var cellBuf [models.MaxDims]int
	var fracBuf [models.MaxDims]float64
	cell, frac := cellBuf[:n], fracBuf[:n]
	for d, j := range idx {
		cell[d] = r.Axes[d].Cell[j]
		frac[d] = r.Axes[d].Frac[j]
	}
	return r.interp.Blend(cell, frac)
}
