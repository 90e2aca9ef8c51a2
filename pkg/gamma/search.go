package gamma

import (
	"math"

	"dosegamma/internal/models"
	"dosegamma/pkg/interpolation"
)

// pointSearch accumulates the gamma minimum for one reference point
type pointSearch struct {
	dr       float64
	doseTol  float64
	dta2     float64
	skipPass bool

	best2   float64
	found   bool
	nonZero bool
}

func (s *pointSearch) reset(dr, doseTol float64) {
	s.dr = dr
	s.doseTol = doseTol
	s.best2 = math.Inf(1)
	s.found = false
	s.nonZero = false
}

// zeroNorm reports whether the dose tolerance vanished. Candidates are then
// only inspected for non-zero dose.
func (s *pointSearch) zeroNorm() bool { return s.doseTol == 0 }

// wants reports whether a candidate at squared distance dist2 can lower the minimum
func (s *pointSearch) wants(dist2 float64) bool {
	if s.zeroNorm() {
		return true
	}
	return dist2/s.dta2 < s.best2
}

// add records a candidate. It returns false once the search can stop.
func (s *pointSearch) add(dist2, de float64) bool {
	s.found = true
	if s.zeroNorm() {
		if de != 0 || s.dr != 0 {
			s.nonZero = true
			return false
		}
		return true
	}
	dd := (s.dr - de) / s.doseTol
	if g2 := dist2/s.dta2 + dd*dd; g2 < s.best2 {
		s.best2 = g2
	}
	return !(s.skipPass && s.best2 <= 1)
}

// done reports whether a skip-once-passed search already passed
func (s *pointSearch) done() bool {
	return s.skipPass && s.best2 <= 1
}

// radius returns the search radius still able to improve the minimum
func (s *pointSearch) radius(limit float64) float64 {
	if s.zeroNorm() || math.IsInf(s.best2, 1) {
		return limit
	}
	return math.Min(limit, math.Sqrt(s.best2*s.dta2))
}

func (s *pointSearch) gamma(maxGamma float64) float64 {
	if !s.found {
		return maxGamma
	}
	if s.zeroNorm() {
		if s.nonZero {
			return maxGamma
		}
		return 0
	}
	return math.Min(math.Sqrt(s.best2), maxGamma)
}

// neighbourhood enumerates evaluation candidates around a reference point.
// visit offers every candidate within radius of x to s in row-major order.
// seed offers the single nearest candidate when cheap to find.
type neighbourhood interface {
	seed(x []float64, limit float64, s *pointSearch)
	visit(x []float64, radius float64, s *pointSearch)
}

func dist2Within(x, y []float64) float64 {
	sum := 0.0
	for d := range x {
		diff := x[d] - y[d]
		sum += diff * diff
	}
	return sum
}

// gridNeighbourhood searches the box of refined samples around each point
type gridNeighbourhood struct {
	refined *interpolation.RefinedGrid
}

func (n *gridNeighbourhood) seed(x []float64, limit float64, s *pointSearch) {
	if s.zeroNorm() {
		return
	}
	dims := n.refined.NDims()
	var idxBuf [models.MaxDims]int
	var yBuf [models.MaxDims]float64
	idx, y := idxBuf[:dims], yBuf[:dims]
	for d := 0; d < dims; d++ {
		idx[d] = n.refined.Axes[d].Nearest(x[d])
	}
	n.refined.Coords(idx, y)
	dist2 := dist2Within(x, y)
	if dist2 > limit*limit {
		return
	}
	s.add(dist2, n.refined.DoseAt(idx))
}

func (n *gridNeighbourhood) visit(x []float64, radius float64, s *pointSearch) {
	dims := n.refined.NDims()
	var startBuf, endBuf, idxBuf [models.MaxDims]int
	var yBuf [models.MaxDims]float64
	start, end, idx, y := startBuf[:dims], endBuf[:dims], idxBuf[:dims], yBuf[:dims]

	for d := 0; d < dims; d++ {
		start[d], end[d] = n.refined.Axes[d].Window(x[d]-radius, x[d]+radius)
		if start[d] >= end[d] {
			return
		}
		idx[d] = start[d]
	}

	r2 := radius * radius
	for {
		n.refined.Coords(idx, y)
		if dist2 := dist2Within(x, y); dist2 <= r2 && s.wants(dist2) {
			if !s.add(dist2, n.refined.DoseAt(idx)) {
				return
			}
		}

		// Advance the odometer, last axis fastest
		d := dims - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < end[d] {
				break
			}
			idx[d] = start[d]
		}
		if d < 0 {
			return
		}
	}
}

// exhaustiveNeighbourhood checks every refined sample
type exhaustiveNeighbourhood struct {
	refined *interpolation.RefinedGrid
}

func (n *exhaustiveNeighbourhood) seed([]float64, float64, *pointSearch) {}

func (n *exhaustiveNeighbourhood) visit(x []float64, radius float64, s *pointSearch) {
	dims := n.refined.NDims()
	var idxBuf [models.MaxDims]int
	var yBuf [models.MaxDims]float64
	idx, y := idxBuf[:dims], yBuf[:dims]

	r2 := radius * radius
	total := n.refined.Len()
	for flat := 0; flat < total; flat++ {
		models.Unravel(flat, n.refined.Shape, idx)
		n.refined.Coords(idx, y)
		if dist2 := dist2Within(x, y); dist2 <= r2 && s.wants(dist2) {
			if !s.add(dist2, n.refined.DoseAt(idx)) {
				return
			}
		}
	}
}
