package gamma

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Histogram holds gamma value counts. Edges has one more entry than Counts;
// bin i covers [Edges[i], Edges[i+1]).
type Histogram struct {
	Edges  []float64 `yaml:"edges"`
	Counts []int     `yaml:"counts"`
}

// Summary holds the pass rate statistics of a set of gamma values
type Summary struct {
	// PassRate is the fraction of evaluated points with gamma <= 1
	PassRate float64 `yaml:"passRate"`
	Mean     float64 `yaml:"mean"`
	Max      float64 `yaml:"max"`
	Passed   int     `yaml:"passed"`
	Count    int     `yaml:"count"`
}

// Summarise computes pass rate, mean and max. Statistics of an empty set are NaN.
func Summarise(values []float64) Summary {
	s := Summary{Count: len(values)}
	if len(values) == 0 {
		s.PassRate, s.Mean, s.Max = math.NaN(), math.NaN(), math.NaN()
		return s
	}
	for _, v := range values {
		if v <= 1 {
			s.Passed++
		}
	}
	s.PassRate = float64(s.Passed) / float64(len(values))
	s.Mean = stat.Mean(values, nil)
	s.Max = floats.Max(values)
	return s
}

// NewHistogram bins values over [0, upper]. When upper is infinite the
// largest finite value is used instead. Values above the top edge are
// counted in the last bin and NaN values are ignored.
func NewHistogram(values []float64, bins int, upper float64) Histogram {
	if bins < 1 {
		bins = DefaultHistogramBins
	}

	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if math.IsInf(upper, 1) || math.IsNaN(upper) {
		upper = 0
		if len(finite) > 0 {
			upper = floats.Max(finite)
		}
	}
	if upper <= 0 {
		upper = 1
	}

	dividers := make([]float64, bins+1)
	floats.Span(dividers, 0, upper)
	// Include values equal to upper in the last bin
	dividers[bins] = math.Nextafter(upper, math.Inf(1))

	h := Histogram{Edges: dividers, Counts: make([]int, bins)}

	clamped := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		clamped = append(clamped, math.Max(0, math.Min(v, upper)))
	}
	if len(clamped) == 0 {
		return h
	}

	sort.Float64s(clamped)
	for i, c := range stat.Histogram(nil, dividers, clamped, nil) {
		h.Counts[i] = int(c)
	}
	return h
}
