package gamma

import (
	"fmt"
	"runtime"
	"strings"
)

// Strategy selects how evaluation candidates near a reference point are found
type Strategy string

const (
	// SearchGrid scans the box of refined evaluation samples around each
	// reference point, shrinking it as better candidates are found
	SearchGrid Strategy = "grid"

	// SearchKDTree queries a k-d tree built over every refined evaluation sample
	SearchKDTree Strategy = "kdtree"

	// SearchExhaustive visits every refined evaluation sample. It is the
	// reference implementation the other strategies are checked against.
	SearchExhaustive Strategy = "exhaustive"
)

// ParseStrategy converts a name to a Strategy
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case SearchGrid, SearchKDTree, SearchExhaustive:
		return s, nil
	case "":
		return SearchGrid, nil
	default:
		return "", fmt.Errorf("unknown search strategy %q (must be grid, kdtree or exhaustive)", name)
	}
}

// ProgressCallback reports progress during a computation. It is never
// called concurrently.
type ProgressCallback func(completed, total int, message string)

// DefaultHistogramBins is the number of histogram bins when none is configured
const DefaultHistogramBins = 20

type options struct {
	workers       int
	strategy      Strategy
	progress      ProgressCallback
	histogramBins int
}

// Option configures a Compute call
type Option func(o *options)

// WithWorkers sets the number of concurrent workers (default: all CPUs)
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithSearch selects the candidate search strategy
func WithSearch(s Strategy) Option {
	return func(o *options) {
		if s != "" {
			o.strategy = s
		}
	}
}

// WithProgress installs a progress callback
func WithProgress(cb ProgressCallback) Option {
	return func(o *options) {
		o.progress = cb
	}
}

// WithHistogramBins sets the number of histogram bins
func WithHistogramBins(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.histogramBins = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		workers:       runtime.NumCPU(),
		strategy:      SearchGrid,
		histogramBins: DefaultHistogramBins,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
