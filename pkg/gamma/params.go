package gamma

import (
	"math"
)

// Params holds the gamma index parameters (Low et al. 1998)
type Params struct {
	// DosePercentThreshold is the dose difference tolerance as a percentage
	// of the normalisation dose
	DosePercentThreshold float64 `yaml:"dosePercentThreshold"`

	// DistanceMMThreshold is the distance to agreement tolerance in mm
	DistanceMMThreshold float64 `yaml:"distanceMMThreshold"`

	// LowerDoseCutoff excludes reference points with a lower absolute dose
	LowerDoseCutoff float64 `yaml:"lowerDoseCutoff"`

	// LowerPercentDoseCutoff excludes reference points below this percentage
	// of the global normalisation dose. The stricter of the two cutoffs applies.
	LowerPercentDoseCutoff float64 `yaml:"lowerPercentDoseCutoff"`

	// InterpFraction is the number of steps each evaluation grid interval
	// is split into before searching
	InterpFraction int `yaml:"interpFraction"`

	// MaxGamma caps reported values and bounds the search radius to
	// MaxGamma*DistanceMMThreshold. +Inf disables both.
	MaxGamma float64 `yaml:"maxGamma"`

	// LocalGamma normalises the dose difference by each reference point's
	// own dose instead of a single global dose
	LocalGamma bool `yaml:"localGamma"`

	// GlobalNormalisation overrides the global normalisation dose.
	// Zero selects the maximum reference dose.
	GlobalNormalisation float64 `yaml:"globalNormalisation"`

	// SkipOncePassed stops searching a point as soon as a candidate with
	// gamma <= 1 is found. Reported values are then upper bounds.
	SkipOncePassed bool `yaml:"skipOncePassed"`

	// RandomSubset evaluates only this many randomly chosen qualifying
	// points when positive
	RandomSubset int `yaml:"randomSubset"`

	// Seed seeds the RandomSubset selection
	Seed uint64 `yaml:"seed"`
}

// DefaultParams returns the common 3%/3mm global gamma configuration
func DefaultParams() Params {
	return Params{
		DosePercentThreshold: 3,
		DistanceMMThreshold:  3,
		InterpFraction:       10,
		MaxGamma:             2,
		Seed:                 1,
	}
}

// Validate rejects parameters outside their documented domain
func (p Params) Validate() error {
	if !(p.DosePercentThreshold > 0) || math.IsInf(p.DosePercentThreshold, 0) {
		return &InvalidParameterError{Name: "dose_percent_threshold", Value: p.DosePercentThreshold, Reason: "must be positive and finite"}
	}
	if !(p.DistanceMMThreshold > 0) || math.IsInf(p.DistanceMMThreshold, 0) {
		return &InvalidParameterError{Name: "distance_mm_threshold", Value: p.DistanceMMThreshold, Reason: "must be positive and finite"}
	}
	if !(p.LowerDoseCutoff >= 0) || math.IsInf(p.LowerDoseCutoff, 0) {
		return &InvalidParameterError{Name: "lower_dose_cutoff", Value: p.LowerDoseCutoff, Reason: "must be non-negative and finite"}
	}
	if !(p.LowerPercentDoseCutoff >= 0 && p.LowerPercentDoseCutoff <= 100) {
		return &InvalidParameterError{Name: "lower_percent_dose_cutoff", Value: p.LowerPercentDoseCutoff, Reason: "must be between 0 and 100"}
	}
	if p.InterpFraction < 1 {
		return &InvalidParameterError{Name: "interp_fraction", Value: float64(p.InterpFraction), Reason: "must be at least 1"}
	}
	if !(p.MaxGamma > 0) {
		return &InvalidParameterError{Name: "max_gamma", Value: p.MaxGamma, Reason: "must be positive"}
	}
	if !(p.GlobalNormalisation >= 0) || math.IsInf(p.GlobalNormalisation, 0) {
		return &InvalidParameterError{Name: "global_normalisation", Value: p.GlobalNormalisation, Reason: "must be non-negative and finite"}
	}
	if p.RandomSubset < 0 {
		return &InvalidParameterError{Name: "random_subset", Value: float64(p.RandomSubset), Reason: "must not be negative"}
	}
	return nil
}

// SearchRadius returns the spatial search bound in mm
func (p Params) SearchRadius() float64 {
	return p.MaxGamma * p.DistanceMMThreshold
}

// NormalisationMode names how the dose difference is normalised
type NormalisationMode string

const (
	Global NormalisationMode = "global"
	Local  NormalisationMode = "local"
)

// Mode returns the normalisation mode selected by the parameters
func (p Params) Mode() NormalisationMode {
	if p.LocalGamma {
		return Local
	}
	return Global
}
