package mvalues

import (
	"fmt"
	"math"
)

// RoundingMode selects how interpolated values are rounded to integers
type RoundingMode string

const (
	// RoundHalfAwayFromZero rounds ties away from zero (12.5 -> 13, -12.5 -> -13)
	RoundHalfAwayFromZero RoundingMode = "half_away_from_zero"
	// RoundHalfEven rounds ties to the nearest even integer (12.5 -> 12, 13.5 -> 14)
	RoundHalfEven RoundingMode = "half_even"
	// RoundNone keeps the fractional interpolated value
	RoundNone RoundingMode = "none"
)

// Round applies the rounding mode to v
func (r RoundingMode) Round(v float64) float64 {
	switch r {
	case RoundHalfEven:
		return math.RoundToEven(v)
	case RoundNone:
		return v
	default:
		return math.Round(v)
	}
}

// UnknownMode selects which M-value marks a vertex as missing
type UnknownMode string

const (
	// UnknownZero treats M == 0 as missing. A measured value of exactly zero
	// cannot be told apart from a missing one in this mode.
	UnknownZero UnknownMode = "zero"
	// UnknownNaN treats NaN as missing, so zero is a regular anchor value
	UnknownNaN UnknownMode = "nan"
)

// IsKnown reports whether m carries a measured value under this mode
func (u UnknownMode) IsKnown(m float64) bool {
	if u == UnknownNaN {
		return !math.IsNaN(m)
	}
	return m != 0
}

// ParseRoundingMode validates a configured rounding mode name.
// An empty name selects the default.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch RoundingMode(s) {
	case "":
		return RoundHalfAwayFromZero, nil
	case RoundHalfAwayFromZero, RoundHalfEven, RoundNone:
		return RoundingMode(s), nil
	default:
		return "", fmt.Errorf("unknown rounding mode %q", s)
	}
}

// ParseUnknownMode validates a configured unknown-marker name.
// An empty name selects the default.
func ParseUnknownMode(s string) (UnknownMode, error) {
	switch UnknownMode(s) {
	case "":
		return UnknownZero, nil
	case UnknownZero, UnknownNaN:
		return UnknownMode(s), nil
	default:
		return "", fmt.Errorf("unknown missing-value marker %q", s)
	}
}

// Options controls a single interpolation run
type Options struct {
	Rounding RoundingMode
	Unknown  UnknownMode
}

// Option mutates Options
type Option func(*Options)

// WithRounding selects the rounding applied to interpolated values
func WithRounding(mode RoundingMode) Option {
	return func(o *Options) {
		o.Rounding = mode
	}
}

// WithUnknown selects the marker used for missing M-values
func WithUnknown(mode UnknownMode) Option {
	return func(o *Options) {
		o.Unknown = mode
	}
}

// DefaultOptions returns zero-as-unknown with half-away-from-zero rounding
func DefaultOptions() Options {
	return Options{
		Rounding: RoundHalfAwayFromZero,
		Unknown:  UnknownZero,
	}
}

// Result holds the interpolated M-values for one line
type Result struct {
	// Values has one entry per input vertex, in input order
	Values []float64 `json:"m_values"`
	// Anchors are the ascending indices of vertices with known M-values
	Anchors []int `json:"anchors"`
	// Interpolated counts the slots filled by interpolation
	Interpolated int `json:"interpolated"`
	// Warnings lists gaps that were left un-interpolated
	Warnings []ZeroDistanceGapWarning `json:"warnings,omitempty"`
}

// Partial reports whether some gap between anchors could not be filled
func (r *Result) Partial() bool {
	return len(r.Warnings) > 0
}
