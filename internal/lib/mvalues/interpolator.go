package mvalues

import (
	"github.com/dpup/mvalues/server/internal/lib/geo"
)

// Interpolator fills missing M-values along a line
type Interpolator interface {
	// Interpolate returns one M-value per vertex with the gaps between
	// known anchors filled in proportionally to distance along the line
	Interpolate(line geo.Line) (*Result, error)

	// Options returns the settings used for every call
	Options() Options
}

// interpolator implements the Interpolator interface
type interpolator struct {
	opts Options
}

// NewInterpolator creates an Interpolator with the given options applied over the defaults
func NewInterpolator(opts ...Option) Interpolator {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &interpolator{opts: o}
}

// Options returns the interpolator settings
func (i *interpolator) Options() Options {
	return i.opts
}

// Interpolate fills missing M-values on line
func (i *interpolator) Interpolate(line geo.Line) (*Result, error) {
	return interpolate(line, i.opts)
}

// Interpolate fills missing M-values on line using the default options
// overridden by opts
func Interpolate(line geo.Line, opts ...Option) (*Result, error) {
	return NewInterpolator(opts...).Interpolate(line)
}

// interpolate works on a table of cumulative distances: every missing slot
// between anchors a and b is looked up by its distance from a relative to the
// distance between a and b.
func interpolate(line geo.Line, opts Options) (*Result, error) {
	if len(line) < 2 {
		return nil, &DegenerateInputError{Reason: TooFewVertices, Vertices: len(line), Index: -1}
	}
	if idx := line.FirstNonFinite(); idx >= 0 {
		return nil, &DegenerateInputError{Reason: NonFiniteCoordinate, Vertices: len(line), Index: idx}
	}

	values := line.MValues()
	anchors := make([]int, 0, len(values))
	for idx, m := range values {
		if opts.Unknown.IsKnown(m) {
			anchors = append(anchors, idx)
		}
	}

	result := &Result{
		Values:  values,
		Anchors: anchors,
	}

	// Nothing to interpolate between
	if len(anchors) < 2 {
		return result, nil
	}

	cumulative := line.CumulativeDistances()

	for k := 0; k < len(anchors)-1; k++ {
		a, b := anchors[k], anchors[k+1]
		if b-a < 2 {
			continue
		}

		span := cumulative[b] - cumulative[a]
		if span == 0 {
			result.Warnings = append(result.Warnings, ZeroDistanceGapWarning{From: a, To: b})
			continue
		}

		va, vb := values[a], values[b]
		for j := a + 1; j < b; j++ {
			fraction := (cumulative[j] - cumulative[a]) / span
			values[j] = opts.Rounding.Round(va + fraction*(vb-va))
			result.Interpolated++
		}
	}

	return result, nil
}

// Apply returns a copy of line carrying the interpolated M-values
func (r *Result) Apply(line geo.Line) (geo.Line, error) {
	return line.WithMValues(r.Values)
}
