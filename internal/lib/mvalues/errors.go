package mvalues

import (
	"errors"
	"fmt"
)

// DegenerateReason explains why a line cannot be interpolated
type DegenerateReason string

const (
	TooFewVertices      DegenerateReason = "too_few_vertices"
	NonFiniteCoordinate DegenerateReason = "non_finite_coordinate"
)

// DegenerateInputError is returned when a line cannot be processed at all.
// Callers handling batches should skip the feature and continue.
type DegenerateInputError struct {
	Reason   DegenerateReason `json:"reason"`
	Vertices int              `json:"vertices"`
	// Index of the offending vertex, -1 when not tied to a vertex
	Index int `json:"index"`
}

func (e *DegenerateInputError) Error() string {
	switch e.Reason {
	case TooFewVertices:
		return fmt.Sprintf("degenerate input: line has %d vertices, need at least 2", e.Vertices)
	case NonFiniteCoordinate:
		return fmt.Sprintf("degenerate input: vertex %d has a non-finite coordinate", e.Index)
	default:
		return fmt.Sprintf("degenerate input: %s", e.Reason)
	}
}

// IsDegenerate reports whether err is, or wraps, a DegenerateInputError
func IsDegenerate(err error) bool {
	var degenerate *DegenerateInputError
	return errors.As(err, &degenerate)
}

// ZeroDistanceGapWarning reports two consecutive anchors with no distance
// between them. The vertices strictly between them keep their input values.
type ZeroDistanceGapWarning struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (w ZeroDistanceGapWarning) String() string {
	return fmt.Sprintf("zero distance between anchors %d and %d, gap left un-interpolated", w.From, w.To)
}
