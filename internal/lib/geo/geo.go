package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Point returns the vertex position as an orb point
func (v Vertex) Point() orb.Point {
	return orb.Point{v.X, v.Y}
}

// IsFinite reports whether both coordinates are finite numbers
func (v Vertex) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

// Distance calculates the planar Euclidean distance between two vertices
func Distance(a, b Vertex) float64 {
	return planar.Distance(a.Point(), b.Point())
}

// MValues extracts the M-value of every vertex in line order
func (l Line) MValues() []float64 {
	values := make([]float64, len(l))
	for i, v := range l {
		values[i] = v.M
	}
	return values
}

// WithMValues returns a copy of the line with the same positions and new M-values
func (l Line) WithMValues(values []float64) (Line, error) {
	if len(values) != len(l) {
		return nil, fmt.Errorf("m-value count %d does not match vertex count %d", len(values), len(l))
	}

	out := make(Line, len(l))
	for i, v := range l {
		out[i] = Vertex{X: v.X, Y: v.Y, M: values[i]}
	}
	return out, nil
}

// SegmentLengths calculates the distance between each pair of consecutive vertices.
// The result has len(l)-1 entries (none for lines with fewer than 2 vertices).
func (l Line) SegmentLengths() []float64 {
	if len(l) < 2 {
		return []float64{}
	}

	lengths := make([]float64, len(l)-1)
	for i := 0; i < len(l)-1; i++ {
		lengths[i] = Distance(l[i], l[i+1])
	}
	return lengths
}

// CumulativeDistances returns the distance along the line from the first vertex
// to every vertex. The first entry is always 0 and the sequence is non-decreasing.
func (l Line) CumulativeDistances() []float64 {
	cumulative := make([]float64, len(l))
	for i, length := range l.SegmentLengths() {
		cumulative[i+1] = cumulative[i] + length
	}
	return cumulative
}

// Segments describes every segment of the line with its running distance
func (l Line) Segments() []Segment {
	lengths := l.SegmentLengths()
	segments := make([]Segment, len(lengths))

	total := 0.0
	for i, length := range lengths {
		total += length
		segments[i] = Segment{
			From:       i,
			To:         i + 1,
			Length:     length,
			Cumulative: total,
		}
	}
	return segments
}

// Length calculates the total planar length of the line
func (l Line) Length() float64 {
	if len(l) < 2 {
		return 0
	}
	ls := make(orb.LineString, len(l))
	for i, v := range l {
		ls[i] = v.Point()
	}
	return planar.Length(ls)
}

// IsClosed reports whether the first and last vertices share a position
func (l Line) IsClosed() bool {
	if len(l) < 2 {
		return false
	}
	first, last := l[0], l[len(l)-1]
	return first.X == last.X && first.Y == last.Y
}

// FirstNonFinite returns the index of the first vertex with a NaN or infinite
// coordinate, or -1 if every vertex is finite
func (l Line) FirstNonFinite() int {
	for i, v := range l {
		if !v.IsFinite() {
			return i
		}
	}
	return -1
}
