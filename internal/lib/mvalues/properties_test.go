package mvalues

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/mvalues/server/internal/lib/geo"
)

// accumulate is the step-by-step formulation: for every gap it sums the
// segment lengths between the two anchors and walks forward adding one
// segment per vertex. Used as the oracle for the cumulative-table version.
func accumulate(line geo.Line, opts Options) []float64 {
	values := line.MValues()
	out := append([]float64(nil), values...)
	lengths := line.SegmentLengths()

	var anchors []int
	for i, m := range values {
		if opts.Unknown.IsKnown(m) {
			anchors = append(anchors, i)
		}
	}

	for k := 0; k+1 < len(anchors); k++ {
		a, b := anchors[k], anchors[k+1]

		total := 0.0
		for _, length := range lengths[a:b] {
			total += length
		}
		if total == 0 {
			continue
		}

		dist := 0.0
		for j := a + 1; j < b; j++ {
			dist += lengths[j-1]
			out[j] = opts.Rounding.Round(values[a] + dist/total*(values[b]-values[a]))
		}
	}
	return out
}

// randomLine builds a line with random positions and integer anchors at
// random indices. Roughly a third of the vertices are anchors.
func randomLine(rng *rand.Rand, n int) geo.Line {
	line := make(geo.Line, n)
	x, y := 0.0, 0.0
	for i := range line {
		x += rng.Float64()*20 - 5
		y += rng.Float64()*20 - 5
		line[i] = geo.Vertex{X: x, Y: y}
		if rng.Intn(3) == 0 {
			m := float64(rng.Intn(2000) - 1000)
			if m == 0 {
				m = 1
			}
			line[i].M = m
		}
	}
	return line
}

func TestInterpolate_MatchesAccumulation(t *testing.T) {
	rng := rand.New(rand.NewSource(20220815))

	for _, rounding := range []RoundingMode{RoundHalfAwayFromZero, RoundHalfEven} {
		opts := Options{Rounding: rounding, Unknown: UnknownZero}

		for trial := 0; trial < 50; trial++ {
			line := randomLine(rng, 2+rng.Intn(40))

			result, err := interpolate(line, opts)
			require.NoError(t, err)
			assert.Equal(t, accumulate(line, opts), result.Values, "trial %d (%s): %v", trial, rounding, line)
		}
	}
}

func TestInterpolate_IdentityWithoutTwoAnchors(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 30; trial++ {
		line := randomLine(rng, 2+rng.Intn(20))
		for i := range line {
			line[i].M = 0
		}
		if trial%2 == 0 {
			line[rng.Intn(len(line))].M = float64(rng.Intn(500) + 1)
		}

		result, err := Interpolate(line)
		require.NoError(t, err)
		assert.Equal(t, line.MValues(), result.Values)
		assert.Zero(t, result.Interpolated)
	}
}

func TestInterpolate_NeverOvershootsAnchors(t *testing.T) {
	rng := rand.New(rand.NewSource(99))

	for trial := 0; trial < 30; trial++ {
		n := 3 + rng.Intn(30)
		line := randomLine(rng, n)
		for i := range line {
			line[i].M = 0
		}

		a := rng.Intn(n - 2)
		b := a + 2 + rng.Intn(n-a-2)
		va := float64(rng.Intn(1000) + 1)
		vb := -float64(rng.Intn(1000) + 1)
		if trial%2 == 0 {
			vb = -vb
		}
		line[a].M, line[b].M = va, vb

		result, err := Interpolate(line)
		require.NoError(t, err)

		lo, hi := math.Min(va, vb), math.Max(va, vb)
		for j := a + 1; j < b; j++ {
			assert.GreaterOrEqual(t, result.Values[j], lo, "trial %d index %d", trial, j)
			assert.LessOrEqual(t, result.Values[j], hi, "trial %d index %d", trial, j)
		}
	}
}

func TestInterpolate_AnchorsAlwaysPreserved(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for trial := 0; trial < 30; trial++ {
		line := randomLine(rng, 2+rng.Intn(40))
		for i := range line {
			if line[i].M != 0 {
				line[i].M += 0.37
			}
		}

		result, err := Interpolate(line)
		require.NoError(t, err)
		for _, idx := range result.Anchors {
			assert.Equal(t, line[idx].M, result.Values[idx])
		}
	}
}

func TestInterpolate_EqualSegmentsAreLinearByIndex(t *testing.T) {
	// Equal 2.5 unit segments along a diagonal
	step := 2.5 / math.Sqrt2
	line := make(geo.Line, 9)
	for i := range line {
		line[i] = geo.Vertex{X: float64(i) * step, Y: float64(i) * step}
	}
	line[0].M = 100
	line[8].M = 500

	result, err := Interpolate(line, WithRounding(RoundNone))
	require.NoError(t, err)
	for j := 1; j < 8; j++ {
		assert.InDelta(t, 100+50*float64(j), result.Values[j], 1e-9)
	}
}

func TestInterpolate_MonotoneInDistance(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	line := randomLine(rng, 25)
	for i := range line {
		line[i].M = 0
	}
	line[0].M = 1
	line[24].M = 10000

	result, err := Interpolate(line)
	require.NoError(t, err)
	for j := 1; j < len(result.Values); j++ {
		assert.GreaterOrEqual(t, result.Values[j], result.Values[j-1])
	}
}
