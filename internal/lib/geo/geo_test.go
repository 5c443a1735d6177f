package geo

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func straightLine() Line {
	return Line{
		{X: 0, Y: 0, M: 10},
		{X: 1, Y: 0, M: 0},
		{X: 2, Y: 0, M: 0},
		{X: 3, Y: 0, M: 0},
		{X: 4, Y: 0, M: 20},
	}
}

func TestLine_SegmentLengths(t *testing.T) {
	line := Line{
		{X: 0, Y: 0},
		{X: 3, Y: 4},
		{X: 3, Y: 4},
		{X: 3, Y: 10},
	}

	lengths := line.SegmentLengths()
	require.Len(t, lengths, 3)
	assert.InDelta(t, 5.0, lengths[0], 1e-12)
	assert.Equal(t, 0.0, lengths[1], "Coincident vertices should have zero length")
	assert.InDelta(t, 6.0, lengths[2], 1e-12)

	// Too few vertices produce no segments
	assert.Empty(t, Line{{X: 1, Y: 1}}.SegmentLengths())
	assert.Empty(t, Line{}.SegmentLengths())
}

func TestLine_CumulativeDistances(t *testing.T) {
	line := Line{
		{X: 0, Y: 0},
		{X: 3, Y: 4},
		{X: 6, Y: 8},
		{X: 6, Y: 9},
	}

	cumulative := line.CumulativeDistances()
	assert.Equal(t, []float64{0, 5, 10, 11}, cumulative)
	assert.InDelta(t, 11.0, line.Length(), 1e-12)

	// Single vertex line still has one (zero) entry
	assert.Equal(t, []float64{0}, Line{{X: 7, Y: 7}}.CumulativeDistances())
}

func TestLine_Segments(t *testing.T) {
	segments := straightLine().Segments()
	require.Len(t, segments, 4)
	for i, seg := range segments {
		assert.Equal(t, i, seg.From)
		assert.Equal(t, i+1, seg.To)
		assert.InDelta(t, 1.0, seg.Length, 1e-12)
		assert.InDelta(t, float64(i+1), seg.Cumulative, 1e-12)
	}
}

func TestLine_MValues(t *testing.T) {
	line := straightLine()
	assert.Equal(t, []float64{10, 0, 0, 0, 20}, line.MValues())

	updated, err := line.WithMValues([]float64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, updated.MValues())
	assert.Equal(t, 10.0, line[0].M, "Original line must not be modified")
	for i := range line {
		assert.Equal(t, line[i].X, updated[i].X)
		assert.Equal(t, line[i].Y, updated[i].Y)
	}

	_, err = line.WithMValues([]float64{1})
	assert.Error(t, err, "Mismatched value count should fail")
}

func TestLine_IsClosed(t *testing.T) {
	assert.False(t, straightLine().IsClosed())
	assert.True(t, Line{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0, M: 5}}.IsClosed())
	assert.False(t, Line{{X: 0, Y: 0}}.IsClosed())
}

func TestLine_FirstNonFinite(t *testing.T) {
	assert.Equal(t, -1, straightLine().FirstNonFinite())

	line := straightLine()
	line[2].Y = math.NaN()
	assert.Equal(t, 2, line.FirstNonFinite())

	line = straightLine()
	line[4].X = math.Inf(-1)
	assert.Equal(t, 4, line.FirstNonFinite())
}

func TestEncoding_WKTRoundTrip(t *testing.T) {
	line, err := ParseWKT("LINESTRING M (0 0 10, 1 0 0, 2 0 0, 3 0 0, 4 0 20)")
	require.NoError(t, err)
	assert.Equal(t, straightLine(), line)

	encoded, err := line.WKT()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "LINESTRING M"), "Encoded WKT should keep the M layout: %s", encoded)

	again, err := ParseWKT(encoded)
	require.NoError(t, err)
	assert.Equal(t, line, again)
}

func TestEncoding_WKTWithoutMeasures(t *testing.T) {
	line, err := ParseWKT("LINESTRING (0 0, 5 5)")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, line.MValues(), "Plain linestrings have unknown M-values")

	// Z is ignored, M is kept
	line, err = ParseWKT("LINESTRING ZM (0 0 100 1, 1 1 200 2)")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, line.MValues())
}

func TestEncoding_Errors(t *testing.T) {
	_, err := ParseWKT("")
	assert.Error(t, err)

	_, err = ParseWKT("not wkt at all")
	assert.Error(t, err)

	_, err = ParseWKT("MULTILINESTRING M ((0 0 1, 1 1 2))")
	assert.Error(t, err, "Multi-part geometries are not supported")

	_, err = ParseWKT("POINT M (1 2 3)")
	assert.Error(t, err)

	_, err = ParseFormat(Format("shapefile"), "x")
	assert.Error(t, err)

	_, err = straightLine().Encode(Format("shapefile"))
	assert.Error(t, err)
}

func TestEncoding_WKBRoundTrip(t *testing.T) {
	line := straightLine()

	encoded, err := line.WKBHex()
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)

	decoded, err := ParseWKBHex(encoded)
	require.NoError(t, err)
	assert.Equal(t, line, decoded)

	_, err = ParseWKBHex("zz")
	assert.Error(t, err)
}

func TestEncoding_GeoJSON(t *testing.T) {
	data := []byte(`{"type":"LineString","coordinates":[[0,0,10],[1,0,0],[2,0,0],[3,0,0],[4,0,20]]}`)

	line, err := ParseGeoJSON(data)
	require.NoError(t, err)
	assert.Equal(t, straightLine(), line)

	encoded, err := line.GeoJSON()
	require.NoError(t, err)

	again, err := ParseGeoJSON(encoded)
	require.NoError(t, err)
	assert.Equal(t, line, again)

	_, err = ParseGeoJSON([]byte(`{"type":"Point","coordinates":[1,2]}`))
	assert.Error(t, err)
}

func TestEncoding_Polyline(t *testing.T) {
	line := Line{
		{X: -120.2, Y: 38.5, M: 100},
		{X: -120.95, Y: 40.7, M: 0},
		{X: -126.453, Y: 43.252, M: 250.5},
	}

	encoded := line.EncodePolyline()
	require.NotEmpty(t, encoded)

	decoded, err := DecodePolyline(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(line))
	for i := range line {
		assert.InDelta(t, line[i].X, decoded[i].X, 1e-5)
		assert.InDelta(t, line[i].Y, decoded[i].Y, 1e-5)
		assert.InDelta(t, line[i].M, decoded[i].M, 1e-5)
	}

	_, err = DecodePolyline("")
	assert.Error(t, err, "Empty polyline should fail")
}

func TestEncoding_ParseFormat(t *testing.T) {
	line := straightLine()

	for _, format := range []Format{FormatWKT, FormatWKB, FormatGeoJSON, FormatPolyline} {
		t.Run(string(format), func(t *testing.T) {
			encoded, err := line.Encode(format)
			require.NoError(t, err)

			decoded, err := ParseFormat(format, encoded)
			require.NoError(t, err)
			require.Len(t, decoded, len(line))
			for i := range line {
				assert.InDelta(t, line[i].M, decoded[i].M, 1e-5)
			}
		})
	}
}

func TestWriteKML(t *testing.T) {
	var sb strings.Builder
	err := WriteKML(&sb, "Route 4", straightLine())
	require.NoError(t, err)

	out := sb.String()
	assert.Contains(t, out, "<Placemark>")
	assert.Contains(t, out, "<name>Route 4</name>")
	assert.Contains(t, out, "<LineString>")
	assert.Contains(t, out, "<SchemaData")
	assert.Contains(t, out, `"#mvalues"`)
	assert.Contains(t, out, `<SimpleData name="m_values">`)
	assert.Contains(t, out, "10,0,0,0,20")

	kmlText, err := straightLine().Encode(FormatKML)
	require.NoError(t, err)
	assert.Contains(t, kmlText, "<kml")
}

func TestEncoding_GeoJSONFourOrdinates(t *testing.T) {
	// The third ordinate is the measure; the fourth is ignored
	line, err := ParseGeoJSON([]byte(`{"type":"LineString","coordinates":[[0,0,10,99],[1,0,0,98],[2,0,20,97]]}`))
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 0, 20}, line.MValues())
	assert.Equal(t, 1.0, line[1].X)
}

func TestEncoding_UnknownMeasures(t *testing.T) {
	line := Line{{X: 0, Y: 0, M: 1}, {X: 1, Y: 0, M: 5}, {X: 2, Y: 0, M: math.NaN()}}

	for _, format := range []Format{FormatGeoJSON, FormatPolyline} {
		t.Run(string(format), func(t *testing.T) {
			_, err := line.Encode(format)
			require.ErrorIs(t, err, ErrUnencodableMeasure)
			assert.Contains(t, err.Error(), string(format))
			assert.Contains(t, err.Error(), "vertex 2")
		})
	}

	for _, format := range []Format{FormatWKT, FormatWKB, FormatKML} {
		t.Run(string(format), func(t *testing.T) {
			out, err := line.Encode(format)
			require.NoError(t, err)
			assert.NotEmpty(t, out)
		})
	}

	wktText, err := line.Encode(FormatWKT)
	require.NoError(t, err)
	assert.Contains(t, wktText, "NaN")
}
