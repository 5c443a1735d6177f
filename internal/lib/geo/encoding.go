package geo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkbhex"
	"github.com/twpayne/go-geom/encoding/wkt"
	"github.com/twpayne/go-polyline"
)

// polylineCodec encodes lat, lng and m for every vertex
var polylineCodec = polyline.Codec{Dim: 3, Scale: 1e5}

// FromGeom converts a go-geom LineString into a Line.
// Z ordinates are dropped; layouts without M produce a line of unknown (zero) M-values.
func FromGeom(g geom.T) (Line, error) {
	ls, ok := g.(*geom.LineString)
	if !ok {
		return nil, fmt.Errorf("unsupported geometry type %T: only single LineStrings are supported", g)
	}

	stride := ls.Stride()
	mIndex := ls.Layout().MIndex()
	flat := ls.FlatCoords()

	line := make(Line, ls.NumCoords())
	for i := range line {
		offset := i * stride
		line[i] = Vertex{X: flat[offset], Y: flat[offset+1]}
		if mIndex >= 0 {
			line[i].M = flat[offset+mIndex]
		}
	}
	return line, nil
}

// ToGeom converts the line into an XYM go-geom LineString
func (l Line) ToGeom() *geom.LineString {
	flat := make([]float64, 0, 3*len(l))
	for _, v := range l {
		flat = append(flat, v.X, v.Y, v.M)
	}
	return geom.NewLineStringFlat(geom.XYM, flat)
}

// ParseWKT decodes a "LINESTRING M (...)" (or plain LINESTRING) string
func ParseWKT(s string) (Line, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("wkt string is empty")
	}

	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse wkt: %w", err)
	}
	return FromGeom(g)
}

// WKT encodes the line as "LINESTRING M (...)"
func (l Line) WKT() (string, error) {
	return wkt.Marshal(l.ToGeom())
}

// ParseWKBHex decodes a hex encoded (E)WKB LineString
func ParseWKBHex(s string) (Line, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("wkb string is empty")
	}

	g, err := wkbhex.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("failed to parse wkb: %w", err)
	}
	return FromGeom(g)
}

// WKBHex encodes the line as little-endian hex WKB
func (l Line) WKBHex() (string, error) {
	return wkbhex.Encode(l.ToGeom(), binary.LittleEndian)
}

// ParseGeoJSON decodes a GeoJSON LineString geometry.
// GeoJSON has no M ordinate, so a third ordinate is read as the M-value.
func ParseGeoJSON(data []byte) (Line, error) {
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse geojson: %w", err)
	}
	return FromGeoJSONGeometry(g)
}

// FromGeoJSONGeometry converts a decoded GeoJSON geometry, reading the third
// ordinate as the M-value. Any ordinates past the third are ignored.
func FromGeoJSONGeometry(g geom.T) (Line, error) {
	ls, ok := g.(*geom.LineString)
	if !ok {
		return nil, fmt.Errorf("unsupported geometry type %T: only single LineStrings are supported", g)
	}

	switch ls.Layout() {
	case geom.XYZ:
		ls = geom.NewLineStringFlat(geom.XYM, ls.FlatCoords())
	case geom.XYZM:
		stride := ls.Stride()
		flat := ls.FlatCoords()
		xym := make([]float64, 0, 3*ls.NumCoords())
		for offset := 0; offset+stride <= len(flat); offset += stride {
			xym = append(xym, flat[offset], flat[offset+1], flat[offset+2])
		}
		ls = geom.NewLineStringFlat(geom.XYM, xym)
	}
	return FromGeom(ls)
}

// GeoJSONGeometry returns the line as a geometry suitable for GeoJSON output,
// with the M-value written as the third ordinate
func (l Line) GeoJSONGeometry() geom.T {
	return geom.NewLineStringFlat(geom.XYZ, l.ToGeom().FlatCoords())
}

// GeoJSON encodes the line as a GeoJSON LineString geometry
func (l Line) GeoJSON() ([]byte, error) {
	return geojson.Marshal(l.GeoJSONGeometry())
}

// DecodePolyline decodes a three dimensional (lat, lng, m) encoded polyline
func DecodePolyline(encoded string) (Line, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polylineCodec.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}

	line := make(Line, len(coords))
	for i, coord := range coords {
		line[i] = Vertex{
			X: coord[1],
			Y: coord[0],
			M: coord[2],
		}
	}
	return line, nil
}

// EncodePolyline encodes the line as a three dimensional (lat, lng, m) polyline
func (l Line) EncodePolyline() string {
	coords := make([][]float64, len(l))
	for i, v := range l {
		coords[i] = []float64{v.Y, v.X, v.M}
	}
	return string(polylineCodec.EncodeCoords(nil, coords))
}

// ParseFormat decodes a line from the named text format
func ParseFormat(format Format, data string) (Line, error) {
	switch format {
	case FormatWKT:
		return ParseWKT(data)
	case FormatWKB:
		return ParseWKBHex(data)
	case FormatGeoJSON:
		return ParseGeoJSON([]byte(data))
	case FormatPolyline:
		return DecodePolyline(data)
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
}

// ErrUnencodableMeasure is returned when a NaN (unknown) M-value is encoded in a
// format that has no representation for it
var ErrUnencodableMeasure = errors.New("format cannot represent an unknown (NaN) M-value")

// Encode renders the line in the named text format.
// NaN M-values are written as NaN in WKT, WKB and KML and rejected for GeoJSON
// and encoded polylines.
func (l Line) Encode(format Format) (string, error) {
	if format == FormatGeoJSON || format == FormatPolyline {
		if idx := l.firstNaNMeasure(); idx >= 0 {
			return "", fmt.Errorf("%s output, vertex %d: %w", format, idx, ErrUnencodableMeasure)
		}
	}

	switch format {
	case FormatWKT:
		return l.WKT()
	case FormatWKB:
		return l.WKBHex()
	case FormatGeoJSON:
		data, err := l.GeoJSON()
		return string(data), err
	case FormatPolyline:
		return l.EncodePolyline(), nil
	case FormatKML:
		var sb strings.Builder
		if err := WriteKML(&sb, "line", l); err != nil {
			return "", err
		}
		return sb.String(), nil
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}

func (l Line) firstNaNMeasure() int {
	for i, v := range l {
		if math.IsNaN(v.M) {
			return i
		}
	}
	return -1
}
