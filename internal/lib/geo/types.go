package geo

// Vertex represents a planar line vertex carrying a measure (M) value
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	M float64 `json:"m"`
}

// Line represents an ordered, single-part sequence of vertices.
// Vertices are never reordered by anything in this package.
type Line []Vertex

// Segment represents the straight piece between two consecutive vertices
type Segment struct {
	From   int     `json:"from"`
	To     int     `json:"to"`
	Length float64 `json:"length"`
	// Distance along the line from the first vertex to the end of this segment
	Cumulative float64 `json:"cumulative"`
}

// Format names a supported line encoding
type Format string

const (
	FormatWKT      Format = "wkt"
	FormatWKB      Format = "wkb"
	FormatGeoJSON  Format = "geojson"
	FormatPolyline Format = "polyline"
	FormatKML      Format = "kml"
)
