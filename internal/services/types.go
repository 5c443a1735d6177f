package services

import (
	"encoding/json"
	"math"

	"github.com/dpup/mvalues/server/internal/cache"
	"github.com/dpup/mvalues/server/internal/lib/feature"
	"github.com/dpup/mvalues/server/internal/lib/geo"
	"github.com/dpup/mvalues/server/internal/lib/mvalues"
)

// VertexJSON is a vertex on the wire. A null or missing m is an unknown
// measure: NaN when the nan marker is selected, 0 otherwise.
type VertexJSON struct {
	X float64  `json:"x"`
	Y float64  `json:"y"`
	M *float64 `json:"m"`
}

// InterpolateRequest is the body of POST /api/v1/interpolate.
// Exactly one of Vertices, WKT, WKB or Polyline must be set.
type InterpolateRequest struct {
	Vertices []VertexJSON `json:"vertices,omitempty"`
	WKT      string       `json:"wkt,omitempty"`
	WKB      string       `json:"wkb,omitempty"`
	Polyline string       `json:"polyline,omitempty"`

	// Optional overrides of the configured defaults
	Rounding string `json:"rounding,omitempty"`
	Unknown  string `json:"unknown,omitempty"`

	// Format of the returned geometry, wkt unless set
	Format string `json:"format,omitempty"`
}

// InterpolateResponse is the body returned for a successful interpolation
type InterpolateResponse struct {
	MValues      []*float64                       `json:"m_values"`
	Anchors      []int                            `json:"anchors"`
	Interpolated int                              `json:"interpolated"`
	Warnings     []mvalues.ZeroDistanceGapWarning `json:"warnings,omitempty"`
	Format       geo.Format                       `json:"format"`
	Geometry     string                           `json:"geometry"`
	Cached       bool                             `json:"cached"`
}

// BatchResponse is the body returned by POST /api/v1/interpolate/batch
type BatchResponse struct {
	Report   *feature.Report `json:"report"`
	Features json.RawMessage `json:"features"`
}

// StatsResponse is the body returned by GET /api/v1/stats
type StatsResponse struct {
	Batch feature.BatchStats `json:"batch"`
	Cache *cache.CacheStats  `json:"cache,omitempty"`
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Error    string                   `json:"error"`
	Reason   mvalues.DegenerateReason `json:"reason,omitempty"`
	Vertices *int                     `json:"vertices,omitempty"`
	Index    *int                     `json:"index,omitempty"`
}

// nullableValues renders NaN (unknown) M-values as JSON null
func nullableValues(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		if !math.IsNaN(values[i]) {
			v := values[i]
			out[i] = &v
		}
	}
	return out
}
