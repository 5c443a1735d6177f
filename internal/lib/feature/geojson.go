package feature

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/dpup/mvalues/server/internal/lib/geo"
)

// ReadFeatureCollection decodes a GeoJSON FeatureCollection of LineStrings.
// The third ordinate of each coordinate is read as the M-value. Numeric feature
// ids are kept as their JSON text. Features that cannot be decoded or whose
// geometry is not a single LineString are returned as skipped rather than
// failing the read; skipped and read features both carry their index in the
// collection.
func ReadFeatureCollection(r io.Reader) ([]Feature, []SkippedFeature, error) {
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, nil, fmt.Errorf("failed to decode feature collection: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, nil, fmt.Errorf("failed to decode feature collection: unexpected type %q", fc.Type)
	}

	features := make([]Feature, 0, len(fc.Features))
	var skipped []SkippedFeature
	for idx, data := range fc.Features {
		gf, err := decodeFeature(data)
		if err == nil && gf.Geometry == nil {
			err = errors.New("feature has no geometry")
		}
		var line geo.Line
		if err == nil {
			line, err = geo.FromGeoJSONGeometry(gf.Geometry)
		}
		if err != nil {
			var id string
			if gf != nil {
				id = gf.ID
			}
			skipped = append(skipped, SkippedFeature{Index: idx, ID: id, Err: err, Reason: err.Error()})
			continue
		}

		features = append(features, Feature{
			Index:      idx,
			ID:         gf.ID,
			Line:       line,
			Properties: gf.Properties,
		})
	}

	return features, skipped, nil
}

// decodeFeature decodes a single GeoJSON feature. go-geom only accepts string
// ids, so a numeric id is rewritten as a string first.
func decodeFeature(data json.RawMessage) (*geojson.Feature, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode feature: %w", err)
	}

	if id, ok := fields["id"]; ok && len(id) > 0 && id[0] != '"' && string(id) != "null" {
		quoted, err := json.Marshal(string(id))
		if err != nil {
			return nil, fmt.Errorf("failed to decode feature id: %w", err)
		}
		fields["id"] = quoted
		if data, err = json.Marshal(fields); err != nil {
			return nil, fmt.Errorf("failed to decode feature: %w", err)
		}
	}

	var gf geojson.Feature
	if err := json.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("failed to decode feature: %w", err)
	}
	return &gf, nil
}

// WriteFeatureCollection encodes features as a GeoJSON FeatureCollection,
// writing M-values as the third ordinate
func WriteFeatureCollection(w io.Writer, features []Feature) error {
	fc := geojson.FeatureCollection{
		Features: make([]*geojson.Feature, len(features)),
	}
	for i, f := range features {
		fc.Features[i] = &geojson.Feature{
			ID:         f.ID,
			Geometry:   f.Line.GeoJSONGeometry(),
			Properties: f.Properties,
		}
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return fmt.Errorf("failed to encode feature collection: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// CollectSink keeps written features in memory, in write order
type CollectSink struct {
	mu       sync.Mutex
	features []Feature
}

// NewCollectSink creates an empty in-memory sink
func NewCollectSink() *CollectSink {
	return &CollectSink{}
}

// Write appends f to the collected features
func (s *CollectSink) Write(_ context.Context, f Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.features = append(s.features, f)
	return nil
}

// Features returns the collected features
func (s *CollectSink) Features() []Feature {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Feature(nil), s.features...)
}
