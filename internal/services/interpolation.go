package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/mvalues/server/internal/cache"
	"github.com/dpup/mvalues/server/internal/config"
	"github.com/dpup/mvalues/server/internal/lib/feature"
	"github.com/dpup/mvalues/server/internal/lib/geo"
	"github.com/dpup/mvalues/server/internal/lib/mvalues"
)

// Request bodies above this size are rejected
const maxBodyBytes = 32 << 20

// InterpolationService exposes M-value interpolation over HTTP
type InterpolationService struct {
	cache     *cache.ResultCache
	processor feature.BatchProcessor
	config    *config.Config
	defaults  []mvalues.Option
	logger    logging.Logger
}

// NewInterpolationService creates a new InterpolationService. resultCache may be nil
// to disable caching.
func NewInterpolationService(cfg *config.Config, resultCache *cache.ResultCache) (*InterpolationService, error) {
	defaults, err := cfg.Interpolation.Options()
	if err != nil {
		return nil, fmt.Errorf("invalid interpolation config: %w", err)
	}

	processor := feature.NewBatchProcessor(
		mvalues.NewInterpolator(defaults...),
		feature.WithWorkers(cfg.Batch.Workers),
		feature.WithFeatureTimeout(cfg.Batch.FeatureTimeout),
	)

	return &InterpolationService{
		cache:     resultCache,
		processor: processor,
		config:    cfg,
		defaults:  defaults,
		logger:    logging.NewProdLogger(),
	}, nil
}

// Interpolate fills the missing M-values of the line described by req
func (s *InterpolationService) Interpolate(ctx context.Context, req *InterpolateRequest) (*InterpolateResponse, error) {
	interpolator, err := s.interpolatorFor(req)
	if err != nil {
		return nil, err
	}

	line, err := decodeLine(req, interpolator.Options().Unknown)
	if err != nil {
		return nil, err
	}

	format := geo.FormatWKT
	if req.Format != "" {
		format = geo.Format(req.Format)
	}

	var (
		result *mvalues.Result
		cached bool
		key    string
	)
	if s.cache != nil {
		key = cache.ResultKey(line, interpolator.Options())
		result, cached = s.cache.Get(key)
	}

	if !cached {
		result, err = interpolator.Interpolate(line)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Set(key, result)
		}
	}

	for _, w := range result.Warnings {
		logging.Warnw(ctx, "Partial interpolation", "warning", w.String())
	}

	out, err := result.Apply(line)
	if err != nil {
		return nil, err
	}
	geometry, err := out.Encode(format)
	if err != nil {
		return nil, &requestError{fmt.Errorf("failed to encode geometry: %w", err)}
	}

	return &InterpolateResponse{
		MValues:      nullableValues(result.Values),
		Anchors:      result.Anchors,
		Interpolated: result.Interpolated,
		Warnings:     result.Warnings,
		Format:       format,
		Geometry:     geometry,
		Cached:       cached,
	}, nil
}

// ProcessFeatures interpolates a GeoJSON FeatureCollection, returning the
// interpolated collection and the batch report
func (s *InterpolationService) ProcessFeatures(ctx context.Context, r io.Reader) (*BatchResponse, error) {
	features, unreadable, err := feature.ReadFeatureCollection(r)
	if err != nil {
		return nil, &requestError{err}
	}
	if len(features)+len(unreadable) > s.config.Batch.MaxFeatures {
		return nil, &requestError{fmt.Errorf("batch has %d features, limit is %d",
			len(features)+len(unreadable), s.config.Batch.MaxFeatures)}
	}

	sink := feature.NewCollectSink()
	report, err := s.processor.ProcessBatch(ctx, features, sink)
	if err != nil {
		return nil, err
	}
	report.Total += len(unreadable)
	report.Skipped = append(report.Skipped, unreadable...)
	sort.SliceStable(report.Skipped, func(i, j int) bool {
		return report.Skipped[i].Index < report.Skipped[j].Index
	})

	var buf bytes.Buffer
	if err := feature.WriteFeatureCollection(&buf, sink.Features()); err != nil {
		return nil, err
	}

	return &BatchResponse{
		Report:   report,
		Features: buf.Bytes(),
	}, nil
}

// Stats returns batch and cache counters
func (s *InterpolationService) Stats() StatsResponse {
	resp := StatsResponse{Batch: s.processor.Stats()}
	if s.cache != nil {
		stats := s.cache.Stats()
		resp.Cache = &stats
	}
	return resp
}

// HandleInterpolate serves POST /api/v1/interpolate
func (s *InterpolationService) HandleInterpolate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}

	ctx := s.requestContext(r)

	var req InterpolateRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	resp, err := s.Interpolate(ctx, &req)
	if err != nil {
		s.writeFailure(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}

// HandleBatch serves POST /api/v1/interpolate/batch
func (s *InterpolationService) HandleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}

	ctx := s.requestContext(r)
	resp, err := s.ProcessFeatures(ctx, io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeFailure(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}

// HandleStats serves GET /api/v1/stats
func (s *InterpolationService) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(s.requestContext(r), w, http.StatusOK, s.Stats())
}

// requestContext returns the request context, attaching the service logger
// when the server has not already scoped one to the request
func (s *InterpolationService) requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if logging.FromContext(ctx) == nil {
		ctx = logging.With(ctx, s.logger)
	}
	return ctx
}

// interpolatorFor applies the request overrides on top of the configured defaults
func (s *InterpolationService) interpolatorFor(req *InterpolateRequest) (mvalues.Interpolator, error) {
	opts := append([]mvalues.Option{}, s.defaults...)

	if req.Rounding != "" {
		rounding, err := mvalues.ParseRoundingMode(req.Rounding)
		if err != nil {
			return nil, &requestError{err}
		}
		opts = append(opts, mvalues.WithRounding(rounding))
	}
	if req.Unknown != "" {
		unknown, err := mvalues.ParseUnknownMode(req.Unknown)
		if err != nil {
			return nil, &requestError{err}
		}
		opts = append(opts, mvalues.WithUnknown(unknown))
	}

	return mvalues.NewInterpolator(opts...), nil
}

// decodeLine reads the single geometry source set on the request
func decodeLine(req *InterpolateRequest, unknown mvalues.UnknownMode) (geo.Line, error) {
	sources := 0
	for _, set := range []bool{len(req.Vertices) > 0, req.WKT != "", req.WKB != "", req.Polyline != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, &requestError{errors.New("exactly one of vertices, wkt, wkb or polyline is required")}
	}

	var (
		line geo.Line
		err  error
	)
	switch {
	case len(req.Vertices) > 0:
		line = make(geo.Line, len(req.Vertices))
		for i, v := range req.Vertices {
			line[i] = geo.Vertex{X: v.X, Y: v.Y}
			switch {
			case v.M != nil:
				line[i].M = *v.M
			case unknown == mvalues.UnknownNaN:
				line[i].M = math.NaN()
			}
		}
	case req.WKT != "":
		line, err = geo.ParseWKT(req.WKT)
	case req.WKB != "":
		line, err = geo.ParseWKBHex(req.WKB)
	default:
		line, err = geo.DecodePolyline(req.Polyline)
	}
	if err != nil {
		return nil, &requestError{err}
	}
	return line, nil
}

// requestError marks failures caused by the client's input
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// writeFailure maps an error to a status code and structured body
func (s *InterpolationService) writeFailure(ctx context.Context, w http.ResponseWriter, err error) {
	var degenerate *mvalues.DegenerateInputError
	var badRequest *requestError

	switch {
	case errors.As(err, &degenerate):
		logging.Infow(ctx, "Rejected degenerate line", "reason", degenerate.Reason, "vertices", degenerate.Vertices)
		vertices, index := degenerate.Vertices, degenerate.Index
		resp := ErrorResponse{
			Error:    degenerate.Error(),
			Reason:   degenerate.Reason,
			Vertices: &vertices,
		}
		if index >= 0 {
			resp.Index = &index
		}
		writeError(w, http.StatusBadRequest, resp)
	case errors.As(err, &badRequest):
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: badRequest.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	default:
		logging.Errorw(ctx, "Interpolation request failed", "error", err)
		writeError(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func writeError(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Errorw(ctx, "Failed to encode response", "error", err)
		writeError(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to encode response"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Errorw(ctx, "Failed to write response", "error", err)
	}
}
