// Package feature runs M-value interpolation over batches of line features.
// Each feature is processed independently; a feature that cannot be
// interpolated is skipped and reported without affecting the rest of the batch.
package feature

import (
	"context"
	"time"

	"github.com/dpup/mvalues/server/internal/lib/geo"
	"github.com/dpup/mvalues/server/internal/lib/mvalues"
)

// Feature is a single line geometry with its non-geometry attributes
type Feature struct {
	// Index is the feature's position in its source collection and is used
	// when reporting it
	Index      int                    `json:"index"`
	ID         string                 `json:"id"`
	Line       geo.Line               `json:"line"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// SkippedFeature records a feature that was dropped from the output
type SkippedFeature struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Err   error  `json:"-"`
	// Reason is Err rendered for reporting
	Reason string `json:"reason"`
}

// PartialFeature records a feature written with some gaps left un-interpolated
type PartialFeature struct {
	Index    int                              `json:"index"`
	ID       string                           `json:"id"`
	Warnings []mvalues.ZeroDistanceGapWarning `json:"warnings"`
}

// Sink receives successfully interpolated features in input order
type Sink interface {
	Write(ctx context.Context, f Feature) error
}

// BatchStats accumulates processing counters across batches
type BatchStats struct {
	Processed    int64         `json:"processed"`
	Succeeded    int64         `json:"succeeded"`
	Skipped      int64         `json:"skipped"`
	Partial      int64         `json:"partial"`
	Interpolated int64         `json:"interpolated"`
	SinkFailures int64         `json:"sink_failures"`
	Duration     time.Duration `json:"duration"`
}

// BatchProcessor interpolates M-values for many features concurrently
type BatchProcessor interface {
	// ProcessBatch interpolates every feature, writing successes to the sink
	// in input order. Failures are reported in the returned Report and never
	// stop the batch; the error is only non-nil when ctx is cancelled.
	ProcessBatch(ctx context.Context, features []Feature, sink Sink) (*Report, error)

	// Stats returns counters accumulated over all batches
	Stats() BatchStats
}
