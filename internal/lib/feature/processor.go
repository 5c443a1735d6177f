package feature

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/mvalues/server/internal/lib/mvalues"
)

// outcome is the result of interpolating one feature
type outcome struct {
	feature Feature
	result  *mvalues.Result
	err     error
}

// batchProcessor implements the BatchProcessor interface
type batchProcessor struct {
	interpolator mvalues.Interpolator

	// Metrics
	stats   BatchStats
	statsMu sync.RWMutex

	// Configuration
	maxConcurrent int
	timeout       time.Duration
}

// ProcessorOption configures a batch processor
type ProcessorOption func(*batchProcessor)

// WithWorkers sets the number of features interpolated concurrently
func WithWorkers(n int) ProcessorOption {
	return func(p *batchProcessor) {
		if n > 0 {
			p.maxConcurrent = n
		}
	}
}

// WithFeatureTimeout bounds the time spent on a single feature. Zero disables it.
func WithFeatureTimeout(d time.Duration) ProcessorOption {
	return func(p *batchProcessor) {
		p.timeout = d
	}
}

// NewBatchProcessor creates a new batch processor around interpolator
func NewBatchProcessor(interpolator mvalues.Interpolator, opts ...ProcessorOption) BatchProcessor {
	p := &batchProcessor{
		interpolator:  interpolator,
		maxConcurrent: 4,                // Default concurrent workers
		timeout:       10 * time.Second, // Default per-feature timeout
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessBatch interpolates features on a bounded worker pool
func (p *batchProcessor) ProcessBatch(ctx context.Context, features []Feature, sink Sink) (*Report, error) {
	startTime := time.Now()
	outcomes := make([]outcome, len(features))

	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := p.maxConcurrent
	if workers > len(features) {
		workers = len(features)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes[idx] = p.processFeature(ctx, features[idx])
			}
		}()
	}

	cancelled := false
	for idx := range features {
		select {
		case <-ctx.Done():
			cancelled = true
		case jobs <- idx:
		}
		if cancelled {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled || ctx.Err() != nil {
		logging.Warnw(ctx, "Batch cancelled before all features were processed",
			"features", len(features))
		return nil, ctx.Err()
	}

	report := &Report{Total: len(features)}
	for i, out := range outcomes {
		idx, id := features[i].Index, features[i].ID

		if out.err != nil {
			report.skip(idx, id, out.err)
			logging.Warnw(ctx, "Skipping feature",
				"index", idx, "id", id, "error", out.err)
			continue
		}

		if out.result.Partial() {
			report.Partial = append(report.Partial, PartialFeature{
				Index:    idx,
				ID:       id,
				Warnings: out.result.Warnings,
			})
			for _, w := range out.result.Warnings {
				logging.Warnw(ctx, "Feature interpolated partially",
					"index", idx, "id", id, "warning", w.String())
			}
		}

		if sink != nil {
			if err := sink.Write(ctx, out.feature); err != nil {
				p.incrementSinkFailures()
				report.skip(idx, id, fmt.Errorf("failed to write feature: %w", err))
				logging.Errorw(ctx, "Failed to write feature",
					"index", idx, "id", id, "error", err)
				continue
			}
		}

		report.Written++
		report.Interpolated += out.result.Interpolated
	}

	p.updateStats(report, time.Since(startTime))

	logging.Infow(ctx, "Processed feature batch",
		"features", report.Total,
		"written", report.Written,
		"skipped", len(report.Skipped),
		"partial", len(report.Partial),
		"duration", time.Since(startTime))

	return report, nil
}

// processFeature interpolates a single feature, bounded by the per-feature timeout
func (p *batchProcessor) processFeature(ctx context.Context, f Feature) outcome {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			// A panic on one feature must not take down the batch
			if r := recover(); r != nil {
				stack, _ := errors.ParseStack(debug.Stack())
				skipFrames := 3
				numFrames := 5
				logging.Errorw(ctx, "Feature interpolation: recovered from panic",
					"id", f.ID, "error", r, "error.stack_trace", stack.MinimalStack(skipFrames, numFrames))
				done <- outcome{feature: f, err: fmt.Errorf("panic during interpolation: %v", r)}
			}
		}()
		done <- p.interpolate(f)
	}()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		return outcome{feature: f, err: fmt.Errorf("interpolation aborted: %w", ctx.Err())}
	}
}

// interpolate runs the interpolator and rebuilds the feature with the new M-values.
// Properties are carried over unchanged.
func (p *batchProcessor) interpolate(f Feature) outcome {
	result, err := p.interpolator.Interpolate(f.Line)
	if err != nil {
		return outcome{feature: f, err: err}
	}

	line, err := result.Apply(f.Line)
	if err != nil {
		return outcome{feature: f, err: err}
	}

	return outcome{
		feature: Feature{
			Index:      f.Index,
			ID:         f.ID,
			Line:       line,
			Properties: f.Properties,
		},
		result: result,
	}
}

// Stats returns a copy of the accumulated counters
func (p *batchProcessor) Stats() BatchStats {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()

	return p.stats
}

// incrementSinkFailures safely increments the sink failure count
func (p *batchProcessor) incrementSinkFailures() {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.SinkFailures++
}

// updateStats folds a finished batch into the accumulated counters
func (p *batchProcessor) updateStats(report *Report, duration time.Duration) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	p.stats.Processed += int64(report.Total)
	p.stats.Succeeded += int64(report.Written)
	p.stats.Skipped += int64(len(report.Skipped))
	p.stats.Partial += int64(len(report.Partial))
	p.stats.Interpolated += int64(report.Interpolated)
	p.stats.Duration += duration
}
