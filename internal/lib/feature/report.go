package feature

import (
	"fmt"

	"go.uber.org/multierr"
)

// Report summarizes one batch
type Report struct {
	Total        int              `json:"total"`
	Written      int              `json:"written"`
	Interpolated int              `json:"interpolated"`
	Skipped      []SkippedFeature `json:"skipped,omitempty"`
	Partial      []PartialFeature `json:"partial,omitempty"`

	errs error
}

func (r *Report) skip(index int, id string, err error) {
	r.Skipped = append(r.Skipped, SkippedFeature{
		Index:  index,
		ID:     id,
		Err:    err,
		Reason: err.Error(),
	})
	r.errs = multierr.Append(r.errs, fmt.Errorf("feature %d (%s): %w", index, displayID(id), err))
}

// Err combines the errors of every skipped feature, nil when nothing was skipped
func (r *Report) Err() error {
	return r.errs
}

// Errors returns the individual per-feature errors
func (r *Report) Errors() []error {
	return multierr.Errors(r.errs)
}

func displayID(id string) string {
	if id == "" {
		return "no id"
	}
	return id
}
