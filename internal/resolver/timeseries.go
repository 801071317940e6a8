package resolver

import (
	"context"
	"errors"

	"github.com/mansiachuthan/runboard/internal/tracking"
)

// DraftFactory produces a prototype time series carrying the value type and
// plugin metadata for a tag. The resolver owns identity plumbing: it sets the
// draft's display name before the create call.
type DraftFactory func() *tracking.TimeSeries

// Draft returns a factory producing bare drafts of the given value type.
// Callers needing plugin metadata supply their own factory.
func Draft(valueType tracking.ValueType) DraftFactory {
	return func() *tracking.TimeSeries {
		return &tracking.TimeSeries{ValueType: valueType}
	}
}

// TimeSeriesResolver resolves (run name, tag name) pairs to time-series
// resource names within an experiment. Run resolution goes through a
// RunResolver first, so the run is created on demand and its resource name
// is shared across tags. Safe for concurrent use.
type TimeSeriesResolver struct {
	svc   tracking.Service
	runs  *RunResolver
	cache *refCache
}

// NewTimeSeriesResolver creates a two-level resolver composing the given run
// resolver.
func NewTimeSeriesResolver(svc tracking.Service, runs *RunResolver) (*TimeSeriesResolver, error) {
	if svc == nil {
		return nil, errors.New("tracking service is required")
	}
	if runs == nil {
		return nil, errors.New("run resolver is required")
	}
	return &TimeSeriesResolver{
		svc:   svc,
		runs:  runs,
		cache: newRefCache(),
	}, nil
}

// Resolve returns the resource name of the tag's time series under run,
// creating the run and the time series when absent.
func (t *TimeSeriesResolver) Resolve(ctx context.Context, run, tag string, draft DraftFactory) (string, error) {
	if run == "" {
		return "", errors.New("run name is required")
	}
	if tag == "" {
		return "", errors.New("tag name is required")
	}
	if draft == nil {
		return "", errors.New("draft factory is required")
	}
	// NUL cannot appear in a display name the service accepts, so the joined
	// key is unambiguous.
	key := run + "\x00" + tag
	return t.cache.resolve(ctx, key, func(ctx context.Context) (string, error) {
		runName, err := t.runs.Resolve(ctx, run)
		if err != nil {
			return "", err
		}
		ts, err := createOrGetTimeSeries(ctx, t.svc, runName, tag, draft)
		if err != nil {
			return "", err
		}
		return ts.Name, nil
	})
}

// RunTimeSeriesResolver resolves tag names to time-series resource names
// under one fixed, already-resolved run. Safe for concurrent use.
type RunTimeSeriesResolver struct {
	svc   tracking.Service
	run   string
	cache *refCache
}

// NewRunTimeSeriesResolver creates a resolver bound to the given run
// resource name.
func NewRunTimeSeriesResolver(svc tracking.Service, run string) (*RunTimeSeriesResolver, error) {
	if svc == nil {
		return nil, errors.New("tracking service is required")
	}
	if err := tracking.ValidateRunName(run); err != nil {
		return nil, err
	}
	return &RunTimeSeriesResolver{
		svc:   svc,
		run:   run,
		cache: newRefCache(),
	}, nil
}

// Resolve returns the resource name of the tag's time series, creating it
// under the bound run when absent.
func (t *RunTimeSeriesResolver) Resolve(ctx context.Context, tag string, draft DraftFactory) (string, error) {
	if tag == "" {
		return "", errors.New("tag name is required")
	}
	if draft == nil {
		return "", errors.New("draft factory is required")
	}
	return t.cache.resolve(ctx, tag, func(ctx context.Context) (string, error) {
		ts, err := createOrGetTimeSeries(ctx, t.svc, t.run, tag, draft)
		if err != nil {
			return "", err
		}
		return ts.Name, nil
	})
}

func createOrGetTimeSeries(ctx context.Context, svc tracking.Service, runName, tag string, draft DraftFactory) (*tracking.TimeSeries, error) {
	return createOrGet(ctx, tag,
		func(ctx context.Context) (tracking.CreateResult[tracking.TimeSeries], error) {
			ts := draft()
			if ts == nil {
				return tracking.CreateResult[tracking.TimeSeries]{}, errors.New("draft factory returned nil")
			}
			ts.DisplayName = tag
			return svc.CreateTimeSeries(ctx, runName, ts)
		},
		func(ctx context.Context, filter string) ([]*tracking.TimeSeries, error) {
			return svc.ListTimeSeries(ctx, runName, filter)
		},
	)
}
