package tracking

import "context"

// CreateResult is the outcome of a create call. A display-name collision
// under the parent container is an expected, commonly-taken branch, so it is
// reported as a tagged result rather than through the error channel; every
// other failure is returned as an error carrying a gRPC status code.
type CreateResult[R any] struct {
	// Resource is the created resource. Nil when Conflict is set.
	Resource *R
	// Conflict reports that the draft's display name already exists under
	// the parent container.
	Conflict bool
}

// Service is the tracking API surface the uploader depends on. The concrete
// transport lives behind this interface; implementations own retry and
// timeout policy for transient failures.
//
// List filters are equality predicates on display name, in the form produced
// by DisplayNameFilter.
type Service interface {
	// CreateRun creates a run under the parent experiment. runID is the
	// caller-chosen resource id token; the service enforces uniqueness of
	// both the id and the draft's display name.
	CreateRun(ctx context.Context, parent, runID string, run *Run) (CreateResult[Run], error)

	// ListRuns lists runs under the parent experiment matching filter.
	ListRuns(ctx context.Context, parent, filter string) ([]*Run, error)

	// CreateTimeSeries creates a time series under the parent run.
	CreateTimeSeries(ctx context.Context, parent string, ts *TimeSeries) (CreateResult[TimeSeries], error)

	// ListTimeSeries lists time series under the parent run matching filter.
	ListTimeSeries(ctx context.Context, parent, filter string) ([]*TimeSeries, error)

	// WriteRunData appends metric points to a run's time series.
	WriteRunData(ctx context.Context, req *WriteRunDataRequest) error
}
