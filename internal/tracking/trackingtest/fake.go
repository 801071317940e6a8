// Package trackingtest provides an in-memory tracking.Service double for
// tests. It enforces display-name uniqueness per parent the way the real
// service does and honors exact display-name list filters.
package trackingtest

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mansiachuthan/runboard/internal/tracking"
)

// Counts reports how many calls the fake served per operation.
type Counts struct {
	CreateRuns   int
	ListRuns     int
	CreateSeries int
	ListSeries   int
	WriteRunData int
}

// FakeService is an in-memory tracking.Service. The zero value is not usable;
// use NewFakeService.
type FakeService struct {
	mu     sync.Mutex
	runs   map[string][]*tracking.Run        // experiment name -> runs
	series map[string][]*tracking.TimeSeries // run name -> time series
	writes []*tracking.WriteRunDataRequest
	counts Counts

	// Error overrides. When set, the corresponding operation fails with the
	// given error instead of executing.
	CreateRunErr    error
	ListRunsErr     error
	CreateSeriesErr error
	ListSeriesErr   error
	WriteErr        error

	// Conflict overrides. When set, creates report a display-name conflict
	// without storing anything, regardless of the store contents.
	ForceRunConflict    bool
	ForceSeriesConflict bool
}

// NewFakeService creates an empty fake.
func NewFakeService() *FakeService {
	return &FakeService{
		runs:   make(map[string][]*tracking.Run),
		series: make(map[string][]*tracking.TimeSeries),
	}
}

// CreateRun implements tracking.Service.
func (f *FakeService) CreateRun(ctx context.Context, parent, runID string, run *tracking.Run) (tracking.CreateResult[tracking.Run], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts.CreateRuns++

	if f.CreateRunErr != nil {
		return tracking.CreateResult[tracking.Run]{}, f.CreateRunErr
	}
	if f.ForceRunConflict {
		return tracking.CreateResult[tracking.Run]{Conflict: true}, nil
	}
	if run == nil || run.DisplayName == "" {
		return tracking.CreateResult[tracking.Run]{}, status.Error(codes.InvalidArgument, "run display name is required")
	}
	if runID == "" {
		return tracking.CreateResult[tracking.Run]{}, status.Error(codes.InvalidArgument, "run id is required")
	}
	for _, existing := range f.runs[parent] {
		if existing.DisplayName == run.DisplayName {
			return tracking.CreateResult[tracking.Run]{Conflict: true}, nil
		}
	}

	created := *run
	created.Name = parent + "/runs/" + runID
	created.CreateTime = time.Now().UTC()
	f.runs[parent] = append(f.runs[parent], &created)
	return tracking.CreateResult[tracking.Run]{Resource: &created}, nil
}

// ListRuns implements tracking.Service.
func (f *FakeService) ListRuns(ctx context.Context, parent, filter string) ([]*tracking.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts.ListRuns++

	if f.ListRunsErr != nil {
		return nil, f.ListRunsErr
	}
	if filter == "" {
		return append([]*tracking.Run(nil), f.runs[parent]...), nil
	}
	want, err := parseDisplayNameFilter(filter)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var matches []*tracking.Run
	for _, run := range f.runs[parent] {
		if run.DisplayName == want {
			matches = append(matches, run)
		}
	}
	return matches, nil
}

// CreateTimeSeries implements tracking.Service.
func (f *FakeService) CreateTimeSeries(ctx context.Context, parent string, ts *tracking.TimeSeries) (tracking.CreateResult[tracking.TimeSeries], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts.CreateSeries++

	if f.CreateSeriesErr != nil {
		return tracking.CreateResult[tracking.TimeSeries]{}, f.CreateSeriesErr
	}
	if f.ForceSeriesConflict {
		return tracking.CreateResult[tracking.TimeSeries]{Conflict: true}, nil
	}
	if ts == nil || ts.DisplayName == "" {
		return tracking.CreateResult[tracking.TimeSeries]{}, status.Error(codes.InvalidArgument, "time series display name is required")
	}
	if ts.ValueType == "" {
		return tracking.CreateResult[tracking.TimeSeries]{}, status.Error(codes.InvalidArgument, "time series value type is required")
	}
	for _, existing := range f.series[parent] {
		if existing.DisplayName == ts.DisplayName {
			return tracking.CreateResult[tracking.TimeSeries]{Conflict: true}, nil
		}
	}

	created := *ts
	created.Name = parent + "/timeSeries/" + created.DisplayName
	created.CreateTime = time.Now().UTC()
	f.series[parent] = append(f.series[parent], &created)
	return tracking.CreateResult[tracking.TimeSeries]{Resource: &created}, nil
}

// ListTimeSeries implements tracking.Service.
func (f *FakeService) ListTimeSeries(ctx context.Context, parent, filter string) ([]*tracking.TimeSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts.ListSeries++

	if f.ListSeriesErr != nil {
		return nil, f.ListSeriesErr
	}
	if filter == "" {
		return append([]*tracking.TimeSeries(nil), f.series[parent]...), nil
	}
	want, err := parseDisplayNameFilter(filter)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var matches []*tracking.TimeSeries
	for _, ts := range f.series[parent] {
		if ts.DisplayName == want {
			matches = append(matches, ts)
		}
	}
	return matches, nil
}

// WriteRunData implements tracking.Service.
func (f *FakeService) WriteRunData(ctx context.Context, req *tracking.WriteRunDataRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts.WriteRunData++

	if f.WriteErr != nil {
		return f.WriteErr
	}
	if req == nil || req.Run == "" {
		return status.Error(codes.InvalidArgument, "run resource name is required")
	}
	f.writes = append(f.writes, req)
	return nil
}

// SeedRun stores a run under the parent without uniqueness checks, so tests
// can model pre-existing out-of-band duplicates.
func (f *FakeService) SeedRun(parent string, run *tracking.Run) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[parent] = append(f.runs[parent], run)
}

// SeedTimeSeries stores a time series under the parent run without
// uniqueness checks.
func (f *FakeService) SeedTimeSeries(parent string, ts *tracking.TimeSeries) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.series[parent] = append(f.series[parent], ts)
}

// Counts returns a snapshot of per-operation call counts.
func (f *FakeService) Counts() Counts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts
}

// Writes returns the recorded write requests in arrival order.
func (f *FakeService) Writes() []*tracking.WriteRunDataRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*tracking.WriteRunDataRequest(nil), f.writes...)
}
