// Package uploader drives one upload session: it scans a log source for
// scalar events, resolves each run and tag to its tracking API resource,
// and writes the points in batches.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mansiachuthan/runboard/internal/logdir"
	"github.com/mansiachuthan/runboard/internal/resolver"
	"github.com/mansiachuthan/runboard/internal/tracking"
)

const (
	defaultWorkers     = 4
	defaultBatchPoints = 1000
)

// Config provides configuration details to an upload session.
type Config struct {
	// Service is the tracking API the session uploads to.
	Service tracking.Service
	// Source yields the scalar events to upload.
	Source logdir.Source
	// Experiment is the parent experiment resource name.
	Experiment string
	// Workers bounds how many runs upload concurrently. Zero uses the
	// default.
	Workers int
	// BatchPoints bounds how many points one write request carries. Zero
	// uses the default.
	BatchPoints int
}

// Session uploads the events of one log source into one experiment. Runs
// upload concurrently but every worker shares the session's resolvers, so a
// run or tag resolves at most once per session.
type Session struct {
	svc         tracking.Service
	source      logdir.Source
	runs        *resolver.RunResolver
	series      *resolver.TimeSeriesResolver
	workers     int
	batchPoints int
	tracer      trace.Tracer
}

// NewSession creates an upload session.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Service == nil {
		return nil, errors.New("tracking service is required")
	}
	if cfg.Source == nil {
		return nil, errors.New("log source is required")
	}
	runs, err := resolver.NewRunResolver(cfg.Service, cfg.Experiment)
	if err != nil {
		return nil, err
	}
	series, err := resolver.NewTimeSeriesResolver(cfg.Service, runs)
	if err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.BatchPoints <= 0 {
		cfg.BatchPoints = defaultBatchPoints
	}
	return &Session{
		svc:         cfg.Service,
		source:      cfg.Source,
		runs:        runs,
		series:      series,
		workers:     cfg.Workers,
		batchPoints: cfg.BatchPoints,
		tracer:      otel.Tracer("runboard/uploader"),
	}, nil
}

// RunReport is the outcome of uploading one run.
type RunReport struct {
	// Run is the logical run name from the log source.
	Run string
	// Resource is the resolved run resource name, empty when run
	// resolution failed.
	Resource string
	// Points counts the points written.
	Points int
	// Skipped counts points dropped because their run or tag failed to
	// resolve.
	Skipped int
	// Err collects the failures that caused skips or aborted the run.
	Err error
}

// Upload scans the source and uploads every run's events. A failure in one
// run is recorded in its report and never blocks other runs; Upload returns
// an error only when the scan itself fails or ctx ends.
func (s *Session) Upload(ctx context.Context) ([]RunReport, error) {
	ctx, span := s.tracer.Start(ctx, "uploader.Upload")
	defer span.End()

	byRun, order, err := s.collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan log source: %w", err)
	}
	log.Printf("scanned %d runs from log source", len(order))

	reports := make([]RunReport, len(order))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, run := range order {
		g.Go(func() error {
			reports[i] = s.uploadRun(ctx, run, byRun[run])
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return reports, err
	}
	return reports, nil
}

func (s *Session) collect(ctx context.Context) (map[string][]logdir.Event, []string, error) {
	byRun := make(map[string][]logdir.Event)
	var order []string
	err := s.source.Scan(ctx, func(e logdir.Event) error {
		if _, ok := byRun[e.Run]; !ok {
			order = append(order, e.Run)
		}
		byRun[e.Run] = append(byRun[e.Run], e)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return byRun, order, nil
}

// uploadRun resolves one run and its tags, then writes the run's points in
// batches. Tags that fail to resolve are skipped; the remaining tags still
// upload.
func (s *Session) uploadRun(ctx context.Context, run string, events []logdir.Event) RunReport {
	ctx, span := s.tracer.Start(ctx, "uploader.uploadRun",
		trace.WithAttributes(attribute.String("runboard.run", run)))
	defer span.End()

	report := RunReport{Run: run}

	resource, err := s.runs.Resolve(ctx, run)
	if err != nil {
		report.Skipped = len(events)
		report.Err = fmt.Errorf("resolve run %q: %w", run, err)
		return report
	}
	report.Resource = resource

	seriesNames := make(map[string]string)
	for _, e := range events {
		if _, done := seriesNames[e.Tag]; done {
			continue
		}
		name, err := s.series.Resolve(ctx, run, e.Tag, resolver.Draft(tracking.ValueTypeScalar))
		if err != nil {
			report.Err = errors.Join(report.Err, fmt.Errorf("resolve tag %q: %w", e.Tag, err))
			seriesNames[e.Tag] = ""
			continue
		}
		seriesNames[e.Tag] = name
	}

	batch := newBatch(resource, s.batchPoints)
	for _, e := range events {
		name := seriesNames[e.Tag]
		if name == "" {
			report.Skipped++
			continue
		}
		if batch.full() {
			if err := s.flush(ctx, batch, &report); err != nil {
				report.Skipped += len(events) - report.Points - report.Skipped
				return report
			}
			batch = newBatch(resource, s.batchPoints)
		}
		batch.add(name, point(e))
	}
	if err := s.flush(ctx, batch, &report); err != nil {
		report.Skipped += len(events) - report.Points - report.Skipped
	}
	return report
}

func (s *Session) flush(ctx context.Context, b *batch, report *RunReport) error {
	if b.points == 0 {
		return nil
	}
	if err := s.svc.WriteRunData(ctx, b.request()); err != nil {
		report.Err = errors.Join(report.Err, fmt.Errorf("write run data: %w", err))
		return err
	}
	report.Points += b.points
	return nil
}

func point(e logdir.Event) tracking.ScalarPoint {
	p := tracking.ScalarPoint{Step: e.Step, Value: e.Value}
	if e.WallTime > 0 {
		sec := int64(e.WallTime)
		nsec := int64((e.WallTime - float64(sec)) * float64(time.Second))
		p.WallTime = time.Unix(sec, nsec).UTC()
	}
	return p
}

// batch accumulates points for one run, keyed by time-series resource name,
// until it reaches its point limit.
type batch struct {
	run    string
	limit  int
	points int
	order  []string
	data   map[string]*tracking.TimeSeriesData
}

func newBatch(run string, limit int) *batch {
	return &batch{run: run, limit: limit, data: make(map[string]*tracking.TimeSeriesData)}
}

func (b *batch) full() bool { return b.points >= b.limit }

func (b *batch) add(series string, p tracking.ScalarPoint) {
	d, ok := b.data[series]
	if !ok {
		d = &tracking.TimeSeriesData{TimeSeries: series}
		b.data[series] = d
		b.order = append(b.order, series)
	}
	d.Points = append(d.Points, p)
	b.points++
}

func (b *batch) request() *tracking.WriteRunDataRequest {
	req := &tracking.WriteRunDataRequest{Run: b.run}
	for _, series := range b.order {
		req.Data = append(req.Data, *b.data[series])
	}
	return req
}
