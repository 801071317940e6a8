package uploader

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mansiachuthan/runboard/internal/logdir"
	"github.com/mansiachuthan/runboard/internal/resolver"
	"github.com/mansiachuthan/runboard/internal/tracking"
	"github.com/mansiachuthan/runboard/internal/tracking/trackingtest"
)

const testExperiment = "experiments/exp-1"

// eventsSource yields a fixed slice of events.
type eventsSource []logdir.Event

func (s eventsSource) Scan(ctx context.Context, fn func(logdir.Event) error) error {
	for _, e := range s {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// failingSource fails without yielding any events.
type failingSource struct{ err error }

func (s failingSource) Scan(ctx context.Context, fn func(logdir.Event) error) error {
	return s.err
}

func newSession(t *testing.T, fake *trackingtest.FakeService, source logdir.Source, cfg Config) *Session {
	t.Helper()
	cfg.Service = fake
	cfg.Source = source
	cfg.Experiment = testExperiment
	session, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return session
}

func reportFor(t *testing.T, reports []RunReport, run string) RunReport {
	t.Helper()
	for _, r := range reports {
		if r.Run == run {
			return r
		}
	}
	t.Fatalf("no report for run %q in %+v", run, reports)
	return RunReport{}
}

func TestNewSession_RejectsBadInputs(t *testing.T) {
	fake := trackingtest.NewFakeService()
	if _, err := NewSession(Config{Source: eventsSource{}, Experiment: testExperiment}); err == nil {
		t.Fatal("expected error for missing service")
	}
	if _, err := NewSession(Config{Service: fake, Experiment: testExperiment}); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := NewSession(Config{Service: fake, Source: eventsSource{}, Experiment: "not-a-name"}); err == nil {
		t.Fatal("expected error for bad experiment name")
	}
}

func TestSession_UploadsRunsAndTags(t *testing.T) {
	fake := trackingtest.NewFakeService()
	source := eventsSource{
		{Run: "train", Tag: "loss", Step: 1, Value: 0.9, WallTime: 100.5},
		{Run: "train", Tag: "loss", Step: 2, Value: 0.7, WallTime: 101.5},
		{Run: "train", Tag: "accuracy", Step: 1, Value: 0.4},
		{Run: "eval", Tag: "loss", Step: 1, Value: 0.8},
	}
	session := newSession(t, fake, source, Config{})

	reports, err := session.Upload(context.Background())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(reports))
	}

	train := reportFor(t, reports, "train")
	if train.Err != nil {
		t.Fatalf("train err = %v", train.Err)
	}
	if train.Resource == "" {
		t.Fatal("train resource is empty")
	}
	if train.Points != 3 || train.Skipped != 0 {
		t.Fatalf("train points = %d skipped = %d, want 3 and 0", train.Points, train.Skipped)
	}

	eval := reportFor(t, reports, "eval")
	if eval.Points != 1 || eval.Err != nil {
		t.Fatalf("eval report = %+v, want 1 point and no error", eval)
	}
	if eval.Resource == train.Resource {
		t.Fatal("distinct runs resolved to the same resource")
	}

	counts := fake.Counts()
	if counts.CreateRuns != 2 {
		t.Fatalf("create runs = %d, want 2", counts.CreateRuns)
	}
	if counts.CreateSeries != 3 {
		t.Fatalf("create series = %d, want 3", counts.CreateSeries)
	}
	if counts.WriteRunData != 2 {
		t.Fatalf("writes = %d, want 2", counts.WriteRunData)
	}

	for _, w := range fake.Writes() {
		if w.Run != train.Resource && w.Run != eval.Resource {
			t.Fatalf("write addressed unknown run %q", w.Run)
		}
		for _, d := range w.Data {
			if !strings.Contains(d.TimeSeries, "/timeSeries/") {
				t.Fatalf("write addressed unresolved series %q", d.TimeSeries)
			}
		}
	}
}

func TestSession_BatchesWrites(t *testing.T) {
	fake := trackingtest.NewFakeService()
	source := eventsSource{
		{Run: "train", Tag: "loss", Step: 1, Value: 0.5},
		{Run: "train", Tag: "loss", Step: 2, Value: 0.4},
		{Run: "train", Tag: "loss", Step: 3, Value: 0.3},
		{Run: "train", Tag: "loss", Step: 4, Value: 0.2},
		{Run: "train", Tag: "loss", Step: 5, Value: 0.1},
	}
	session := newSession(t, fake, source, Config{BatchPoints: 2})

	reports, err := session.Upload(context.Background())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if got := reportFor(t, reports, "train").Points; got != 5 {
		t.Fatalf("points = %d, want 5", got)
	}

	writes := fake.Writes()
	if len(writes) != 3 {
		t.Fatalf("writes = %d, want 3", len(writes))
	}
	for i, w := range writes {
		if w.PointCount() > 2 {
			t.Fatalf("writes[%d] carries %d points, want at most 2", i, w.PointCount())
		}
	}
}

func TestSession_RunFailureIsolatedFromOtherRuns(t *testing.T) {
	fake := trackingtest.NewFakeService()
	// Two pre-existing runs share the display name "bad", so resolving it
	// hits an ambiguity that no list can settle.
	fake.SeedRun(testExperiment, &tracking.Run{Name: testExperiment + "/runs/b1", DisplayName: "bad"})
	fake.SeedRun(testExperiment, &tracking.Run{Name: testExperiment + "/runs/b2", DisplayName: "bad"})

	source := eventsSource{
		{Run: "bad", Tag: "loss", Step: 1, Value: 0.9},
		{Run: "bad", Tag: "loss", Step: 2, Value: 0.8},
		{Run: "good", Tag: "loss", Step: 1, Value: 0.7},
	}
	session := newSession(t, fake, source, Config{})

	reports, err := session.Upload(context.Background())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	bad := reportFor(t, reports, "bad")
	if !errors.Is(bad.Err, resolver.ErrAmbiguousResource) {
		t.Fatalf("bad err = %v, want ErrAmbiguousResource", bad.Err)
	}
	if bad.Points != 0 || bad.Skipped != 2 {
		t.Fatalf("bad points = %d skipped = %d, want 0 and 2", bad.Points, bad.Skipped)
	}

	good := reportFor(t, reports, "good")
	if good.Err != nil || good.Points != 1 {
		t.Fatalf("good report = %+v, want 1 point and no error", good)
	}
}

func TestSession_TagFailureSkipsOnlyThatTag(t *testing.T) {
	fake := trackingtest.NewFakeService()
	// The run pre-exists, so resolution adopts it by display name; its "dup"
	// tag is seeded twice to make that tag ambiguous.
	runName := testExperiment + "/runs/seeded"
	fake.SeedRun(testExperiment, &tracking.Run{Name: runName, DisplayName: "train"})
	fake.SeedTimeSeries(runName, &tracking.TimeSeries{Name: runName + "/timeSeries/d1", DisplayName: "dup", ValueType: tracking.ValueTypeScalar})
	fake.SeedTimeSeries(runName, &tracking.TimeSeries{Name: runName + "/timeSeries/d2", DisplayName: "dup", ValueType: tracking.ValueTypeScalar})

	source := eventsSource{
		{Run: "train", Tag: "dup", Step: 1, Value: 0.9},
		{Run: "train", Tag: "loss", Step: 1, Value: 0.5},
		{Run: "train", Tag: "dup", Step: 2, Value: 0.8},
	}
	session := newSession(t, fake, source, Config{})

	reports, err := session.Upload(context.Background())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	train := reportFor(t, reports, "train")
	if train.Resource != runName {
		t.Fatalf("resource = %q, want adopted run %q", train.Resource, runName)
	}
	if !errors.Is(train.Err, resolver.ErrAmbiguousResource) {
		t.Fatalf("err = %v, want ErrAmbiguousResource", train.Err)
	}
	if train.Points != 1 || train.Skipped != 2 {
		t.Fatalf("points = %d skipped = %d, want 1 and 2", train.Points, train.Skipped)
	}

	writes := fake.Writes()
	if len(writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(writes))
	}
	if got := writes[0].Data[0].TimeSeries; got != runName+"/timeSeries/loss" {
		t.Fatalf("write series = %q, want the loss series", got)
	}
}

func TestSession_WriteFailureRecordedInReport(t *testing.T) {
	fake := trackingtest.NewFakeService()
	fake.WriteErr = status.Error(codes.Internal, "write exploded")

	source := eventsSource{
		{Run: "train", Tag: "loss", Step: 1, Value: 0.9},
		{Run: "train", Tag: "loss", Step: 2, Value: 0.8},
	}
	session := newSession(t, fake, source, Config{})

	reports, err := session.Upload(context.Background())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	train := reportFor(t, reports, "train")
	if status.Code(train.Err) != codes.Internal {
		t.Fatalf("err = %v, want internal write failure", train.Err)
	}
	if train.Points != 0 || train.Skipped != 2 {
		t.Fatalf("points = %d skipped = %d, want 0 and 2", train.Points, train.Skipped)
	}
}

func TestSession_ScanFailureAbortsUpload(t *testing.T) {
	fake := trackingtest.NewFakeService()
	sentinel := errors.New("source unreadable")
	session := newSession(t, fake, failingSource{err: sentinel}, Config{})

	_, err := session.Upload(context.Background())
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want scan failure", err)
	}
	if fake.Counts().CreateRuns != 0 {
		t.Fatal("no remote calls expected after scan failure")
	}
}
