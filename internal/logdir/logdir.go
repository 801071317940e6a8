// Package logdir reads scalar metric events from a log location. A location
// is either a local directory or an s3://bucket/prefix object-store path;
// both hold JSONL files where each line is one scalar event.
package logdir

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Event is one scalar metric point read from a log file.
type Event struct {
	Run      string  `json:"run"`
	Tag      string  `json:"tag"`
	Step     int64   `json:"step"`
	Value    float64 `json:"value"`
	WallTime float64 `json:"wall_time"`
}

// Validate reports whether the event carries enough to be uploaded.
func (e Event) Validate() error {
	if e.Run == "" {
		return errors.New("event run is empty")
	}
	if e.Tag == "" {
		return errors.New("event tag is empty")
	}
	return nil
}

// Source yields scalar events from a log location. Scan calls fn once per
// event in file order; a non-nil return from fn stops the scan.
type Source interface {
	Scan(ctx context.Context, fn func(Event) error) error
}

// Location is a parsed log location.
type Location struct {
	// Bucket is set for object-store locations.
	Bucket string
	// Prefix is the object key prefix within Bucket.
	Prefix string
	// Dir is set for local directory locations.
	Dir string
}

// IsBucket reports whether the location points at an object store.
func (l Location) IsBucket() bool { return l.Bucket != "" }

// ParseLocation splits a log location into its bucket/prefix or local
// directory form.
func ParseLocation(location string) (Location, error) {
	if location == "" {
		return Location{}, errors.New("log location is empty")
	}
	if !strings.HasPrefix(location, "s3://") {
		return Location{Dir: location}, nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return Location{}, fmt.Errorf("invalid log location %q: %w", location, err)
	}
	if u.Host == "" {
		return Location{}, fmt.Errorf("log location %q has no bucket", location)
	}
	return Location{
		Bucket: u.Host,
		Prefix: strings.TrimPrefix(u.Path, "/"),
	}, nil
}

// scanLines decodes JSONL events from r, naming source in errors. Blank
// lines are skipped.
func scanLines(r io.Reader, source string, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return fmt.Errorf("%s:%d: decode event: %w", source, line, err)
		}
		if err := event.Validate(); err != nil {
			return fmt.Errorf("%s:%d: %w", source, line, err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}
	return nil
}
