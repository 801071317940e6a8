package logdir

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DirSource reads events from *.jsonl files under a local directory.
type DirSource struct {
	dir string
}

// NewDirSource creates a source over a local log directory.
func NewDirSource(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("log directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("log directory %q is not a directory", dir)
	}
	return &DirSource{dir: dir}, nil
}

// Scan implements Source. Files are visited in lexical walk order.
func (s *DirSource) Scan(ctx context.Context, fn func(Event) error) error {
	return filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl") {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()

		return scanLines(f, path, fn)
	})
}
