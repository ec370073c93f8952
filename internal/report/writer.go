package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/CLEOsat-group/satellite-tracking/internal/logging"
	"github.com/CLEOsat-group/satellite-tracking/model"
)

// Files names the report files inside the output directory.
type Files struct {
	Complete string
	Simple   string
}

// Writer places run artefacts in one output directory. Files are written
// to a temporary name and renamed so a crashed run never leaves a partial
// report behind.
type Writer struct {
	dir string
	log logging.Logger
}

// NewWriter creates dir if needed.
func NewWriter(dir string, log logging.Logger) (*Writer, error) {
	if log == nil {
		log = logging.Noop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Writer{dir: dir, log: log}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// WriteReports writes the complete and simple files.
func (w *Writer) WriteReports(ctx context.Context, files Files, h Header, records []model.VisibilityRecord) error {
	if err := w.WriteFile(ctx, files.Complete, func(out io.Writer) error {
		return WriteComplete(out, h, records)
	}); err != nil {
		return err
	}
	return w.WriteFile(ctx, files.Simple, func(out io.Writer) error {
		return WriteSimple(out, h, records)
	})
}

// WriteBytes stores data under name.
func (w *Writer) WriteBytes(ctx context.Context, name string, data []byte) error {
	return w.WriteFile(ctx, name, func(out io.Writer) error {
		_, err := io.Copy(out, bytes.NewReader(data))
		return err
	})
}

// WriteFile renders fn into name.
func (w *Writer) WriteFile(ctx context.Context, name string, fn func(io.Writer) error) error {
	path := filepath.Join(w.dir, name)
	tmp, err := os.CreateTemp(w.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if err := fn(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	w.log.Debug(ctx, "wrote output file", logging.String("path", path))
	return nil
}
