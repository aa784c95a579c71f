// Package pipeline writes scraped records to capture files.
package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aluiziolira/extract-books/config"
	"github.com/aluiziolira/extract-books/models"
)

// CaptureLayout is the timestamp layout used in capture file names.
const CaptureLayout = "20060102_150405"

// CaptureName returns books_<timestamp><ext>.
func CaptureName(at time.Time, ext string) string {
	return "books_" + at.Format(CaptureLayout) + ext
}

// CaptureWriter writes the records of one run to a file named by the time
// the write happens.
type CaptureWriter struct {
	dir    string
	format string
	now    func() time.Time
	logger *slog.Logger

	// open creates the files for one capture; the first path is reported.
	open func(at time.Time) (OutputWriter, []string, error)
}

// NewCaptureWriter returns a writer for dir. A nil now uses time.Now and a
// nil logger uses slog.Default().
func NewCaptureWriter(dir, format string, now func() time.Time, logger *slog.Logger) *CaptureWriter {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if format == "" {
		format = config.FormatCSV
	}
	cw := &CaptureWriter{dir: dir, format: format, now: now, logger: logger}
	cw.open = cw.openFormat
	return cw
}

// Write stores books and returns the path of the capture file. For the dual
// format the CSV path is returned. No books means no file: the path is
// empty and the error nil.
func (cw *CaptureWriter) Write(books []*models.Book) (string, error) {
	if len(books) == 0 {
		cw.logger.Warn("no data to write to capture file", slog.String("dir", cw.dir))
		return "", nil
	}

	at := cw.now()
	writer, paths, err := cw.open(at)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			cw.logger.Error("capture file already exists, records not written",
				slog.String("dir", cw.dir),
				slog.Int("records", len(books)),
				slog.Any("error", err),
			)
		}
		return "", err
	}
	path := paths[0]

	if err := writer.Write(books); err != nil {
		writer.Close()
		cw.discard(paths)
		return "", fmt.Errorf("write capture: %w", err)
	}
	if err := writer.Validate(); err != nil {
		writer.Close()
		cw.discard(paths)
		return "", fmt.Errorf("validate capture: %w", err)
	}
	if err := writer.Close(); err != nil {
		cw.discard(paths)
		return "", fmt.Errorf("close capture: %w", err)
	}

	cw.logger.Info("data written",
		slog.String("path", path),
		slog.Int("records", len(books)),
		slog.String("format", cw.format),
	)
	return path, nil
}

// discard removes files of a capture that failed part way.
func (cw *CaptureWriter) discard(paths []string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			cw.logger.Warn("remove partial capture", slog.String("path", path), slog.Any("error", err))
		}
	}
}

func (cw *CaptureWriter) openFormat(at time.Time) (OutputWriter, []string, error) {
	csvPath := filepath.Join(cw.dir, CaptureName(at, ".csv"))
	jsonPath := filepath.Join(cw.dir, CaptureName(at, ".jsonl"))

	switch cw.format {
	case config.FormatCSV:
		w, err := NewCSVWriter(csvPath)
		return w, []string{csvPath}, err
	case config.FormatJSON:
		w, err := NewJSONWriter(jsonPath)
		return w, []string{jsonPath}, err
	case config.FormatDual:
		w, err := NewDualWriter(csvPath, jsonPath)
		return w, []string{csvPath, jsonPath}, err
	default:
		return nil, nil, fmt.Errorf("unsupported format: %s", cw.format)
	}
}
