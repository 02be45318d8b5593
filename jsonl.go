package xsearch

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
)

// RunWriter owns the per-run output directory: a timestamped folder under
// the output root holding data.jsonl and crawl.log. Every record is written
// and flushed immediately so an interrupted run keeps everything crawled so
// far.
type RunWriter struct {
	RunID    string
	RunDir   string
	DataPath string
	LogPath  string

	dataFile *os.File
	logFile  *os.File
	rows     int
}

// NewRunWriter creates the run directory and opens both output files.
func NewRunWriter(outputDir string) (*RunWriter, error) {
	runID := time.Now().Format("2006-01-02_150405")
	runDir := filepath.Join(outputDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	w := &RunWriter{
		RunID:    runID,
		RunDir:   runDir,
		DataPath: filepath.Join(runDir, "data.jsonl"),
		LogPath:  filepath.Join(runDir, "crawl.log"),
	}
	var err error
	if w.dataFile, err = os.Create(w.DataPath); err != nil {
		return nil, fmt.Errorf("create data file: %w", err)
	}
	if w.logFile, err = os.Create(w.LogPath); err != nil {
		w.dataFile.Close()
		return nil, fmt.Errorf("create log file: %w", err)
	}
	return w, nil
}

// Write appends one record as a JSONL line. Non-ASCII text stays literal.
func (w *RunWriter) Write(rec Record) error {
	line, err := json.MarshalWithOption(rec, json.DisableHTMLEscape())
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := w.dataFile.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	w.rows++
	return nil
}

// Rows returns how many records were written this run.
func (w *RunWriter) Rows() int { return w.rows }

// LogWriter tees runtime logs to stderr and the run's crawl.log.
func (w *RunWriter) LogWriter() io.Writer {
	return io.MultiWriter(os.Stderr, w.logFile)
}

// Logger builds the run logger over the tee writer.
func (w *RunWriter) Logger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w.LogWriter(), &slog.HandlerOptions{Level: level}))
}

// Close closes both output files.
func (w *RunWriter) Close() error {
	dataErr := w.dataFile.Close()
	logErr := w.logFile.Close()
	if dataErr != nil {
		return dataErr
	}
	return logErr
}
