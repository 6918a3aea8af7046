package recorder

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tyeth/digital-dial-gauge-web-serial/internal/gauge"
)

// Recorder persists the engine's export log to timestamped CSV files with
// automatic rotation. The in-memory export log stays authoritative; this is
// a write-behind sink fed by the host.
type Recorder struct {
	mu      sync.Mutex
	dir     string
	enabled bool

	file    *os.File
	writer  *csv.Writer
	rows    int
	written int // records already flushed from the export log
}

// Config holds recorder configuration.
type Config struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

const (
	maxRowsPerFile = 100_000 // Rotate after 100k rows
)

var csvHeader = []string{
	"timestamp", "value", "unit", "raw_hex", "method", "accepted",
}

// New creates a new Recorder.
func New(cfg Config) *Recorder {
	if cfg.Path == "" {
		cfg.Path = "/var/log/gaugedash"
	}
	return &Recorder{
		dir:     cfg.Path,
		enabled: cfg.Enabled,
	}
}

// SetEnabled allows toggling recording at runtime.
func (r *Recorder) SetEnabled(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = on
	if !on && r.file != nil {
		r.closeFile()
	}
}

// IsEnabled returns whether recording is active.
func (r *Recorder) IsEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Sync appends any export-log records not yet written to disk. Safe to call
// with the full log on every tick; already-written records are skipped.
func (r *Recorder) Sync(records []gauge.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled || r.written >= len(records) {
		return
	}

	for _, rec := range records[r.written:] {
		if r.writer == nil || r.rows >= maxRowsPerFile {
			if err := r.rotateFile(time.Now()); err != nil {
				log.Printf("[recorder] rotate failed: %v", err)
				return
			}
		}
		if err := r.writer.Write(buildRow(rec)); err != nil {
			log.Printf("[recorder] write failed: %v", err)
			return
		}
		r.rows++
		r.written++
	}
	r.writer.Flush()
}

// Close flushes and closes the current file.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeFile()
}

func (r *Recorder) rotateFile(now time.Time) error {
	r.closeFile()

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", r.dir, err)
	}

	filename := fmt.Sprintf("gauge_%s.csv", now.Format("2006-01-02_150405"))
	path := filepath.Join(r.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	r.file = f
	r.writer = csv.NewWriter(f)
	r.rows = 0

	if err := r.writer.Write(csvHeader); err != nil {
		return err
	}
	r.writer.Flush()

	log.Printf("[recorder] opened %s", path)
	return nil
}

func (r *Recorder) closeFile() {
	if r.writer != nil {
		r.writer.Flush()
		r.writer = nil
	}
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
}

func buildRow(rec gauge.Record) []string {
	return []string{
		rec.Timestamp.Format(time.RFC3339Nano),
		fmt.Sprintf("%.3f", rec.Value),
		rec.Unit,
		rec.RawHex,
		rec.Method,
		boolStr(rec.Accepted),
	}
}

func boolStr(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
