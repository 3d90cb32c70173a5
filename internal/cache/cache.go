// Package cache persists a compressed copy of each exported payload for
// operational forensics. Cache files are never read back by the agent.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/szibis/trace-governor/internal/compression"
)

var (
	cacheWritesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trace_governor_cache_writes_total",
		Help: "Total number of cache files written",
	})

	cacheWriteErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trace_governor_cache_write_errors_total",
		Help: "Total number of cache write failures",
	})

	cacheBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trace_governor_cache_bytes_total",
		Help: "Total compressed bytes written to the cache",
	})
)

func init() {
	prometheus.MustRegister(cacheWritesTotal)
	prometheus.MustRegister(cacheWriteErrorsTotal)
	prometheus.MustRegister(cacheBytesTotal)

	cacheWritesTotal.Add(0)
	cacheWriteErrorsTotal.Add(0)
	cacheBytesTotal.Add(0)
}

// Writer compresses payloads and writes them under a fixed directory.
type Writer struct {
	dir   string
	codec *compression.Codec
	now   func() time.Time
}

// NewWriter creates a cache writer, creating the directory if needed.
func NewWriter(dir string, codec *compression.Codec) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Writer{dir: dir, codec: codec, now: time.Now}, nil
}

// Dir returns the cache directory.
func (w *Writer) Dir() string { return w.dir }

// Persist compresses body and writes it to
// <dir>/trace-<service>-<epochMillis>.cache, returning the file path.
// Two exports in the same millisecond for one service overwrite each
// other; the cache is a diagnostic record, not a durability guarantee.
func (w *Writer) Persist(body []byte, service string) (string, error) {
	block, err := w.codec.Encode(body)
	if err != nil {
		cacheWriteErrorsTotal.Inc()
		return "", fmt.Errorf("compress cache block: %w", err)
	}

	name := fmt.Sprintf("trace-%s-%d.cache", service, w.now().UnixMilli())
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, block, 0o644); err != nil {
		cacheWriteErrorsTotal.Inc()
		return "", fmt.Errorf("write cache file: %w", err)
	}

	cacheWritesTotal.Inc()
	cacheBytesTotal.Add(float64(len(block)))
	return path, nil
}
