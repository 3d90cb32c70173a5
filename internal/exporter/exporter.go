// Package exporter drives the per-batch export pipeline: gate check,
// serialization into the reusable buffer, transport framing, compressed
// cache persistence, and submission to the collector.
package exporter

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/szibis/trace-governor/internal/logging"
	"github.com/szibis/trace-governor/internal/payload"
	"github.com/szibis/trace-governor/internal/submitter"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

var (
	exportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trace_governor_exports_total",
		Help: "Total number of export calls by outcome",
	}, []string{"outcome"})

	exportPayloadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "trace_governor_export_payload_bytes",
		Help:    "Serialized payload size per export call",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})
)

func init() {
	prometheus.MustRegister(exportsTotal)
	prometheus.MustRegister(exportPayloadBytes)
}

// Outcome labels for exportsTotal.
const (
	outcomeSubmitted  = "submitted"
	outcomeSuppressed = "suppressed"
	outcomeFailed     = "failed"
)

// Gate is the export run/stop decision, refreshed in the background.
type Gate interface {
	Allowed() bool
}

// Serializer writes a batch's wire bytes into the buffer at offset and
// returns the new write position.
type Serializer interface {
	Write(buf *payload.Buffer, offset int, batch []*tracepb.ResourceSpans) (int, error)
}

// CacheWriter persists the compressed diagnostic copy of a payload.
type CacheWriter interface {
	Persist(body []byte, service string) (string, error)
}

// Exporter owns one serialization buffer and runs the export sequence
// for each batch. It is not safe for concurrent Export calls; the
// upstream batching layer serializes them.
type Exporter struct {
	gate       Gate
	buf        *payload.Buffer
	serializer Serializer
	cache      CacheWriter
	submitter  submitter.Submitter
	service    string
	framed     bool
}

// Config holds exporter construction parameters.
type Config struct {
	// Service is the active service name, used for cache file naming.
	Service string
	// Framed selects the length-delimited transport framing.
	Framed bool
}

// New creates an exporter. The buffer is allocated once here and reused
// for the exporter's lifetime.
func New(cfg Config, g Gate, s Serializer, c CacheWriter, sub submitter.Submitter) *Exporter {
	return &Exporter{
		gate:       g,
		buf:        payload.NewBuffer(cfg.Framed),
		serializer: s,
		cache:      c,
		submitter:  sub,
		service:    cfg.Service,
		framed:     cfg.Framed,
	}
}

// Export runs the pipeline for one batch. The gate is consulted exactly
// once, before any buffer work; a blocked gate suppresses the export and
// returns nil, because "suppressed by policy" is not a failure. All
// other failures are returned as a single error from this boundary.
func (e *Exporter) Export(ctx context.Context, batch []*tracepb.ResourceSpans) (err error) {
	if !e.gate.Allowed() {
		exportsTotal.WithLabelValues(outcomeSuppressed).Inc()
		logging.Debug("export suppressed by gate", logging.F("service", e.service))
		return nil
	}

	// The serializer and submitter are external collaborators; a panic
	// from either must not cross the export boundary.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("export panic: %v", r)
			e.fail(err)
		}
	}()

	e.buf.Reset()
	pos, err := e.serializer.Write(e.buf, e.buf.HeaderSize(), batch)
	if err != nil {
		e.fail(err)
		return fmt.Errorf("serialize batch: %w", err)
	}
	e.buf.SetLen(pos)

	if e.framed {
		if err := e.buf.PatchFrameHeader(); err != nil {
			e.fail(err)
			return fmt.Errorf("frame payload: %w", err)
		}
	}

	exportPayloadBytes.Observe(float64(len(e.buf.Body())))

	// The cache is a side channel: its failure is logged, never fatal
	// to the export.
	if path, cacheErr := e.cache.Persist(e.buf.Body(), e.service); cacheErr != nil {
		logging.Warn("cache write failed, continuing export", logging.F(
			"error", cacheErr.Error(),
			"service", e.service,
		))
	} else {
		logging.Debug("cache file written", logging.F("path", path))
	}

	if err := e.submitter.Submit(ctx, e.buf.Bytes()); err != nil {
		e.fail(err)
		if errors.Is(err, submitter.ErrRejected) {
			return fmt.Errorf("collector rejected payload: %w", err)
		}
		return fmt.Errorf("submit payload: %w", err)
	}

	exportsTotal.WithLabelValues(outcomeSubmitted).Inc()
	return nil
}

// fail records a failed export with the rejection/fault distinction.
func (e *Exporter) fail(err error) {
	exportsTotal.WithLabelValues(outcomeFailed).Inc()
	if errors.Is(err, submitter.ErrRejected) {
		logging.Error("export rejected by collector", logging.F(
			"error", err.Error(),
			"service", e.service,
		))
		return
	}
	logging.Error("export failed", logging.F(
		"error", err.Error(),
		"service", e.service,
	))
}

// Shutdown releases the submitter's transport resources.
func (e *Exporter) Shutdown(ctx context.Context) error {
	return e.submitter.Shutdown(ctx)
}
