// Package batch collects incoming spans and flushes them to the
// exporter on an interval, on a size threshold, or on shutdown.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/szibis/trace-governor/internal/logging"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

var (
	batchSpansPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trace_governor_batch_spans_pending",
		Help: "Number of resource spans currently buffered",
	})

	batchFlushesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trace_governor_batch_flushes_total",
		Help: "Total number of batch flushes by trigger",
	}, []string{"trigger"})

	batchFlushErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trace_governor_batch_flush_errors_total",
		Help: "Total number of batch flushes that failed to export",
	})
)

func init() {
	prometheus.MustRegister(batchSpansPending)
	prometheus.MustRegister(batchFlushesTotal)
	prometheus.MustRegister(batchFlushErrorsTotal)

	batchSpansPending.Set(0)
	batchFlushErrorsTotal.Add(0)
}

// Flush triggers for batchFlushesTotal.
const (
	triggerInterval = "interval"
	triggerSize     = "size"
	triggerShutdown = "shutdown"
)

// Exporter runs the export pipeline for one batch.
type Exporter interface {
	Export(ctx context.Context, batch []*tracepb.ResourceSpans) error
}

// Buffer accumulates resource spans and flushes them to the exporter.
// Flushes are strictly serial: the exporter reuses one serialization
// buffer, so at most one export runs at a time.
type Buffer struct {
	mu            sync.Mutex
	spans         []*tracepb.ResourceSpans
	maxSize       int
	maxBatchSize  int
	flushInterval time.Duration
	exporter      Exporter
	flushChan     chan struct{}
	doneChan      chan struct{}
}

// New creates a batching buffer. maxSize is the pending-span threshold
// that triggers an early flush; maxBatchSize caps the spans handed to
// the exporter per call.
func New(maxSize, maxBatchSize int, flushInterval time.Duration, exp Exporter) *Buffer {
	return &Buffer{
		spans:         make([]*tracepb.ResourceSpans, 0, maxSize),
		maxSize:       maxSize,
		maxBatchSize:  maxBatchSize,
		flushInterval: flushInterval,
		exporter:      exp,
		flushChan:     make(chan struct{}, 1),
		doneChan:      make(chan struct{}),
	}
}

// Add appends resource spans to the buffer, triggering an early flush
// when the size threshold is reached.
func (b *Buffer) Add(resourceSpans []*tracepb.ResourceSpans) {
	if len(resourceSpans) == 0 {
		return
	}

	b.mu.Lock()
	b.spans = append(b.spans, resourceSpans...)
	pending := len(b.spans)
	b.mu.Unlock()

	batchSpansPending.Set(float64(pending))

	if pending >= b.maxSize {
		select {
		case b.flushChan <- struct{}{}:
		default:
		}
	}
}

// Start runs the background flush loop until ctx is cancelled, then
// performs a final drain and signals Wait.
func (b *Buffer) Start(ctx context.Context) {
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.flush(context.Background(), triggerShutdown)
			close(b.doneChan)
			return
		case <-ticker.C:
			b.flush(ctx, triggerInterval)
		case <-b.flushChan:
			b.flush(ctx, triggerSize)
		}
	}
}

// Wait blocks until the flush loop has drained and exited.
func (b *Buffer) Wait() {
	<-b.doneChan
}

// flush takes the pending spans and exports them in maxBatchSize chunks.
func (b *Buffer) flush(ctx context.Context, trigger string) {
	b.mu.Lock()
	if len(b.spans) == 0 {
		b.mu.Unlock()
		return
	}
	toSend := b.spans
	b.spans = make([]*tracepb.ResourceSpans, 0, b.maxSize)
	b.mu.Unlock()

	batchSpansPending.Set(0)
	batchFlushesTotal.WithLabelValues(trigger).Inc()

	for i := 0; i < len(toSend); i += b.maxBatchSize {
		end := i + b.maxBatchSize
		if end > len(toSend) {
			end = len(toSend)
		}
		if err := b.exporter.Export(ctx, toSend[i:end]); err != nil {
			batchFlushErrorsTotal.Inc()
			logging.Error("batch export failed", logging.F(
				"error", err.Error(),
				"batch_size", end-i,
			))
		}
	}
}
