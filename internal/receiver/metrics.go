package receiver

import (
	"github.com/prometheus/client_golang/prometheus"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

var (
	receiverErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trace_governor_receiver_errors_total",
		Help: "Total number of receiver errors",
	}, []string{"type"})

	receiverRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trace_governor_receiver_requests_total",
		Help: "Total number of requests received",
	}, []string{"protocol"})

	receiverSpansTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trace_governor_receiver_spans_total",
		Help: "Total number of spans received",
	})

	receiverBytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trace_governor_receiver_bytes_total",
		Help: "Total number of payload bytes received",
	}, []string{"protocol"})
)

func init() {
	prometheus.MustRegister(receiverErrorsTotal)
	prometheus.MustRegister(receiverRequestsTotal)
	prometheus.MustRegister(receiverSpansTotal)
	prometheus.MustRegister(receiverBytesTotal)

	// Initialize counters with 0 so they appear in /metrics immediately
	receiverErrorsTotal.WithLabelValues("decode").Add(0)
	receiverErrorsTotal.WithLabelValues("decompress").Add(0)
	receiverErrorsTotal.WithLabelValues("read").Add(0)
	receiverRequestsTotal.WithLabelValues("grpc").Add(0)
	receiverRequestsTotal.WithLabelValues("http").Add(0)
	receiverSpansTotal.Add(0)
	receiverBytesTotal.WithLabelValues("grpc").Add(0)
	receiverBytesTotal.WithLabelValues("http").Add(0)
}

// countSpans counts the spans across a slice of resource spans.
func countSpans(resourceSpans []*tracepb.ResourceSpans) int {
	count := 0
	for _, rs := range resourceSpans {
		for _, ss := range rs.GetScopeSpans() {
			count += len(ss.GetSpans())
		}
	}
	return count
}
