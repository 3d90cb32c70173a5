// Package submitter delivers wire-ready payloads to the remote
// collector. It receives bytes, not spans: serialization and framing
// happen upstream in the exporter, and retry policy (if any) lives here,
// never in the export pipeline.
package submitter

import (
	"context"
	"errors"
	"net"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrRejected marks a collector-side rejection (non-OK status), as
// opposed to a transport fault. Both fail the export; logs and metrics
// distinguish them.
var ErrRejected = errors.New("submission rejected by collector")

// Submitter is the transmission handler consumed by the exporter.
type Submitter interface {
	// Submit delivers one payload. The payload is only valid for the
	// duration of the call; the exporter reuses its buffer afterwards.
	Submit(ctx context.Context, body []byte) error
	// Shutdown releases transport resources, bounded by ctx.
	Shutdown(ctx context.Context) error
}

// ErrorType is a low-cardinality category of submission error.
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeClientError ErrorType = "client_error"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeUnknown     ErrorType = "unknown"
)

var (
	submitRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trace_governor_submit_requests_total",
		Help: "Total number of payload submissions to the collector",
	}, []string{"transport"})

	submitBytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trace_governor_submit_bytes_total",
		Help: "Total payload bytes submitted to the collector",
	}, []string{"transport"})

	submitErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trace_governor_submit_errors_total",
		Help: "Total number of submission errors by transport and error type",
	}, []string{"transport", "error_type"})
)

func init() {
	prometheus.MustRegister(submitRequestsTotal)
	prometheus.MustRegister(submitBytesTotal)
	prometheus.MustRegister(submitErrorsTotal)
}

func recordSubmit(transport string, bytes int) {
	submitRequestsTotal.WithLabelValues(transport).Inc()
	submitBytesTotal.WithLabelValues(transport).Add(float64(bytes))
}

func recordError(transport string, errType ErrorType) {
	submitErrorsTotal.WithLabelValues(transport, string(errType)).Inc()
}

// classifyError maps a transport error to an ErrorType.
func classifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeNetwork
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorTypeNetwork
	}
	return ErrorTypeUnknown
}

// classifyHTTPStatus maps an HTTP status code to an ErrorType.
func classifyHTTPStatus(code int) ErrorType {
	switch {
	case code == 401 || code == 403:
		return ErrorTypeAuth
	case code == 429:
		return ErrorTypeRateLimit
	case code >= 400 && code < 500:
		return ErrorTypeClientError
	case code >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}
