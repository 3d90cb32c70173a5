package receiver

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"

	"github.com/szibis/trace-governor/internal/auth"
	"github.com/szibis/trace-governor/internal/logging"
	tlspkg "github.com/szibis/trace-governor/internal/tls"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/protobuf/proto"
)

// HTTPConfig holds the HTTP receiver configuration.
type HTTPConfig struct {
	// Addr is the listen address.
	Addr string
	// TLS configuration for secure connections.
	TLS tlspkg.ServerConfig
	// Auth configuration for authentication.
	Auth auth.ServerConfig
}

// HTTPReceiver receives traces via OTLP HTTP.
type HTTPReceiver struct {
	server *http.Server
	sink   SpanSink
	addr   string
	tls    tlspkg.ServerConfig
}

// NewHTTP creates a new HTTP receiver with default configuration.
func NewHTTP(addr string, sink SpanSink) *HTTPReceiver {
	return NewHTTPWithConfig(HTTPConfig{Addr: addr}, sink)
}

// NewHTTPWithConfig creates a new HTTP receiver with the given configuration.
func NewHTTPWithConfig(cfg HTTPConfig, sink SpanSink) *HTTPReceiver {
	r := &HTTPReceiver{
		sink: sink,
		addr: cfg.Addr,
		tls:  cfg.TLS,
	}

	mux := http.NewServeMux()
	var handler http.Handler = http.HandlerFunc(r.handleTraces)
	if cfg.Auth.Enabled {
		handler = auth.HTTPMiddleware(cfg.Auth, handler)
	}
	mux.Handle("/v1/traces", handler)

	r.server = &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	if cfg.TLS.Enabled {
		tlsConfig, err := tlspkg.NewServerTLSConfig(cfg.TLS)
		if err != nil {
			logging.Error("failed to create TLS config", logging.F("error", err.Error()))
		} else {
			r.server.TLSConfig = tlsConfig
		}
	}

	return r
}

// handleTraces handles incoming OTLP HTTP trace requests.
func (r *HTTPReceiver) handleTraces(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer req.Body.Close()

	reader, err := decodeBody(req)
	if err != nil {
		receiverErrorsTotal.WithLabelValues("decompress").Inc()
		http.Error(w, "Failed to decode body", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		receiverErrorsTotal.WithLabelValues("read").Inc()
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	if ct := req.Header.Get("Content-Type"); ct != "application/x-protobuf" {
		http.Error(w, "Unsupported content type", http.StatusUnsupportedMediaType)
		return
	}

	var exportReq coltracepb.ExportTraceServiceRequest
	if err := proto.Unmarshal(body, &exportReq); err != nil {
		receiverErrorsTotal.WithLabelValues("decode").Inc()
		http.Error(w, "Failed to unmarshal protobuf", http.StatusBadRequest)
		return
	}

	receiverRequestsTotal.WithLabelValues("http").Inc()
	receiverBytesTotal.WithLabelValues("http").Add(float64(len(body)))
	receiverSpansTotal.Add(float64(countSpans(exportReq.ResourceSpans)))

	r.sink.Add(exportReq.ResourceSpans)

	respBytes, err := proto.Marshal(&coltracepb.ExportTraceServiceResponse{})
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(http.StatusOK)
	w.Write(respBytes)
}

// decodeBody wraps the request body with the decoder selected by the
// Content-Encoding header.
func decodeBody(req *http.Request) (io.Reader, error) {
	switch req.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(req.Body)
	case "zstd":
		return (&zstdCompressor{}).Decompress(req.Body)
	default:
		return req.Body, nil
	}
}

// Start starts the HTTP server.
func (r *HTTPReceiver) Start() error {
	logging.Info("HTTP receiver started", logging.F("addr", r.addr))
	if r.tls.Enabled && r.server.TLSConfig != nil {
		return r.server.ListenAndServeTLS("", "")
	}
	return r.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server.
func (r *HTTPReceiver) Stop(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}
