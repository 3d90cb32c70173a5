package submitter

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/szibis/trace-governor/internal/auth"
	tlspkg "github.com/szibis/trace-governor/internal/tls"
	"golang.org/x/net/http2"
	"google.golang.org/grpc/codes"
)

// exportMethod is the unary method the framed payload is posted to.
const exportMethod = "/opentelemetry.proto.collector.trace.v1.TraceService/Export"

// GRPCConfig holds the framed gRPC submitter configuration.
type GRPCConfig struct {
	// Endpoint is the collector host:port.
	Endpoint string
	// Insecure uses plaintext HTTP/2 (h2c) instead of TLS.
	Insecure bool
	// Timeout is the per-submission timeout.
	Timeout time.Duration
	// TLS configuration for secure connections.
	TLS tlspkg.ClientConfig
	// Auth configuration for outgoing credentials.
	Auth auth.ClientConfig
}

// GRPCSubmitter posts pre-framed payloads to the collector's trace
// export method as raw gRPC unary calls over HTTP/2. The exporter's
// frame header (compression flag + big-endian length) IS the gRPC
// message frame, which is why it must be byte-exact; this submitter
// never re-frames or copies the payload.
type GRPCSubmitter struct {
	client  *http.Client
	url     string
	timeout time.Duration
}

// NewGRPC creates a framed gRPC submitter.
func NewGRPC(cfg GRPCConfig) (*GRPCSubmitter, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	if strings.Contains(endpoint, "://") {
		return nil, fmt.Errorf("grpc endpoint must be host:port, got %q", endpoint)
	}

	transport := &http2.Transport{}
	scheme := "https"
	if cfg.Insecure {
		scheme = "http"
		transport.AllowHTTP = true
		transport.DialTLSContext = func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		}
	} else if cfg.TLS.Enabled {
		tlsConfig, err := tlspkg.NewClientTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("create TLS config: %w", err)
		}
		tlsConfig.NextProtos = []string{"h2"}
		transport.TLSClientConfig = tlsConfig
	}

	var roundTripper http.RoundTripper = transport
	if cfg.Auth.Configured() {
		roundTripper = auth.HTTPTransport(cfg.Auth, roundTripper)
	}

	return &GRPCSubmitter{
		client:  &http.Client{Transport: roundTripper},
		url:     fmt.Sprintf("%s://%s%s", scheme, endpoint, exportMethod),
		timeout: cfg.Timeout,
	}, nil
}

// Submit posts one framed payload as a gRPC unary call.
func (s *GRPCSubmitter) Submit(ctx context.Context, frame []byte) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(frame))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/grpc+proto")
	req.Header.Set("TE", "trailers")
	if s.timeout > 0 {
		req.Header.Set("Grpc-Timeout", fmt.Sprintf("%dm", s.timeout.Milliseconds()))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		recordError("grpc", classifyError(err))
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	// The response message is discarded; trailers carry the verdict and
	// only become visible after the body is drained.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		recordError("grpc", classifyError(err))
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		recordError("grpc", classifyHTTPStatus(resp.StatusCode))
		return fmt.Errorf("http status %d: %w", resp.StatusCode, ErrRejected)
	}

	code, msg := grpcStatus(resp)
	if code != codes.OK {
		recordError("grpc", classifyGRPCCode(code))
		return fmt.Errorf("grpc status %s: %s: %w", code, msg, ErrRejected)
	}

	recordSubmit("grpc", len(frame))
	return nil
}

// Shutdown closes idle connections.
func (s *GRPCSubmitter) Shutdown(_ context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}

// grpcStatus extracts the gRPC status from trailers, falling back to
// headers for trailers-only responses. A missing status is treated as
// Internal: the collector did not complete the call.
func grpcStatus(resp *http.Response) (codes.Code, string) {
	raw := resp.Trailer.Get("Grpc-Status")
	msg := resp.Trailer.Get("Grpc-Message")
	if raw == "" {
		raw = resp.Header.Get("Grpc-Status")
		msg = resp.Header.Get("Grpc-Message")
	}
	if raw == "" {
		return codes.Internal, "missing grpc-status"
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return codes.Internal, "malformed grpc-status " + raw
	}
	return codes.Code(n), msg
}

// classifyGRPCCode maps a gRPC status code to an ErrorType.
func classifyGRPCCode(code codes.Code) ErrorType {
	switch code {
	case codes.DeadlineExceeded:
		return ErrorTypeTimeout
	case codes.Unavailable:
		return ErrorTypeNetwork
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrorTypeAuth
	case codes.ResourceExhausted:
		return ErrorTypeRateLimit
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return ErrorTypeClientError
	case codes.Internal, codes.Unknown, codes.DataLoss, codes.Aborted:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}
