package submitter

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/szibis/trace-governor/internal/auth"
	tlspkg "github.com/szibis/trace-governor/internal/tls"
	"golang.org/x/net/http2"
)

const defaultTracesPath = "/v1/traces"

// HTTPConfig holds the bare (non-framed) HTTP submitter configuration.
type HTTPConfig struct {
	// Endpoint is the collector URL or host:port.
	Endpoint string
	// Insecure disables TLS.
	Insecure bool
	// Timeout is the per-submission timeout.
	Timeout time.Duration
	// TLS configuration for secure connections.
	TLS tlspkg.ClientConfig
	// Auth configuration for outgoing credentials.
	Auth auth.ClientConfig
}

// HTTPSubmitter posts bare protobuf payloads to the collector's
// /v1/traces endpoint. The payload crosses the wire uncompressed; the
// compressed copy exists only in the local cache.
type HTTPSubmitter struct {
	client   *http.Client
	endpoint string
	timeout  time.Duration
}

// NewHTTP creates an HTTP submitter.
func NewHTTP(cfg HTTPConfig) (*HTTPSubmitter, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if !cfg.Insecure {
		if cfg.TLS.Enabled {
			tlsConfig, err := tlspkg.NewClientTLSConfig(cfg.TLS)
			if err != nil {
				return nil, fmt.Errorf("create TLS config: %w", err)
			}
			transport.TLSClientConfig = tlsConfig
		} else {
			transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		if _, err := http2.ConfigureTransports(transport); err != nil {
			return nil, fmt.Errorf("configure http2: %w", err)
		}
	}

	var roundTripper http.RoundTripper = transport
	if cfg.Auth.Configured() {
		roundTripper = auth.HTTPTransport(cfg.Auth, roundTripper)
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.Insecure)
	if err != nil {
		return nil, err
	}

	return &HTTPSubmitter{
		client:   &http.Client{Transport: roundTripper, Timeout: cfg.Timeout},
		endpoint: endpoint,
		timeout:  cfg.Timeout,
	}, nil
}

// Submit posts the payload to the collector.
func (s *HTTPSubmitter) Submit(ctx context.Context, body []byte) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-protobuf")

	resp, err := s.client.Do(req)
	if err != nil {
		recordError("http", classifyError(err))
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection is reusable.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		recordError("http", classifyHTTPStatus(resp.StatusCode))
		return fmt.Errorf("status code %d: %w", resp.StatusCode, ErrRejected)
	}

	recordSubmit("http", len(body))
	return nil
}

// Shutdown closes idle connections.
func (s *HTTPSubmitter) Shutdown(_ context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}

// normalizeEndpoint fills in the scheme and default path when the
// configured endpoint is a bare host:port.
func normalizeEndpoint(endpoint string, insecure bool) (string, error) {
	if endpoint == "" {
		endpoint = "localhost:4318"
	}
	if !strings.Contains(endpoint, "://") {
		scheme := "https"
		if insecure {
			scheme = "http"
		}
		endpoint = scheme + "://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = defaultTracesPath
	}
	return u.String(), nil
}
