// Package auth adds and validates bearer/basic credentials on the trace
// receivers and the collector submitter.
package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ServerConfig holds authentication settings for the receivers.
type ServerConfig struct {
	// Enabled enables authentication for the server.
	Enabled bool
	// BearerToken is the expected bearer token.
	BearerToken string
	// BasicAuthUsername is the expected basic auth username.
	BasicAuthUsername string
	// BasicAuthPassword is the expected basic auth password.
	BasicAuthPassword string
}

// ClientConfig holds authentication settings for the submitter.
type ClientConfig struct {
	// BearerToken is the bearer token sent with every submission.
	BearerToken string
	// BasicAuthUsername is the basic auth username.
	BasicAuthUsername string
	// BasicAuthPassword is the basic auth password.
	BasicAuthPassword string
	// Headers is a map of custom headers sent with every submission.
	Headers map[string]string
}

// Configured reports whether any client credential is set.
func (c ClientConfig) Configured() bool {
	return c.BearerToken != "" || c.BasicAuthUsername != "" || len(c.Headers) > 0
}

// validate checks an Authorization header value against the server config.
func validate(header string, cfg ServerConfig) error {
	if cfg.BearerToken != "" {
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			return fmt.Errorf("invalid authorization header format")
		}
		if token != cfg.BearerToken {
			return fmt.Errorf("invalid bearer token")
		}
		return nil
	}

	if cfg.BasicAuthUsername != "" && cfg.BasicAuthPassword != "" {
		expected := "Basic " + basicAuthEncoded(cfg.BasicAuthUsername, cfg.BasicAuthPassword)
		if header != expected {
			return fmt.Errorf("invalid basic auth credentials")
		}
	}
	return nil
}

// GRPCServerInterceptor returns a unary interceptor that authenticates
// incoming trace exports.
func GRPCServerInterceptor(cfg ServerConfig) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !cfg.Enabled {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		header := md.Get("authorization")
		if len(header) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}
		if err := validate(header[0], cfg); err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(ctx, req)
	}
}

// HTTPMiddleware returns middleware that authenticates incoming trace
// exports on the HTTP receiver.
func HTTPMiddleware(cfg ServerConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}
		if err := validate(header, cfg); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HTTPTransport returns a round tripper that adds client credentials to
// every outgoing request.
func HTTPTransport(cfg ClientConfig, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &authTransport{base: base, cfg: cfg}
}

type authTransport struct {
	base http.RoundTripper
	cfg  ClientConfig
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone so the caller's request is not mutated.
	clone := req.Clone(req.Context())

	if t.cfg.BearerToken != "" {
		clone.Header.Set("Authorization", "Bearer "+t.cfg.BearerToken)
	}
	if t.cfg.BasicAuthUsername != "" && t.cfg.BasicAuthPassword != "" {
		clone.SetBasicAuth(t.cfg.BasicAuthUsername, t.cfg.BasicAuthPassword)
	}
	for k, v := range t.cfg.Headers {
		clone.Header.Set(k, v)
	}

	return t.base.RoundTrip(clone)
}

// basicAuthEncoded returns the base64 encoded basic auth credentials.
func basicAuthEncoded(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
