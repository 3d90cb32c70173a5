package submitter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSubmit(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewHTTP(HTTPConfig{Endpoint: srv.URL, Insecure: true, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	defer s.Shutdown(context.Background())

	body := []byte("bare-protobuf-payload")
	if err := s.Submit(context.Background(), body); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if gotContentType != "application/x-protobuf" {
		t.Errorf("content type = %q", gotContentType)
	}
	if string(gotBody) != string(body) {
		t.Errorf("body mismatch: %q", gotBody)
	}
}

func TestHTTPSubmitRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "try later", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, err := NewHTTP(HTTPConfig{Endpoint: srv.URL, Insecure: true, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	defer s.Shutdown(context.Background())

	err = s.Submit(context.Background(), []byte("payload"))
	if err == nil {
		t.Fatalf("expected error for 429")
	}
	if !errors.Is(err, ErrRejected) {
		t.Errorf("rejection must wrap ErrRejected, got %v", err)
	}
}

func TestHTTPSubmitTransportError(t *testing.T) {
	// Reserve a port, then close the listener so the submission fails.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	s, err := NewHTTP(HTTPConfig{Endpoint: endpoint, Insecure: true, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}

	err = s.Submit(context.Background(), []byte("payload"))
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if errors.Is(err, ErrRejected) {
		t.Errorf("transport error must not be a rejection: %v", err)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	cases := []struct {
		endpoint string
		insecure bool
		want     string
	}{
		{"collector:4318", true, "http://collector:4318/v1/traces"},
		{"collector:4318", false, "https://collector:4318/v1/traces"},
		{"http://collector:4318/custom", true, "http://collector:4318/custom"},
		{"", true, "http://localhost:4318/v1/traces"},
	}
	for _, tc := range cases {
		got, err := normalizeEndpoint(tc.endpoint, tc.insecure)
		if err != nil {
			t.Errorf("normalizeEndpoint(%q): %v", tc.endpoint, err)
			continue
		}
		if got != tc.want {
			t.Errorf("normalizeEndpoint(%q) = %q, want %q", tc.endpoint, got, tc.want)
		}
	}
}
