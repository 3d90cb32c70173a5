package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/szibis/trace-governor/internal/compression"
)

func newTestWriter(t *testing.T) (*Writer, *compression.Codec) {
	t.Helper()
	codec, err := compression.New(compression.Config{Type: compression.TypeZstd})
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	w, err := NewWriter(t.TempDir(), codec)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return w, codec
}

func TestPersistRoundTrip(t *testing.T) {
	w, codec := newTestWriter(t)
	body := bytes.Repeat([]byte("serialized-span"), 100)

	path, err := w.Persist(body, "checkout-api")
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	base := filepath.Base(path)
	if !strings.HasPrefix(base, "trace-checkout-api-") || !strings.HasSuffix(base, ".cache") {
		t.Errorf("unexpected cache file name %q", base)
	}

	block, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	decoded, err := codec.Decode(block)
	if err != nil {
		t.Fatalf("decode cache block: %v", err)
	}
	if !bytes.Equal(decoded, body) {
		t.Errorf("cache block does not decompress to the original payload")
	}
}

func TestPersistDistinctTimestamps(t *testing.T) {
	w, _ := newTestWriter(t)

	ts := time.UnixMilli(1_700_000_000_000)
	w.now = func() time.Time { return ts }
	first, err := w.Persist([]byte("one"), "checkout-api")
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	w.now = func() time.Time { return ts.Add(time.Millisecond) }
	second, err := w.Persist([]byte("two"), "checkout-api")
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	if first == second {
		t.Fatalf("distinct milliseconds must produce distinct files")
	}
}

func TestPersistSameMillisecondOverwrites(t *testing.T) {
	// Last write wins within one millisecond; documented cache
	// limitation, asserted here on purpose.
	w, codec := newTestWriter(t)

	ts := time.UnixMilli(1_700_000_000_000)
	w.now = func() time.Time { return ts }

	if _, err := w.Persist([]byte("first"), "checkout-api"); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	path, err := w.Persist([]byte("second"), "checkout-api")
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	entries, err := os.ReadDir(w.Dir())
	if err != nil {
		t.Fatalf("read cache dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 cache file, found %d", len(entries))
	}

	block, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	decoded, err := codec.Decode(block)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != "second" {
		t.Errorf("expected last write to win, got %q", decoded)
	}
}

func TestPersistUnwritableDir(t *testing.T) {
	codec, err := compression.New(compression.Config{Type: compression.TypeNone})
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	dir := t.TempDir()
	w, err := NewWriter(dir, codec)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	defer os.Chmod(dir, 0o755)

	if _, err := w.Persist([]byte("payload"), "svc"); err == nil {
		t.Errorf("expected error writing to read-only dir")
	}
}
