// Package compression provides the block codec used for cache artifacts.
package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type represents a compression algorithm.
type Type string

const (
	// TypeNone means no compression.
	TypeNone Type = "none"
	// TypeGzip uses gzip compression.
	TypeGzip Type = "gzip"
	// TypeZstd uses zstd compression.
	TypeZstd Type = "zstd"
	// TypeSnappy uses snappy block compression.
	TypeSnappy Type = "snappy"
	// TypeLZ4 uses lz4 frame compression.
	TypeLZ4 Type = "lz4"
)

// ParseType parses a compression type string.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TypeNone, nil
	case "gzip":
		return TypeGzip, nil
	case "zstd":
		return TypeZstd, nil
	case "snappy":
		return TypeSnappy, nil
	case "lz4":
		return TypeLZ4, nil
	default:
		return TypeNone, fmt.Errorf("unsupported compression type: %s", s)
	}
}

// ContentEncoding returns the HTTP Content-Encoding value for the type.
func (t Type) ContentEncoding() string {
	switch t {
	case TypeGzip, TypeZstd, TypeSnappy, TypeLZ4:
		return string(t)
	default:
		return ""
	}
}

// Config holds codec configuration.
type Config struct {
	// Type is the compression algorithm to use.
	Type Type
	// Level is the algorithm-specific compression level (0 = default).
	Level int
}

// Codec compresses and decompresses byte blocks. Encoders that benefit
// from reuse (zstd) are created once at construction and shared; EncodeAll
// and DecodeAll are safe for concurrent use.
type Codec struct {
	typ   Type
	level int

	zenc *zstd.Encoder
	zdec *zstd.Decoder
}

// New creates a codec for the given configuration.
func New(cfg Config) (*Codec, error) {
	c := &Codec{typ: cfg.Type, level: cfg.Level}
	if cfg.Type == "" {
		c.typ = TypeNone
	}

	if c.typ == TypeZstd {
		level := zstd.SpeedDefault
		if cfg.Level != 0 {
			level = zstd.EncoderLevelFromZstd(cfg.Level)
		}
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		c.zenc = enc
		c.zdec = dec
	}

	return c, nil
}

// Type returns the configured compression type.
func (c *Codec) Type() Type { return c.typ }

// Encode compresses src into a new block.
func (c *Codec) Encode(src []byte) ([]byte, error) {
	switch c.typ {
	case TypeNone:
		out := make([]byte, len(src))
		copy(out, src)
		return out, nil
	case TypeGzip:
		return c.encodeGzip(src)
	case TypeZstd:
		return c.zenc.EncodeAll(src, make([]byte, 0, len(src)/2)), nil
	case TypeSnappy:
		return snappy.Encode(nil, src), nil
	case TypeLZ4:
		return c.encodeLZ4(src)
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", c.typ)
	}
}

// Decode decompresses a block produced by Encode.
func (c *Codec) Decode(src []byte) ([]byte, error) {
	switch c.typ {
	case TypeNone:
		return src, nil
	case TypeGzip:
		gr, err := gzip.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		defer gr.Close()
		return io.ReadAll(gr)
	case TypeZstd:
		return c.zdec.DecodeAll(src, nil)
	case TypeSnappy:
		return snappy.Decode(nil, src)
	case TypeLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(src)))
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", c.typ)
	}
}

// ContentEncoding returns the HTTP Content-Encoding value for the codec.
func (c *Codec) ContentEncoding() string {
	return c.typ.ContentEncoding()
}

func (c *Codec) encodeGzip(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	level := gzip.DefaultCompression
	if c.level != 0 {
		level = c.level
	}
	gw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("create gzip writer: %w", err)
	}
	if _, err := gw.Write(src); err != nil {
		return nil, fmt.Errorf("write gzip data: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Codec) encodeLZ4(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	lw := lz4.NewWriter(&buf)
	if c.level != 0 {
		if err := lw.Apply(lz4.CompressionLevelOption(lz4.CompressionLevel(c.level))); err != nil {
			return nil, fmt.Errorf("apply lz4 level: %w", err)
		}
	}
	if _, err := lw.Write(src); err != nil {
		return nil, fmt.Errorf("write lz4 data: %w", err)
	}
	if err := lw.Close(); err != nil {
		return nil, fmt.Errorf("close lz4 writer: %w", err)
	}
	return buf.Bytes(), nil
}
