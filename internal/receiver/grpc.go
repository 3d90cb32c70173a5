// Package receiver implements the OTLP trace intake servers that feed
// the batching buffer.
package receiver

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/szibis/trace-governor/internal/auth"
	"github.com/szibis/trace-governor/internal/logging"
	tlspkg "github.com/szibis/trace-governor/internal/tls"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/encoding"
	_ "google.golang.org/grpc/encoding/gzip" // Register gzip compressor
	"google.golang.org/protobuf/proto"
)

func init() {
	// Register zstd compressor for gRPC
	encoding.RegisterCompressor(&zstdCompressor{})
}

// zstdCompressor implements grpc encoding.Compressor for zstd.
type zstdCompressor struct{}

func (c *zstdCompressor) Name() string {
	return "zstd"
}

func (c *zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	encoder := zstdWriterPool.Get().(*zstd.Encoder)
	encoder.Reset(w)
	return &pooledZstdWriter{Encoder: encoder}, nil
}

func (c *zstdCompressor) Decompress(r io.Reader) (io.Reader, error) {
	decoder := zstdReaderPool.Get().(*zstd.Decoder)
	if err := decoder.Reset(r); err != nil {
		return nil, err
	}
	return &pooledZstdReader{Decoder: decoder}, nil
}

// zstd encoder/decoder pools for performance
var zstdWriterPool = &sync.Pool{
	New: func() interface{} {
		w, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		return w
	},
}

var zstdReaderPool = &sync.Pool{
	New: func() interface{} {
		r, _ := zstd.NewReader(nil)
		return r
	},
}

type pooledZstdWriter struct {
	*zstd.Encoder
}

func (p *pooledZstdWriter) Close() error {
	err := p.Encoder.Close()
	p.Encoder.Reset(nil)
	zstdWriterPool.Put(p.Encoder)
	return err
}

type pooledZstdReader struct {
	*zstd.Decoder
}

func (p *pooledZstdReader) Read(b []byte) (int, error) {
	n, err := p.Decoder.Read(b)
	if err == io.EOF {
		_ = p.Decoder.Reset(nil)
		zstdReaderPool.Put(p.Decoder)
	}
	return n, err
}

// SpanSink accepts decoded resource spans from a receiver.
type SpanSink interface {
	Add(resourceSpans []*tracepb.ResourceSpans)
}

// GRPCConfig holds the gRPC receiver configuration.
type GRPCConfig struct {
	// Addr is the listen address.
	Addr string
	// TLS configuration for secure connections.
	TLS tlspkg.ServerConfig
	// Auth configuration for authentication.
	Auth auth.ServerConfig
}

// GRPCReceiver receives traces via OTLP gRPC.
type GRPCReceiver struct {
	coltracepb.UnimplementedTraceServiceServer
	server *grpc.Server
	sink   SpanSink
	addr   string
}

// NewGRPC creates a new gRPC receiver with default configuration.
func NewGRPC(addr string, sink SpanSink) *GRPCReceiver {
	return NewGRPCWithConfig(GRPCConfig{Addr: addr}, sink)
}

// NewGRPCWithConfig creates a new gRPC receiver with the given configuration.
func NewGRPCWithConfig(cfg GRPCConfig, sink SpanSink) *GRPCReceiver {
	var opts []grpc.ServerOption

	// Configure max message size (64MB to handle large batches)
	maxMsgSize := 64 * 1024 * 1024 // 64MB
	opts = append(opts,
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)

	if cfg.TLS.Enabled {
		tlsConfig, err := tlspkg.NewServerTLSConfig(cfg.TLS)
		if err != nil {
			logging.Error("failed to create TLS config", logging.F("error", err.Error()))
		} else {
			opts = append(opts, grpc.Creds(credentials.NewTLS(tlsConfig)))
		}
	}

	if cfg.Auth.Enabled {
		opts = append(opts, grpc.UnaryInterceptor(auth.GRPCServerInterceptor(cfg.Auth)))
	}

	return &GRPCReceiver{
		server: grpc.NewServer(opts...),
		sink:   sink,
		addr:   cfg.Addr,
	}
}

// Export implements the OTLP TraceService Export method.
func (r *GRPCReceiver) Export(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	receiverRequestsTotal.WithLabelValues("grpc").Inc()
	receiverBytesTotal.WithLabelValues("grpc").Add(float64(proto.Size(req)))
	receiverSpansTotal.Add(float64(countSpans(req.ResourceSpans)))

	r.sink.Add(req.ResourceSpans)
	return &coltracepb.ExportTraceServiceResponse{}, nil
}

// Start starts the gRPC server.
func (r *GRPCReceiver) Start() error {
	lis, err := net.Listen("tcp", r.addr)
	if err != nil {
		return err
	}

	coltracepb.RegisterTraceServiceServer(r.server, r)

	logging.Info("gRPC receiver started", logging.F("addr", r.addr))
	return r.server.Serve(lis)
}

// Stop gracefully stops the gRPC server.
func (r *GRPCReceiver) Stop() {
	r.server.GracefulStop()
}
