// Package serializer turns span batches into wire bytes inside the
// exporter's reusable buffer.
package serializer

import (
	"fmt"

	"github.com/szibis/trace-governor/internal/payload"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"
)

// Serializer writes the wire encoding of a span batch into buf starting
// at offset and returns the new write position. Implementations grow the
// buffer through its doubling policy and must tolerate an empty batch,
// producing a minimal payload.
type Serializer interface {
	Write(buf *payload.Buffer, offset int, batch []*tracepb.ResourceSpans) (int, error)
}

// OTLP serializes batches as an OTLP ExportTraceServiceRequest.
type OTLP struct{}

// NewOTLP creates the OTLP protobuf serializer.
func NewOTLP() *OTLP { return &OTLP{} }

// Write appends the protobuf encoding of the batch at offset. The buffer
// is sized up front from proto.Size so it grows at most once per call.
func (s *OTLP) Write(buf *payload.Buffer, offset int, batch []*tracepb.ResourceSpans) (int, error) {
	req := &coltracepb.ExportTraceServiceRequest{ResourceSpans: batch}

	size := proto.Size(req)
	buf.Ensure(offset + size)

	out, err := proto.MarshalOptions{}.MarshalAppend(buf.Raw()[:offset:cap(buf.Raw())], req)
	if err != nil {
		return 0, fmt.Errorf("marshal trace request: %w", err)
	}
	buf.Adopt(out)
	return buf.Len(), nil
}
