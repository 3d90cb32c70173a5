package serializer

import (
	"testing"

	"github.com/szibis/trace-governor/internal/payload"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"
)

func testBatch(spanName string) []*tracepb.ResourceSpans {
	return []*tracepb.ResourceSpans{
		{
			Resource: &resourcepb.Resource{
				Attributes: []*commonpb.KeyValue{
					{
						Key:   "service.name",
						Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: "checkout-api"}},
					},
				},
			},
			ScopeSpans: []*tracepb.ScopeSpans{
				{
					Spans: []*tracepb.Span{
						{
							Name:    spanName,
							TraceId: []byte("0123456789abcdef"),
							SpanId:  []byte("01234567"),
						},
					},
				},
			},
		},
	}
}

func TestWriteRoundTrip(t *testing.T) {
	buf := payload.NewBuffer(true)
	s := NewOTLP()

	pos, err := s.Write(buf, buf.HeaderSize(), testBatch("GET /checkout"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if pos <= buf.HeaderSize() {
		t.Fatalf("position %d not past header", pos)
	}
	if pos != buf.Len() {
		t.Fatalf("returned position %d != buffer position %d", pos, buf.Len())
	}

	var req coltracepb.ExportTraceServiceRequest
	if err := proto.Unmarshal(buf.Body(), &req); err != nil {
		t.Fatalf("body does not unmarshal: %v", err)
	}
	if len(req.ResourceSpans) != 1 {
		t.Fatalf("expected 1 resource spans, got %d", len(req.ResourceSpans))
	}
	if got := req.ResourceSpans[0].ScopeSpans[0].Spans[0].Name; got != "GET /checkout" {
		t.Errorf("span name = %q", got)
	}
}

func TestWriteEmptyBatch(t *testing.T) {
	buf := payload.NewBuffer(true)
	s := NewOTLP()

	pos, err := s.Write(buf, buf.HeaderSize(), nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if pos != buf.HeaderSize() {
		t.Fatalf("empty batch must produce a header-only payload, position %d", pos)
	}
	if len(buf.Body()) != 0 {
		t.Fatalf("expected empty body, got %d bytes", len(buf.Body()))
	}
}

func TestWriteReusesBufferAcrossCalls(t *testing.T) {
	buf := payload.NewBuffer(false)
	s := NewOTLP()

	if _, err := s.Write(buf, 0, testBatch("first")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	capAfterFirst := buf.Cap()

	buf.Reset()
	if _, err := s.Write(buf, 0, testBatch("second")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Cap() != capAfterFirst {
		t.Errorf("capacity changed on same-size batch: %d -> %d", capAfterFirst, buf.Cap())
	}

	var req coltracepb.ExportTraceServiceRequest
	if err := proto.Unmarshal(buf.Body(), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := req.ResourceSpans[0].ScopeSpans[0].Spans[0].Name; got != "second" {
		t.Errorf("stale payload after reuse: %q", got)
	}
}

func TestWriteGrowsSmallBuffer(t *testing.T) {
	buf := payload.NewBufferSize(false, 8)
	s := NewOTLP()

	pos, err := s.Write(buf, 0, testBatch("needs-growth"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Cap() < pos {
		t.Fatalf("buffer did not grow: cap %d < pos %d", buf.Cap(), pos)
	}

	var req coltracepb.ExportTraceServiceRequest
	if err := proto.Unmarshal(buf.Body(), &req); err != nil {
		t.Fatalf("unmarshal after growth: %v", err)
	}
}
