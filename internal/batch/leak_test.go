package batch

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestLeakCheck_Buffer(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	exp := &mockExporter{}
	buf := New(100, 50, 100*time.Millisecond, exp)

	ctx, cancel := context.WithCancel(context.Background())
	go buf.Start(ctx)

	buf.Add(createTestResourceSpans(10))
	time.Sleep(200 * time.Millisecond)

	cancel()
	buf.Wait()
}
