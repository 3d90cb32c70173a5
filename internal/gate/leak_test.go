package gate

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestLeakCheck_Poller(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := writeConfig(t, t.TempDir(), allOn)
	p := NewPoller(path, "checkout-api", 10*time.Millisecond)
	p.Start()
	time.Sleep(50 * time.Millisecond)
	p.Stop()
}
