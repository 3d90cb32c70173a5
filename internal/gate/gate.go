// Package gate holds the export run/stop decision and the background
// poller that refreshes it from the agent configuration file.
package gate

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/szibis/trace-governor/internal/agentconf"
	"github.com/szibis/trace-governor/internal/logging"
)

var (
	pollsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trace_governor_gate_polls_total",
		Help: "Total number of agent configuration polls",
	})

	pollErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trace_governor_gate_poll_errors_total",
		Help: "Total number of failed agent configuration polls",
	})

	gateState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trace_governor_gate_allowed",
		Help: "Whether trace export is currently allowed (1) or blocked (0)",
	})
)

func init() {
	prometheus.MustRegister(pollsTotal)
	prometheus.MustRegister(pollErrorsTotal)
	prometheus.MustRegister(gateState)

	pollsTotal.Add(0)
	pollErrorsTotal.Add(0)
	gateState.Set(0)
}

// Poller refreshes the export gate on a fixed interval. The gate starts
// Blocked and stays at its last known value across transient read
// failures. Export paths read the decision lock-free through Allowed.
type Poller struct {
	configPath string
	service    string
	interval   time.Duration

	allowed  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  atomic.Bool
}

// NewPoller creates a poller for the given agent configuration path and
// service name. The interval must already be resolved and clamped by the
// config package.
func NewPoller(configPath, service string, interval time.Duration) *Poller {
	return &Poller{
		configPath: configPath,
		service:    service,
		interval:   interval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Allowed reports the current gate decision.
func (p *Poller) Allowed() bool {
	return p.allowed.Load()
}

// Running reports whether the poll loop has started and not yet stopped.
func (p *Poller) Running() bool {
	return p.started.Load()
}

// Start polls once immediately, then launches the background loop. It is
// the caller's responsibility to call Stop exactly once at shutdown.
func (p *Poller) Start() {
	p.poll()
	p.started.Store(true)
	go p.loop()
}

func (p *Poller) loop() {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll reads the configuration document and publishes the new decision.
// Read or parse failures keep the previous decision: a control plane
// that is briefly mid-rewrite must not flap the gate.
func (p *Poller) poll() {
	pollsTotal.Inc()

	doc, err := agentconf.Load(p.configPath)
	if err != nil {
		pollErrorsTotal.Inc()
		logging.Warn("agent config poll failed, keeping previous gate value", logging.F(
			"error", err.Error(),
			"path", p.configPath,
			"allowed", p.allowed.Load(),
		))
		return
	}

	allowed := doc.ExportAllowed(p.service)
	previous := p.allowed.Swap(allowed)
	if allowed {
		gateState.Set(1)
	} else {
		gateState.Set(0)
	}
	if previous != allowed {
		logging.Info("export gate changed", logging.F(
			"service", p.service,
			"allowed", allowed,
		))
	}
}

// Stop terminates the poll loop. Idempotent; does not wait for an
// in-flight poll beyond the loop goroutine's exit.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		wasStarted := p.started.Swap(false)
		close(p.stopCh)
		if wasStarted {
			<-p.doneCh
		}
	})
}
