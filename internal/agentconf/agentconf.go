// Package agentconf reads the agent's on-disk run-state document. The
// document is managed by an external control plane; this package only
// answers whether trace export is currently permitted for a service.
package agentconf

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Expected flag values. All comparisons are case-insensitive.
const (
	stateRunning  = "running"
	statusEnabled = "enable"
	statusYes     = "yes"
)

// Keys inside the "agent" node. The document uses dotted flat keys.
const (
	keyAgentState       = "agent.state"
	keyAgentService     = "agent.service.status"
	keyTraceAgentStatus = "trace.agent.status"
)

// ServiceEntry is the per-service run state under the "trace.agent" node.
type ServiceEntry struct {
	TraceState string `json:"service.trace.state"`
}

// Document is the agent configuration file.
type Document struct {
	Agent      map[string]string       `json:"agent"`
	TraceAgent map[string]ServiceEntry `json:"trace.agent"`
}

// Load reads and parses the agent configuration document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent config: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse agent config: %w", err)
	}
	return &doc, nil
}

// ExportAllowed reports whether trace export is permitted for the named
// service: the agent must be running with its service and trace agent
// enabled, and the service's own trace state must be on. A service with
// no entry under "trace.agent" is treated as disabled.
func (d *Document) ExportAllowed(service string) bool {
	if !flagEquals(d.Agent[keyAgentState], stateRunning) {
		return false
	}
	if !flagEquals(d.Agent[keyAgentService], statusEnabled) {
		return false
	}
	if !flagEquals(d.Agent[keyTraceAgentStatus], statusYes) {
		return false
	}
	entry, ok := d.TraceAgent[service]
	if !ok {
		return false
	}
	return flagEquals(entry.TraceState, statusYes)
}

func flagEquals(got, want string) bool {
	return strings.EqualFold(strings.TrimSpace(got), want)
}
