package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Environment variable names consumed at startup.
const (
	// EnvHome is the agent installation root. Required.
	EnvHome = "TRACE_GOVERNOR_HOME"
	// EnvService overrides the active service name.
	EnvService = "TRACE_GOVERNOR_SERVICE"
	// EnvPollInterval overrides the gate poll interval, in seconds.
	EnvPollInterval = "TRACE_GOVERNOR_POLL_INTERVAL"
)

// DefaultService is used when no service name override is set.
const DefaultService = "unknown_service"

// Poll interval bounds, in seconds. Overrides outside the range are
// clamped, not rejected.
const (
	MinPollIntervalSeconds     = 30
	MaxPollIntervalSeconds     = 120
	DefaultPollIntervalSeconds = 60
)

// Environment is the resolved startup environment. Resolution returns
// errors rather than exiting so callers decide what is fatal.
type Environment struct {
	// Home is the agent installation root.
	Home string
	// Service is the active service name.
	Service string
	// PollInterval is the resolved, clamped gate poll interval.
	PollInterval time.Duration
}

// AgentConfigPath returns the path of the agent run-state document.
func (e Environment) AgentConfigPath() string {
	return filepath.Join(e.Home, "config", "agent.json")
}

// CacheDir returns the directory holding diagnostic cache files.
func (e Environment) CacheDir() string {
	return filepath.Join(e.Home, "cache")
}

// ResolveEnvironment reads and validates the startup environment. A
// missing installation root or a non-numeric poll interval override is
// an error; a numeric interval outside [30, 120] seconds is clamped.
func ResolveEnvironment() (Environment, error) {
	home := os.Getenv(EnvHome)
	if home == "" {
		return Environment{}, fmt.Errorf("%s is not set", EnvHome)
	}

	service := os.Getenv(EnvService)
	if service == "" {
		service = DefaultService
	}

	interval, err := resolvePollInterval(os.Getenv(EnvPollInterval))
	if err != nil {
		return Environment{}, err
	}

	return Environment{
		Home:         home,
		Service:      service,
		PollInterval: interval,
	}, nil
}

// resolvePollInterval parses and clamps the poll interval override.
func resolvePollInterval(override string) (time.Duration, error) {
	seconds := DefaultPollIntervalSeconds
	if override != "" {
		parsed, err := strconv.Atoi(override)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", EnvPollInterval, override, err)
		}
		seconds = parsed
	}
	if seconds < MinPollIntervalSeconds {
		seconds = MinPollIntervalSeconds
	}
	if seconds > MaxPollIntervalSeconds {
		seconds = MaxPollIntervalSeconds
	}
	return time.Duration(seconds) * time.Second, nil
}
