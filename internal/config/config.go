// Package config holds startup configuration: environment resolution,
// command-line flags, and the optional YAML configuration file.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// version is set at build time via ldflags
var version = "dev"

// Config holds the application configuration.
type Config struct {
	// Receiver settings
	GRPCListenAddr string
	HTTPListenAddr string

	// Receiver TLS settings
	ReceiverTLSEnabled    bool
	ReceiverTLSCertFile   string
	ReceiverTLSKeyFile    string
	ReceiverTLSCAFile     string
	ReceiverTLSClientAuth bool

	// Receiver auth settings
	ReceiverAuthEnabled       bool
	ReceiverAuthBearerToken   string
	ReceiverAuthBasicUsername string
	ReceiverAuthBasicPassword string

	// Submitter settings
	SubmitterEndpoint string
	SubmitterProtocol string // "grpc" (framed) or "http" (bare)
	SubmitterInsecure bool
	SubmitterTimeout  time.Duration

	// Submitter TLS settings
	SubmitterTLSEnabled            bool
	SubmitterTLSCertFile           string
	SubmitterTLSKeyFile            string
	SubmitterTLSCAFile             string
	SubmitterTLSInsecureSkipVerify bool
	SubmitterTLSServerName         string

	// Submitter auth settings
	SubmitterAuthBearerToken   string
	SubmitterAuthBasicUsername string
	SubmitterAuthBasicPassword string

	// Cache compression settings
	CacheCompression      string
	CacheCompressionLevel int

	// Batch settings
	BufferSize    int
	MaxBatchSize  int
	FlushInterval time.Duration

	// Observability settings
	StatsAddr         string
	Debug             bool
	TelemetryEndpoint string
	TelemetryProtocol string
	TelemetryInsecure bool

	// Shutdown settings
	ShutdownTimeout time.Duration

	// Config file path
	ConfigFile string

	ShowHelp    bool
	ShowVersion bool
}

// defaultConfig returns the built-in defaults.
func defaultConfig() *Config {
	return &Config{
		GRPCListenAddr:    ":4317",
		HTTPListenAddr:    ":4318",
		SubmitterEndpoint: "localhost:4317",
		SubmitterProtocol: "grpc",
		SubmitterTimeout:  10 * time.Second,
		CacheCompression:  "zstd",
		BufferSize:        8192,
		MaxBatchSize:      512,
		FlushInterval:     5 * time.Second,
		StatsAddr:         ":9090",
		TelemetryProtocol: "grpc",
		TelemetryInsecure: true,
		ShutdownTimeout:   10 * time.Second,
	}
}

// ParseFlags parses command-line flags, applying the YAML configuration
// file first (if given) so explicit flags win over file values.
func ParseFlags() (*Config, error) {
	return parseFlags(flag.CommandLine, os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := defaultConfig()

	fs.StringVar(&cfg.ConfigFile, "config", "", "Path to YAML configuration file")

	fs.StringVar(&cfg.GRPCListenAddr, "grpc-listen-addr", cfg.GRPCListenAddr, "OTLP gRPC receiver listen address")
	fs.StringVar(&cfg.HTTPListenAddr, "http-listen-addr", cfg.HTTPListenAddr, "OTLP HTTP receiver listen address")

	fs.BoolVar(&cfg.ReceiverTLSEnabled, "receiver-tls-enabled", cfg.ReceiverTLSEnabled, "Enable TLS for receivers")
	fs.StringVar(&cfg.ReceiverTLSCertFile, "receiver-tls-cert", cfg.ReceiverTLSCertFile, "Receiver TLS certificate file")
	fs.StringVar(&cfg.ReceiverTLSKeyFile, "receiver-tls-key", cfg.ReceiverTLSKeyFile, "Receiver TLS key file")
	fs.StringVar(&cfg.ReceiverTLSCAFile, "receiver-tls-ca", cfg.ReceiverTLSCAFile, "Receiver TLS CA file for client verification")
	fs.BoolVar(&cfg.ReceiverTLSClientAuth, "receiver-tls-client-auth", cfg.ReceiverTLSClientAuth, "Require client certificates (mTLS)")

	fs.BoolVar(&cfg.ReceiverAuthEnabled, "receiver-auth-enabled", cfg.ReceiverAuthEnabled, "Enable authentication for receivers")
	fs.StringVar(&cfg.ReceiverAuthBearerToken, "receiver-auth-bearer-token", cfg.ReceiverAuthBearerToken, "Expected bearer token for receivers")
	fs.StringVar(&cfg.ReceiverAuthBasicUsername, "receiver-auth-basic-username", cfg.ReceiverAuthBasicUsername, "Expected basic auth username for receivers")
	fs.StringVar(&cfg.ReceiverAuthBasicPassword, "receiver-auth-basic-password", cfg.ReceiverAuthBasicPassword, "Expected basic auth password for receivers")

	fs.StringVar(&cfg.SubmitterEndpoint, "submitter-endpoint", cfg.SubmitterEndpoint, "Collector endpoint (host:port for gRPC, URL for HTTP)")
	fs.StringVar(&cfg.SubmitterProtocol, "submitter-protocol", cfg.SubmitterProtocol, "Submission protocol: grpc (framed) or http (bare)")
	fs.BoolVar(&cfg.SubmitterInsecure, "submitter-insecure", cfg.SubmitterInsecure, "Use insecure connection to the collector")
	fs.DurationVar(&cfg.SubmitterTimeout, "submitter-timeout", cfg.SubmitterTimeout, "Per-submit timeout")

	fs.BoolVar(&cfg.SubmitterTLSEnabled, "submitter-tls-enabled", cfg.SubmitterTLSEnabled, "Enable custom TLS for the submitter")
	fs.StringVar(&cfg.SubmitterTLSCertFile, "submitter-tls-cert", cfg.SubmitterTLSCertFile, "Submitter client certificate file (mTLS)")
	fs.StringVar(&cfg.SubmitterTLSKeyFile, "submitter-tls-key", cfg.SubmitterTLSKeyFile, "Submitter client key file (mTLS)")
	fs.StringVar(&cfg.SubmitterTLSCAFile, "submitter-tls-ca", cfg.SubmitterTLSCAFile, "Submitter CA file for server verification")
	fs.BoolVar(&cfg.SubmitterTLSInsecureSkipVerify, "submitter-tls-insecure-skip-verify", cfg.SubmitterTLSInsecureSkipVerify, "Skip server certificate verification")
	fs.StringVar(&cfg.SubmitterTLSServerName, "submitter-tls-server-name", cfg.SubmitterTLSServerName, "Override server name for certificate verification")

	fs.StringVar(&cfg.SubmitterAuthBearerToken, "submitter-auth-bearer-token", cfg.SubmitterAuthBearerToken, "Bearer token sent to the collector")
	fs.StringVar(&cfg.SubmitterAuthBasicUsername, "submitter-auth-basic-username", cfg.SubmitterAuthBasicUsername, "Basic auth username sent to the collector")
	fs.StringVar(&cfg.SubmitterAuthBasicPassword, "submitter-auth-basic-password", cfg.SubmitterAuthBasicPassword, "Basic auth password sent to the collector")

	fs.StringVar(&cfg.CacheCompression, "cache-compression", cfg.CacheCompression, "Cache compression: none, gzip, zstd, snappy, lz4")
	fs.IntVar(&cfg.CacheCompressionLevel, "cache-compression-level", cfg.CacheCompressionLevel, "Cache compression level (0 = default)")

	fs.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "Max resource spans buffered before a forced flush")
	fs.IntVar(&cfg.MaxBatchSize, "max-batch-size", cfg.MaxBatchSize, "Max resource spans per export call")
	fs.DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "Batch flush interval")

	fs.StringVar(&cfg.StatsAddr, "stats-addr", cfg.StatsAddr, "Listen address for /metrics, /live, /ready")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	fs.StringVar(&cfg.TelemetryEndpoint, "telemetry-endpoint", cfg.TelemetryEndpoint, "OTLP endpoint for self-monitoring (empty = disabled)")
	fs.StringVar(&cfg.TelemetryProtocol, "telemetry-protocol", cfg.TelemetryProtocol, "Self-monitoring protocol: grpc or http")
	fs.BoolVar(&cfg.TelemetryInsecure, "telemetry-insecure", cfg.TelemetryInsecure, "Use insecure connection for self-monitoring")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown timeout")

	fs.BoolVar(&cfg.ShowHelp, "help", cfg.ShowHelp, "Show usage")
	fs.BoolVar(&cfg.ShowVersion, "version", cfg.ShowVersion, "Show version")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		yamlCfg, err := LoadYAML(cfg.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		// File values fill in everything the command line did not set
		// explicitly.
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		yamlCfg.apply(cfg, set)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.SubmitterProtocol {
	case "grpc", "http":
	default:
		return fmt.Errorf("invalid submitter protocol %q (grpc or http)", c.SubmitterProtocol)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer-size must be positive, got %d", c.BufferSize)
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("max-batch-size must be positive, got %d", c.MaxBatchSize)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush-interval must be positive, got %s", c.FlushInterval)
	}
	return nil
}

// Framed reports whether the configured transport requires
// length-delimited framing of the wire payload.
func (c *Config) Framed() bool {
	return c.SubmitterProtocol == "grpc"
}

// PrintUsage prints command-line usage.
func PrintUsage() {
	fmt.Fprintf(os.Stderr, "Usage: trace-governor [flags]\n\n")
	flag.PrintDefaults()
}

// PrintVersion prints the build version.
func PrintVersion() {
	fmt.Printf("trace-governor %s\n", version)
}
