package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// YAMLConfig is the YAML configuration file structure. All fields are
// optional; absent fields keep the built-in or flag-provided value.
type YAMLConfig struct {
	Receiver struct {
		GRPCListenAddr string `yaml:"grpc_listen_addr"`
		HTTPListenAddr string `yaml:"http_listen_addr"`
		TLS            struct {
			Enabled    *bool  `yaml:"enabled"`
			CertFile   string `yaml:"cert_file"`
			KeyFile    string `yaml:"key_file"`
			CAFile     string `yaml:"ca_file"`
			ClientAuth *bool  `yaml:"client_auth"`
		} `yaml:"tls"`
		Auth struct {
			Enabled       *bool  `yaml:"enabled"`
			BearerToken   string `yaml:"bearer_token"`
			BasicUsername string `yaml:"basic_username"`
			BasicPassword string `yaml:"basic_password"`
		} `yaml:"auth"`
	} `yaml:"receiver"`

	Submitter struct {
		Endpoint string   `yaml:"endpoint"`
		Protocol string   `yaml:"protocol"`
		Insecure *bool    `yaml:"insecure"`
		Timeout  Duration `yaml:"timeout"`
		TLS      struct {
			Enabled            *bool  `yaml:"enabled"`
			CertFile           string `yaml:"cert_file"`
			KeyFile            string `yaml:"key_file"`
			CAFile             string `yaml:"ca_file"`
			InsecureSkipVerify *bool  `yaml:"insecure_skip_verify"`
			ServerName         string `yaml:"server_name"`
		} `yaml:"tls"`
		Auth struct {
			BearerToken   string `yaml:"bearer_token"`
			BasicUsername string `yaml:"basic_username"`
			BasicPassword string `yaml:"basic_password"`
		} `yaml:"auth"`
	} `yaml:"submitter"`

	Cache struct {
		Compression      string `yaml:"compression"`
		CompressionLevel *int   `yaml:"compression_level"`
	} `yaml:"cache"`

	Batch struct {
		BufferSize    *int     `yaml:"buffer_size"`
		MaxBatchSize  *int     `yaml:"max_batch_size"`
		FlushInterval Duration `yaml:"flush_interval"`
	} `yaml:"batch"`

	Stats struct {
		Addr string `yaml:"addr"`
	} `yaml:"stats"`

	Telemetry struct {
		Endpoint string `yaml:"endpoint"`
		Protocol string `yaml:"protocol"`
		Insecure *bool  `yaml:"insecure"`
	} `yaml:"telemetry"`

	Debug           *bool    `yaml:"debug"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// LoadYAML reads and parses a YAML configuration file.
func LoadYAML(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg YAMLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// apply copies file values onto cfg, skipping any flag the command line
// set explicitly.
func (y *YAMLConfig) apply(cfg *Config, set map[string]bool) {
	setString := func(flagName, value string, dst *string) {
		if value != "" && !set[flagName] {
			*dst = value
		}
	}
	setBool := func(flagName string, value *bool, dst *bool) {
		if value != nil && !set[flagName] {
			*dst = *value
		}
	}
	setInt := func(flagName string, value *int, dst *int) {
		if value != nil && !set[flagName] {
			*dst = *value
		}
	}
	setDuration := func(flagName string, value Duration, dst *time.Duration) {
		if value != 0 && !set[flagName] {
			*dst = time.Duration(value)
		}
	}

	setString("grpc-listen-addr", y.Receiver.GRPCListenAddr, &cfg.GRPCListenAddr)
	setString("http-listen-addr", y.Receiver.HTTPListenAddr, &cfg.HTTPListenAddr)
	setBool("receiver-tls-enabled", y.Receiver.TLS.Enabled, &cfg.ReceiverTLSEnabled)
	setString("receiver-tls-cert", y.Receiver.TLS.CertFile, &cfg.ReceiverTLSCertFile)
	setString("receiver-tls-key", y.Receiver.TLS.KeyFile, &cfg.ReceiverTLSKeyFile)
	setString("receiver-tls-ca", y.Receiver.TLS.CAFile, &cfg.ReceiverTLSCAFile)
	setBool("receiver-tls-client-auth", y.Receiver.TLS.ClientAuth, &cfg.ReceiverTLSClientAuth)
	setBool("receiver-auth-enabled", y.Receiver.Auth.Enabled, &cfg.ReceiverAuthEnabled)
	setString("receiver-auth-bearer-token", y.Receiver.Auth.BearerToken, &cfg.ReceiverAuthBearerToken)
	setString("receiver-auth-basic-username", y.Receiver.Auth.BasicUsername, &cfg.ReceiverAuthBasicUsername)
	setString("receiver-auth-basic-password", y.Receiver.Auth.BasicPassword, &cfg.ReceiverAuthBasicPassword)

	setString("submitter-endpoint", y.Submitter.Endpoint, &cfg.SubmitterEndpoint)
	setString("submitter-protocol", y.Submitter.Protocol, &cfg.SubmitterProtocol)
	setBool("submitter-insecure", y.Submitter.Insecure, &cfg.SubmitterInsecure)
	setDuration("submitter-timeout", y.Submitter.Timeout, &cfg.SubmitterTimeout)
	setBool("submitter-tls-enabled", y.Submitter.TLS.Enabled, &cfg.SubmitterTLSEnabled)
	setString("submitter-tls-cert", y.Submitter.TLS.CertFile, &cfg.SubmitterTLSCertFile)
	setString("submitter-tls-key", y.Submitter.TLS.KeyFile, &cfg.SubmitterTLSKeyFile)
	setString("submitter-tls-ca", y.Submitter.TLS.CAFile, &cfg.SubmitterTLSCAFile)
	setBool("submitter-tls-insecure-skip-verify", y.Submitter.TLS.InsecureSkipVerify, &cfg.SubmitterTLSInsecureSkipVerify)
	setString("submitter-tls-server-name", y.Submitter.TLS.ServerName, &cfg.SubmitterTLSServerName)
	setString("submitter-auth-bearer-token", y.Submitter.Auth.BearerToken, &cfg.SubmitterAuthBearerToken)
	setString("submitter-auth-basic-username", y.Submitter.Auth.BasicUsername, &cfg.SubmitterAuthBasicUsername)
	setString("submitter-auth-basic-password", y.Submitter.Auth.BasicPassword, &cfg.SubmitterAuthBasicPassword)

	setString("cache-compression", y.Cache.Compression, &cfg.CacheCompression)
	setInt("cache-compression-level", y.Cache.CompressionLevel, &cfg.CacheCompressionLevel)

	setInt("buffer-size", y.Batch.BufferSize, &cfg.BufferSize)
	setInt("max-batch-size", y.Batch.MaxBatchSize, &cfg.MaxBatchSize)
	setDuration("flush-interval", y.Batch.FlushInterval, &cfg.FlushInterval)

	setString("stats-addr", y.Stats.Addr, &cfg.StatsAddr)
	setString("telemetry-endpoint", y.Telemetry.Endpoint, &cfg.TelemetryEndpoint)
	setString("telemetry-protocol", y.Telemetry.Protocol, &cfg.TelemetryProtocol)
	setBool("telemetry-insecure", y.Telemetry.Insecure, &cfg.TelemetryInsecure)

	setBool("debug", y.Debug, &cfg.Debug)
	setDuration("shutdown-timeout", y.ShutdownTimeout, &cfg.ShutdownTimeout)
}
