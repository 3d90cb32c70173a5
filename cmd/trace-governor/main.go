package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/szibis/trace-governor/internal/auth"
	"github.com/szibis/trace-governor/internal/batch"
	"github.com/szibis/trace-governor/internal/cache"
	"github.com/szibis/trace-governor/internal/compression"
	"github.com/szibis/trace-governor/internal/config"
	"github.com/szibis/trace-governor/internal/exporter"
	"github.com/szibis/trace-governor/internal/gate"
	"github.com/szibis/trace-governor/internal/health"
	"github.com/szibis/trace-governor/internal/logging"
	"github.com/szibis/trace-governor/internal/receiver"
	"github.com/szibis/trace-governor/internal/serializer"
	"github.com/szibis/trace-governor/internal/submitter"
	"github.com/szibis/trace-governor/internal/telemetry"
	tlspkg "github.com/szibis/trace-governor/internal/tls"
	"golang.org/x/sync/errgroup"
)

const serviceName = "trace-governor"

var errPollerStopped = errors.New("gate poller not running")

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		logging.Fatal("invalid configuration", logging.F("error", err.Error()))
	}

	if cfg.ShowHelp {
		config.PrintUsage()
		os.Exit(0)
	}
	if cfg.ShowVersion {
		config.PrintVersion()
		os.Exit(0)
	}

	env, err := config.ResolveEnvironment()
	if err != nil {
		logging.Fatal("invalid environment", logging.F("error", err.Error()))
	}

	logging.SetDebug(cfg.Debug)
	logging.SetResource(map[string]string{
		"service.name":    serviceName,
		"service.monitor": env.Service,
	})

	// Respect the container memory limit so GC pressure stays bounded.
	if _, err := memlimit.SetGoMemLimitWithOpts(memlimit.WithRatio(0.9)); err != nil {
		logging.Warn("memory limit detection failed", logging.F("error", err.Error()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tel, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint: cfg.TelemetryEndpoint,
		Protocol: cfg.TelemetryProtocol,
		Insecure: cfg.TelemetryInsecure,
	}, serviceName, "")
	if err != nil {
		logging.Fatal("failed to init telemetry", logging.F("error", err.Error()))
	}
	if tel.Enabled() {
		logging.SetHook(tel.NewLogHook())
	}

	compressionType, err := compression.ParseType(cfg.CacheCompression)
	if err != nil {
		logging.Fatal("invalid cache compression", logging.F("error", err.Error()))
	}
	codec, err := compression.New(compression.Config{
		Type:  compressionType,
		Level: cfg.CacheCompressionLevel,
	})
	if err != nil {
		logging.Fatal("failed to create compression codec", logging.F("error", err.Error()))
	}

	cacheWriter, err := cache.NewWriter(env.CacheDir(), codec)
	if err != nil {
		logging.Fatal("failed to create cache writer", logging.F("error", err.Error(), "dir", env.CacheDir()))
	}

	sub, err := newSubmitter(cfg)
	if err != nil {
		logging.Fatal("failed to create submitter", logging.F("error", err.Error()))
	}

	poller := gate.NewPoller(env.AgentConfigPath(), env.Service, env.PollInterval)
	poller.Start()

	exp := exporter.New(exporter.Config{
		Service: env.Service,
		Framed:  cfg.Framed(),
	}, poller, serializer.NewOTLP(), cacheWriter, sub)

	buf := batch.New(cfg.BufferSize, cfg.MaxBatchSize, cfg.FlushInterval, exp)
	go buf.Start(ctx)

	grpcReceiver := receiver.NewGRPCWithConfig(receiver.GRPCConfig{
		Addr: cfg.GRPCListenAddr,
		TLS:  receiverTLSConfig(cfg),
		Auth: receiverAuthConfig(cfg),
	}, buf)
	httpReceiver := receiver.NewHTTPWithConfig(receiver.HTTPConfig{
		Addr: cfg.HTTPListenAddr,
		TLS:  receiverTLSConfig(cfg),
		Auth: receiverAuthConfig(cfg),
	}, buf)

	checker := health.New()
	checker.RegisterReadiness("gate_poller", func() error {
		if !poller.Running() {
			return errPollerStopped
		}
		return nil
	})

	statsMux := http.NewServeMux()
	statsMux.Handle("/metrics", promhttp.Handler())
	checker.Register(statsMux)
	statsServer := &http.Server{Addr: cfg.StatsAddr, Handler: statsMux}

	var g errgroup.Group
	g.Go(grpcReceiver.Start)
	g.Go(func() error {
		if err := httpReceiver.Start(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logging.Info("stats endpoint started", logging.F("addr", cfg.StatsAddr))
		if err := statsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	logging.Info("trace-governor started", logging.F(
		"grpc_addr", cfg.GRPCListenAddr,
		"http_addr", cfg.HTTPListenAddr,
		"submitter_endpoint", cfg.SubmitterEndpoint,
		"submitter_protocol", cfg.SubmitterProtocol,
		"service", env.Service,
		"poll_interval", env.PollInterval.String(),
		"cache_dir", env.CacheDir(),
	))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logging.Info("shutting down")
	checker.SetShuttingDown()

	// Stop intake first, then drain the batch buffer, then release the
	// gate poller and submitter.
	grpcReceiver.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpReceiver.Stop(shutdownCtx); err != nil {
		logging.Error("HTTP receiver shutdown error", logging.F("error", err.Error()))
	}

	cancel()
	buf.Wait()

	poller.Stop()
	if err := exp.Shutdown(shutdownCtx); err != nil {
		logging.Error("exporter shutdown error", logging.F("error", err.Error()))
	}
	if err := statsServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("stats server shutdown error", logging.F("error", err.Error()))
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logging.Error("telemetry shutdown error", logging.F("error", err.Error()))
	}
	if err := g.Wait(); err != nil {
		logging.Error("server error", logging.F("error", err.Error()))
	}

	logging.Info("shutdown complete")
}

// newSubmitter builds the collector submitter for the configured protocol.
func newSubmitter(cfg *config.Config) (submitter.Submitter, error) {
	clientTLS := tlspkg.ClientConfig{
		Enabled:            cfg.SubmitterTLSEnabled,
		CertFile:           cfg.SubmitterTLSCertFile,
		KeyFile:            cfg.SubmitterTLSKeyFile,
		CAFile:             cfg.SubmitterTLSCAFile,
		InsecureSkipVerify: cfg.SubmitterTLSInsecureSkipVerify,
		ServerName:         cfg.SubmitterTLSServerName,
	}
	clientAuth := auth.ClientConfig{
		BearerToken:       cfg.SubmitterAuthBearerToken,
		BasicAuthUsername: cfg.SubmitterAuthBasicUsername,
		BasicAuthPassword: cfg.SubmitterAuthBasicPassword,
	}

	if cfg.Framed() {
		return submitter.NewGRPC(submitter.GRPCConfig{
			Endpoint: cfg.SubmitterEndpoint,
			Insecure: cfg.SubmitterInsecure,
			Timeout:  cfg.SubmitterTimeout,
			TLS:      clientTLS,
			Auth:     clientAuth,
		})
	}
	return submitter.NewHTTP(submitter.HTTPConfig{
		Endpoint: cfg.SubmitterEndpoint,
		Insecure: cfg.SubmitterInsecure,
		Timeout:  cfg.SubmitterTimeout,
		TLS:      clientTLS,
		Auth:     clientAuth,
	})
}

func receiverTLSConfig(cfg *config.Config) tlspkg.ServerConfig {
	return tlspkg.ServerConfig{
		Enabled:    cfg.ReceiverTLSEnabled,
		CertFile:   cfg.ReceiverTLSCertFile,
		KeyFile:    cfg.ReceiverTLSKeyFile,
		CAFile:     cfg.ReceiverTLSCAFile,
		ClientAuth: cfg.ReceiverTLSClientAuth,
	}
}

func receiverAuthConfig(cfg *config.Config) auth.ServerConfig {
	return auth.ServerConfig{
		Enabled:           cfg.ReceiverAuthEnabled,
		BearerToken:       cfg.ReceiverAuthBearerToken,
		BasicAuthUsername: cfg.ReceiverAuthBasicUsername,
		BasicAuthPassword: cfg.ReceiverAuthBasicPassword,
	}
}
