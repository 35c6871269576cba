// trackpipe runs the event pipeline as a local process: host code and
// embedded web views reach it through the bridge HTTP API, and finished
// records land in the configured outbound queue.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	"github.com/aevon-lab/trackpipe/internal/bridge"
	"github.com/aevon-lab/trackpipe/internal/composer"
	corecfg "github.com/aevon-lab/trackpipe/internal/core/config"
	"github.com/aevon-lab/trackpipe/internal/core/storage"
	"github.com/aevon-lab/trackpipe/internal/core/storage/memory"
	"github.com/aevon-lab/trackpipe/internal/core/storage/postgres"
	"github.com/aevon-lab/trackpipe/internal/migrations"
	"github.com/aevon-lab/trackpipe/internal/pipeline"
	"github.com/aevon-lab/trackpipe/internal/remoteconfig"
	"github.com/aevon-lab/trackpipe/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath       string
		logLevel         string
		enableCollection bool
		flagSet          = pflag.NewFlagSet("trackpipe", pflag.ContinueOnError)
	)
	flagSet.StringVarP(&configPath, "config", "c", "trackpipe.yaml", "path to configuration file (empty for defaults and env only)")
	flagSet.StringVar(&logLevel, "log-level", "", "override logging.level")
	flagSet.BoolVar(&enableCollection, "enable-collection", false, "start with data collection enabled")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) && !flagSet.Changed("config") {
			configPath = ""
		}
	}
	cfg, err := corecfg.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if enableCollection {
		cfg.Pipeline.CollectionEnabled = true
	}
	slog.SetDefault(newLogger(cfg.Logging))
	slog.Info("Loaded config", "storage", cfg.Storage.Type, "bridge", cfg.Bridge.Enabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Telemetry
	provider, err := telemetry.NewProvider(ctx,
		cfg.Telemetry.OTLPEndpoint,
		cfg.Telemetry.ServiceName,
		cfg.Telemetry.ExportIntervalDuration(),
		cfg.Telemetry.Insecure)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	provider.SetGlobal()
	defer provider.Shutdown(context.Background())

	metrics, err := telemetry.New(provider.MeterProvider)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	// 2. Storage
	queue, kv, health, closeStore, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. Remote config
	remote := remoteconfig.NewStore()
	if cfg.RemoteConfig.Path != "" {
		poller := remoteconfig.NewPoller(remote, cfg.RemoteConfig.Path, cfg.RemoteConfig.PollIntervalDuration())
		go func() {
			if err := poller.Start(ctx); err != nil {
				slog.Error("Remote config poller stopped with error", "error", err)
			}
		}()
	}

	// 4. Pipeline
	loc, err := cfg.Pipeline.Location()
	if err != nil {
		return err
	}
	p, err := pipeline.New(ctx, pipeline.Options{
		Library:              composer.Library{Name: cfg.Pipeline.LibraryName, Version: cfg.Pipeline.LibraryVersion},
		Device:               deviceFacts(cfg.Pipeline.Device),
		Queue:                queue,
		KV:                   kv,
		Remote:               remote,
		Metrics:              metrics,
		CollectionEnabled:    cfg.Pipeline.CollectionEnabled,
		SessionGap:           cfg.Pipeline.SessionGapDuration(),
		MaxValueLength:       cfg.Pipeline.MaxValueLength,
		ReferrerTitleEnabled: cfg.Pipeline.ReferrerTitle,
		Location:             loc,
	})
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}

	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if err := p.Run(ctx); err != nil {
			slog.Error("Pipeline stopped with error", "error", err)
		}
	}()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// 5. Bridge; without it the process just runs the pipeline until signalled.
	if cfg.Bridge.Enabled {
		srv := bridge.New(cfg.Bridge.Addr(), cfg.Bridge.Mode, health)
		bridge.NewService(p, cfg.Bridge.MaxBodySizeKB).RegisterRoutes(srv.Engine)
		if err := srv.Run(ctx); err != nil {
			slog.Error("Bridge stopped with error", "error", err)
			cancel()
		}
	} else {
		<-ctx.Done()
	}

	<-pipelineDone
	slog.Info("Shutdown complete")
	return nil
}

// openStorage returns the outbound queue and KV store for cfg.Type.
func openStorage(cfg corecfg.StorageConfig) (storage.Queue, storage.KVStore, bridge.HealthChecker, func(), error) {
	if cfg.Type == "memory" {
		slog.Warn("Using in-memory storage; queued records are lost on exit")
		return memory.NewQueue(), memory.NewKV(), nil, func() {}, nil
	}

	c, err := cfg.Codec()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	adapter, err := postgres.NewAdapter(cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns, c)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("init database: %w", err)
	}
	if err := migrations.RunMigrations(adapter.DB(), cfg.AutoMigrate); err != nil {
		adapter.Close()
		return nil, nil, nil, nil, fmt.Errorf("run database migrations: %w", err)
	}
	return adapter, adapter, adapter, func() { adapter.Close() }, nil
}

func deviceFacts(m map[string]string) *v1.Properties {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	device := v1.NewProperties()
	for _, key := range keys {
		device.Set(key, v1.String(m[key]))
	}
	return device
}

func newLogger(cfg corecfg.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
