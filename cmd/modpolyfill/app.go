package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/config"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/observability"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/transform"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/version"
)

// app is the wiring shared by every command: configuration, telemetry and
// the transformer.
type app struct {
	cfg         *config.Config
	providers   observability.Providers
	logger      *slog.Logger
	transformer *transform.Transformer
	red         *observability.REDMetrics
}

// appOptions tune newApp per command.
type appOptions struct {
	mode observability.AppMode
	// logWriter receives logs; stdout is never used in lsp and mcp modes.
	logWriter io.Writer
	// meterProvider replaces the OTLP meter provider.
	meterProvider metric.MeterProvider
	// cache enables the content-hash result cache for long running modes.
	cache bool
}

func newApp(opts *globalOptions, appOpts appOptions) (*app, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	obsCfg := cfg.ObservabilityConfig(appOpts.mode, version.Get().Version)

	switch {
	case opts.verbose:
		obsCfg.LogLevel = slog.LevelDebug
	case opts.quiet:
		obsCfg.LogLevel = slog.LevelError
	}

	providers, err := observability.Init(obsCfg, observability.Options{
		LogWriter:     appOpts.logWriter,
		MeterProvider: appOpts.meterProvider,
	})
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	instance := &app{cfg: cfg, providers: providers, logger: providers.Logger}

	err = instance.build(appOpts)
	if err != nil {
		instance.close()

		return nil, err
	}

	return instance, nil
}

func (a *app) build(appOpts appOptions) error {
	engine, err := a.cfg.Engine()
	if err != nil {
		return err
	}

	metrics, err := observability.NewTransformMetrics(a.providers.Meter)
	if err != nil {
		return fmt.Errorf("transform metrics: %w", err)
	}

	a.red, err = observability.NewREDMetrics(a.providers.Meter)
	if err != nil {
		return fmt.Errorf("red metrics: %w", err)
	}

	cacheSize := 0
	if appOpts.cache {
		cacheSize = a.cfg.Server.CacheSize
	}

	a.transformer, err = transform.New(transform.Options{
		Engine:      engine,
		Logger:      a.logger,
		Tracer:      a.providers.Tracer,
		Metrics:     metrics,
		CacheSize:   cacheSize,
		MaxFileSize: a.cfg.MaxFileSize(),
		Workers:     a.cfg.Transform.Workers,
	})
	if err != nil {
		return fmt.Errorf("create transformer: %w", err)
	}

	a.logger.Debug("modpolyfill ready",
		"mode", string(appOpts.mode),
		"config", a.cfg.File,
		"mappings", engine.Reverse().Len(),
		"canonical", engine.CanonicalModule())

	return nil
}

func (a *app) close() {
	err := a.providers.Shutdown(context.Background())
	if err != nil {
		a.logger.Warn("observability shutdown failed", "error", err)
	}
}
