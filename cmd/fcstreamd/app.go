package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lmittmann/tint"
	"github.com/thecxx/fcstream"
	"github.com/thecxx/fcstream/config"
	"github.com/thecxx/fcstream/constants"
	"github.com/thecxx/fcstream/function"
	"github.com/thecxx/fcstream/orchestrator"
	"github.com/thecxx/fcstream/render"
	"github.com/thecxx/fcstream/store"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	db     *store.DB
	tp     *sdktrace.TracerProvider
	svc    *orchestrator.Service
}

func (f *flags) config() (config.Config, error) {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return cfg, err
	}
	if f.addr != "" {
		cfg.Addr = f.addr
	}
	if f.db != "" {
		cfg.DBPath = f.db
	}
	if f.provider != "" {
		cfg.Provider = f.provider
	}
	if f.model != "" {
		cfg.Model = f.model
	}
	if f.search != "" {
		cfg.SearchURL = f.search
	}
	if f.logLevel != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(f.logLevel)); err != nil {
			return cfg, fmt.Errorf("--log-level: %w", err)
		}
	}
	return cfg, nil
}

func newApp(cfg config.Config, logOut io.Writer) (*app, error) {
	logger := slog.New(tint.NewHandler(logOut, &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(logger)

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	tp := newTracerProvider(logger)
	registry := function.NewRegistry(
		function.WithTimeout(cfg.FunctionTimeout),
		function.WithLogger(logger),
		function.WithTracer(tp.Tracer(tracerName)),
	)
	searcher := &function.SearXNG{
		BaseURL: cfg.SearchURL,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
	if err := registry.Register(constants.FunctionWebSearch, function.WebSearch(searcher)); err != nil {
		db.Close()
		return nil, err
	}
	if err := registry.Register(constants.FunctionHotTopics, function.HotTopics(db)); err != nil {
		db.Close()
		return nil, err
	}

	adapter := fcstream.NewAdapter(fcstream.WithSchemaSource(registry))
	orch := orchestrator.New(adapter, registry, render.Default(), db,
		orchestrator.WithLogger(logger),
		orchestrator.WithPersistStreamedText(cfg.PersistStreamedText),
	)
	svc := orchestrator.NewService(db, fcstream.NewModels(cfg.Providers), orch,
		orchestrator.WithDefaultModel(cfg.Provider, cfg.Model),
		orchestrator.WithServiceLogger(logger),
	)
	return &app{cfg: cfg, logger: logger, db: db, tp: tp, svc: svc}, nil
}

func (a *app) Close() error {
	return errors.Join(a.tp.Shutdown(context.Background()), a.db.Close())
}
