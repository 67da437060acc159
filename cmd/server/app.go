package main

import (
	"context"
	"fmt"
	"time"

	"github.com/unalkalkan/ShelfReader/internal/blobstore"
	"github.com/unalkalkan/ShelfReader/internal/catalog"
	"github.com/unalkalkan/ShelfReader/internal/config"
	"github.com/unalkalkan/ShelfReader/internal/logging"
	"github.com/unalkalkan/ShelfReader/internal/notify"
	"github.com/unalkalkan/ShelfReader/internal/parser"
	"github.com/unalkalkan/ShelfReader/internal/render/epub"
	"github.com/unalkalkan/ShelfReader/internal/session"
	"github.com/unalkalkan/ShelfReader/internal/settings"
	"github.com/unalkalkan/ShelfReader/internal/storage"
	"github.com/unalkalkan/ShelfReader/pkg/types"
)

// app holds the components shared by the server and the shelf commands
type app struct {
	cfg      *types.Config
	logger   *logging.Logger
	adapter  storage.Adapter
	blobs    blobstore.Store
	catalog  *catalog.Store
	settings *settings.Store
	notes    *notify.Center
	parsers  parser.Factory
	session  *session.Controller
}

func loadConfig(path string) (*types.Config, error) {
	if path == "" {
		return config.LoadDefault()
	}
	return config.Load(path)
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	adapter, err := storage.NewAdapter(cfg.Storage)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("failed to create storage adapter: %w", err)
	}
	logger.Info().Str("adapter", cfg.Storage.Adapter).Msg("storage adapter initialized")

	blobs, err := blobstore.New(cfg.Blobs, adapter, logger.Component("blobstore"))
	if err != nil {
		adapter.Close()
		logger.Close()
		return nil, fmt.Errorf("failed to create blob store: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		adapter:  adapter,
		blobs:    blobs,
		catalog:  catalog.NewStore(ctx, adapter, logger.Component("catalog")),
		settings: settings.NewStore(ctx, adapter, logger.Component("settings")),
		notes:    notify.NewCenter(time.Duration(cfg.Reader.NotificationTTLMs)*time.Millisecond, logger.Component("notify")),
		parsers:  parser.NewFactory(),
	}

	epubParser, err := a.parsers.GetParser("epub")
	if err != nil {
		a.Close()
		return nil, err
	}

	a.session = session.NewController(session.Deps{
		Catalog:  a.catalog,
		Blobs:    blobs,
		Engine:   epub.NewEngine(epubParser),
		Notifier: a.notes,
		Settings: a.settings,
	}, cfg.Reader, logger.Component("session"))

	return a, nil
}

// Close disposes the open book, then releases the backends
func (a *app) Close() {
	if a.session != nil {
		a.session.Close()
	}
	if err := a.blobs.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close blob store")
	}
	if err := a.adapter.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close storage adapter")
	}
	a.logger.Close()
}
