package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/unalkalkan/ShelfReader/internal/api"
	"github.com/unalkalkan/ShelfReader/internal/health"
	"github.com/unalkalkan/ShelfReader/internal/streaming"
)

func newServeCmd(configPath *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the reader HTTP server",
		Example: `  # Start with defaults and SR_ environment variables
  shelfreader serve

  # Start from a config file on a custom port
  shelfreader serve --config config/dev.example.yaml --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if port > 0 {
				a.cfg.Server.Port = port
			}
			return serve(cmd.Context(), a)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides the config)")

	return cmd
}

func serve(ctx context.Context, a *app) error {
	log := a.logger.Component("server")
	log.Info().Str("version", version).Msg("starting ShelfReader server")

	healthHandler := health.NewHandler(version, a.logger.Component("health"))
	healthHandler.Register("storage", health.StorageCheck(a.adapter))
	healthHandler.Register("catalog", health.ErrCheck(a.catalog.Err))
	if p, ok := a.blobs.(health.Pinger); ok {
		healthHandler.Register("blobs", health.PingCheck(p))
	}

	mux := http.NewServeMux()
	healthHandler.Routes(mux)
	mux.HandleFunc("/api/v1/info", infoHandler(a))

	api.Handlers{
		Shelf:         api.NewShelfHandler(a.catalog, a.session, a.parsers, a.notes, a.cfg.Server.MaxUploadSize, a.logger.Component("shelf")),
		Reader:        api.NewReaderHandler(a.session, streaming.NewService(a.session, a.settings)),
		Settings:      api.NewSettingsHandler(a.settings, a.session, a.logger.Component("settings")),
		Notifications: api.NewNotificationsHandler(a.notes),
	}.Register(mux)

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
			return err
		}
		log.Info().Msg("server stopped")
		return nil
	case err := <-serverErr:
		log.Error().Err(err).Msg("server error")
		return err
	}
}

// infoHandler returns basic server information
func infoHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version":         version,
			"storage_adapter": a.cfg.Storage.Adapter,
			"blob_backend":    a.cfg.Blobs.Backend,
			"state":           a.session.State().String(),
		})
	}
}
