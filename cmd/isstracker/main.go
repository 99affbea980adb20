package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/star/isstracker/internal/api"
	"github.com/star/isstracker/internal/fetch"
	"github.com/star/isstracker/internal/observability"
	"github.com/star/isstracker/internal/stream"
	"github.com/star/isstracker/internal/tracker"
	"github.com/star/isstracker/internal/ui"
	"github.com/star/isstracker/web"
)

func main() {
	tui := flag.Bool("tui", false, "show the terminal dashboard alongside the HTTP server")
	flag.Parse()

	logger, closeLog := newLogger(*tui)
	defer closeLog()

	addr := os.Getenv("ISS_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	trackerCfg := loadTrackerConfig(logger)
	fetchCfg := loadFetchConfig(logger)
	streamCfg := loadStreamConfig(logger)
	tracingCfg := loadTracingConfig(logger)
	if *tui {
		tracingCfg.Writer = io.Discard
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, logger)
	if err != nil {
		logger.Error("invalid tracing configuration", "error", err)
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	position := fetch.NewPositionClient(fetchCfg.Position, logger)
	people := fetch.NewRosterClient(fetchCfg.PeopleURL, fetchCfg.RequestTimeout)
	var geocoder tracker.Geocoder
	if fetchCfg.GeocodeURL != "" {
		geocoder = fetch.NewGeocoder(fetchCfg.GeocodeURL, fetchCfg.RequestTimeout)
	}

	trk := tracker.New(trackerCfg, position, people, geocoder, logger)

	hub := stream.NewHub(trk.Snapshot)
	trk.AddRenderer(hub)
	streamHandler := stream.NewHandler(hub, trk, streamCfg, logger)

	srv := api.NewServer(addr, logger, trk, streamHandler, web.Content)
	// Stream handlers end with the request context, so tie it to shutdown.
	srv.HTTPServer().BaseContext = func(net.Listener) context.Context { return ctx }

	trackerDone := make(chan struct{})
	go func() {
		defer close(trackerDone)
		trk.Run(ctx)
	}()

	go func() {
		logger.Info("starting server", "addr", addr, "tui", *tui, "tracing_enabled", tracingCfg.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	if *tui {
		p := tea.NewProgram(ui.New(trk, trk.Snapshot()), tea.WithAltScreen(), tea.WithContext(ctx))
		trk.AddRenderer(ui.Renderer{Program: p})
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			logger.Error("terminal dashboard error", "error", err)
		}
		// Quitting the dashboard stops the service.
		stop()
	}

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	select {
	case <-trackerDone:
	case <-shutdownCtx.Done():
		logger.Warn("tracker did not stop before shutdown deadline")
	}

	logger.Info("server stopped")
}
