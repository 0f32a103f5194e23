package httpapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type App struct {
	log    *slog.Logger
	server *echo.Echo
	port   int
}

// New creates new HTTP server app
func New(log *slog.Logger, server *echo.Echo, port int) *App {
	return &App{
		log:    log,
		server: server,
		port:   port,
	}
}

// MustRun runs HTTP server and panics if any error occurs
func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

// Run HTTP server
func (a *App) Run() error {
	const op = "httpapp.Run"

	log := a.log.With(slog.String("op", op),
		slog.Int("port", a.port),
	)

	log.Info("starting HTTP server", slog.String("addr", fmt.Sprintf(":%d", a.port)))

	if err := a.server.Start(fmt.Sprintf(":%d", a.port)); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Stop HTTP server
func (a *App) Stop() {
	const op = "httpapp.Stop"

	a.log.With(slog.String("op", op)).Info("stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}
