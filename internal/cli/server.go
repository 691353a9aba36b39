package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lingo-quiz/internal/app"
	"lingo-quiz/internal/config"
	"lingo-quiz/internal/event"
	"lingo-quiz/internal/stats"
	"lingo-quiz/internal/telemetry"
	transport "lingo-quiz/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logLevel.Set(cfg.LogLevel())

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	bus := event.NewBus()
	defer bus.Stop()
	metrics := telemetry.NewMetrics()
	metrics.Subscribe(bus)

	service := app.NewQuizService(d.provider, d.repo, app.WithPublisher(bus))
	router := transport.NewRouter(transport.RouterConfig{
		Content: d.provider,
		Store:   d.repo,
		Stats:   stats.NewService(d.repo, d.provider),
		Quiz:    service,
		Metrics: metrics.Handler(),
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "server: listening", "port", finalPort, "storage", cfg.Storage.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "server: listen failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		slog.InfoContext(ctx, "server: shutting down")
	case <-ctx.Done():
		slog.InfoContext(ctx, "server: context canceled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
