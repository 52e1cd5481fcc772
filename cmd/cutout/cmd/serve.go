package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cutout/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server for background removal.

Endpoints:
  POST /api/v1/remove   multipart "image" plus settings fields, returns PNG/JPEG or JSON
  POST /api/v1/analyze  complexity and quality report
  GET  /ws/remove       websocket with progress frames
  GET  /health          health check
  GET  /models          backend capability table
  GET  /metrics         prometheus metrics

Examples:
  cutout serve
  cutout serve --port 8080
  cutout serve --host 0.0.0.0 --port 3000 --rate-limit`,
	RunE: runServeCommand,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addModelFlags(serveCmd)
	f := serveCmd.Flags()
	f.String("host", "localhost", "interface to listen on")
	f.IntP("port", "p", 8080, "port to listen on")
	f.String("cors-origin", "*", "allowed CORS origin")
	f.Int("max-upload-size", 50, "maximum upload size in MB")
	f.Int("timeout", 60, "per-request processing timeout in seconds")
	f.Int("shutdown-timeout", 10, "graceful shutdown timeout in seconds")
	f.Bool("rate-limit", false, "enable per-client rate limiting")
	f.Int("requests-per-minute", 60, "requests per minute per client")
	f.Int("requests-per-hour", 1000, "requests per hour per client")
	f.Int("max-requests-per-day", 10000, "requests per day per client")
	f.Int64("max-data-per-day", 1024, "upload MB per day per client")
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	applyModelFlags(cmd, cfg)
	stringFlag(cmd, "host", &cfg.Server.Host)
	intFlag(cmd, "port", &cfg.Server.Port)
	stringFlag(cmd, "cors-origin", &cfg.Server.CORSOrigin)
	intFlag(cmd, "max-upload-size", &cfg.Server.MaxUploadMB)
	intFlag(cmd, "timeout", &cfg.Server.TimeoutSec)
	intFlag(cmd, "shutdown-timeout", &cfg.Server.ShutdownTimeout)
	boolFlag(cmd, "rate-limit", &cfg.Server.RateLimit.Enabled)
	intFlag(cmd, "requests-per-minute", &cfg.Server.RateLimit.RequestsPerMinute)
	intFlag(cmd, "requests-per-hour", &cfg.Server.RateLimit.RequestsPerHour)
	intFlag(cmd, "max-requests-per-day", &cfg.Server.RateLimit.MaxRequestsPerDay)
	if cmd.Flags().Changed("max-data-per-day") {
		cfg.Server.RateLimit.MaxDataPerDayMB, _ = cmd.Flags().GetInt64("max-data-per-day")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rl := cfg.Server.RateLimit
	srv, err := server.NewServer(server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxUploadMB: int64(cfg.Server.MaxUploadMB),
		TimeoutSec:  cfg.Server.TimeoutSec,
		Pipeline:    cfg.ToPipelineConfig(),
		RateLimit: server.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			MaxRequestsPerDay: rl.MaxRequestsPerDay,
			MaxDataPerDay:     rl.MaxDataPerDayMB << 20,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.TimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.TimeoutSec+5) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting cutout server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
