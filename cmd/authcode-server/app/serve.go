package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	oauth "github.com/giantswarm/authcode-server"
)

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 15 * time.Second
	serverWriteTimeout     = 15 * time.Second
	serverIdleTimeout      = 60 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the authorization server",
		Long: `Start the authorization server. Settings come from the file given with
--config, overridden by AUTHCODE_* environment variables (a .env file in the
working directory is read first).`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	config, err := oauth.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(config.Log.Level, config.Log.Format)
	if err != nil {
		return err
	}
	config.Logger = logger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := oauth.NewServer(config, oauth.WithVersion(version))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := srv.Watch(ctx); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         net.JoinHostPort("", strconv.Itoa(config.Port)),
		Handler:      srv.Handler(),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serveErr := make(chan error, 1)
	go func() {
		if config.TLSEnabled() {
			logger.Info("Starting HTTPS server", "addr", httpServer.Addr, "cert", config.TLSCertFile)
			serveErr <- httpServer.ListenAndServeTLS(config.TLSCertFile, config.TLSKeyFile)
			return
		}
		logger.Warn("Starting HTTP server - use HTTPS in production!", "addr", httpServer.Addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		_ = srv.Shutdown(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to stop server components", "error", err)
	}
	logger.Info("Server stopped")
	return nil
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}
