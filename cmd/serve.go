// =============================================================================
// Paycom Distribution - Serve Command
// =============================================================================
//
// This file defines the 'serve' command, which runs the HTTP upload boundary.
// Every upload is one pipeline run; the reference cache is shared by all of
// them for the lifetime of the process.
//
// COMMAND USAGE:
//   paycom serve [--addr :8080]
//
// SHUTDOWN:
//   SIGINT or SIGTERM stops accepting connections and waits up to 30 seconds
//   for in-flight runs to finish.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/paycom-distribution/internal/server"
)

// serveAddr overrides server.addr from the configuration.
var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP upload server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from server.addr)")
}

// runServe executes the serve command.
func runServe(ctx context.Context) error {
	addr := mainConfig.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	cache := newReferenceCache(mainConfig)
	p, _, err := newPipeline(mainConfig, cache)
	if err != nil {
		return err
	}

	handler := server.NewHandler(p, cache, mainConfig.Server.MaxUploadMB, appLogger)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.NewRouter(handler, mainConfig.Server.AllowedOrigins),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("server starting", "addr", addr, "output_dir", mainConfig.OutputDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	appLogger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	appLogger.Info("server stopped")
	return nil
}
