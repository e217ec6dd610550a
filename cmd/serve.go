package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/varopt/internal/server"
	"github.com/cwbudde/varopt/internal/store"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveNoStore bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job server",
	Long: `Starts an HTTP server that accepts problem files as optimization jobs.

Endpoints:
  POST /api/v1/jobs              submit {"problem": "...", "backend": "...", "save": true}
  GET  /api/v1/jobs              list jobs
  GET  /api/v1/jobs/<id>/status  job status and result
  GET  /api/v1/jobs/<id>/stream  progress as server-sent events
  POST /api/v1/jobs/<id>/cancel  stop a running job
  GET  /api/v1/runs[/<id>]       runs saved under --data-dir`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().BoolVar(&serveNoStore, "no-store", false, "Do not save runs")
	serveCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Base directory for stored runs")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var runStore store.Store
	if !serveNoStore {
		fsStore, err := store.NewFSStore(dataDir)
		if err != nil {
			return err
		}
		runStore = fsStore
	}

	srv := server.NewServer(serveAddr, runStore)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("Server stopped")
	return nil
}
