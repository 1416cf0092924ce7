package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/formprobe/internal/api"
	"github.com/dgnsrekt/formprobe/internal/artifacts"
	"github.com/dgnsrekt/formprobe/internal/netutil"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored diagnostics over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ln, err := netutil.Listen(cfg.BindAddr, cfg.BindCandidates, cfg.BindAutoFallback)
	if err != nil {
		return fmt.Errorf("select bind address: %w", err)
	}

	srv, errCh, err := startArtifactServer(ln)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return shutdownServer(srv)
}

// startArtifactServer serves the diagnostics store on ln in the
// background. The channel reports a serve failure and is closed when the
// server stops. ln is closed on error.
func startArtifactServer(ln net.Listener, opts ...api.Option) (*http.Server, <-chan error, error) {
	dir := filepath.Join(cfg.ArtifactsDir, "diagnostics")
	store, err := artifacts.NewStore(dir)
	if err != nil {
		_ = ln.Close()
		return nil, nil, fmt.Errorf("open artifact store: %w", err)
	}
	addr := ln.Addr().String()

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(store, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		slog.Info("formprobe serving artifacts", "addr", addr, "dir", dir, "docs", "http://"+addr+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("artifact server failed: %w", err)
		}
	}()
	return srv, errCh, nil
}

func shutdownServer(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("formprobe shutdown failed", "error", err)
		return err
	}
	return nil
}
