// Command indexer runs the long-lived scanner: startup backfill followed
// by the poll loop, with the health/metrics server served alongside.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/multisig-chain/wallet-indexer/internal/bootstrap"
	"github.com/multisig-chain/wallet-indexer/internal/config"
	"github.com/multisig-chain/wallet-indexer/internal/health"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "indexer",
		Short: "Index multisig wallet events into the projection store",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the indexer's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the backfill-then-poll indexing loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(context.Background())
		},
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.RPC.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var healthServer *health.Server
	if cfg.HealthEnabled {
		healthServer = health.NewServer(
			fmt.Sprintf(":%d", cfg.HealthPort),
			app.RPC, app.Store, app.Pipeline,
			cfg.ConfirmationDepth, cfg.MaxBlocksBehind, app.Log,
		)
		go func() {
			if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				app.Log.WithError(err).Warn("indexer: health server stopped")
			}
		}()
	}

	pipelineErr := make(chan error, 1)
	go func() { pipelineErr <- app.Pipeline.Run(ctx) }()

	var runErr error
	select {
	case <-ctx.Done():
		app.Log.Info("indexer: shutdown signal received")
	case err := <-pipelineErr:
		if err != nil {
			app.Log.WithError(err).Error("indexer: pipeline exited with error")
			runErr = err
		}
	}

	app.Pipeline.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if healthServer != nil {
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			app.Log.WithError(err).Warn("indexer: health server shutdown error")
			if runErr == nil {
				runErr = err
			}
		}
	}

	return runErr
}
