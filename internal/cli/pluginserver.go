package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatewaylabs/testbed/internal/config"
	"github.com/gatewaylabs/testbed/internal/logging"
	"github.com/gatewaylabs/testbed/internal/plugins"
)

func newPluginServerCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "plugin-server",
		Short: "Serve WASM plugin artifacts over HTTP",
		Long: `Starts the plugin file server. It serves an HTML index at /, a JSON
health report at /health, and binary artifacts at /plugins/{name}, scanning
the configured directory fresh on every request.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runPluginServer(cfg)
		},
	}
}

func runPluginServer(cfg *config.Config) error {
	logger := logging.NewLogger("plugin-server", cfg.LogLevel)

	store := plugins.NewStore(cfg.PluginDir)
	if err := store.CheckDir(); err != nil {
		return err
	}

	// The key-auth artifact is what the gateway tests exercise first; call
	// out its absence early instead of failing the first download.
	keyAuth := filepath.Join(cfg.PluginDir, "key-auth"+plugins.ArtifactExtension)
	if _, err := os.Stat(keyAuth); err != nil {
		logger.Warn("key-auth artifact not present", "path", keyAuth)
	}

	server := plugins.NewServer(cfg.PluginListenAddr, store, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigChan:
		logger.Info("received shutdown signal, shutting down gracefully", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("error during shutdown", "error", err)
		return err
	}
	return <-errCh
}
