package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatewaylabs/testbed/internal/config"
	"github.com/gatewaylabs/testbed/internal/logging"
	"github.com/gatewaylabs/testbed/internal/registry"
	"github.com/gatewaylabs/testbed/internal/users"
)

func newUserServiceCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "user-service",
		Short: "Run the mock user service with registry self-registration",
		Long: `Starts the mock user REST service. On startup it registers itself with
the configured service registry, keeps the registration alive with a
30-second heartbeat loop, and deregisters on graceful shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runUserService(cfg)
		},
	}
}

func runUserService(cfg *config.Config) error {
	logger := logging.NewLogger("user-service", cfg.LogLevel)

	seed := users.DefaultSeed()
	if cfg.UserSeedFile != "" {
		loaded, err := users.LoadSeedFile(cfg.UserSeedFile)
		if err != nil {
			return err
		}
		seed = loaded
	}
	store := users.NewStore(seed)

	server := users.NewServer(cfg.UserListenAddr, store, logger)

	client := registry.NewClient(cfg.RegistryURL, nil)
	lifecycle := registry.NewLifecycle(client, registry.Instance{
		ServiceName: cfg.ServiceName,
		IP:          cfg.ServiceIP,
		Port:        cfg.ServicePort,
		NamespaceID: cfg.NamespaceID,
		GroupName:   cfg.GroupName,
		Ephemeral:   true,
	}, cfg.HeartbeatInterval(), logger.Named("registry"))

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lifecycle.Start(runCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		cancel()
		lifecycle.Stop(context.Background())
		return err
	case sig := <-sigChan:
		logger.Info("received shutdown signal, shutting down gracefully", "signal", sig.String())
	}

	// Stop heartbeating and deregister before the listener goes away, so
	// the registry stops routing to the instance first.
	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	lifecycle.Stop(stopCtx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
		return err
	}
	return <-errCh
}
