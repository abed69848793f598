package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/streamcart/cartsync/pkg/agent"
	"github.com/streamcart/cartsync/pkg/api"
	"github.com/streamcart/cartsync/pkg/auth"
	"github.com/streamcart/cartsync/pkg/cache"
	"github.com/streamcart/cartsync/pkg/config"
	"github.com/streamcart/cartsync/pkg/hub"
	"github.com/streamcart/cartsync/pkg/log"
	"github.com/streamcart/cartsync/pkg/reconcile"
	"github.com/streamcart/cartsync/pkg/restapi"
)

// RunCommand creates the run command
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start the synchronization daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Local API listen address (overrides config listen_addr)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return run(ctx, c.String("config"), c.String("listen"))
		},
	}
}

func run(ctx context.Context, configPath, listenOverride string) error {
	logger := log.ForComponent("daemon")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.APIBaseURL == "" || cfg.HubBaseURL == "" {
		return errors.New("api_base_url and hub_base_url must be configured (run 'cartsync init' and edit the config)")
	}
	listenAddr := cfg.ListenAddr
	if listenOverride != "" {
		listenAddr = listenOverride
	}

	// The watcher attaches to the credential directory, so it must exist
	// before the first login.
	if err := os.MkdirAll(filepath.Dir(cfg.CredentialFile), 0700); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}
	creds, err := auth.NewStore(cfg.CredentialFile)
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}

	if err := os.MkdirAll(cfg.StorageDir, 0700); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}
	snapshots, err := cache.NewStore(cfg.StorageDir)
	if err != nil {
		return fmt.Errorf("opening snapshot cache: %w", err)
	}
	defer func() {
		if err := snapshots.Close(); err != nil {
			logger.Warnf("closing snapshot cache: %v", err)
		}
	}()

	a := agent.New(agent.Config{
		Hub: hub.NewManager(hub.Config{
			BaseURL:    cfg.HubBaseURL,
			Tokens:     creds,
			Backoff:    cfg.ReconnectBackoff.Duration,
			MaxBackoff: cfg.ReconnectMaxBackoff.Duration,
		}),
		REST:      restapi.NewClient(cfg.APIBaseURL, creds, nil),
		Scheduler: reconcile.NewScheduler(cfg.DebounceWindow.Duration),
		Cache:     snapshots,
	})
	defer a.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The login flow lives in the main application; the daemon just reacts
	// to the credential file appearing or going away.
	go func() {
		if err := creds.Watch(runCtx, func(change auth.Change) {
			a.OnCredentialChange(runCtx, change)
		}); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("credential watcher stopped: %v", err)
		}
	}()

	if err := a.Start(runCtx); err != nil {
		if !errors.Is(err, auth.ErrNoCredential) {
			return fmt.Errorf("starting agent: %w", err)
		}
		logger.Infof("no credential yet, waiting for login")
	}

	server := &http.Server{
		Addr:    listenAddr,
		Handler: api.CorsMiddleware(api.NewServer(a).Router()),
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("local API listening on %s", listenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof("received %s, shutting down", sig)
	case err := <-serverErr:
		return fmt.Errorf("local API server: %w", err)
	case <-runCtx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutting down local API: %v", err)
	}
	return nil
}
