package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/covercash2/green/pkg/config"
	"github.com/covercash2/green/pkg/deploy"
	"github.com/covercash2/green/pkg/logging"
	"github.com/covercash2/green/pkg/serve"
	"github.com/covercash2/green/pkg/store"
	"github.com/covercash2/green/pkg/ultron"
	"github.com/covercash2/green/pkg/webhook"
)

var (
	serveConfig string
	serveAssets string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the green HTTP server",
	Long: `Run the green HTTP server.

Routes:
  /                 index of the configured routes
  /api/ca           the local CA certificate
  /healthcheck      health check
  /assets/          static files from the assets directory
  /webhook/github   GitHub push and ping webhooks
  /api/deployments  deployment history

The server runs until SIGINT or SIGTERM is received.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfig, "config", config.DefaultPath, "Path to the config file")
	serveCmd.Flags().StringVar(&serveAssets, "assets", "", "Path to the assets directory (overrides assets_path)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfig)
	if err != nil {
		return err
	}
	if serveAssets != "" {
		cfg.AssetsPath = serveAssets
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err = logging.New(logging.Options{
		Level:  resolveLogLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
	})
	if err != nil {
		return err
	}
	logAssets(cfg.AssetsPath)

	// Set up signal handling
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	srv, closeStore, err := newServer(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	return srv.Run(ctx, cfg.Address())
}

// newServer wires the server components described by cfg.
func newServer(cfg *config.Config) (*serve.Server, func(), error) {
	certs, err := serve.NewCertWatcher(cfg.CAPath, logger)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.New(store.Config{Path: cfg.Store.Path})
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	closeStore := func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}

	timeout, err := cfg.UltronTimeout()
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	notifier := ultron.NewClient(ultron.Config{
		URL:     cfg.Ultron.URL,
		Channel: cfg.Ultron.Channel,
		User:    cfg.Ultron.User,
		Timeout: timeout,
	}, nil)

	opts := []deploy.Option{
		deploy.WithStore(st),
		deploy.WithLogger(logger.Named("deploy")),
		deploy.WithDeliveryCache(webhook.NewDeliveryCache(webhook.DefaultCacheSize)),
	}
	if cfg.Deploy.Enabled() && cfg.Deploy.Commit {
		opts = append(opts, deploy.WithCommitter(deploy.NewGitCommitter(cfg.Deploy.AuthorName, cfg.Deploy.AuthorEmail)))
	}
	deployer := deploy.New(deployConfig(cfg), notifier, opts...)

	srv, err := serve.NewServer(serve.Config{
		Routes:        cfg.Routes,
		AssetsPath:    cfg.AssetsPath,
		AssetsIgnore:  cfg.AssetsIgnore,
		WebhookSecret: []byte(cfg.GitHub.WebhookSecret),
	}, certs, deployer, st, logger.Named("http"))
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	logger.Info("server configured",
		zap.Int("routes", len(cfg.Routes)),
		zap.Bool("deploy", cfg.Deploy.Enabled()),
		zap.String("repo", cfg.Deploy.Repo),
		zap.String("flake", cfg.Deploy.FlakePath))
	return srv, closeStore, nil
}

func deployConfig(cfg *config.Config) deploy.Config {
	dc := deploy.Config{
		Repo:   cfg.Deploy.Repo,
		Branch: cfg.Deploy.Branch,
	}
	if cfg.Deploy.Enabled() {
		dc.Flake = &deploy.Flake{Path: cfg.Deploy.FlakePath, Input: cfg.Deploy.Input}
	}
	return dc
}

func logAssets(path string) {
	entries, err := os.ReadDir(path)
	if err != nil {
		logger.Warn("unable to read assets directory", zap.String("path", path), zap.Error(err))
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	logger.Info("loaded assets from directory", zap.String("path", path), zap.Strings("assets", names))
}
