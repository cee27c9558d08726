package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/navhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath    string
		port          string
		host          string
		width         int
		height        int
		followRefresh bool
		logLevel      string
		dev           bool
	)

	cmd := &cobra.Command{
		Use:          "navhost",
		Short:        "Headless browser window host",
		Long:         "navhost runs browser windows backed by headless renderer processes and exposes them over HTTP and a WebSocket notification stream.",
		Version:      server.Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			load := config.Load
			if configPath != "" {
				load = func() (*config.Config, error) { return config.LoadFile(configPath) }
			}
			cfg, err := load()
			if err != nil {
				return err
			}

			// Flags override the environment and the config file
			flags := cmd.Flags()
			if flags.Changed("port") {
				cfg.Server.Port = port
			}
			if flags.Changed("host") {
				cfg.Server.Host = host
			}
			if flags.Changed("width") {
				cfg.Window.Width = width
			}
			if flags.Changed("height") {
				cfg.Window.Height = height
			}
			if flags.Changed("follow-refresh") {
				cfg.Renderer.FollowRefresh = followRefresh
			}
			if flags.Changed("log-level") {
				cfg.Logging.Level = logLevel
			}
			if flags.Changed("dev") {
				cfg.Logging.Development = dev
			}

			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file (replaces environment configuration)")
	flags.StringVar(&port, "port", "8000", "Server port")
	flags.StringVar(&host, "host", "0.0.0.0", "Server host")
	flags.IntVar(&width, "width", 800, "Default window width")
	flags.IntVar(&height, "height", 600, "Default window height")
	flags.BoolVar(&followRefresh, "follow-refresh", false, "Follow <meta http-equiv=refresh> redirects")
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.BoolVar(&dev, "dev", false, "Development logging")

	return cmd
}

func run(cfg *config.Config) error {
	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Close(ctx)
	case err := <-errChan:
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := srv.Close(ctx); closeErr != nil && err == nil {
			err = closeErr
		}
		return err
	}
}
