package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/runstage/runstage/internal/api"
	"github.com/runstage/runstage/internal/config"
	"github.com/runstage/runstage/internal/lock"
	"github.com/runstage/runstage/internal/log"
	"github.com/runstage/runstage/internal/manager"
	"github.com/runstage/runstage/internal/manager/cli"
	"github.com/runstage/runstage/internal/manager/local"
	"github.com/runstage/runstage/internal/manager/queued"
	"github.com/runstage/runstage/internal/storage"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "start":
		os.Exit(runStart(args))
	case "version":
		fmt.Printf("runstage version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`runstage - Remote job staging and execution service

Usage:
  runstage <command> [flags]

Commands:
  start     Start the service in foreground
  version   Show version information
  help      Show this help message

Flags for start:
  --config  Path to configuration file or directory
`)
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if *configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		*configPath = discovered
		fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", *configPath)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	root := log.New(os.Stderr, cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent(root, "main")
	logger.Info("runstage starting", "version", version, "config", *configPath)

	if err := os.MkdirAll(cfg.Staging.Root, 0o755); err != nil {
		logger.Error("failed to create staging root", "path", cfg.Staging.Root, "error", err)
		return 1
	}

	pidLock, err := lock.Acquire(lock.ForStagingRoot(cfg.Staging.Root))
	if err != nil {
		logger.Error("failed to acquire staging root lock (another instance may be running)",
			"path", lock.ForStagingRoot(cfg.Staging.Root), "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired staging root lock", "path", pidLock.Path())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr, closeMgr, err := buildManager(ctx, cfg, root)
	if err != nil {
		logger.Error("failed to build manager", "kind", cfg.Manager.Kind, "error", err)
		return 1
	}
	defer closeMgr()
	logger.Info("manager ready", "kind", cfg.Manager.Kind, "staging_root", cfg.Staging.Root)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)

	if cfg.API.Enabled {
		apiServer := api.New(api.Config{
			Listen:      cfg.API.Listen,
			APIKey:      cfg.API.Auth.APIKey,
			ManagerKind: cfg.Manager.Kind,
		}, mgr, log.WithComponent(root, "api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("runstage running (press Ctrl+C to stop)")

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("runstage stopped")
	return 0
}

// buildManager constructs the configured backend. The returned close func
// releases backend resources and is safe to call once.
func buildManager(ctx context.Context, cfg *config.Config, root *slog.Logger) (manager.Manager, func(), error) {
	dirOpts, err := directoryOptions(cfg)
	if err != nil {
		return nil, nil, err
	}

	logger := log.WithComponent(root, "manager")

	switch cfg.Manager.Kind {
	case "local":
		m, err := local.New(cfg.Staging.Root, dirOpts, logger)
		if err != nil {
			return nil, nil, err
		}
		return m, func() {}, nil

	case "queued":
		db, err := storage.OpenSQLite(ctx, cfg.Manager.Database)
		if err != nil {
			return nil, nil, err
		}
		m, err := queued.New(cfg.Staging.Root, dirOpts, db, cfg.Manager.Workers, logger)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return m, func() {
			m.Close()
			db.Close()
		}, nil

	case "cli":
		opts := cli.Options{
			SubmitCommand: cfg.Manager.Scheduler.Submit,
			StatusCommand: cfg.Manager.Scheduler.Status,
			KillCommand:   cfg.Manager.Scheduler.Kill,
			StatusMap:     schedulerStatusMap(cfg.Manager.Scheduler.StatusMap),
		}
		m, err := cli.New(cfg.Staging.Root, dirOpts, opts, logger)
		if err != nil {
			return nil, nil, err
		}
		return m, func() {}, nil

	case "pbs":
		m, err := cli.New(cfg.Staging.Root, dirOpts, cli.PBSOptions(), logger)
		if err != nil {
			return nil, nil, err
		}
		return m, func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown manager kind %q", cfg.Manager.Kind)
}

func directoryOptions(cfg *config.Config) (manager.DirectoryOptions, error) {
	umask, err := config.ParseOctal(cfg.Staging.FixupUmask)
	if err != nil {
		return manager.DirectoryOptions{}, err
	}
	mode, err := config.ParseOctal(cfg.Staging.FixupMode)
	if err != nil {
		return manager.DirectoryOptions{}, err
	}
	return manager.DirectoryOptions{
		FixupUmask: umask,
		FixupMode:  mode,
		FixupGID:   cfg.Staging.FixupGID,
	}, nil
}

func schedulerStatusMap(raw map[string]string) map[string]manager.Status {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]manager.Status, len(raw))
	for word, status := range raw {
		out[word] = manager.Status(status)
	}
	return out
}
