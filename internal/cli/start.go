package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/bouncer/internal/config"
	"github.com/roach88/bouncer/internal/dispatch"
	"github.com/roach88/bouncer/internal/engine"
	"github.com/roach88/bouncer/internal/store"
	"github.com/roach88/bouncer/internal/watch"
)

// NewStartCommand creates the start command.
func NewStartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Watch the configured directory and run checks on changes",
		Long: `Start the bouncer watch loop.

Watches the configured directory, debounces bursts of writes, and runs
every applicable check on each settled change. Results are appended to
the audit log and forwarded to the configured notification sinks.

Example:
  bouncer start -c bouncer.yaml
  bouncer start --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(rootOpts, cmd)
		},
	}
	return cmd
}

func runStart(opts *RootOptions, cmd *cobra.Command) error {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx, cfg, st, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	deb := watch.NewDebouncer(cfg.Delay())
	watcher, err := watch.NewWatcher(cfg.WatchDir, cfg.Recursive, cfg.IgnorePatterns, deb.Observe, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start watcher", err)
	}

	logger.Info("bouncer starting", "watch_dir", cfg.WatchDir,
		"recursive", cfg.Recursive, "debounce", cfg.Delay(), "db", cfg.Database)
	fmt.Fprintln(cmd.OutOrStdout(), "Watching", cfg.WatchDir, "- press Ctrl-C to stop.")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return eng.Run(gctx, deb.Events()) })

	err = g.Wait()

	// Drain so debounce timers that fire after the engine stopped can
	// deliver; Close waits for them before closing the channel.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range deb.Events() {
		}
	}()
	deb.Close()
	<-drained

	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "watch loop failed", err)
	}
	logger.Info("bouncer stopped gracefully")
	return nil
}

// buildEngine assembles the full pipeline behind the orchestrator:
// agent client, check registry, notification sinks, action rules, and
// the audit clock resumed from the store.
func buildEngine(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*engine.Engine, error) {
	client := buildAgent(cfg)

	registry, err := buildRegistry(cfg, client, st)
	if err != nil {
		return nil, err
	}
	if registry.Len() == 0 {
		return nil, fmt.Errorf("no checks enabled")
	}

	sinks, err := buildNotifiers(cfg)
	if err != nil {
		return nil, err
	}
	rules, err := buildRules(cfg, client)
	if err != nil {
		return nil, err
	}
	dispatcher := dispatch.New(sinks, rules, st, logger)

	lastSeq, err := st.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume audit clock: %w", err)
	}

	engOpts := []engine.Option{
		engine.WithClock(engine.NewClockAt(lastSeq)),
		engine.WithCheckTimeout(cfg.Timeout()),
		engine.WithMaxConcurrent(cfg.MaxConcurrent),
		engine.WithMaxFileSize(cfg.MaxFileSize),
		engine.WithReportOnly(cfg.ReportOnly),
		engine.WithWriteGuard(engine.NewWriteGuard(cfg.MaxFileSize)),
	}
	return engine.New(registry, st, dispatcher, logger, engOpts...), nil
}
