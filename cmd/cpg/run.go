package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/cpg/internal/dashboard"
	"github.com/zulandar/cpg/internal/logging"
	"github.com/zulandar/cpg/internal/scheduler"
)

func newRunCmd() *cobra.Command {
	var (
		configPath  string
		port        int
		noDashboard bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the cpg daemon",
		Long: `Starts the scheduler, which runs an unattended session for each configured
product type on its cron schedule and sweeps expired records, together with
the operator dashboard API. Stops on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, configPath, port, noDashboard)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to cpg config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "dashboard port (overrides config)")
	cmd.Flags().BoolVar(&noDashboard, "no-dashboard", false, "run the scheduler only")
	return cmd
}

func runDaemon(cmd *cobra.Command, configPath string, port int, noDashboard bool) error {
	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := scheduler.New(a.cfg, a.driver, a.purger, a.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cmd, a, sched, port, noDashboard)
}

// serve runs the scheduler and, unless disabled, the dashboard until ctx is
// done or either of them fails.
func serve(ctx context.Context, cmd *cobra.Command, a *app, sched *scheduler.Scheduler, port int, noDashboard bool) error {
	out := cmd.OutOrStdout()
	for _, e := range sched.Entries() {
		fmt.Fprintf(out, "Scheduled %-14s %s\n", e.Name, e.Spec)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- sched.Run(ctx) }()
	running := 1

	if !noDashboard {
		if port <= 0 {
			port = a.cfg.Dashboard.Port
		}
		running++
		go func() {
			errCh <- dashboard.Start(ctx, dashboard.StartOpts{
				DB:      a.db,
				Factory: a.factory,
				Store:   a.store,
				Port:    port,
				Out:     out,
				Logger:  logging.Component(a.logger, "dashboard"),
			})
		}()
	}

	a.logger.Info().Str("site", a.cfg.Site).Msg("cpg: daemon started")

	var firstErr error
	for ; running > 0; running-- {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) && firstErr == nil {
			firstErr = err
		}
		cancel()
	}
	fmt.Fprintln(out, "Shut down.")
	return firstErr
}
