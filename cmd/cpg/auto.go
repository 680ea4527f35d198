package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newAutoCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "auto <prod-type>",
		Short: "Run one unattended session now",
		Long: `Runs the same unattended session the scheduler would start for a product
type (am, pm, im, mon, sea, ann), in the foreground. Operators can take over
from the dashboard during the display and review windows. Interrupting the
command abandons the wait without changing the session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuto(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to cpg config file")
	return cmd
}

func runAuto(cmd *cobra.Command, configPath, prodType string) error {
	pt, err := resolveProdType(prodType)
	if err != nil {
		return err
	}
	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := a.driver.Run(ctx, pt)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if s == nil {
		fmt.Fprintf(out, "Auto generation of %s is disabled\n", pt)
		return nil
	}
	st := s.CurrentStatus()
	fmt.Fprintf(out, "Session %s: %s (%s) %s\n", s.ID(), s.CurrentState(), st.Code, st.Description)
	return nil
}
