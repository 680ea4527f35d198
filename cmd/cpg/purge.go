package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPurgeCmd() *cobra.Command {
	var (
		configPath string
		sessions   time.Duration
		records    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete expired sessions, sent records and notifications now",
		Long: `Runs the retention sweeps the daemon runs on its purge schedules, once.
Retention periods come from the config unless overridden.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if sessions > 0 {
				a.purger.SessionRetention = sessions
			}
			if records > 0 {
				a.purger.SentRecordRetention = records
			}

			r := a.purger.Run(context.Background())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sessions:      %d\n", r.Sessions)
			fmt.Fprintf(out, "Sent records:  %d\n", r.SentRecords)
			fmt.Fprintf(out, "Notifications: %d\n", r.Notifications)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to cpg config file")
	cmd.Flags().DurationVar(&sessions, "sessions", 0, "session retention (e.g. 720h)")
	cmd.Flags().DurationVar(&records, "sent-records", 0, "sent record retention (e.g. 2160h)")
	return cmd
}
