package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/product"
	"github.com/zulandar/cpg/internal/session"
	"github.com/zulandar/cpg/internal/transmit"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"s"},
		Short:   "Inspect and drive product generation sessions",
	}

	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionCreateCmd())
	cmd.AddCommand(newSessionDisplayCmd())
	cmd.AddCommand(newSessionFormatCmd())
	cmd.AddCommand(newSessionReviewCmd())
	cmd.AddCommand(newSessionSendCmd())
	cmd.AddCommand(newSessionCancelCmd())
	return cmd
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "operator"
}

// withSession opens the app, loads one session and runs fn against it.
func withSession(cmd *cobra.Command, configPath, id string, fn func(context.Context, *app, *session.Session) error) error {
	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := a.factory.BySessionID(ctx, id)
	if err != nil {
		return err
	}
	return fn(ctx, a, s)
}

func parseChannel(s string) (climate.Source, error) {
	switch ch := climate.Source(strings.ToUpper(s)); ch {
	case climate.SourceNWWS, climate.SourceNWR:
		return ch, nil
	}
	return "", fmt.Errorf("unknown channel %q (want NWWS or NWR)", s)
}

func newSessionListCmd() *cobra.Command {
	var (
		configPath string
		prodType   string
		active     bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := session.ListFilter{ActiveOnly: active, Limit: limit}
			if prodType != "" {
				pt, err := resolveProdType(prodType)
				if err != nil {
					return err
				}
				f.ProdType = pt
			}
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()
			rows, err := a.store.List(context.Background(), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tSTATE\tSTATUS\tUPDATED")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, climate.PeriodType(r.ProdType),
					climate.StateFromValue(r.State), climate.StatusFromValue(r.Status),
					r.LastUpdated.UTC().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to cpg config file")
	cmd.Flags().StringVarP(&prodType, "type", "t", "", "filter by product type (am, pm, im, mon, sea, ann)")
	cmd.Flags().BoolVar(&active, "active", false, "only sessions that can still progress")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum sessions to list (0 for all)")
	return cmd
}

func newSessionShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session with its products and send history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, configPath, args[0], func(ctx context.Context, a *app, s *session.Session) error {
				sent, err := transmit.Sent(ctx, a.db, s.ID())
				if err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), s)
				if len(sent) > 0 {
					out := cmd.OutOrStdout()
					fmt.Fprintln(out, "\nSent:")
					w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
					for _, r := range sent {
						fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", r.ProdID, r.FileName, r.UserID, r.SendTime.UTC().Format(time.RFC3339))
					}
					w.Flush()
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to cpg config file")
	return cmd
}

func printSession(out io.Writer, s *session.Session) {
	st := s.CurrentStatus()
	fmt.Fprintf(out, "Session:  %s\n", s.ID())
	fmt.Fprintf(out, "Run:      %s %s\n", s.RunType(), s.ProdType())
	fmt.Fprintf(out, "State:    %s\n", s.CurrentState())
	fmt.Fprintf(out, "Status:   %s %s\n", st.Code, st.Description)
	fmt.Fprintf(out, "Started:  %s\n", s.StartedAt().Format(time.RFC3339))
	fmt.Fprintf(out, "Updated:  %s\n", s.LastUpdated().Format(time.RFC3339))
	if pe := s.PendingExpiration(); !pe.IsZero() {
		fmt.Fprintf(out, "Expires:  %s\n", pe.Format(time.RFC3339))
	}
	if r := s.ReportData(); r != nil {
		fmt.Fprintf(out, "Report:   %s, %d stations\n", r.Kind(), len(r.StationReports()))
	}

	pd := s.ProdData()
	if pd.Empty() {
		return
	}
	for _, ch := range climate.Channels {
		set := pd.Set(ch)
		if set == nil {
			continue
		}
		fmt.Fprintf(out, "\n%s products (%s, %d unsent):\n", ch, set.Status, set.NumUnsent())
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, key := range set.Keys() {
			p := set.Products[key]
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", key, p.PeriodType, p.Status, p.StatusDesc)
		}
		w.Flush()
	}
}

func newSessionCreateCmd() *cobra.Command {
	var (
		configPath string
		date       string
		begin      string
		end        string
		stations   []string
	)

	cmd := &cobra.Command{
		Use:   "create <prod-type>",
		Short: "Start a manual session and create its report data",
		Long: `Starts a manual session for a product type and runs the create stage.
Daily types take --date; period types take --begin and --end. Omitted dates
default to the last complete day or period.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pt, err := resolveProdType(args[0])
			if err != nil {
				return err
			}
			setting := climate.ProductSetting{Stations: stations}
			for _, f := range []struct {
				val string
				dst *time.Time
			}{{date, &setting.Date}, {begin, &setting.Begin}, {end, &setting.End}} {
				if f.val == "" {
					continue
				}
				t, err := time.Parse(time.DateOnly, f.val)
				if err != nil {
					return fmt.Errorf("invalid date %q: want YYYY-MM-DD", f.val)
				}
				*f.dst = t
			}

			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := context.Background()
			s := a.factory.New(ctx, int(climate.RunTypeManual), int(pt))
			if err := s.ManualCreate(ctx, setting); err != nil {
				return fmt.Errorf("session %s: %w", s.ID(), err)
			}
			printSession(cmd.OutOrStdout(), s)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to cpg config file")
	cmd.Flags().StringVar(&date, "date", "", "report date for daily types (YYYY-MM-DD)")
	cmd.Flags().StringVar(&begin, "begin", "", "period begin for period types (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "period end for period types (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&stations, "station", nil, "limit the report to these stations (repeatable)")
	return cmd
}

func newSessionDisplayCmd() *cobra.Command {
	var (
		configPath string
		user       string
		override   bool
	)

	cmd := &cobra.Command{
		Use:   "display <session-id>",
		Short: "Take over the display step and commit the created report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, configPath, args[0], func(ctx context.Context, a *app, s *session.Session) error {
				if _, err := s.StartDisplay(ctx, user); err != nil {
					return err
				}
				if err := s.FinalizeDisplay(ctx, nil, override); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s: %s\n", s.ID(), s.CurrentState())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to cpg config file")
	cmd.Flags().StringVarP(&user, "user", "u", defaultUser(), "operator name recorded with the action")
	cmd.Flags().BoolVar(&override, "override-approvals", false, "commit even if the report would be rejected")
	return cmd
}

func newSessionFormatCmd() *cobra.Command {
	var (
		configPath string
		user       string
	)

	cmd := &cobra.Command{
		Use:   "format <session-id>",
		Short: "Format the products of a displayed session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, configPath, args[0], func(ctx context.Context, a *app, s *session.Session) error {
				if _, err := s.ManualFormat(ctx, user); err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), s)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to cpg config file")
	cmd.Flags().StringVarP(&user, "user", "u", defaultUser(), "operator name recorded with the action")
	return cmd
}

func newSessionReviewCmd() *cobra.Command {
	var (
		configPath string
		user       string
		channel    string
	)

	cmd := &cobra.Command{
		Use:   "review <session-id>",
		Short: "Take over review and print one channel's products",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := parseChannel(channel)
			if err != nil {
				return err
			}
			return withSession(cmd, configPath, args[0], func(ctx context.Context, a *app, s *session.Session) error {
				set, err := s.StartReview(ctx, ch, user)
				if err != nil {
					return err
				}
				printSet(cmd.OutOrStdout(), set)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to cpg config file")
	cmd.Flags().StringVarP(&user, "user", "u", defaultUser(), "operator name recorded with the action")
	cmd.Flags().StringVar(&channel, "channel", string(climate.SourceNWWS), "channel to review (NWWS or NWR)")
	return cmd
}

func printSet(out io.Writer, set *product.Set) {
	keys := set.Keys()
	sort.Strings(keys)
	if len(keys) == 0 {
		fmt.Fprintf(out, "No %s products.\n", set.Type)
		return
	}
	for _, key := range keys {
		p := set.Products[key]
		fmt.Fprintf(out, "=== %s (%s, %s) ===\n%s\n", key, p.PeriodType, p.Status, strings.TrimRight(p.Text, "\n"))
	}
}

func newSessionSendCmd() *cobra.Command {
	var (
		configPath string
		user       string
		channel    string
		practice   bool
	)

	cmd := &cobra.Command{
		Use:   "send <session-id>",
		Short: "Send every unsent product of one channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := parseChannel(channel)
			if err != nil {
				return err
			}
			return withSession(cmd, configPath, args[0], func(ctx context.Context, a *app, s *session.Session) error {
				resp := s.SendAll(ctx, ch, !practice, user)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s: %s %s\n", resp.Channel, resp.Status, resp.Desc)
				for _, p := range resp.Sending {
					fmt.Fprintf(out, "  %s\t%s\t%s\n", p.Key, p.Status, p.StatusDesc)
				}
				switch resp.Status {
				case product.SetHasError, product.SetFatalError:
					return fmt.Errorf("send %s: %s", resp.Channel, resp.Status)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to cpg config file")
	cmd.Flags().StringVarP(&user, "user", "u", defaultUser(), "operator name recorded with the action")
	cmd.Flags().StringVar(&channel, "channel", string(climate.SourceNWWS), "channel to send (NWWS or NWR)")
	cmd.Flags().BoolVar(&practice, "practice", false, "send in practice mode")
	return cmd
}

func newSessionCancelCmd() *cobra.Command {
	var (
		configPath string
		user       string
		reason     string
	)

	cmd := &cobra.Command{
		Use:   "cancel <session-id>",
		Short: "Cancel a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, configPath, args[0], func(ctx context.Context, a *app, s *session.Session) error {
				code := s.Cancel(ctx, user, reason)
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s: %s (%s)\n", s.ID(), s.CurrentState(), code)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to cpg config file")
	cmd.Flags().StringVarP(&user, "user", "u", defaultUser(), "operator name recorded with the action")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded with the cancellation")
	return cmd
}
