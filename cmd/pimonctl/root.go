package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/pimon/internal/client"
	"github.com/MrSnakeDoc/pimon/internal/domain"
	"github.com/MrSnakeDoc/pimon/internal/version"
)

type rootOptions struct {
	addr    string
	timeout time.Duration
	asJSON  bool
}

func (o *rootOptions) client() (*client.Client, error) {
	return client.New(o.addr, &http.Client{Timeout: o.timeout})
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "pimonctl",
		Short:         "Control a pimon device agent",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.addr, "addr", "a", envOr("PIMON_ADDR", "http://localhost:8080"), "agent base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", client.DefaultTimeout, "request timeout")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print raw JSON")

	root.AddCommand(
		newStatusCmd(opts),
		newWatchCmd(opts),
		newAlertsCmd(opts),
		newServiceCmd(opts),
		newServicesCmd(opts),
		newPowerCmd(opts),
		newProvisionCmd(opts),
		newProvisioningCmd(opts),
	)
	return root
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print a status snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			snap, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			return printSnapshot(cmd.OutOrStdout(), snap, opts.asJSON)
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	poller := &client.Poller{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll status, faster while CPU usage is moving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			poller.Source = c
			poller.OnSnapshot = func(s domain.SystemSnapshot) { _ = printSnapshot(out, s, opts.asJSON) }
			poller.OnError = func(err error) { fmt.Fprintln(cmd.ErrOrStderr(), "poll failed:", err) }

			if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&poller.FastInterval, "fast", client.DefaultFastInterval, "interval while CPU is changing")
	cmd.Flags().DurationVar(&poller.SlowInterval, "slow", client.DefaultSlowInterval, "interval while CPU is steady")
	cmd.Flags().Float64Var(&poller.CPUThreshold, "threshold", client.DefaultCPUThreshold, "CPU change in points that selects the fast interval")
	return cmd
}

func newAlertsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Show the alert flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			enabled, err := c.Alerts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "alerts enabled: %v\n", enabled)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "toggle",
		Short: "Flip the alert flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			enabled, err := c.ToggleAlerts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "alerts enabled: %v\n", enabled)
			return nil
		},
	})
	return cmd
}

func newServiceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "service <identifier> <start|stop|restart>",
		Short:     "Start, stop or restart a registered service",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(domain.ActionStart), string(domain.ActionStop), string(domain.ActionRestart)},
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := domain.ParseServiceAction(args[1])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			result, err := c.ControlService(cmd.Context(), args[0], action)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func newServicesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List registered services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			list, err := c.Services(cmd.Context())
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LABEL\tIDENTIFIER")
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\n", s.Label, s.Identifier)
			}
			return tw.Flush()
		},
	}
}

func newPowerCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "power",
		Short: "Reboot, shut down or schedule a reboot",
	}
	simple := func(use, short string, call func(*client.Client, context.Context) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := opts.client()
				if err != nil {
					return err
				}
				if err := call(c, cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), use, "requested")
				return nil
			},
		}
	}
	cmd.AddCommand(
		simple("reboot", "Reboot now", (*client.Client).Reboot),
		simple("shutdown", "Power off now", (*client.Client).Shutdown),
		&cobra.Command{
			Use:   "schedule <minutes>",
			Short: "Reboot after a delay",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				minutes, err := strconv.Atoi(args[0])
				if err != nil || minutes < 0 {
					return fmt.Errorf("minutes must be a non-negative integer, got %q", args[0])
				}
				c, err := opts.client()
				if err != nil {
					return err
				}
				if err := c.ScheduleReboot(cmd.Context(), minutes); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reboot scheduled in %d minute(s)\n", minutes)
				return nil
			},
		},
	)
	return cmd
}

func newProvisionCmd(opts *rootOptions) *cobra.Command {
	var fqdn, authID string
	cmd := &cobra.Command{
		Use:       "provision <install|update>",
		Short:     "Install or update the agent with a provisioning endpoint",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(domain.ProvisionInstall), string(domain.ProvisionUpdate)},
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := domain.ParseProvisionAction(args[0])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			if err := c.Provision(cmd.Context(), action, fqdn, authID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "provisioning queued; check `pimonctl provisioning` for the outcome")
			return nil
		},
	}
	cmd.Flags().StringVar(&fqdn, "fqdn", "", "provisioning host name")
	cmd.Flags().StringVar(&authID, "auth-id", "", "provisioning auth id")
	_ = cmd.MarkFlagRequired("fqdn")
	_ = cmd.MarkFlagRequired("auth-id")
	return cmd
}

func newProvisioningCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "provisioning",
		Short: "Show the provisioning parameters and last outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			info, err := c.Provisioning(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), info)
		},
	}
}

func printSnapshot(w io.Writer, s domain.SystemSnapshot, asJSON bool) error {
	if asJSON {
		return writeJSON(w, s)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "host\t%s (%s)\n", s.Hostname, s.IP)
	fmt.Fprintf(tw, "cpu\t%.1f%%\n", s.CPU)
	fmt.Fprintf(tw, "ram\t%.1f%%\n", s.RAM)
	fmt.Fprintf(tw, "disk\t%.1f%%\n", s.Disk)
	fmt.Fprintf(tw, "temp\t%s\n", s.Temperature)
	fmt.Fprintf(tw, "alerts\t%v\n", s.AlertsEnabled)
	if s.AgentStatus != "" {
		fmt.Fprintf(tw, "agent\t%s\n", s.AgentStatus)
	}

	labels := make([]string, 0, len(s.Services))
	for label := range s.Services {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(tw, "service %s\t%s\n", label, s.Services[label])
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
