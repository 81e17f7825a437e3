package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thatsimonsguy/sprinkler-controller/internal/app"
	"github.com/thatsimonsguy/sprinkler-controller/internal/controllers/systemcontroller"
)

type systemView struct {
	SystemEnabled bool       `json:"system_enabled"`
	Zones         []zoneView `json:"zones"`
}

func enabledLabel(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}

func newSysCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sys",
		Short: "Control the whole system",
	}

	setEnabled := func(enabled bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.System.SetEnabled(ctx, enabled); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "System %s\n", enabledLabel(enabled))
				return nil
			})
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "on",
			Short: "Enable scheduled runs",
			Args:  cobra.NoArgs,
			RunE:  setEnabled(true),
		},
		&cobra.Command{
			Use:   "off",
			Short: "Disable scheduled runs",
			Args:  cobra.NoArgs,
			RunE:  setEnabled(false),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the system flag and every zone",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
					enabled, err := a.System.Enabled(ctx)
					if err != nil {
						return err
					}
					statuses, err := a.Registry.Statuses(ctx)
					if err != nil {
						return err
					}
					view := systemView{SystemEnabled: enabled, Zones: make([]zoneView, 0, len(statuses))}
					for _, st := range statuses {
						view.Zones = append(view.Zones, toZoneView(st))
					}
					if rt.jsonOut {
						return rt.printJSON(cmd, view)
					}

					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "System: %s\n", enabledLabel(enabled))
					for _, z := range view.Zones {
						fmt.Fprintf(out, "  %d. %s (id %d): %s\n", z.SystemOrder, z.Name, z.ID, onOff(z.State))
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "run",
			Short: "Water every enabled zone in order, if the system is enabled",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
					outcome, err := a.System.Run(ctx)
					if err != nil {
						return err
					}
					if outcome == systemcontroller.OutcomeSkipped {
						fmt.Fprintln(cmd.OutOrStdout(), "System disabled, run skipped")
						return nil
					}
					fmt.Fprintln(cmd.OutOrStdout(), "System run completed")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "winterize",
			Short: "Purge every zone: one minute on, three minutes soak",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
					if err := a.System.Winterize(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Winterize completed")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "test",
			Short: "Open every zone briefly in order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
					if err := a.System.TestAll(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Zone test completed")
					return nil
				})
			},
		},
	)
	return cmd
}
