package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/thatsimonsguy/sprinkler-controller/internal/app"
	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
	"github.com/thatsimonsguy/sprinkler-controller/internal/zone"
)

// zoneView is the JSON shape of a zone on the command line. Time is in minutes.
type zoneView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	GPIO        int    `json:"gpio"`
	Time        int    `json:"time"`
	Enabled     bool   `json:"enabled"`
	AutoOff     bool   `json:"auto_off"`
	SystemOrder int    `json:"system_order"`
	State       bool   `json:"state"`
}

func toZoneView(st model.ZoneStatus) zoneView {
	return zoneView{
		ID:          st.ID,
		Name:        st.Name,
		GPIO:        st.Pin,
		Time:        st.Minutes(),
		Enabled:     st.Enabled,
		AutoOff:     st.AutoOff,
		SystemOrder: st.SystemOrder,
		State:       st.Active,
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func newZoneCommand(rt *runtime) *cobra.Command {
	var byOrder bool

	cmd := &cobra.Command{
		Use:   "zone",
		Short: "Control and manage individual zones",
	}
	cmd.PersistentFlags().BoolVar(&byOrder, "by-order", false, "Treat the zone argument as a system order instead of an id")

	resolve := func(ctx context.Context, a *app.App, arg string) (*zone.Zone, error) {
		n, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid zone %q: %w", arg, err)
		}
		if byOrder {
			return a.Registry.ZoneByOrder(ctx, int(n))
		}
		return a.Registry.Zone(ctx, n)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "on <zone>",
			Short: "Open a zone, closing every other zone first",
			Long: `Open a zone, closing every other zone first. The valve stays open after
the command exits; use 'zone off' or 'zone run' for a timed run.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
					z, err := resolve(ctx, a, args[0])
					if err != nil {
						return err
					}
					if err := a.Registry.ActivateAndHold(ctx, z.ID); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Zone %d (%s) on\n", z.ID, z.Name)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "off <zone>",
			Short: "Close a zone",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
					z, err := resolve(ctx, a, args[0])
					if err != nil {
						return err
					}
					if err := a.Registry.Deactivate(ctx, z.ID); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Zone %d (%s) off\n", z.ID, z.Name)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status <zone>",
			Short: "Show a zone and whether its valve is open",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
					z, err := resolve(ctx, a, args[0])
					if err != nil {
						return err
					}
					st, err := z.Status()
					if err != nil {
						return err
					}
					if rt.jsonOut {
						return rt.printJSON(cmd, toZoneView(st))
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Zone %d (%s): %s\n", st.ID, st.Name, onOff(st.Active))
					return nil
				})
			},
		},
		newZoneRunCommand(rt, resolve),
		newZoneListCommand(rt),
		newZoneAddCommand(rt),
		&cobra.Command{
			Use:   "delete <zone>",
			Short: "Close and remove a zone",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
					z, err := resolve(ctx, a, args[0])
					if err != nil {
						return err
					}
					if err := a.Registry.Delete(ctx, z.ID); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Zone %d (%s) deleted\n", z.ID, z.Name)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "order <order>...",
			Short: "Assign system orders to zones in their current order",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				order := make([]int, 0, len(args))
				for _, arg := range args {
					n, err := strconv.Atoi(arg)
					if err != nil {
						return fmt.Errorf("invalid order %q: %w", arg, err)
					}
					order = append(order, n)
				}
				return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
					if err := a.Registry.Reorder(ctx, order); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Zones reordered")
					return nil
				})
			},
		},
	)
	return cmd
}

func newZoneRunCommand(rt *runtime, resolve func(context.Context, *app.App, string) (*zone.Zone, error)) *cobra.Command {
	var minutes int

	cmd := &cobra.Command{
		Use:   "run <zone>",
		Short: "Run a zone for its configured time and wait for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
				z, err := resolve(ctx, a, args[0])
				if err != nil {
					return err
				}
				d := z.RunDuration
				if cmd.Flags().Changed("minutes") {
					if d, err = zone.DurationFromMinutes(minutes); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Running zone %d (%s) for %s\n", z.ID, z.Name, d)
				if err := a.Registry.RunFor(ctx, z.ID, d); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Zone %d (%s) finished\n", z.ID, z.Name)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 0, "Override the zone's run time")
	return cmd
}

func newZoneListCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List zones in system order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
				statuses, err := a.Registry.Statuses(ctx)
				if err != nil {
					return err
				}

				views := make([]zoneView, 0, len(statuses))
				for _, st := range statuses {
					views = append(views, toZoneView(st))
				}
				if rt.jsonOut {
					return rt.printJSON(cmd, views)
				}

				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No zones configured.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ORDER\tID\tNAME\tGPIO\tTIME\tENABLED\tAUTO OFF\tSTATE")
				for _, v := range views {
					fmt.Fprintf(w, "%d\t%d\t%s\t%d\t%dm\t%t\t%t\t%s\n",
						v.SystemOrder, v.ID, v.Name, v.GPIO, v.Time, v.Enabled, v.AutoOff, onOff(v.State))
				}
				return w.Flush()
			})
		},
	}
}

func newZoneAddCommand(rt *runtime) *cobra.Command {
	var (
		name      string
		pin       int
		minutes   int
		disabled  bool
		noAutoOff bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a zone at the end of the system order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
				d, err := zone.DurationFromMinutes(minutes)
				if err != nil {
					return err
				}
				created, err := a.Registry.Create(ctx, model.Zone{
					Name:        name,
					Pin:         pin,
					RunDuration: d,
					Enabled:     !disabled,
					AutoOff:     !noAutoOff,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Zone %d (%s) added on gpio %d\n", created.ID, created.Name, created.Pin)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Zone name")
	cmd.Flags().IntVar(&pin, "gpio", -1, "BCM pin driving the zone relay")
	cmd.Flags().IntVar(&minutes, "time", 0, "Run time in minutes")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Leave the zone out of scheduled runs")
	cmd.Flags().BoolVar(&noAutoOff, "no-auto-off", false, "Do not close the valve automatically after a manual on")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("gpio")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}
