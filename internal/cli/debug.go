package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/thatsimonsguy/sprinkler-controller/internal/app"
	"github.com/thatsimonsguy/sprinkler-controller/internal/pinctrl"
)

// newPinctrl is replaced in tests.
var newPinctrl = pinctrl.New

type pinView struct {
	Zone   string `json:"zone"`
	Pin    int    `json:"gpio"`
	Mode   string `json:"mode"`
	Pull   string `json:"pull"`
	Drive  string `json:"drive"`
	Level  string `json:"level"`
	Active bool   `json:"active"`
}

func newDebugCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Hardware diagnostics",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "pins",
		Short: "Show the raw pinctrl state of every zone pin",
		Long: `Show the raw pinctrl state of every zone pin. This always reads the
hardware, even in safe mode.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
				zones, err := a.Registry.Zones(ctx)
				if err != nil {
					return err
				}
				states, err := newPinctrl().ReadAllPins()
				if err != nil {
					return err
				}

				activeHigh := a.Config.GPIO.ActiveHigh
				views := make([]pinView, 0, len(zones))
				for _, z := range zones {
					st, ok := states[z.Pin]
					if !ok {
						return fmt.Errorf("pin %d (%s) missing from pinctrl output", z.Pin, z.Name)
					}
					views = append(views, pinView{
						Zone:   z.Name,
						Pin:    z.Pin,
						Mode:   st.Mode,
						Pull:   st.Pull,
						Drive:  st.Drive,
						Level:  st.Level,
						Active: (st.Level == "hi") == activeHigh,
					})
				}
				if rt.jsonOut {
					return rt.printJSON(cmd, views)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ZONE\tGPIO\tMODE\tPULL\tDRIVE\tLEVEL\tSTATE")
				for _, v := range views {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n", v.Zone, v.Pin, v.Mode, v.Pull, v.Drive, v.Level, onOff(v.Active))
				}
				return w.Flush()
			})
		},
	})
	return cmd
}
