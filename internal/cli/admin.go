package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thatsimonsguy/sprinkler-controller/internal/app"
	"github.com/thatsimonsguy/sprinkler-controller/internal/daemon"
	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
	"github.com/thatsimonsguy/sprinkler-controller/system/startup"
)

// runDaemon is replaced in tests.
var runDaemon = daemon.Run

func newDaemonCommand(rt *runtime) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the controller with the REST API and MQTT bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if seed {
					if _, err := a.Seed(ctx); err != nil {
						return err
					}
				}
				return runDaemon(ctx, a)
			})
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "Load zones from the config file first when the database is empty")
	return cmd
}

func newSeedCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the zones listed in the config file into an empty database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Seed(ctx)
				if err != nil {
					return err
				}
				if n == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Database already has zones, nothing seeded")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d zones\n", n)
				return nil
			})
		},
	}
}

func newInstallCommand(rt *runtime) *cobra.Command {
	var runScript bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Write the boot script and systemd units",
		Long: `Write a boot script that drives every zone pin to its inactive level,
a oneshot systemd unit that runs it, and the unit for the daemon.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withApp(cmd, func(ctx context.Context, a *app.App) error {
				zones, err := a.Registry.Zones(ctx)
				if err != nil {
					return err
				}
				defs := make([]model.Zone, 0, len(zones))
				for _, z := range zones {
					defs = append(defs, z.Zone)
				}

				install := a.Config.Install
				if err := startup.WriteStartupScript(install.BootScriptPath, defs, a.Config.GPIO.ActiveHigh); err != nil {
					return err
				}
				if err := startup.InstallStartupService(install); err != nil {
					return err
				}
				if err := startup.InstallSprinklerService(install); err != nil {
					return err
				}
				if runScript {
					if err := startup.RunStartupScript(install.BootScriptPath); err != nil {
						return fmt.Errorf("running boot script: %w", err)
					}
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Boot script: %s\n", install.BootScriptPath)
				fmt.Fprintf(out, "GPIO unit:   %s\n", install.GPIOServicePath)
				fmt.Fprintf(out, "Main unit:   %s\n", install.MainServicePath)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&runScript, "run-script", false, "Run the boot script after writing it")
	return cmd
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

func newVersionCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versionInfo{Version: version, Commit: commit, BuildDate: buildDate}
			if rt.jsonOut {
				return rt.printJSON(cmd, info)
			}
			cmd.Printf("sprinkler version %s\n", info.Version)
			cmd.Printf("  commit:     %s\n", info.Commit)
			cmd.Printf("  build date: %s\n", info.BuildDate)
			return nil
		},
	}
}
