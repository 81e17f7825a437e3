// Package cli implements the sprinkler command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thatsimonsguy/sprinkler-controller/internal/app"
	"github.com/thatsimonsguy/sprinkler-controller/internal/config"
	"github.com/thatsimonsguy/sprinkler-controller/internal/logging"
	"github.com/thatsimonsguy/sprinkler-controller/internal/zone"
)

const defaultConfigPath = "/etc/sprinkler/config.yaml"

// Exit codes returned by the sprinkler binary.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitHardware     = 2
	ExitZoneNotFound = 3
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// SetVersion records build information injected through ldflags.
func SetVersion(v, c, b string) {
	version, commit, buildDate = v, c, b
}

// ExitCode maps a command error onto the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, zone.ErrHardwareUnavailable):
		return ExitHardware
	case errors.Is(err, zone.ErrNotFound):
		return ExitZoneNotFound
	default:
		return ExitFailure
	}
}

// runtime is the state shared by every command of one invocation.
type runtime struct {
	configPath string
	jsonOut    bool

	cfg       *config.Config
	logCloser io.Closer

	newApp func(*config.Config) (*app.App, error)
}

func defaultNewApp(cfg *config.Config) (*app.App, error) {
	return app.New(cfg)
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&runtime{newApp: defaultNewApp})
}

func newRootCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sprinkler",
		Short: "Sprinkler - irrigation valve controller",
		Long: `Sprinkler drives irrigation valves wired to GPIO relays. Zones can be
switched from this command line, the REST daemon or Home Assistant over MQTT.

Run 'sprinkler daemon' to start the long-lived controller.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: rt.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return rt.teardown()
		},
	}

	cmd.PersistentFlags().StringVar(&rt.configPath, "config", "", "Path to config file (default: $SPRINKLER_CONFIG or "+defaultConfigPath+")")
	cmd.PersistentFlags().BoolVar(&rt.jsonOut, "json", false, "Output in JSON format")

	cmd.AddCommand(
		newZoneCommand(rt),
		newSysCommand(rt),
		newDaemonCommand(rt),
		newSeedCommand(rt),
		newInstallCommand(rt),
		newDebugCommand(rt),
		newVersionCommand(rt),
	)
	return cmd
}

func (rt *runtime) resolveConfigPath() string {
	if rt.configPath != "" {
		return rt.configPath
	}
	if v := os.Getenv("SPRINKLER_CONFIG"); v != "" {
		return v
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func (rt *runtime) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.Load(rt.resolveConfigPath())
	if err != nil {
		return err
	}
	rt.cfg = cfg

	closer, err := logging.Init(cfg.LogLevel(), cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("initialising logging: %w", err)
	}
	rt.logCloser = closer
	return nil
}

func (rt *runtime) teardown() error {
	if rt.logCloser == nil {
		return nil
	}
	return rt.logCloser.Close()
}

// withApp opens the application for one command and closes it afterwards.
// ctx is cancelled on SIGINT or SIGTERM.
func (rt *runtime) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	a, err := rt.newApp(rt.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("failed to close application")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}

func (rt *runtime) printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
