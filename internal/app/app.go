// Package app wires configuration, storage, hardware and controllers into
// one value shared by the daemon and the CLI commands.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/sprinkler-controller/db"
	"github.com/thatsimonsguy/sprinkler-controller/internal/config"
	"github.com/thatsimonsguy/sprinkler-controller/internal/controllers/systemcontroller"
	"github.com/thatsimonsguy/sprinkler-controller/internal/datadog"
	"github.com/thatsimonsguy/sprinkler-controller/internal/gpio"
	"github.com/thatsimonsguy/sprinkler-controller/internal/metrics"
	"github.com/thatsimonsguy/sprinkler-controller/internal/notifications"
	"github.com/thatsimonsguy/sprinkler-controller/internal/pinctrl"
	"github.com/thatsimonsguy/sprinkler-controller/internal/zone"
)

type App struct {
	Config   *config.Config
	DB       *sql.DB
	Driver   gpio.Driver
	Registry *zone.Registry
	System   *systemcontroller.Controller
	Recorder *metrics.Recorder
}

type options struct {
	driver gpio.Driver
	clock  zone.Clock
}

type Option func(*options)

// WithDriver overrides the driver chosen from gpio.safe_mode.
func WithDriver(d gpio.Driver) Option {
	return func(o *options) { o.driver = d }
}

func WithClock(c zone.Clock) Option {
	return func(o *options) { o.clock = c }
}

func newDriver(cfg config.GPIOConfig) gpio.Driver {
	if cfg.SafeMode {
		log.Warn().Msg("SAFE MODE ENABLED: pins are simulated, no valve will move")
		return gpio.NewSimulated()
	}
	return gpio.NewPinctrl(pinctrl.New())
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	conn, err := db.Open(cfg.Database.Path, cfg.BusyTimeout())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	driver := o.driver
	if driver == nil {
		driver = newDriver(cfg.GPIO)
	}

	datadog.InitMetrics(datadog.Config{
		Enabled:   cfg.Datadog.Enabled,
		AgentAddr: cfg.Datadog.AgentAddr,
		Namespace: cfg.Datadog.Namespace,
		Tags:      cfg.Datadog.Tags,
	})
	notifications.Init(cfg.Ntfy.Topic, cfg.Ntfy.Server)

	recorder := metrics.NewRecorder()
	regOpts := []zone.Option{zone.WithObserver(recorder)}
	if o.clock != nil {
		regOpts = append(regOpts, zone.WithClock(o.clock))
	}
	reg := zone.NewRegistry(db.NewStore(conn), driver, cfg.GPIO.ActiveHigh, regOpts...)

	return &App{
		Config:   cfg,
		DB:       conn,
		Driver:   driver,
		Registry: reg,
		System:   systemcontroller.New(reg, systemcontroller.WithObserver(recorder)),
		Recorder: recorder,
	}, nil
}

// Seed loads the configured zones when the database has none.
func (a *App) Seed(ctx context.Context) (int, error) {
	return db.SeedZones(ctx, a.DB, a.Config.SeedZones())
}

// Close stops the bulk-job worker and closes the database. Valves are left
// as they are; the daemon sweeps them through system/shutdown first.
func (a *App) Close(ctx context.Context) error {
	if err := a.System.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("bulk job did not stop before shutdown deadline")
	}
	datadog.Close()
	return a.DB.Close()
}
