// Package daemon runs the long-lived controller process that owns the pins.
package daemon

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thatsimonsguy/sprinkler-controller/internal/api"
	"github.com/thatsimonsguy/sprinkler-controller/internal/app"
	"github.com/thatsimonsguy/sprinkler-controller/internal/mqtt"
	"github.com/thatsimonsguy/sprinkler-controller/system/shutdown"
)

const shutdownTimeout = 30 * time.Second

// Run closes every valve, serves the REST API and the MQTT bridge until ctx
// is cancelled, then aborts any bulk job and closes every valve again.
func Run(ctx context.Context, a *app.App) error {
	if err := a.Registry.AllOff(ctx); err != nil {
		return fmt.Errorf("startup sweep: %w", err)
	}
	log.Info().Msg("All zones deactivated at startup")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if a.Config.API.Enabled {
		srv := api.NewServer(a.Registry, a.System)
		addr := net.JoinHostPort(a.Config.API.Host, strconv.Itoa(a.Config.API.Port))
		g.Go(func() error { return srv.Start(gctx, addr) })
	}
	if a.Config.MQTT.Enabled {
		g.Go(func() error { return runMQTT(gctx, a) })
	}

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if abortErr := a.System.Shutdown(shutdownCtx); abortErr != nil {
		log.Warn().Err(abortErr).Msg("bulk job still running at shutdown")
	}
	if err != nil {
		_ = shutdown.ShutdownWithError(shutdownCtx, a.Registry, err, "daemon component failed")
		return err
	}
	return shutdown.Shutdown(shutdownCtx, a.Registry)
}

// connectMQTT is replaced in tests.
var connectMQTT = func(a *app.App) (mqttClient, error) {
	return mqtt.Connect(a.Config.MQTT)
}

type mqttClient interface {
	mqtt.Conn
	SetOnConnect(func())
	Close() error
}

func runMQTT(ctx context.Context, a *app.App) error {
	client, err := connectMQTT(a)
	if err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	defer client.Close()

	bridge := mqtt.NewBridge(client, a.Registry, a.Config.MQTT)
	client.SetOnConnect(func() {
		if err := bridge.Announce(ctx); err != nil {
			log.Warn().Err(err).Msg("MQTT discovery after reconnect incomplete")
		}
	})
	return bridge.Run(ctx)
}
