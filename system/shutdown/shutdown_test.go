package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/sprinkler-controller/db"
	"github.com/thatsimonsguy/sprinkler-controller/internal/gpio"
	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
	"github.com/thatsimonsguy/sprinkler-controller/internal/zone"
	"github.com/thatsimonsguy/sprinkler-controller/internal/zone/zonetest"
)

func setup(t *testing.T) (*zone.Registry, *gpio.Simulated, *zonetest.Clock, int64) {
	t.Helper()
	conn, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	driver := gpio.NewSimulated()
	clock := zonetest.NewClock()
	reg := zone.NewRegistry(db.NewStore(conn), driver, false, zone.WithClock(clock))
	z, err := reg.Create(context.Background(), model.Zone{Name: "a", Pin: 5, RunDuration: time.Minute, AutoOff: true})
	require.NoError(t, err)
	return reg, driver, clock, z.ID
}

func TestShutdownClosesZonesAndTimers(t *testing.T) {
	reg, driver, clock, id := setup(t)
	ctx := context.Background()
	require.NoError(t, reg.Activate(ctx, id))
	require.Equal(t, 1, clock.PendingTimers())

	require.NoError(t, Shutdown(ctx, reg))
	assert.Empty(t, driver.ActivePins(false))
	assert.Zero(t, clock.PendingTimers())
}

func TestShutdownReportsHardwareFailure(t *testing.T) {
	reg, driver, _, _ := setup(t)
	driver.FailPin(5, gpio.ErrUnavailable)

	err := ShutdownWithError(context.Background(), reg, errors.New("boom"), "daemon failed")
	assert.ErrorIs(t, err, gpio.ErrUnavailable)
}
