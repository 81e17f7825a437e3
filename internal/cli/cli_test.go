package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/sprinkler-controller/internal/app"
	"github.com/thatsimonsguy/sprinkler-controller/internal/config"
	"github.com/thatsimonsguy/sprinkler-controller/internal/gpio"
	"github.com/thatsimonsguy/sprinkler-controller/internal/pinctrl"
	"github.com/thatsimonsguy/sprinkler-controller/internal/zone"
	"github.com/thatsimonsguy/sprinkler-controller/internal/zone/zonetest"
)

type cliHarness struct {
	dir     string
	cfgPath string
	driver  *gpio.Simulated
	clock   *zonetest.Clock
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	dir := t.TempDir()
	h := &cliHarness{
		dir:     dir,
		cfgPath: filepath.Join(dir, "config.yaml"),
		driver:  gpio.NewSimulated(),
		clock:   zonetest.NewClock(),
	}

	contents := fmt.Sprintf(`database:
  path: %[1]s/sprinkler.db
gpio:
  safe_mode: true
api:
  enabled: false
logging:
  level: error
install:
  boot_script_path: %[1]s/boot.sh
  gpio_service_path: %[1]s/sprinkler-gpio-init.service
  main_service_path: %[1]s/sprinkler.service
zones:
  - name: Front
    gpio: 5
    time: 10
  - name: Back
    gpio: 6
    time: 15
`, dir)
	require.NoError(t, os.WriteFile(h.cfgPath, []byte(contents), 0644))
	return h
}

func (h *cliHarness) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rt := &runtime{
		newApp: func(cfg *config.Config) (*app.App, error) {
			return app.New(cfg, app.WithDriver(h.driver), app.WithClock(h.clock))
		},
	}
	cmd := newRootCommand(rt)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", h.cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (h *cliHarness) mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.execute(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "sprinkler", cmd.Use)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("json"))

	for _, name := range []string{"zone", "sys", "daemon", "seed", "install", "debug", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitHardware, ExitCode(fmt.Errorf("x: %w", zone.ErrHardwareUnavailable)))
	assert.Equal(t, ExitZoneNotFound, ExitCode(fmt.Errorf("x: %w", zone.ErrNotFound)))
	assert.Equal(t, ExitFailure, ExitCode(assert.AnError))
}

func TestVersion(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-01-01")
	t.Cleanup(func() { SetVersion("dev", "unknown", "unknown") })

	h := newCLIHarness(t)
	out := h.mustExecute(t, "version")
	assert.Contains(t, out, "sprinkler version 1.2.3")
	assert.Contains(t, out, "abc123")
}

func TestSeedAndList(t *testing.T) {
	h := newCLIHarness(t)

	assert.Contains(t, h.mustExecute(t, "seed"), "Seeded 2 zones")
	assert.Contains(t, h.mustExecute(t, "seed"), "nothing seeded")

	out := h.mustExecute(t, "zone", "list")
	assert.Contains(t, out, "Front")
	assert.Contains(t, out, "Back")

	out = h.mustExecute(t, "--json", "zone", "list")
	var zones []zoneView
	require.NoError(t, json.Unmarshal([]byte(out), &zones))
	require.Len(t, zones, 2)
	assert.Equal(t, "Front", zones[0].Name)
	assert.Equal(t, 10, zones[0].Time)
	assert.Equal(t, 1, zones[1].SystemOrder)
}

func TestZoneOnOffIsExclusive(t *testing.T) {
	h := newCLIHarness(t)
	h.mustExecute(t, "seed")

	assert.Contains(t, h.mustExecute(t, "zone", "on", "1"), "Zone 1 (Front) on")
	assert.Equal(t, []int{5}, h.driver.ActivePins(false))
	assert.Zero(t, h.clock.PendingTimers(), "CLI activation holds without a timer")

	h.mustExecute(t, "zone", "on", "2")
	assert.Equal(t, []int{6}, h.driver.ActivePins(false))

	out := h.mustExecute(t, "zone", "status", "2")
	assert.Contains(t, out, "Zone 2 (Back): on")

	h.mustExecute(t, "zone", "off", "2")
	assert.Empty(t, h.driver.ActivePins(false))
}

func TestZoneByOrder(t *testing.T) {
	h := newCLIHarness(t)
	h.mustExecute(t, "seed")

	h.mustExecute(t, "zone", "on", "--by-order", "1")
	assert.Equal(t, []int{6}, h.driver.ActivePins(false))
}

func TestZoneNotFound(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.execute(t, "zone", "on", "42")
	require.Error(t, err)
	assert.Equal(t, ExitZoneNotFound, ExitCode(err))

	_, err = h.execute(t, "zone", "on", "front")
	assert.Error(t, err)
}

func TestZoneHardwareFailure(t *testing.T) {
	h := newCLIHarness(t)
	h.mustExecute(t, "seed")
	h.driver.FailPin(5, gpio.ErrUnavailable)

	_, err := h.execute(t, "zone", "on", "2")
	require.Error(t, err)
	assert.Equal(t, ExitHardware, ExitCode(err))
}

func TestZoneRun(t *testing.T) {
	h := newCLIHarness(t)
	h.mustExecute(t, "seed")

	out := h.mustExecute(t, "zone", "run", "1", "--minutes", "3")
	assert.Contains(t, out, "finished")
	assert.Equal(t, []time.Duration{3 * time.Minute}, h.clock.Sleeps())
	assert.Empty(t, h.driver.ActivePins(false))

	_, err := h.execute(t, "zone", "run", "1", "--minutes", "400000000")
	assert.ErrorIs(t, err, zone.ErrInvalidZone)
	assert.Len(t, h.clock.Sleeps(), 1, "rejected run never opens the valve")
}

func TestZoneAddDeleteOrder(t *testing.T) {
	h := newCLIHarness(t)
	h.mustExecute(t, "seed")

	out := h.mustExecute(t, "zone", "add", "--name", "Beds", "--gpio", "13", "--time", "5", "--no-auto-off")
	assert.Contains(t, out, "Zone 3 (Beds) added on gpio 13")

	_, err := h.execute(t, "zone", "add", "--name", "Dup", "--gpio", "13", "--time", "5")
	assert.ErrorIs(t, err, zone.ErrInvalidZone)

	_, err = h.execute(t, "zone", "add", "--name", "Huge", "--gpio", "19", "--time", "400000000")
	assert.ErrorIs(t, err, zone.ErrInvalidZone)

	h.mustExecute(t, "zone", "order", "2", "1", "0")
	out = h.mustExecute(t, "--json", "zone", "list")
	var zones []zoneView
	require.NoError(t, json.Unmarshal([]byte(out), &zones))
	require.Len(t, zones, 3)
	assert.Equal(t, "Beds", zones[0].Name)
	assert.False(t, zones[0].AutoOff)

	_, err = h.execute(t, "zone", "order", "0", "1")
	assert.ErrorIs(t, err, zone.ErrLengthMismatch)

	h.mustExecute(t, "zone", "delete", "3")
	_, err = h.execute(t, "zone", "status", "3")
	assert.ErrorIs(t, err, zone.ErrNotFound)
}

func TestSysCommands(t *testing.T) {
	h := newCLIHarness(t)
	h.mustExecute(t, "seed")

	assert.Contains(t, h.mustExecute(t, "sys", "off"), "System disabled")
	assert.Contains(t, h.mustExecute(t, "sys", "run"), "run skipped")
	assert.Empty(t, h.driver.Transitions())

	h.mustExecute(t, "sys", "on")
	out := h.mustExecute(t, "--json", "sys", "status")
	var view systemView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.True(t, view.SystemEnabled)
	assert.Len(t, view.Zones, 2)

	assert.Contains(t, h.mustExecute(t, "sys", "run"), "System run completed")
	assert.Equal(t, []time.Duration{10 * time.Minute, 15 * time.Minute}, h.clock.Sleeps())
	assert.Empty(t, h.driver.ActivePins(false))
}

func TestSysTestAndWinterize(t *testing.T) {
	h := newCLIHarness(t)
	h.mustExecute(t, "seed")

	h.mustExecute(t, "sys", "test")
	assert.Equal(t, []time.Duration{12 * time.Second, 12 * time.Second}, h.clock.Sleeps())

	h.mustExecute(t, "sys", "winterize")
	assert.Equal(t, []time.Duration{
		12 * time.Second, 12 * time.Second,
		time.Minute, 3 * time.Minute, time.Minute, 3 * time.Minute,
	}, h.clock.Sleeps())
}

func TestInstall(t *testing.T) {
	h := newCLIHarness(t)
	h.mustExecute(t, "seed")

	h.mustExecute(t, "install")

	script, err := os.ReadFile(filepath.Join(h.dir, "boot.sh"))
	require.NoError(t, err)
	assert.Contains(t, string(script), "pinctrl set 5 op pn dh")
	assert.Contains(t, string(script), "pinctrl set 6 op pn dh")

	_, err = os.Stat(filepath.Join(h.dir, "sprinkler-gpio-init.service"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(h.dir, "sprinkler.service"))
	assert.NoError(t, err)
}

func TestDaemonCommand(t *testing.T) {
	h := newCLIHarness(t)

	var ran bool
	orig := runDaemon
	runDaemon = func(ctx context.Context, a *app.App) error {
		ran = true
		zones, err := a.Registry.Zones(ctx)
		require.NoError(t, err)
		assert.Len(t, zones, 2, "--seed loads config zones first")
		return nil
	}
	t.Cleanup(func() { runDaemon = orig })

	h.mustExecute(t, "daemon", "--seed")
	assert.True(t, ran)
}

func TestInvalidConfig(t *testing.T) {
	h := newCLIHarness(t)
	require.NoError(t, os.WriteFile(h.cfgPath, []byte("database:\n  path: \"\"\n"), 0644))

	_, err := h.execute(t, "zone", "list")
	assert.Error(t, err)
}

func TestDebugPins(t *testing.T) {
	h := newCLIHarness(t)
	h.mustExecute(t, "seed")

	orig := newPinctrl
	newPinctrl = func() *pinctrl.Tool {
		return pinctrl.NewWithRunner(func(args ...string) ([]byte, error) {
			return []byte(" 5: op dl pn | lo // GPIO5 = output\n 6: op dh pn | hi // GPIO6 = output\n"), nil
		})
	}
	t.Cleanup(func() { newPinctrl = orig })

	out := h.mustExecute(t, "--json", "debug", "pins")
	var pins []pinView
	require.NoError(t, json.Unmarshal([]byte(out), &pins))
	require.Len(t, pins, 2)
	assert.Equal(t, pinView{Zone: "Front", Pin: 5, Mode: "op", Pull: "pn", Drive: "dl", Level: "lo", Active: true}, pins[0])
	assert.False(t, pins[1].Active)
}
