package systemcontroller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/sprinkler-controller/db"
	"github.com/thatsimonsguy/sprinkler-controller/internal/gpio"
	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
	"github.com/thatsimonsguy/sprinkler-controller/internal/notifications"
	"github.com/thatsimonsguy/sprinkler-controller/internal/zone"
	"github.com/thatsimonsguy/sprinkler-controller/internal/zone/zonetest"
)

type testZone struct {
	pin     int
	minutes int
	enabled bool
}

type fixture struct {
	ctrl   *Controller
	reg    *zone.Registry
	driver *gpio.Simulated
	clock  *zonetest.Clock
}

func setup(t *testing.T, zones ...testZone) *fixture {
	t.Helper()
	conn, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	f := &fixture{driver: gpio.NewSimulated(), clock: zonetest.NewClock()}
	f.reg = zone.NewRegistry(db.NewStore(conn), f.driver, false, zone.WithClock(f.clock))
	for _, tz := range zones {
		_, err := f.reg.Create(context.Background(), model.Zone{
			Name:        "zone",
			Pin:         tz.pin,
			RunDuration: time.Duration(tz.minutes) * time.Minute,
			Enabled:     tz.enabled,
			AutoOff:     true,
		})
		require.NoError(t, err)
	}
	f.ctrl = New(f.reg)
	return f
}

// openedPins lists pins in the order they were switched on.
func (f *fixture) openedPins() []int {
	var pins []int
	for _, tr := range f.driver.Transitions() {
		if tr.Active {
			pins = append(pins, tr.Pin)
		}
	}
	return pins
}

func TestConstants(t *testing.T) {
	assert.Equal(t, 60*time.Second, WinterizeOnDuration)
	assert.Equal(t, 180*time.Second, WinterizeSoakDuration)
	assert.Equal(t, 12*time.Second, TestDuration)
}

func TestRunWatersEnabledZonesInOrder(t *testing.T) {
	f := setup(t,
		testZone{pin: 5, minutes: 2, enabled: true},
		testZone{pin: 6, minutes: 4, enabled: false},
		testZone{pin: 13, minutes: 3, enabled: true},
	)

	var maxOpen int
	f.clock.OnSleep = func(context.Context, time.Duration) {
		if n := len(f.driver.ActivePins(false)); n > maxOpen {
			maxOpen = n
		}
	}

	outcome, err := f.ctrl.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, []int{5, 13}, f.openedPins())
	assert.Equal(t, []time.Duration{2 * time.Minute, 3 * time.Minute}, f.clock.Sleeps())
	assert.Equal(t, 1, maxOpen, "zones never overlap")
	assert.Empty(t, f.driver.ActivePins(false))
}

func TestRunFollowsSystemOrder(t *testing.T) {
	f := setup(t,
		testZone{pin: 5, minutes: 1, enabled: true},
		testZone{pin: 6, minutes: 1, enabled: true},
	)
	require.NoError(t, f.reg.Reorder(context.Background(), []int{1, 0}))

	_, err := f.ctrl.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{6, 5}, f.openedPins())
}

func TestRunSkippedWhenDisabled(t *testing.T) {
	f := setup(t, testZone{pin: 5, minutes: 2, enabled: true})
	require.NoError(t, f.ctrl.SetEnabled(context.Background(), false))

	enabled, err := f.ctrl.Enabled(context.Background())
	require.NoError(t, err)
	assert.False(t, enabled)

	outcome, err := f.ctrl.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Empty(t, f.driver.Transitions(), "no pin transitions when disabled")
}

func TestSetEnabledDoesNotTouchPins(t *testing.T) {
	f := setup(t, testZone{pin: 5, minutes: 2, enabled: true})
	require.NoError(t, f.ctrl.SetEnabled(context.Background(), false))
	require.NoError(t, f.ctrl.SetEnabled(context.Background(), true))
	assert.Empty(t, f.driver.Transitions())
}

func TestWinterizeTiming(t *testing.T) {
	f := setup(t,
		testZone{pin: 5, minutes: 20, enabled: true},
		testZone{pin: 6, minutes: 20, enabled: false},
		testZone{pin: 13, minutes: 20, enabled: true},
	)

	require.NoError(t, f.ctrl.Winterize(context.Background()))
	assert.Equal(t, []int{5, 6, 13}, f.openedPins(), "disabled zones are purged too")
	assert.Equal(t, []time.Duration{
		60 * time.Second, 180 * time.Second,
		60 * time.Second, 180 * time.Second,
		60 * time.Second, 180 * time.Second,
	}, f.clock.Sleeps())
	assert.Empty(t, f.driver.ActivePins(false))
}

func TestWinterizeIgnoresSystemFlag(t *testing.T) {
	f := setup(t, testZone{pin: 5, minutes: 20, enabled: true})
	require.NoError(t, f.ctrl.SetEnabled(context.Background(), false))

	require.NoError(t, f.ctrl.Winterize(context.Background()))
	assert.Equal(t, []int{5}, f.openedPins())
}

func TestTestAll(t *testing.T) {
	f := setup(t,
		testZone{pin: 5, minutes: 20, enabled: false},
		testZone{pin: 6, minutes: 20, enabled: true},
	)

	require.NoError(t, f.ctrl.TestAll(context.Background()))
	assert.Equal(t, []int{5, 6}, f.openedPins())
	assert.Equal(t, []time.Duration{12 * time.Second, 12 * time.Second}, f.clock.Sleeps())
}

func TestRunAbortsOnHardwareError(t *testing.T) {
	f := setup(t,
		testZone{pin: 5, minutes: 1, enabled: true},
		testZone{pin: 6, minutes: 1, enabled: true},
		testZone{pin: 13, minutes: 1, enabled: true},
	)
	// The relay on pin 6 dies while the first zone is watering.
	f.clock.OnSleep = func(context.Context, time.Duration) {
		f.driver.FailPin(6, gpio.ErrUnavailable)
	}

	_, err := f.ctrl.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, zone.ErrHardwareUnavailable)
	assert.Equal(t, []int{5}, f.openedPins(), "iteration stops at the failure")
	assert.Empty(t, f.driver.ActivePins(false))
}

func TestRunCancelledClosesCurrentZone(t *testing.T) {
	f := setup(t,
		testZone{pin: 5, minutes: 1, enabled: true},
		testZone{pin: 6, minutes: 1, enabled: true},
	)
	ctx, cancel := context.WithCancel(context.Background())
	f.clock.OnSleep = func(context.Context, time.Duration) { cancel() }

	_, err := f.ctrl.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{5}, f.openedPins())
	assert.Empty(t, f.driver.ActivePins(false))
}

type recordingObserver struct {
	mu   sync.Mutex
	jobs []model.Job
}

func (o *recordingObserver) JobFinished(j model.Job, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs = append(o.jobs, j)
}

func TestWorkerCompletesJob(t *testing.T) {
	f := setup(t, testZone{pin: 5, minutes: 1, enabled: true})
	obs := &recordingObserver{}
	f.ctrl = New(f.reg, WithObserver(obs))

	started, err := f.ctrl.Start(model.JobTest)
	require.NoError(t, err)
	assert.NotEmpty(t, started.ID)
	assert.Equal(t, model.JobRunning, started.State)

	f.ctrl.Wait()

	_, running := f.ctrl.Current()
	assert.False(t, running)
	last, ok := f.ctrl.Last()
	require.True(t, ok)
	assert.Equal(t, started.ID, last.ID)
	assert.Equal(t, model.JobCompleted, last.State)
	require.NotNil(t, last.FinishedAt)

	require.Len(t, obs.jobs, 1)
	assert.Equal(t, model.JobCompleted, obs.jobs[0].State)
}

func TestWorkerSkippedRun(t *testing.T) {
	f := setup(t, testZone{pin: 5, minutes: 1, enabled: true})
	require.NoError(t, f.ctrl.SetEnabled(context.Background(), false))

	_, err := f.ctrl.Start(model.JobRun)
	require.NoError(t, err)
	f.ctrl.Wait()

	last, _ := f.ctrl.Last()
	assert.Equal(t, model.JobSkipped, last.State)
}

func TestWorkerBusyAndAbort(t *testing.T) {
	f := setup(t,
		testZone{pin: 5, minutes: 30, enabled: true},
		testZone{pin: 6, minutes: 30, enabled: true},
	)
	sleeping := make(chan struct{}, 1)
	f.clock.OnSleep = func(ctx context.Context, _ time.Duration) {
		sleeping <- struct{}{}
		<-ctx.Done()
	}

	first, err := f.ctrl.Start(model.JobRun)
	require.NoError(t, err)
	<-sleeping

	current, running := f.ctrl.Current()
	require.True(t, running)
	assert.Equal(t, first.ID, current.ID)
	assert.Equal(t, []int{5}, f.driver.ActivePins(false))

	busy, err := f.ctrl.Start(model.JobWinterize)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, first.ID, busy.ID)

	_, err = f.ctrl.Abort()
	require.NoError(t, err)
	f.ctrl.Wait()

	last, ok := f.ctrl.Last()
	require.True(t, ok)
	assert.Equal(t, model.JobAborted, last.State)
	assert.Empty(t, f.driver.ActivePins(false), "aborted zone is closed")
	assert.Equal(t, []int{5}, f.openedPins(), "no zone opened after the abort")

	_, err = f.ctrl.Abort()
	assert.ErrorIs(t, err, ErrIdle)
}

func TestWorkerUnknownKind(t *testing.T) {
	f := setup(t)
	_, err := f.ctrl.Start(model.JobKind("mow"))
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestWorkerFailureNotifies(t *testing.T) {
	f := setup(t, testZone{pin: 5, minutes: 1, enabled: true})
	f.driver.FailPin(5, gpio.ErrUnavailable)

	notifications.Init("test-topic", "http://127.0.0.1:0")
	defer notifications.Init("", "")

	var titles []string
	orig := notify
	notify = func(title, message string) error {
		titles = append(titles, title)
		return nil
	}
	defer func() { notify = orig }()

	_, err := f.ctrl.Start(model.JobTest)
	require.NoError(t, err)
	f.ctrl.Wait()

	last, _ := f.ctrl.Last()
	assert.Equal(t, model.JobFailed, last.State)
	assert.Contains(t, last.Error, "hardware unavailable")
	assert.Equal(t, []string{"Sprinkler test failed"}, titles)
}

func TestShutdownCancelsRunningJob(t *testing.T) {
	f := setup(t, testZone{pin: 5, minutes: 30, enabled: true})
	sleeping := make(chan struct{}, 1)
	f.clock.OnSleep = func(ctx context.Context, _ time.Duration) {
		sleeping <- struct{}{}
		<-ctx.Done()
	}

	_, err := f.ctrl.Start(model.JobRun)
	require.NoError(t, err)
	<-sleeping

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.ctrl.Shutdown(ctx))

	last, _ := f.ctrl.Last()
	assert.Equal(t, model.JobAborted, last.State)

	_, err = f.ctrl.Start(model.JobRun)
	assert.Error(t, err, "no new jobs after shutdown")
}
