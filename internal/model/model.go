package model

import "time"

type GPIOPin struct {
	Number     int  `json:"number"`
	ActiveHigh bool `json:"active_high"`
}

// Zone is one irrigation valve as persisted in the store.
type Zone struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Pin         int           `json:"gpio"`
	RunDuration time.Duration `json:"-"`
	Enabled     bool          `json:"enabled"`
	AutoOff     bool          `json:"auto_off"`
	SystemOrder int           `json:"system_order"`
}

// Minutes is the run duration in the whole-minute unit the control surfaces speak.
func (z Zone) Minutes() int {
	return int(z.RunDuration / time.Minute)
}

// MaxRunMinutes caps a zone's run time at one day.
const MaxRunMinutes = 24 * 60

const MaxRunDuration = MaxRunMinutes * time.Minute

// MinutesToDuration converts whole minutes. Callers bound minutes to
// [1, MaxRunMinutes] first; larger values overflow.
func MinutesToDuration(minutes int) time.Duration {
	return time.Duration(minutes) * time.Minute
}

// ZoneStatus is a zone definition plus its runtime state.
type ZoneStatus struct {
	Zone
	Active         bool      `json:"state"`
	PendingAutoOff bool      `json:"pending_auto_off"`
	AutoOffAt      time.Time `json:"auto_off_at,omitempty"`
}

type JobKind string

const (
	JobRun       JobKind = "run"
	JobWinterize JobKind = "winterize"
	JobTest      JobKind = "test"
)

type JobState string

const (
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobSkipped   JobState = "skipped"
	JobFailed    JobState = "failed"
	JobAborted   JobState = "aborted"
)

// Job describes one bulk run executed by the system worker.
type Job struct {
	ID         string     `json:"id"`
	Kind       JobKind    `json:"kind"`
	State      JobState   `json:"state"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}
