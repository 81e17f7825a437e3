package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/thatsimonsguy/sprinkler-controller/internal/datadog"
	"github.com/thatsimonsguy/sprinkler-controller/internal/model"
)

var (
	zoneActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sprinkler_zone_active",
			Help: "Whether a zone valve is open (1) or closed (0)",
		},
		[]string{"zone_id", "zone"},
	)

	zoneActivations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sprinkler_zone_activations_total",
			Help: "Total number of times each zone valve was opened",
		},
		[]string{"zone_id", "zone"},
	)

	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sprinkler_jobs_total",
			Help: "Total bulk jobs by kind and final state",
		},
		[]string{"kind", "state"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sprinkler_job_duration_seconds",
			Help:    "Wall time of bulk jobs",
			Buckets: []float64{60, 300, 900, 1800, 3600, 7200},
		},
		[]string{"kind"},
	)
)

// Recorder feeds zone transitions and job results to Prometheus and DogStatsD.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (Recorder) ZoneChanged(z model.Zone, active bool) {
	id := strconv.FormatInt(z.ID, 10)
	value := 0.0
	if active {
		value = 1
		zoneActivations.WithLabelValues(id, z.Name).Inc()
		datadog.Count("zone.activations", 1, "zone_id:"+id)
	}
	zoneActive.WithLabelValues(id, z.Name).Set(value)
	datadog.Gauge("zone.active", value, "zone_id:"+id, "zone:"+z.Name)
}

func (Recorder) JobFinished(j model.Job, elapsed time.Duration) {
	jobsTotal.WithLabelValues(string(j.Kind), string(j.State)).Inc()
	jobDuration.WithLabelValues(string(j.Kind)).Observe(elapsed.Seconds())
	datadog.Count("jobs.finished", 1, "kind:"+string(j.Kind), "state:"+string(j.State))
	datadog.Gauge("jobs.duration_seconds", elapsed.Seconds(), "kind:"+string(j.Kind))
}
