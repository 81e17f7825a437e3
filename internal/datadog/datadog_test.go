package datadog

import (
	"testing"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/stretchr/testify/assert"
)

type fakeStatsd struct {
	statsd.ClientInterface
	gauges map[string]float64
	counts map[string]int64
	tags   [][]string
	closed bool
}

func (f *fakeStatsd) Gauge(name string, value float64, tags []string, _ float64) error {
	f.gauges[name] = value
	f.tags = append(f.tags, tags)
	return nil
}

func (f *fakeStatsd) Count(name string, value int64, tags []string, _ float64) error {
	f.counts[name] += value
	return nil
}

func (f *fakeStatsd) Close() error {
	f.closed = true
	return nil
}

func TestMetricsDroppedWithoutClient(t *testing.T) {
	setClient(nil)
	assert.NotPanics(t, func() {
		Gauge("zone.active", 1)
		Count("zone.activations", 1)
		Close()
	})
}

func TestInitMetricsDisabled(t *testing.T) {
	setClient(nil)
	InitMetrics(Config{Enabled: false, AgentAddr: "127.0.0.1:8125"})
	assert.Nil(t, current())
}

func TestGaugeAndCount(t *testing.T) {
	fake := &fakeStatsd{gauges: map[string]float64{}, counts: map[string]int64{}}
	setClient(fake)
	t.Cleanup(func() { setClient(nil) })

	Gauge("zone.active", 1, "zone_id:3")
	Count("zone.activations", 1)
	Count("zone.activations", 1)

	assert.Equal(t, 1.0, fake.gauges["zone.active"])
	assert.Equal(t, []string{"zone_id:3"}, fake.tags[0])
	assert.Equal(t, int64(2), fake.counts["zone.activations"])

	Close()
	assert.True(t, fake.closed)
	assert.Nil(t, current())
}
