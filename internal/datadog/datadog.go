package datadog

import (
	"sync"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Enabled   bool
	AgentAddr string
	Namespace string
	Tags      []string
}

var (
	mu        sync.RWMutex
	dogstatsd statsd.ClientInterface
)

// InitMetrics creates the DogStatsD client. Metrics are dropped silently
// until it succeeds or when cfg.Enabled is false.
func InitMetrics(cfg Config) {
	if !cfg.Enabled {
		log.Debug().Msg("Datadog metrics disabled")
		return
	}

	client, err := statsd.New(cfg.AgentAddr)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create DogStatsD client")
		return
	}

	client.Namespace = cfg.Namespace
	client.Tags = cfg.Tags
	setClient(client)

	log.Info().
		Str("addr", cfg.AgentAddr).
		Str("namespace", cfg.Namespace).
		Strs("tags", cfg.Tags).
		Msg("Datadog metrics initialized")
}

func setClient(c statsd.ClientInterface) {
	mu.Lock()
	defer mu.Unlock()
	dogstatsd = c
}

func current() statsd.ClientInterface {
	mu.RLock()
	defer mu.RUnlock()
	return dogstatsd
}

func Gauge(name string, value float64, tags ...string) {
	if c := current(); c != nil {
		if err := c.Gauge(name, value, tags, 1); err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to emit gauge metric")
		}
	}
}

func Count(name string, value int64, tags ...string) {
	if c := current(); c != nil {
		if err := c.Count(name, value, tags, 1); err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to emit count metric")
		}
	}
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	if dogstatsd != nil {
		dogstatsd.Close()
		dogstatsd = nil
	}
}
