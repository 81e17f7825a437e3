package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/sprinkler-controller/internal/config"
)

func testConfig() config.MQTTConfig {
	cfg := config.Default().MQTT
	cfg.Enabled = true
	cfg.Broker.Host = "broker.local"
	return cfg
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "hass"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "tcp://broker.local:1883", opts.Servers[0].String())
	assert.Equal(t, "sprinkler-controller", opts.ClientID)
	assert.Equal(t, "hass", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	assert.True(t, opts.AutoReconnect)
	assert.Nil(t, opts.TLSConfig)
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)
	assert.Equal(t, "ssl://broker.local:8883", opts.Servers[0].String())
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, uint16(tlsMinVersion), opts.TLSConfig.MinVersion)
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, Topics{Prefix: "sprinkler"}, 1)

	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "sprinkler/availability", opts.WillTopic)
	assert.Equal(t, []byte("offline"), opts.WillPayload)
	assert.True(t, opts.WillRetained)
}

func TestClientValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	assert.ErrorIs(t, c.Publish("", nil, 0, false), ErrInvalidTopic)
	assert.ErrorIs(t, c.Publish("a", nil, 3, false), ErrInvalidQoS)
	assert.ErrorIs(t, c.Publish("a", make([]byte, maxPayloadSize+1), 0, false), ErrPublishFailed)
	assert.ErrorIs(t, c.Publish("a", []byte("x"), 0, false), ErrNotConnected)

	assert.ErrorIs(t, c.Subscribe("", 0, noop), ErrInvalidTopic)
	assert.ErrorIs(t, c.Subscribe("a", 5, noop), ErrInvalidQoS)
	assert.ErrorIs(t, c.Subscribe("a", 0, nil), ErrSubscribeFailed)
	assert.ErrorIs(t, c.Subscribe("a", 0, noop), ErrNotConnected)
	assert.Zero(t, c.SubscriptionCount())

	assert.ErrorIs(t, c.Unsubscribe(""), ErrInvalidTopic)
	assert.ErrorIs(t, c.Unsubscribe("a"), ErrNotConnected)
}

func TestCloseWithoutConnection(t *testing.T) {
	var c Client
	assert.NoError(t, c.Close())
}
