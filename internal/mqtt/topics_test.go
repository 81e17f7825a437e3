package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicNames(t *testing.T) {
	topics := Topics{Prefix: "sprinkler", DiscoveryPrefix: "homeassistant"}

	assert.Equal(t, "sprinkler_zone_3/command", topics.ZoneCommand(3, ""))
	assert.Equal(t, "sprinkler_zone_3_time/status", topics.ZoneStatus(3, suffixTime))
	assert.Equal(t, "sprinkler_zone_3_auto_off_state/command", topics.ZoneCommand(3, suffixAutoOff))
	assert.Equal(t, "sprinkler_zone_3_enabled_state/status", topics.ZoneStatus(3, suffixEnabled))
	assert.Equal(t, "sprinkler_system/command", topics.SystemCommand())
	assert.Equal(t, "sprinkler_system/status", topics.SystemStatus())
	assert.Equal(t, "homeassistant/number/sprinkler_zone_3_time/config", topics.Discovery("number", "sprinkler_zone_3_time"))
}

func TestParseCommand(t *testing.T) {
	topics := Topics{Prefix: "sprinkler"}

	tests := []struct {
		topic   string
		want    command
		wantErr bool
	}{
		{topic: "sprinkler_system/command", want: command{system: true}},
		{topic: "sprinkler_zone_7/command", want: command{zoneID: 7}},
		{topic: "sprinkler_zone_12_time/command", want: command{zoneID: 12, suffix: suffixTime}},
		{topic: "sprinkler_zone_2_auto_off_state/command", want: command{zoneID: 2, suffix: suffixAutoOff}},
		{topic: "sprinkler_zone_2_enabled_state/command", want: command{zoneID: 2, suffix: suffixEnabled}},
		{topic: "sprinkler_zone_2/status", wantErr: true},
		{topic: "sprinkler_zone_x/command", wantErr: true},
		{topic: "sprinkler_zone_0/command", wantErr: true},
		{topic: "sprinkler_zone_2_colour/command", wantErr: true},
		{topic: "other_zone_2/command", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.topic, func(t *testing.T) {
			got, err := topics.parseCommand(tc.topic)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnknownTopic)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
