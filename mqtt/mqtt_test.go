package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecastPayloadMarshalsExpectedShape(t *testing.T) {
	payload := ForecastPayload{
		GeneratedAt:  time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
		HorizonHours: 24,
		Prices:       []float64{0.2, 0.3},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, float64(24), decoded["horizon_hours"])
	assert.Contains(t, decoded, "generated_at")
	assert.Contains(t, decoded, "prices")
}

func TestAlertEnvelopeMarshalsExpectedShape(t *testing.T) {
	alert := AlertEnvelope{
		Timestamp: time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
		Severity:  "warning",
		EntityID:  "meter-1",
		Message:   "voltage out of range",
	}
	body, err := json.Marshal(alert)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "warning", decoded["severity"])
	assert.Equal(t, "meter-1", decoded["entity_id"])
}

func TestQoSLevelsMatchMqttSpecValues(t *testing.T) {
	assert.Equal(t, byte(0), byte(AtMostOnce))
	assert.Equal(t, byte(1), byte(AtLeastOnce))
	assert.Equal(t, byte(2), byte(ExactlyOnce))
}
