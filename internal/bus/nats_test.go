package bus

import (
	"testing"

	"PetAlertAPI/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDetectReply(t *testing.T) {
	data := []byte(`{"anomalies":[{"petId":"pet-1","anomalyType":"frequency","severity":"high","confidence":91,
		"description":"More frequent than usual","recommendations":["Hydrate"],"triggerData":{"ratio":2.1}}]}`)

	anomalies, err := decodeDetectReply(data)

	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	a := anomalies[0]
	assert.Equal(t, "pet-1", a.PetID)
	assert.Equal(t, models.AnomalyFrequency, a.AnomalyType)
	assert.Equal(t, models.SeverityHigh, a.Severity)
	assert.Equal(t, 91, a.Confidence)
	assert.Equal(t, []string{"Hydrate"}, a.Recommendations)
	assert.Equal(t, 2.1, a.TriggerData["ratio"])
}

func TestDecodeDetectReplyEmpty(t *testing.T) {
	anomalies, err := decodeDetectReply([]byte(`{}`))

	require.NoError(t, err)
	assert.NotNil(t, anomalies)
	assert.Empty(t, anomalies)
}

func TestDecodeDetectReplyFailures(t *testing.T) {
	for name, data := range map[string]string{
		"remote error": `{"error":"model not loaded"}`,
		"malformed":    `{"anomalies":`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodeDetectReply([]byte(data))
			assert.ErrorIs(t, err, models.ErrDetectionUnavailable)
		})
	}
}
