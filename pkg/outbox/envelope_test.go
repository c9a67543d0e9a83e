package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"version":1,"eventId":"e-1","occurredAt":"2026-03-01T12:00:00Z","data":{"rewardAmount":20}}`))
	require.NoError(t, err)
	assert.Equal(t, "e-1", env.EventID)
	assert.JSONEq(t, `{"rewardAmount":20}`, string(env.Data))

	for _, raw := range []string{`{"version":1}`, `{"version":1,"data":null}`} {
		_, err := DecodeEnvelope([]byte(raw))
		assert.ErrorIs(t, err, ErrEmptyEnvelopeData, raw)
	}

	_, err = DecodeEnvelope([]byte(`{"data":`))
	assert.Error(t, err)
}
