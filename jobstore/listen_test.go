package jobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusEventDecodesTriggerPayload(t *testing.T) {
	ev, ok := parseStatusEvent("42:completed")
	require.True(t, ok)
	assert.Equal(t, int64(42), ev.JobID)
	assert.Equal(t, Completed, ev.NewStatus)
}

func TestParseStatusEventRejectsMalformedPayloads(t *testing.T) {
	for _, payload := range []string{"", "nocolon", "x:pending", ":pending"} {
		_, ok := parseStatusEvent(payload)
		assert.False(t, ok, "payload %q should not parse", payload)
	}
}
