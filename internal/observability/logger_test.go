package observability

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallContextCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cc := NewCallContext(logger, "CA1")
	require.NotEmpty(t, cc.RequestID)

	cc.Info("utterance handled", slog.Int64(LogFieldDuration, 12))

	out := buf.String()
	assert.Contains(t, out, `"request_id":"`+cc.RequestID+`"`)
	assert.Contains(t, out, `"call_sid":"CA1"`)
	assert.Contains(t, out, `"duration_ms":12`)
}

func TestCallContextError(t *testing.T) {
	var buf bytes.Buffer
	cc := NewCallContext(slog.New(slog.NewJSONHandler(&buf, nil)), "CA2")

	cc.Error("utterance failed", fmt.Errorf("upstream 503"))

	assert.Contains(t, buf.String(), `"error":"upstream 503"`)
	assert.Contains(t, buf.String(), `"call_sid":"CA2"`)
}

func TestCallContextUniqueRequestIDs(t *testing.T) {
	logger := slog.Default()
	a := NewCallContext(logger, "CA1")
	b := NewCallContext(logger, "CA1")
	assert.NotEqual(t, a.RequestID, b.RequestID)
}
