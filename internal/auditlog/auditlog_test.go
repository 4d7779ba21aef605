package auditlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestLoggerLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "interactions.jsonl")
	logger, err := NewLogger(path)
	require.NoError(t, err)

	logger.LogCallStart("CA1", "+15550001111")
	logger.LogInteraction("CA1", "book a haircut", "Sure, what day?", 1200*time.Millisecond)
	logger.LogError("CA1", "transcription", errors.New("upstream timeout"))
	logger.LogCallEnd("CA1", 95*time.Second, 6)
	require.NoError(t, logger.Close())

	records := readRecords(t, path)
	require.Len(t, records, 4)

	assert.Equal(t, EventCallStart, records[0].Event)
	assert.Equal(t, "+15550001111", records[0].Caller)
	assert.NotEmpty(t, records[0].ID)
	assert.False(t, records[0].Timestamp.IsZero())

	assert.Equal(t, EventInteraction, records[1].Event)
	assert.Equal(t, "book a haircut", records[1].CallerText)
	assert.EqualValues(t, 1200, records[1].DurationMs)

	assert.Equal(t, EventError, records[2].Event)
	assert.Equal(t, "transcription", records[2].Stage)
	assert.Contains(t, records[2].Error, "timeout")

	assert.Equal(t, EventCallEnd, records[3].Event)
	assert.Equal(t, 6, records[3].TurnCount)
}

func TestLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interactions.jsonl")

	first, err := NewLogger(path)
	require.NoError(t, err)
	first.LogCallStart("CA1", "+1")
	require.NoError(t, first.Close())

	second, err := NewLogger(path)
	require.NoError(t, err)
	second.LogCallStart("CA2", "+2")
	require.NoError(t, second.Close())

	records := readRecords(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, "CA1", records[0].CallSID)
	assert.Equal(t, "CA2", records[1].CallSID)
}
