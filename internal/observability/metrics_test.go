package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotAverageDuration(t *testing.T) {
	m := NewMetrics(4)
	m.RecordDuration(100 * time.Millisecond)
	m.RecordDuration(300 * time.Millisecond)

	s := m.Snapshot()
	assert.Equal(t, 2, s.DurationCount)
	assert.Equal(t, int64(200), s.AverageDurationMs)
}

func TestSnapshotAverageDurationEmpty(t *testing.T) {
	s := NewMetrics(4).Snapshot()
	assert.Equal(t, 0, s.DurationCount)
	assert.Equal(t, int64(0), s.AverageDurationMs)
}

func TestSnapshotAverageDurationEvictsOldest(t *testing.T) {
	m := NewMetrics(2)
	m.RecordDuration(time.Second)
	m.RecordDuration(100 * time.Millisecond)
	m.RecordDuration(300 * time.Millisecond)

	// The one-second outlier has been pushed out of the ring.
	s := m.Snapshot()
	assert.Equal(t, 2, s.DurationCount)
	assert.Equal(t, int64(200), s.AverageDurationMs)
}
