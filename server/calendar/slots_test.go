package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, hhmm string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", "2026-09-01 "+hhmm)
	require.NoError(t, err)
	return ts
}

func TestComputeFreeSlotsEmptyDay(t *testing.T) {
	slots := computeFreeSlots(nil, day(t, "09:00"), day(t, "19:00"), time.Hour, "2026-09-01")

	// 09:00 through 18:00 start times at 30-minute stepping.
	require.NotEmpty(t, slots)
	assert.Equal(t, "09:00", slots[0].StartTime)
	assert.Equal(t, "10:00", slots[0].EndTime)
	assert.Equal(t, "18:00", slots[len(slots)-1].StartTime)
	assert.Len(t, slots, 19)
	for _, s := range slots {
		assert.Equal(t, "2026-09-01", s.Date)
	}
}

func TestComputeFreeSlotsSkipsBusyIntervals(t *testing.T) {
	busy := []interval{
		{start: day(t, "10:00"), end: day(t, "11:00")},
	}
	slots := computeFreeSlots(busy, day(t, "09:00"), day(t, "19:00"), time.Hour, "2026-09-01")

	starts := make(map[string]bool, len(slots))
	for _, s := range slots {
		starts[s.StartTime] = true
	}
	// A 09:30 start would run into the 10:00 appointment.
	assert.True(t, starts["09:00"])
	assert.False(t, starts["09:30"])
	assert.False(t, starts["10:00"])
	assert.False(t, starts["10:30"])
	// The cursor resumes at the end of the busy interval.
	assert.True(t, starts["11:00"])
}

func TestComputeFreeSlotsUnsortedBusyInput(t *testing.T) {
	busy := []interval{
		{start: day(t, "15:00"), end: day(t, "16:00")},
		{start: day(t, "09:00"), end: day(t, "12:00")},
	}
	slots := computeFreeSlots(busy, day(t, "09:00"), day(t, "19:00"), time.Hour, "2026-09-01")

	require.NotEmpty(t, slots)
	assert.Equal(t, "12:00", slots[0].StartTime)
	for _, s := range slots {
		assert.NotEqual(t, "15:00", s.StartTime)
		assert.NotEqual(t, "15:30", s.StartTime)
	}
}

func TestComputeFreeSlotsFullyBooked(t *testing.T) {
	busy := []interval{
		{start: day(t, "09:00"), end: day(t, "19:00")},
	}
	slots := computeFreeSlots(busy, day(t, "09:00"), day(t, "19:00"), time.Hour, "2026-09-01")
	assert.Empty(t, slots)
}

func TestComputeFreeSlotsLongService(t *testing.T) {
	// A three-hour service near closing time must not overflow the day.
	slots := computeFreeSlots(nil, day(t, "09:00"), day(t, "19:00"), 3*time.Hour, "2026-09-01")
	require.NotEmpty(t, slots)
	assert.Equal(t, "16:00", slots[len(slots)-1].StartTime)
	assert.Equal(t, "19:00", slots[len(slots)-1].EndTime)
}
