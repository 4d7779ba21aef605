package calendar

import (
	"sort"
	"time"
)

// Business hours for slot computation.
const (
	openHour  = 9  // 9 AM
	closeHour = 19 // 7 PM

	// slotStep is the stepping between offered start times.
	slotStep = 30 * time.Minute
)

type interval struct {
	start time.Time
	end   time.Time
}

// computeFreeSlots walks the business day from dayStart to dayEnd and returns
// every slot of the given duration that does not overlap a busy interval.
// After a collision the cursor jumps to the end of the busy interval rather
// than stepping, matching how a receptionist would offer "the next opening".
func computeFreeSlots(busy []interval, dayStart, dayEnd time.Time, duration time.Duration, date string) []Slot {
	sort.Slice(busy, func(i, j int) bool { return busy[i].start.Before(busy[j].start) })

	var slots []Slot
	current := dayStart
	for !current.Add(duration).After(dayEnd) {
		slotEnd := current.Add(duration)
		free := true
		for _, b := range busy {
			if current.Before(b.end) && slotEnd.After(b.start) {
				free = false
				current = b.end
				break
			}
		}
		if free {
			slots = append(slots, Slot{
				Date:      date,
				StartTime: current.Format("15:04"),
				EndTime:   slotEnd.Format("15:04"),
			})
			current = current.Add(slotStep)
		}
	}
	return slots
}
