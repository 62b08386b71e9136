package appointment

import (
	"sort"

	"github.com/docktorek/docktorek-api/internal/interval"
	"github.com/docktorek/docktorek-api/internal/schedule"
)

// Slot is one bookable subdivision of an availability window.
type Slot struct {
	Start interval.TimeOfDay `json:"start_time"`
	End   interval.TimeOfDay `json:"end_time"`
}

// GenerateSlots subdivides each window by its slot duration, drops candidates
// that overlap a busy range, and returns the remaining slots ordered by start
// time. A window length that is not an exact multiple of the slot duration
// yields a shorter final slot rather than losing the remainder. Identical
// slots produced by overlapping windows appear once.
func GenerateSlots(windows []*schedule.AvailabilityWindow, busy []interval.Range) []Slot {
	merged := interval.Merge(busy)

	seen := make(map[Slot]bool)
	slots := []Slot{}
	for _, w := range windows {
		if !w.Active || w.SlotDuration <= 0 {
			continue
		}
		step := interval.TimeOfDay(w.SlotDuration)
		for start := w.Start; start < w.End; start += step {
			end := start + step
			if end > w.End {
				end = w.End
			}
			candidate := interval.Range{Start: start, End: end}
			if overlapsAny(candidate, merged) {
				continue
			}
			slot := Slot{Start: start, End: end}
			if seen[slot] {
				continue
			}
			seen[slot] = true
			slots = append(slots, slot)
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Start != slots[j].Start {
			return slots[i].Start < slots[j].Start
		}
		return slots[i].End < slots[j].End
	})
	return slots
}

func overlapsAny(candidate interval.Range, busy []interval.Range) bool {
	for _, b := range busy {
		if interval.Overlaps(candidate, b) {
			return true
		}
	}
	return false
}
