// Package interval provides half-open time-of-day interval arithmetic for the
// scheduling engine. All ranges are [start, end): touching endpoints do not
// overlap, which is what makes back-to-back bookings legal.
package interval

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a clock time expressed as minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS" (seconds are discarded).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("interval: invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("interval: invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("interval: invalid minute in %q", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// MustTimeOfDay is a test helper; it panics on malformed input.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Duration returns the time of day as an offset from midnight.
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Minute
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.String())), nil
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("interval: time of day must be a string: %w", err)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Range is a half-open interval [Start, End) within a single day.
type Range struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Valid reports whether the range is non-empty and correctly ordered.
func (r Range) Valid() bool { return r.Start < r.End }

// Minutes returns the length of the range.
func (r Range) Minutes() int { return int(r.End - r.Start) }

// Overlaps reports whether a and b share at least one instant.
// Half-open semantics: a.End == b.Start is not an overlap.
func Overlaps(a, b Range) bool {
	return a.Start < b.End && b.Start < a.End
}

// Within reports whether inner lies entirely inside outer.
func Within(inner, outer Range) bool {
	return outer.Start <= inner.Start && inner.End <= outer.End
}

// Merge sorts the given ranges by start and coalesces overlapping or touching
// neighbours into maximal ranges. Empty/inverted inputs are discarded. The
// input slice is not modified.
func Merge(ranges []Range) []Range {
	sorted := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Valid() {
			sorted = append(sorted, r)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	var merged []Range
	for _, r := range sorted {
		if n := len(merged); n > 0 && r.Start <= merged[n-1].End {
			if r.End > merged[n-1].End {
				merged[n-1].End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Subtract returns the ordered maximal sub-ranges of base not covered by any
// busy range. Busy ranges may be unsorted and may overlap each other; they are
// merged first, so the result is independent of input order.
func Subtract(base Range, busy []Range) []Range {
	if !base.Valid() {
		return nil
	}

	free := make([]Range, 0, len(busy)+1)
	cursor := base.Start
	for _, b := range Merge(busy) {
		if b.End <= base.Start || b.Start >= base.End {
			continue
		}
		if b.Start > cursor {
			free = append(free, Range{Start: cursor, End: b.Start})
		}
		if b.End > cursor {
			cursor = b.End
		}
	}
	if cursor < base.End {
		free = append(free, Range{Start: cursor, End: base.End})
	}
	return free
}
