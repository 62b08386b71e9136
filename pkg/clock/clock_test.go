package clock

import (
	"testing"
	"time"
)

func TestFixedClock(t *testing.T) {
	instant := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	c := Fixed{Instant: instant}
	if !c.Now().Equal(instant) {
		t.Fatalf("Fixed.Now() = %v, want %v", c.Now(), instant)
	}
	if !c.Now().Equal(c.Now()) {
		t.Fatal("Fixed clock must not advance")
	}
}

func TestToday(t *testing.T) {
	c := Fixed{Instant: time.Date(2026, 3, 14, 23, 59, 59, 0, time.UTC)}
	want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if got := Today(c); !got.Equal(want) {
		t.Fatalf("Today = %v, want %v", got, want)
	}
}

func TestDateOnlyNormalizesZone(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	in := time.Date(2026, 3, 15, 2, 30, 0, 0, loc) // 2026-03-14 21:30 UTC
	want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if got := DateOnly(in); !got.Equal(want) {
		t.Fatalf("DateOnly = %v, want %v", got, want)
	}
}

func TestRealClockIsUTC(t *testing.T) {
	now := Real{}.Now()
	if now.Location() != time.UTC {
		t.Fatalf("Real.Now() location = %v, want UTC", now.Location())
	}
}
