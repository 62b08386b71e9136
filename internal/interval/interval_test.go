package interval

import (
	"encoding/json"
	"math/rand"
	"testing"
)

func rng(start, end string) Range {
	return Range{Start: MustTimeOfDay(start), End: MustTimeOfDay(end)}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"09:00", 540, false},
		{"09:30:00", 570, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"nine", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTimeOfDayJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(MustTimeOfDay("08:05"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"08:05"` {
		t.Fatalf("marshal = %s", data)
	}
	var back TimeOfDay
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != MustTimeOfDay("08:05") {
		t.Fatalf("round trip = %v", back)
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Range
		want bool
	}{
		{"disjoint", rng("09:00", "10:00"), rng("11:00", "12:00"), false},
		{"touching endpoints", rng("09:00", "10:00"), rng("10:00", "11:00"), false},
		{"one minute overlap", rng("09:00", "10:00"), rng("09:59", "11:00"), true},
		{"contained", rng("09:00", "12:00"), rng("10:00", "11:00"), true},
		{"identical", rng("09:00", "10:00"), rng("09:00", "10:00"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.a, tt.b); got != tt.want {
				t.Errorf("Overlaps(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			// Overlap is symmetric.
			if got := Overlaps(tt.b, tt.a); got != tt.want {
				t.Errorf("Overlaps(%v, %v) = %v, want %v", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestOverlapsSelf(t *testing.T) {
	if !Overlaps(rng("09:00", "09:01"), rng("09:00", "09:01")) {
		t.Error("a non-empty range should overlap itself")
	}
	empty := Range{Start: MustTimeOfDay("09:00"), End: MustTimeOfDay("09:00")}
	if Overlaps(empty, empty) {
		t.Error("an empty range should not overlap itself")
	}
}

func TestWithin(t *testing.T) {
	outer := rng("09:00", "12:00")
	tests := []struct {
		name  string
		inner Range
		want  bool
	}{
		{"strictly inside", rng("10:00", "11:00"), true},
		{"equal", rng("09:00", "12:00"), true},
		{"flush left", rng("09:00", "09:30"), true},
		{"flush right", rng("11:30", "12:00"), true},
		{"starts before", rng("08:30", "10:00"), false},
		{"ends after", rng("11:00", "12:30"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Within(tt.inner, outer); got != tt.want {
				t.Errorf("Within(%v, %v) = %v, want %v", tt.inner, outer, got, tt.want)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	got := Merge([]Range{
		rng("11:00", "12:00"),
		rng("09:00", "10:00"),
		rng("09:30", "11:00"),
		{Start: 600, End: 600}, // empty, dropped
	})
	want := []Range{rng("09:00", "12:00")}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("Merge = %v, want %v", got, want)
	}
}

func TestSubtract(t *testing.T) {
	base := rng("09:00", "12:00")
	tests := []struct {
		name string
		busy []Range
		want []Range
	}{
		{"no busy", nil, []Range{base}},
		{"middle hole", []Range{rng("10:00", "10:30")}, []Range{rng("09:00", "10:00"), rng("10:30", "12:00")}},
		{"flush start", []Range{rng("09:00", "09:30")}, []Range{rng("09:30", "12:00")}},
		{"flush end", []Range{rng("11:30", "12:00")}, []Range{rng("09:00", "11:30")}},
		{"covering", []Range{rng("08:00", "13:00")}, nil},
		{"outside", []Range{rng("13:00", "14:00")}, []Range{base}},
		{
			"overlapping busy merged",
			[]Range{rng("10:00", "11:00"), rng("10:30", "11:30")},
			[]Range{rng("09:00", "10:00"), rng("11:30", "12:00")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Subtract(base, tt.busy)
			if len(got) != len(tt.want) {
				t.Fatalf("Subtract = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Subtract = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

// Subtract must be deterministic regardless of busy ordering, return ranges
// that are ordered, disjoint and inside base, and together with the busy set
// must tile base exactly.
func TestSubtractProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	base := rng("08:00", "18:00")

	for iter := 0; iter < 200; iter++ {
		var busy []Range
		for i := 0; i < r.Intn(6); i++ {
			start := TimeOfDay(420 + r.Intn(720))
			busy = append(busy, Range{Start: start, End: start + TimeOfDay(1+r.Intn(180))})
		}

		free := Subtract(base, busy)

		shuffled := make([]Range, len(busy))
		copy(shuffled, busy)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		free2 := Subtract(base, shuffled)
		if len(free) != len(free2) {
			t.Fatalf("order dependence: %v vs %v", free, free2)
		}
		for i := range free {
			if free[i] != free2[i] {
				t.Fatalf("order dependence: %v vs %v", free, free2)
			}
		}

		prevEnd := base.Start - 1
		for _, f := range free {
			if !f.Valid() {
				t.Fatalf("empty free range %v", f)
			}
			if !Within(f, base) {
				t.Fatalf("free range %v escapes base %v", f, base)
			}
			if f.Start <= prevEnd {
				t.Fatalf("free ranges unordered or overlapping: %v", free)
			}
			prevEnd = f.End
			for _, b := range busy {
				if Overlaps(f, b) {
					t.Fatalf("free range %v overlaps busy %v", f, b)
				}
			}
		}

		// Coverage: every minute of base is either free or busy.
		covered := make([]bool, base.Minutes())
		for _, f := range free {
			for m := f.Start; m < f.End; m++ {
				covered[m-base.Start] = true
			}
		}
		for _, b := range Merge(busy) {
			lo, hi := b.Start, b.End
			if lo < base.Start {
				lo = base.Start
			}
			if hi > base.End {
				hi = base.End
			}
			for m := lo; m < hi; m++ {
				covered[m-base.Start] = true
			}
		}
		for i, ok := range covered {
			if !ok {
				t.Fatalf("minute %d of base neither free nor busy", i)
			}
		}
	}
}
