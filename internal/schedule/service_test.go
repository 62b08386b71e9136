package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/docktorek/docktorek-api/pkg/logging"
)

func newTestService() *Service {
	return NewService(NewMemoryRepository(), logging.Default())
}

func mondayWindow() *CreateWindowRequest {
	return &CreateWindowRequest{
		Day:          "monday",
		Start:        "09:00",
		End:          "12:00",
		SlotDuration: 30,
	}
}

func TestAddWindow(t *testing.T) {
	svc := newTestService()
	doctorID := uuid.New()

	w, err := svc.Add(context.Background(), doctorID, mondayWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.ID == uuid.Nil {
		t.Error("expected window ID to be set")
	}
	if !w.Active {
		t.Error("expected window to default to active")
	}
	if w.Day != Monday || w.Start.String() != "09:00" || w.End.String() != "12:00" {
		t.Errorf("unexpected window %+v", w)
	}
}

func TestAddWindow_Duplicate(t *testing.T) {
	svc := newTestService()
	doctorID := uuid.New()
	ctx := context.Background()

	if _, err := svc.Add(ctx, doctorID, mondayWindow()); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := svc.Add(ctx, doctorID, mondayWindow()); !errors.Is(err, ErrDuplicateWindow) {
		t.Fatalf("expected ErrDuplicateWindow, got %v", err)
	}

	// Same start on a different weekday is fine.
	req := mondayWindow()
	req.Day = "tuesday"
	if _, err := svc.Add(ctx, doctorID, req); err != nil {
		t.Fatalf("different weekday: %v", err)
	}

	// Same window for a different doctor is fine.
	if _, err := svc.Add(ctx, uuid.New(), mondayWindow()); err != nil {
		t.Fatalf("different doctor: %v", err)
	}
}

func TestAddWindow_Validation(t *testing.T) {
	svc := newTestService()
	doctorID := uuid.New()
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*CreateWindowRequest)
		wantErr error
	}{
		{"bad day", func(r *CreateWindowRequest) { r.Day = "someday" }, ErrInvalidDay},
		{"reversed range", func(r *CreateWindowRequest) { r.Start, r.End = r.End, r.Start }, ErrInvalidTimeRange},
		{"empty range", func(r *CreateWindowRequest) { r.End = r.Start }, ErrInvalidTimeRange},
		{"unparseable start", func(r *CreateWindowRequest) { r.Start = "soonish" }, ErrInvalidTimeRange},
		{"zero slot duration", func(r *CreateWindowRequest) { r.SlotDuration = 0 }, ErrInvalidSlotDuration},
		{"negative slot duration", func(r *CreateWindowRequest) { r.SlotDuration = -15 }, ErrInvalidSlotDuration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mondayWindow()
			tt.mutate(req)
			if _, err := svc.Add(ctx, doctorID, req); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestUpdateWindow_Ownership(t *testing.T) {
	svc := newTestService()
	owner := uuid.New()
	ctx := context.Background()

	w, err := svc.Add(ctx, owner, mondayWindow())
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	newEnd := "13:00"
	if _, err := svc.Update(ctx, w.ID, uuid.New(), &UpdateWindowRequest{End: &newEnd}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	updated, err := svc.Update(ctx, w.ID, owner, &UpdateWindowRequest{End: &newEnd})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.End.String() != "13:00" {
		t.Fatalf("end = %s, want 13:00", updated.End)
	}
	if updated.Start.String() != "09:00" {
		t.Fatalf("start should be untouched, got %s", updated.Start)
	}
}

func TestUpdateWindow_NotFound(t *testing.T) {
	svc := newTestService()
	active := false
	_, err := svc.Update(context.Background(), uuid.New(), uuid.New(), &UpdateWindowRequest{Active: &active})
	if !errors.Is(err, ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound, got %v", err)
	}
}

func TestUpdateWindow_RejectsReversedRange(t *testing.T) {
	svc := newTestService()
	owner := uuid.New()
	ctx := context.Background()

	w, err := svc.Add(ctx, owner, mondayWindow())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	badEnd := "08:00"
	if _, err := svc.Update(ctx, w.ID, owner, &UpdateWindowRequest{End: &badEnd}); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
}

func TestRemoveWindow(t *testing.T) {
	svc := newTestService()
	owner := uuid.New()
	ctx := context.Background()

	w, err := svc.Add(ctx, owner, mondayWindow())
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := svc.Remove(ctx, w.ID, uuid.New()); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := svc.Remove(ctx, w.ID, owner); err != nil {
		t.Fatalf("owner remove: %v", err)
	}
	if err := svc.Remove(ctx, w.ID, owner); !errors.Is(err, ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound after delete, got %v", err)
	}
}

func TestListFor_ActiveOnlyAndOrdered(t *testing.T) {
	svc := newTestService()
	doctorID := uuid.New()
	ctx := context.Background()

	late := mondayWindow()
	late.Start, late.End = "14:00", "17:00"
	if _, err := svc.Add(ctx, doctorID, late); err != nil {
		t.Fatalf("add late: %v", err)
	}
	if _, err := svc.Add(ctx, doctorID, mondayWindow()); err != nil {
		t.Fatalf("add early: %v", err)
	}
	inactive := mondayWindow()
	inactive.Start, inactive.End = "18:00", "20:00"
	off := false
	inactive.Active = &off
	if _, err := svc.Add(ctx, doctorID, inactive); err != nil {
		t.Fatalf("add inactive: %v", err)
	}

	day := Monday
	windows, err := svc.ListFor(ctx, doctorID, &day)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected 2 active windows, got %d", len(windows))
	}
	if windows[0].Start >= windows[1].Start {
		t.Fatalf("windows out of order: %v then %v", windows[0].Start, windows[1].Start)
	}

	owned, err := svc.ListOwned(ctx, doctorID)
	if err != nil {
		t.Fatalf("list owned: %v", err)
	}
	if len(owned) != 3 {
		t.Fatalf("expected 3 owned windows, got %d", len(owned))
	}
}

func TestWeekdayOf(t *testing.T) {
	tests := []struct {
		date string
		want Weekday
	}{
		{"2026-09-07", Monday},
		{"2026-09-12", Saturday},
		{"2026-09-13", Sunday},
	}
	for _, tt := range tests {
		date, err := time.Parse("2006-01-02", tt.date)
		if err != nil {
			t.Fatalf("parse %s: %v", tt.date, err)
		}
		if got := WeekdayOf(date); got != tt.want {
			t.Errorf("WeekdayOf(%s) = %s, want %s", tt.date, got, tt.want)
		}
	}
}
