package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	pgxmock "github.com/pashagolub/pgxmock/v3"

	"github.com/docktorek/docktorek-api/internal/interval"
)

func TestTimeOfDayPgMapping(t *testing.T) {
	nine := interval.MustTimeOfDay("09:30")
	pg := timeOfDayToPg(nine)
	if !pg.Valid {
		t.Fatal("expected valid pgtype.Time")
	}
	if got := timeOfDayFromPg(pg); got != nine {
		t.Fatalf("round trip = %v, want %v", got, nine)
	}
}

func TestPostgresCreateWindow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	now := time.Now()
	w := &AvailabilityWindow{
		ID:           uuid.New(),
		DoctorID:     uuid.New(),
		Day:          Monday,
		Start:        interval.MustTimeOfDay("09:00"),
		End:          interval.MustTimeOfDay("12:00"),
		SlotDuration: 30,
		Active:       true,
	}

	mock.ExpectQuery("INSERT INTO doctor_availability").
		WithArgs(w.ID, w.DoctorID, "monday", timeOfDayToPg(w.Start), timeOfDayToPg(w.End), 30, true).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	if err := repo.Create(context.Background(), w); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !w.CreatedAt.Equal(now) {
		t.Fatalf("created_at not populated: %v", w.CreatedAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresCreateWindow_Duplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	mock.ExpectQuery("INSERT INTO doctor_availability").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "doctor_availability_doctor_day_start_key"})

	w := &AvailabilityWindow{ID: uuid.New(), DoctorID: uuid.New(), Day: Monday, Start: 540, End: 720, SlotDuration: 30, Active: true}
	if err := repo.Create(context.Background(), w); !errors.Is(err, ErrDuplicateWindow) {
		t.Fatalf("expected ErrDuplicateWindow, got %v", err)
	}
}

func TestPostgresGetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM doctor_availability").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), id); !errors.Is(err, ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound, got %v", err)
	}
}

func TestPostgresDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM doctor_availability").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	if err := repo.Delete(context.Background(), id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	mock.ExpectExec("DELETE FROM doctor_availability").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	if err := repo.Delete(context.Background(), id); !errors.Is(err, ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound, got %v", err)
	}
}

func TestPostgresListForDoctor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	doctorID := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows([]string{
		"id", "doctor_id", "day_of_week", "start_time", "end_time",
		"slot_duration", "is_available", "created_at", "updated_at",
	}).AddRow(
		uuid.New(), doctorID, "monday",
		pgtype.Time{Microseconds: 9 * 3600 * 1_000_000, Valid: true},
		pgtype.Time{Microseconds: 12 * 3600 * 1_000_000, Valid: true},
		30, true, now, now,
	)
	mock.ExpectQuery("SELECT (.+) FROM doctor_availability").
		WithArgs(doctorID, (*string)(nil), false).
		WillReturnRows(rows)

	windows, err := repo.ListForDoctor(context.Background(), doctorID, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	if windows[0].Start.String() != "09:00" || windows[0].End.String() != "12:00" {
		t.Fatalf("unexpected range %s-%s", windows[0].Start, windows[0].End)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
