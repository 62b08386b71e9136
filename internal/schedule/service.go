package schedule

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/docktorek/docktorek-api/pkg/logging"
)

var scheduleTracer = otel.Tracer("docktorek.internal.schedule")

// Service enforces ownership over availability window mutations.
type Service struct {
	repo   Repository
	logger *logging.Logger
}

// NewService constructs a schedule service.
func NewService(repo Repository, logger *logging.Logger) *Service {
	if repo == nil {
		panic("schedule: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Add declares a new availability window for the doctor.
func (s *Service) Add(ctx context.Context, doctorID uuid.UUID, req *CreateWindowRequest) (*AvailabilityWindow, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.add")
	defer span.End()
	span.SetAttributes(attribute.String("docktorek.doctor_id", doctorID.String()))

	w, err := req.Window(doctorID)
	if err != nil {
		return nil, err
	}
	w.ID = uuid.New()
	if err := s.repo.Create(ctx, w); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("availability window added",
		"window_id", w.ID, "doctor_id", doctorID, "day", w.Day, "start", w.Start.String())
	return w, nil
}

// Update patches a window owned by the caller.
func (s *Service) Update(ctx context.Context, windowID, callerID uuid.UUID, req *UpdateWindowRequest) (*AvailabilityWindow, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.update")
	defer span.End()
	span.SetAttributes(attribute.String("docktorek.window_id", windowID.String()))

	w, err := s.repo.GetByID(ctx, windowID)
	if err != nil {
		return nil, err
	}
	if w.DoctorID != callerID {
		return nil, ErrNotOwner
	}
	if err := req.Apply(w); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, w); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("availability window updated", "window_id", w.ID, "doctor_id", callerID)
	return w, nil
}

// Remove deletes a window owned by the caller.
func (s *Service) Remove(ctx context.Context, windowID, callerID uuid.UUID) error {
	ctx, span := scheduleTracer.Start(ctx, "schedule.remove")
	defer span.End()
	span.SetAttributes(attribute.String("docktorek.window_id", windowID.String()))

	w, err := s.repo.GetByID(ctx, windowID)
	if err != nil {
		return err
	}
	if w.DoctorID != callerID {
		return ErrNotOwner
	}
	if err := s.repo.Delete(ctx, windowID); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("availability window removed", "window_id", windowID, "doctor_id", callerID)
	return nil
}

// ListFor returns a doctor's active windows, optionally for one weekday.
func (s *Service) ListFor(ctx context.Context, doctorID uuid.UUID, day *Weekday) ([]*AvailabilityWindow, error) {
	return s.repo.ListForDoctor(ctx, doctorID, ListFilter{Day: day})
}

// ListOwned returns every window the doctor has declared, inactive included.
func (s *Service) ListOwned(ctx context.Context, doctorID uuid.UUID) ([]*AvailabilityWindow, error) {
	return s.repo.ListForDoctor(ctx, doctorID, ListFilter{IncludeInactive: true})
}
