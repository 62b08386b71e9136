// Package router assembles the HTTP surface: public discovery endpoints and
// the authenticated scheduling API.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/docktorek/docktorek-api/internal/appointment"
	httpmiddleware "github.com/docktorek/docktorek-api/internal/http/middleware"
	"github.com/docktorek/docktorek-api/internal/http/respond"
	"github.com/docktorek/docktorek-api/internal/profile"
	"github.com/docktorek/docktorek-api/internal/schedule"
	"github.com/docktorek/docktorek-api/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	ScheduleHandler    *schedule.Handler
	AppointmentHandler *appointment.Handler
	ProfileHandler     *profile.Handler
	MetricsHandler     http.Handler
	AuthSecret         string
	RequestTimeout     time.Duration
	CORSAllowedOrigins []string
	RateLimitPerMin    int
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.RequestTimeout > 0 {
		// Bounds every downstream repository call through the request context.
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.RateLimitPerMin > 0 {
		r.Use(httpmiddleware.RateLimit(float64(cfg.RateLimitPerMin)/60, cfg.RateLimitBurst))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: health, metrics and the doctors directory.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.ProfileHandler != nil {
			public.Get("/api/doctors", cfg.ProfileHandler.ListDoctors)
			public.Get("/api/doctors/{doctorID}", cfg.ProfileHandler.GetDoctor)
		}
		if cfg.AppointmentHandler != nil {
			public.Get("/api/doctors/{doctorID}/slots", cfg.AppointmentHandler.FreeSlots)
		}
		if cfg.ScheduleHandler != nil {
			public.Get("/api/availability", cfg.ScheduleHandler.ListPublic)
		}
	})

	// Authenticated API.
	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.BearerAuth(cfg.AuthSecret))

		if cfg.ScheduleHandler != nil {
			api.Route("/api/doctor/availability", func(r chi.Router) {
				r.Get("/", cfg.ScheduleHandler.ListOwn)
				r.Post("/", cfg.ScheduleHandler.Create)
				r.Put("/{windowID}", cfg.ScheduleHandler.Update)
				r.Delete("/{windowID}", cfg.ScheduleHandler.Delete)
			})
		}

		if cfg.ProfileHandler != nil {
			api.Route("/api/patient/favorites", func(r chi.Router) {
				r.Get("/", cfg.ProfileHandler.ListFavorites)
				r.Post("/", cfg.ProfileHandler.AddFavorite)
				r.Delete("/{doctorID}", cfg.ProfileHandler.RemoveFavorite)
			})
		}

		if cfg.AppointmentHandler != nil {
			api.Route("/api/appointments", func(r chi.Router) {
				r.Post("/", cfg.AppointmentHandler.Create)
				r.Get("/", cfg.AppointmentHandler.List)
				r.Route("/{appointmentID}", func(r chi.Router) {
					r.Get("/", cfg.AppointmentHandler.Get)
					r.Get("/audit", cfg.AppointmentHandler.Audit)
					r.Patch("/cancel", cfg.AppointmentHandler.Cancel)
					r.Patch("/reschedule", cfg.AppointmentHandler.Reschedule)
					r.Patch("/status", cfg.AppointmentHandler.ModifyStatus)
					r.Patch("/notes", cfg.AppointmentHandler.Notes)
				})
			})
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
