package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Service   BookingService
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Log       *zap.Logger
	Env       string
	Version   string
	RateLimit int // requests per minute per client IP
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	if cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
	}

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/doctors", func(r chi.Router) {
		r.Post("/", createDoctorHandler(cfg.Service))
		r.Get("/", listDoctorsHandler(cfg.Service))
		r.Get("/{id}", getDoctorHandler(cfg.Service))
		r.Delete("/{id}", deleteDoctorHandler(cfg.Service))
		r.Get("/{id}/slots", listDoctorSlotsHandler(cfg.Service))
	})

	r.Route("/patients", func(r chi.Router) {
		r.Post("/", createPatientHandler(cfg.Service))
		r.Get("/{id}", getPatientHandler(cfg.Service))
		r.Delete("/{id}", deletePatientHandler(cfg.Service))
		r.Get("/{id}/appointments", listPatientAppointmentsHandler(cfg.Service))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", bookAppointmentHandler(cfg.Service))
		r.Get("/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/{id}/status", transitionAppointmentHandler(cfg.Service))
		r.Post("/{id}/reschedule", rescheduleAppointmentHandler(cfg.Service))
	})

	return r
}
