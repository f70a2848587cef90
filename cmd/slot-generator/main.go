package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mediturn/booking-service/internal/booking"
	"github.com/mediturn/booking-service/internal/config"
	"github.com/mediturn/booking-service/internal/db"
	"github.com/mediturn/booking-service/internal/logger"
)

// slot-generator creates upcoming time slots for every doctor in batches.
// Slots are only ever claimed or released through the allocator; this job
// simply keeps the bookable horizon filled.

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	zlog.Info("slot-generator starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.SlotGenInterval),
		zap.Int("horizon_days", cfg.SlotHorizonDays))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		zlog.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	zlog.Info("connected to Postgres")

	repo := booking.NewPgRepository(pgPool)

	// Run once at startup, then on the interval.
	runOnce(rootCtx, repo, cfg, zlog)

	ticker := time.NewTicker(cfg.SlotGenInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			zlog.Info("shutdown signal received, stopping slot-generator")
			return
		case <-ticker.C:
			runOnce(rootCtx, repo, cfg, zlog)
		}
	}
}

func runOnce(ctx context.Context, repo booking.Repository, cfg config.Config, zlog *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	total := 0

	const pageSize = 100
	for offset := 0; ; offset += pageSize {
		doctors, err := repo.ListDoctors(runCtx, nil, "", pageSize, offset)
		if err != nil {
			zlog.Error("list doctors failed", zap.Error(err))
			return
		}
		if len(doctors) == 0 {
			break
		}

		for _, d := range doctors {
			n, err := generateForDoctor(runCtx, repo, cfg, d.ID)
			if err != nil {
				zlog.Error("slot generation failed",
					zap.String("doctor_id", d.ID.String()),
					zap.Error(err))
				continue
			}
			total += n
		}

		if len(doctors) < pageSize {
			break
		}
	}

	zlog.Info("slot generation run complete",
		zap.Int("slots_created", total),
		zap.Duration("took", time.Since(start)))
}

func generateForDoctor(ctx context.Context, repo booking.Repository, cfg config.Config, doctorID uuid.UUID) (int, error) {
	now := time.Now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var slots []booking.TimeSlot
	for d := 0; d < cfg.SlotHorizonDays; d++ {
		dayStart := day.AddDate(0, 0, d).Add(time.Duration(cfg.SlotDayStart) * time.Hour)
		dayEnd := day.AddDate(0, 0, d).Add(time.Duration(cfg.SlotDayEnd) * time.Hour)

		for at := dayStart; at.Before(dayEnd); at = at.Add(cfg.SlotStep) {
			if at.Before(now) {
				continue
			}
			slots = append(slots, booking.TimeSlot{
				ID:          uuid.New(),
				DoctorID:    doctorID,
				At:          at,
				IsAvailable: true,
			})
		}
	}

	if len(slots) == 0 {
		return 0, nil
	}
	// Existing (doctor, at) rows are skipped, so rerunning is harmless.
	return repo.CreateTimeSlots(ctx, slots)
}
