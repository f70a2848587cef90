package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mediturn/booking-service/internal/booking"
	"github.com/mediturn/booking-service/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedDoctors(context.Background(), pool, 50); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

var specialties = []booking.Specialty{
	booking.SpecialtyGeneralMedicine,
	booking.SpecialtyCardiology,
	booking.SpecialtyPediatrics,
	booking.SpecialtyDermatology,
	booking.SpecialtyNeurology,
	booking.SpecialtyOrthopedics,
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d doctors", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		experience := fmt.Sprintf("%d years of practice", gofakeit.Number(2, 35))
		price := decimal.NewFromInt(int64(gofakeit.Number(30, 250)))
		location := gofakeit.City()
		telehealth := gofakeit.Bool()
		about := gofakeit.Sentence(12)

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, experience, price_per_consultation,
			                     image_url, is_telehealth_available, location, about,
			                     created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, '', $6, $7, $8, now(), now())
		`, id, name, spec, experience, price, telehealth, location, about)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("doctors seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			// Prefix with a counter so generated addresses never collide
			// with the unique index.
			email := fmt.Sprintf("p%d.%s", i, gofakeit.Email())
			phone := gofakeit.Phone()
			dob := gofakeit.DateRange(
				time.Now().AddDate(-90, 0, 0),
				time.Now().AddDate(-18, 0, 0),
			)

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, phone, date_of_birth, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, id, name, email, phone, dob)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
