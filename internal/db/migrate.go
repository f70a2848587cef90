package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Statements are idempotent so every binary can run them at startup.
// Constraint names matter: the repository maps 23505 violations on
// patients_email_key and time_slots_doctor_id_at_key to domain errors.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS doctors (
		id                      uuid PRIMARY KEY,
		name                    text NOT NULL,
		specialty               text NOT NULL,
		experience              text NOT NULL DEFAULT '',
		price_per_consultation  numeric(10,2) NOT NULL DEFAULT 0,
		image_url               text NOT NULL DEFAULT '',
		is_telehealth_available boolean NOT NULL DEFAULT false,
		location                text NOT NULL,
		about                   text NOT NULL DEFAULT '',
		created_at              timestamptz NOT NULL DEFAULT now(),
		updated_at              timestamptz NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS patients (
		id            uuid PRIMARY KEY,
		name          text NOT NULL,
		email         text NOT NULL,
		phone         text NOT NULL DEFAULT '',
		date_of_birth date NOT NULL,
		created_at    timestamptz NOT NULL DEFAULT now(),
		updated_at    timestamptz NOT NULL DEFAULT now(),
		CONSTRAINT patients_email_key UNIQUE (email)
	)`,

	`CREATE TABLE IF NOT EXISTS time_slots (
		id           uuid PRIMARY KEY,
		doctor_id    uuid NOT NULL REFERENCES doctors (id),
		at           timestamptz NOT NULL,
		is_available boolean NOT NULL DEFAULT true,
		created_at   timestamptz NOT NULL DEFAULT now(),
		updated_at   timestamptz NOT NULL DEFAULT now(),
		CONSTRAINT time_slots_doctor_id_at_key UNIQUE (doctor_id, at)
	)`,

	`CREATE TABLE IF NOT EXISTS appointments (
		id                uuid PRIMARY KEY,
		doctor_id         uuid NOT NULL REFERENCES doctors (id),
		patient_id        uuid NOT NULL REFERENCES patients (id),
		date              timestamptz NOT NULL,
		consultation_type text NOT NULL,
		reason            text NOT NULL DEFAULT '',
		status            text NOT NULL,
		created_at        timestamptz NOT NULL DEFAULT now(),
		updated_at        timestamptz NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS appointments_patient_id_date_idx
		ON appointments (patient_id, date DESC)`,

	`CREATE INDEX IF NOT EXISTS time_slots_doctor_id_available_idx
		ON time_slots (doctor_id, at) WHERE is_available`,
}

// Migrate applies the schema. Safe to run concurrently from several
// binaries; every statement is IF NOT EXISTS.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
