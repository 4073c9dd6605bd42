package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pdr/internal/domain/auth"
	"pdr/internal/domain/pdr"
	"pdr/internal/platform/config"
)

// companyValues is the default behavior framework seeded on first boot.
var companyValues = []struct {
	Name        string
	Description string
}{
	{"Customer First", "Start from the customer's problem and work backwards."},
	{"Own the Outcome", "Take responsibility end to end, not just for your part."},
	{"Straight Talk", "Be direct, honest and kind; disagree openly."},
	{"Keep Improving", "Leave the work, the team and yourself better than you found them."},
	{"One Team", "Help each other win; share context and credit."},
}

func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensureCompanyValues(ctx, pool); err != nil {
		return err
	}
	if err := ensureAppSettings(ctx, pool, cfg); err != nil {
		return err
	}
	if cfg.SeedCEOEmail != "" && cfg.SeedCEOPassword != "" {
		if err := ensureCEOUser(ctx, pool, cfg); err != nil {
			return err
		}
	}
	return nil
}

func ensureCompanyValues(ctx context.Context, pool *pgxpool.Pool) error {
	for i, value := range companyValues {
		_, err := pool.Exec(ctx, `
      INSERT INTO company_values (name, description, sort_order)
      VALUES ($1,$2,$3)
      ON CONFLICT (name) DO NOTHING
    `, value.Name, value.Description, i)
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureAppSettings(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	_, err := pool.Exec(ctx, `
    INSERT INTO app_settings (id, email_notifications_enabled, email_from)
    VALUES (1,$1,$2)
    ON CONFLICT (id) DO NOTHING
  `, cfg.EmailEnabled, cfg.EmailFrom)
	return err
}

func ensureCEOUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", cfg.SeedCEOEmail).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(cfg.SeedCEOPassword)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
    INSERT INTO users (email, name, role, password_hash, status)
    VALUES ($1,$2,$3,$4,'active')
  `, cfg.SeedCEOEmail, cfg.SeedCEOName, string(pdr.RoleCEO), hash)
	return err
}
