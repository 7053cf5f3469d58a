// server/internal/database/seeder.go
package database

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"blooddoc-api-server/config"
	"blooddoc-api-server/internal/auth"
	"blooddoc-api-server/internal/models"
)

// SeedAdmin creates the admin account from configuration if it is missing.
// The admin role cannot be obtained through registration.
func SeedAdmin(ctx context.Context, accounts *AccountStore, cfg config.AdminConfig) error {
	if cfg.Email == "" || cfg.Password == "" {
		log.Warn().Msg("admin.password not set, admin seeding skipped")
		return nil
	}

	_, err := accounts.FindByEmailRole(ctx, cfg.Email, models.RoleAdmin)
	if err == nil {
		log.Info().Str("email", cfg.Email).Msg("admin already exists, seeding skipped")
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	hashedPassword, err := auth.HashPassword(cfg.Password)
	if err != nil {
		return err
	}

	admin := &models.Account{
		Email:        cfg.Email,
		Name:         "Administrator",
		PasswordHash: hashedPassword,
		Role:         models.RoleAdmin,
		CreatedAt:    time.Now(),
	}
	if err := accounts.Create(ctx, admin); err != nil {
		// Another instance won the race.
		if errors.Is(err, ErrDuplicate) {
			return nil
		}
		return err
	}

	log.Info().Str("email", cfg.Email).Msg("admin seeded")
	return nil
}
