// server/cmd/seed/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"blooddoc-api-server/config"
	"blooddoc-api-server/internal/apperr"
	"blooddoc-api-server/internal/auth"
	"blooddoc-api-server/internal/database"
	"blooddoc-api-server/internal/geo"
	"blooddoc-api-server/internal/logger"
	"blooddoc-api-server/internal/models"
	"blooddoc-api-server/internal/service"
)

type seedOptions struct {
	configPath string
	hospitals  int
	patients   int
	password   string
	seed       uint64
}

func main() {
	opts := seedOptions{}

	rootCmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate MongoDB with demo hospitals, inventory and patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	rootCmd.Flags().StringVar(&opts.configPath, "config", "./config", "directory containing config.yaml")
	rootCmd.Flags().IntVar(&opts.hospitals, "hospitals", 3, "hospitals to create per city")
	rootCmd.Flags().IntVar(&opts.patients, "patients", 20, "patient accounts to create")
	rootCmd.Flags().StringVar(&opts.password, "password", "password123", "password for every seeded account")
	rootCmd.Flags().Uint64Var(&opts.seed, "seed", 0, "faker seed, 0 for random")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts seedOptions) error {
	_ = godotenv.Load()
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init("blooddoc-seed", cfg.Server.Env)

	client, err := database.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.Mongo.DBName)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	accountStore := database.NewAccountStore(db)
	if err := database.SeedAdmin(ctx, accountStore, cfg.Admin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	resolver := geo.NewStaticResolver(nil)
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.TokenTTL())
	hospitalStore := database.NewHospitalStore(db)

	s := &seeder{
		faker:     gofakeit.New(opts.seed),
		accounts:  service.NewAccountService(accountStore, hospitalStore, tokens, resolver),
		hospitals: service.NewHospitalService(hospitalStore, resolver, cfg.SearchRadiusMeters()),
		password:  opts.password,
		runID:     time.Now().Format("0102150405"),
	}

	cities := resolver.Cities()
	sort.Strings(cities)

	created := 0
	for _, city := range cities {
		for i := 0; i < opts.hospitals; i++ {
			ok, err := s.hospital(ctx, city, i)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
	}
	log.Info().Int("count", created).Msg("hospitals seeded")

	patients := 0
	for i := 0; i < opts.patients; i++ {
		ok, err := s.patient(ctx, i)
		if err != nil {
			return err
		}
		if ok {
			patients++
		}
	}
	log.Info().Int("count", patients).Msg("patients seeded")
	return nil
}

type seeder struct {
	faker     *gofakeit.Faker
	accounts  *service.AccountService
	hospitals *service.HospitalService
	password  string
	runID     string
}

func (s *seeder) email(prefix string, i int) string {
	user := strings.Split(s.faker.Email(), "@")[0]
	return fmt.Sprintf("%s.%s.%s%d@blooddoc.test", prefix, user, s.runID, i)
}

// hospital registers a hospital account in city and stocks a random subset of blood types.
// Conflicts are skipped so the command can be re-run.
func (s *seeder) hospital(ctx context.Context, city string, i int) (bool, error) {
	res, err := s.accounts.Register(ctx, service.RegisterInput{
		Email:    s.email("hospital", i),
		Password: s.password,
		Name:     s.faker.Company() + " Hospital",
		Role:     models.RoleHospital,
		Address:  s.faker.Street(),
		Phone:    s.faker.Phone(),
		City:     strings.ToUpper(city[:1]) + city[1:],
	})
	if apperr.Is(err, apperr.KindConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("register hospital: %w", err)
	}

	owner := auth.Principal{ID: res.User.ID.Hex(), Email: res.User.Email, Name: res.User.Name, Role: res.User.Role}
	h, err := s.hospitals.GetByOwner(ctx, owner, owner.ID)
	if err != nil {
		return false, fmt.Errorf("load hospital profile: %w", err)
	}

	now := time.Now()
	for _, bt := range models.BloodTypes {
		if s.faker.Number(0, 3) == 0 {
			continue
		}
		units := s.faker.Number(0, 40)
		expiry := s.faker.DateRange(now.AddDate(0, 0, 7), now.AddDate(0, 0, 42)).Format("2006-01-02")
		_, err := s.hospitals.UpsertInventory(ctx, owner, h.ID.Hex(), service.UpsertInventoryInput{
			BloodType:  bt,
			Units:      &units,
			ExpiryDate: &expiry,
		})
		if err != nil {
			return false, fmt.Errorf("stock %s for %s: %w", bt, h.Name, err)
		}
	}
	log.Debug().Str("hospital", h.Name).Str("city", h.City).Msg("hospital seeded")
	return true, nil
}

func (s *seeder) patient(ctx context.Context, i int) (bool, error) {
	_, err := s.accounts.Register(ctx, service.RegisterInput{
		Email:    s.email("patient", i),
		Password: s.password,
		Name:     s.faker.Name(),
		Role:     models.RolePatient,
	})
	if apperr.Is(err, apperr.KindConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("register patient: %w", err)
	}
	return true, nil
}
