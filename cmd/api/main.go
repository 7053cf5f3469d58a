// server/cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"blooddoc-api-server/config"
	"blooddoc-api-server/internal/ai"
	"blooddoc-api-server/internal/api/handlers"
	"blooddoc-api-server/internal/api/routes"
	"blooddoc-api-server/internal/auth"
	"blooddoc-api-server/internal/database"
	"blooddoc-api-server/internal/geo"
	"blooddoc-api-server/internal/logger"
	redisclient "blooddoc-api-server/internal/redis"
	"blooddoc-api-server/internal/s3"
	"blooddoc-api-server/internal/service"
	"blooddoc-api-server/internal/sms"
	"blooddoc-api-server/internal/socket"
)

func main() {
	// 1. Load .env (optional) and configuration
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatal().Err(err).Msg("could not load config")
	}
	logger.Init("blooddoc-api", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. MongoDB
	mongoClient, err := database.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("mongo disconnect")
		}
	}()
	db := mongoClient.Database(cfg.Mongo.DBName)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure indexes")
	}

	accountStore := database.NewAccountStore(db)
	if err := database.SeedAdmin(ctx, accountStore, cfg.Admin); err != nil {
		log.Error().Err(err).Msg("admin seed failed")
	}

	health := &handlers.HealthHandler{
		Env:     cfg.Server.Env,
		Version: cfg.Server.Version,
		Mongo:   func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
	}

	// 3. Locks: Redis when configured, in-process otherwise
	var locker redisclient.Locker
	if cfg.Redis.Addr != "" {
		rdb, err := redisclient.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to Redis")
		}
		defer rdb.Close()
		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL(), redisclient.WithKeyPrefix(cfg.Redis.KeyPrefix))
		health.Redis = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis locks")
	} else {
		locker = redisclient.NewLocalLocker(cfg.LockTTL())
		log.Warn().Msg("REDIS_ADDR not set, using in-process locks (single instance only)")
	}

	// 4. Report archive (optional)
	var archiver service.Archiver
	if cfg.S3.Bucket != "" {
		uploader, err := s3.NewUploader(ctx, cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init S3 uploader")
		}
		archiver = uploader
	}

	// 5. Services
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.TokenTTL())
	resolver := geo.NewStaticResolver(nil)
	hub := socket.NewHub()
	hospitalStore := database.NewHospitalStore(db)
	radius := cfg.SearchRadiusMeters()

	gemini := ai.NewClient(cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.Model)
	twilio := sms.NewClient(sms.Config{
		BaseURL:             cfg.Twilio.BaseURL,
		AccountSID:          cfg.Twilio.AccountSID,
		AuthToken:           cfg.Twilio.AuthToken,
		MessagingServiceSID: cfg.Twilio.MessagingServiceSID,
		PhonePrefix:         cfg.Twilio.PhonePrefix,
	})

	router := routes.SetupRouter(cfg, routes.Dependencies{
		Tokens:    tokens,
		Accounts:  service.NewAccountService(accountStore, hospitalStore, tokens, resolver),
		Hospitals: service.NewHospitalService(hospitalStore, resolver, radius),
		Transfers: service.NewTransferService(hospitalStore, database.NewBloodRequestStore(db), locker, hub),
		SOS:       service.NewSOSService(hospitalStore, database.NewSOSStore(db), locker, hub, radius),
		Assist:    service.NewAssistService(gemini, twilio, archiver),
		Hub:       hub,
		Health:    health,
	})

	// 6. Start server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("env", cfg.Server.Env).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to run server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
