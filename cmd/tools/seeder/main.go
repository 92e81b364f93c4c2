package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-pos/internal/catalog"
	"github.com/noah-isme/toko-pos/internal/config"
	"github.com/noah-isme/toko-pos/internal/lock"
	"github.com/noah-isme/toko-pos/internal/migrations"
	"github.com/noah-isme/toko-pos/internal/obs"
)

func main() {
	migrate := flag.Bool("migrate", true, "apply schema migrations before seeding")
	flag.Parse()

	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	dbURL := cfg.DatabaseURL
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var locker *lock.Locker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		client := redis.NewClient(opts)
		defer func() { _ = client.Close() }()
		locker = &lock.Locker{R: client}
	}

	if *migrate {
		runner := migrations.Runner{DatabaseURL: dbURL, Locker: locker, Logger: logger}
		if err := runner.Up(ctx); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	store := catalog.NewPostgresStore(pool)
	created := 0
	for _, p := range catalog.DemoProducts() {
		p.ID = 0
		if _, err := store.Create(ctx, p); err != nil {
			if errors.Is(err, catalog.ErrDuplicateCode) {
				logger.Info().Str("code", p.Code).Msg("product already present")
				continue
			}
			logger.Fatal().Err(err).Str("code", p.Code).Msg("seed product")
		}
		created++
	}
	logger.Info().Int("created", created).Msg("seeding completed")
}
