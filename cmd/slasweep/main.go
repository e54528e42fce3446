// Command slasweep runs the notification engine's periodic worker: SLA rule
// sweeps, digest flushing and delivery dispatch on a fixed interval.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/obsidianhq/notifykit/migrations"
	"github.com/obsidianhq/notifykit/pkg/logger"
	"github.com/obsidianhq/notifykit/pkg/mailer"
	"github.com/obsidianhq/notifykit/pkg/notify"
	"github.com/obsidianhq/notifykit/pkg/pg"
	"github.com/obsidianhq/notifykit/pkg/redis"
	"github.com/obsidianhq/notifykit/pkg/sla"
)

type appConfig struct {
	Environment string `env:"ENVIRONMENT" envDefault:"production"`

	PG     pg.Config
	Redis  redis.Config
	Mailer mailer.Config
	SLA    sla.Config
}

func main() {
	// Missing .env is fine; production injects the environment directly.
	_ = godotenv.Load()

	var cfg appConfig
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to parse config", "error", err)
		os.Exit(1)
	}

	logOpts := []logger.Option{logger.WithService("slasweep")}
	if cfg.Environment == "development" {
		logOpts = append(logOpts, logger.WithDevelopment())
	}
	log := logger.New(logOpts...)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "slasweep exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, migrations.FS, cfg.PG, log); err != nil {
		return err
	}

	hubOpts := []notify.Option{
		notify.WithLogger(log),
		notify.WithEmailSender(newEmailSender(cfg.Mailer, log)),
	}

	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close() //nolint:errcheck
		hubOpts = append(hubOpts, notify.WithThrottleIndex(notify.NewRedisThrottleIndex(client)))
	} else {
		log.InfoContext(ctx, "redis not configured, using storage-only throttling")
	}

	hub, err := notify.NewHub(notify.NewPostgresStorage(pool), hubOpts...)
	if err != nil {
		return err
	}

	// Domain sources live in the marketplace services; this worker drains
	// digests and deliveries and applies the SLA rules once sources are
	// wired in via build-specific setup.
	sweeper, err := sla.New(hub, sla.NewPostgresActionLog(pool), cfg.SLA, sla.WithLogger(log))
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "slasweep started", slog.Duration("interval", cfg.SLA.SweepInterval))
	sweeper.RunEvery(ctx)
	log.InfoContext(ctx, "slasweep stopped")
	return nil
}

func newEmailSender(cfg mailer.Config, log *slog.Logger) notify.EmailSender {
	if cfg.PostmarkServerToken == "" {
		log.Info("postmark not configured, using dev email sender")
		return mailer.NewDevSender(log)
	}
	sender, err := mailer.NewPostmarkSender(cfg)
	if err != nil {
		log.Error("invalid postmark config, falling back to dev sender", logger.Error(err))
		return mailer.NewDevSender(log)
	}
	return sender
}
