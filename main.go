package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/fakturnik/fakturnik/controller"
	"github.com/fakturnik/fakturnik/mailer"
	"github.com/fakturnik/fakturnik/model"
	"github.com/fakturnik/fakturnik/scheduler"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pelletier/go-toml/v2"
)

func newLogger(cfg *model.Config) *slog.Logger {
	if cfg.Mode == "development" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func runMigrations(cfg *model.Config) error {
	m, err := migrate.New("file://"+migrationsDir(), migrateDSN(cfg))
	if err != nil {
		return fmt.Errorf("cannot open migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("cannot apply migrations: %w", err)
	}
	return nil
}

func dothings() error {
	data, err := os.ReadFile("config.toml")
	if err != nil {
		return err
	}
	cfg := &model.Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("cannot parse config.toml: %w", err)
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			return runMigrations(cfg)
		case "maintenance":
			store, err := model.InitDatabase(cfg)
			if err != nil {
				return err
			}
			return model.RunMaintenance(context.Background(), store, newLogger(cfg))
		}
	}

	store, err := model.InitDatabase(cfg)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	loc := time.Local
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
		}
	}

	renderer := model.NewRenderer(store.Config, logger)
	mail := mailer.New(store.Config, logger)

	if len(os.Args) > 1 && os.Args[1] == "generate" {
		// Force a generation run for the current month, skipping the
		// last-business-day gate. Idempotency still applies.
		sched := scheduler.New(store, renderer, mail, logger, loc, cfg.SchedulerHour)
		sched.GenerateMonthlyInvoices(time.Now().In(loc))
		return nil
	}

	sched := scheduler.New(store, renderer, mail, logger, loc, cfg.SchedulerHour)
	go sched.Run(context.Background())

	return controller.NewController(store, renderer, mail)
}

func main() {
	if err := dothings(); err != nil {
		log.Fatal(err)
	}
}
