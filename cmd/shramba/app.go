package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erazemk/shramba/internal/api"
	"github.com/erazemk/shramba/internal/config"
	"github.com/erazemk/shramba/internal/db"
	"github.com/erazemk/shramba/internal/events"
	"github.com/erazemk/shramba/internal/notify"
	"github.com/erazemk/shramba/internal/recipes"
	"github.com/erazemk/shramba/internal/reminder"
	"github.com/erazemk/shramba/internal/store"
)

// app holds the wired components shared by serve and remind.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db         *sql.DB
	redis      *redis.Client
	emitter    *events.Emitter
	finder     recipes.Finder
	dispatcher *notify.Dispatcher
	scheduler  *reminder.Scheduler
	providers  api.Providers
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.db = database

	if err := db.Migrate(database); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	logger.Info("database ready", "path", cfg.DBPath)

	a.emitter = events.NewEmitter(a.publisher(), logger)
	a.finder = a.recipeFinder(ctx)

	breakers := notify.BreakerConfig{
		FailureThreshold: uint32(cfg.BreakerFailureThreshold),
		Timeout:          time.Duration(cfg.BreakerTimeout),
		MaxRequests:      1,
	}
	mailer := &notify.SMTPMailer{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
	whatsapp := &notify.TwilioWhatsApp{
		AccountSID:  cfg.TwilioAccountSID,
		AuthToken:   cfg.TwilioAuthToken,
		From:        cfg.TwilioWhatsAppFrom,
		CountryCode: cfg.DefaultCountryCode,
		BaseURL:     cfg.TwilioBaseURL,
		Client:      &http.Client{Timeout: 15 * time.Second},
	}
	a.dispatcher = notify.NewDispatcher(
		notify.NewBreakerEmail(mailer, breakers, logger),
		notify.NewBreakerMessage(whatsapp, breakers, logger),
		a.finder,
		logger,
	)

	a.providers = api.Providers{
		Email:     mailer.Configured(),
		Messaging: whatsapp.Configured(),
		Recipes:   cfg.SpoonacularAPIKey != "",
	}
	logger.Info("providers",
		"email", a.providers.Email,
		"messaging", a.providers.Messaging,
		"recipes", a.providers.Recipes,
	)

	a.scheduler = reminder.NewScheduler(
		store.NewItemStore(database),
		a.dispatcher,
		a.emitter,
		reminder.Config{
			Interval:    time.Duration(cfg.ReminderInterval),
			Concurrency: cfg.ReminderConcurrency,
			RunOnStart:  true,
		},
		logger,
	)

	return a, nil
}

// publisher connects to RabbitMQ when configured. A broker that cannot be
// reached downgrades to the no-op publisher.
func (a *app) publisher() events.Publisher {
	if a.cfg.RabbitMQURL == "" {
		return events.NewNoopPublisher(a.logger)
	}
	pub, err := events.NewRabbitMQPublisher(a.cfg.RabbitMQURL, a.logger)
	if err != nil {
		a.logger.Warn("rabbitmq unavailable, events disabled", "error", err)
		return events.NewNoopPublisher(a.logger)
	}
	return pub
}

// recipeFinder returns the Spoonacular client, fronted by a Redis cache when
// one is configured and reachable. It returns nil without an API key.
func (a *app) recipeFinder(ctx context.Context) recipes.Finder {
	if a.cfg.SpoonacularAPIKey == "" {
		return nil
	}
	var finder recipes.Finder = &recipes.Spoonacular{
		APIKey:  a.cfg.SpoonacularAPIKey,
		BaseURL: a.cfg.SpoonacularBaseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
	if a.cfg.RedisURL == "" {
		return finder
	}

	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		a.logger.Warn("invalid redis url, recipe cache disabled", "error", err)
		return finder
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		a.logger.Warn("redis unavailable, recipe cache disabled", "error", err)
		client.Close()
		return finder
	}

	a.redis = client
	return recipes.NewCache(finder, client, time.Duration(a.cfg.RecipeCacheTTL), a.logger)
}

// Close releases everything newApp opened.
func (a *app) Close() error {
	var errs []error
	if a.emitter != nil {
		errs = append(errs, a.emitter.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
