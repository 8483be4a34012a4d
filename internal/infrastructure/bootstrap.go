package infrastructure

import (
	"context"
	"log/slog"
	"time"

	"chefbot/internal/bot"
	"chefbot/internal/config"
	"chefbot/internal/generation"
	"chefbot/internal/payment"
	"chefbot/internal/ratelimit"
	"chefbot/internal/repository"
	"chefbot/internal/service"
	"chefbot/internal/telegram"
	transportHTTP "chefbot/internal/transport/http"
	transportNATS "chefbot/internal/transport/nats"
	"chefbot/internal/worker"
)

// Bootstrap initialises all dependencies from config and wires up the application.
// Returns the App, a cleanup function, or an error.
func Bootstrap(ctx context.Context) (*App, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	db, err := connectPostgres(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	rdb, err := connectRedis(ctx, cfg.RedisAddr())
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	var cleanupFns []func()
	cleanupFns = append(cleanupFns, func() {
		db.Close()
		_ = rdb.Close()
	})

	nc, err := connectNats(cfg.NatsAddr())
	if err != nil {
		return nil, runCleanup(cleanupFns), err
	}
	cleanupFns = append(cleanupFns, nc.Close)

	bus := transportNATS.NewBus(nc)
	repo := repository.NewAccountingRepo(db, rdb, bus, cfg.FreeRecipesOnStart)

	var provider payment.Provider
	if cfg.PaymentsMock {
		slog.Warn("payments: mock provider active, checkouts auto-succeed")
		provider = payment.NewMock(cfg.ReturnURL)
	} else {
		provider = payment.NewYooKassa(cfg.ShopID, cfg.ShopSecretKey, cfg.ReturnURL)
	}

	tg := telegram.NewClient(cfg.BotToken)

	svc := service.NewChef(service.Deps{
		Accounts:  repo,
		Payments:  repo,
		StatsSrc:  repo,
		Generator: generation.NewYandexGPT(cfg.GenAPIKey, cfg.GenFolderID, cfg.GenModel),
		Provider:  provider,
		Limiter:   ratelimit.New(time.Duration(cfg.RateLimitSeconds) * time.Second),
		Bus:       bus,

		MaxPromptLength:   cfg.MaxPromptLength,
		GenerationTimeout: time.Duration(cfg.GenTimeoutSeconds) * time.Second,
		Currency:          cfg.Currency,
		Catalog:           cfg.Packages(),
	})

	router := bot.NewRouter(svc, tg, cfg.IsAdmin, cfg.Currency, cfg.MaxPromptLength)

	servers := []Server{
		transportHTTP.NewServer(cfg.ApiAddr(), router, svc),
		worker.NewJournalWorker(repo, nc),
		worker.NewNotifierWorker(tg, nc),
	}

	return NewApp(servers), runCleanup(cleanupFns), nil
}

// runCleanup returns a single function that calls all cleanup functions in reverse order.
func runCleanup(fns []func()) func() {
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}
