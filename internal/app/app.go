// Package app собирает приложение: хранилище, Telegram-клиент,
// сервисы, обработчики, планировщик.
package app

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"starsbot/internal/bot"
	"starsbot/internal/config"
	"starsbot/internal/features/admin"
	"starsbot/internal/features/casino"
	"starsbot/internal/features/deposit"
	"starsbot/internal/features/payments"
	"starsbot/internal/features/profile"
	"starsbot/internal/features/shop"
	"starsbot/internal/features/smm"
	"starsbot/internal/jobs"
	"starsbot/internal/notify"
	"starsbot/internal/session"
	"starsbot/internal/store"
	"starsbot/internal/store/jsonfile"
	"starsbot/internal/store/postgres"
)

// App — собранное приложение.
type App struct {
	cfg       *config.Config
	store     store.Store
	bot       *bot.Bot
	scheduler *jobs.Scheduler
}

// New собирает приложение по конфигурации.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("хранилище: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("telegram api: %w", err)
	}
	log.WithField("bot", api.Self.UserName).Info("Авторизованы в Telegram")

	loc, err := time.LoadLocation(cfg.AppTimezone)
	if err != nil {
		log.WithError(err).Warn("Не удалось загрузить таймзону, используем UTC")
		loc = time.UTC
	}

	sessions := session.NewTracker(cfg.SessionTTL)
	notifier := notify.New(api, cfg.OperatorID)

	paymentsSvc := payments.NewService(st, cfg)
	shopSvc := shop.NewService(st)
	casinoSvc := casino.NewService(st, nil, cfg.CasinoMinRTP, cfg.CasinoMaxRTP, cfg.CasinoBigWin)
	adminSvc := admin.NewService(st, cfg.OperatorID, cfg.AdminPasswordHash)

	var smmClient *smm.Client
	if cfg.SMMEnabled() {
		smmClient = smm.NewClient(cfg.SMMAPIURL, cfg.SMMAPIKey, cfg.SMMHTTPTimeout)
	}
	smmSvc := smm.NewService(st, smmClient, cfg.SMMMarkup)

	handlers := bot.Handlers{
		Profile:  profile.NewHandler(st, notifier, api),
		Deposit:  deposit.NewHandler(paymentsSvc, sessions, api, cfg),
		Payments: payments.NewHandler(paymentsSvc, st, notifier, api),
		Shop:     shop.NewHandler(shopSvc, sessions, api),
		Casino:   casino.NewHandler(casinoSvc, notifier, api, cfg.FeatureCasinoEnabled),
		SMM:      smm.NewHandler(smmSvc, sessions, api),
		Admin:    admin.NewHandler(adminSvc, smmSvc, sessions, api, cfg.BroadcastPause),
	}

	return &App{
		cfg:       cfg,
		store:     st,
		bot:       bot.New(api, sessions, handlers, cfg),
		scheduler: jobs.NewScheduler(st, sessions, cfg.OrderTTL, loc),
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StorageDriver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("Хранилище: PostgreSQL")
		return postgres.New(pool), nil
	default:
		fs, err := jsonfile.Open(cfg.DataFile)
		if err != nil {
			return nil, err
		}
		log.WithField("file", cfg.DataFile).Info("Хранилище: JSON-файл")
		return fs, nil
	}
}

// Run запускает планировщик и цикл обновлений, блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("планировщик: %w", err)
	}
	a.bot.Start(ctx)
	return nil
}

// Shutdown освобождает ресурсы.
func (a *App) Shutdown() {
	a.scheduler.Stop()
	if err := a.store.Close(); err != nil {
		log.WithError(err).Error("Ошибка закрытия хранилища")
	}
	log.Info("Приложение остановлено")
}
