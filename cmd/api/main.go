package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ilomswe/smmhub-backend/api/routes"
	"github.com/ilomswe/smmhub-backend/internal/accounts"
	"github.com/ilomswe/smmhub-backend/internal/deposits"
	"github.com/ilomswe/smmhub-backend/internal/fulfillment"
	"github.com/ilomswe/smmhub-backend/internal/ledger"
	"github.com/ilomswe/smmhub-backend/internal/notify"
	"github.com/ilomswe/smmhub-backend/internal/orders"
	"github.com/ilomswe/smmhub-backend/internal/promos"
	"github.com/ilomswe/smmhub-backend/internal/scheduler"
	"github.com/ilomswe/smmhub-backend/pkg/config"
	"github.com/ilomswe/smmhub-backend/pkg/db"
	"github.com/ilomswe/smmhub-backend/pkg/logger"
	"github.com/ilomswe/smmhub-backend/pkg/metrics"
	"github.com/ilomswe/smmhub-backend/pkg/migrate"
	pkgredis "github.com/ilomswe/smmhub-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = pkgredis.New(context.Background(), cfg.Redis)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured, idempotency disabled")
	}

	notifier := notify.NewNoop()
	if cfg.Telegram.BotToken != "" {
		bot, botErr := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if botErr != nil {
			logg.Error(context.Background(), "failed to connect telegram bot", botErr)
			os.Exit(1)
		}
		notifier = notify.NewTelegram(bot, logg)
	} else {
		logg.Warn(context.Background(), "bot token not configured, notifications disabled")
	}

	panel := fulfillment.New(cfg.Fulfillment, logg)

	taskMetrics := metrics.NewTaskMetrics(prometheus.DefaultRegisterer)
	sched, err := scheduler.New(logg, taskMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler", err)
		os.Exit(1)
	}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient, cfg.Bonus.MinDeposit)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}
	accountsSvc, err := accounts.NewService(accounts.NewRepository(dbClient.DB()), ledgerSvc, notifier, cfg.Bonus.Signup, cfg.Bonus.Referral)
	if err != nil {
		logg.Error(context.Background(), "failed to create accounts service", err)
		os.Exit(1)
	}
	promosSvc, err := promos.NewService(promos.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create promos service", err)
		os.Exit(1)
	}
	ordersSvc, err := orders.NewService(orders.NewRepository(dbClient.DB()), ledgerSvc, promosSvc, panel, sched, notifier, logg, cfg.Lifecycle)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	depositsSvc, err := deposits.NewService(ledgerSvc, sched, notifier, logg, cfg.Lifecycle.DepositConfirmGap)
	if err != nil {
		logg.Error(context.Background(), "failed to create deposits service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Accounts:    accountsSvc,
			Ledger:      ledgerSvc,
			Deposits:    depositsSvc,
			Orders:      ordersSvc,
			Promos:      promosSvc,
			Fulfillment: panel,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "server shutdown failed", err)
		}
		sched.Stop()
	}
}
