package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"referral-bot/internal/bot"
	"referral-bot/internal/cache"
	"referral-bot/internal/config"
	"referral-bot/internal/database"
	"referral-bot/internal/ledger"
	"referral-bot/internal/router"
	"referral-bot/internal/store"
	"referral-bot/internal/worker"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.LoadConfig()

	db, err := database.ConnectPostgres(cfg)
	if err != nil {
		logrus.Fatalf("Could not connect to database: %v", err)
	}

	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		logrus.Fatalf("Could not connect to redis: %v", err)
	}

	st := store.New(db)
	ldg := ledger.New(st, ledger.Config{
		ReferralBonus:   cfg.ReferralBonus,
		WithdrawMin:     cfg.WithdrawMin,
		LeaderboardSize: cfg.LeaderboardSize,
	})
	rt := router.New(ldg, cache.New(rdb), cfg.CurrencyName)

	tgBot, err := bot.NewBot(cfg.BotToken, rt)
	if err != nil {
		logrus.Fatalf("Could not create bot: %v", err)
	}

	notifier := worker.NewNotifier(st, rdb, tgBot.Instance)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tgBot.Start(ctx) })
	g.Go(func() error { return notifier.Start(ctx) })

	logrus.Info("Service started successfully")

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logrus.Fatalf("Service stopped with error: %v", err)
	}
	logrus.Info("Service shut down")
}
