package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"referral-bot/internal/store"
)

const (
	checkInterval = 1 * time.Hour
	batchSize     = 50
	dedupeTTL     = 48 * time.Hour
)

// Notifier periodically tells users their withdrawal request reached the
// admin queue. Payout itself happens outside the system; the notifier only
// marks rows as notified. Redis keys throttle resends if marking fails.
type Notifier struct {
	Store store.Store
	Redis *redis.Client
	Bot   *telego.Bot
}

func NewNotifier(s store.Store, rdb *redis.Client, bot *telego.Bot) *Notifier {
	return &Notifier{
		Store: s,
		Redis: rdb,
		Bot:   bot,
	}
}

func (n *Notifier) Start(ctx context.Context) error {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	logrus.Info("Background withdrawal notifier started")

	// Run once at start
	n.notifyPending(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n.notifyPending(ctx)
		}
	}
}

func (n *Notifier) notifyPending(ctx context.Context) {
	withdrawals, err := n.Store.PendingWithdrawals(ctx, batchSize)
	if err != nil {
		logrus.Errorf("Error querying pending withdrawals: %v", err)
		return
	}

	for _, w := range withdrawals {
		key := fmt.Sprintf("withdraw_notified_%d", w.ID)
		exists, _ := n.Redis.Exists(ctx, key).Result()
		if exists != 0 {
			continue
		}

		_, err := n.Bot.SendMessage(ctx, tu.Message(
			tu.ID(w.TelegramID),
			fmt.Sprintf("💸 Your withdrawal of %d is in the admin queue and will be paid out shortly.", w.Amount),
		))
		if err != nil {
			logrus.Errorf("Failed to notify user %d about withdrawal %d: %v", w.TelegramID, w.ID, err)
			continue
		}

		if err := n.Store.MarkWithdrawalNotified(ctx, w.ID); err != nil {
			logrus.Errorf("Failed to mark withdrawal %d notified: %v", w.ID, err)
		}
		n.Redis.Set(ctx, key, "true", dedupeTTL)
		logrus.WithFields(logrus.Fields{
			"telegram_id":   w.TelegramID,
			"withdrawal_id": w.ID,
			"amount":        w.Amount,
		}).Info("Withdrawal notification sent")
	}
}
