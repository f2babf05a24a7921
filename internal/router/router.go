package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"referral-bot/internal/cache"
	"referral-bot/internal/ledger"
	"referral-bot/internal/store"
)

// Service is the slice of the ledger the router needs. Defined here so tests
// can substitute a mock.
type Service interface {
	Register(ctx context.Context, telegramID int64, username, suppliedCode string) (ledger.RegistrationResult, error)
	GetBalance(ctx context.Context, telegramID int64) (int64, error)
	GetReferralInfo(ctx context.Context, telegramID int64) (ledger.ReferralInfo, error)
	Withdraw(ctx context.Context, telegramID int64) (ledger.WithdrawResult, error)
	Leaderboard(ctx context.Context, limit int) ([]store.RankedUser, error)
	WithdrawMin() int64
}

// Reply is what the transport renders back to the user. ReferralCode is set
// on registration so the transport can attach the invite deep link.
type Reply struct {
	Text         string
	ReferralCode string
}

const (
	leaderboardCacheTTL = 30 * time.Second
	genericFailureText  = "⚠️ Something went wrong. Please try again."
)

// Router maps inbound intents to ledger calls and shapes the results into
// reply payloads. It holds no business state; the leaderboard cache is a
// rendering optimization only.
type Router struct {
	ledger   Service
	cache    *cache.Cache
	currency string
}

func New(svc Service, c *cache.Cache, currencyName string) *Router {
	if currencyName == "" {
		currencyName = "Taka"
	}
	return &Router{ledger: svc, cache: c, currency: currencyName}
}

// HandleRegister processes a /start intent, with an optional referral code
// payload. Duplicate deliveries collapse into the already-registered branch.
func (r *Router) HandleRegister(ctx context.Context, telegramID int64, username, suppliedCode string) (Reply, error) {
	res, err := r.ledger.Register(ctx, telegramID, username, suppliedCode)
	if err != nil {
		return Reply{Text: genericFailureText}, err
	}

	if res.Referral == ledger.ReferralCredited {
		_ = r.cache.Delete(ctx, r.leaderboardKey())
	}

	text := "👋 Welcome! Earn money by inviting friends."
	switch res.Referral {
	case ledger.ReferralInvalidCode:
		text += "\n\n❌ The referral code you used doesn't exist."
	case ledger.ReferralSelfRejected:
		text += "\n\n❌ You can't refer yourself."
	}

	return Reply{Text: text, ReferralCode: res.User.ReferralCode}, nil
}

// HandleBalance renders the current balance. An unregistered user reads as
// zero, matching what the transport shows before the first /start.
func (r *Router) HandleBalance(ctx context.Context, telegramID int64) (Reply, error) {
	balance, err := r.ledger.GetBalance(ctx, telegramID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Reply{Text: genericFailureText}, err
	}
	return Reply{Text: fmt.Sprintf("💰 Your balance: %d %s", balance, r.currency)}, nil
}

func (r *Router) HandleWithdraw(ctx context.Context, telegramID int64) (Reply, error) {
	res, err := r.ledger.Withdraw(ctx, telegramID)
	if err != nil {
		return Reply{Text: genericFailureText}, err
	}
	if !res.Settled {
		return Reply{Text: fmt.Sprintf("❌ You need at least %d %s to withdraw.", r.ledger.WithdrawMin(), r.currency)}, nil
	}

	_ = r.cache.Delete(ctx, r.leaderboardKey())

	return Reply{Text: "✅ Withdrawal request sent! Admin will process your payment soon."}, nil
}

func (r *Router) HandleReferralInfo(ctx context.Context, telegramID int64) (Reply, error) {
	info, err := r.ledger.GetReferralInfo(ctx, telegramID)
	if err != nil {
		return Reply{Text: genericFailureText}, err
	}
	text := fmt.Sprintf("🤝 Invite friends and earn!\n\n👥 Invited: %d\n🔑 Your code: %s", info.Count, info.Code)
	return Reply{Text: text, ReferralCode: info.Code}, nil
}

func (r *Router) HandleLeaderboard(ctx context.Context) (Reply, error) {
	key := r.leaderboardKey()

	var rows []store.RankedUser
	found, err := r.cache.Get(ctx, key, &rows)
	if err != nil {
		logrus.Warnf("Leaderboard cache read failed: %v", err)
	}
	if !found {
		rows, err = r.ledger.Leaderboard(ctx, 0)
		if err != nil {
			return Reply{Text: genericFailureText}, err
		}
		if err := r.cache.Set(ctx, key, rows, leaderboardCacheTTL); err != nil {
			logrus.Warnf("Leaderboard cache write failed: %v", err)
		}
	}

	var sb strings.Builder
	sb.WriteString("🏆 Top Earners:\n")
	for rank, row := range rows {
		fmt.Fprintf(&sb, "%d. User %d - %d %s\n", rank+1, row.TelegramID, row.Balance, r.currency)
	}
	return Reply{Text: sb.String()}, nil
}

func (r *Router) leaderboardKey() string {
	return "leaderboard:top"
}
