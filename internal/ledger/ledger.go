package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"referral-bot/internal/models"
	"referral-bot/internal/store"
)

// ReferralOutcome describes what happened to the supplied referral code
// during registration.
type ReferralOutcome string

const (
	ReferralNone            ReferralOutcome = "none"
	ReferralCredited        ReferralOutcome = "credited"
	ReferralAlreadyCredited ReferralOutcome = "already_credited"
	ReferralInvalidCode     ReferralOutcome = "invalid_code"
	ReferralSelfRejected    ReferralOutcome = "self_rejected"
)

// RegistrationResult is the discriminated outcome of Register. Created=false
// means the user was already registered; the supplied code is then ignored
// because the referrer binding is immutable after first registration.
type RegistrationResult struct {
	User     *models.User
	Created  bool
	Referral ReferralOutcome
}

// WithdrawResult carries the settled amount, or Settled=false when the
// balance was below the threshold.
type WithdrawResult struct {
	Settled bool
	Amount  int64
}

// ReferralInfo is the user's own code plus how many users they brought in.
type ReferralInfo struct {
	Code  string
	Count int64
}

type Config struct {
	ReferralBonus   int64
	WithdrawMin     int64
	LeaderboardSize int
}

const codeGenerationAttempts = 3

// Ledger implements referral attribution and reward policy on top of the
// store's atomic primitives. It keeps no state of its own and is safe to
// call from any number of concurrent handlers.
type Ledger struct {
	store store.Store
	cfg   Config
}

func New(s store.Store, cfg Config) *Ledger {
	if cfg.ReferralBonus <= 0 {
		cfg.ReferralBonus = 2
	}
	if cfg.WithdrawMin <= 0 {
		cfg.WithdrawMin = 100
	}
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = 10
	}
	return &Ledger{store: s, cfg: cfg}
}

// Register creates the user on first contact and, for a fresh registration
// with a valid non-self code, credits the referrer exactly once. Repeated
// calls for the same id are idempotent no matter how often the transport
// redelivers them.
func (l *Ledger) Register(ctx context.Context, telegramID int64, username, suppliedCode string) (RegistrationResult, error) {
	var (
		user    *models.User
		created bool
		err     error
	)
	for attempt := 0; attempt < codeGenerationAttempts; attempt++ {
		user, created, err = l.store.CreateUserIfAbsent(ctx, telegramID, username, newReferralCode())
		if errors.Is(err, store.ErrCodeCollision) {
			continue
		}
		break
	}
	if err != nil {
		return RegistrationResult{}, fmt.Errorf("register %d: %w", telegramID, err)
	}

	if !created {
		return RegistrationResult{User: user, Created: false, Referral: ReferralNone}, nil
	}

	outcome := ReferralNone
	if suppliedCode != "" {
		outcome, err = l.attributeReferral(ctx, user, suppliedCode)
		if err != nil {
			return RegistrationResult{}, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"telegram_id": telegramID,
		"referral":    outcome,
	}).Info("User registered")

	return RegistrationResult{User: user, Created: true, Referral: outcome}, nil
}

func (l *Ledger) attributeReferral(ctx context.Context, user *models.User, suppliedCode string) (ReferralOutcome, error) {
	referrer, err := l.store.LookupUserByReferralCode(ctx, suppliedCode)
	if errors.Is(err, store.ErrNotFound) {
		return ReferralInvalidCode, nil
	}
	if err != nil {
		return ReferralNone, fmt.Errorf("resolve referral code: %w", err)
	}

	if referrer.TelegramID == user.TelegramID {
		return ReferralSelfRejected, nil
	}

	created, err := l.store.CreateReferralEdgeAndCredit(ctx, user.TelegramID, referrer.TelegramID, l.cfg.ReferralBonus)
	if err != nil {
		return ReferralNone, fmt.Errorf("credit referrer: %w", err)
	}
	if !created {
		return ReferralAlreadyCredited, nil
	}

	logrus.WithFields(logrus.Fields{
		"referrer_id": referrer.TelegramID,
		"new_user_id": user.TelegramID,
		"bonus":       l.cfg.ReferralBonus,
	}).Info("Referral bonus credited")

	return ReferralCredited, nil
}

func (l *Ledger) GetBalance(ctx context.Context, telegramID int64) (int64, error) {
	return l.store.GetBalance(ctx, telegramID)
}

func (l *Ledger) GetReferralInfo(ctx context.Context, telegramID int64) (ReferralInfo, error) {
	user, err := l.store.GetUser(ctx, telegramID)
	if err != nil {
		return ReferralInfo{}, err
	}
	count, err := l.store.CountReferrals(ctx, telegramID)
	if err != nil {
		return ReferralInfo{}, err
	}
	return ReferralInfo{Code: user.ReferralCode, Count: count}, nil
}

// Withdraw settles the full balance when it meets the configured threshold.
func (l *Ledger) Withdraw(ctx context.Context, telegramID int64) (WithdrawResult, error) {
	amount, err := l.store.SettleWithdrawal(ctx, telegramID, l.cfg.WithdrawMin)
	if errors.Is(err, store.ErrInsufficientBalance) {
		return WithdrawResult{Settled: false}, nil
	}
	if err != nil {
		return WithdrawResult{}, fmt.Errorf("withdraw for %d: %w", telegramID, err)
	}

	logrus.WithFields(logrus.Fields{
		"telegram_id": telegramID,
		"amount":      amount,
	}).Info("Withdrawal settled")

	return WithdrawResult{Settled: true, Amount: amount}, nil
}

// Leaderboard returns up to limit entries; limit<=0 falls back to the
// configured default.
func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]store.RankedUser, error) {
	if limit <= 0 {
		limit = l.cfg.LeaderboardSize
	}
	return l.store.TopBalances(ctx, limit)
}

// WithdrawMin exposes the configured threshold for rendering rejections.
func (l *Ledger) WithdrawMin() int64 {
	return l.cfg.WithdrawMin
}

func newReferralCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
