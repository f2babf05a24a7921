package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"referral-bot/internal/models"
)

var (
	// ErrNotFound means the referenced user does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict means a concurrent transaction changed the row between the
	// read and the write. The whole operation is safe to retry.
	ErrConflict = errors.New("store: concurrent update conflict")
	// ErrCodeCollision means the generated referral code is already taken.
	// The caller regenerates and retries.
	ErrCodeCollision = errors.New("store: referral code already taken")
	// ErrInsufficientBalance means the balance is below the withdrawal threshold.
	ErrInsufficientBalance = errors.New("store: insufficient balance")
)

// RankedUser is one leaderboard row.
type RankedUser struct {
	TelegramID int64
	Balance    int64
}

// Store is the transactional persistence contract the ledger runs on.
// Every method is a single database transaction; uniqueness constraints,
// not in-process locks, decide the winner under concurrent calls.
type Store interface {
	CreateUserIfAbsent(ctx context.Context, telegramID int64, username, referralCode string) (*models.User, bool, error)
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	LookupUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	CreateReferralEdgeAndCredit(ctx context.Context, newUserID, referrerID, creditAmount int64) (bool, error)
	GetBalance(ctx context.Context, telegramID int64) (int64, error)
	CountReferrals(ctx context.Context, referrerID int64) (int64, error)
	SettleWithdrawal(ctx context.Context, telegramID, minThreshold int64) (int64, error)
	TopBalances(ctx context.Context, limit int) ([]RankedUser, error)
	PendingWithdrawals(ctx context.Context, limit int) ([]models.Withdrawal, error)
	MarkWithdrawalNotified(ctx context.Context, withdrawalID uint) error
}

type gormStore struct {
	db *gorm.DB
}

func New(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// CreateUserIfAbsent inserts the user unless a row with the same telegram id
// already exists. Exactly one of any number of concurrent calls for the same
// id observes created=true; the rest get the winner's row. A duplicate of the
// freshly generated referral code surfaces as ErrCodeCollision.
func (s *gormStore) CreateUserIfAbsent(ctx context.Context, telegramID int64, username, referralCode string) (*models.User, bool, error) {
	user := models.User{
		TelegramID:   telegramID,
		Username:     username,
		ReferralCode: referralCode,
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoNothing: true,
		}).
		Create(&user)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			// The telegram id conflict is absorbed by the clause above, so
			// the duplicate can only be the referral code.
			return nil, false, ErrCodeCollision
		}
		return nil, false, fmt.Errorf("insert user: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		existing, err := s.GetUser(ctx, telegramID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return &user, true, nil
}

func (s *gormStore) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", telegramID, err)
	}
	return &user, nil
}

func (s *gormStore) LookupUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("referral_code = ?", code).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup referral code: %w", err)
	}
	return &user, nil
}

// CreateReferralEdgeAndCredit inserts the referral edge, binds the new
// user's referrer back-reference and credits the referrer in one
// transaction. If the edge already exists (duplicate delivery or a lost
// race) nothing is written and created=false comes back: the unique index
// on new_user_id makes the credit exactly-once.
func (s *gormStore) CreateReferralEdgeAndCredit(ctx context.Context, newUserID, referrerID, creditAmount int64) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		edge := models.ReferralEdge{
			NewUserID:  newUserID,
			ReferrerID: referrerID,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "new_user_id"}},
			DoNothing: true,
		}).Create(&edge)
		if res.Error != nil {
			return fmt.Errorf("insert referral edge: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil // edge exists, no credit
		}

		// The edge insert won, so the new user's referrer must still be
		// unset; bind it in the same transaction.
		res = tx.Model(&models.User{}).
			Where("telegram_id = ? AND referrer_id IS NULL", newUserID).
			Update("referrer_id", referrerID)
		if res.Error != nil {
			return fmt.Errorf("bind referrer for %d: %w", newUserID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound // rolls back the edge insert
		}

		res = tx.Model(&models.User{}).
			Where("telegram_id = ?", referrerID).
			Update("balance", gorm.Expr("balance + ?", creditAmount))
		if res.Error != nil {
			return fmt.Errorf("credit referrer %d: %w", referrerID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound // rolls back the edge insert
		}

		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *gormStore) GetBalance(ctx context.Context, telegramID int64) (int64, error) {
	user, err := s.GetUser(ctx, telegramID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

func (s *gormStore) CountReferrals(ctx context.Context, referrerID int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ReferralEdge{}).
		Where("referrer_id = ?", referrerID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return count, nil
}

// SettleWithdrawal zeroes the full balance if it meets the threshold and
// records a withdrawal row, all in one transaction. The UPDATE is guarded by
// the balance just read, so a concurrent credit or a second withdrawal makes
// the guard miss and the transaction rolls back with ErrConflict instead of
// settling a stale amount.
func (s *gormStore) SettleWithdrawal(ctx context.Context, telegramID, minThreshold int64) (int64, error) {
	var settled int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("read balance: %w", err)
		}

		if user.Balance < minThreshold {
			return ErrInsufficientBalance
		}

		res := tx.Model(&models.User{}).
			Where("telegram_id = ? AND balance = ?", telegramID, user.Balance).
			Update("balance", 0)
		if res.Error != nil {
			return fmt.Errorf("settle balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		withdrawal := models.Withdrawal{
			TelegramID: telegramID,
			Amount:     user.Balance,
			Status:     "requested",
		}
		if err := tx.Create(&withdrawal).Error; err != nil {
			return fmt.Errorf("record withdrawal: %w", err)
		}

		settled = user.Balance
		return nil
	})
	if err != nil {
		return 0, err
	}
	return settled, nil
}

// TopBalances orders by balance descending with telegram id as a stable
// tie-breaker.
func (s *gormStore) TopBalances(ctx context.Context, limit int) ([]RankedUser, error) {
	var rows []RankedUser
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Select("telegram_id, balance").
		Order("balance DESC, telegram_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("top balances: %w", err)
	}
	return rows, nil
}

func (s *gormStore) PendingWithdrawals(ctx context.Context, limit int) ([]models.Withdrawal, error) {
	var rows []models.Withdrawal
	err := s.db.WithContext(ctx).
		Where("status = ? AND notified_at IS NULL", "requested").
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pending withdrawals: %w", err)
	}
	return rows, nil
}

func (s *gormStore) MarkWithdrawalNotified(ctx context.Context, withdrawalID uint) error {
	err := s.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("id = ?", withdrawalID).
		Update("notified_at", time.Now()).Error
	if err != nil {
		return fmt.Errorf("mark withdrawal notified: %w", err)
	}
	return nil
}
