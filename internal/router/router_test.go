package router_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-bot/internal/ledger"
	"referral-bot/internal/models"
	"referral-bot/internal/router"
	"referral-bot/internal/store"
)

// mockService implements router.Service with canned outputs.
type mockService struct {
	registerResult ledger.RegistrationResult
	registerError  error

	balance      int64
	balanceError error

	referralInfo  ledger.ReferralInfo
	referralError error

	withdrawResult ledger.WithdrawResult
	withdrawError  error

	leaderboardRows  []store.RankedUser
	leaderboardError error
	leaderboardCalls int
}

func (m *mockService) Register(ctx context.Context, telegramID int64, username, suppliedCode string) (ledger.RegistrationResult, error) {
	return m.registerResult, m.registerError
}

func (m *mockService) GetBalance(ctx context.Context, telegramID int64) (int64, error) {
	return m.balance, m.balanceError
}

func (m *mockService) GetReferralInfo(ctx context.Context, telegramID int64) (ledger.ReferralInfo, error) {
	return m.referralInfo, m.referralError
}

func (m *mockService) Withdraw(ctx context.Context, telegramID int64) (ledger.WithdrawResult, error) {
	return m.withdrawResult, m.withdrawError
}

func (m *mockService) Leaderboard(ctx context.Context, limit int) ([]store.RankedUser, error) {
	m.leaderboardCalls++
	return m.leaderboardRows, m.leaderboardError
}

func (m *mockService) WithdrawMin() int64 {
	return 100
}

// Cache is nil-disabled in tests; the router must work without Redis.
func newRouter(svc *mockService) *router.Router {
	return router.New(svc, nil, "Taka")
}

func TestHandleRegister_NewUser(t *testing.T) {
	svc := &mockService{
		registerResult: ledger.RegistrationResult{
			User:     &models.User{TelegramID: 1, ReferralCode: "abcd1234"},
			Created:  true,
			Referral: ledger.ReferralNone,
		},
	}
	r := newRouter(svc)

	reply, err := r.HandleRegister(context.Background(), 1, "alice", "")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Welcome")
	assert.Equal(t, "abcd1234", reply.ReferralCode)
}

func TestHandleRegister_InvalidCode(t *testing.T) {
	svc := &mockService{
		registerResult: ledger.RegistrationResult{
			User:     &models.User{TelegramID: 1, ReferralCode: "abcd1234"},
			Created:  true,
			Referral: ledger.ReferralInvalidCode,
		},
	}
	r := newRouter(svc)

	reply, err := r.HandleRegister(context.Background(), 1, "alice", "bogus")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "doesn't exist")
}

func TestHandleRegister_SelfRejected(t *testing.T) {
	svc := &mockService{
		registerResult: ledger.RegistrationResult{
			User:     &models.User{TelegramID: 1, ReferralCode: "abcd1234"},
			Created:  true,
			Referral: ledger.ReferralSelfRejected,
		},
	}
	r := newRouter(svc)

	reply, err := r.HandleRegister(context.Background(), 1, "alice", "abcd1234")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "refer yourself")
}

func TestHandleRegister_InfraError(t *testing.T) {
	svc := &mockService{registerError: errors.New("connection lost")}
	r := newRouter(svc)

	reply, err := r.HandleRegister(context.Background(), 1, "alice", "")
	assert.Error(t, err)
	assert.Contains(t, reply.Text, "Something went wrong")
	assert.Empty(t, reply.ReferralCode)
}

func TestHandleBalance(t *testing.T) {
	svc := &mockService{balance: 42}
	r := newRouter(svc)

	reply, err := r.HandleBalance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "💰 Your balance: 42 Taka", reply.Text)
}

func TestHandleBalance_UnregisteredReadsZero(t *testing.T) {
	svc := &mockService{balanceError: store.ErrNotFound}
	r := newRouter(svc)

	reply, err := r.HandleBalance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "💰 Your balance: 0 Taka", reply.Text)
}

func TestHandleWithdraw_Insufficient(t *testing.T) {
	svc := &mockService{withdrawResult: ledger.WithdrawResult{Settled: false}}
	r := newRouter(svc)

	reply, err := r.HandleWithdraw(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "❌ You need at least 100 Taka to withdraw.", reply.Text)
}

func TestHandleWithdraw_Settled(t *testing.T) {
	svc := &mockService{withdrawResult: ledger.WithdrawResult{Settled: true, Amount: 150}}
	r := newRouter(svc)

	reply, err := r.HandleWithdraw(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Withdrawal request sent")
}

func TestHandleReferralInfo(t *testing.T) {
	svc := &mockService{referralInfo: ledger.ReferralInfo{Code: "abcd1234", Count: 3}}
	r := newRouter(svc)

	reply, err := r.HandleReferralInfo(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Invited: 3")
	assert.Contains(t, reply.Text, "abcd1234")
	assert.Equal(t, "abcd1234", reply.ReferralCode)
}

func TestHandleLeaderboard(t *testing.T) {
	svc := &mockService{leaderboardRows: []store.RankedUser{
		{TelegramID: 2, Balance: 70},
		{TelegramID: 1, Balance: 50},
	}}
	r := newRouter(svc)

	reply, err := r.HandleLeaderboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "🏆 Top Earners:\n1. User 2 - 70 Taka\n2. User 1 - 50 Taka\n", reply.Text)
	assert.Equal(t, 1, svc.leaderboardCalls)
}

func TestHandleLeaderboard_InfraError(t *testing.T) {
	svc := &mockService{leaderboardError: errors.New("db down")}
	r := newRouter(svc)

	reply, err := r.HandleLeaderboard(context.Background())
	assert.Error(t, err)
	assert.Contains(t, reply.Text, "Something went wrong")
}
