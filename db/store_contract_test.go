package db

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-bot/internal/apperr"
	"referral-bot/models"
)

var testDefaults = models.ProgramConfig{
	ReferralBonus: 100,
	DailyBonus:    50,
	MinWithdrawal: 10000,
}

// runStoreContract exercises the guarantees every Store implementation must give
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("insert is create-once", func(t *testing.T) {
		s := newStore(t)
		created, err := s.InsertUserIfAbsent(ctx, &models.User{ID: 1, Balance: 5, CreatedAt: time.Now()})
		require.NoError(t, err)
		assert.True(t, created)

		created, err = s.InsertUserIfAbsent(ctx, &models.User{ID: 1, Balance: 999})
		require.NoError(t, err)
		assert.False(t, created)

		u, err := s.GetUser(ctx, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 5, u.Balance)

		_, err = s.GetUser(ctx, 2)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("concurrent withdrawal debits do not overspend", func(t *testing.T) {
		s := newStore(t)
		_, err := s.InsertUserIfAbsent(ctx, &models.User{ID: 1, Balance: 1000})
		require.NoError(t, err)

		var ok int64
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := s.DebitForWithdrawal(ctx, 1, fmt.Sprintf("req-%d", i), 100); err == nil {
					atomic.AddInt64(&ok, 1)
				}
			}(i)
		}
		wg.Wait()

		assert.EqualValues(t, 10, ok)
		u, err := s.GetUser(ctx, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 0, u.Balance)

		_, err = s.DebitForWithdrawal(ctx, 42, "req-x", 1)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("daily bonus once per day", func(t *testing.T) {
		s := newStore(t)
		_, err := s.InsertUserIfAbsent(ctx, &models.User{ID: 1})
		require.NoError(t, err)

		day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
		now := day.Add(9 * time.Hour)

		u, err := s.ClaimDailyBonus(ctx, 1, 50, day, now)
		require.NoError(t, err)
		assert.EqualValues(t, 50, u.Balance)

		_, err = s.ClaimDailyBonus(ctx, 1, 50, day, now.Add(time.Hour))
		assert.ErrorIs(t, err, apperr.ErrAlreadyClaimedToday)

		next := day.Add(24 * time.Hour)
		u, err = s.ClaimDailyBonus(ctx, 1, 50, next, next.Add(time.Minute))
		require.NoError(t, err)
		assert.EqualValues(t, 100, u.Balance)
	})

	t.Run("referral credit once per pair", func(t *testing.T) {
		s := newStore(t)
		_, err := s.InsertUserIfAbsent(ctx, &models.User{ID: 1})
		require.NoError(t, err)

		u, credited, err := s.CreditReferral(ctx, 1, 2, 100)
		require.NoError(t, err)
		assert.True(t, credited)
		assert.EqualValues(t, 100, u.Balance)
		assert.Equal(t, 1, u.ReferralCount)

		u, credited, err = s.CreditReferral(ctx, 1, 2, 100)
		require.NoError(t, err)
		assert.False(t, credited)
		assert.EqualValues(t, 100, u.Balance)
		assert.Equal(t, 1, u.ReferralCount)
	})

	t.Run("signup bonus taken once", func(t *testing.T) {
		s := newStore(t)
		_, err := s.InsertUserIfAbsent(ctx, &models.User{ID: 2})
		require.NoError(t, err)

		took, err := s.TakeSignupBonus(ctx, 2, 3000)
		require.NoError(t, err)
		assert.True(t, took)

		took, err = s.TakeSignupBonus(ctx, 2, 3000)
		require.NoError(t, err)
		assert.False(t, took)

		u, err := s.GetUser(ctx, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 3000, u.Balance)
		assert.True(t, u.ReferralBonusTaken)
	})

	t.Run("withdrawal debit applied once", func(t *testing.T) {
		s := newStore(t)
		_, err := s.InsertUserIfAbsent(ctx, &models.User{ID: 1, Balance: 15000})
		require.NoError(t, err)

		u, err := s.DebitForWithdrawal(ctx, 1, "req-1", 10000)
		require.NoError(t, err)
		assert.EqualValues(t, 5000, u.Balance)

		u, err = s.DebitForWithdrawal(ctx, 1, "req-1", 10000)
		require.NoError(t, err)
		assert.EqualValues(t, 5000, u.Balance)

		_, err = s.DebitForWithdrawal(ctx, 1, "req-2", 10000)
		assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)
	})

	t.Run("program config singleton", func(t *testing.T) {
		s := newStore(t)
		cfg, err := s.ProgramConfig(ctx, testDefaults)
		require.NoError(t, err)
		assert.EqualValues(t, 100, cfg.ReferralBonus)
		assert.Empty(t, cfg.RequiredChannels)

		_, err = s.SetConfigAmount(ctx, models.FieldDailyBonus, 200)
		require.NoError(t, err)

		cfg, err = s.ProgramConfig(ctx, models.ProgramConfig{DailyBonus: 1})
		require.NoError(t, err)
		assert.EqualValues(t, 200, cfg.DailyBonus)

		added, err := s.AddRequiredChannel(ctx, "@news")
		require.NoError(t, err)
		assert.True(t, added)
		added, err = s.AddRequiredChannel(ctx, "@news")
		require.NoError(t, err)
		assert.False(t, added)

		removed, err := s.RemoveRequiredChannel(ctx, "@other")
		require.NoError(t, err)
		assert.False(t, removed)
		removed, err = s.RemoveRequiredChannel(ctx, "@news")
		require.NoError(t, err)
		assert.True(t, removed)

		cfg, err = s.ProgramConfig(ctx, testDefaults)
		require.NoError(t, err)
		assert.Empty(t, cfg.RequiredChannels)
	})

	t.Run("withdrawal transitions", func(t *testing.T) {
		s := newStore(t)
		w := &models.Withdrawal{ID: "w1", UserID: 1, Amount: 10000, Status: models.WithdrawalPending, CreatedAt: time.Now()}
		require.NoError(t, s.CreateWithdrawal(ctx, w))

		got, err := s.TransitionWithdrawal(ctx, "w1", models.WithdrawalPending, models.WithdrawalProcessing, 7, time.Now())
		require.NoError(t, err)
		assert.Equal(t, models.WithdrawalProcessing, got.Status)

		_, err = s.TransitionWithdrawal(ctx, "w1", models.WithdrawalPending, models.WithdrawalProcessing, 7, time.Now())
		assert.ErrorIs(t, err, apperr.ErrRequestConsumed)

		_, err = s.TransitionWithdrawal(ctx, "missing", models.WithdrawalPending, models.WithdrawalProcessing, 7, time.Now())
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		n, err := s.CountWithdrawals(ctx, models.WithdrawalProcessing)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}
