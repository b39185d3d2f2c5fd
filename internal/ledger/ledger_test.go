package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-bot/db"
	"referral-bot/internal/apperr"
	"referral-bot/internal/logging"
	"referral-bot/internal/settings"
	"referral-bot/models"
)

var defaults = models.ProgramConfig{ReferralBonus: 100, DailyBonus: 50, MinWithdrawal: 10000}

func setup(t *testing.T, balance int64) (*Ledger, *settings.Service) {
	t.Helper()
	store := db.NewMemoryStore()
	_, err := store.InsertUserIfAbsent(context.Background(), &models.User{ID: 1, Balance: balance})
	require.NoError(t, err)
	cfg := settings.New(store, defaults)
	return New(store, cfg, time.UTC, logging.Discard(), nil), cfg
}

func TestWithdrawalDebit(t *testing.T) {
	ctx := context.Background()
	l, _ := setup(t, 250)

	_, err := l.DebitForWithdrawal(ctx, 1, "req-1", 251)
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)

	u, err := l.Account(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 250, u.Balance, "failed debit leaves the balance untouched")

	u, err = l.DebitForWithdrawal(ctx, 1, "req-1", 200)
	require.NoError(t, err)
	assert.EqualValues(t, 50, u.Balance)

	u, err = l.DebitForWithdrawal(ctx, 1, "req-1", 200)
	require.NoError(t, err)
	assert.EqualValues(t, 50, u.Balance, "a request is debited once")

	_, err = l.DebitForWithdrawal(ctx, 1, "req-2", 0)
	assert.Error(t, err)

	_, err = l.Account(ctx, 99)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	l, _ := setup(t, 500)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = l.DebitForWithdrawal(ctx, 1, fmt.Sprintf("req-%d", i), 100)
		}(i)
	}
	wg.Wait()

	u, err := l.Account(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, u.Balance)
	assert.Len(t, u.AppliedWithdrawals, 5)
}

func TestReferralCredits(t *testing.T) {
	ctx := context.Background()
	l, _ := setup(t, 0)
	u, credited, err := l.CreditReferral(ctx, 1, 2, 100)
	require.NoError(t, err)
	assert.True(t, credited)
	assert.EqualValues(t, 100, u.Balance)

	u, credited, err = l.CreditReferral(ctx, 1, 2, 100)
	require.NoError(t, err)
	assert.False(t, credited)
	assert.EqualValues(t, 100, u.Balance)

	_, _, err = l.CreditReferral(ctx, 1, 3, 0)
	assert.Error(t, err)

	took, err := l.TakeSignupBonus(ctx, 1, 0)
	require.NoError(t, err)
	assert.True(t, took, "a zero bonus still marks the step done")
	took, err = l.TakeSignupBonus(ctx, 1, 0)
	require.NoError(t, err)
	assert.False(t, took)
}

func TestClaimDailyBonus(t *testing.T) {
	ctx := context.Background()
	l, _ := setup(t, 0)
	morning := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	amount, u, err := l.ClaimDailyBonus(ctx, 1, morning)
	require.NoError(t, err)
	assert.EqualValues(t, 50, amount)
	assert.EqualValues(t, 50, u.Balance)

	_, _, err = l.ClaimDailyBonus(ctx, 1, morning.Add(15*time.Hour))
	assert.ErrorIs(t, err, apperr.ErrAlreadyClaimedToday)

	_, u, err = l.ClaimDailyBonus(ctx, 1, morning.Add(16*time.Hour+time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 100, u.Balance, "a new calendar day allows another claim")
}

func TestClaimUsesCurrentConfig(t *testing.T) {
	ctx := context.Background()
	l, cfg := setup(t, 0)

	_, err := cfg.SetAmount(ctx, models.FieldDailyBonus, "200")
	require.NoError(t, err)

	amount, u, err := l.ClaimDailyBonus(ctx, 1, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 200, amount)
	assert.EqualValues(t, 200, u.Balance)
}

func TestDayStart(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// 22:00 UTC on May 1 is already May 2 at UTC+5
	got := DayStart(time.Date(2026, 5, 1, 22, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, time.Date(2026, 5, 2, 0, 0, 0, 0, loc), got)
}
