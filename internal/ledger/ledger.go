// Package ledger mutates user balances. Every mutation is one atomic store
// operation; balances are never computed from a copy held in memory.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"referral-bot/db"
	"referral-bot/internal/apperr"
	"referral-bot/internal/metrics"
	"referral-bot/models"
)

// Reasons label balance mutations in logs and metrics
const (
	ReasonReferral    = "referral"
	ReasonSignupBonus = "signup_bonus"
	ReasonDailyBonus  = "daily_bonus"
	ReasonWithdrawal  = "withdrawal"
)

// ConfigSource provides the current program config
type ConfigSource interface {
	Get(ctx context.Context) (*models.ProgramConfig, error)
}

type Ledger struct {
	users   db.UserStore
	config  ConfigSource
	loc     *time.Location
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(users db.UserStore, config ConfigSource, loc *time.Location, logger *slog.Logger, m *metrics.Metrics) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	return &Ledger{users: users, config: config, loc: loc, logger: logger, metrics: m}
}

// TakeSignupBonus credits the referred user's signup bonus once. The flag
// flips even for a zero bonus so that a replayed first contact can tell
// the step already ran.
func (l *Ledger) TakeSignupBonus(ctx context.Context, userID, amount int64) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("signup bonus must not be negative, got %d", amount)
	}
	took, err := l.users.TakeSignupBonus(ctx, userID, amount)
	if err != nil {
		return false, err
	}
	if took && amount > 0 {
		l.metrics.Credit(ReasonSignupBonus, amount)
		l.logger.Info("balance credited", "user_id", userID, "amount", amount, "reason", ReasonSignupBonus)
	}
	return took, nil
}

// CreditReferral pays the referrer for newUserID once. It reports whether
// this call did the credit.
func (l *Ledger) CreditReferral(ctx context.Context, referrerID, newUserID, amount int64) (*models.User, bool, error) {
	if amount <= 0 {
		return nil, false, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	u, credited, err := l.users.CreditReferral(ctx, referrerID, newUserID, amount)
	if err != nil {
		return nil, false, err
	}
	if credited {
		l.metrics.Credit(ReasonReferral, amount)
		l.logger.Info("balance credited",
			"user_id", referrerID,
			"amount", amount,
			"reason", ReasonReferral,
			"referred_user_id", newUserID,
			"balance", u.Balance,
		)
	}
	return u, credited, nil
}

// DebitForWithdrawal takes an approved withdrawal off the balance once per
// request id. When the balance does not cover it the call returns
// apperr.ErrInsufficientBalance and changes nothing.
func (l *Ledger) DebitForWithdrawal(ctx context.Context, userID int64, requestID string, amount int64) (*models.User, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	u, err := l.users.DebitForWithdrawal(ctx, userID, requestID, amount)
	if err != nil {
		return nil, err
	}
	l.metrics.Debit(ReasonWithdrawal, amount)
	l.logger.Info("balance debited",
		"user_id", userID,
		"amount", amount,
		"reason", ReasonWithdrawal,
		"request_id", requestID,
		"balance", u.Balance,
	)
	return u, nil
}

// ClaimDailyBonus credits the configured daily bonus once per calendar day.
// It returns the credited amount and the updated user.
func (l *Ledger) ClaimDailyBonus(ctx context.Context, userID int64, now time.Time) (int64, *models.User, error) {
	cfg, err := l.config.Get(ctx)
	if err != nil {
		return 0, nil, err
	}

	amount := cfg.DailyBonus
	u, err := l.users.ClaimDailyBonus(ctx, userID, amount, DayStart(now, l.loc), now)
	if err != nil {
		if !errors.Is(err, apperr.ErrAlreadyClaimedToday) {
			l.logger.Error("daily bonus failed", "user_id", userID, "error", err)
		}
		return 0, nil, err
	}
	l.metrics.Credit(ReasonDailyBonus, amount)
	l.logger.Info("daily bonus claimed", "user_id", userID, "amount", amount, "balance", u.Balance)
	return amount, u, nil
}

// Account reads the stored balance and referral count of a user
func (l *Ledger) Account(ctx context.Context, userID int64) (*models.User, error) {
	return l.users.GetUser(ctx, userID)
}

// DayStart returns midnight of t's calendar day in loc
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
