// Package db holds the persistence layer: the Mongo document store used in
// production, an in-memory store with the same semantics, and the SQLite
// journal for pending dialogs.
//
// Every balance mutation is a single atomic operation against one user
// document; callers never read-modify-write a balance in process memory.
package db

import (
	"context"
	"time"

	"referral-bot/models"
)

// Store is the full persistence contract of the bot
type Store interface {
	UserStore
	ConfigStore
	WithdrawalStore
	PaymentStore
	Close(ctx context.Context) error
}

// UserStore persists user accounts and their ledger fields
type UserStore interface {
	// GetUser returns apperr.ErrNotFound when the user does not exist
	GetUser(ctx context.Context, id int64) (*models.User, error)
	// InsertUserIfAbsent creates the user unless a record with the same id
	// exists and reports whether it was created
	InsertUserIfAbsent(ctx context.Context, user *models.User) (bool, error)
	// ClaimDailyBonus credits amount and stamps now unless a bonus was
	// already stamped at or after dayStart (apperr.ErrAlreadyClaimedToday)
	ClaimDailyBonus(ctx context.Context, id, amount int64, dayStart, now time.Time) (*models.User, error)
	// TakeSignupBonus flips referral_bonus_taken and credits amount once per user
	TakeSignupBonus(ctx context.Context, id, amount int64) (bool, error)
	// CreditReferral credits the referrer once per referred user
	CreditReferral(ctx context.Context, referrerID, newUserID, amount int64) (*models.User, bool, error)
	// DebitForWithdrawal debits amount once per request id. A request that
	// was already applied returns the current user without a second debit;
	// a balance below amount fails with apperr.ErrInsufficientBalance.
	DebitForWithdrawal(ctx context.Context, id int64, requestID string, amount int64) (*models.User, error)
	SetPayoutDetails(ctx context.Context, id int64, cardNumber, fullName string) error
	TouchWithdrawalRequest(ctx context.Context, id int64, at time.Time) error
	UserIDs(ctx context.Context) ([]int64, error)
	CountUsers(ctx context.Context) (int64, error)
}

// ConfigStore persists the program config singleton
type ConfigStore interface {
	// ProgramConfig returns the singleton, creating it from defaults when missing
	ProgramConfig(ctx context.Context, defaults models.ProgramConfig) (*models.ProgramConfig, error)
	SetConfigAmount(ctx context.Context, field models.ConfigField, value int64) (*models.ProgramConfig, error)
	AddRequiredChannel(ctx context.Context, channel string) (bool, error)
	RemoveRequiredChannel(ctx context.Context, channel string) (bool, error)
}

// WithdrawalStore persists payout requests
type WithdrawalStore interface {
	CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error
	GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error)
	// TransitionWithdrawal moves a request from one status to another.
	// A request that exists in any other status yields apperr.ErrRequestConsumed.
	TransitionWithdrawal(ctx context.Context, id string, from, to models.WithdrawalStatus, by int64, at time.Time) (*models.Withdrawal, error)
	CountWithdrawals(ctx context.Context, status models.WithdrawalStatus) (int64, error)
}

// PaymentStore persists payout evidence
type PaymentStore interface {
	SavePayment(ctx context.Context, p *models.Payment) error
}
