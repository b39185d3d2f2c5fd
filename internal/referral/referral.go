// Package referral credits invite bonuses on a user's first contact.
//
// Crediting is exactly-once per (referrer, new user) pair. The new user's
// record is created with insert-if-absent; the signup bonus flips the new
// user's referral_bonus_taken flag; the referrer bonus adds the new user to
// the referrer's referred_users set. Each step is a guarded atomic update,
// so replaying a first contact, even one interrupted halfway, credits nothing twice.
package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"referral-bot/db"
	"referral-bot/internal/apperr"
	"referral-bot/internal/ledger"
	"referral-bot/internal/metrics"
	"referral-bot/internal/transport"
	"referral-bot/models"
)

// Contact identifies the sender of a first message
type Contact struct {
	UserID    int64
	Username  string
	FirstName string
}

// Protocol runs the first contact logic
type Protocol struct {
	users       db.UserStore
	ledger      *ledger.Ledger
	msg         transport.Messenger
	signupBonus int64
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func New(users db.UserStore, l *ledger.Ledger, msg transport.Messenger, signupBonus int64, logger *slog.Logger, m *metrics.Metrics) *Protocol {
	return &Protocol{
		users:       users,
		ledger:      l,
		msg:         msg,
		signupBonus: signupBonus,
		logger:      logger,
		metrics:     m,
		now:         time.Now,
	}
}

// OnFirstContact registers the sender and, for a qualifying referral,
// credits both parties. It reports whether a new user record was created.
// Self-referrals and unknown referrers still create the user, without bonus.
// A failed referrer lookup aborts before the user is created, so a retry
// can still credit the referral.
func (p *Protocol) OnFirstContact(ctx context.Context, c Contact, referrerID *int64, cfg *models.ProgramConfig) (bool, error) {
	var referrer *models.User
	if referrerID != nil && *referrerID != c.UserID {
		u, err := p.users.GetUser(ctx, *referrerID)
		switch {
		case err == nil:
			referrer = u
		case errors.Is(err, apperr.ErrNotFound):
			p.logger.Info("referrer not found", "referrer_id", *referrerID, "user_id", c.UserID)
		default:
			return false, fmt.Errorf("failed to load referrer %d: %w", *referrerID, err)
		}
	}

	user := &models.User{
		ID:        c.UserID,
		Username:  c.Username,
		FirstName: c.FirstName,
		CreatedAt: p.now(),
	}
	if referrer != nil {
		user.ReferredBy = &referrer.ID
	}

	created, err := p.users.InsertUserIfAbsent(ctx, user)
	if err != nil {
		return false, fmt.Errorf("failed to create user %d: %w", c.UserID, err)
	}

	if !created {
		existing, err := p.users.GetUser(ctx, c.UserID)
		if err != nil {
			return false, err
		}
		referrer = nil
		if existing.ReferredBy != nil {
			ref, err := p.users.GetUser(ctx, *existing.ReferredBy)
			switch {
			case err == nil:
				referrer = ref
			case !errors.Is(err, apperr.ErrNotFound):
				return false, fmt.Errorf("failed to load referrer %d: %w", *existing.ReferredBy, err)
			}
		}
		// resume only a referral that was interrupted before both credits landed
		if referrer == nil || (existing.ReferralBonusTaken && referrer.HasReferred(existing.ID)) {
			p.metrics.Referral("existing")
			return false, nil
		}
		user = existing
	}

	if referrer == nil {
		p.metrics.Referral("plain")
		p.logger.Info("user joined", "user_id", c.UserID)
		return created, nil
	}

	if err := p.credit(ctx, user, referrer.ID, cfg); err != nil {
		return created, err
	}
	return created, nil
}

func (p *Protocol) credit(ctx context.Context, user *models.User, referrerID int64, cfg *models.ProgramConfig) error {
	took, err := p.ledger.TakeSignupBonus(ctx, user.ID, p.signupBonus)
	if err != nil {
		return fmt.Errorf("failed to credit signup bonus: %w", err)
	}
	if took && p.signupBonus > 0 {
		p.notify(ctx, user.ID, fmt.Sprintf("🎁 Welcome! You received a signup bonus of %d.", p.signupBonus))
	}

	ref, credited, err := p.ledger.CreditReferral(ctx, referrerID, user.ID, cfg.ReferralBonus)
	if err != nil {
		return fmt.Errorf("failed to credit referrer %d: %w", referrerID, err)
	}
	if !credited {
		return nil
	}

	p.metrics.Referral("credited")
	p.logger.Info("referral credited",
		"referrer_id", referrerID,
		"user_id", user.ID,
		"referral_count", ref.ReferralCount,
	)

	name := user.DisplayName()
	if name == "" {
		name = strconv.FormatInt(user.ID, 10)
	}
	p.notify(ctx, referrerID, fmt.Sprintf("🎉 New referral joined: %s\n💰 You earned %d!", name, cfg.ReferralBonus))
	return nil
}

func (p *Protocol) notify(ctx context.Context, chatID int64, text string) {
	if _, err := p.msg.Send(ctx, chatID, text, nil); err != nil {
		p.logger.Warn("referral notification failed", "chat_id", chatID, "error", err)
	}
}

// ParseStartParam extracts the referrer id from a /start argument
func ParseStartParam(arg string) *int64 {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

// Link builds the invite deep link of userID
func Link(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", strings.TrimPrefix(botUsername, "@"), userID)
}

// QRCode renders link as a PNG image
func QRCode(link string) ([]byte, error) {
	qr, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return qr.PNG(256)
}
