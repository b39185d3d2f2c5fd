package bot

import (
	"context"
	"errors"
	"strings"

	"referral-bot/internal/apperr"
	"referral-bot/internal/conversation"
	"referral-bot/internal/gate"
	"referral-bot/internal/referral"
	"referral-bot/internal/withdrawal"
	"referral-bot/models"
)

type action func(ctx context.Context, ev Event, cfg *models.ProgramConfig)

// handleMessage handles commands, menu keywords and dialog input
func (b *Bot) handleMessage(ctx context.Context, ev Event) {
	b.logger.Debug("message", "user_id", ev.UserID, "username", ev.Username, "text", ev.Text)

	cfg, err := b.settings.Get(ctx)
	if err != nil {
		b.logger.Error("failed to load program config", "error", err)
		b.send(ctx, ev.ChatID, genericErrorText, nil)
		return
	}

	isAdmin := b.cfg.IsAdmin(ev.UserID)
	if !isAdmin {
		if missing := b.gate.Evaluate(ctx, ev.UserID, cfg); len(missing) > 0 {
			b.block(ctx, ev, missing)
			return
		}
	}

	if ev.Kind == EventCommand {
		b.handleCommand(ctx, ev, cfg)
		return
	}

	text := strings.TrimSpace(ev.Text)
	if text == btnCancel {
		b.cancel(ctx, ev, isAdmin)
		return
	}

	if act := b.menuAction(text, isAdmin); act != nil {
		if _, err := b.engine.Cancel(ctx, ev.UserID, false); err != nil {
			b.logger.Warn("failed to cancel dialog", "user_id", ev.UserID, "error", err)
		}
		if !b.ensureUser(ctx, ev) {
			return
		}
		act(ctx, ev, cfg)
		return
	}

	handled, err := b.engine.Handle(ctx, ev.UserID, conversation.Input{Text: ev.Text, Media: ev.Media})
	if err != nil {
		b.logger.Error("dialog failed", "user_id", ev.UserID, "error", err)
		b.send(ctx, ev.ChatID, genericErrorText, nil)
		return
	}
	if handled {
		return
	}

	b.processMessage(ctx, ev, isAdmin)
}

// block cancels any pending dialog and shows the subscription prompt.
// A /start payload rides along so the re-check can replay it.
func (b *Bot) block(ctx context.Context, ev Event, missing []string) {
	if _, err := b.engine.Cancel(ctx, ev.UserID, false); err != nil {
		b.logger.Warn("failed to cancel dialog", "user_id", ev.UserID, "error", err)
	}

	resume := ""
	if ev.Kind == EventCommand && ev.Command == "start" {
		resume = strings.TrimSpace(ev.Args)
	}
	if err := b.gate.Prompt(ctx, ev.ChatID, missing, resume); err != nil {
		b.logger.Warn("failed to send subscription prompt", "user_id", ev.UserID, "error", err)
	}
}

// handleCommand handles bot commands
func (b *Bot) handleCommand(ctx context.Context, ev Event, cfg *models.ProgramConfig) {
	switch ev.Command {
	case "start":
		b.start(ctx, ev, cfg)
	case "cancel":
		b.cancel(ctx, ev, b.cfg.IsAdmin(ev.UserID))
	default:
		b.processMessage(ctx, ev, b.cfg.IsAdmin(ev.UserID))
	}
}

// start registers the user on first contact, crediting a referral when
// the start payload names a referrer
func (b *Bot) start(ctx context.Context, ev Event, cfg *models.ProgramConfig) {
	if _, err := b.engine.Cancel(ctx, ev.UserID, false); err != nil {
		b.logger.Warn("failed to cancel dialog", "user_id", ev.UserID, "error", err)
	}

	contact := referral.Contact{UserID: ev.UserID, Username: ev.Username, FirstName: ev.FirstName}
	if _, err := b.referral.OnFirstContact(ctx, contact, referral.ParseStartParam(ev.Args), cfg); err != nil {
		b.logger.Error("first contact failed", "user_id", ev.UserID, "error", err)
		b.send(ctx, ev.ChatID, genericErrorText, nil)
		return
	}

	if b.cfg.MenuURL != "" {
		if err := b.msg.SetMenuButton(ctx, ev.ChatID, menuButtonText, b.cfg.MenuURL); err != nil {
			b.logger.Warn("failed to set menu button", "user_id", ev.UserID, "error", err)
		}
	}
	b.send(ctx, ev.ChatID, welcomeText, mainMenu(b.cfg.IsAdmin(ev.UserID)))
}

func (b *Bot) cancel(ctx context.Context, ev Event, isAdmin bool) {
	cancelled, err := b.engine.Cancel(ctx, ev.UserID, true)
	if err != nil {
		b.logger.Warn("failed to cancel dialog", "user_id", ev.UserID, "error", err)
		b.send(ctx, ev.ChatID, genericErrorText, nil)
		return
	}
	if !cancelled {
		b.send(ctx, ev.ChatID, nothingToCancel, mainMenu(isAdmin))
	}
}

// ensureUser makes sure the sender has a record before a menu action.
// Users who skipped /start are asked to start first.
func (b *Bot) ensureUser(ctx context.Context, ev Event) bool {
	_, err := b.store.GetUser(ctx, ev.UserID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, apperr.ErrNotFound):
		b.send(ctx, ev.ChatID, startFirstText, nil)
	default:
		b.logger.Error("failed to load user", "user_id", ev.UserID, "error", err)
		b.send(ctx, ev.ChatID, genericErrorText, nil)
	}
	return false
}

// processMessage answers input nothing else claimed
func (b *Bot) processMessage(ctx context.Context, ev Event, isAdmin bool) {
	b.send(ctx, ev.ChatID, unknownInputText, mainMenu(isAdmin))
}

func (b *Bot) menuAction(text string, isAdmin bool) action {
	switch text {
	case btnBalance:
		return b.showBalance
	case btnBonus:
		return b.claimBonus
	case btnReferral:
		return b.showReferral
	case btnWithdraw:
		return b.startWithdrawal
	}
	if !isAdmin {
		return nil
	}
	switch text {
	case btnBroadcast:
		return b.startBroadcast
	case btnStats:
		return b.showStats
	case btnAddChannel:
		return b.startAddChannel
	case btnRemoveChannel:
		return b.startRemoveChannel
	case btnReferralBonus:
		return b.startConfigEdit(models.FieldReferralBonus)
	case btnDailyBonus:
		return b.startConfigEdit(models.FieldDailyBonus)
	case btnMinWithdrawal:
		return b.startConfigEdit(models.FieldMinWithdrawal)
	}
	return nil
}

func (b *Bot) showBalance(ctx context.Context, ev Event, _ *models.ProgramConfig) {
	u, err := b.ledger.Account(ctx, ev.UserID)
	if err != nil {
		b.logger.Error("failed to load balance", "user_id", ev.UserID, "error", err)
		b.send(ctx, ev.ChatID, genericErrorText, nil)
		return
	}
	b.send(ctx, ev.ChatID, balanceText(u), nil)
}

func (b *Bot) claimBonus(ctx context.Context, ev Event, _ *models.ProgramConfig) {
	amount, _, err := b.ledger.ClaimDailyBonus(ctx, ev.UserID, b.now())
	switch {
	case err == nil:
		b.send(ctx, ev.ChatID, bonusText(amount), nil)
	case errors.Is(err, apperr.ErrAlreadyClaimedToday):
		b.send(ctx, ev.ChatID, alreadyClaimed, nil)
	default:
		b.send(ctx, ev.ChatID, genericErrorText, nil)
	}
}

func (b *Bot) showReferral(ctx context.Context, ev Event, cfg *models.ProgramConfig) {
	link := referral.Link(b.cfg.BotUsername, ev.UserID)
	b.send(ctx, ev.ChatID, referralText(link, cfg.ReferralBonus), nil)

	png, err := referral.QRCode(link)
	if err != nil {
		b.logger.Warn("failed to render referral qr code", "user_id", ev.UserID, "error", err)
		return
	}
	if err := b.msg.SendPhoto(ctx, ev.ChatID, "referral.png", png, ""); err != nil {
		b.logger.Warn("failed to send referral qr code", "user_id", ev.UserID, "error", err)
	}
}

func (b *Bot) startWithdrawal(ctx context.Context, ev Event, _ *models.ProgramConfig) {
	if err := b.withdrawals.Start(ctx, ev.UserID); err != nil {
		b.logger.Error("failed to start withdrawal", "user_id", ev.UserID, "error", err)
		b.send(ctx, ev.ChatID, genericErrorText, nil)
	}
}

// handleCallback handles button presses
func (b *Bot) handleCallback(ctx context.Context, ev Event) {
	b.logger.Debug("callback", "user_id", ev.UserID, "data", ev.CallbackData)

	if resume, ok := gate.ParseToken(ev.CallbackData); ok {
		b.recheckSubscription(ctx, ev, resume)
		return
	}

	switch {
	case strings.HasPrefix(ev.CallbackData, withdrawal.ApprovePrefix):
		if !b.cfg.IsAdmin(ev.UserID) {
			b.answer(ctx, ev.CallbackID, notAllowedText)
			return
		}
		b.approveWithdrawal(ctx, ev)
	case strings.HasPrefix(ev.CallbackData, withdrawal.RejectPrefix):
		if !b.cfg.IsAdmin(ev.UserID) {
			b.answer(ctx, ev.CallbackID, notAllowedText)
			return
		}
		b.rejectWithdrawal(ctx, ev)
	default:
		cfg, err := b.settings.Get(ctx)
		if err == nil && !b.cfg.IsAdmin(ev.UserID) {
			if missing := b.gate.Evaluate(ctx, ev.UserID, cfg); len(missing) > 0 {
				b.answer(ctx, ev.CallbackID, notSubscribedText)
				b.block(ctx, ev, missing)
				return
			}
		}
		b.answer(ctx, ev.CallbackID, "")
	}
}

// recheckSubscription re-runs the gate for the "I've subscribed" button and
// replays /start with the saved payload once every channel is joined
func (b *Bot) recheckSubscription(ctx context.Context, ev Event, resume string) {
	cfg, err := b.settings.Get(ctx)
	if err != nil {
		b.logger.Error("failed to load program config", "error", err)
		b.answer(ctx, ev.CallbackID, genericErrorText)
		return
	}

	if missing := b.gate.Evaluate(ctx, ev.UserID, cfg); len(missing) > 0 {
		b.answer(ctx, ev.CallbackID, notSubscribedText)
		return
	}

	b.answer(ctx, ev.CallbackID, subscribedText)
	if ev.MessageID != 0 {
		if err := b.msg.Delete(ctx, ev.ChatID, ev.MessageID); err != nil {
			b.logger.Debug("failed to delete subscription prompt", "error", err)
		}
	}

	start := ev
	start.Kind = EventCommand
	start.Command = "start"
	start.Args = resume
	b.start(ctx, start, cfg)
}

func (b *Bot) approveWithdrawal(ctx context.Context, ev Event) {
	w, err := b.withdrawals.Approve(ctx, ev.UserID, ev.CallbackData)
	switch {
	case err == nil:
		b.answer(ctx, ev.CallbackID, "✅")
		b.markDecided(ctx, ev, approvedAdminText(w))
	case errors.Is(err, apperr.ErrRequestConsumed):
		b.answer(ctx, ev.CallbackID, alreadyDecided)
	case errors.Is(err, apperr.ErrInsufficientBalance):
		b.answer(ctx, ev.CallbackID, insufficientText)
	default:
		b.logger.Error("withdrawal approval failed", "admin_id", ev.UserID, "data", ev.CallbackData, "error", err)
		b.answer(ctx, ev.CallbackID, genericErrorText)
	}
}

func (b *Bot) rejectWithdrawal(ctx context.Context, ev Event) {
	w, err := b.withdrawals.Reject(ctx, ev.UserID, ev.CallbackData)
	switch {
	case err == nil:
		b.answer(ctx, ev.CallbackID, "❌")
		b.markDecided(ctx, ev, rejectedAdminText(w))
	case errors.Is(err, apperr.ErrRequestConsumed):
		b.answer(ctx, ev.CallbackID, alreadyDecided)
	default:
		b.logger.Error("withdrawal rejection failed", "admin_id", ev.UserID, "data", ev.CallbackData, "error", err)
		b.answer(ctx, ev.CallbackID, genericErrorText)
	}
}

// markDecided replaces the admin's request message so its buttons disappear
func (b *Bot) markDecided(ctx context.Context, ev Event, text string) {
	if ev.MessageID == 0 {
		return
	}
	if err := b.msg.EditText(ctx, ev.ChatID, ev.MessageID, text); err != nil {
		b.logger.Debug("failed to edit request message", "error", err)
	}
}
