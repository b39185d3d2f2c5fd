// Package withdrawal implements the payout request and admin approval flow.
//
// A request is persisted as pending and never debited until an admin
// approves it. Approval moves the request pending -> processing before the
// debit, so a second press of the same button finds it consumed. The debit
// itself is guarded by the request id on the user document, so it applies
// at most once even if the status update after it is lost.
package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"referral-bot/db"
	"referral-bot/internal/apperr"
	"referral-bot/internal/conversation"
	"referral-bot/internal/ledger"
	"referral-bot/internal/metrics"
	"referral-bot/internal/transport"
	"referral-bot/models"
)

// Dialog data keys
const (
	keyCard         = "card"
	keyName         = "name"
	keyWithdrawalID = "withdrawal_id"
)

// AuditSink receives every approved payout
type AuditSink interface {
	RecordPayout(ctx context.Context, w *models.Withdrawal, adminID int64) error
}

// Options wires a Workflow
type Options struct {
	Users       db.UserStore
	Withdrawals db.WithdrawalStore
	Payments    db.PaymentStore
	Config      ledger.ConfigSource
	Ledger      *ledger.Ledger
	Engine      *conversation.Engine
	Messenger   transport.Messenger
	Admins      []int64
	// Audit is optional
	Audit   AuditSink
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

type Workflow struct {
	users       db.UserStore
	withdrawals db.WithdrawalStore
	payments    db.PaymentStore
	config      ledger.ConfigSource
	ledger      *ledger.Ledger
	engine      *conversation.Engine
	msg         transport.Messenger
	admins      []int64
	audit       AuditSink
	logger      *slog.Logger
	metrics     *metrics.Metrics

	now   func() time.Time
	newID func() string
}

// New builds the workflow and registers its dialog steps on the engine
func New(opts Options) *Workflow {
	w := &Workflow{
		users:       opts.Users,
		withdrawals: opts.Withdrawals,
		payments:    opts.Payments,
		config:      opts.Config,
		ledger:      opts.Ledger,
		engine:      opts.Engine,
		msg:         opts.Messenger,
		admins:      opts.Admins,
		audit:       opts.Audit,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		now:         time.Now,
		newID:       newRequestID,
	}
	w.engine.Register(conversation.StepCardNumber, w.stepCardNumber)
	w.engine.Register(conversation.StepFullName, w.stepFullName)
	w.engine.Register(conversation.StepAmount, w.stepAmount)
	w.engine.Register(conversation.StepPaymentProof, w.stepPaymentProof)
	return w
}

func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Start opens the withdrawal dialog, or explains why it cannot start
func (w *Workflow) Start(ctx context.Context, userID int64) error {
	cfg, err := w.config.Get(ctx)
	if err != nil {
		return err
	}
	u, err := w.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if u.Balance < cfg.MinWithdrawal {
		_, err := w.msg.Send(ctx, userID, belowMinimumText(cfg.MinWithdrawal, u.Balance), nil)
		return err
	}

	if u.HasPayoutDetails() {
		data := map[string]string{keyCard: u.CardNumber, keyName: u.FullName}
		return w.engine.Begin(ctx, userID, conversation.StepAmount, data, askAmountText(cfg.MinWithdrawal, u.Balance), nil)
	}
	return w.engine.Begin(ctx, userID, conversation.StepCardNumber, nil, askCardText, nil)
}

// NormalizeCard strips spaces and dashes and checks for 16 digits
func NormalizeCard(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r == ' ' || r == '-':
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			return "", apperr.Validation(invalidCardText)
		}
	}
	if b.Len() != 16 {
		return "", apperr.Validation(invalidCardText)
	}
	return b.String(), nil
}

func (w *Workflow) stepCardNumber(_ context.Context, _ *models.DialogState, in conversation.Input) (conversation.Result, error) {
	card, err := NormalizeCard(in.Text)
	if err != nil {
		return conversation.Result{}, err
	}
	return conversation.Result{
		Next:  conversation.StepFullName,
		Data:  map[string]string{keyCard: card},
		Reply: askNameText,
	}, nil
}

func (w *Workflow) stepFullName(ctx context.Context, state *models.DialogState, in conversation.Input) (conversation.Result, error) {
	name := strings.Join(strings.Fields(in.Text), " ")
	if name == "" || len(name) > 100 || strings.HasPrefix(name, "/") || !strings.ContainsFunc(name, unicode.IsLetter) {
		return conversation.Result{}, apperr.Validation(invalidNameText)
	}

	if err := w.users.SetPayoutDetails(ctx, state.UserID, state.Value(keyCard), name); err != nil {
		return conversation.Result{}, fmt.Errorf("failed to save payout details: %w", err)
	}

	cfg, err := w.config.Get(ctx)
	if err != nil {
		return conversation.Result{}, err
	}
	u, err := w.users.GetUser(ctx, state.UserID)
	if err != nil {
		return conversation.Result{}, err
	}
	return conversation.Result{
		Next:  conversation.StepAmount,
		Data:  map[string]string{keyName: name},
		Reply: askAmountText(cfg.MinWithdrawal, u.Balance),
	}, nil
}

// stepAmount validates against the balance read now, not the one shown at Start
func (w *Workflow) stepAmount(ctx context.Context, state *models.DialogState, in conversation.Input) (conversation.Result, error) {
	amount, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(in.Text), " ", ""), 10, 64)
	if err != nil {
		return conversation.Result{}, apperr.Validation(invalidAmount)
	}

	cfg, err := w.config.Get(ctx)
	if err != nil {
		return conversation.Result{}, err
	}
	u, err := w.users.GetUser(ctx, state.UserID)
	if err != nil {
		return conversation.Result{}, err
	}

	if amount < cfg.MinWithdrawal {
		return conversation.Result{}, apperr.Validation("The minimum withdrawal is %d.", cfg.MinWithdrawal)
	}
	if amount > u.Balance {
		return conversation.Result{}, apperr.Validation("The amount exceeds your balance of %d.", u.Balance)
	}

	card, name := state.Value(keyCard), state.Value(keyName)
	if card == "" || name == "" {
		card, name = u.CardNumber, u.FullName
	}

	now := w.now()
	req := &models.Withdrawal{
		ID:         w.newID(),
		UserID:     u.ID,
		Amount:     amount,
		CardNumber: card,
		FullName:   name,
		Status:     models.WithdrawalPending,
		CreatedAt:  now,
	}
	if err := w.withdrawals.CreateWithdrawal(ctx, req); err != nil {
		return conversation.Result{}, err
	}
	if err := w.users.TouchWithdrawalRequest(ctx, u.ID, now); err != nil {
		w.logger.Warn("failed to stamp withdrawal request", "user_id", u.ID, "error", err)
	}

	w.metrics.Withdrawal("requested")
	w.logger.Info("withdrawal requested", "request_id", req.ID, "user_id", u.ID, "amount", amount)
	w.notifyAdmins(ctx, u, req)

	return conversation.Result{Reply: requestSentText(amount)}, nil
}

func (w *Workflow) notifyAdmins(ctx context.Context, u *models.User, req *models.Withdrawal) {
	label := u.DisplayName()
	if label == "" {
		label = "user"
	}
	text := adminRequestText(label, u.ID, req.Amount, req.CardNumber, req.FullName)
	kb := transport.InlineRow(
		transport.DataButton("✅ Approve", ApproveToken(req.ID, req.Amount)),
		transport.DataButton("❌ Reject", RejectToken(req.ID)),
	)
	for _, adminID := range w.admins {
		if _, err := w.msg.Send(ctx, adminID, text, kb); err != nil {
			w.logger.Warn("failed to forward withdrawal to admin", "admin_id", adminID, "request_id", req.ID, "error", err)
		}
	}
}

// Approve debits the requester for an approve token pressed by adminID.
// It returns apperr.ErrRequestConsumed when the request was already decided
// and apperr.ErrInsufficientBalance when the balance no longer covers it;
// in both cases nothing is changed.
func (w *Workflow) Approve(ctx context.Context, adminID int64, token string) (*models.Withdrawal, error) {
	id, amount, err := ParseApproveToken(token)
	if err != nil {
		return nil, err
	}

	req, err := w.withdrawals.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Amount != amount {
		return nil, fmt.Errorf("approve token does not match request %s", id)
	}
	userID := req.UserID

	now := w.now()
	if _, err := w.withdrawals.TransitionWithdrawal(ctx, id, models.WithdrawalPending, models.WithdrawalProcessing, adminID, now); err != nil {
		return nil, err
	}

	u, err := w.ledger.DebitForWithdrawal(ctx, userID, id, amount)
	if err != nil {
		if _, rerr := w.withdrawals.TransitionWithdrawal(ctx, id, models.WithdrawalProcessing, models.WithdrawalPending, 0, now); rerr != nil {
			w.logger.Error("failed to release withdrawal", "request_id", id, "error", rerr)
		}
		if errors.Is(err, apperr.ErrInsufficientBalance) {
			w.metrics.Withdrawal("insufficient")
			balance := int64(0)
			if cur, gerr := w.users.GetUser(ctx, userID); gerr == nil {
				balance = cur.Balance
			}
			w.send(ctx, adminID, insufficientAdminText(userID, amount, balance))
		}
		return nil, err
	}

	req, err = w.withdrawals.TransitionWithdrawal(ctx, id, models.WithdrawalProcessing, models.WithdrawalApproved, adminID, now)
	if err != nil {
		// the debit is recorded on the user; a retry would find the request processing
		w.logger.Error("withdrawal debited but not marked approved", "request_id", id, "error", err)
		return nil, err
	}

	w.metrics.Withdrawal("approved")
	w.logger.Info("withdrawal approved", "request_id", id, "user_id", userID, "amount", amount, "admin_id", adminID, "balance", u.Balance)

	w.send(ctx, userID, approvedUserText(amount))
	if w.audit != nil {
		if err := w.audit.RecordPayout(ctx, req, adminID); err != nil {
			w.logger.Warn("failed to record payout", "request_id", id, "error", err)
		}
	}

	data := map[string]string{keyWithdrawalID: id}
	if err := w.engine.Begin(ctx, adminID, conversation.StepPaymentProof, data, askProofText, nil); err != nil {
		w.logger.Warn("failed to start payment proof dialog", "admin_id", adminID, "error", err)
	}
	return req, nil
}

// Reject closes a pending request without touching the balance
func (w *Workflow) Reject(ctx context.Context, adminID int64, token string) (*models.Withdrawal, error) {
	id, err := ParseRejectToken(token)
	if err != nil {
		return nil, err
	}

	req, err := w.withdrawals.TransitionWithdrawal(ctx, id, models.WithdrawalPending, models.WithdrawalRejected, adminID, w.now())
	if err != nil {
		return nil, err
	}

	w.metrics.Withdrawal("rejected")
	w.logger.Info("withdrawal rejected", "request_id", id, "user_id", req.UserID, "admin_id", adminID)
	w.send(ctx, req.UserID, rejectedUserText(req.Amount))
	return req, nil
}

func (w *Workflow) stepPaymentProof(ctx context.Context, state *models.DialogState, in conversation.Input) (conversation.Result, error) {
	req, err := w.withdrawals.GetWithdrawal(ctx, state.Value(keyWithdrawalID))
	if err != nil {
		return conversation.Result{}, err
	}

	p := &models.Payment{
		ID:           newRequestID(),
		UserID:       req.UserID,
		Amount:       req.Amount,
		WithdrawalID: req.ID,
		Caption:      strings.TrimSpace(in.Text),
		AdminID:      state.UserID,
		CreatedAt:    w.now(),
	}
	switch {
	case in.Media != nil:
		p.FileID = in.Media.FileID
		p.FileType = in.Media.Type
	case p.Caption != "":
		p.FileType = "text"
	default:
		return conversation.Result{}, apperr.Validation(invalidProofText)
	}

	if err := w.payments.SavePayment(ctx, p); err != nil {
		return conversation.Result{}, err
	}

	caption := proofCaption(req.Amount)
	if p.Caption != "" {
		caption += "\n" + p.Caption
	}
	if in.Media != nil {
		if err := w.msg.ForwardMedia(ctx, req.UserID, *in.Media, caption); err != nil {
			w.logger.Warn("failed to forward payment proof", "user_id", req.UserID, "error", err)
		}
	} else {
		w.send(ctx, req.UserID, caption)
	}

	w.logger.Info("payment proof saved", "request_id", req.ID, "admin_id", state.UserID, "file_type", p.FileType)
	return conversation.Result{Reply: proofSavedText}, nil
}

func (w *Workflow) send(ctx context.Context, chatID int64, text string) {
	if _, err := w.msg.Send(ctx, chatID, text, nil); err != nil {
		w.logger.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
}
