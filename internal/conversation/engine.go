// Package conversation keeps per-user multi-step dialogs.
//
// Each user has at most one pending step. An inbound message from that user
// is offered to the step registered under the pending step name; the step
// either advances the dialog, finishes it, or fails. A failed step always
// returns the user to idle with a visible message.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"referral-bot/internal/apperr"
	"referral-bot/internal/transport"
	"referral-bot/models"
)

// Step names
const (
	StepCardNumber    = "card_number"
	StepFullName      = "full_name"
	StepAmount        = "amount"
	StepBroadcastText = "broadcast_text"
	StepAddChannel    = "add_channel"
	StepRemoveChannel = "remove_channel"
	StepConfigValue   = "config_value"
	StepPaymentProof  = "payment_proof"
)

const (
	restartHint    = "Please start again from the menu."
	genericFailure = "⚠️ Something went wrong, please try again later."
	cancelledText  = "❌ Cancelled."
)

// Input is one inbound message offered to a pending step
type Input struct {
	Text  string
	Media *transport.Media
}

// Result tells the engine what to do after a step ran
type Result struct {
	// Next is the step to wait for; empty finishes the dialog
	Next string
	// Data is merged into the dialog data
	Data     map[string]string
	Reply    string
	Keyboard *transport.Keyboard
}

// StepFunc handles the input of one dialog step
type StepFunc func(ctx context.Context, state *models.DialogState, in Input) (Result, error)

// StateStore persists pending dialogs keyed by user id
type StateStore interface {
	// Get returns nil when the user has no pending dialog
	Get(ctx context.Context, userID int64) (*models.DialogState, error)
	Put(ctx context.Context, state *models.DialogState) error
	Delete(ctx context.Context, userID int64) error
}

// Purger is implemented by stores that can drop stale dialogs in bulk
type Purger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Engine drives dialogs. Callers serialize calls per user.
type Engine struct {
	store  StateStore
	msg    transport.Messenger
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	steps map[string]StepFunc
}

func NewEngine(store StateStore, msg transport.Messenger, ttl time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		msg:    msg,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		steps:  make(map[string]StepFunc),
	}
}

// Register binds a step name to its handler
func (e *Engine) Register(step string, fn StepFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.steps[step] = fn
}

func (e *Engine) step(name string) (StepFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.steps[name]
	return fn, ok
}

// Begin starts a dialog at step, replacing any pending one, and sends prompt
func (e *Engine) Begin(ctx context.Context, userID int64, step string, data map[string]string, prompt string, kb *transport.Keyboard) error {
	if _, ok := e.step(step); !ok {
		return fmt.Errorf("unknown dialog step %q", step)
	}

	state := &models.DialogState{
		UserID:    userID,
		Step:      step,
		Data:      maps.Clone(data),
		UpdatedAt: e.now(),
	}
	if err := e.store.Put(ctx, state); err != nil {
		return apperr.Unavailable("save dialog", err)
	}

	if prompt != "" {
		e.send(ctx, userID, prompt, kb)
	}
	return nil
}

// Pending returns the live dialog of a user, or nil
func (e *Engine) Pending(ctx context.Context, userID int64) (*models.DialogState, error) {
	state, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, apperr.Unavailable("load dialog", err)
	}
	if state == nil {
		return nil, nil
	}
	if e.expired(state) {
		if err := e.store.Delete(ctx, userID); err != nil {
			e.logger.Warn("failed to drop expired dialog", "user_id", userID, "error", err)
		}
		return nil, nil
	}
	return state, nil
}

func (e *Engine) expired(state *models.DialogState) bool {
	return e.ttl > 0 && e.now().Sub(state.UpdatedAt) > e.ttl
}

// Handle offers in to the user's pending step. It reports false when no
// dialog is pending and the input should be routed elsewhere.
func (e *Engine) Handle(ctx context.Context, userID int64, in Input) (bool, error) {
	state, err := e.Pending(ctx, userID)
	if err != nil {
		return false, err
	}
	if state == nil {
		return false, nil
	}

	fn, ok := e.step(state.Step)
	if !ok {
		e.logger.Warn("dropping dialog with unknown step", "user_id", userID, "step", state.Step)
		return false, e.store.Delete(ctx, userID)
	}

	res, err := fn(ctx, state, in)
	if err != nil {
		e.fail(ctx, userID, state.Step, err)
		return true, nil
	}

	if res.Next == "" {
		if err := e.store.Delete(ctx, userID); err != nil {
			return true, apperr.Unavailable("clear dialog", err)
		}
	} else {
		next := &models.DialogState{
			UserID:    userID,
			Step:      res.Next,
			Data:      maps.Clone(state.Data),
			UpdatedAt: e.now(),
		}
		if next.Data == nil {
			next.Data = map[string]string{}
		}
		maps.Copy(next.Data, res.Data)
		if err := e.store.Put(ctx, next); err != nil {
			return true, apperr.Unavailable("save dialog", err)
		}
	}

	if res.Reply != "" {
		e.send(ctx, userID, res.Reply, res.Keyboard)
	}
	return true, nil
}

func (e *Engine) fail(ctx context.Context, userID int64, step string, err error) {
	if derr := e.store.Delete(ctx, userID); derr != nil {
		e.logger.Warn("failed to clear dialog", "user_id", userID, "error", derr)
	}

	if ve, ok := apperr.IsValidation(err); ok {
		e.send(ctx, userID, "❌ "+ve.Message+"\n"+restartHint, nil)
		return
	}
	e.logger.Error("dialog step failed", "user_id", userID, "step", step, "error", err)
	e.send(ctx, userID, genericFailure, nil)
}

// Cancel drops the pending dialog. With notify set the user is told when
// something was actually cancelled.
func (e *Engine) Cancel(ctx context.Context, userID int64, notify bool) (bool, error) {
	state, err := e.store.Get(ctx, userID)
	if err != nil {
		return false, apperr.Unavailable("load dialog", err)
	}
	if state == nil {
		return false, nil
	}
	if err := e.store.Delete(ctx, userID); err != nil {
		return false, apperr.Unavailable("clear dialog", err)
	}
	if notify {
		e.send(ctx, userID, cancelledText, nil)
	}
	return true, nil
}

// Purge drops dialogs older than the TTL when the store supports it
func (e *Engine) Purge(ctx context.Context) (int64, error) {
	p, ok := e.store.(Purger)
	if !ok || e.ttl <= 0 {
		return 0, nil
	}
	return p.PurgeOlderThan(ctx, e.now().Add(-e.ttl))
}

func (e *Engine) send(ctx context.Context, userID int64, text string, kb *transport.Keyboard) {
	if _, err := e.msg.Send(ctx, userID, text, kb); err != nil {
		e.logger.Warn("failed to send dialog message", "user_id", userID, "error", err)
	}
}
