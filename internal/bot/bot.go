// Package bot routes Telegram updates to the reward program components.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"referral-bot/config"
	"referral-bot/db"
	"referral-bot/internal/broadcast"
	"referral-bot/internal/conversation"
	"referral-bot/internal/gate"
	"referral-bot/internal/ledger"
	"referral-bot/internal/metrics"
	"referral-bot/internal/ratelimit"
	"referral-bot/internal/referral"
	"referral-bot/internal/settings"
	"referral-bot/internal/transport"
	"referral-bot/internal/withdrawal"
)

const purgeInterval = 10 * time.Minute

// Options wires a Bot
type Options struct {
	Config    *config.Config
	Messenger transport.Messenger
	Store     db.Store
	// Dialogs defaults to an in-memory store
	Dialogs conversation.StateStore
	// Limiter defaults to no limit
	Limiter ratelimit.Limiter
	// Audit is optional
	Audit   withdrawal.AuditSink
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Bot represents the Telegram bot and its dependencies
type Bot struct {
	cfg     *config.Config
	msg     transport.Messenger
	store   db.Store
	limiter ratelimit.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics

	settings    *settings.Service
	gate        *gate.Gate
	ledger      *ledger.Ledger
	referral    *referral.Protocol
	engine      *conversation.Engine
	withdrawals *withdrawal.Workflow
	broadcaster *broadcast.Broadcaster

	queue      *userQueue
	background sync.WaitGroup
	// lifetime bounds background work; Start cancels it on exit
	lifetime context.Context
	stop     context.CancelFunc
	now      func() time.Time
}

// NewBot builds the components around the store and messenger
func NewBot(opts Options) (*Bot, error) {
	cfg := opts.Config
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	dialogs := opts.Dialogs
	if dialogs == nil {
		dialogs = conversation.NewMemoryStore()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bot{
		cfg:     cfg,
		msg:     opts.Messenger,
		store:   opts.Store,
		limiter: limiter,
		logger:  logger,
		metrics: opts.Metrics,
		queue:   newUserQueue(),
		now:     time.Now,
	}
	b.lifetime, b.stop = context.WithCancel(context.Background())

	b.settings = settings.New(opts.Store, cfg.ProgramDefaults())
	b.gate = gate.New(opts.Messenger, cfg.IsAdmin, logger.With("component", "gate"), opts.Metrics)
	b.ledger = ledger.New(opts.Store, b.settings, loc, logger.With("component", "ledger"), opts.Metrics)
	b.referral = referral.New(opts.Store, b.ledger, opts.Messenger, cfg.SignupBonus, logger.With("component", "referral"), opts.Metrics)
	b.engine = conversation.NewEngine(dialogs, opts.Messenger, cfg.DialogTTL.Duration, logger.With("component", "conversation"))
	b.withdrawals = withdrawal.New(withdrawal.Options{
		Users:       opts.Store,
		Withdrawals: opts.Store,
		Payments:    opts.Store,
		Config:      b.settings,
		Ledger:      b.ledger,
		Engine:      b.engine,
		Messenger:   opts.Messenger,
		Admins:      cfg.Admins,
		Audit:       opts.Audit,
		Logger:      logger.With("component", "withdrawal"),
		Metrics:     opts.Metrics,
	})
	b.broadcaster = broadcast.New(opts.Store, opts.Messenger, cfg.BroadcastPerSecond, logger.With("component", "broadcast"), opts.Metrics)
	b.registerAdminSteps()

	return b, nil
}

// Start consumes updates until ctx is cancelled or the channel closes,
// then waits for queued work to finish and stops background work
func (b *Bot) Start(ctx context.Context, updates <-chan tgbotapi.Update) error {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	unlink := context.AfterFunc(ctx, b.stop)
	defer func() {
		unlink()
		b.queue.Wait()
		b.stop()
		b.background.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := b.engine.Purge(ctx); err != nil {
				b.logger.Warn("failed to purge stale dialogs", "error", err)
			} else if n > 0 {
				b.logger.Info("purged stale dialogs", "count", n)
			}
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := eventFromUpdate(update)
			if !ok {
				continue
			}
			b.queue.Push(ev.UserID, func() { b.Dispatch(ctx, ev) })
		}
	}
}

// Dispatch handles one event synchronously. A panic is logged and swallowed
// so that one bad update never stops the bot.
func (b *Bot) Dispatch(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.Panic()
			b.logger.Error("panic while handling update",
				"user_id", ev.UserID,
				"kind", ev.Kind.String(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	b.metrics.Update(ev.Kind.String())

	allowed, err := b.limiter.Allow(ctx, ev.UserID)
	if err != nil {
		b.logger.Warn("rate limit check failed", "user_id", ev.UserID, "error", err)
	}
	if !allowed {
		b.metrics.RateLimited()
		if ev.Kind == EventCallback {
			b.answer(ctx, ev.CallbackID, "")
		}
		return
	}

	if ev.Kind == EventCallback {
		b.handleCallback(ctx, ev)
		return
	}
	b.handleMessage(ctx, ev)
}

// spawn runs fn outside the user's queue with a context that ends when
// the bot stops
func (b *Bot) spawn(fn func(ctx context.Context)) {
	b.background.Add(1)
	go func() {
		defer b.background.Done()
		fn(b.lifetime)
	}()
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, kb *transport.Keyboard) {
	if _, err := b.msg.Send(ctx, chatID, text, kb); err != nil {
		b.logger.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.msg.AnswerCallback(ctx, callbackID, text); err != nil {
		b.logger.Warn("failed to answer callback", "error", err)
	}
}
