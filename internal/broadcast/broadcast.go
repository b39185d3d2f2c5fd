// Package broadcast fans an admin message out to every user.
package broadcast

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"referral-bot/internal/metrics"
	"referral-bot/internal/transport"
)

// Recipients lists the ids to deliver to
type Recipients interface {
	UserIDs(ctx context.Context) ([]int64, error)
}

// Report counts delivery results
type Report struct {
	Total  int
	Sent   int
	Failed int
}

// Broadcaster sends paced messages. Failed deliveries are counted and
// skipped, never retried.
type Broadcaster struct {
	users   Recipients
	msg     transport.Messenger
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New paces deliveries at perSecond messages per second; zero or less disables pacing
func New(users Recipients, msg transport.Messenger, perSecond float64, logger *slog.Logger, m *metrics.Metrics) *Broadcaster {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Broadcaster{
		users:   users,
		msg:     msg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		metrics: m,
	}
}

// Send delivers text to every user. It stops early only when ctx is done.
func (b *Broadcaster) Send(ctx context.Context, text string) (Report, error) {
	ids, err := b.users.UserIDs(ctx)
	if err != nil {
		return Report{}, err
	}

	report := Report{Total: len(ids)}
	for _, id := range ids {
		if err := b.limiter.Wait(ctx); err != nil {
			b.logger.Warn("broadcast interrupted", "sent", report.Sent, "failed", report.Failed, "error", err)
			return report, err
		}
		if _, err := b.msg.Send(ctx, id, text, nil); err != nil {
			report.Failed++
			b.metrics.BroadcastDelivery(false)
			b.logger.Debug("broadcast delivery failed", "user_id", id, "error", err)
			continue
		}
		report.Sent++
		b.metrics.BroadcastDelivery(true)
	}

	b.logger.Info("broadcast finished", "total", report.Total, "sent", report.Sent, "failed", report.Failed)
	return report, nil
}
