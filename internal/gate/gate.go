// Package gate enforces the required channel subscriptions.
package gate

import (
	"context"
	"log/slog"
	"strings"

	"referral-bot/internal/metrics"
	"referral-bot/internal/settings"
	"referral-bot/internal/transport"
	"referral-bot/models"
)

// CheckToken is the callback data prefix of the "I've subscribed" button
const CheckToken = "check_sub"

const (
	promptText  = "To use the bot, please subscribe to the channels below and then press the button."
	checkButton = "✅ I've subscribed"
)

// Gate checks channel membership through the messenger
type Gate struct {
	msg     transport.Messenger
	isAdmin func(int64) bool
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(msg transport.Messenger, isAdmin func(int64) bool, logger *slog.Logger, m *metrics.Metrics) *Gate {
	return &Gate{msg: msg, isAdmin: isAdmin, logger: logger, metrics: m}
}

// Evaluate returns the required channels userID is not subscribed to.
// Admins always pass. A failed membership query counts as unsubscribed.
func (g *Gate) Evaluate(ctx context.Context, userID int64, cfg *models.ProgramConfig) []string {
	if g.isAdmin(userID) {
		return nil
	}

	var missing []string
	for _, channel := range cfg.RequiredChannels {
		status, err := g.msg.MemberStatus(ctx, channel, userID)
		if err != nil {
			g.logger.Warn("membership check failed", "channel", channel, "user_id", userID, "error", err)
			missing = append(missing, channel)
			continue
		}
		if !Subscribed(status) {
			missing = append(missing, channel)
		}
	}
	if len(missing) > 0 {
		g.metrics.GateBlocked()
	}
	return missing
}

// Subscribed reports whether a membership status satisfies the gate
func Subscribed(status string) bool {
	switch status {
	case transport.StatusLeft, transport.StatusKicked, "":
		return false
	}
	return true
}

// Prompt lists the missing channels with one link button each and a
// re-check button carrying resume, the payload of the interrupted entry action
func (g *Gate) Prompt(ctx context.Context, chatID int64, missing []string, resume string) error {
	rows := make([][]transport.Button, 0, len(missing)+1)
	for _, channel := range missing {
		rows = append(rows, []transport.Button{
			transport.URLButton(channel, settings.ChannelURL(channel)),
		})
	}
	rows = append(rows, []transport.Button{transport.DataButton(checkButton, Token(resume))})

	_, err := g.msg.Send(ctx, chatID, promptText, &transport.Keyboard{Inline: rows})
	return err
}

// Token builds the re-check callback data
func Token(resume string) string {
	if resume == "" {
		return CheckToken
	}
	return CheckToken + ":" + resume
}

// ParseToken reports whether data is a re-check token and returns its resume payload
func ParseToken(data string) (string, bool) {
	if data == CheckToken {
		return "", true
	}
	resume, ok := strings.CutPrefix(data, CheckToken+":")
	return resume, ok
}
