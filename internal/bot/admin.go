package bot

import (
	"context"
	"strings"

	"referral-bot/internal/apperr"
	"referral-bot/internal/conversation"
	"referral-bot/models"
)

const keyField = "field"

func (b *Bot) registerAdminSteps() {
	b.engine.Register(conversation.StepBroadcastText, b.stepBroadcastText)
	b.engine.Register(conversation.StepAddChannel, b.stepAddChannel)
	b.engine.Register(conversation.StepRemoveChannel, b.stepRemoveChannel)
	b.engine.Register(conversation.StepConfigValue, b.stepConfigValue)
}

func (b *Bot) begin(ctx context.Context, ev Event, step string, data map[string]string, prompt string) {
	if err := b.engine.Begin(ctx, ev.UserID, step, data, prompt, nil); err != nil {
		b.logger.Error("failed to start dialog", "user_id", ev.UserID, "step", step, "error", err)
		b.send(ctx, ev.ChatID, genericErrorText, nil)
	}
}

func (b *Bot) startBroadcast(ctx context.Context, ev Event, _ *models.ProgramConfig) {
	b.begin(ctx, ev, conversation.StepBroadcastText, nil, askBroadcastText)
}

func (b *Bot) startAddChannel(ctx context.Context, ev Event, _ *models.ProgramConfig) {
	b.begin(ctx, ev, conversation.StepAddChannel, nil, askAddChannelText)
}

func (b *Bot) startRemoveChannel(ctx context.Context, ev Event, cfg *models.ProgramConfig) {
	if len(cfg.RequiredChannels) == 0 {
		b.send(ctx, ev.ChatID, noChannelsText, nil)
		return
	}
	b.begin(ctx, ev, conversation.StepRemoveChannel, nil, askRemoveChannelText(cfg.RequiredChannels))
}

func (b *Bot) startConfigEdit(field models.ConfigField) action {
	return func(ctx context.Context, ev Event, cfg *models.ProgramConfig) {
		prompt := askConfigValueText(configLabels[field], cfg.Amount(field))
		b.begin(ctx, ev, conversation.StepConfigValue, map[string]string{keyField: string(field)}, prompt)
	}
}

func (b *Bot) showStats(ctx context.Context, ev Event, cfg *models.ProgramConfig) {
	users, err := b.store.CountUsers(ctx)
	if err != nil {
		b.logger.Error("failed to count users", "error", err)
		b.send(ctx, ev.ChatID, genericErrorText, nil)
		return
	}
	pending, err := b.store.CountWithdrawals(ctx, models.WithdrawalPending)
	if err != nil {
		b.logger.Error("failed to count withdrawals", "error", err)
		b.send(ctx, ev.ChatID, genericErrorText, nil)
		return
	}
	b.send(ctx, ev.ChatID, statsText(users, pending, cfg), nil)
}

// stepBroadcastText starts the fan-out in the background so the admin's
// own queue is not held for the whole delivery
func (b *Bot) stepBroadcastText(ctx context.Context, state *models.DialogState, in conversation.Input) (conversation.Result, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return conversation.Result{}, apperr.Validation(emptyBroadcastText)
	}

	adminID := state.UserID
	b.spawn(func(bctx context.Context) {
		report, err := b.broadcaster.Send(bctx, text)
		if err != nil {
			b.logger.Warn("broadcast stopped early", "admin_id", adminID, "sent", report.Sent, "total", report.Total, "error", err)
		}
		// the summary goes out even when shutdown cut the broadcast short
		b.send(context.WithoutCancel(bctx), adminID, broadcastDoneText(report.Sent, report.Failed), nil)
	})

	return conversation.Result{Reply: broadcastStartedText}, nil
}

func (b *Bot) stepAddChannel(ctx context.Context, _ *models.DialogState, in conversation.Input) (conversation.Result, error) {
	channel, err := b.settings.AddChannel(ctx, in.Text)
	if err != nil {
		return conversation.Result{}, err
	}
	b.logger.Info("required channel added", "channel", channel)
	return conversation.Result{Reply: channelAddedText(channel)}, nil
}

func (b *Bot) stepRemoveChannel(ctx context.Context, _ *models.DialogState, in conversation.Input) (conversation.Result, error) {
	channel, err := b.settings.RemoveChannel(ctx, in.Text)
	if err != nil {
		return conversation.Result{}, err
	}
	b.logger.Info("required channel removed", "channel", channel)
	return conversation.Result{Reply: channelRemovedText(channel)}, nil
}

func (b *Bot) stepConfigValue(ctx context.Context, state *models.DialogState, in conversation.Input) (conversation.Result, error) {
	field := models.ConfigField(state.Value(keyField))
	cfg, err := b.settings.SetAmount(ctx, field, in.Text)
	if err != nil {
		return conversation.Result{}, err
	}
	value := cfg.Amount(field)
	b.logger.Info("program config updated", "field", string(field), "value", value, "admin_id", state.UserID)
	return conversation.Result{Reply: configUpdatedText(configLabels[field], value)}, nil
}

// Wait blocks until background work such as broadcasts has finished
func (b *Bot) Wait() {
	b.queue.Wait()
	b.background.Wait()
}
