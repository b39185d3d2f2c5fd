package bot

import (
	"fmt"
	"strings"

	"referral-bot/models"
)

// Menu labels double as the keywords users send by tapping the reply keyboard
const (
	btnBalance  = "💰 Balance"
	btnBonus    = "🎁 Bonus"
	btnReferral = "🔗 Referral"
	btnWithdraw = "💸 Withdraw"
	btnCancel   = "❌ Cancel"

	btnBroadcast     = "📢 Broadcast"
	btnStats         = "📊 Stats"
	btnAddChannel    = "➕ Add channel"
	btnRemoveChannel = "➖ Remove channel"
	btnReferralBonus = "✏️ Referral amount"
	btnDailyBonus    = "✏️ Daily bonus"
	btnMinWithdrawal = "✏️ Min withdrawal"
)

const (
	welcomeText       = "👋 Welcome! Invite friends, claim your daily bonus and withdraw your earnings."
	menuButtonText    = "Open"
	unknownInputText  = "Please use the menu buttons below."
	nothingToCancel   = "There is nothing to cancel."
	genericErrorText  = "⚠️ Something went wrong, please try again later."
	startFirstText    = "Please press /start to begin."
	alreadyClaimed    = "⚠️ You have already claimed today's bonus. Come back tomorrow!"
	notSubscribedText = "❌ You haven't subscribed to all channels yet!"
	subscribedText    = "✅ Thanks for subscribing!"
	notAllowedText    = "🚫 Not allowed"
	alreadyDecided    = "⚠️ This request was already processed."
	insufficientText  = "❌ Insufficient balance."

	askBroadcastText     = "📢 Send the message to broadcast to all users:"
	broadcastStartedText = "📤 Broadcasting..."
	askAddChannelText    = "➕ Send the channel username to add (for example @mychannel):"
	emptyBroadcastText   = "The broadcast message must not be empty."
	noChannelsText       = "There are no required channels."
)

func balanceText(u *models.User) string {
	return fmt.Sprintf("💰 Your balance: %d\n👥 Referrals: %d", u.Balance, u.ReferralCount)
}

func bonusText(amount int64) string {
	return fmt.Sprintf("🎁 You received a bonus of %d!", amount)
}

func referralText(link string, amount int64) string {
	return fmt.Sprintf("🔗 Your referral link: %s\n💰 For each invited friend: %d", link, amount)
}

func askRemoveChannelText(channels []string) string {
	return "➖ Send the channel username to remove. Current channels:\n" + strings.Join(channels, "\n")
}

func askConfigValueText(label string, current int64) string {
	return fmt.Sprintf("✏️ %s is now %d. Send the new value:", label, current)
}

func configUpdatedText(label string, value int64) string {
	return fmt.Sprintf("✅ %s set to %d.", label, value)
}

func channelAddedText(channel string) string {
	return fmt.Sprintf("✅ Channel %s added.", channel)
}

func channelRemovedText(channel string) string {
	return fmt.Sprintf("✅ Channel %s removed.", channel)
}

func broadcastDoneText(sent, failed int) string {
	return fmt.Sprintf("✅ Broadcast finished.\n📬 Delivered: %d\n⚠️ Failed: %d", sent, failed)
}

func statsText(users, pending int64, cfg *models.ProgramConfig) string {
	return fmt.Sprintf("📊 Users: %d\n⏳ Pending withdrawals: %d\n\n🔗 Referral amount: %d\n🎁 Daily bonus: %d\n💸 Min withdrawal: %d\n📢 Channels: %d",
		users, pending, cfg.ReferralBonus, cfg.DailyBonus, cfg.MinWithdrawal, len(cfg.RequiredChannels))
}

func approvedAdminText(w *models.Withdrawal) string {
	return fmt.Sprintf("✅ Approved: %d for user %d (%s)", w.Amount, w.UserID, w.ID)
}

func rejectedAdminText(w *models.Withdrawal) string {
	return fmt.Sprintf("❌ Rejected: %d for user %d (%s)", w.Amount, w.UserID, w.ID)
}

// configLabels names the editable amounts in admin messages
var configLabels = map[models.ConfigField]string{
	models.FieldReferralBonus: "Referral amount",
	models.FieldDailyBonus:    "Daily bonus",
	models.FieldMinWithdrawal: "Minimum withdrawal",
}
