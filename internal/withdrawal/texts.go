package withdrawal

import "fmt"

const (
	askCardText      = "💳 Enter your 16-digit card number:"
	askNameText      = "👤 Enter the card holder's full name:"
	askProofText     = "📎 Send a screenshot or document as payment proof, or /cancel to skip."
	proofSavedText   = "✅ Payment proof saved and sent to the user."
	invalidCardText  = "Card number must contain exactly 16 digits."
	invalidNameText  = "Please enter the full name as written on the card."
	invalidAmount    = "Please enter the amount as a whole number."
	invalidProofText = "Please send a photo, a document or a text note."
)

func belowMinimumText(min, balance int64) string {
	return fmt.Sprintf("❌ The minimum withdrawal is %d.\n💰 Your balance: %d", min, balance)
}

func askAmountText(min, balance int64) string {
	return fmt.Sprintf("💸 Enter the amount to withdraw (from %d to %d):", min, balance)
}

func requestSentText(amount int64) string {
	return fmt.Sprintf("✅ Your withdrawal request for %d has been sent to the admins.", amount)
}

func adminRequestText(userLabel string, userID, amount int64, card, name string) string {
	return fmt.Sprintf("💸 New withdrawal request\n👤 %s (%d)\n💰 Amount: %d\n💳 Card: %s\n📝 Name: %s",
		userLabel, userID, amount, card, name)
}

func approvedUserText(amount int64) string {
	return fmt.Sprintf("✅ Your withdrawal request was approved. %d has been deducted from your balance.", amount)
}

func rejectedUserText(amount int64) string {
	return fmt.Sprintf("❌ Your withdrawal request for %d was rejected.", amount)
}

func insufficientAdminText(userID, amount, balance int64) string {
	return fmt.Sprintf("❌ User %d no longer has enough balance for %d (current balance: %d).", userID, amount, balance)
}

func proofCaption(amount int64) string {
	return fmt.Sprintf("🧾 Payment proof for your withdrawal of %d", amount)
}
