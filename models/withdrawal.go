package models

import "time"

// WithdrawalStatus is the lifecycle state of a payout request
type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalApproved   WithdrawalStatus = "approved"
	WithdrawalRejected   WithdrawalStatus = "rejected"
)

// Withdrawal is a user's payout request waiting for an admin decision
type Withdrawal struct {
	ID         string           `bson:"_id" json:"id"`
	UserID     int64            `bson:"user_id" json:"user_id"`
	Amount     int64            `bson:"amount" json:"amount"`
	CardNumber string           `bson:"card_number" json:"card_number"`
	FullName   string           `bson:"full_name" json:"full_name"`
	Status     WithdrawalStatus `bson:"status" json:"status"`
	CreatedAt  time.Time        `bson:"created_at" json:"created_at"`
	DecidedAt  *time.Time       `bson:"decided_at,omitempty" json:"decided_at,omitempty"`
	DecidedBy  int64            `bson:"decided_by,omitempty" json:"decided_by,omitempty"`
}
