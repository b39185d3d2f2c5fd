package models

import (
	"slices"
	"time"
)

// User represents a Telegram bot user and their reward account
type User struct {
	ID        int64  `bson:"_id" json:"id"`
	Username  string `bson:"username,omitempty" json:"username,omitempty"`
	FirstName string `bson:"first_name,omitempty" json:"first_name,omitempty"`

	Balance int64 `bson:"balance" json:"balance"`

	ReferredBy         *int64  `bson:"referred_by,omitempty" json:"referred_by,omitempty"`
	ReferralCount      int     `bson:"referral_count" json:"referral_count"`
	ReferralBonusTaken bool    `bson:"referral_bonus_taken" json:"referral_bonus_taken"`
	ReferredUsers      []int64 `bson:"referred_users,omitempty" json:"-"`

	AppliedWithdrawals []string `bson:"applied_withdrawals,omitempty" json:"-"`

	LastBonusAt           *time.Time `bson:"last_bonus_at,omitempty" json:"last_bonus_at,omitempty"`
	LastWithdrawalRequest *time.Time `bson:"last_withdrawal_request,omitempty" json:"last_withdrawal_request,omitempty"`

	// Payout details are collected once and reused
	CardNumber string `bson:"card_number,omitempty" json:"card_number,omitempty"`
	FullName   string `bson:"full_name,omitempty" json:"full_name,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// HasPayoutDetails reports whether card number and full name are already stored
func (u *User) HasPayoutDetails() bool {
	return u.CardNumber != "" && u.FullName != ""
}

// DisplayName returns @username when present, the first name otherwise
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}

// HasReferred reports whether the referral bonus for newUserID was already credited
func (u *User) HasReferred(newUserID int64) bool {
	return slices.Contains(u.ReferredUsers, newUserID)
}

// HasApplied reports whether withdrawal requestID was already debited from this user
func (u *User) HasApplied(requestID string) bool {
	return slices.Contains(u.AppliedWithdrawals, requestID)
}
