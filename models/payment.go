package models

import "time"

// Payment is the evidence an admin attaches after paying out a withdrawal
type Payment struct {
	ID           string    `bson:"_id" json:"id"`
	UserID       int64     `bson:"user_id" json:"user_id"`
	Amount       int64     `bson:"amount" json:"amount"`
	WithdrawalID string    `bson:"withdrawal_id" json:"withdrawal_id"`
	FileID       string    `bson:"file_id,omitempty" json:"file_id,omitempty"`
	FileType     string    `bson:"file_type" json:"file_type"` // photo | document | text
	Caption      string    `bson:"caption,omitempty" json:"caption,omitempty"`
	AdminID      int64     `bson:"admin_id" json:"admin_id"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}
