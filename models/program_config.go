package models

import "slices"

// ProgramConfigID is the fixed id of the single program config document
const ProgramConfigID = "program"

// ConfigField names an admin-editable numeric field of ProgramConfig
type ConfigField string

const (
	FieldReferralBonus ConfigField = "referral_bonus"
	FieldDailyBonus    ConfigField = "daily_bonus"
	FieldMinWithdrawal ConfigField = "min_withdrawal"
)

// Valid reports whether f is one of the editable fields
func (f ConfigField) Valid() bool {
	switch f {
	case FieldReferralBonus, FieldDailyBonus, FieldMinWithdrawal:
		return true
	}
	return false
}

// ProgramConfig stores the admin-editable reward parameters
type ProgramConfig struct {
	ID               string   `bson:"_id" json:"-"`
	ReferralBonus    int64    `bson:"referral_bonus" json:"referral_bonus"`
	DailyBonus       int64    `bson:"daily_bonus" json:"daily_bonus"`
	MinWithdrawal    int64    `bson:"min_withdrawal" json:"min_withdrawal"`
	RequiredChannels []string `bson:"required_channels" json:"required_channels"`
}

// Amount returns the value of a numeric field
func (c *ProgramConfig) Amount(f ConfigField) int64 {
	switch f {
	case FieldReferralBonus:
		return c.ReferralBonus
	case FieldDailyBonus:
		return c.DailyBonus
	case FieldMinWithdrawal:
		return c.MinWithdrawal
	}
	return 0
}

// SetAmount sets the value of a numeric field
func (c *ProgramConfig) SetAmount(f ConfigField, v int64) {
	switch f {
	case FieldReferralBonus:
		c.ReferralBonus = v
	case FieldDailyBonus:
		c.DailyBonus = v
	case FieldMinWithdrawal:
		c.MinWithdrawal = v
	}
}

// HasChannel reports whether channel is already required
func (c *ProgramConfig) HasChannel(channel string) bool {
	return slices.Contains(c.RequiredChannels, channel)
}

// Clone returns a deep copy
func (c *ProgramConfig) Clone() *ProgramConfig {
	cp := *c
	cp.RequiredChannels = slices.Clone(c.RequiredChannels)
	return &cp
}
