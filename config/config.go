package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"referral-bot/models"
)

// Config stores bot configuration
type Config struct {
	BotToken    string  `json:"bot_token" toml:"bot_token"`
	BotUsername string  `json:"bot_username" toml:"bot_username"`
	MongoURI    string  `json:"mongo_uri" toml:"mongo_uri"`
	MongoDB     string  `json:"mongo_db" toml:"mongo_db"`
	Admins      []int64 `json:"admins" toml:"admins"`

	// DialogDBPath is the SQLite file journaling pending dialogs; empty keeps them in memory
	DialogDBPath string   `json:"dialog_db_path" toml:"dialog_db_path"`
	DialogTTL    Duration `json:"dialog_ttl" toml:"dialog_ttl"`

	RedisAddr       string `json:"redis_addr" toml:"redis_addr"`
	RedisPassword   string `json:"redis_password" toml:"redis_password"`
	RedisDB         int    `json:"redis_db" toml:"redis_db"`
	RateLimitPerMin int    `json:"rate_limit_per_min" toml:"rate_limit_per_min"`

	MetricsAddr string `json:"metrics_addr" toml:"metrics_addr"`
	LogFile     string `json:"log_file" toml:"log_file"`
	Env         string `json:"env" toml:"env"`
	Timezone    string `json:"timezone" toml:"timezone"`
	MenuURL     string `json:"menu_url" toml:"menu_url"`

	// SignupBonus is credited once to a user who joins through a referral link
	SignupBonus int64    `json:"signup_bonus" toml:"signup_bonus"`
	Defaults    Defaults `json:"defaults" toml:"defaults"`

	BroadcastPerSecond float64 `json:"broadcast_per_second" toml:"broadcast_per_second"`

	Sheets SheetsConfig `json:"sheets" toml:"sheets"`
}

// Defaults seeds the program config document on first access
type Defaults struct {
	ReferralBonus int64 `json:"referral_bonus" toml:"referral_bonus"`
	DailyBonus    int64 `json:"daily_bonus" toml:"daily_bonus"`
	MinWithdrawal int64 `json:"min_withdrawal" toml:"min_withdrawal"`
}

// SheetsConfig points at the spreadsheet used as the payout audit log
type SheetsConfig struct {
	CredentialsFile string `json:"credentials_file" toml:"credentials_file"`
	TokenFile       string `json:"token_file" toml:"token_file"`
	SpreadsheetID   string `json:"spreadsheet_id" toml:"spreadsheet_id"`
	Range           string `json:"range" toml:"range"`
}

// Duration is a time.Duration read from strings such as "30m"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig loads configuration from a JSON or TOML file and applies
// environment overrides
func LoadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(file), config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns a config with the program defaults filled in
func Default() *Config {
	return &Config{
		MongoDB:         "referral_bot",
		DialogTTL:       Duration{30 * time.Minute},
		RateLimitPerMin: 40,
		Env:             "production",
		Defaults: Defaults{
			ReferralBonus: 100,
			DailyBonus:    50,
			MinWithdrawal: 10000,
		},
		BroadcastPerSecond: 25,
		Sheets: SheetsConfig{
			Range: "Payouts!A:H",
		},
	}
}

// ApplyEnv overrides fields from environment variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"BOT_TOKEN":      &c.BotToken,
		"BOT_USERNAME":   &c.BotUsername,
		"MONGO_URI":      &c.MongoURI,
		"MONGO_DB":       &c.MongoDB,
		"DIALOG_DB_PATH": &c.DialogDBPath,
		"REDIS_ADDR":     &c.RedisAddr,
		"REDIS_PASSWORD": &c.RedisPassword,
		"METRICS_ADDR":   &c.MetricsAddr,
		"LOG_FILE":       &c.LogFile,
		"ENV":            &c.Env,
		"TIMEZONE":       &c.Timezone,
		"MENU_URL":       &c.MenuURL,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("ADMINS"); ok && v != "" {
		admins, err := ParseAdmins(v)
		if err != nil {
			return err
		}
		c.Admins = admins
	}
	if v, ok := lookup("SIGNUP_BONUS"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid SIGNUP_BONUS %q: %w", v, err)
		}
		c.SignupBonus = n
	}
	return nil
}

// ParseAdmins parses a comma separated list of account ids
func ParseAdmins(list string) ([]int64, error) {
	var admins []int64
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", part, err)
		}
		admins = append(admins, id)
	}
	return admins, nil
}

// Validate checks that the bot can start with this configuration
func (c *Config) Validate() error {
	var errs []error
	if c.BotToken == "" || c.BotToken == "YOUR_BOT_TOKEN_HERE" {
		errs = append(errs, errors.New("bot_token is not set"))
	}
	if len(c.Admins) == 0 {
		errs = append(errs, errors.New("at least one admin id is required"))
	}
	if c.Defaults.ReferralBonus <= 0 || c.Defaults.DailyBonus <= 0 || c.Defaults.MinWithdrawal <= 0 {
		errs = append(errs, errors.New("default amounts must be positive"))
	}
	if c.SignupBonus < 0 {
		errs = append(errs, errors.New("signup_bonus must not be negative"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// IsAdmin checks if the account id is in the admins list
func (c *Config) IsAdmin(id int64) bool {
	return slices.Contains(c.Admins, id)
}

// Location returns the timezone that defines a bonus calendar day
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ProgramDefaults converts Defaults to the seed program config
func (c *Config) ProgramDefaults() models.ProgramConfig {
	return models.ProgramConfig{
		ID:               models.ProgramConfigID,
		ReferralBonus:    c.Defaults.ReferralBonus,
		DailyBonus:       c.Defaults.DailyBonus,
		MinWithdrawal:    c.Defaults.MinWithdrawal,
		RequiredChannels: []string{},
	}
}
