package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"bot_token": "123:abc",
		"admins": [1, 2],
		"dialog_ttl": "10m",
		"defaults": {"daily_bonus": 75}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.BotToken)
	assert.Equal(t, []int64{1, 2}, cfg.Admins)
	assert.Equal(t, 10*time.Minute, cfg.DialogTTL.Duration)
	assert.EqualValues(t, 75, cfg.Defaults.DailyBonus)
	assert.EqualValues(t, 100, cfg.Defaults.ReferralBonus, "unset defaults keep their values")
	assert.EqualValues(t, 10000, cfg.Defaults.MinWithdrawal)
	assert.True(t, cfg.IsAdmin(2))
	assert.False(t, cfg.IsAdmin(3))
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
bot_token = "123:abc"
admins = [7]
signup_bonus = 3000
timezone = "UTC"

[defaults]
min_withdrawal = 20000
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []int64{7}, cfg.Admins)
	assert.EqualValues(t, 3000, cfg.SignupBonus)
	assert.EqualValues(t, 20000, cfg.ProgramDefaults().MinWithdrawal)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BOT_TOKEN":    "from-env",
		"ADMINS":       " 10, 20 ,",
		"SIGNUP_BONUS": "500",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))

	assert.Equal(t, "from-env", cfg.BotToken)
	assert.Equal(t, []int64{10, 20}, cfg.Admins)
	assert.EqualValues(t, 500, cfg.SignupBonus)

	env["ADMINS"] = "10,abc"
	assert.Error(t, Default().ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot_token")
	assert.Contains(t, err.Error(), "admin")

	cfg.BotToken = "t"
	cfg.Admins = []int64{1}
	cfg.Defaults.DailyBonus = 0
	assert.ErrorContains(t, cfg.Validate(), "positive")

	cfg.Defaults.DailyBonus = 50
	cfg.Timezone = "Not/AZone"
	assert.ErrorContains(t, cfg.Validate(), "timezone")
}
