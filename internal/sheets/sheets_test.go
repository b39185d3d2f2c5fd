package sheets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-bot/models"
)

func TestPayoutRow(t *testing.T) {
	created := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
	decided := created.Add(time.Hour)
	w := &models.Withdrawal{
		ID:         "abc",
		UserID:     7,
		Amount:     10000,
		CardNumber: "4111111111111234",
		FullName:   "Kate Smith",
		CreatedAt:  created,
		DecidedAt:  &decided,
	}

	row := payoutRow(w, 900)
	assert.Equal(t, []interface{}{
		"abc", int64(7), int64(10000), "************1234", "Kate Smith",
		"2026-04-02 10:30:00", "2026-04-02 11:30:00", int64(900),
	}, row)
}

func TestMaskCard(t *testing.T) {
	assert.Equal(t, "", maskCard(""))
	assert.Equal(t, "123", maskCard("123"))
	assert.Equal(t, "**3456", maskCard("123456"))
}

func TestNewPayoutLogNeedsSavedToken(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(creds, []byte(`{"installed":{
		"client_id":"id","client_secret":"secret",
		"auth_uri":"https://accounts.google.com/o/oauth2/auth",
		"token_uri":"https://oauth2.googleapis.com/token",
		"redirect_uris":["http://localhost"]}}`), 0o600))

	_, err := NewPayoutLog(context.Background(), creds, filepath.Join(dir, "token.json"), "sheet", "Payouts!A:H")
	assert.ErrorContains(t, err, "oauth token")

	_, err = NewPayoutLog(context.Background(), filepath.Join(dir, "missing.json"), "", "sheet", "Payouts!A:H")
	assert.ErrorContains(t, err, "credentials file")
}
