// Package sheets appends approved payouts to a Google Sheets audit log.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"referral-bot/models"
)

// PayoutLog writes one row per approved withdrawal
type PayoutLog struct {
	service       *sheets.Service
	spreadsheetID string
	writeRange    string
}

// NewPayoutLog authorizes with a service account key, or with an OAuth
// client secret plus a previously saved token
func NewPayoutLog(ctx context.Context, credentialsFile, tokenFile, spreadsheetID, writeRange string) (*PayoutLog, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	client, err := httpClient(ctx, b, tokenFile)
	if err != nil {
		return nil, err
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Sheets client: %w", err)
	}

	return &PayoutLog{service: srv, spreadsheetID: spreadsheetID, writeRange: writeRange}, nil
}

func httpClient(ctx context.Context, credentials []byte, tokenFile string) (*http.Client, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(credentials, &probe); err != nil {
		return nil, fmt.Errorf("unable to parse credentials file: %w", err)
	}

	if probe.Type == "service_account" {
		jwt, err := google.JWTConfigFromJSON(credentials, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		return jwt.Client(ctx), nil
	}

	config, err := google.ConfigFromJSON(credentials, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("unable to load oauth token from %s: %w", tokenFile, err)
	}
	return config.Client(ctx, tok), nil
}

// tokenFromFile loads a token saved by an earlier interactive authorization
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// RecordPayout appends the approved withdrawal
func (l *PayoutLog) RecordPayout(ctx context.Context, w *models.Withdrawal, adminID int64) error {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{payoutRow(w, adminID)},
	}

	_, err := l.service.Spreadsheets.Values.Append(l.spreadsheetID, l.writeRange, valueRange).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("unable to write data to sheet: %w", err)
	}
	return nil
}

// payoutRow columns: request id, user id, amount, card, name, requested at, approved at, admin id
func payoutRow(w *models.Withdrawal, adminID int64) []interface{} {
	const layout = "2006-01-02 15:04:05"
	approved := time.Now()
	if w.DecidedAt != nil {
		approved = *w.DecidedAt
	}
	return []interface{}{
		w.ID,
		w.UserID,
		w.Amount,
		maskCard(w.CardNumber),
		w.FullName,
		w.CreatedAt.Format(layout),
		approved.Format(layout),
		adminID,
	}
}

// maskCard keeps the last four digits
func maskCard(card string) string {
	if len(card) <= 4 {
		return card
	}
	masked := make([]byte, len(card))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(card)-4:], card[len(card)-4:])
	return string(masked)
}
