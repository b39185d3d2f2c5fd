package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"referral-bot/models"
)

// DialogStore journals pending dialog steps in SQLite so a restart does
// not strand users halfway through a multi-step action
type DialogStore struct {
	*sql.DB
}

// NewDialogStore opens the SQLite database at dbPath and creates the table
func NewDialogStore(dbPath string) (*DialogStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	store := &DialogStore{db}
	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (db *DialogStore) initDB() error {
	query := `
	CREATE TABLE IF NOT EXISTS dialogs (
		user_id INTEGER PRIMARY KEY,
		step TEXT NOT NULL,
		data TEXT NOT NULL DEFAULT '{}',
		updated_at INTEGER NOT NULL
	);
	`

	_, err := db.Exec(query)
	return err
}

// Get returns the pending dialog of a user, or nil when there is none
func (db *DialogStore) Get(ctx context.Context, userID int64) (*models.DialogState, error) {
	query := `SELECT step, data, updated_at FROM dialogs WHERE user_id = ?`

	var (
		state   = models.DialogState{UserID: userID}
		raw     string
		updated int64
	)
	err := db.QueryRowContext(ctx, query, userID).Scan(&state.Step, &raw, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(raw), &state.Data); err != nil {
		return nil, fmt.Errorf("corrupt dialog data for user %d: %w", userID, err)
	}
	state.UpdatedAt = time.Unix(0, updated)
	return &state, nil
}

// Put saves or replaces the pending dialog of a user
func (db *DialogStore) Put(ctx context.Context, state *models.DialogState) error {
	query := `
	INSERT INTO dialogs (user_id, step, data, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		step = excluded.step,
		data = excluded.data,
		updated_at = excluded.updated_at
	`

	data := state.Data
	if data == nil {
		data = map[string]string{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, state.UserID, state.Step, string(raw), state.UpdatedAt.UnixNano())
	return err
}

// Delete removes the pending dialog of a user
func (db *DialogStore) Delete(ctx context.Context, userID int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM dialogs WHERE user_id = ?`, userID)
	return err
}

// PurgeOlderThan removes dialogs last touched before cutoff
func (db *DialogStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM dialogs WHERE updated_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
