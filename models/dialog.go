package models

import "time"

// DialogState is the pending step of a user's multi-step dialog
type DialogState struct {
	UserID    int64             `json:"user_id"`
	Step      string            `json:"step"`
	Data      map[string]string `json:"data,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Value returns a collected field or an empty string
func (s *DialogState) Value(key string) string {
	if s.Data == nil {
		return ""
	}
	return s.Data[key]
}
