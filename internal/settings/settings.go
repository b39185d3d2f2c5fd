// Package settings manages the admin-editable program config singleton.
package settings

import (
	"context"
	"strconv"
	"strings"

	"referral-bot/db"
	"referral-bot/internal/apperr"
	"referral-bot/models"
)

// Service reads and edits the program config
type Service struct {
	store    db.ConfigStore
	defaults models.ProgramConfig
}

func New(store db.ConfigStore, defaults models.ProgramConfig) *Service {
	return &Service{store: store, defaults: defaults}
}

// Get returns the current config, creating it from the defaults on first use
func (s *Service) Get(ctx context.Context) (*models.ProgramConfig, error) {
	return s.store.ProgramConfig(ctx, s.defaults)
}

// SetAmount parses raw as a positive integer and stores it in field
func (s *Service) SetAmount(ctx context.Context, field models.ConfigField, raw string) (*models.ProgramConfig, error) {
	if !field.Valid() {
		return nil, apperr.Validation("Unknown setting %q.", field)
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || value <= 0 {
		return nil, apperr.Validation("Please enter a positive whole number.")
	}

	if _, err := s.Get(ctx); err != nil {
		return nil, err
	}
	return s.store.SetConfigAmount(ctx, field, value)
}

// AddChannel adds a required channel given as @name
func (s *Service) AddChannel(ctx context.Context, raw string) (string, error) {
	channel, err := NormalizeChannel(raw)
	if err != nil {
		return "", err
	}
	if _, err := s.Get(ctx); err != nil {
		return "", err
	}

	added, err := s.store.AddRequiredChannel(ctx, channel)
	if err != nil {
		return "", err
	}
	if !added {
		return "", apperr.Validation("Channel %s already exists.", channel)
	}
	return channel, nil
}

// RemoveChannel removes a required channel given as @name
func (s *Service) RemoveChannel(ctx context.Context, raw string) (string, error) {
	channel, err := NormalizeChannel(raw)
	if err != nil {
		return "", err
	}

	removed, err := s.store.RemoveRequiredChannel(ctx, channel)
	if err != nil {
		return "", err
	}
	if !removed {
		return "", apperr.Validation("Channel %s is not in the list.", channel)
	}
	return channel, nil
}

// NormalizeChannel trims raw and checks that it looks like @name
func NormalizeChannel(raw string) (string, error) {
	channel := strings.TrimSpace(raw)
	if !strings.HasPrefix(channel, "@") || len(channel) < 2 || strings.ContainsAny(channel, " \t\n/") {
		return "", apperr.Validation("Channel name must start with @, for example @mychannel.")
	}
	return channel, nil
}

// ChannelURL returns the public link of a @name channel
func ChannelURL(channel string) string {
	return "https://t.me/" + strings.TrimPrefix(channel, "@")
}
