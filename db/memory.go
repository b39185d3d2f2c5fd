package db

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"referral-bot/internal/apperr"
	"referral-bot/models"
)

// MemoryStore keeps everything in process memory. It applies the same
// guards as MongoStore and is used for local runs and tests.
type MemoryStore struct {
	mu          sync.Mutex
	users       map[int64]*models.User
	config      *models.ProgramConfig
	withdrawals map[string]*models.Withdrawal
	payments    []*models.Payment
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[int64]*models.User),
		withdrawals: make(map[string]*models.Withdrawal),
	}
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	cp.ReferredUsers = slices.Clone(u.ReferredUsers)
	cp.AppliedWithdrawals = slices.Clone(u.AppliedWithdrawals)
	if u.ReferredBy != nil {
		ref := *u.ReferredBy
		cp.ReferredBy = &ref
	}
	if u.LastBonusAt != nil {
		t := *u.LastBonusAt
		cp.LastBonusAt = &t
	}
	if u.LastWithdrawalRequest != nil {
		t := *u.LastWithdrawalRequest
		cp.LastWithdrawalRequest = &t
	}
	return &cp
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) InsertUserIfAbsent(_ context.Context, user *models.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return false, nil
	}
	s.users[user.ID] = cloneUser(user)
	return true, nil
}

func (s *MemoryStore) ClaimDailyBonus(_ context.Context, id, amount int64, dayStart, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if u.LastBonusAt != nil && !u.LastBonusAt.Before(dayStart) {
		return nil, apperr.ErrAlreadyClaimedToday
	}
	u.Balance += amount
	stamp := now
	u.LastBonusAt = &stamp
	return cloneUser(u), nil
}

func (s *MemoryStore) TakeSignupBonus(_ context.Context, id, amount int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false, apperr.ErrNotFound
	}
	if u.ReferralBonusTaken {
		return false, nil
	}
	u.ReferralBonusTaken = true
	u.Balance += amount
	return true, nil
}

func (s *MemoryStore) CreditReferral(_ context.Context, referrerID, newUserID, amount int64) (*models.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[referrerID]
	if !ok {
		return nil, false, apperr.ErrNotFound
	}
	if u.HasReferred(newUserID) {
		return cloneUser(u), false, nil
	}
	u.Balance += amount
	u.ReferralCount++
	u.ReferredUsers = append(u.ReferredUsers, newUserID)
	return cloneUser(u), true, nil
}

func (s *MemoryStore) DebitForWithdrawal(_ context.Context, id int64, requestID string, amount int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if u.HasApplied(requestID) {
		return cloneUser(u), nil
	}
	if u.Balance < amount {
		return nil, apperr.ErrInsufficientBalance
	}
	u.Balance -= amount
	u.AppliedWithdrawals = append(u.AppliedWithdrawals, requestID)
	return cloneUser(u), nil
}

func (s *MemoryStore) SetPayoutDetails(_ context.Context, id int64, cardNumber, fullName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperr.ErrNotFound
	}
	u.CardNumber = cardNumber
	u.FullName = fullName
	return nil
}

func (s *MemoryStore) TouchWithdrawalRequest(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperr.ErrNotFound
	}
	u.LastWithdrawalRequest = &at
	return nil
}

func (s *MemoryStore) UserIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) CountUsers(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

func (s *MemoryStore) ProgramConfig(_ context.Context, defaults models.ProgramConfig) (*models.ProgramConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config == nil {
		cfg := defaults.Clone()
		cfg.ID = models.ProgramConfigID
		if cfg.RequiredChannels == nil {
			cfg.RequiredChannels = []string{}
		}
		s.config = cfg
	}
	return s.config.Clone(), nil
}

func (s *MemoryStore) SetConfigAmount(_ context.Context, field models.ConfigField, value int64) (*models.ProgramConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config == nil {
		return nil, apperr.ErrNotFound
	}
	s.config.SetAmount(field, value)
	return s.config.Clone(), nil
}

func (s *MemoryStore) AddRequiredChannel(_ context.Context, channel string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config == nil {
		return false, apperr.ErrNotFound
	}
	if s.config.HasChannel(channel) {
		return false, nil
	}
	s.config.RequiredChannels = append(s.config.RequiredChannels, channel)
	return true, nil
}

func (s *MemoryStore) RemoveRequiredChannel(_ context.Context, channel string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config == nil || !s.config.HasChannel(channel) {
		return false, nil
	}
	s.config.RequiredChannels = slices.DeleteFunc(s.config.RequiredChannels, func(c string) bool { return c == channel })
	return true, nil
}

func (s *MemoryStore) CreateWithdrawal(_ context.Context, w *models.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *w
	s.withdrawals[w.ID] = &cp
	return nil
}

func (s *MemoryStore) GetWithdrawal(_ context.Context, id string) (*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *MemoryStore) TransitionWithdrawal(_ context.Context, id string, from, to models.WithdrawalStatus, by int64, at time.Time) (*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if w.Status != from {
		return nil, apperr.ErrRequestConsumed
	}
	w.Status = to
	w.DecidedBy = by
	w.DecidedAt = &at
	cp := *w
	return &cp, nil
}

func (s *MemoryStore) CountWithdrawals(_ context.Context, status models.WithdrawalStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, w := range s.withdrawals {
		if w.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SavePayment(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.payments = append(s.payments, &cp)
	return nil
}

// Payments returns the stored payment evidence records
func (s *MemoryStore) Payments() []models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, *p)
	}
	return out
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}
