package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-bot/db"
	"referral-bot/internal/logging"
	"referral-bot/internal/transport/transporttest"
	"referral-bot/models"
)

func seed(t *testing.T, ids ...int64) *db.MemoryStore {
	t.Helper()
	store := db.NewMemoryStore()
	for _, id := range ids {
		_, err := store.InsertUserIfAbsent(context.Background(), &models.User{ID: id})
		require.NoError(t, err)
	}
	return store
}

func TestFailuresDoNotAbort(t *testing.T) {
	store := seed(t, 1, 2, 3, 4)
	fake := transporttest.New()
	fake.Unreachable[2] = true
	fake.Unreachable[3] = true

	report, err := New(store, fake, 0, logging.Discard(), nil).Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, Report{Total: 4, Sent: 2, Failed: 2}, report)

	assert.Len(t, fake.To(1), 1)
	assert.Len(t, fake.To(4), 1)
	assert.Empty(t, fake.To(2))
}

func TestPacing(t *testing.T) {
	store := seed(t, 1, 2, 3)
	fake := transporttest.New()

	start := time.Now()
	report, err := New(store, fake, 20, logging.Discard(), nil).Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Sent)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestCancelledContextStops(t *testing.T) {
	store := seed(t, 1, 2, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(store, transporttest.New(), 1, logging.Discard(), nil).Send(ctx, "hi")
	assert.Error(t, err)
	assert.Equal(t, 0, report.Sent)
}
