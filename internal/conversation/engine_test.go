package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-bot/db"
	"referral-bot/internal/apperr"
	"referral-bot/internal/logging"
	"referral-bot/internal/transport/transporttest"
	"referral-bot/models"
)

var _ StateStore = (*db.DialogStore)(nil)

// newEngine registers a two step dialog: a name, then a positive number
func newEngine(t *testing.T, store StateStore) (*Engine, *transporttest.Fake) {
	t.Helper()
	fake := transporttest.New()
	e := NewEngine(store, fake, 30*time.Minute, logging.Discard())

	e.Register(StepFullName, func(_ context.Context, _ *models.DialogState, in Input) (Result, error) {
		if in.Text == "" {
			return Result{}, apperr.Validation("Name is required.")
		}
		return Result{Next: StepAmount, Data: map[string]string{"name": in.Text}, Reply: "amount?"}, nil
	})
	e.Register(StepAmount, func(_ context.Context, state *models.DialogState, in Input) (Result, error) {
		n, err := strconv.Atoi(in.Text)
		if err != nil || n <= 0 {
			return Result{}, apperr.Validation("Amount must be a positive number.")
		}
		if n == 13 {
			return Result{}, errors.New("store down")
		}
		return Result{Reply: "done " + state.Value("name") + " " + in.Text}, nil
	})
	return e, fake
}

func TestDialogAdvancesAndFinishes(t *testing.T) {
	ctx := context.Background()
	e, fake := newEngine(t, NewMemoryStore())

	handled, err := e.Handle(ctx, 1, Input{Text: "hello"})
	require.NoError(t, err)
	assert.False(t, handled, "idle users are not captured")

	require.NoError(t, e.Begin(ctx, 1, StepFullName, nil, "name?", nil))
	last, _ := fake.Last(1)
	assert.Equal(t, "name?", last.Text)

	handled, err = e.Handle(ctx, 1, Input{Text: "Alice"})
	require.NoError(t, err)
	assert.True(t, handled)

	state, err := e.Pending(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, StepAmount, state.Step)
	assert.Equal(t, "Alice", state.Value("name"))

	handled, err = e.Handle(ctx, 1, Input{Text: "500"})
	require.NoError(t, err)
	assert.True(t, handled)
	last, _ = fake.Last(1)
	assert.Equal(t, "done Alice 500", last.Text)

	state, err = e.Pending(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestValidationFailureReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	e, fake := newEngine(t, NewMemoryStore())

	require.NoError(t, e.Begin(ctx, 1, StepAmount, map[string]string{"name": "A"}, "", nil))
	handled, err := e.Handle(ctx, 1, Input{Text: "abc"})
	require.NoError(t, err)
	assert.True(t, handled)

	last, ok := fake.Last(1)
	require.True(t, ok)
	assert.Contains(t, last.Text, "positive number")
	assert.Contains(t, last.Text, restartHint)

	state, err := e.Pending(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, state, "a failed step requires a restart")

	handled, err = e.Handle(ctx, 1, Input{Text: "500"})
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestInternalFailureShowsGenericMessage(t *testing.T) {
	ctx := context.Background()
	e, fake := newEngine(t, NewMemoryStore())

	require.NoError(t, e.Begin(ctx, 1, StepAmount, nil, "", nil))
	_, err := e.Handle(ctx, 1, Input{Text: "13"})
	require.NoError(t, err)

	last, _ := fake.Last(1)
	assert.Equal(t, genericFailure, last.Text)
	state, _ := e.Pending(ctx, 1)
	assert.Nil(t, state)
}

func TestBeginReplacesPendingDialog(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, NewMemoryStore())

	require.NoError(t, e.Begin(ctx, 1, StepFullName, nil, "", nil))
	_, err := e.Handle(ctx, 1, Input{Text: "Alice"})
	require.NoError(t, err)

	require.NoError(t, e.Begin(ctx, 1, StepFullName, nil, "", nil))
	state, err := e.Pending(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StepFullName, state.Step)
	assert.Empty(t, state.Value("name"), "replaced dialog starts clean")

	assert.Error(t, e.Begin(ctx, 1, "nope", nil, "", nil))
}

func TestDialogsAreKeyedPerUser(t *testing.T) {
	ctx := context.Background()
	e, fake := newEngine(t, NewMemoryStore())

	require.NoError(t, e.Begin(ctx, 1, StepFullName, nil, "", nil))
	require.NoError(t, e.Begin(ctx, 2, StepFullName, nil, "", nil))

	var wg sync.WaitGroup
	for _, id := range []int64{1, 2} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			name := "user" + strconv.FormatInt(id, 10)
			_, _ = e.Handle(ctx, id, Input{Text: name})
			_, _ = e.Handle(ctx, id, Input{Text: "7"})
		}(id)
	}
	wg.Wait()

	last1, _ := fake.Last(1)
	last2, _ := fake.Last(2)
	assert.Equal(t, "done user1 7", last1.Text)
	assert.Equal(t, "done user2 7", last2.Text)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	e, fake := newEngine(t, NewMemoryStore())

	cancelled, err := e.Cancel(ctx, 1, true)
	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Empty(t, fake.To(1))

	require.NoError(t, e.Begin(ctx, 1, StepFullName, nil, "", nil))
	cancelled, err = e.Cancel(ctx, 1, true)
	require.NoError(t, err)
	assert.True(t, cancelled)
	last, _ := fake.Last(1)
	assert.Equal(t, cancelledText, last.Text)

	handled, err := e.Handle(ctx, 1, Input{Text: "Alice"})
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestExpiredDialogIsIdle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	e, _ := newEngine(t, store)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	require.NoError(t, e.Begin(ctx, 1, StepFullName, nil, "", nil))
	require.NoError(t, e.Begin(ctx, 2, StepFullName, nil, "", nil))
	now = now.Add(31 * time.Minute)

	handled, err := e.Handle(ctx, 1, Input{Text: "Alice"})
	require.NoError(t, err)
	assert.False(t, handled)

	n, err := e.Purge(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSQLiteStateStore(t *testing.T) {
	ctx := context.Background()
	store, err := db.NewDialogStore(filepath.Join(t.TempDir(), "dialogs.db"))
	require.NoError(t, err)
	defer store.Close()

	e, _ := newEngine(t, store)
	require.NoError(t, e.Begin(ctx, 1, StepFullName, nil, "", nil))
	_, err = e.Handle(ctx, 1, Input{Text: "Alice"})
	require.NoError(t, err)

	// a second engine over the same file sees the dialog, as after a restart
	e2, fake2 := newEngine(t, store)
	handled, err := e2.Handle(ctx, 1, Input{Text: "9"})
	require.NoError(t, err)
	assert.True(t, handled)
	last, _ := fake2.Last(1)
	assert.Equal(t, "done Alice 9", last.Text)
}
