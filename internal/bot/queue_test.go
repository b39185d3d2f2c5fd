package bot

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueueKeepsPerUserOrder(t *testing.T) {
	q := newUserQueue()

	var mu sync.Mutex
	seen := map[int64][]int{}
	for i := 0; i < 50; i++ {
		for _, user := range []int64{1, 2, 3} {
			i, user := i, user
			q.Push(user, func() {
				if i%7 == 0 {
					time.Sleep(time.Millisecond)
				}
				mu.Lock()
				seen[user] = append(seen[user], i)
				mu.Unlock()
			})
		}
	}
	q.Wait()

	for _, user := range []int64{1, 2, 3} {
		assert.Len(t, seen[user], 50)
		for i, v := range seen[user] {
			assert.Equal(t, i, v, "user %d out of order", user)
		}
	}
	assert.Empty(t, q.jobs, "idle workers release their slot")
}

func TestQueueRunsUsersInParallel(t *testing.T) {
	q := newUserQueue()
	release := make(chan struct{})
	done := make(chan struct{})

	q.Push(1, func() { <-release })
	q.Push(2, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("user 2 was blocked behind user 1")
	}
	close(release)
	q.Wait()
}
