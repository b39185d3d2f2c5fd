package bot

import "sync"

// userQueue runs jobs in arrival order per user. Each user with queued
// jobs has one worker goroutine; different users run in parallel.
type userQueue struct {
	mu   sync.Mutex
	jobs map[int64][]func()
	wg   sync.WaitGroup
}

func newUserQueue() *userQueue {
	return &userQueue{jobs: make(map[int64][]func())}
}

// Push appends job to the user's queue, starting a worker if none runs
func (q *userQueue) Push(userID int64, job func()) {
	q.mu.Lock()
	pending, active := q.jobs[userID]
	q.jobs[userID] = append(pending, job)
	if !active {
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if !active {
		go q.drain(userID)
	}
}

func (q *userQueue) drain(userID int64) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		pending := q.jobs[userID]
		if len(pending) == 0 {
			// a key present in jobs means a worker owns it
			delete(q.jobs, userID)
			q.mu.Unlock()
			return
		}
		job := pending[0]
		q.jobs[userID] = pending[1:]
		q.mu.Unlock()

		job()
	}
}

// Wait blocks until every queued job has run
func (q *userQueue) Wait() {
	q.wg.Wait()
}
