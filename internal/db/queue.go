package db

import (
	"database/sql"
	"time"
)

// Queue serializes all database access through a single worker goroutine.
// SQLite tolerates one writer at a time; funneling every repository call
// through here keeps per-user writes applied in the order they were issued.
type Queue struct {
	tasks      chan task
	db         *sql.DB
	maxRetry   int
	retryDelay time.Duration
}

type task struct {
	exec func(*sql.DB) (interface{}, error)
	resp chan result
}

type result struct {
	data interface{}
	err  error
}

func NewQueue(db *sql.DB) *Queue {
	return newQueue(db, 100*time.Millisecond)
}

// NewQueueForTest uses a minimal retry delay.
func NewQueueForTest(db *sql.DB) *Queue {
	return newQueue(db, time.Millisecond)
}

func newQueue(db *sql.DB, retryDelay time.Duration) *Queue {
	q := &Queue{
		tasks:      make(chan task, 100),
		db:         db,
		maxRetry:   3,
		retryDelay: retryDelay,
	}
	go q.worker()
	return q
}

// Execute runs fn on the queue's worker and blocks until it finishes.
// Transient failures (busy database) are retried with linear backoff.
func (q *Queue) Execute(fn func(*sql.DB) (interface{}, error)) (interface{}, error) {
	resp := make(chan result, 1)
	q.tasks <- task{exec: fn, resp: resp}
	r := <-resp
	return r.data, r.err
}

func (q *Queue) worker() {
	for t := range q.tasks {
		t.resp <- q.runWithRetry(t)
	}
}

func (q *Queue) runWithRetry(t task) result {
	var lastErr error
	for attempt := 0; attempt < q.maxRetry; attempt++ {
		data, err := t.exec(q.db)
		if err == nil {
			return result{data: data}
		}
		lastErr = err
		if attempt < q.maxRetry-1 {
			time.Sleep(time.Duration(attempt+1) * q.retryDelay)
		}
	}
	return result{err: lastErr}
}

func (q *Queue) Close() {
	close(q.tasks)
}

func (q *Queue) DB() *sql.DB {
	return q.db
}
