// Package worker runs background memory extraction off a bounded pool.
// There is no job-queue library, and no semaphore package, anywhere in
// the example corpus this project draws from - the closest precedent is
// a bare `go func(...) { ... }()` fire-and-forget goroutine with no
// bound at all - so the pool is hand-rolled from channels and goroutines,
// using a buffered channel as a counting semaphore for the concurrency
// bound this package adds on top of that pattern.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of background work, scoped to a conversation so the
// pool can preserve per-conversation order.
type Task struct {
	ConversationID string
	Importance     float64
	Run            func(ctx context.Context)
}

// conversationQueue is a small FIFO with watermark-bounded capacity: once
// full, the lowest-importance queued task is evicted to make room for a
// higher-importance arrival, otherwise the arrival itself is dropped.
type conversationQueue struct {
	mu    sync.Mutex
	tasks []Task
}

func (q *conversationQueue) push(t Task, watermark int) (evicted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) < watermark {
		q.tasks = append(q.tasks, t)
		return false
	}

	lowest := 0
	for i, qt := range q.tasks {
		if qt.Importance < q.tasks[lowest].Importance {
			lowest = i
		}
	}
	if q.tasks[lowest].Importance < t.Importance {
		q.tasks = append(q.tasks[:lowest], q.tasks[lowest+1:]...)
		q.tasks = append(q.tasks, t)
		return true
	}
	return true
}

func (q *conversationQueue) pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return Task{}, false
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	return t, true
}

// Pool bounds background work across all conversations while guaranteeing
// FIFO delivery within any single conversation: extraction for message N
// completes before extraction for message N+1 of the same conversation.
type Pool struct {
	mu        sync.Mutex
	queues    map[string]*conversationQueue
	active    map[string]bool
	sem       chan struct{}
	watermark int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewPool builds a pool with size concurrent workers and a per-conversation
// queue watermark. size defaults to 8, watermark to 256, matching the
// documented defaults.
func NewPool(size, watermark int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 8
	}
	if watermark <= 0 {
		watermark = 256
	}
	return &Pool{
		queues:    make(map[string]*conversationQueue),
		active:    make(map[string]bool),
		sem:       make(chan struct{}, size),
		watermark: watermark,
		timeout:   30 * time.Second,
		logger:    logger,
	}
}

// Submit enqueues a task for background execution. It never blocks the
// caller: a full per-conversation queue evicts its lowest-importance
// member instead of applying backpressure to Submit itself.
func (p *Pool) Submit(t Task) {
	p.mu.Lock()
	q, ok := p.queues[t.ConversationID]
	if !ok {
		q = &conversationQueue{}
		p.queues[t.ConversationID] = q
	}
	p.mu.Unlock()

	if evicted := q.push(t, p.watermark); evicted && p.logger != nil {
		p.logger.Warn("memory extraction queue at watermark, evicted lowest-importance task",
			zap.String("conversation_id", t.ConversationID))
	}
	p.ensureDrainer(t.ConversationID, q)
}

// ensureDrainer starts exactly one goroutine per conversation to pop and
// run its queued tasks in order; it exits once the queue empties and is
// restarted lazily by the next Submit.
func (p *Pool) ensureDrainer(conversationID string, q *conversationQueue) {
	p.mu.Lock()
	if p.active[conversationID] {
		p.mu.Unlock()
		return
	}
	p.active[conversationID] = true
	p.mu.Unlock()

	go func() {
		for {
			t, ok := q.pop()
			if !ok {
				p.mu.Lock()
				// Re-check under the lock: a concurrent Submit may have
				// pushed a task between our pop() miss and taking this
				// lock to retire the drainer.
				if t2, ok2 := q.pop(); ok2 {
					p.mu.Unlock()
					t, ok = t2, true
				} else {
					delete(p.active, conversationID)
					p.mu.Unlock()
					return
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			select {
			case p.sem <- struct{}{}:
			case <-ctx.Done():
				cancel()
				continue
			}
			t.Run(ctx)
			<-p.sem
			cancel()
		}
	}()
}
