// Package queue buffers user messages typed while a run is busy so the run
// can fold them into its next model call.
package queue

import (
	"strings"
	"sync"

	"agentcore/internal/agent/ports"
)

// Pending is a per-run FIFO of user messages, safe for concurrent use.
type Pending struct {
	mu    sync.Mutex
	items map[string][]string
}

var _ ports.PendingQueue = (*Pending)(nil)

// New returns an empty queue.
func New() *Pending {
	return &Pending{items: make(map[string][]string)}
}

// Enqueue appends a message for runID. Blank messages are dropped.
func (q *Pending) Enqueue(runID, message string) bool {
	if strings.TrimSpace(message) == "" {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[runID] = append(q.items[runID], message)
	return true
}

// Drain removes and returns every queued message for runID in arrival order.
func (q *Pending) Drain(runID string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items[runID]
	delete(q.items, runID)
	return items
}

// Peek returns a copy of the queued messages without removing them.
func (q *Pending) Peek(runID string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.items[runID]...)
}

// Clear drops every queued message for runID.
func (q *Pending) Clear(runID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.items, runID)
}
