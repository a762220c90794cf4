package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BlackHan26/taskboard/task"
)

// InMemoryBus is a thread-safe in-process notification sink. It implements
// Notifier, keeps a capped per-process history so the API can serve each
// user's inbox, and pushes to any live subscribers (the SSE stream).
type InMemoryBus struct {
	now task.Clock

	mu       sync.RWMutex
	handlers map[string][]handlerEntry // userID -> handlers
	history  []*Message
	maxHist  int
	nextID   int
}

type handlerEntry struct {
	id      int
	handler Handler
}

// NewInMemoryBus creates an InMemoryBus with a 1000-message history cap.
// clock may be nil, defaulting to time.Now.
func NewInMemoryBus(clock task.Clock) *InMemoryBus {
	if clock == nil {
		clock = time.Now
	}
	return &InMemoryBus{
		now:      clock,
		handlers: make(map[string][]handlerEntry),
		maxHist:  1000,
	}
}

// Notify records a message for userID and invokes any subscribed handlers.
// Handler errors are swallowed; the message is already in the inbox by the
// time handlers run.
func (b *InMemoryBus) Notify(ctx context.Context, userID, content string) error {
	msg := &Message{
		ID:        uuid.New().String(),
		UserID:    userID,
		Content:   content,
		CreatedAt: b.now().UTC(),
	}

	b.mu.Lock()
	b.history = append(b.history, msg)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}
	var targets []Handler
	for _, e := range b.handlers[userID] {
		targets = append(targets, e.handler)
	}
	b.mu.Unlock()

	for _, h := range targets {
		_ = h(ctx, msg)
	}
	return nil
}

// Subscribe registers a handler for messages addressed to userID.
// The returned function unsubscribes the handler.
func (b *InMemoryBus) Subscribe(userID string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[userID] = append(b.handlers[userID], handlerEntry{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[userID]
		filtered := entries[:0]
		for _, e := range entries {
			if e.id != id {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) == 0 {
			delete(b.handlers, userID)
		} else {
			b.handlers[userID] = filtered
		}
	}
}

// Inbox returns the most recent limit messages for userID, oldest first.
func (b *InMemoryBus) Inbox(userID string, limit int) ([]*Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []*Message
	for i := len(b.history) - 1; i >= 0; i-- {
		m := b.history[i]
		if m.UserID == userID {
			result = append(result, m)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	// Reverse to chronological order
	for l, r := 0, len(result)-1; l < r; l, r = l+1, r-1 {
		result[l], result[r] = result[r], result[l]
	}
	return result, nil
}
