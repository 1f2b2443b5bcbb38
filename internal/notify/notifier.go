// Package notify provides fire-and-forget event broadcast after indexing.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opexhub/ledgerfind/internal/models"
)

// Event types.
const (
	EventRecordIndexed   = "record_indexed"
	EventRecordReindexed = "record_reindexed"
)

// Event is a single index notification.
type Event struct {
	ID       string      `json:"id"`
	Type     string      `json:"type"`
	Kind     models.Kind `json:"kind"`
	RecordID int64       `json:"record_id"`
	At       time.Time   `json:"at"`
}

// Notifier receives events emitted after a record is indexed. Emission is
// decoupled from the indexing transaction: a failed or dropped delivery must
// never fail or roll back indexing.
type Notifier interface {
	Publish(ev Event)
}

// Broadcaster fans events out to subscribers over buffered channels. Sends
// are non-blocking: when a subscriber's buffer is full the event is dropped
// for that subscriber, so a slow consumer can never stall indexing.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]chan Event
	logger *zap.Logger
}

// NewBroadcaster creates a broadcaster. logger may be nil.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[string]chan Event),
		logger: logger,
	}
}

// Subscribe registers a subscriber with the given buffer size and returns its
// ID and event channel.
func (b *Broadcaster) Subscribe(buffer int) (string, <-chan Event) {
	if buffer <= 0 {
		buffer = 16
	}
	id := uuid.New().String()
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers ev to every subscriber that has buffer space. An event ID
// is assigned when absent.
func (b *Broadcaster) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			if b.logger != nil {
				b.logger.Debug("dropping event for slow subscriber",
					zap.String("subscriber", id), zap.String("event", ev.ID))
			}
		}
	}
}
