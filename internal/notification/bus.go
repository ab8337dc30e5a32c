package notification

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/safe-mobile/safe-push/internal/logger"
	"github.com/safe-mobile/safe-push/pkg/address"
	"github.com/safe-mobile/safe-push/pkg/types"
)

// EventType names an application event
type EventType string

const (
	EventSafeSelected          EventType = "safe_selected"
	EventConfirmationRequested EventType = "confirmation_requested"
	EventIncomingTransaction   EventType = "incoming_transaction"
	EventQueuedTransaction     EventType = "queued_transaction"
	EventClearDelivered        EventType = "clear_delivered"
	EventTrackingChanged       EventType = "tracking_changed"
)

// Event is published on the Bus
type Event struct {
	Type       EventType
	Safe       address.Address
	SafeTxHash common.Hash
	Tracking   types.TrackingState
}

// Bus delivers events to every subscriber. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a function that cancels the
// subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to current subscribers
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logger.Warn(context.Background(), "dropping event for slow subscriber", "subscriber", id, "event", ev.Type)
		}
	}
}
