package controller

import (
	"sync"

	"github.com/netmount/netmountd/pkg/mount"
)

type EventType string

const (
	// EventStateChanged fires whenever a bookmark's mount state, settings,
	// or failure tracking changes. Presenters re-render on it.
	EventStateChanged EventType = "bookmark.state"

	// EventListReloaded fires after the bookmark list has been reloaded
	// from the store.
	EventListReloaded EventType = "bookmarks.reloaded"
)

// Event describes a per-bookmark lifecycle change.
type Event struct {
	Type  EventType
	URI   string
	State mount.State
	Err   error
}

// Bus is an in-process publish/subscribe relay between the controller and
// its presenters. Handlers run synchronously on the emitting goroutine and
// must not block.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]func(Event)
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[EventType][]func(Event))}
}

func (b *Bus) On(t EventType, fn func(Event)) {
	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], fn)
	b.mu.Unlock()
}

func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	handlers := b.handlers[e.Type]
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(e)
	}
}
