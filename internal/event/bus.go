// Package event provides the pub/sub bus the editor session publishes
// its lifecycle on, built on watermill.
package event

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Type identifies an editor event.
type Type string

const (
	DocumentOpened  Type = "document.opened"
	DocumentClosed  Type = "document.closed"
	EditorChange    Type = "editor.change"
	EditorScroll    Type = "editor.scroll"
	EditorSave      Type = "editor.save"
	FileRefreshed   Type = "file.refreshed"
	FileDiskChanged Type = "file.disk-changed"
	SessionReset    Type = "session.reset"
	AdvisoryShown   Type = "advisory.shown"
	AdvisoryHidden  Type = "advisory.hidden"
)

// Event is one published occurrence.
type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// DocumentData describes the document affected by an event.
type DocumentData struct {
	Path     string `json:"path"`
	Binary   bool   `json:"binary"`
	Editable bool   `json:"editable"`
}

// ChangeData is the payload of EditorChange.
type ChangeData struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ScrollData is the payload of EditorScroll.
type ScrollData struct {
	Path string `json:"path"`
	Top  int    `json:"top"`
	Left int    `json:"left"`
}

// RefreshData is the payload of FileRefreshed: the divergence repaired
// when a cached document was replaced with newer external content.
type RefreshData struct {
	Path      string `json:"path"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// Subscriber receives events.
type Subscriber func(e Event)

type subscription struct {
	id uint64
	fn Subscriber
}

// Bus is an in-process pub/sub bus. The watermill gochannel backs the
// delivery infrastructure; direct subscriber tracking preserves typed
// payloads for in-process consumers.
type Bus struct {
	mu          sync.RWMutex
	pubsub      *gochannel.GoChannel
	subscribers map[Type][]subscription
	global      []subscription
	nextID      uint64
	closed      bool
	cancel      context.CancelFunc
}

// NewBus creates a bus.
func NewBus() *Bus {
	_, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NopLogger{},
		),
		subscribers: make(map[Type][]subscription),
		cancel:      cancel,
	}
}

// Subscribe registers fn for one event type and returns its
// unsubscribe function.
func (b *Bus) Subscribe(t Type, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	id := atomic.AddUint64(&b.nextID, 1)
	b.subscribers[t] = append(b.subscribers[t], subscription{id: id, fn: fn})
	return func() { b.remove(t, id) }
}

// SubscribeAll registers fn for every event type.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	id := atomic.AddUint64(&b.nextID, 1)
	b.global = append(b.global, subscription{id: id, fn: fn})
	return func() { b.removeGlobal(id) }
}

func (b *Bus) remove(t Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[t]
	for i, s := range subs {
		if s.id == id {
			b.subscribers[t] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) removeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.global {
		if s.id == id {
			b.global = append(b.global[:i], b.global[i+1:]...)
			return
		}
	}
}

func (b *Bus) collect(t Type) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	subs := make([]Subscriber, 0, len(b.subscribers[t])+len(b.global))
	for _, s := range b.subscribers[t] {
		subs = append(subs, s.fn)
	}
	for _, s := range b.global {
		subs = append(subs, s.fn)
	}
	return subs
}

// Publish delivers e to every subscriber asynchronously.
func (b *Bus) Publish(e Event) {
	for _, fn := range b.collect(e.Type) {
		go fn(e)
	}
}

// PublishSync delivers e to every subscriber before returning. The
// save event uses this path: it must never sit behind a scheduler hop.
func (b *Bus) PublishSync(e Event) {
	for _, fn := range b.collect(e.Type) {
		fn(e)
	}
}

// Close shuts the bus down; later publishes are dropped.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.cancel()
	b.subscribers = make(map[Type][]subscription)
	b.global = nil
	return b.pubsub.Close()
}
