package replicator

import (
	"context"
	"sync"
)

// Transport, replica'lar arası mesaj taşıma katmanı.
//
// Publish fire-and-forget'tir; teslim garantisi yoktur. Subscribe
// handler'ı transport'un kendi goroutine'inde çağrılır.
type Transport interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context, handler func(Message)) error
	Close() error
}

// LocalBus, aynı process içindeki replica'ları birbirine bağlayan in-memory bus.
// Her replica bus'tan ayrı bir endpoint alır (Endpoint).
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[int]func(Message)
	nextID   int
}

// NewLocalBus, boş bir bus oluşturur.
func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[int]func(Message))}
}

// Endpoint, bus'a bağlı yeni bir Transport döner.
func (b *LocalBus) Endpoint() Transport {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	return &localEndpoint{bus: b, id: b.nextID}
}

func (b *LocalBus) deliver(msg Message) {
	b.mu.RLock()
	handlers := make([]func(Message), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	// Handler'lar lock dışında çağrılır; handler içinden Publish deadlock'a girmesin.
	for _, h := range handlers {
		h(msg)
	}
}

type localEndpoint struct {
	bus *LocalBus
	id  int
}

func (e *localEndpoint) Publish(_ context.Context, msg Message) error {
	e.bus.deliver(msg)
	return nil
}

func (e *localEndpoint) Subscribe(_ context.Context, handler func(Message)) error {
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	e.bus.handlers[e.id] = handler
	return nil
}

func (e *localEndpoint) Close() error {
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	delete(e.bus.handlers, e.id)
	return nil
}

// Noop, replikasyonsuz (tek instance) mod için transport.
type Noop struct{}

func (Noop) Publish(context.Context, Message) error        { return nil }
func (Noop) Subscribe(context.Context, func(Message)) error { return nil }
func (Noop) Close() error                                   { return nil }
