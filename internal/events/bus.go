package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/j-94/waggle-dance/internal/dag"
	"github.com/j-94/waggle-dance/internal/packet"
)

// Sink receives packets as they are emitted. Implementations must return
// quickly and never block: dispatch units call their sink synchronously,
// which is what keeps per-node packet order intact.
type Sink func(node dag.Node, p packet.Packet)

// Envelope pairs a packet with the node it belongs to, so subscribers can
// render node names without holding the graph.
type Envelope struct {
	Node   dag.Node
	Packet packet.Packet
}

// Bus fans packets out to subscribers with optional filtering.
//
// Thread safety: all methods are safe for concurrent use. Publish never
// blocks on slow subscribers; a subscriber whose buffer is full loses the
// packet and other subscribers are unaffected.
type Bus interface {
	// Publish sends an envelope to all matching subscribers.
	// Returns an error only when the bus is closed.
	Publish(ctx context.Context, env Envelope) error

	// Subscribe creates a subscription. Pass Filter{} to receive everything
	// and bufferSize 0 for the default. The cleanup function must be called
	// to release the subscription.
	Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Envelope, func())

	// Close shuts the bus down and closes all subscriber channels.
	Close() error
}

// Filter selects which envelopes a subscriber receives. Zero-valued fields
// match everything.
type Filter struct {
	NodeIDs []string
	Kinds   []packet.Kind
}

// Matches reports whether env passes the filter.
func (f Filter) Matches(env Envelope) bool {
	if len(f.NodeIDs) > 0 {
		found := false
		for _, id := range f.NodeIDs {
			if env.Packet.NodeID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if env.Packet.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// DropHandler is called when a packet is dropped for a slow subscriber.
type DropHandler func(subscriberID string, env Envelope)

// PacketBus implements Bus with buffered channels and non-blocking sends.
type PacketBus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscription
	options     *busOptions
	closed      bool
}

type subscription struct {
	id       string
	ch       chan Envelope
	filter   Filter
	ctx      context.Context
	cancel   context.CancelFunc
	created  time.Time
	received atomic.Int64
	dropped  atomic.Int64
}

type busOptions struct {
	defaultBufferSize int
	dropHandler       DropHandler
}

// Option configures a PacketBus.
type Option func(*busOptions)

// WithDefaultBufferSize sets the buffer used when Subscribe is called with
// bufferSize 0. Default: 256 envelopes.
func WithDefaultBufferSize(size int) Option {
	return func(opts *busOptions) {
		if size > 0 {
			opts.defaultBufferSize = size
		}
	}
}

// WithDropHandler installs a callback for dropped envelopes.
func WithDropHandler(handler DropHandler) Option {
	return func(opts *busOptions) {
		if handler != nil {
			opts.dropHandler = handler
		}
	}
}

// NewBus creates a PacketBus.
func NewBus(opts ...Option) *PacketBus {
	options := &busOptions{
		defaultBufferSize: 256,
		dropHandler:       func(string, Envelope) {},
	}
	for _, opt := range opts {
		opt(options)
	}
	return &PacketBus{
		subscribers: make(map[string]*subscription),
		options:     options,
	}
}

// Sink adapts the bus into the emitter-facing Sink contract. Publish errors
// are swallowed: an emitter must not care whether anyone is listening.
func (b *PacketBus) Sink() Sink {
	return func(node dag.Node, p packet.Packet) {
		_ = b.Publish(context.Background(), Envelope{Node: node, Packet: p})
	}
}

// Publish sends env to every matching subscriber without blocking. A full
// subscriber buffer drops the envelope for that subscriber only.
func (b *PacketBus) Publish(ctx context.Context, env Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("packet bus is closed")
	}

	for _, sub := range b.subscribers {
		select {
		case <-sub.ctx.Done():
			continue
		default:
		}

		if !sub.filter.Matches(env) {
			continue
		}

		select {
		case sub.ch <- env:
			sub.received.Add(1)
		default:
			sub.dropped.Add(1)
			b.options.dropHandler(sub.id, env)
		}
	}
	return nil
}

// Subscribe registers a subscriber and returns its channel plus a cleanup
// function that must be called to release it.
func (b *PacketBus) Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Envelope, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bufferSize <= 0 {
		bufferSize = b.options.defaultBufferSize
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		id:      generateSubscriberID(),
		ch:      make(chan Envelope, bufferSize),
		filter:  filter,
		ctx:     subCtx,
		cancel:  cancel,
		created: time.Now(),
	}
	b.subscribers[sub.id] = sub

	cleanup := func() {
		b.unsubscribe(sub.id)
	}
	return sub.ch, cleanup
}

func (b *PacketBus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subscribers[id]
	if !exists {
		return
	}
	sub.cancel()
	close(sub.ch)
	delete(b.subscribers, id)
}

// Close shuts down the bus. Idempotent.
func (b *PacketBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for id, sub := range b.subscribers {
		sub.cancel()
		close(sub.ch)
		delete(b.subscribers, id)
	}
	return nil
}

// SubscriberCount returns the number of active subscriptions.
func (b *PacketBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

var subscriberCounter atomic.Uint64

func generateSubscriberID() string {
	return fmt.Sprintf("sub-%d-%d", time.Now().UnixNano(), subscriberCounter.Add(1))
}

// Ensure PacketBus implements Bus at compile time.
var _ Bus = (*PacketBus)(nil)
