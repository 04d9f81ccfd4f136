// Package hub relays document events between the connections of a room and
// tracks who is present. It keeps a server copy of every open document so
// it can be persisted and handed to joining or reconnecting clients.
//
// The hub is a relay, not a sequencer: mutations are forwarded in the order
// the run loop receives them and concurrent edits from different clients
// are not reconciled.
package hub

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sheetsync/internal/identity"
	"sheetsync/internal/protocol"
	"sheetsync/internal/store"
)

var (
	ErrAccessDenied = errors.New("access denied")
	ErrDocumentOpen = errors.New("document is open")
	ErrStopped      = errors.New("hub stopped")
)

const (
	DefaultRows = 100
	DefaultCols = 26

	saveTimeout = 5 * time.Second
)

type inbound struct {
	client *Client
	msg    protocol.Message
}

// Hub owns every room. All room state is mutated by the Run goroutine only.
type Hub struct {
	// rooms is written by the run loop; mu lets other goroutines read it.
	mu    sync.RWMutex
	rooms map[string]*Room

	inbound    chan inbound
	unregister chan *Client
	sweep      chan time.Duration
	done       chan struct{}

	log    zerolog.Logger
	store  store.Store
	access identity.AccessChecker
	rows   int
	cols   int
	now    func() time.Time
	ctx    context.Context
}

type Option func(*Hub)

func WithLogger(log zerolog.Logger) Option {
	return func(h *Hub) { h.log = log }
}

func WithStore(s store.Store) Option {
	return func(h *Hub) { h.store = s }
}

func WithAccessChecker(a identity.AccessChecker) Option {
	return func(h *Hub) { h.access = a }
}

// WithDimensions sets the size of documents created on first join.
func WithDimensions(rows, cols int) Option {
	return func(h *Hub) {
		h.rows = rows
		h.cols = cols
	}
}

// WithClock replaces time.Now for presence bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

func New(opts ...Option) *Hub {
	h := &Hub{
		rooms:      make(map[string]*Room),
		inbound:    make(chan inbound),
		unregister: make(chan *Client),
		sweep:      make(chan time.Duration),
		done:       make(chan struct{}),
		log:        zerolog.Nop(),
		store:      store.NewMemoryStore(),
		access:     identity.AllowAll{},
		rows:       DefaultRows,
		cols:       DefaultCols,
		now:        time.Now,
		ctx:        context.Background(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes events until ctx is cancelled, then saves every open
// document and closes all clients.
func (h *Hub) Run(ctx context.Context) error {
	h.ctx = ctx
	defer close(h.done)
	for {
		select {
		case in := <-h.inbound:
			h.handle(in.client, in.msg)
		case c := <-h.unregister:
			h.detach(c, protocol.ReasonDisconnect)
			c.close()
		case timeout := <-h.sweep:
			h.sweepIdle(timeout)
		case <-ctx.Done():
			h.shutdown()
			return nil
		}
	}
}

// Handle queues a message from c. It blocks until the run loop accepts it.
func (h *Hub) Handle(ctx context.Context, c *Client, msg protocol.Message) error {
	select {
	case h.inbound <- inbound{client: c, msg: msg}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrStopped
	}
}

// Disconnect removes c from its room and closes its outbound channel.
func (h *Hub) Disconnect(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Sweep evicts presence entries idle for longer than timeout in every room.
func (h *Hub) Sweep(ctx context.Context, timeout time.Duration) error {
	select {
	case h.sweep <- timeout:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrStopped
	}
}

// ValidDocumentID rejects empty ids and ids starting with an underscore,
// which are reserved for other records in the store.
func ValidDocumentID(id string) bool {
	return id != "" && !strings.HasPrefix(id, "_")
}

// Rooms returns the ids of the open documents.
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		out = append(out, id)
	}
	return out
}

func (h *Hub) shutdown() {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), saveTimeout)
	defer cancel()
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		if err := h.save(ctx, room); err != nil {
			h.log.Error().Err(err).Str("document", id).Msg("hub: save on shutdown")
		}
		for c := range room.clients {
			c.room = nil
			c.close()
		}
		delete(h.rooms, id)
	}
}
