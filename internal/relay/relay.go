// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package relay frames a device byte stream into records and broadcasts each
// record to every registered subscriber.
//
// Delivery is best effort: a subscriber that cannot take a record right now
// is skipped for that record. Nothing is queued, retried or replayed, so a
// subscriber only sees records broadcast after it registered.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/relabs-tech/inertial_tracker/internal/framer"
	"github.com/relabs-tech/inertial_tracker/internal/record"
)

var ErrClosed = errors.New("relay: closed")

// DefaultGreeting is offered to every new subscriber as an info record.
const DefaultGreeting = "relay connected"

const readChunk = 4096

// Subscriber receives records. Offer must not block; returning false means
// the subscriber is not writable right now and the record is skipped. The
// slice is shared between subscribers and must not be modified.
type Subscriber interface {
	Offer(rec []byte) bool
}

// closer is implemented by subscribers that want to know when the relay
// drops them.
type closer interface {
	Close()
}

// Stats is a point-in-time view of the relay.
type Stats struct {
	Subscribers int          `json:"subscribers"`
	Broadcasts  uint64       `json:"broadcasts"`
	Skipped     uint64       `json:"skipped"`
	Framer      framer.Stats `json:"framer"`
}

type Relay struct {
	greeting string

	mu     sync.Mutex
	subs   map[string]Subscriber
	closed bool

	pumpMu sync.Mutex
	framer *framer.Framer

	broadcasts atomic.Uint64
	skipped    atomic.Uint64
}

// Option configures a Relay.
type Option func(*relayOptions)

type relayOptions struct {
	greeting  string
	framerOps []framer.Option
}

// WithGreeting sets the info message offered on registration. An empty
// message disables the greeting.
func WithGreeting(msg string) Option {
	return func(o *relayOptions) { o.greeting = msg }
}

// WithFramerOptions configures the framer used by Pump.
func WithFramerOptions(opts ...framer.Option) Option {
	return func(o *relayOptions) { o.framerOps = append(o.framerOps, opts...) }
}

func New(opts ...Option) *Relay {
	o := relayOptions{greeting: DefaultGreeting}
	for _, opt := range opts {
		opt(&o)
	}
	return &Relay{
		greeting: o.greeting,
		subs:     make(map[string]Subscriber),
		framer:   framer.New(o.framerOps...),
	}
}

// Subscribe registers s and returns its id. If a greeting is configured it
// is offered to s before any broadcast can reach it.
func (r *Relay) Subscribe(s Subscriber) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrClosed
	}
	id := uuid.NewString()
	if r.greeting != "" {
		s.Offer(record.NewInfo(r.greeting))
	}
	r.subs[id] = s
	return id, nil
}

// Unsubscribe removes a subscriber. Unknown ids are ignored.
func (r *Relay) Unsubscribe(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(id)
}

func (r *Relay) remove(id string) {
	s, ok := r.subs[id]
	if !ok {
		return
	}
	delete(r.subs, id)
	if c, ok := s.(closer); ok {
		c.Close()
	}
}

// Broadcast offers rec to every current subscriber and returns how many
// accepted it.
func (r *Relay) Broadcast(rec []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.broadcasts.Add(1)
	delivered := 0
	for _, s := range r.subs {
		if s.Offer(rec) {
			delivered++
		} else {
			r.skipped.Add(1)
		}
	}
	return delivered
}

// Pump reads src until EOF, framing and broadcasting records in arrival
// order. Any bytes left over from a previous source are discarded first.
// A blocked Read is not interrupted by ctx; callers close src to unblock it.
func (r *Relay) Pump(ctx context.Context, src io.Reader) error {
	r.pumpMu.Lock()
	r.framer.Reset()
	r.pumpMu.Unlock()

	buf := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.Read(buf)
		if n > 0 {
			r.feed(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("relay: read source: %w", err)
		}
	}
}

func (r *Relay) feed(chunk []byte) {
	r.pumpMu.Lock()
	defer r.pumpMu.Unlock()
	for rec := range r.framer.Feed(chunk) {
		r.Broadcast(rec)
	}
}

// Subscribers returns the number of registered subscribers.
func (r *Relay) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Stats reports subscriber count and counters.
func (r *Relay) Stats() Stats {
	n := r.Subscribers()

	r.pumpMu.Lock()
	fs := r.framer.Stats()
	r.pumpMu.Unlock()

	return Stats{
		Subscribers: n,
		Broadcasts:  r.broadcasts.Load(),
		Skipped:     r.skipped.Load(),
		Framer:      fs,
	}
}

// Close drops every subscriber. Further Subscribe calls fail.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for id := range r.subs {
		r.remove(id)
	}
}

// ChanSubscriber adapts a buffered channel to Subscriber. When the buffer is
// full the subscriber is not writable. The relay closes the channel when the
// subscriber is removed.
type ChanSubscriber struct {
	ch   chan []byte
	once sync.Once
}

// NewChanSubscriber returns a subscriber with room for size pending records.
func NewChanSubscriber(size int) *ChanSubscriber {
	if size < 1 {
		size = 1
	}
	return &ChanSubscriber{ch: make(chan []byte, size)}
}

func (c *ChanSubscriber) Offer(rec []byte) bool {
	select {
	case c.ch <- rec:
		return true
	default:
		return false
	}
}

// C returns the receive side.
func (c *ChanSubscriber) C() <-chan []byte {
	return c.ch
}

func (c *ChanSubscriber) Close() {
	c.once.Do(func() { close(c.ch) })
}
