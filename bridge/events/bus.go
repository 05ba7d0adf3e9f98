// Package events implements the broadcast event bus: a single producer-side
// channel fanned out to per-subscriber filtered channels. A slow subscriber
// drops events silently rather than blocking the bus or terminating the
// stream: when its channel is full, the incoming event is dropped for that
// subscriber and the events already queued are kept.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yichen11818/NeteaseTSBot/bridge/voicepb"
)

// busCapacity is the broadcast channel capacity.
const busCapacity = 512

// subscriberCapacity is the per-subscriber outgoing channel capacity. A
// subscriber whose channel is full when a new event arrives has that event
// dropped for them specifically; the bus itself is never blocked.
const subscriberCapacity = 64

// Filter selects which event kinds a subscriber receives.
type Filter struct {
	IncludeChat     bool
	IncludePlayback bool
	IncludeLog      bool
}

type subscriber struct {
	id     string
	filter Filter
	ch     chan voicepb.Event
}

// Bus fans broadcast events out to filtered subscriber channels.
type Bus struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]*subscriber

	in chan voicepb.Event

	closeOnce sync.Once
	done      chan struct{}
}

// NewBus starts the bus's dispatch goroutine and returns the handle.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		logger: logger,
		subs:   make(map[string]*subscriber),
		in:     make(chan voicepb.Event, busCapacity),
		done:   make(chan struct{}),
	}
	go b.dispatchLoop()
	return b
}

func (b *Bus) dispatchLoop() {
	for {
		select {
		case ev, ok := <-b.in:
			if !ok {
				return
			}
			b.fanOut(ev)
		case <-b.done:
			return
		}
	}
}

func (b *Bus) fanOut(ev voicepb.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if !matches(sub.filter, ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("event bus subscriber lagging, dropping event", "subscriber_id", sub.id)
		}
	}
}

func matches(f Filter, ev voicepb.Event) bool {
	switch {
	case ev.Chat != nil:
		return f.IncludeChat
	case ev.Playback != nil:
		return f.IncludePlayback
	case ev.Log != nil:
		return f.IncludeLog
	default:
		return false
	}
}

// publish tags the event with the current wall clock and enqueues it
// non-blockingly; on overflow of the bus's own buffer the event is dropped
// and logged (the bus never blocks a publisher).
func (b *Bus) publish(ev voicepb.Event) {
	ev.UnixMs = time.Now().UnixMilli()
	select {
	case b.in <- ev:
	default:
		b.logger.Warn("event bus full, dropping event")
	}
}

func (b *Bus) PublishChat(c voicepb.ChatEvent) {
	b.publish(voicepb.Event{Chat: &c})
}

func (b *Bus) PublishPlayback(p voicepb.PlaybackEvent) {
	b.publish(voicepb.Event{Playback: &p})
}

func (b *Bus) PublishLog(l voicepb.LogEvent) {
	b.publish(voicepb.Event{Log: &l})
}

// Subscription is a live filtered stream handle.
type Subscription struct {
	ID string
	C  <-chan voicepb.Event

	bus *Bus
}

// Subscribe registers a new filtered subscriber. Close must be called to
// release it.
func (b *Bus) Subscribe(filter Filter) *Subscription {
	sub := &subscriber{
		id:     uuid.NewString(),
		filter: filter,
		ch:     make(chan voicepb.Event, subscriberCapacity),
	}
	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return &Subscription{ID: sub.id, C: sub.ch, bus: b}
}

// Close unregisters the subscription.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if sub, ok := s.bus.subs[s.ID]; ok {
		close(sub.ch)
		delete(s.bus.subs, s.ID)
	}
}

// Shutdown stops the dispatch loop. Safe to call multiple times.
func (b *Bus) Shutdown() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
}
