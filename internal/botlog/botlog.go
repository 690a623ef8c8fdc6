// Package botlog provides the bounded per-tenant event log and its
// real-time broadcaster.
package botlog

import (
	"sync"
	"time"
)

// MaxEntries is the ring buffer capacity; the oldest entry is evicted when
// a 51st entry is appended.
const MaxEntries = 50

// Entry is one log line as delivered to dashboard clients.
// Wire shape: {"type","message","timestamp","data"?}.
type Entry struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEntry stamps an entry with the current wall-clock time (HH:MM:SS).
func NewEntry(typ, message string, data map[string]any) Entry {
	return Entry{
		Type:      typ,
		Message:   message,
		Timestamp: time.Now().Format("15:04:05"),
		Data:      data,
	}
}

// Ring is a bounded append-only log. Safe for concurrent use.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRing creates an empty ring.
func NewRing() *Ring {
	return &Ring{}
}

// Append adds an entry, evicting the oldest once the buffer is full.
func (r *Ring) Append(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	if len(r.entries) > MaxEntries {
		r.entries = r.entries[len(r.entries)-MaxEntries:]
	}
}

// Snapshot returns a copy of the current contents, oldest first.
func (r *Ring) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of buffered entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sink receives every published entry in addition to room subscribers.
// Implementations must not block.
type Sink interface {
	Write(tenantID string, e Entry)
}

// Broadcaster fans log entries out to tenant-scoped subscriber rooms.
type Broadcaster struct {
	mu    sync.RWMutex
	rooms map[string]map[chan Entry]struct{}
	sinks []Sink
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{rooms: make(map[string]map[chan Entry]struct{})}
}

// AddSink attaches a global sink (e.g. the Kafka mirror). Not safe to call
// after publishing starts.
func (b *Broadcaster) AddSink(s Sink) {
	b.sinks = append(b.sinks, s)
}

// Subscribe joins the tenant's room. The returned cancel func leaves the
// room and closes the channel.
func (b *Broadcaster) Subscribe(tenantID string) (<-chan Entry, func()) {
	ch := make(chan Entry, 32)

	b.mu.Lock()
	room, ok := b.rooms[tenantID]
	if !ok {
		room = make(map[chan Entry]struct{})
		b.rooms[tenantID] = room
	}
	room[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if room, ok := b.rooms[tenantID]; ok {
			if _, member := room[ch]; member {
				delete(room, ch)
				close(ch)
				if len(room) == 0 {
					delete(b.rooms, tenantID)
				}
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an entry to every subscriber in the tenant's room and to
// all sinks. Subscribers with full buffers miss the entry rather than
// blocking the publisher.
func (b *Broadcaster) Publish(tenantID string, e Entry) {
	b.mu.RLock()
	for ch := range b.rooms[tenantID] {
		select {
		case ch <- e:
		default:
		}
	}
	sinks := b.sinks
	b.mu.RUnlock()

	for _, s := range sinks {
		s.Write(tenantID, e)
	}
}

// Subscribers returns the current room size for a tenant.
func (b *Broadcaster) Subscribers(tenantID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[tenantID])
}
