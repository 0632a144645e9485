// Package sse pushes content change notifications to editors and the landing page.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event names.
const (
	NodeCreated        = "node.created"
	NodeUpdated        = "node.updated"
	NodeDeleted        = "node.deleted"
	ManifestUpdated    = "manifest.updated"
	PhrasesUpdated     = "phrases.updated"
	ConnectionsUpdated = "connections.updated"
)

// Event is one named message on the stream. Data is sent as JSON.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type nodeChange struct {
	kind string
	id   string
}

// Broker delivers events to every subscribed stream.
//
// Subscriptions and the manifest throttle live in the run goroutine only.
// Callers reach it through the request channels below and never block once
// Close has returned.
type Broker struct {
	manifestEvery time.Duration
	keepAlive     time.Duration

	joins    chan chan []byte
	leaves   chan chan []byte
	events   chan Event
	changes  chan nodeChange
	counts   chan chan int
	shutdown chan struct{}
	done     chan struct{}
	closed   atomic.Bool
}

// NewBroker starts a broker. Node events trigger at most one
// manifest.updated per manifestThrottle; zero means two seconds.
func NewBroker(manifestThrottle time.Duration) *Broker {
	if manifestThrottle <= 0 {
		manifestThrottle = 2 * time.Second
	}

	b := &Broker{
		manifestEvery: manifestThrottle,
		keepAlive:     25 * time.Second,
		joins:         make(chan chan []byte),
		leaves:        make(chan chan []byte),
		events:        make(chan Event, 256),
		changes:       make(chan nodeChange, 256),
		counts:        make(chan chan int),
		shutdown:      make(chan struct{}),
		done:          make(chan struct{}),
	}

	go b.run()
	return b
}

// frame renders event in text/event-stream form, or nil if Data cannot be encoded.
func frame(event Event) []byte {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
}

// hub is the state owned by the run goroutine.
type hub struct {
	streams      map[chan []byte]struct{}
	lastManifest time.Time
}

func (h *hub) send(event Event) {
	raw := frame(event)
	if raw == nil {
		return
	}
	for ch := range h.streams {
		select {
		case ch <- raw:
		default: // full buffer: this stream misses the event
		}
	}
}

func (h *hub) nodeChanged(c nodeChange, every time.Duration) {
	h.send(Event{Type: "node." + c.kind, Data: map[string]string{"id": c.id}})
	if now := time.Now(); now.Sub(h.lastManifest) >= every {
		h.lastManifest = now
		h.send(Event{Type: ManifestUpdated, Data: map[string]string{}})
	}
}

func (b *Broker) run() {
	defer close(b.done)

	h := &hub{streams: make(map[chan []byte]struct{})}
	for {
		select {
		case <-b.shutdown:
			for ch := range h.streams {
				close(ch)
			}
			return
		case ch := <-b.joins:
			h.streams[ch] = struct{}{}
		case ch := <-b.leaves:
			if _, ok := h.streams[ch]; ok {
				delete(h.streams, ch)
				close(ch)
			}
		case event := <-b.events:
			h.send(event)
		case c := <-b.changes:
			h.nodeChanged(c, b.manifestEvery)
		case resp := <-b.counts:
			resp <- len(h.streams)
		}
	}
}

// deliver hands v to the run goroutine unless the broker is shut down.
func deliver[T any](b *Broker, ch chan T, v T) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case ch <- v:
		return true
	case <-b.done:
		return false
	}
}

// Close shuts the loop down, closing every subscribed stream. Safe to call twice.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.shutdown)
	}
	<-b.done
}

// Subscribe registers a stream. The returned channel is closed when the
// stream is unsubscribed or the broker shuts down.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if !deliver(b, b.joins, ch) {
		close(ch)
	}
	return ch
}

// Unsubscribe drops ch and closes it.
func (b *Broker) Unsubscribe(ch chan []byte) {
	deliver(b, b.leaves, ch)
}

// ClientCount reports how many streams are open; zero after Close.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	if !deliver(b, b.counts, resp) {
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.done:
		return 0
	}
}

// Publish queues event for every stream.
func (b *Broker) Publish(event Event) {
	deliver(b, b.events, event)
}

// PublishNodeEvent sends node.<kind> ("created", "updated" or "deleted")
// for id, then manifest.updated if the throttle allows it.
func (b *Broker) PublishNodeEvent(kind, id string) {
	deliver(b, b.changes, nodeChange{kind: kind, id: id})
}

// PublishManifest announces a rebuilt manifest, bypassing the throttle.
func (b *Broker) PublishManifest(count int) {
	b.Publish(Event{Type: ManifestUpdated, Data: map[string]int{"nodes": count}})
}

// PublishCollection announces a changed phrases or connections list.
func (b *Broker) PublishCollection(name string, length int) {
	b.Publish(Event{Type: name + ".updated", Data: map[string]int{"length": length}})
}

// ServeHTTP streams events to one client until it disconnects, with a
// comment line every keepAlive to hold idle proxies open.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
