package testutil

import (
	"context"
	"sync"
)

// Emission is one captured broadcast.
type Emission struct {
	Stream  string
	Event   string
	Payload any
}

// RecordingBroadcaster captures emits instead of delivering them.
type RecordingBroadcaster struct {
	mu        sync.Mutex
	emissions []Emission
}

func (b *RecordingBroadcaster) EmitToAdmins(_ context.Context, event string, payload any) {
	b.add(Emission{Stream: "admins", Event: event, Payload: payload})
}

func (b *RecordingBroadcaster) EmitToUser(_ context.Context, userID string, event string, payload any) {
	b.add(Emission{Stream: "user:" + userID, Event: event, Payload: payload})
}

func (b *RecordingBroadcaster) EmitToOrder(_ context.Context, orderID string, event string, payload any) {
	b.add(Emission{Stream: "order:" + orderID, Event: event, Payload: payload})
}

func (b *RecordingBroadcaster) add(e Emission) {
	b.mu.Lock()
	b.emissions = append(b.emissions, e)
	b.mu.Unlock()
}

func (b *RecordingBroadcaster) Emissions() []Emission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Emission(nil), b.emissions...)
}

// Events returns the event names emitted to stream, in order.
func (b *RecordingBroadcaster) Events(stream string) []string {
	var out []string
	for _, e := range b.Emissions() {
		if e.Stream == stream {
			out = append(out, e.Event)
		}
	}
	return out
}

func (b *RecordingBroadcaster) Reset() {
	b.mu.Lock()
	b.emissions = nil
	b.mu.Unlock()
}
