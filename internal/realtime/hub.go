package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
)

const (
	DefaultBufferSize       = 20
	DefaultSubscriberBuffer = 32
)

const AdminsStream = "admins"

var (
	ErrHubUnavailable = errors.New("hub_unavailable")
	ErrInvalidStream  = errors.New("invalid_stream")
)

func UserStream(userID string) string {
	return "user:" + strings.TrimSpace(userID)
}

func OrderStream(orderID string) string {
	return "order:" + strings.TrimSpace(orderID)
}

// Event is one message delivered to a stream's subscribers.
type Event struct {
	Stream    string          `json:"stream"`
	Name      string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// Broadcaster pushes events to connected sessions. Delivery is best-effort:
// nothing is returned and a failure never reaches the caller.
type Broadcaster interface {
	EmitToAdmins(ctx context.Context, event string, payload any)
	EmitToUser(ctx context.Context, userID string, event string, payload any)
	EmitToOrder(ctx context.Context, orderID string, event string, payload any)
}

// Publisher forwards locally emitted events to other instances.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// DropRecorder counts events discarded because a subscriber was not keeping up.
type DropRecorder interface {
	RecordBroadcastDropped(ctx context.Context, stream string)
}

// Hub is the process-wide session registry. Each stream keeps a short backlog
// so a reconnecting client can catch up on recent events.
type Hub struct {
	mu               sync.RWMutex
	streams          map[string]*stream
	bufferSize       int
	subscriberBuffer int
	now              func() time.Time

	publisher Publisher
	drops     DropRecorder
}

type stream struct {
	mu     sync.Mutex
	buffer []Event
	subs   map[uint64]chan Event
	nextID uint64
}

type Subscription struct {
	hub    *Hub
	stream string
	id     uint64
	ch     chan Event
	once   sync.Once
}

type Option func(*Hub)

func WithBufferSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

func WithSubscriberBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.subscriberBuffer = size
		}
	}
}

func WithDropRecorder(r DropRecorder) Option {
	return func(h *Hub) { h.drops = r }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		streams:          make(map[string]*stream),
		bufferSize:       DefaultBufferSize,
		subscriberBuffer: DefaultSubscriberBuffer,
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetPublisher attaches a cross-instance publisher. Call before serving traffic.
func (h *Hub) SetPublisher(p Publisher) {
	h.mu.Lock()
	h.publisher = p
	h.mu.Unlock()
}

func (h *Hub) EmitToAdmins(ctx context.Context, event string, payload any) {
	h.emit(ctx, AdminsStream, event, payload)
}

func (h *Hub) EmitToUser(ctx context.Context, userID string, event string, payload any) {
	if strings.TrimSpace(userID) == "" {
		return
	}
	h.emit(ctx, UserStream(userID), event, payload)
}

func (h *Hub) EmitToOrder(ctx context.Context, orderID string, event string, payload any) {
	if strings.TrimSpace(orderID) == "" {
		return
	}
	h.emit(ctx, OrderStream(orderID), event, payload)
}

func (h *Hub) emit(ctx context.Context, streamKey, name string, payload any) {
	if h == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	event := Event{Stream: streamKey, Name: name, Payload: data, EmittedAt: h.now()}
	h.Deliver(ctx, event)

	h.mu.RLock()
	publisher := h.publisher
	h.mu.RUnlock()
	if publisher != nil {
		publisher.Publish(ctx, event)
	}
}

// Deliver hands an event to local subscribers of its stream. Events for
// streams nobody is watching are discarded.
func (h *Hub) Deliver(ctx context.Context, event Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	st := h.streams[event.Stream]
	h.mu.RUnlock()
	if st == nil {
		return
	}

	st.mu.Lock()
	st.buffer = append(st.buffer, event)
	if len(st.buffer) > h.bufferSize {
		st.buffer = st.buffer[len(st.buffer)-h.bufferSize:]
	}
	subs := make([]chan Event, 0, len(st.subs))
	for _, ch := range st.subs {
		subs = append(subs, ch)
	}
	st.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			if h.drops != nil {
				h.drops.RecordBroadcastDropped(ctx, streamKind(event.Stream))
			}
		}
	}
}

func (h *Hub) Subscribe(streamKey string) (*Subscription, []Event, error) {
	if h == nil {
		return nil, nil, ErrHubUnavailable
	}
	key := strings.TrimSpace(streamKey)
	if key == "" || strings.HasSuffix(key, ":") {
		return nil, nil, ErrInvalidStream
	}

	st := h.ensureStream(key)
	st.mu.Lock()
	id := st.nextID
	st.nextID++
	ch := make(chan Event, h.subscriberBuffer)
	st.subs[id] = ch
	backlog := append([]Event(nil), st.buffer...)
	st.mu.Unlock()

	return &Subscription{hub: h, stream: key, id: id, ch: ch}, backlog, nil
}

// Subscribers reports how many sessions are attached to a stream.
func (h *Hub) Subscribers(streamKey string) int {
	h.mu.RLock()
	st := h.streams[streamKey]
	h.mu.RUnlock()
	if st == nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.subs)
}

func (h *Hub) ensureStream(key string) *stream {
	h.mu.RLock()
	current := h.streams[key]
	h.mu.RUnlock()
	if current != nil {
		return current
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	current = h.streams[key]
	if current == nil {
		current = &stream{subs: make(map[uint64]chan Event)}
		h.streams[key] = current
	}
	return current
}

func (h *Hub) unsubscribe(key string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.streams[key]
	if st == nil {
		return
	}
	st.mu.Lock()
	delete(st.subs, id)
	empty := len(st.subs) == 0
	st.mu.Unlock()
	if empty {
		delete(h.streams, key)
	}
}

func (s *Subscription) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.stream, s.id)
	})
}

func streamKind(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

var _ Broadcaster = (*Hub)(nil)
