package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"classbook/internal/events"
)

// Message is one schedule change pushed to SSE subscribers of a classroom.
type Message struct {
	ClassroomID int64           `json:"classroom_id"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Dispatcher fans schedule events out to live subscribers keyed by classroom.
// Slow subscribers are skipped rather than blocked on; SSE clients that fall
// behind simply miss intermediate updates and refetch.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	stream chan Message
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[int64]map[int64]*subscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a listener for one classroom's schedule changes. The
// returned cleanup is idempotent and also runs when ctx is cancelled.
func (d *Dispatcher) Subscribe(ctx context.Context, classroomID int64) (<-chan Message, func()) {
	sub := &subscriber{
		id:     d.nextSequence(),
		stream: make(chan Message, d.bufferSize),
	}
	d.register(classroomID, sub)
	cleanup := func() {
		d.unregister(classroomID, sub.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// Publish delivers a message to every subscriber of its classroom without
// blocking on any of them.
func (d *Dispatcher) Publish(message Message) {
	if message.EventType == "" {
		return
	}
	d.mu.RLock()
	subs := d.subscribers[message.ClassroomID]
	if len(subs) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*subscriber, 0, len(subs))
	for _, sub := range subs {
		copies = append(copies, sub)
	}
	d.mu.RUnlock()
	for _, sub := range copies {
		select {
		case sub.stream <- message:
		default:
		}
	}
}

// HandleEvent bridges the event bus to the dispatcher. Registered for the
// reservation and waitlist event types in cmd/server.
func (d *Dispatcher) HandleEvent(event *events.Event) error {
	var payload events.ReservationEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}
	d.Publish(Message{
		ClassroomID: payload.ClassroomID,
		EventType:   event.Type,
		Payload:     event.Payload,
		Timestamp:   event.CreatedAt,
	})
	return nil
}

// SubscriberCount reports the number of live subscribers for a classroom.
func (d *Dispatcher) SubscriberCount(classroomID int64) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[classroomID])
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) register(classroomID int64, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[classroomID]; !ok {
		d.subscribers[classroomID] = make(map[int64]*subscriber)
	}
	d.subscribers[classroomID][sub.id] = sub
}

func (d *Dispatcher) unregister(classroomID int64, subID int64) {
	d.mu.Lock()
	subs := d.subscribers[classroomID]
	if subs != nil {
		delete(subs, subID)
		if len(subs) == 0 {
			delete(d.subscribers, classroomID)
		}
	}
	d.mu.Unlock()
}
