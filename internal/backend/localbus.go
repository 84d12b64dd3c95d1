package backend

import (
	"sync"

	"go.uber.org/zap"
)

const localBusBuffer = 16

// LocalBus is an in-process Realtime used in self-contained mode and in
// tests. Subscribers are held per topic; publishing fans the event out to
// every subscriber's buffered channel and drops when a buffer is full.
type LocalBus struct {
	sugar *zap.SugaredLogger

	mutex  sync.Mutex
	nextID int64
	topics map[string]map[int64]chan Event
	closed bool
}

func NewLocalBus(sugar *zap.SugaredLogger) *LocalBus {
	return &LocalBus{
		sugar:  sugar,
		topics: make(map[string]map[int64]chan Event),
	}
}

func (b *LocalBus) Subscribe(topic string) (*Subscription, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	events := make(chan Event, localBusBuffer)

	if b.closed {
		close(events)
		return NewSubscription(topic, events, func() {}), nil
	}

	b.nextID++
	id := b.nextID

	subscribers := b.topics[topic]
	if subscribers == nil {
		subscribers = make(map[int64]chan Event)
		b.topics[topic] = subscribers
	}
	subscribers[id] = events

	stop := func() {
		b.mutex.Lock()
		defer b.mutex.Unlock()
		b.remove(topic, id)
	}

	return NewSubscription(topic, events, stop), nil
}

// remove is called with the mutex held.
func (b *LocalBus) remove(topic string, id int64) {
	subscribers := b.topics[topic]
	events, exists := subscribers[id]
	if !exists {
		return
	}
	delete(subscribers, id)
	close(events)

	// delete topic from map if no one is subscribed to it
	if len(subscribers) == 0 {
		delete(b.topics, topic)
	}
}

func (b *LocalBus) Publish(topic string, event Event) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return nil
	}

	for id, events := range b.topics[topic] {
		select {
		case events <- event:
		default:
			if b.sugar != nil {
				b.sugar.Warnf("Dropping %s event for slow subscriber %d on topic %s", event.Type, id, topic)
			}
		}
	}
	return nil
}

func (b *LocalBus) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for topic, subscribers := range b.topics {
		for id := range subscribers {
			b.remove(topic, id)
		}
	}
	return nil
}
