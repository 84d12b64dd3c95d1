package backend

import "sync"

// Realtime is the pub/sub side of the backend. Implementations exist for
// redis, a websocket gateway and an in-process bus.
type Realtime interface {
	// Subscribe opens a subscription for one topic. The subscription's
	// event channel is closed on Unsubscribe and when the transport
	// shuts down.
	Subscribe(topic string) (*Subscription, error)

	Publish(topic string, event Event) error

	Close() error
}

// Subscription is one open topic subscription. Unsubscribe is idempotent.
type Subscription struct {
	Topic string
	C     <-chan Event

	once sync.Once
	stop func()
}

func NewSubscription(topic string, events <-chan Event, stop func()) *Subscription {
	return &Subscription{Topic: topic, C: events, stop: stop}
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(s.stop)
}
