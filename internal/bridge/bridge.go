// Package bridge owns the client's realtime subscriptions: at most one per
// selection kind (the selected channel, the selected server), retargeted
// when the selection changes and torn down as a whole on Close. Events from
// every open subscription are fanned into a single channel so all state
// merges happen on the UI goroutine.
package bridge

import (
	"sync"

	"go.uber.org/zap"

	"parley/internal/backend"
)

const (
	kindChannel = "channel"
	kindServer  = "server"
)

type Bridge struct {
	rt    backend.Realtime
	sugar *zap.SugaredLogger

	events chan backend.Event
	done   chan struct{}
	wg     sync.WaitGroup

	mutex   sync.Mutex
	current map[string]*backend.Subscription
	closed  bool
}

func New(rt backend.Realtime, sugar *zap.SugaredLogger) *Bridge {
	return &Bridge{
		rt:      rt,
		sugar:   sugar,
		events:  make(chan backend.Event, 16),
		done:    make(chan struct{}),
		current: make(map[string]*backend.Subscription),
	}
}

// Events is the single channel every subscribed topic's events arrive on.
// It is closed by Close.
func (b *Bridge) Events() <-chan backend.Event {
	return b.events
}

// SelectChannel retargets the channel subscription. Selecting the already
// subscribed channel is a no-op.
func (b *Bridge) SelectChannel(channelID int64) error {
	return b.retarget(kindChannel, backend.ChannelTopic(channelID))
}

// SelectServer retargets the server subscription carrying channel, member
// and voice events.
func (b *Bridge) SelectServer(serverID int64) error {
	return b.retarget(kindServer, backend.ServerTopic(serverID))
}

func (b *Bridge) retarget(kind string, topic string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return nil
	}

	previous := b.current[kind]
	if previous != nil && previous.Topic == topic {
		// already subscribed, don't open a duplicate
		return nil
	}

	if previous != nil {
		b.sugar.Debugf("Unsubscribing from %s", previous.Topic)
		previous.Unsubscribe()
		delete(b.current, kind)
	}

	sub, err := b.rt.Subscribe(topic)
	if err != nil {
		return err
	}
	b.sugar.Debugf("Subscribed to %s", topic)

	b.current[kind] = sub
	b.wg.Add(1)
	go b.pump(sub)

	return nil
}

func (b *Bridge) pump(sub *backend.Subscription) {
	defer b.wg.Done()

	for event := range sub.C {
		select {
		case b.events <- event:
		case <-b.done:
			return
		}
	}
}

// Close unsubscribes everything, waits for the pumps to drain and closes
// the events channel. Safe to call more than once.
func (b *Bridge) Close() {
	b.mutex.Lock()
	if b.closed {
		b.mutex.Unlock()
		return
	}
	b.closed = true

	for kind, sub := range b.current {
		sub.Unsubscribe()
		delete(b.current, kind)
	}
	b.mutex.Unlock()

	close(b.done)
	b.wg.Wait()
	close(b.events)
}
