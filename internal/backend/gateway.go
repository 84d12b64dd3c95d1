package backend

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// gatewayFrame is both directions of the gateway wire format. The client
// sends op frames, the gateway pushes data frames with op left empty.
// Data rides base64-encoded in the usual event framing (type, newline, JSON).
type gatewayFrame struct {
	Op    string `json:"op,omitempty"`
	Topic string `json:"topic"`
	Data  string `json:"data,omitempty"`
}

const (
	gatewayOpSubscribe   = "subscribe"
	gatewayOpUnsubscribe = "unsubscribe"
	gatewayOpPublish     = "publish"
)

// GatewayBus is a Realtime carried over a single websocket connection to a
// relay gateway, for deployments where clients cannot reach redis directly.
// A read failure is terminal: every open subscription channel is closed and
// the caller decides what to do, there is no reconnect here.
type GatewayBus struct {
	conn  *websocket.Conn
	sugar *zap.SugaredLogger

	writeMutex sync.Mutex

	mutex       sync.Mutex
	nextID      int64
	subscribers map[string]map[int64]chan Event
	closed      bool
}

func DialGateway(url string, sugar *zap.SugaredLogger) (*GatewayBus, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing gateway %s: %w", url, err)
	}

	b := &GatewayBus{
		conn:        conn,
		sugar:       sugar,
		subscribers: make(map[string]map[int64]chan Event),
	}

	go b.readLoop()

	return b, nil
}

func (b *GatewayBus) readLoop() {
	defer b.teardown()

	for {
		_, raw, err := b.conn.ReadMessage()
		if err != nil {
			b.sugar.Errorf("Gateway read failed: %v", err)
			return
		}

		var frame gatewayFrame
		err = json.Unmarshal(raw, &frame)
		if err != nil {
			b.sugar.Errorf("Dropping undecodable gateway frame: %v", err)
			continue
		}

		encoded, err := base64.StdEncoding.DecodeString(frame.Data)
		if err != nil {
			b.sugar.Errorf("Dropping gateway frame with bad data encoding: %v", err)
			continue
		}

		event, err := DecodeEvent(encoded)
		if err != nil {
			b.sugar.Errorf("Dropping undecodable event on topic %s: %v", frame.Topic, err)
			continue
		}

		b.dispatch(frame.Topic, event)
	}
}

func (b *GatewayBus) dispatch(topic string, event Event) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for id, events := range b.subscribers[topic] {
		select {
		case events <- event:
		default:
			b.sugar.Warnf("Dropping %s event for slow subscriber %d on topic %s", event.Type, id, topic)
		}
	}
}

func (b *GatewayBus) writeFrame(frame gatewayFrame) error {
	b.writeMutex.Lock()
	defer b.writeMutex.Unlock()
	return b.conn.WriteJSON(frame)
}

func (b *GatewayBus) Subscribe(topic string) (*Subscription, error) {
	b.mutex.Lock()

	events := make(chan Event, localBusBuffer)

	if b.closed {
		b.mutex.Unlock()
		close(events)
		return NewSubscription(topic, events, func() {}), nil
	}

	b.nextID++
	id := b.nextID

	subscribers := b.subscribers[topic]
	if subscribers == nil {
		subscribers = make(map[int64]chan Event)
		b.subscribers[topic] = subscribers
	}
	subscribers[id] = events
	firstForTopic := len(subscribers) == 1
	b.mutex.Unlock()

	if firstForTopic {
		err := b.writeFrame(gatewayFrame{Op: gatewayOpSubscribe, Topic: topic})
		if err != nil {
			b.removeSubscriber(topic, id)
			return nil, err
		}
	}

	stop := func() {
		if b.removeSubscriber(topic, id) {
			err := b.writeFrame(gatewayFrame{Op: gatewayOpUnsubscribe, Topic: topic})
			if err != nil {
				b.sugar.Error(err)
			}
		}
	}

	return NewSubscription(topic, events, stop), nil
}

// removeSubscriber reports whether the topic has no subscribers left and
// should be unsubscribed on the wire.
func (b *GatewayBus) removeSubscriber(topic string, id int64) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	subscribers := b.subscribers[topic]
	events, exists := subscribers[id]
	if !exists {
		return false
	}
	delete(subscribers, id)
	close(events)

	if len(subscribers) == 0 {
		delete(b.subscribers, topic)
		return !b.closed
	}
	return false
}

func (b *GatewayBus) Publish(topic string, event Event) error {
	return b.writeFrame(gatewayFrame{
		Op:    gatewayOpPublish,
		Topic: topic,
		Data:  base64.StdEncoding.EncodeToString(event.Encode()),
	})
}

func (b *GatewayBus) teardown() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for topic, subscribers := range b.subscribers {
		for _, events := range subscribers {
			close(events)
		}
		delete(b.subscribers, topic)
	}
}

func (b *GatewayBus) Close() error {
	b.teardown()
	return b.conn.Close()
}
