package backend

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func receiveEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case event, ok := <-events:
		if !ok {
			t.Fatal("Event channel closed while an event was expected")
		}
		return event
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for an event")
		return Event{}
	}
}

func TestLocalBusFanOut(t *testing.T) {
	bus := NewLocalBus(zap.NewNop().Sugar())
	defer bus.Close()

	first, err := bus.Subscribe("channel:1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := bus.Subscribe("channel:1")
	if err != nil {
		t.Fatal(err)
	}
	other, err := bus.Subscribe("channel:2")
	if err != nil {
		t.Fatal(err)
	}

	event, err := NewEvent(MessageCreated, map[string]string{"content": "hi"})
	if err != nil {
		t.Fatal(err)
	}

	err = bus.Publish("channel:1", event)
	if err != nil {
		t.Fatal(err)
	}

	for _, sub := range []*Subscription{first, second} {
		got := receiveEvent(t, sub.C)
		if got.Type != MessageCreated {
			t.Errorf("Received event type %q, want %q", got.Type, MessageCreated)
		}
	}

	select {
	case event := <-other.C:
		t.Errorf("Subscriber of channel:2 received event %q published to channel:1", event.Type)
	default:
	}
}

func TestLocalBusUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewLocalBus(zap.NewNop().Sugar())
	defer bus.Close()

	sub, err := bus.Subscribe("channel:1")
	if err != nil {
		t.Fatal(err)
	}

	sub.Unsubscribe()
	sub.Unsubscribe()

	if _, ok := <-sub.C; ok {
		t.Error("Event channel is still open after Unsubscribe")
	}

	// publishing to a topic with no subscribers must not fail
	event, err := NewEvent(MessageCreated, struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	err = bus.Publish("channel:1", event)
	if err != nil {
		t.Error(err)
	}
}

func TestLocalBusCloseClosesSubscribers(t *testing.T) {
	bus := NewLocalBus(zap.NewNop().Sugar())

	sub, err := bus.Subscribe("server:9")
	if err != nil {
		t.Fatal(err)
	}

	err = bus.Close()
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := <-sub.C; ok {
		t.Error("Event channel is still open after the bus was closed")
	}

	// unsubscribing after close must not panic
	sub.Unsubscribe()
}

func TestEventEncodeDecode(t *testing.T) {
	event, err := NewEvent(MessageDeleted, MessageRef{ID: 42, ChannelID: 7})
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodeEvent(event.Encode())
	if err != nil {
		t.Fatal(err)
	}

	if decoded.Type != MessageDeleted {
		t.Errorf("Decoded event type %q, want %q", decoded.Type, MessageDeleted)
	}

	var ref MessageRef
	err = decoded.Into(&ref)
	if err != nil {
		t.Fatal(err)
	}
	if ref.ID != 42 || ref.ChannelID != 7 {
		t.Errorf("Decoded payload %+v, want ID 42 in channel 7", ref)
	}
}

func TestDecodeEventRejectsBadFrames(t *testing.T) {
	_, err := DecodeEvent([]byte("no separator"))
	if err == nil {
		t.Error("Expected an error for a frame without a type separator")
	}

	_, err = DecodeEvent([]byte("\n{}"))
	if err == nil {
		t.Error("Expected an error for a frame with an empty type")
	}
}
