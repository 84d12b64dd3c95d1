package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	MessageCreated = "MessageCreated"
	MessageDeleted = "MessageDeleted"

	ChannelCreated = "ChannelCreated"

	MemberJoined = "MemberJoined"

	VoiceJoined = "VoiceJoined"
	VoiceLeft   = "VoiceLeft"

	ServerModified = "ServerModified"
)

// Event is one realtime notification. The wire form is the event type,
// a newline, then the JSON payload.
type Event struct {
	Type    string
	Payload json.RawMessage
}

func NewEvent(eventType string, payload any) (Event, error) {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: jsonBytes}, nil
}

func (e Event) Encode() []byte {
	var buf bytes.Buffer
	buf.Grow(len(e.Type) + 1 + len(e.Payload))
	buf.WriteString(e.Type)
	buf.WriteByte('\n')
	buf.Write(e.Payload)
	return buf.Bytes()
}

func (e Event) Into(v any) error {
	return json.Unmarshal(e.Payload, v)
}

func DecodeEvent(raw []byte) (Event, error) {
	eventType, payload, found := bytes.Cut(raw, []byte{'\n'})
	if !found {
		return Event{}, fmt.Errorf("event frame has no type separator")
	}
	if len(eventType) == 0 {
		return Event{}, fmt.Errorf("event frame has an empty type")
	}
	return Event{Type: string(eventType), Payload: payload}, nil
}

// MessageRef identifies a message within its channel, used by
// MessageDeleted payloads.
type MessageRef struct {
	ID        int64 `json:"id,string"`
	ChannelID int64 `json:"channelID,string"`
}

// ChannelTopic is the topic a channel's message events are published on.
func ChannelTopic(channelID int64) string {
	return fmt.Sprintf("channel:%d", channelID)
}

// ServerTopic is the topic a server's channel/member/voice events are
// published on.
func ServerTopic(serverID int64) string {
	return fmt.Sprintf("server:%d", serverID)
}
