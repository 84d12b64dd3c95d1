package session

import (
	"parley/internal/backend"
	"parley/internal/models"
)

// Apply merges one realtime event into local state. Undecodable payloads
// and events for channels that are not loaded are logged and dropped;
// nothing here ever fails the session.
func (s *Session) Apply(event backend.Event) {
	switch event.Type {
	case backend.MessageCreated:
		var message models.Message
		if err := event.Into(&message); err != nil {
			s.sugar.Errorf("Decoding %s failed: %v", event.Type, err)
			return
		}
		s.mergeMessage(message)

	case backend.MessageDeleted:
		var ref backend.MessageRef
		if err := event.Into(&ref); err != nil {
			s.sugar.Errorf("Decoding %s failed: %v", event.Type, err)
			return
		}
		s.removeMessage(ref)

	case backend.ChannelCreated:
		var channel models.Channel
		if err := event.Into(&channel); err != nil {
			s.sugar.Errorf("Decoding %s failed: %v", event.Type, err)
			return
		}
		s.mergeChannel(channel)

	case backend.MemberJoined:
		var member models.ServerMember
		if err := event.Into(&member); err != nil {
			s.sugar.Errorf("Decoding %s failed: %v", event.Type, err)
			return
		}
		s.mergeMember(member)

	case backend.VoiceJoined:
		var state models.VoiceState
		if err := event.Into(&state); err != nil {
			s.sugar.Errorf("Decoding %s failed: %v", event.Type, err)
			return
		}
		s.mergeVoiceState(state)

	case backend.VoiceLeft:
		var state models.VoiceState
		if err := event.Into(&state); err != nil {
			s.sugar.Errorf("Decoding %s failed: %v", event.Type, err)
			return
		}
		s.removeVoiceState(state)

	case backend.ServerModified:
		var server models.Server
		if err := event.Into(&server); err != nil {
			s.sugar.Errorf("Decoding %s failed: %v", event.Type, err)
			return
		}
		s.UpdateServer(server)

	default:
		s.sugar.Debugf("Ignoring unknown event type %q", event.Type)
	}
}

// mergeMessage appends the message to its channel's list, preserving
// first-arrival order. The channel must exist in local state and the
// message ID must not be present yet, so no list ever holds a duplicate.
func (s *Session) mergeMessage(message models.Message) {
	channel := s.channelByID(message.ChannelID)
	if channel == nil {
		s.sugar.Debugf("Dropping message %d for unknown channel %d", message.ID, message.ChannelID)
		return
	}

	for i := range channel.Messages {
		if channel.Messages[i].ID == message.ID {
			return
		}
	}

	channel.Messages = append(channel.Messages, message)

	if channel.ID != s.ActiveChannelID && !message.System {
		s.Unread[channel.ID]++
	}
}

func (s *Session) removeMessage(ref backend.MessageRef) {
	channel := s.channelByID(ref.ChannelID)
	if channel == nil {
		return
	}

	for i := range channel.Messages {
		if channel.Messages[i].ID == ref.ID {
			channel.Messages = append(channel.Messages[:i], channel.Messages[i+1:]...)
			return
		}
	}
}

func (s *Session) mergeChannel(channel models.Channel) {
	server := s.serverByID(channel.ServerID)
	if server == nil {
		return
	}

	for i := range server.Channels {
		if server.Channels[i].ID == channel.ID {
			return
		}
	}

	server.Channels = append(server.Channels, channel)
}

func (s *Session) mergeMember(member models.ServerMember) {
	server := s.serverByID(member.ServerID)
	if server == nil {
		return
	}

	for i := range server.Members {
		if server.Members[i].UserID == member.UserID {
			return
		}
	}

	server.Members = append(server.Members, member)
}

func (s *Session) mergeVoiceState(state models.VoiceState) {
	roster := s.VoiceRoster[state.ChannelID]
	for i := range roster {
		if roster[i].UserID == state.UserID {
			return
		}
	}
	s.VoiceRoster[state.ChannelID] = append(roster, state)
}

func (s *Session) removeVoiceState(state models.VoiceState) {
	roster := s.VoiceRoster[state.ChannelID]
	for i := range roster {
		if roster[i].UserID == state.UserID {
			s.VoiceRoster[state.ChannelID] = append(roster[:i], roster[i+1:]...)
			return
		}
	}
}
