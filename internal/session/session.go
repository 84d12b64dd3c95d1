// Package session holds the client's local state: the logged-in user, the
// loaded server list, the active selection and the audio flags. All
// mutation happens from the UI goroutine; remote writes go through the
// backend service and come back as realtime events applied by Apply.
package session

import (
	"context"

	"go.uber.org/zap"

	"parley/internal/avatar"
	"parley/internal/backend"
	"parley/internal/bridge"
	"parley/internal/localstore"
	"parley/internal/models"
	"parley/internal/snowflake"
)

type Session struct {
	svc     backend.Service
	bridge  *bridge.Bridge
	store   *localstore.Store
	avatars avatar.Store
	gen     *snowflake.Generator
	sugar   *zap.SugaredLogger

	User    models.User
	Servers []models.Server

	ActiveServerID  int64
	ActiveChannelID int64

	VoiceConnected bool
	Muted          bool
	Deafened       bool

	// unread message count per channel, cleared on selection
	Unread map[int64]int

	// voice channel ID -> participants, maintained from presence events
	VoiceRoster map[int64][]models.VoiceState
}

func New(svc backend.Service, br *bridge.Bridge, store *localstore.Store, avatars avatar.Store, gen *snowflake.Generator, sugar *zap.SugaredLogger) *Session {
	return &Session{
		svc:         svc,
		bridge:      br,
		store:       store,
		avatars:     avatars,
		gen:         gen,
		sugar:       sugar,
		Unread:      make(map[int64]int),
		VoiceRoster: make(map[int64][]models.VoiceState),
	}
}

func (s *Session) LoggedIn() bool {
	return s.User.ID != 0
}

// Bootstrap hydrates the persisted identity and loads the server list.
// A missing identity is reported as localstore.ErrNoIdentity so the UI can
// show the login view; a failing server fetch is logged and degrades to an
// empty list.
func (s *Session) Bootstrap(ctx context.Context) error {
	user, err := s.store.LoadIdentity()
	if err != nil {
		return err
	}
	s.User = user

	err = s.svc.UpsertUser(ctx, s.User)
	if err != nil {
		s.sugar.Errorf("Refreshing the remote user record failed: %v", err)
	}

	err = s.RefreshServers(ctx)
	if err != nil {
		s.sugar.Errorf("Fetching the server list failed: %v", err)
		s.Servers = []models.Server{}
	}

	s.ensureSelection(ctx)
	return nil
}

// RefreshServers reloads the server list from the source of truth, keeping
// already fetched message histories and fixing up a dangling selection.
func (s *Session) RefreshServers(ctx context.Context) error {
	servers, err := s.svc.ListServersForUser(ctx, s.User.ID)
	if err != nil {
		return err
	}

	// carry loaded histories over to the fresh list
	history := make(map[int64][]models.Message)
	for i := range s.Servers {
		for j := range s.Servers[i].Channels {
			channel := &s.Servers[i].Channels[j]
			if channel.Messages != nil {
				history[channel.ID] = channel.Messages
			}
		}
	}
	for i := range servers {
		for j := range servers[i].Channels {
			channel := &servers[i].Channels[j]
			if messages, ok := history[channel.ID]; ok {
				channel.Messages = messages
			}
		}
	}

	s.Servers = servers
	s.ensureSelection(ctx)
	return nil
}

// ensureSelection keeps the invariant that the active server/channel always
// reference an element of the loaded list or are absent.
func (s *Session) ensureSelection(ctx context.Context) {
	if len(s.Servers) == 0 {
		s.ActiveServerID = 0
		s.ActiveChannelID = 0
		s.VoiceConnected = false
		return
	}

	if s.serverByID(s.ActiveServerID) == nil {
		err := s.SelectServer(ctx, s.Servers[0].ID)
		if err != nil {
			s.sugar.Error(err)
		}
		return
	}

	if s.ActiveChannelID != 0 && s.channelByID(s.ActiveChannelID) == nil {
		s.ActiveChannelID = 0
		s.VoiceConnected = false
	}
	if s.ActiveChannelID == 0 {
		if channel := s.firstTextChannel(s.ActiveServerID); channel != nil {
			err := s.SelectChannel(ctx, channel.ID)
			if err != nil {
				s.sugar.Error(err)
			}
		}
	}
}

// SelectServer makes the server active, retargets the server subscription
// and selects a default channel: the first text channel, so switching
// servers never connects voice on its own. Only a server without any text
// channel falls back to its first channel.
func (s *Session) SelectServer(ctx context.Context, serverID int64) error {
	server := s.serverByID(serverID)
	if server == nil {
		return backend.ErrNotFound
	}

	s.disconnectVoice(ctx)

	s.ActiveServerID = serverID
	s.ActiveChannelID = 0

	err := s.bridge.SelectServer(serverID)
	if err != nil {
		return err
	}

	if channel := s.firstTextChannel(serverID); channel != nil {
		return s.SelectChannel(ctx, channel.ID)
	}
	if len(server.Channels) > 0 {
		return s.SelectChannel(ctx, server.Channels[0].ID)
	}
	return nil
}

// SelectChannel makes the channel active. Voice channels connect the voice
// stage, text channels show chat and lazily fetch their history.
func (s *Session) SelectChannel(ctx context.Context, channelID int64) error {
	channel := s.channelByID(channelID)
	if channel == nil {
		return backend.ErrNotFound
	}

	if s.ActiveChannelID != channelID {
		s.disconnectVoice(ctx)
	}

	s.ActiveChannelID = channelID
	s.VoiceConnected = channel.Type == models.ChannelTypeVoice
	delete(s.Unread, channelID)

	err := s.bridge.SelectChannel(channelID)
	if err != nil {
		return err
	}

	switch channel.Type {
	case models.ChannelTypeText:
		if channel.Messages == nil {
			messages, err := s.svc.ListMessages(ctx, channelID)
			if err != nil {
				// degraded view, history arrives on the next selection
				s.sugar.Errorf("Fetching history of channel %d failed: %v", channelID, err)
			} else {
				channel.Messages = messages
			}
		}
	case models.ChannelTypeVoice:
		err := s.svc.JoinVoice(ctx, models.VoiceState{
			ChannelID: channelID,
			UserID:    s.User.ID,
			Username:  s.User.Username,
			Picture:   s.User.Picture,
		})
		if err != nil {
			// a rejected join must not leave the voice stage on screen
			s.ActiveChannelID = 0
			s.VoiceConnected = false
			return err
		}

		states, err := s.svc.VoiceParticipants(ctx, channelID)
		if err != nil {
			s.sugar.Errorf("Fetching voice roster of channel %d failed: %v", channelID, err)
		} else {
			s.VoiceRoster[channelID] = states
		}
	}

	return nil
}

// LeaveVoice drops out of the voice stage and reselects the first text
// channel when the server has one.
func (s *Session) LeaveVoice(ctx context.Context) error {
	if !s.VoiceConnected {
		return nil
	}

	s.disconnectVoice(ctx)

	if channel := s.firstTextChannel(s.ActiveServerID); channel != nil {
		return s.SelectChannel(ctx, channel.ID)
	}

	s.ActiveChannelID = 0
	return nil
}

func (s *Session) disconnectVoice(ctx context.Context) {
	if !s.VoiceConnected {
		return
	}

	err := s.svc.LeaveVoice(ctx, s.ActiveChannelID, s.User.ID)
	if err != nil {
		s.sugar.Errorf("Leaving voice channel %d failed: %v", s.ActiveChannelID, err)
	}
	s.VoiceConnected = false
}

// ToggleMute flips the mute flag. While deafened the toggle is inert, so
// deafened always implies muted.
func (s *Session) ToggleMute() {
	if s.Deafened {
		return
	}
	s.Muted = !s.Muted
}

// ToggleDeafen flips the deafen flag. Deafening forces muting, undeafening
// forces unmuting.
func (s *Session) ToggleDeafen() {
	s.Deafened = !s.Deafened
	s.Muted = s.Deafened
}

func (s *Session) ActiveServer() *models.Server {
	return s.serverByID(s.ActiveServerID)
}

func (s *Session) ActiveChannel() *models.Channel {
	return s.channelByID(s.ActiveChannelID)
}

func (s *Session) serverByID(serverID int64) *models.Server {
	for i := range s.Servers {
		if s.Servers[i].ID == serverID {
			return &s.Servers[i]
		}
	}
	return nil
}

// channelByID searches every loaded server, not just the active one;
// realtime merges need the owning channel wherever it lives.
func (s *Session) channelByID(channelID int64) *models.Channel {
	for i := range s.Servers {
		for j := range s.Servers[i].Channels {
			if s.Servers[i].Channels[j].ID == channelID {
				return &s.Servers[i].Channels[j]
			}
		}
	}
	return nil
}

func (s *Session) firstTextChannel(serverID int64) *models.Channel {
	server := s.serverByID(serverID)
	if server == nil {
		return nil
	}
	for i := range server.Channels {
		if server.Channels[i].Type == models.ChannelTypeText {
			return &server.Channels[i]
		}
	}
	return nil
}
