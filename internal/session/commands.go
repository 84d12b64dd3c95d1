package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/bcrypt"

	"parley/internal/avatar"
	"parley/internal/backend"
	"parley/internal/models"
	"parley/internal/validator"
)

var (
	ErrWrongPassword = errors.New("wrong_password")
	ErrNoTextChannel = errors.New("no_text_channel")
)

const bcryptCost = 12

// Login creates the user, persists the identity and loads the server list.
func (s *Session) Login(ctx context.Context, username string) error {
	err := validator.Username(username)
	if err != nil {
		return err
	}

	userID, err := s.gen.Generate()
	if err != nil {
		return err
	}

	user := models.User{
		ID:        userID,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}

	err = s.svc.UpsertUser(ctx, user)
	if err != nil {
		return err
	}

	err = s.store.SaveIdentity(user)
	if err != nil {
		return err
	}

	s.User = user

	err = s.RefreshServers(ctx)
	if err != nil {
		s.sugar.Errorf("Fetching the server list failed: %v", err)
		s.Servers = []models.Server{}
	}
	return nil
}

// SendMessage writes the message remotely and nothing else: the sender
// sees it appear through the realtime bridge, there is no optimistic
// local insertion.
func (s *Session) SendMessage(ctx context.Context, content string) error {
	channel := s.ActiveChannel()
	if channel == nil || channel.Type != models.ChannelTypeText {
		return ErrNoTextChannel
	}
	return s.sendTo(ctx, channel.ID, content, false)
}

// SendBotResponse converts a bot response into a synthetic system message
// and pushes it through the normal send path.
func (s *Session) SendBotResponse(ctx context.Context, channelID int64, content string) error {
	if s.channelByID(channelID) == nil {
		return backend.ErrNotFound
	}
	return s.sendTo(ctx, channelID, content, true)
}

func (s *Session) sendTo(ctx context.Context, channelID int64, content string, system bool) error {
	err := validator.MessageContent(content)
	if err != nil {
		return err
	}

	messageID, err := s.gen.Generate()
	if err != nil {
		return err
	}

	message := models.Message{
		ID:        messageID,
		ChannelID: channelID,
		UserID:    s.User.ID,
		Username:  s.User.Username,
		Picture:   s.User.Picture,
		Content:   content,
		System:    system,
		CreatedAt: time.Now().UTC(),
	}

	return s.svc.SendMessage(ctx, message)
}

// DeleteMessage removes one of the user's own messages from the active
// channel. The local list shrinks when the MessageDeleted event comes back.
func (s *Session) DeleteMessage(ctx context.Context, messageID int64) error {
	channel := s.ActiveChannel()
	if channel == nil {
		return backend.ErrNotFound
	}
	return s.svc.DeleteMessage(ctx, channel.ID, messageID, s.User.ID)
}

// CreateServer builds a server owned by the caller with the default
// channel set and roles, writes it remotely, reloads the server list and
// selects the new server's first channel.
func (s *Session) CreateServer(ctx context.Context, name string, password string) error {
	err := validator.ServerName(name)
	if err != nil {
		return err
	}

	var passwordHash []byte
	if password != "" {
		err = validator.ServerPassword(password)
		if err != nil {
			return err
		}
		passwordHash, err = bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
		if err != nil {
			return err
		}
	}

	ids := make([]int64, 5)
	for i := range ids {
		ids[i], err = s.gen.Generate()
		if err != nil {
			return err
		}
	}
	serverID, generalID, loungeID, adminRoleID, memberRoleID := ids[0], ids[1], ids[2], ids[3], ids[4]

	server := models.Server{
		ID:       serverID,
		OwnerID:  s.User.ID,
		Name:     name,
		Password: passwordHash,
		Channels: []models.Channel{
			{ID: generalID, ServerID: serverID, Name: "general", Type: models.ChannelTypeText, Position: 0},
			{ID: loungeID, ServerID: serverID, Name: "lounge", Type: models.ChannelTypeVoice, Position: 1},
		},
		Roles: []models.Role{
			{ID: adminRoleID, ServerID: serverID, Name: "admin", Admin: true},
			{ID: memberRoleID, ServerID: serverID, Name: "member", Admin: false},
		},
		Members: []models.ServerMember{
			{
				ServerID: serverID,
				UserID:   s.User.ID,
				Username: s.User.Username,
				Picture:  s.User.Picture,
				RoleIDs:  []int64{adminRoleID},
				JoinedAt: time.Now().UTC(),
			},
		},
	}

	err = s.svc.CreateServer(ctx, server)
	if err != nil {
		return err
	}

	err = s.RefreshServers(ctx)
	if err != nil {
		return err
	}

	return s.SelectServer(ctx, serverID)
}

// JoinServer looks the target up by name among the already loaded servers,
// verifies the password when the server carries one, writes the membership
// if absent, reloads the server list and selects the target. A wrong
// password mutates nothing and leaves the selection unchanged.
func (s *Session) JoinServer(ctx context.Context, name string, password string) error {
	var target *models.Server
	for i := range s.Servers {
		if s.Servers[i].Name == name {
			target = &s.Servers[i]
			break
		}
	}
	if target == nil {
		return backend.ErrNotFound
	}

	if len(target.Password) > 0 {
		err := bcrypt.CompareHashAndPassword(target.Password, []byte(password))
		if err != nil {
			return ErrWrongPassword
		}
	}

	targetID := target.ID

	if !s.isMember(target) {
		memberRoleID := memberRole(target)

		err := s.svc.JoinServer(ctx, models.ServerMember{
			ServerID: targetID,
			UserID:   s.User.ID,
			Username: s.User.Username,
			Picture:  s.User.Picture,
			RoleIDs:  memberRoleID,
			JoinedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}

		// announce the arrival as a system message in the first text channel
		if channel := s.firstTextChannel(targetID); channel != nil {
			err = s.sendTo(ctx, channel.ID, fmt.Sprintf("%s joined %s", s.User.Username, target.Name), true)
			if err != nil {
				s.sugar.Errorf("Sending the join notice failed: %v", err)
			}
		}
	}

	err := s.RefreshServers(ctx)
	if err != nil {
		return err
	}

	return s.SelectServer(ctx, targetID)
}

func (s *Session) isMember(server *models.Server) bool {
	for i := range server.Members {
		if server.Members[i].UserID == s.User.ID {
			return true
		}
	}
	return false
}

func memberRole(server *models.Server) []int64 {
	for i := range server.Roles {
		if !server.Roles[i].Admin {
			return []int64{server.Roles[i].ID}
		}
	}
	return []int64{}
}

// UpdateServer replaces the server record by identifier, locally only.
// There is deliberately no remote write on this path.
func (s *Session) UpdateServer(server models.Server) {
	for i := range s.Servers {
		if s.Servers[i].ID == server.ID {
			// histories live on channels, keep the fetched ones
			for j := range server.Channels {
				if existing := s.channelByID(server.Channels[j].ID); existing != nil {
					server.Channels[j].Messages = existing.Messages
				}
			}
			s.Servers[i] = server
			return
		}
	}
}

// CreateChannel adds a channel to the active server, owner only. The local
// list grows when the ChannelCreated event comes back on the server topic.
func (s *Session) CreateChannel(ctx context.Context, name string, channelType string) error {
	err := validator.ChannelName(name)
	if err != nil {
		return err
	}
	if channelType != models.ChannelTypeText && channelType != models.ChannelTypeVoice {
		return fmt.Errorf("bad_channel_type")
	}

	server := s.ActiveServer()
	if server == nil {
		return backend.ErrNotFound
	}
	if server.OwnerID != s.User.ID {
		return backend.ErrNotOwner
	}

	channelID, err := s.gen.Generate()
	if err != nil {
		return err
	}

	return s.svc.CreateChannel(ctx, models.Channel{
		ID:       channelID,
		ServerID: server.ID,
		Name:     name,
		Type:     channelType,
		Position: len(server.Channels),
	})
}

// SetAvatar runs the picture through the avatar pipeline, stores the
// result and updates the user record remotely and in the local identity.
func (s *Session) SetAvatar(ctx context.Context, picture io.Reader) error {
	if s.avatars == nil {
		return fmt.Errorf("no_avatar_store")
	}

	processed, err := avatar.Process(picture)
	if err != nil {
		return err
	}

	location, err := s.avatars.Put(ctx, avatar.Name(processed), processed)
	if err != nil {
		return err
	}

	updated := s.User
	updated.Picture = location

	err = s.svc.UpsertUser(ctx, updated)
	if err != nil {
		return err
	}

	err = s.store.SaveIdentity(updated)
	if err != nil {
		return err
	}

	s.User = updated
	return nil
}
