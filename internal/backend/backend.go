// Package backend abstracts the remote service the client is built around:
// a row store for users/servers/channels/messages and a realtime pub/sub
// transport delivering change events for the topics the client subscribes to.
package backend

import (
	"context"
	"errors"

	"parley/internal/models"
)

var (
	ErrNotFound  = errors.New("not_found")
	ErrNotMember = errors.New("not_member")
	ErrNotOwner  = errors.New("not_owner")
)

type Service interface {
	// UpsertUser creates the user row or refreshes its display fields.
	UpsertUser(ctx context.Context, user models.User) error

	// ListServersForUser returns every server the user is a member of,
	// with channels, roles and members populated. Message lists are not
	// included; they are fetched lazily per channel.
	ListServersForUser(ctx context.Context, userID int64) ([]models.Server, error)

	// CreateServer writes the server together with its initial channels,
	// roles and members in one go.
	CreateServer(ctx context.Context, server models.Server) error

	// JoinServer records the membership unless it already exists.
	JoinServer(ctx context.Context, member models.ServerMember) error

	CreateChannel(ctx context.Context, channel models.Channel) error

	SendMessage(ctx context.Context, message models.Message) error

	// DeleteMessage removes the message only when senderID matches the
	// stored sender.
	DeleteMessage(ctx context.Context, channelID int64, messageID int64, senderID int64) error

	// ListMessages returns a channel's history in ascending ID order.
	ListMessages(ctx context.Context, channelID int64) ([]models.Message, error)

	JoinVoice(ctx context.Context, state models.VoiceState) error
	LeaveVoice(ctx context.Context, channelID int64, userID int64) error
	VoiceParticipants(ctx context.Context, channelID int64) ([]models.VoiceState, error)

	// Realtime exposes the pub/sub transport change events arrive on.
	Realtime() Realtime

	Close() error
}
