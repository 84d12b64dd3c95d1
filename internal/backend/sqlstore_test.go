package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"parley/internal/models"
)

func newTestStore(t *testing.T) (*SQLStore, *LocalBus) {
	t.Helper()

	bus := NewLocalBus(zap.NewNop().Sugar())
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "parley.db"), bus, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		store.Close()
		bus.Close()
	})

	return store, bus
}

func seedUser(t *testing.T, store *SQLStore, id int64, username string) models.User {
	t.Helper()

	user := models.User{ID: id, Username: username, CreatedAt: time.Now()}
	err := store.UpsertUser(context.Background(), user)
	if err != nil {
		t.Fatal(err)
	}
	return user
}

func seedServer(t *testing.T, store *SQLStore, serverID int64, owner models.User) models.Server {
	t.Helper()

	server := models.Server{
		ID:      serverID,
		OwnerID: owner.ID,
		Name:    "testing grounds",
		Channels: []models.Channel{
			{ID: serverID + 1, ServerID: serverID, Name: "general", Type: models.ChannelTypeText, Position: 0},
			{ID: serverID + 2, ServerID: serverID, Name: "lounge", Type: models.ChannelTypeVoice, Position: 1},
		},
		Roles: []models.Role{
			{ID: serverID + 3, ServerID: serverID, Name: "admin", Admin: true},
			{ID: serverID + 4, ServerID: serverID, Name: "member", Admin: false},
		},
		Members: []models.ServerMember{
			{ServerID: serverID, UserID: owner.ID, Username: owner.Username, RoleIDs: []int64{serverID + 3}, JoinedAt: time.Now()},
		},
	}

	err := store.CreateServer(context.Background(), server)
	if err != nil {
		t.Fatal(err)
	}
	return server
}

func TestCreateAndListServers(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, store, 1, "alice")
	seedServer(t, store, 100, owner)

	servers, err := store.ListServersForUser(ctx, owner.ID)
	if err != nil {
		t.Fatal(err)
	}

	if len(servers) != 1 {
		t.Fatalf("Listed %d servers, want 1", len(servers))
	}

	server := servers[0]
	if server.Name != "testing grounds" || server.OwnerID != owner.ID {
		t.Errorf("Listed server %+v does not match what was created", server)
	}
	if len(server.Channels) != 2 {
		t.Fatalf("Listed %d channels, want 2", len(server.Channels))
	}
	if server.Channels[0].Name != "general" || server.Channels[0].Type != models.ChannelTypeText {
		t.Errorf("First channel is %+v, want text channel general", server.Channels[0])
	}
	if len(server.Roles) != 2 {
		t.Errorf("Listed %d roles, want 2", len(server.Roles))
	}
	if len(server.Members) != 1 || server.Members[0].UserID != owner.ID {
		t.Errorf("Listed members %+v, want just the owner", server.Members)
	}
	if len(server.Members[0].RoleIDs) != 1 || server.Members[0].RoleIDs[0] != 103 {
		t.Errorf("Member role IDs %v, want [103]", server.Members[0].RoleIDs)
	}

	// a non-member sees no servers
	stranger := seedUser(t, store, 2, "bob")
	servers, err = store.ListServersForUser(ctx, stranger.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(servers) != 0 {
		t.Errorf("Non-member listed %d servers, want 0", len(servers))
	}
}

func TestOpenServerWithoutPasswordRoundTrips(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, store, 1, "alice")
	// seedServer leaves Password nil, which must land as an empty hash
	seedServer(t, store, 100, owner)

	servers, err := store.ListServersForUser(ctx, owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(servers) != 1 {
		t.Fatalf("Listed %d servers, want 1", len(servers))
	}
	if len(servers[0].Password) != 0 {
		t.Errorf("Open server stored password %v, want empty", servers[0].Password)
	}
}

func TestMessageEventsMirrorOnServerTopic(t *testing.T) {
	store, bus := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, store, 1, "alice")
	server := seedServer(t, store, 100, owner)
	channelID := server.Channels[0].ID

	sub, err := bus.Subscribe(ServerTopic(server.ID))
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	msg := models.Message{ID: 500, ChannelID: channelID, UserID: owner.ID, Username: owner.Username, Content: "hi", CreatedAt: time.Now()}
	err = store.SendMessage(ctx, msg)
	if err != nil {
		t.Fatal(err)
	}

	event := receiveEvent(t, sub.C)
	if event.Type != MessageCreated {
		t.Errorf("Server topic received %q, want %q", event.Type, MessageCreated)
	}

	err = store.DeleteMessage(ctx, channelID, msg.ID, owner.ID)
	if err != nil {
		t.Fatal(err)
	}

	event = receiveEvent(t, sub.C)
	if event.Type != MessageDeleted {
		t.Errorf("Server topic received %q, want %q", event.Type, MessageDeleted)
	}
}

func TestJoinServerIsIdempotentAndEmits(t *testing.T) {
	store, bus := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, store, 1, "alice")
	server := seedServer(t, store, 100, owner)
	joiner := seedUser(t, store, 2, "bob")

	sub, err := bus.Subscribe(ServerTopic(server.ID))
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	member := models.ServerMember{ServerID: server.ID, UserID: joiner.ID, Username: joiner.Username, RoleIDs: []int64{104}, JoinedAt: time.Now()}

	err = store.JoinServer(ctx, member)
	if err != nil {
		t.Fatal(err)
	}

	event := receiveEvent(t, sub.C)
	if event.Type != MemberJoined {
		t.Errorf("Received event type %q, want %q", event.Type, MemberJoined)
	}

	// joining again neither fails nor duplicates the membership
	err = store.JoinServer(ctx, member)
	if err != nil {
		t.Fatal(err)
	}

	servers, err := store.ListServersForUser(ctx, joiner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(servers) != 1 || len(servers[0].Members) != 2 {
		t.Fatalf("After double join: %d servers with %d members, want 1 server with 2 members", len(servers), len(servers[0].Members))
	}
}

func TestMessageRoundTrip(t *testing.T) {
	store, bus := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, store, 1, "alice")
	server := seedServer(t, store, 100, owner)
	channelID := server.Channels[0].ID

	sub, err := bus.Subscribe(ChannelTopic(channelID))
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	msg := models.Message{
		ID:        500,
		ChannelID: channelID,
		UserID:    owner.ID,
		Username:  owner.Username,
		Content:   "hi",
		CreatedAt: time.Now(),
	}

	err = store.SendMessage(ctx, msg)
	if err != nil {
		t.Fatal(err)
	}

	event := receiveEvent(t, sub.C)
	if event.Type != MessageCreated {
		t.Fatalf("Received event type %q, want %q", event.Type, MessageCreated)
	}
	var mirrored models.Message
	err = event.Into(&mirrored)
	if err != nil {
		t.Fatal(err)
	}
	if mirrored.ID != msg.ID || mirrored.Content != "hi" {
		t.Errorf("Mirrored message %+v does not match what was sent", mirrored)
	}

	messages, err := store.ListMessages(ctx, channelID)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 1 || messages[0].Content != "hi" {
		t.Fatalf("Listed messages %+v, want just the sent one", messages)
	}

	// deleting someone else's message is refused
	err = store.DeleteMessage(ctx, channelID, msg.ID, 999)
	if err != ErrNotFound {
		t.Errorf("Deleting another sender's message returned %v, want ErrNotFound", err)
	}

	err = store.DeleteMessage(ctx, channelID, msg.ID, owner.ID)
	if err != nil {
		t.Fatal(err)
	}

	event = receiveEvent(t, sub.C)
	if event.Type != MessageDeleted {
		t.Errorf("Received event type %q, want %q", event.Type, MessageDeleted)
	}

	messages, err = store.ListMessages(ctx, channelID)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 0 {
		t.Errorf("Listed %d messages after delete, want 0", len(messages))
	}
}

func TestVoicePresence(t *testing.T) {
	store, bus := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, store, 1, "alice")
	server := seedServer(t, store, 100, owner)
	voiceID := server.Channels[1].ID

	sub, err := bus.Subscribe(ServerTopic(server.ID))
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	err = store.JoinVoice(ctx, models.VoiceState{ChannelID: voiceID, UserID: owner.ID, Username: owner.Username})
	if err != nil {
		t.Fatal(err)
	}

	event := receiveEvent(t, sub.C)
	if event.Type != VoiceJoined {
		t.Errorf("Received event type %q, want %q", event.Type, VoiceJoined)
	}

	// joining twice keeps a single presence row
	err = store.JoinVoice(ctx, models.VoiceState{ChannelID: voiceID, UserID: owner.ID, Username: owner.Username})
	if err != nil {
		t.Fatal(err)
	}
	receiveEvent(t, sub.C)

	states, err := store.VoiceParticipants(ctx, voiceID)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 1 || states[0].UserID != owner.ID {
		t.Fatalf("Voice participants %+v, want just alice", states)
	}

	err = store.LeaveVoice(ctx, voiceID, owner.ID)
	if err != nil {
		t.Fatal(err)
	}

	event = receiveEvent(t, sub.C)
	if event.Type != VoiceLeft {
		t.Errorf("Received event type %q, want %q", event.Type, VoiceLeft)
	}

	// leaving when not present is a no-op and emits nothing
	err = store.LeaveVoice(ctx, voiceID, owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case event := <-sub.C:
		t.Errorf("Received unexpected event %q after a no-op leave", event.Type)
	default:
	}
}

func TestUpsertUserRefreshesFields(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, store, 1, "alice")

	user.Picture = "avatars/alice.webp"
	user.Username = "alice2"
	err := store.UpsertUser(ctx, user)
	if err != nil {
		t.Fatal(err)
	}

	var username, picture string
	err = store.db.QueryRowContext(ctx, "SELECT username, picture FROM users WHERE id = ?", user.ID).Scan(&username, &picture)
	if err != nil {
		t.Fatal(err)
	}
	if username != "alice2" || picture != "avatars/alice.webp" {
		t.Errorf("Stored user is %q/%q, want alice2/avatars/alice.webp", username, picture)
	}

	var count int
	err = store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Found %d user rows after upsert, want 1", count)
	}
}
