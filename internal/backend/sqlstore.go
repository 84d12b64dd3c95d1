package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"parley/internal/models"
)

// SQLStore implements Service on database/sql. Self-contained deployments
// use sqlite, shared ones mysql/mariadb; the schema and every query are
// written to work on both. Timestamps are stored as unix milliseconds to
// stay out of the two dialects' date handling.
type SQLStore struct {
	db    *sql.DB
	rt    Realtime
	sugar *zap.SugaredLogger
}

func OpenSQLite(path string, rt Realtime, sugar *zap.SugaredLogger) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// there can be sqlite busy errors if this is not set to 1
	db.SetMaxOpenConns(1)

	err = setPragmaValues(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return newSQLStore(db, rt, sugar)
}

func OpenMySQL(user, password, address, port, database string, rt Realtime, sugar *zap.SugaredLogger) (*SQLStore, error) {
	connString := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&timeout=10s", user, password, address, port, database)

	db, err := sql.Open("mysql", connString)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)

	return newSQLStore(db, rt, sugar)
}

func newSQLStore(db *sql.DB, rt Realtime, sugar *zap.SugaredLogger) (*SQLStore, error) {
	err := setupTables(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{db: db, rt: rt, sugar: sugar}, nil
}

func setPragmaValues(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	// these next 2 extremely speed up performance of sqlite
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return err
	}

	if _, err := db.Exec("PRAGMA synchronous = normal"); err != nil {
		return err
	}

	return nil
}

func setupTables(db *sql.DB) error {
	statements := []string{
		`
			CREATE TABLE IF NOT EXISTS users (
				id BIGINT PRIMARY KEY,
				username VARCHAR(32) NOT NULL UNIQUE,
				picture TEXT NOT NULL,
				created_at BIGINT NOT NULL
			);
		`,
		`
			CREATE TABLE IF NOT EXISTS servers (
				id BIGINT PRIMARY KEY,
				owner_id BIGINT NOT NULL,
				name VARCHAR(64) NOT NULL,
				picture TEXT NOT NULL,
				password BINARY(60) NOT NULL,
				FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
			);
		`,
		`
			CREATE TABLE IF NOT EXISTS server_members (
				server_id BIGINT NOT NULL,
				user_id BIGINT NOT NULL,
				username VARCHAR(32) NOT NULL,
				picture TEXT NOT NULL,
				role_ids TEXT NOT NULL,
				joined_at BIGINT NOT NULL,
				PRIMARY KEY (server_id, user_id),
				FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
			);
		`,
		`
			CREATE TABLE IF NOT EXISTS roles (
				id BIGINT PRIMARY KEY,
				server_id BIGINT NOT NULL,
				name VARCHAR(32) NOT NULL,
				admin BOOLEAN NOT NULL,
				FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
			);
		`,
		`
			CREATE TABLE IF NOT EXISTS channels (
				id BIGINT PRIMARY KEY,
				server_id BIGINT NOT NULL,
				name VARCHAR(32) NOT NULL,
				type VARCHAR(8) NOT NULL,
				position INT NOT NULL,
				FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
			);
		`,
		`
			CREATE TABLE IF NOT EXISTS messages (
				id BIGINT PRIMARY KEY,
				channel_id BIGINT NOT NULL,
				user_id BIGINT NOT NULL,
				username VARCHAR(32) NOT NULL,
				picture TEXT NOT NULL,
				content TEXT NOT NULL,
				is_system BOOLEAN NOT NULL,
				created_at BIGINT NOT NULL,
				FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE
			);
		`,
		`
			CREATE TABLE IF NOT EXISTS voice_states (
				channel_id BIGINT NOT NULL,
				user_id BIGINT NOT NULL,
				username VARCHAR(32) NOT NULL,
				picture TEXT NOT NULL,
				PRIMARY KEY (channel_id, user_id),
				FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE
			);
		`,
	}

	for _, statement := range statements {
		_, err := db.Exec(statement)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) Realtime() Realtime {
	return s.rt
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// emit publishes a change event after a successful write. A publish
// failure never fails the write itself, subscribers just miss one event.
func (s *SQLStore) emit(topic string, eventType string, payload any) error {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		return err
	}

	err = s.rt.Publish(topic, event)
	if err != nil {
		s.sugar.Errorf("Publishing %s to %s failed: %v", eventType, topic, err)
	}
	return nil
}

func (s *SQLStore) UpsertUser(ctx context.Context, user models.User) error {
	// UPDATE first, INSERT on zero rows; portable across both dialects
	result, err := s.db.ExecContext(ctx, "UPDATE users SET username = ?, picture = ? WHERE id = ?", user.Username, user.Picture, user.ID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, "INSERT INTO users VALUES(?, ?, ?, ?)", user.ID, user.Username, user.Picture, user.CreatedAt.UnixMilli())
	return err
}

func (s *SQLStore) CreateServer(ctx context.Context, server models.Server) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// a nil hash would land as NULL in the NOT NULL password column
	password := server.Password
	if password == nil {
		password = []byte{}
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO servers VALUES(?, ?, ?, ?, ?)", server.ID, server.OwnerID, server.Name, server.Picture, password)
	if err != nil {
		return err
	}

	for _, channel := range server.Channels {
		_, err = tx.ExecContext(ctx, "INSERT INTO channels VALUES(?, ?, ?, ?, ?)", channel.ID, server.ID, channel.Name, channel.Type, channel.Position)
		if err != nil {
			return err
		}
	}

	for _, role := range server.Roles {
		_, err = tx.ExecContext(ctx, "INSERT INTO roles VALUES(?, ?, ?, ?)", role.ID, server.ID, role.Name, role.Admin)
		if err != nil {
			return err
		}
	}

	for _, member := range server.Members {
		err = insertMember(ctx, tx, server.ID, member)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertMember(ctx context.Context, tx *sql.Tx, serverID int64, member models.ServerMember) error {
	roleIDs, err := json.Marshal(member.RoleIDs)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO server_members VALUES(?, ?, ?, ?, ?, ?)",
		serverID, member.UserID, member.Username, member.Picture, roleIDs, member.JoinedAt.UnixMilli())
	return err
}

func (s *SQLStore) JoinServer(ctx context.Context, member models.ServerMember) error {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM server_members WHERE server_id = ? AND user_id = ?", member.ServerID, member.UserID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = insertMember(ctx, tx, member.ServerID, member)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return err
	}

	return s.emit(ServerTopic(member.ServerID), MemberJoined, member)
}

func (s *SQLStore) CreateChannel(ctx context.Context, channel models.Channel) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO channels VALUES(?, ?, ?, ?, ?)",
		channel.ID, channel.ServerID, channel.Name, channel.Type, channel.Position)
	if err != nil {
		return err
	}

	return s.emit(ServerTopic(channel.ServerID), ChannelCreated, channel)
}

func (s *SQLStore) SendMessage(ctx context.Context, message models.Message) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO messages VALUES(?, ?, ?, ?, ?, ?, ?, ?)",
		message.ID, message.ChannelID, message.UserID, message.Username, message.Picture,
		message.Content, message.System, message.CreatedAt.UnixMilli())
	if err != nil {
		return err
	}

	serverID, err := s.serverOfChannel(ctx, message.ChannelID)
	if err != nil {
		return err
	}

	// mirrored on the server topic so clients watching a different channel
	// of the same server still see it (unread counters)
	err = s.emit(ChannelTopic(message.ChannelID), MessageCreated, message)
	if err != nil {
		return err
	}
	return s.emit(ServerTopic(serverID), MessageCreated, message)
}

func (s *SQLStore) DeleteMessage(ctx context.Context, channelID int64, messageID int64, senderID int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ? AND channel_id = ? AND user_id = ?", messageID, channelID, senderID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	serverID, err := s.serverOfChannel(ctx, channelID)
	if err != nil {
		return err
	}

	ref := MessageRef{ID: messageID, ChannelID: channelID}
	err = s.emit(ChannelTopic(channelID), MessageDeleted, ref)
	if err != nil {
		return err
	}
	return s.emit(ServerTopic(serverID), MessageDeleted, ref)
}

func (s *SQLStore) ListMessages(ctx context.Context, channelID int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, channel_id, user_id, username, picture, content, is_system, created_at FROM messages WHERE channel_id = ? ORDER BY id", channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		var createdAt int64

		err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.UserID, &msg.Username, &msg.Picture, &msg.Content, &msg.System, &createdAt)
		if err != nil {
			return nil, err
		}

		msg.CreatedAt = time.UnixMilli(createdAt)
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (s *SQLStore) ListServersForUser(ctx context.Context, userID int64) ([]models.Server, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT s.id, s.owner_id, s.name, s.picture, s.password FROM servers s JOIN server_members m ON s.id = m.server_id WHERE m.user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	servers := []models.Server{}
	for rows.Next() {
		var server models.Server

		err := rows.Scan(&server.ID, &server.OwnerID, &server.Name, &server.Picture, &server.Password)
		if err != nil {
			return nil, err
		}

		servers = append(servers, server)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range servers {
		servers[i].Channels, err = s.listChannels(ctx, servers[i].ID)
		if err != nil {
			return nil, err
		}

		servers[i].Roles, err = s.listRoles(ctx, servers[i].ID)
		if err != nil {
			return nil, err
		}

		servers[i].Members, err = s.listMembers(ctx, servers[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return servers, nil
}

func (s *SQLStore) listChannels(ctx context.Context, serverID int64) ([]models.Channel, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, server_id, name, type, position FROM channels WHERE server_id = ? ORDER BY position, id", serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channels := []models.Channel{}
	for rows.Next() {
		var channel models.Channel

		err := rows.Scan(&channel.ID, &channel.ServerID, &channel.Name, &channel.Type, &channel.Position)
		if err != nil {
			return nil, err
		}

		channels = append(channels, channel)
	}

	return channels, rows.Err()
}

func (s *SQLStore) listRoles(ctx context.Context, serverID int64) ([]models.Role, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, server_id, name, admin FROM roles WHERE server_id = ? ORDER BY id", serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []models.Role{}
	for rows.Next() {
		var role models.Role

		err := rows.Scan(&role.ID, &role.ServerID, &role.Name, &role.Admin)
		if err != nil {
			return nil, err
		}

		roles = append(roles, role)
	}

	return roles, rows.Err()
}

func (s *SQLStore) listMembers(ctx context.Context, serverID int64) ([]models.ServerMember, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT server_id, user_id, username, picture, role_ids, joined_at FROM server_members WHERE server_id = ? ORDER BY joined_at, user_id", serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []models.ServerMember{}
	for rows.Next() {
		var member models.ServerMember
		var roleIDs []byte
		var joinedAt int64

		err := rows.Scan(&member.ServerID, &member.UserID, &member.Username, &member.Picture, &roleIDs, &joinedAt)
		if err != nil {
			return nil, err
		}

		err = json.Unmarshal(roleIDs, &member.RoleIDs)
		if err != nil {
			return nil, err
		}

		member.JoinedAt = time.UnixMilli(joinedAt)
		members = append(members, member)
	}

	return members, rows.Err()
}

func (s *SQLStore) JoinVoice(ctx context.Context, state models.VoiceState) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM voice_states WHERE channel_id = ? AND user_id = ?", state.ChannelID, state.UserID)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, "INSERT INTO voice_states VALUES(?, ?, ?, ?)", state.ChannelID, state.UserID, state.Username, state.Picture)
	if err != nil {
		return err
	}

	serverID, err := s.serverOfChannel(ctx, state.ChannelID)
	if err != nil {
		return err
	}

	return s.emit(ServerTopic(serverID), VoiceJoined, state)
}

func (s *SQLStore) LeaveVoice(ctx context.Context, channelID int64, userID int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM voice_states WHERE channel_id = ? AND user_id = ?", channelID, userID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return nil
	}

	serverID, err := s.serverOfChannel(ctx, channelID)
	if err != nil {
		return err
	}

	return s.emit(ServerTopic(serverID), VoiceLeft, models.VoiceState{ChannelID: channelID, UserID: userID})
}

func (s *SQLStore) VoiceParticipants(ctx context.Context, channelID int64) ([]models.VoiceState, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT channel_id, user_id, username, picture FROM voice_states WHERE channel_id = ? ORDER BY user_id", channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := []models.VoiceState{}
	for rows.Next() {
		var state models.VoiceState

		err := rows.Scan(&state.ChannelID, &state.UserID, &state.Username, &state.Picture)
		if err != nil {
			return nil, err
		}

		states = append(states, state)
	}

	return states, rows.Err()
}

func (s *SQLStore) serverOfChannel(ctx context.Context, channelID int64) (int64, error) {
	var serverID int64
	err := s.db.QueryRowContext(ctx, "SELECT server_id FROM channels WHERE id = ?", channelID).Scan(&serverID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return serverID, err
}
