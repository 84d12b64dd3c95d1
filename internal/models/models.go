package models

import "time"

const (
	ChannelTypeText  = "text"
	ChannelTypeVoice = "voice"
)

type User struct {
	ID        int64     `json:"id,string"`
	Username  string    `json:"username"`
	Picture   string    `json:"picture"`
	CreatedAt time.Time `json:"createdAt"`
}

type Server struct {
	ID      int64  `json:"id,string"`
	OwnerID int64  `json:"ownerID,string"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	// bcrypt hash, empty when the server is open to join without a password
	Password []byte `json:"password,omitempty"`

	Channels []Channel      `json:"channels,omitempty"`
	Roles    []Role         `json:"roles,omitempty"`
	Members  []ServerMember `json:"members,omitempty"`
}

type Channel struct {
	ID       int64  `json:"id,string"`
	ServerID int64  `json:"serverID,string"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Position int    `json:"position"`

	// populated lazily on the client, never written to the backend
	Messages []Message `json:"-"`
}

type Role struct {
	ID       int64  `json:"id,string"`
	ServerID int64  `json:"serverID,string"`
	Name     string `json:"name"`
	Admin    bool   `json:"admin"`
}

type ServerMember struct {
	ServerID int64     `json:"serverID,string"`
	UserID   int64     `json:"userID,string"`
	Username string    `json:"username"`
	Picture  string    `json:"picture"`
	RoleIDs  []int64   `json:"roleIDs"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Message struct {
	ID        int64     `json:"id,string"`
	ChannelID int64     `json:"channelID,string"`
	UserID    int64     `json:"userID,string"`
	Username  string    `json:"username"`
	Picture   string    `json:"picture"`
	Content   string    `json:"content"`
	System    bool      `json:"system"`
	CreatedAt time.Time `json:"createdAt"`
}

type VoiceState struct {
	ChannelID int64  `json:"channelID,string"`
	UserID    int64  `json:"userID,string"`
	Username  string `json:"username"`
	Picture   string `json:"picture"`
}
