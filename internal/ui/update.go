package ui

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"parley/internal/models"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case bridgeEventMsg:
		m.session.Apply(msg.event)
		m.refreshChat()
		return m, waitForBridgeEvent(m.bridge.Events())

	case bridgeDoneMsg:
		// the bridge was closed, nothing left to wait for
		return m, nil

	case botResponseMsg:
		err := m.session.SendBotResponse(context.Background(), msg.response.ChannelID, msg.response.Content)
		if err != nil {
			m.sugar.Errorf("Sending bot response to channel %d failed: %v", msg.response.ChannelID, err)
		}
		return m, waitForBotResponse(m.bot)

	case botDoneMsg:
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateFocused(msg)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		m.bridge.Close()
		return m, tea.Quit
	}

	// a visible alert blocks everything until dismissed
	if m.alert != "" {
		switch msg.String() {
		case "enter", "esc":
			m.alert = ""
		}
		return m, nil
	}

	switch m.mode {
	case modeLogin:
		return m.handleLoginKey(msg)
	case modePrompt:
		return m.handlePromptKey(msg)
	case modePicker:
		return m.handlePickerKey(msg)
	default:
		return m.handleChatKey(msg)
	}
}

func (m *Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		err := m.session.Login(context.Background(), m.input.Value())
		if err != nil {
			m.alert = fmt.Sprintf("Login failed: %v", err)
			return m, nil
		}

		m.mode = modeChat
		m.input.Reset()
		m.input.Placeholder = "Message"
		m.refreshChat()
		return m, nil
	}

	return m.updateFocused(msg)
}

func (m *Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()

	switch msg.String() {
	case "enter":
		content := m.input.Value()
		if content == "" {
			return m, nil
		}
		err := m.session.SendMessage(ctx, content)
		if err != nil {
			m.alert = fmt.Sprintf("Sending failed: %v", err)
			return m, nil
		}
		// the message comes back through the bridge, nothing to insert here
		m.input.Reset()
		return m, nil

	case "esc":
		err := m.session.LeaveVoice(ctx)
		if err != nil {
			m.sugar.Error(err)
		}
		m.refreshChat()
		return m, nil

	case "ctrl+k":
		m.openPicker()
		return m, nil

	case "ctrl+n":
		m.openPrompt(promptCreateServer, "Server name")
		return m, nil

	case "ctrl+g":
		m.openPrompt(promptJoinServer, "Server name to join")
		return m, nil

	case "ctrl+t":
		m.openPrompt(promptCreateChannel, "Channel name (prefix with ~ for voice)")
		return m, nil

	case "ctrl+p":
		m.openPrompt(promptSetAvatar, "Path to an image file")
		return m, nil

	case "ctrl+d":
		m.deleteLastOwnMessage(ctx)
		return m, nil

	case "alt+m":
		m.session.ToggleMute()
		return m, nil

	case "alt+d":
		m.session.ToggleDeafen()
		return m, nil

	case "alt+down", "alt+up":
		m.stepChannel(msg.String() == "alt+down")
		return m, nil

	case "alt+right", "alt+left":
		m.stepServer(msg.String() == "alt+right")
		return m, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd
	}

	return m.updateFocused(msg)
}

func (m *Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closePrompt()
		return m, nil
	case "enter":
		m.submitPrompt()
		return m, nil
	}

	return m.updateFocused(msg)
}

func (m *Model) openPrompt(kind promptKind, placeholder string) {
	m.mode = modePrompt
	m.prompt = kind
	m.promptName = ""
	m.input.Reset()
	m.input.Placeholder = placeholder
}

func (m *Model) closePrompt() {
	m.mode = modeChat
	m.input.Reset()
	m.input.Placeholder = "Message"
	m.input.EchoMode = textinput.EchoNormal
}

func (m *Model) submitPrompt() {
	ctx := context.Background()
	value := m.input.Value()

	switch m.prompt {
	case promptCreateServer:
		m.promptName = value
		m.prompt = promptCreateServerPassword
		m.input.Reset()
		m.input.Placeholder = "Password (empty for an open server)"
		m.input.EchoMode = textinput.EchoPassword
		return

	case promptCreateServerPassword:
		err := m.session.CreateServer(ctx, m.promptName, value)
		if err != nil {
			m.alert = fmt.Sprintf("Creating the server failed: %v", err)
		}

	case promptJoinServer:
		m.promptName = value
		m.prompt = promptJoinServerPassword
		m.input.Reset()
		m.input.Placeholder = "Password (empty if none)"
		m.input.EchoMode = textinput.EchoPassword
		return

	case promptJoinServerPassword:
		err := m.session.JoinServer(ctx, m.promptName, value)
		if err != nil {
			m.alert = fmt.Sprintf("Joining failed: %v", err)
		}

	case promptSetAvatar:
		file, err := os.Open(value)
		if err != nil {
			m.alert = fmt.Sprintf("Opening the picture failed: %v", err)
			break
		}
		err = m.session.SetAvatar(ctx, file)
		file.Close()
		if err != nil {
			m.alert = fmt.Sprintf("Setting the avatar failed: %v", err)
		}

	case promptCreateChannel:
		name := value
		channelType := models.ChannelTypeText
		if len(name) > 0 && name[0] == '~' {
			name = name[1:]
			channelType = models.ChannelTypeVoice
		}
		err := m.session.CreateChannel(ctx, name, channelType)
		if err != nil {
			m.alert = fmt.Sprintf("Creating the channel failed: %v", err)
		}
	}

	m.closePrompt()
	m.refreshChat()
}

// deleteLastOwnMessage removes the user's most recent message in the
// active channel; the list shrinks when the event comes back.
func (m *Model) deleteLastOwnMessage(ctx context.Context) {
	channel := m.session.ActiveChannel()
	if channel == nil {
		return
	}

	for i := len(channel.Messages) - 1; i >= 0; i-- {
		message := channel.Messages[i]
		if message.UserID == m.session.User.ID && !message.System {
			err := m.session.DeleteMessage(ctx, message.ID)
			if err != nil {
				m.alert = fmt.Sprintf("Deleting the message failed: %v", err)
			}
			return
		}
	}
}

// stepChannel selects the next/previous channel of the active server.
func (m *Model) stepChannel(forward bool) {
	server := m.session.ActiveServer()
	if server == nil || len(server.Channels) == 0 {
		return
	}

	index := 0
	for i := range server.Channels {
		if server.Channels[i].ID == m.session.ActiveChannelID {
			index = i
			break
		}
	}

	if forward {
		index = (index + 1) % len(server.Channels)
	} else {
		index = (index - 1 + len(server.Channels)) % len(server.Channels)
	}

	m.selectChannel(server.Channels[index].ID)
}

func (m *Model) stepServer(forward bool) {
	servers := m.session.Servers
	if len(servers) == 0 {
		return
	}

	index := 0
	for i := range servers {
		if servers[i].ID == m.session.ActiveServerID {
			index = i
			break
		}
	}

	if forward {
		index = (index + 1) % len(servers)
	} else {
		index = (index - 1 + len(servers)) % len(servers)
	}

	err := m.session.SelectServer(context.Background(), servers[index].ID)
	if err != nil {
		m.sugar.Error(err)
	}
	m.refreshChat()
}

func (m *Model) selectChannel(channelID int64) {
	err := m.session.SelectChannel(context.Background(), channelID)
	if err != nil {
		m.alert = fmt.Sprintf("Selecting the channel failed: %v", err)
	}
	m.refreshChat()
}

// updateFocused forwards remaining messages to the focused text input.
func (m *Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.mode == modePicker {
		m.picker.input, cmd = m.picker.input.Update(msg)
		m.filterPicker()
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	chatWidth := width - sidebarWidth - 4
	chatHeight := height - 4
	if chatWidth < 10 {
		chatWidth = 10
	}
	if chatHeight < 3 {
		chatHeight = 3
	}

	if !m.ready {
		m.chat = viewport.New(chatWidth, chatHeight)
		m.ready = true
	} else {
		m.chat.Width = chatWidth
		m.chat.Height = chatHeight
	}

	m.input.Width = chatWidth - 2
	m.refreshChat()
}
