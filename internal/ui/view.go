package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"parley/internal/models"
)

const sidebarWidth = 28

var (
	sidebarStyle = lipgloss.NewStyle().
			Width(sidebarWidth).
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	unreadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	senderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("235")).
			Background(lipgloss.Color("248")).
			Padding(0, 1)

	alertStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("203")).
			Padding(0, 2)

	titleStyle = lipgloss.NewStyle().Bold(true)
)

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Starting up..."
	}

	if m.mode == modeLogin {
		return m.loginView()
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), m.mainView())
	footer := m.footerView()
	screen := lipgloss.JoinVertical(lipgloss.Left, body, footer)

	if m.alert != "" {
		return m.overlay(alertStyle.Render(m.alert + "\n\n" + dimStyle.Render("enter to dismiss")))
	}
	if m.mode == modePicker {
		return m.overlay(m.pickerView())
	}

	return screen
}

func (m *Model) loginView() string {
	box := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("parley"),
		"",
		m.input.View(),
		"",
		dimStyle.Render("enter to log in, ctrl+c to quit"),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m *Model) sidebarView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Servers") + "\n")
	for i := range m.session.Servers {
		server := &m.session.Servers[i]
		line := server.Name
		if count := m.serverUnread(server); count > 0 {
			line += unreadStyle.Render(fmt.Sprintf(" (%d)", count))
		}
		if server.ID == m.session.ActiveServerID {
			line = activeStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	server := m.session.ActiveServer()
	if server != nil {
		b.WriteString("\n" + titleStyle.Render("Channels") + "\n")
		for i := range server.Channels {
			channel := &server.Channels[i]
			b.WriteString(m.channelLine(channel))
			for _, state := range m.session.VoiceRoster[channel.ID] {
				b.WriteString(dimStyle.Render("    "+state.Username) + "\n")
			}
		}
	}

	height := m.height - 2
	if height < 3 {
		height = 3
	}
	return sidebarStyle.Height(height).Render(b.String())
}

func (m *Model) channelLine(channel *models.Channel) string {
	marker := "#"
	if channel.Type == models.ChannelTypeVoice {
		marker = "~"
	}

	line := marker + channel.Name
	if count := m.session.Unread[channel.ID]; count > 0 {
		line += unreadStyle.Render(fmt.Sprintf(" (%d)", count))
	}
	if channel.ID == m.session.ActiveChannelID {
		line = activeStyle.Render("> " + line)
	} else {
		line = "  " + line
	}
	return line + "\n"
}

func (m *Model) serverUnread(server *models.Server) int {
	total := 0
	for i := range server.Channels {
		total += m.session.Unread[server.Channels[i].ID]
	}
	return total
}

func (m *Model) mainView() string {
	if m.session.VoiceConnected {
		return m.voiceView()
	}

	var input string
	if m.mode == modePrompt {
		input = m.promptTitle() + "\n" + m.input.View()
	} else {
		input = "\n" + m.input.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.chat.View(), input)
}

// voiceView replaces the message pane while connected to a voice channel.
func (m *Model) voiceView() string {
	channel := m.session.ActiveChannel()
	name := "voice"
	if channel != nil {
		name = channel.Name
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("~"+name) + "\n\n")
	for _, state := range m.session.VoiceRoster[m.session.ActiveChannelID] {
		who := state.Username
		if state.UserID == m.session.User.ID {
			flags := audioFlags(m.session.Muted, m.session.Deafened)
			if flags != "" {
				who += " " + dimStyle.Render(flags)
			}
			who = activeStyle.Render(who)
		}
		b.WriteString("  " + who + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("esc to disconnect"))

	return lipgloss.Place(m.chat.Width, m.chat.Height+2, lipgloss.Center, lipgloss.Center, b.String())
}

func (m *Model) promptTitle() string {
	switch m.prompt {
	case promptCreateServer, promptCreateServerPassword:
		return titleStyle.Render("Create server")
	case promptJoinServer, promptJoinServerPassword:
		return titleStyle.Render("Join server")
	case promptCreateChannel:
		return titleStyle.Render("Create channel")
	case promptSetAvatar:
		return titleStyle.Render("Set avatar")
	}
	return ""
}

func (m *Model) footerView() string {
	user := m.session.User.Username
	flags := audioFlags(m.session.Muted, m.session.Deafened)
	if flags != "" {
		user += " " + flags
	}

	hints := "ctrl+k jump | ctrl+n new server | ctrl+g join | ctrl+t new channel | alt+m mute | alt+d deafen"
	gap := m.width - lipgloss.Width(user) - lipgloss.Width(hints) - 2
	if gap < 1 {
		gap = 1
	}
	return statusStyle.Width(m.width).Render(user + strings.Repeat(" ", gap) + hints)
}

func audioFlags(muted, deafened bool) string {
	switch {
	case deafened:
		return "[deaf]"
	case muted:
		return "[muted]"
	}
	return ""
}

func (m *Model) pickerView() string {
	var b strings.Builder
	b.WriteString(m.picker.input.View() + "\n\n")

	shown := m.picker.filtered
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for i, item := range shown {
		if i == m.picker.cursor {
			b.WriteString(activeStyle.Render("> "+item.label) + "\n")
		} else {
			b.WriteString("  " + item.label + "\n")
		}
	}
	if len(m.picker.filtered) == 0 {
		b.WriteString(dimStyle.Render("no matches"))
	}

	return alertStyle.BorderForeground(lipgloss.Color("39")).Render(b.String())
}

func (m *Model) overlay(box string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// refreshChat rebuilds the viewport from the active channel's history and
// keeps it pinned to the latest message.
func (m *Model) refreshChat() {
	if !m.ready {
		return
	}

	channel := m.session.ActiveChannel()
	if channel == nil {
		m.chat.SetContent(dimStyle.Render("No channel selected. ctrl+n creates a server, ctrl+g joins one."))
		return
	}

	lines := make([]string, 0, len(channel.Messages)+1)
	lines = append(lines, titleStyle.Render("#"+channel.Name))
	for i := range channel.Messages {
		lines = append(lines, renderMessage(&channel.Messages[i], m.chat.Width))
	}

	m.chat.SetContent(strings.Join(lines, "\n"))
	m.chat.GotoBottom()
}

func renderMessage(message *models.Message, width int) string {
	if message.System {
		return systemStyle.Render("* " + message.Content)
	}

	stamp := dimStyle.Render(message.CreatedAt.Local().Format("15:04"))
	head := fmt.Sprintf("%s %s", stamp, senderStyle.Render(message.Username))
	body := message.Content
	if width > 8 {
		body = lipgloss.NewStyle().Width(width).Render(body)
	}
	return head + "\n" + body
}
