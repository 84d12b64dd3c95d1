// Package ui is the terminal shell around the session: one bubbletea
// event loop that owns every state mutation. Bridge and bot events enter
// the loop as messages via re-armed wait commands, so merges never race
// with key handling.
package ui

import (
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"parley/internal/botgate"
	"parley/internal/bridge"
	"parley/internal/session"
)

type mode int

const (
	modeLogin mode = iota
	modeChat
	modePrompt
	modePicker
)

type promptKind int

const (
	promptCreateServer promptKind = iota
	promptCreateServerPassword
	promptJoinServer
	promptJoinServerPassword
	promptCreateChannel
	promptSetAvatar
)

type Model struct {
	session *session.Session
	bridge  *bridge.Bridge
	bot     <-chan botgate.Response
	sugar   *zap.SugaredLogger

	mode   mode
	prompt promptKind
	// carries the name field while a password prompt is on screen
	promptName string

	input    textinput.Model
	chat     viewport.Model
	picker   pickerState
	alert    string
	quitting bool

	width  int
	height int
	ready  bool
}

func New(sess *session.Session, br *bridge.Bridge, bot <-chan botgate.Response, sugar *zap.SugaredLogger) *Model {
	input := textinput.New()
	input.Placeholder = "Message"
	input.CharLimit = 2000
	input.Focus()

	m := &Model{
		session: sess,
		bridge:  br,
		bot:     bot,
		sugar:   sugar,
		mode:    modeChat,
		input:   input,
	}

	if !sess.LoggedIn() {
		m.mode = modeLogin
		m.input.Placeholder = "Pick a username"
	}

	return m
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		waitForBridgeEvent(m.bridge.Events()),
	}
	if m.bot != nil {
		cmds = append(cmds, waitForBotResponse(m.bot))
	}
	return tea.Batch(cmds...)
}
