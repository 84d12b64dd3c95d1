package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"parley/internal/backend"
	"parley/internal/botgate"
)

type bridgeEventMsg struct {
	event backend.Event
}

type bridgeDoneMsg struct{}

type botResponseMsg struct {
	response botgate.Response
}

type botDoneMsg struct{}

// waitForBridgeEvent reads one realtime event and hands it to the event
// loop; the handler re-arms it.
func waitForBridgeEvent(events <-chan backend.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return bridgeDoneMsg{}
		}
		return bridgeEventMsg{event: event}
	}
}

func waitForBotResponse(responses <-chan botgate.Response) tea.Cmd {
	return func() tea.Msg {
		response, ok := <-responses
		if !ok {
			return botDoneMsg{}
		}
		return botResponseMsg{response: response}
	}
}
