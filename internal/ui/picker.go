package ui

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"parley/internal/models"
)

// pickerItem is one jump target: a channel within a server.
type pickerItem struct {
	label     string
	serverID  int64
	channelID int64
}

type pickerState struct {
	input    textinput.Model
	items    []pickerItem
	filtered []pickerItem
	cursor   int
}

func (m *Model) openPicker() {
	input := textinput.New()
	input.Placeholder = "Jump to channel"
	input.Focus()

	items := []pickerItem{}
	for _, server := range m.session.Servers {
		for _, channel := range server.Channels {
			marker := "#"
			if channel.Type == models.ChannelTypeVoice {
				marker = "~"
			}
			items = append(items, pickerItem{
				label:     fmt.Sprintf("%s / %s%s", server.Name, marker, channel.Name),
				serverID:  server.ID,
				channelID: channel.ID,
			})
		}
	}

	m.picker = pickerState{input: input, items: items, filtered: items}
	m.mode = modePicker
}

func (m *Model) filterPicker() {
	query := m.picker.input.Value()
	if query == "" {
		m.picker.filtered = m.picker.items
		m.picker.cursor = 0
		return
	}

	labels := make([]string, len(m.picker.items))
	for i, item := range m.picker.items {
		labels[i] = item.label
	}

	ranks := fuzzy.RankFindFold(query, labels)
	sort.Sort(ranks)

	filtered := make([]pickerItem, 0, len(ranks))
	for _, rank := range ranks {
		filtered = append(filtered, m.picker.items[rank.OriginalIndex])
	}

	m.picker.filtered = filtered
	if m.picker.cursor >= len(filtered) {
		m.picker.cursor = 0
	}
}

func (m *Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeChat
		return m, nil

	case "up":
		if m.picker.cursor > 0 {
			m.picker.cursor--
		}
		return m, nil

	case "down":
		if m.picker.cursor < len(m.picker.filtered)-1 {
			m.picker.cursor++
		}
		return m, nil

	case "enter":
		if m.picker.cursor < len(m.picker.filtered) {
			item := m.picker.filtered[m.picker.cursor]
			if item.serverID != m.session.ActiveServerID {
				err := m.session.SelectServer(context.Background(), item.serverID)
				if err != nil {
					m.sugar.Error(err)
				}
			}
			m.selectChannel(item.channelID)
		}
		m.mode = modeChat
		return m, nil
	}

	return m.updateFocused(msg)
}
