package ui

import (
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// InputModel is the message composer under the conversation.
type InputModel struct {
	input   textinput.Model
	focused bool
	width   int
	height  int
}

func NewInputModel() InputModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message, Esc to leave"
	ti.CharLimit = 4000
	return InputModel{input: ti}
}

func (m InputModel) Init() tea.Cmd {
	return nil
}

func (m InputModel) Update(msg tea.Msg) (InputModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		text := m.input.Value()
		if text == "" {
			return m, nil
		}
		m.input.Reset()

		cmd, isCommand, err := parseInput(text)
		switch {
		case err != nil:
			return m, func() tea.Msg { return ErrorMsg{Err: err} }
		case isCommand:
			return m, func() tea.Msg { return commandMsg{cmd: cmd} }
		default:
			body := unescapeText(text)
			return m, func() tea.Msg { return sendMessageMsg{text: body} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m InputModel) View() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(m.width).
		Height(m.height)
	style = applyBorderColor(style, m.focused)
	return style.Render(m.input.View())
}

func (m InputModel) SetSize(w, h int) InputModel {
	m.width = w
	m.height = h
	inner := w - 4
	if inner < 1 {
		inner = 1
	}
	m.input.SetWidth(inner)
	return m
}

func (m InputModel) SetFocused(f bool) (InputModel, tea.Cmd) {
	m.focused = f
	if f {
		cmd := m.input.Focus()
		return m, cmd
	}
	m.input.Blur()
	return m, nil
}
