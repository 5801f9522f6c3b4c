package ui

import "charm.land/lipgloss/v2"

// HelpModel renders a centered help overlay listing keys and commands.
type HelpModel struct {
	visible       bool
	width, height int
}

func NewHelpModel() HelpModel {
	return HelpModel{}
}

func (h HelpModel) IsVisible() bool {
	return h.visible
}

func (h HelpModel) Toggle() HelpModel {
	h.visible = !h.visible
	return h
}

func (h HelpModel) SetSize(w, ht int) HelpModel {
	h.width = w
	h.height = ht
	return h
}

const helpText = ` Keys

 General
   Ctrl+C        Quit
   ? / F1        Toggle this help
   Tab           Next pane
   Shift+Tab     Previous pane
   Esc           Back to people

 People
   j/k / ↑/↓     Navigate
   Enter         Open conversation
   /             Filter by name

 Conversation
   j / k         Scroll down / up
   G             Jump to latest

 Composer
   Enter             Send
   /image <path>     Send a PNG or JPEG
   /name <name>      Change your name
   /bio <text>       Change your bio
   /avatar <path>    Change your picture
   /refresh          Reload people and history
   /logout           Sign out
   //text            Send text starting with /

 Press ?, F1, or Esc to close`

// View renders the help box. BoxOffset gives its centered position.
func (h HelpModel) View() string {
	if !h.visible || h.width == 0 || h.height == 0 {
		return ""
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1, 3).
		BorderForegroundBlend(rainbowBlend...).
		Render(helpText)
}

// BoxOffset returns the (x, y) that centers the help box.
func (h HelpModel) BoxOffset() (int, int) {
	box := h.View()
	x := (h.width - lipgloss.Width(box)) / 2
	y := (h.height - lipgloss.Height(box)) / 2
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return x, y
}
