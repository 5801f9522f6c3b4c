package ui

import (
	"strings"
	"time"

	"charm.land/lipgloss/v2"
)

var (
	statusBarBg = lipgloss.Color("#353533")
	// Pill colors per connection state.
	statusPillOnline   = lipgloss.Color("#FF5FAF")
	statusPillPending  = lipgloss.Color("#6C5098")
	statusPillDegraded = lipgloss.Color("#C0392B")
	statusTimeBg       = lipgloss.Color("#6124DF")
)

type statusModel struct {
	state    string // online, connecting, degraded, unauthenticated...
	notice   string
	isError  bool
	peerName string
	userName string
	width    int
}

func newStatusModel() statusModel {
	return statusModel{state: "starting"}
}

func (m statusModel) SetWidth(w int) statusModel {
	m.width = w
	return m
}

// SetNotice shows a transient message next to the peer name.
func (m statusModel) SetNotice(text string, isError bool) statusModel {
	m.notice = text
	m.isError = isError
	return m
}

// View renders a full-width status bar:
// [STATE pill] [peer] [notice] ... [user] [time pill]
func (m statusModel) View() string {
	pillBg := statusPillPending
	switch m.state {
	case "online":
		pillBg = statusPillOnline
	case "degraded":
		pillBg = statusPillDegraded
	}
	pill := lipgloss.NewStyle().
		Background(pillBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1).
		Render(strings.ToUpper(m.state))

	title := lipgloss.NewStyle().
		Background(statusBarBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1).
		Render(m.peerName)

	noticeFg := lipgloss.Color("250")
	if m.isError {
		noticeFg = lipgloss.Color("#FF8787")
	}
	notice := lipgloss.NewStyle().
		Background(statusBarBg).
		Foreground(noticeFg).
		Render(m.notice)

	timePill := lipgloss.NewStyle().
		Background(statusTimeBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1).
		Render(time.Now().Format("15:04"))

	userPill := lipgloss.NewStyle().
		Background(lipgloss.Color("#7B5EA7")).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1).
		Render(m.userName)

	left := pill + title + notice
	right := userPill + timePill

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	filler := lipgloss.NewStyle().
		Background(statusBarBg).
		Render(strings.Repeat(" ", gap))

	return lipgloss.NewStyle().
		Background(statusBarBg).
		MaxWidth(m.width).
		Render(left + filler + right)
}
