package ui

import "charm.land/lipgloss/v2"

const splashArt = `
              _      _        _           _
  __ _ _   _ (_) ___| | _____| |__   __ _| |_
 / _` + "`" + ` | | | || |/ __| |/ / __| '_ \ / _` + "`" + ` | __|
| (_| | |_| || | (__|   < (__| | | | (_| | |_
 \__, |\__,_||_|\___|_|\_\___|_| |_|\__,_|\__|
    |_|
`

// SplashModel is shown at startup until the minimum duration has passed
// and the first sync result is in (or the user is signed out).
type SplashModel struct {
	visible       bool
	timerDone     bool
	ready         bool
	width, height int
}

func NewSplashModel() SplashModel {
	return SplashModel{visible: true}
}

func (s SplashModel) SetSize(w, h int) SplashModel {
	s.width = w
	s.height = h
	return s
}

func (s SplashModel) IsVisible() bool {
	return s.visible
}

// TimerDone marks the minimum display duration as elapsed.
func (s SplashModel) TimerDone() SplashModel {
	s.timerDone = true
	if s.ready {
		s.visible = false
	}
	return s
}

// Ready marks the first sync as finished.
func (s SplashModel) Ready() SplashModel {
	s.ready = true
	if s.timerDone {
		s.visible = false
	}
	return s
}

// View renders the splash box. BoxOffset gives its centered position.
func (s SplashModel) View() string {
	if !s.visible || s.width == 0 || s.height == 0 {
		return ""
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(highlightColor).
		Padding(1, 3).
		Render(splashArt)
}

func (s SplashModel) BoxOffset() (int, int) {
	box := s.View()
	x := (s.width - lipgloss.Width(box)) / 2
	y := (s.height - lipgloss.Height(box)) / 2
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return x, y
}
