package ui

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/danhigham/quickchat/internal/domain"
)

type authField int

const (
	fieldName authField = iota
	fieldEmail
	fieldPassword
	fieldBio
	fieldCount
)

var fieldLabels = [fieldCount]string{"Full name", "Email", "Password", "Bio"}

// AuthModel is the login / registration form shown while signed out.
type AuthModel struct {
	mode    domain.AuthMode
	inputs  [fieldCount]textinput.Model
	focus   int
	busy    bool
	err     string
	visible bool
	width   int
	height  int
}

func NewAuthModel() AuthModel {
	m := AuthModel{mode: domain.AuthLogin}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 256
		ti.SetWidth(32)
		m.inputs[i] = ti
	}
	m.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	m.inputs[fieldPassword].EchoCharacter = '•'
	m.inputs[fieldBio].Placeholder = "optional"
	return m
}

// fields lists the inputs shown for the current mode, in tab order.
func (m AuthModel) fields() []authField {
	if m.mode == domain.AuthRegister {
		return []authField{fieldName, fieldEmail, fieldPassword, fieldBio}
	}
	return []authField{fieldEmail, fieldPassword}
}

func (m AuthModel) IsVisible() bool {
	return m.visible
}

// Show resets the form and focuses the first field.
func (m AuthModel) Show() (AuthModel, tea.Cmd) {
	m.visible = true
	m.busy = false
	m.err = ""
	for i := range m.inputs {
		m.inputs[i].Reset()
	}
	m.focus = 0
	cmd := m.focusCurrent()
	return m, cmd
}

func (m AuthModel) Hide() AuthModel {
	m.visible = false
	m.busy = false
	return m
}

// Failed re-enables the form and shows err.
func (m AuthModel) Failed(err string) AuthModel {
	m.busy = false
	m.err = err
	m.inputs[fieldPassword].Reset()
	return m
}

func (m AuthModel) SetSize(w, h int) AuthModel {
	m.width = w
	m.height = h
	return m
}

func (m *AuthModel) focusCurrent() tea.Cmd {
	fields := m.fields()
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	if m.focus >= len(fields) {
		m.focus = len(fields) - 1
	}
	return m.inputs[fields[m.focus]].Focus()
}

func (m AuthModel) Update(msg tea.Msg) (AuthModel, tea.Cmd) {
	if m.busy {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		fields := m.fields()
		var cmd tea.Cmd
		switch key.String() {
		case "tab":
			if m.mode == domain.AuthLogin {
				m.mode = domain.AuthRegister
			} else {
				m.mode = domain.AuthLogin
			}
			m.focus = 0
			m.err = ""
			cmd = m.focusCurrent()
			return m, cmd
		case "up", "shift+tab":
			m.focus = (m.focus + len(fields) - 1) % len(fields)
			cmd = m.focusCurrent()
			return m, cmd
		case "down":
			m.focus = (m.focus + 1) % len(fields)
			cmd = m.focusCurrent()
			return m, cmd
		case "enter":
			if m.focus < len(fields)-1 {
				m.focus++
				cmd = m.focusCurrent()
				return m, cmd
			}
			return m.submit()
		}
	}

	current := m.fields()[m.focus]
	var cmd tea.Cmd
	m.inputs[current], cmd = m.inputs[current].Update(msg)
	return m, cmd
}

func (m AuthModel) submit() (AuthModel, tea.Cmd) {
	value := func(f authField) string { return strings.TrimSpace(m.inputs[f].Value()) }

	creds := domain.Credentials{
		Email:    value(fieldEmail),
		Password: m.inputs[fieldPassword].Value(),
	}
	if m.mode == domain.AuthRegister {
		creds.FullName = value(fieldName)
		creds.Bio = value(fieldBio)
		if creds.FullName == "" {
			m.err = "Full name is required"
			return m, nil
		}
	}
	if creds.Email == "" || creds.Password == "" {
		m.err = "Email and password are required"
		return m, nil
	}

	m.busy = true
	m.err = ""
	mode := m.mode
	return m, func() tea.Msg { return authSubmitMsg{mode: mode, creds: creds} }
}

func (m AuthModel) View() string {
	if !m.visible || m.width == 0 || m.height == 0 {
		return ""
	}

	title := "Log in"
	hint := "Tab: create an account"
	if m.mode == domain.AuthRegister {
		title = "Create account"
		hint = "Tab: log in instead"
	}

	var b strings.Builder
	b.WriteString(authTitleStyle.Render(title) + "\n\n")
	for i, f := range m.fields() {
		label := fieldLabels[f]
		if i == m.focus {
			label = authFocusLabelStyle.Render(label)
		} else {
			label = authLabelStyle.Render(label)
		}
		b.WriteString(label + "\n" + m.inputs[f].View() + "\n\n")
	}

	switch {
	case m.busy:
		b.WriteString(hintStyle.Render("Signing in..."))
	case m.err != "":
		b.WriteString(errorStyle.Render(m.err))
	default:
		b.WriteString(hintStyle.Render(hint + " · Enter: next / submit"))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForegroundBlend(rainbowBlend...).
		Padding(1, 3).
		Width(48).
		Render(b.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
