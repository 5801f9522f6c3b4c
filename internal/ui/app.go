package ui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"go.uber.org/zap"

	"github.com/danhigham/quickchat/internal/api"
	"github.com/danhigham/quickchat/internal/chatsync"
	"github.com/danhigham/quickchat/internal/domain"
	"github.com/danhigham/quickchat/internal/state"
)

// Sessions is what the UI needs from the session manager.
type Sessions interface {
	Session() domain.Session
	Authenticate(ctx context.Context, mode domain.AuthMode, creds domain.Credentials) (domain.Profile, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) (domain.Profile, error)
}

// Sync is what the UI needs from the sync coordinator.
type Sync interface {
	SelectPeer(ctx context.Context, peerID string) error
	Send(ctx context.Context, out domain.OutgoingMessage) (domain.Message, error)
	Refresh(ctx context.Context) error
	Status() chatsync.Status
	Store() *state.Store
}

type focusTarget int

const (
	focusPeerList focusTarget = iota
	focusMessages
	focusInput
)

const peerListWidth = 32

// inputRenderedHeight is the total height of the input box (1 inner + 2 border).
const inputRenderedHeight = 3

const statusBarHeight = 1

// Model is the root Bubble Tea model.
type Model struct {
	peerList    PeerListModel
	messageView MessageViewModel
	input       InputModel
	auth        AuthModel
	status      statusModel
	help        HelpModel
	splash      SplashModel

	sess    Sessions
	sync    Sync
	store   *state.Store
	ctx     context.Context
	timeout time.Duration
	logger  *zap.Logger

	session domain.Session
	focus   focusTarget
	width   int
	height  int
}

// NewModel creates the root model with all sub-components.
func NewModel(ctx context.Context, sess Sessions, sync Sync, timeout time.Duration, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Model{
		peerList:    NewPeerListModel(),
		messageView: NewMessageViewModel(),
		input:       NewInputModel(),
		auth:        NewAuthModel(),
		status:      newStatusModel(),
		help:        NewHelpModel(),
		splash:      NewSplashModel(),
		sess:        sess,
		sync:        sync,
		store:       sync.Store(),
		ctx:         ctx,
		timeout:     timeout,
		logger:      logger,
		focus:       focusPeerList,
	}
}

func (m Model) Init() tea.Cmd {
	s := m.sess.Session()
	return tea.Batch(
		m.input.Init(),
		func() tea.Msg { return SessionChangedMsg{Session: s} },
		tea.Tick(1500*time.Millisecond, func(time.Time) tea.Msg { return SplashDoneMsg{} }),
		clockTick(),
	)
}

func clockTick() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg { return clockTickMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m = m.distributeSize()
		return m, nil

	case StoreUpdatedMsg:
		m = m.refreshFromStore()
		m.splash = m.splash.Ready()
		return m, nil

	case SessionChangedMsg:
		// Notifications are delivered from separate goroutines and may
		// arrive out of order; the manager's snapshot is authoritative.
		return m.applySession(m.sess.Session())

	case authSubmitMsg:
		sess, ctx, timeout := m.sess, m.ctx, m.timeout
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			_, err := sess.Authenticate(ctx, msg.mode, msg.creds)
			return authDoneMsg{err: err}
		}

	case authDoneMsg:
		if msg.err != nil {
			m.logger.Info("Authentication failed", zap.Error(msg.err))
			m.auth = m.auth.Failed(api.UserMessage(msg.err))
			return m, nil
		}
		m.auth = m.auth.Hide()
		return m, nil

	case peerSelectedMsg:
		name := msg.peerID
		if p, ok := m.store.Peer(msg.peerID); ok && p.DisplayName != "" {
			name = p.DisplayName
		}
		m.messageView = m.messageView.SetConversation(msg.peerID, name, m.session.UserID()).SetLoading(true)
		m.status.peerName = name
		m.status = m.status.SetNotice("", false)
		var cmd tea.Cmd
		m, cmd = m.setFocus(focusInput)

		sync, ctx, peerID := m.sync, m.ctx, msg.peerID
		load := func() tea.Msg {
			return historyLoadedMsg{peerID: peerID, err: sync.SelectPeer(ctx, peerID)}
		}
		return m, tea.Batch(cmd, load)

	case historyLoadedMsg:
		if msg.peerID == m.messageView.peerID {
			m.messageView = m.messageView.SetLoading(false)
		}
		if msg.err != nil {
			m.status = m.status.SetNotice(api.UserMessage(msg.err), true)
		}
		m = m.refreshFromStore()
		return m, nil

	case sendMessageMsg:
		return m, m.send(domain.OutgoingMessage{Text: msg.text})

	case commandMsg:
		return m, m.runCommand(msg.cmd)

	case ErrorMsg:
		m.logger.Debug("Reported error", zap.Error(msg.Err))
		m.status = m.status.SetNotice(api.UserMessage(msg.Err), true)
		m = m.refreshStatus()
		return m, nil

	case InfoMsg:
		m.status = m.status.SetNotice(msg.Text, false)
		return m, nil

	case SplashDoneMsg:
		m.splash = m.splash.TimerDone()
		return m, nil

	case clockTickMsg:
		m = m.refreshStatus()
		return m, clockTick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// Cursor blinks and other component messages.
	var cmd tea.Cmd
	if m.auth.IsVisible() {
		m.auth, cmd = m.auth.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	if m.splash.IsVisible() {
		return m, nil
	}

	if m.auth.IsVisible() {
		var cmd tea.Cmd
		m.auth, cmd = m.auth.Update(msg)
		return m, cmd
	}

	if m.help.IsVisible() {
		if key == "?" || key == "f1" || key == "esc" {
			m.help = m.help.Toggle()
		}
		return m, nil
	}

	typing := m.focus == focusInput || m.peerList.Filtering()
	switch {
	case key == "f1", key == "?" && !typing:
		m.help = m.help.Toggle()
		return m, nil
	case key == "q" && !typing:
		return m, tea.Quit
	case key == "tab":
		return m.setFocus((m.focus + 1) % 3)
	case key == "shift+tab":
		return m.setFocus((m.focus + 2) % 3)
	case key == "esc" && !m.peerList.Filtering():
		return m.setFocus(focusPeerList)
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusPeerList:
		m.peerList, cmd = m.peerList.Update(msg)
	case focusMessages:
		m.messageView, cmd = m.messageView.Update(msg)
	case focusInput:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m Model) applySession(s domain.Session) (tea.Model, tea.Cmd) {
	m.session = s
	m.status.userName = s.Profile.FullName

	var cmd tea.Cmd
	switch s.Status {
	case domain.StatusAuthenticated:
		m.auth = m.auth.Hide()
		m, cmd = m.setFocus(focusPeerList)
	case domain.StatusUnauthenticated:
		m.messageView = m.messageView.SetConversation("", "", "")
		m.status.peerName = ""
		m.splash = m.splash.Ready()
		if !m.auth.IsVisible() {
			m.auth, cmd = m.auth.Show()
		}
	}
	m = m.refreshFromStore()
	return m, cmd
}

func (m Model) send(out domain.OutgoingMessage) tea.Cmd {
	sync, ctx := m.sync, m.ctx
	return func() tea.Msg {
		if _, err := sync.Send(ctx, out); err != nil {
			return ErrorMsg{Err: err}
		}
		return nil
	}
}

func (m Model) runCommand(c command) tea.Cmd {
	sess, sync, ctx, timeout := m.sess, m.sync, m.ctx, m.timeout

	updateProfile := func(upd domain.ProfileUpdate, done string) tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if _, err := sess.UpdateProfile(ctx, upd); err != nil {
			return ErrorMsg{Err: err}
		}
		return InfoMsg{Text: done}
	}

	switch c.kind {
	case cmdImage:
		return func() tea.Msg {
			data, err := api.ImageDataURL(expandHome(c.arg))
			if err != nil {
				return ErrorMsg{Err: err}
			}
			if _, err := sync.Send(ctx, domain.OutgoingMessage{Image: data}); err != nil {
				return ErrorMsg{Err: err}
			}
			return InfoMsg{Text: "Image sent"}
		}
	case cmdName:
		return func() tea.Msg { return updateProfile(domain.ProfileUpdate{FullName: c.arg}, "Name updated") }
	case cmdBio:
		return func() tea.Msg { return updateProfile(domain.ProfileUpdate{Bio: c.arg}, "Bio updated") }
	case cmdAvatar:
		return func() tea.Msg {
			data, err := api.ImageDataURL(expandHome(c.arg))
			if err != nil {
				return ErrorMsg{Err: err}
			}
			return updateProfile(domain.ProfileUpdate{ProfilePic: data}, "Picture updated")
		}
	case cmdLogout:
		return func() tea.Msg {
			if err := sess.Logout(ctx); err != nil {
				return ErrorMsg{Err: err}
			}
			return nil
		}
	case cmdRefresh:
		return func() tea.Msg {
			if err := sync.Refresh(ctx); err != nil {
				return ErrorMsg{Err: err}
			}
			return InfoMsg{Text: "Refreshed"}
		}
	}
	return nil
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if m.auth.IsVisible() {
		v.SetContent(m.auth.View())
		return v
	}

	rightPane := lipgloss.JoinVertical(lipgloss.Left, m.messageView.View(), m.input.View())
	panes := lipgloss.JoinHorizontal(lipgloss.Top, m.peerList.View(), rightPane)
	full := lipgloss.JoinVertical(lipgloss.Left, panes, m.status.View())

	mainContent := lipgloss.NewStyle().
		MaxWidth(m.width).
		MaxHeight(m.height).
		Render(full)

	var overlay string
	var x, y int
	switch {
	case m.splash.IsVisible():
		overlay = m.splash.View()
		x, y = m.splash.BoxOffset()
	case m.help.IsVisible():
		overlay = m.help.View()
		x, y = m.help.BoxOffset()
	}

	if overlay == "" {
		v.SetContent(mainContent)
		return v
	}
	bg := lipgloss.NewLayer(mainContent)
	fg := lipgloss.NewLayer(overlay).X(x).Y(y).Z(1)
	v.SetContent(lipgloss.NewCompositor(bg, fg).Render())
	return v
}

func (m Model) distributeSize() Model {
	contentHeight := m.height - statusBarHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	plWidth := peerListWidth
	if plWidth > m.width {
		plWidth = m.width
	}
	m.peerList = m.peerList.SetSize(plWidth, contentHeight)

	rightWidth := m.width - plWidth
	if rightWidth < 1 {
		rightWidth = 1
	}

	messagesHeight := contentHeight - inputRenderedHeight
	if messagesHeight < 1 {
		messagesHeight = 1
	}

	m.messageView = m.messageView.SetSize(rightWidth, messagesHeight)
	m.input = m.input.SetSize(rightWidth, inputRenderedHeight)
	m.status = m.status.SetWidth(m.width)

	m.auth = m.auth.SetSize(m.width, m.height)
	m.help = m.help.SetSize(m.width, m.height)
	m.splash = m.splash.SetSize(m.width, m.height)
	return m
}

func (m Model) setFocus(f focusTarget) (Model, tea.Cmd) {
	m.focus = f
	m.peerList = m.peerList.SetFocused(f == focusPeerList)
	m.messageView = m.messageView.SetFocused(f == focusMessages)
	var cmd tea.Cmd
	m.input, cmd = m.input.SetFocused(f == focusInput)
	return m, cmd
}

func (m Model) refreshFromStore() Model {
	m.peerList = m.peerList.WithPeers(m.store.Peers(), m.store.Unseen(), m.store.Presence())
	if peerID := m.messageView.peerID; peerID != "" {
		m.messageView = m.messageView.SetMessages(m.store.Messages(peerID))
	}
	return m.refreshStatus()
}

func (m Model) refreshStatus() Model {
	m.status.state = m.sync.Status().String()
	return m
}

// App wraps the Bubble Tea program for external use.
type App struct {
	program *tea.Program
}

func NewApp(ctx context.Context, sess Sessions, sync Sync, timeout time.Duration, logger *zap.Logger) *App {
	model := NewModel(ctx, sess, sync, timeout, logger)
	p := tea.NewProgram(model, tea.WithContext(ctx))
	return &App{program: p}
}

// Run starts the Bubble Tea event loop (blocks until quit).
func (a *App) Run() error {
	_, err := a.program.Run()
	return err
}

// Send sends a message into the Bubble Tea event loop from external goroutines.
func (a *App) Send(msg tea.Msg) {
	go a.program.Send(msg)
}

// DrawFunc returns a function suitable for state.Store that triggers a re-render.
func (a *App) DrawFunc() func() {
	return func() {
		a.Send(StoreUpdatedMsg{})
	}
}

// OnSessionChange forwards session transitions into the event loop.
func (a *App) OnSessionChange(_ context.Context, s domain.Session) error {
	a.Send(SessionChangedMsg{Session: s})
	return nil
}

// ReportError shows err in the status bar.
func (a *App) ReportError(err error) {
	a.Send(ErrorMsg{Err: err})
}
