package ui

import (
	"fmt"
	"io"

	"charm.land/bubbles/v2/list"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/danhigham/quickchat/internal/domain"
)

// peerItem implements list.Item for the peer sidebar.
type peerItem struct {
	peerID string
	name   string
	bio    string
	unseen int
	online bool
}

func (i peerItem) FilterValue() string { return i.name }

// peerItemDelegate renders a peerItem in the list.
type peerItemDelegate struct{}

func (d peerItemDelegate) Height() int                             { return 2 }
func (d peerItemDelegate) Spacing() int                            { return 1 }
func (d peerItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d peerItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	pi, ok := item.(peerItem)
	if !ok {
		return
	}

	dot := offlineDotStyle.Render("○")
	if pi.online {
		dot = onlineDotStyle.Render("●")
	}
	badge := ""
	if pi.unseen > 0 {
		badge = " " + badgeStyle.Render(fmt.Sprint(pi.unseen))
	}

	isSelected := index == m.Index()
	// Cursor prefix and presence dot take 4 columns.
	contentWidth := m.Width() - 4 - lipgloss.Width(badge)
	if contentWidth < 1 {
		contentWidth = 1
	}

	nameStyle := lipgloss.NewStyle().MaxWidth(contentWidth).MaxHeight(1)
	descStyle := lipgloss.NewStyle().MaxWidth(m.Width() - 4).MaxHeight(1).Foreground(lipgloss.Color("240"))

	cursor := "  "
	if isSelected {
		cursor = "> "
		nameStyle = nameStyle.Foreground(lipgloss.Color("170")).Bold(true)
		descStyle = descStyle.Foreground(lipgloss.Color("250"))
	}
	if pi.unseen > 0 {
		nameStyle = nameStyle.Bold(true)
	}

	fmt.Fprintf(w, "%s%s %s%s\n    %s", cursor, dot, nameStyle.Render(pi.name), badge, descStyle.Render(pi.bio))
}

// PeerListModel wraps bubbles/list for the peer sidebar.
type PeerListModel struct {
	list    list.Model
	focused bool
	width   int
	height  int
}

func NewPeerListModel() PeerListModel {
	l := list.New(nil, peerItemDelegate{}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()

	return PeerListModel{list: l}
}

// Filtering reports whether the user is typing a filter.
func (m PeerListModel) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

func (m PeerListModel) Update(msg tea.Msg) (PeerListModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" && !m.Filtering() {
		if item, ok := m.list.SelectedItem().(peerItem); ok {
			return m, func() tea.Msg { return peerSelectedMsg{peerID: item.peerID} }
		}
		return m, nil
	}

	// Everything else, including j/k and the '/' filter, goes to the list.
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m PeerListModel) View() string {
	contentH := m.height - 2
	if contentH < 0 {
		contentH = 0
	}

	content := truncateHeight(m.list.View(), contentH)
	if len(m.list.Items()) == 0 {
		content = hintStyle.Render("No one here yet")
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(m.width).
		Height(m.height)
	style = applyBorderColor(style, m.focused)

	return style.Render(content)
}

// WithPeers rebuilds the items from the directory, unseen counts and presence.
func (m PeerListModel) WithPeers(peers []domain.Peer, unseen map[string]int, online domain.PresenceSet) PeerListModel {
	items := make([]list.Item, len(peers))
	for i, p := range peers {
		name := p.DisplayName
		if name == "" {
			name = p.ID
		}
		items[i] = peerItem{
			peerID: p.ID,
			name:   name,
			bio:    p.Bio,
			unseen: unseen[p.ID],
			online: online.Contains(p.ID),
		}
	}
	m.list.SetItems(items)
	return m
}

func (m PeerListModel) SetSize(w, h int) PeerListModel {
	m.width = w
	m.height = h
	innerW := w - 2
	innerH := h - 2
	if innerW < 1 {
		innerW = 1
	}
	if innerH < 1 {
		innerH = 1
	}
	m.list.SetSize(innerW, innerH)
	return m
}

func (m PeerListModel) SetFocused(f bool) PeerListModel {
	m.focused = f
	return m
}
