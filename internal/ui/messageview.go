package ui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"

	"github.com/danhigham/quickchat/internal/domain"
)

// MessageViewModel shows the open conversation in a viewport, rendering
// markdown-looking text through glamour.
type MessageViewModel struct {
	viewport viewport.Model
	renderer *glamour.TermRenderer
	focused  bool
	width    int
	height   int

	peerID   string
	selfID   string
	peerName string
	messages []domain.Message
	loading  bool
}

func NewMessageViewModel() MessageViewModel {
	return MessageViewModel{viewport: viewport.New()}
}

func (m MessageViewModel) Update(msg tea.Msg) (MessageViewModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "j":
			m.viewport.ScrollDown(1)
			return m, nil
		case "k":
			m.viewport.ScrollUp(1)
			return m, nil
		case "G":
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m MessageViewModel) View() string {
	contentH := m.height - 2
	if contentH < 0 {
		contentH = 0
	}

	var content string
	switch {
	case m.peerID == "":
		content = hintStyle.Render("Pick someone from the list to start chatting")
	case m.loading && len(m.messages) == 0:
		content = hintStyle.Render("Loading conversation...")
	case len(m.messages) == 0:
		content = hintStyle.Render("No messages yet. Say hi!")
	default:
		content = truncateHeight(m.viewport.View(), contentH)
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(m.width).
		Height(m.height)
	style = applyBorderColor(style, m.focused)

	return style.Render(content)
}

func (m MessageViewModel) SetSize(w, h int) MessageViewModel {
	m.width = w
	m.height = h
	vpW := w - 2
	vpH := h - 2
	if vpW < 1 {
		vpW = 1
	}
	if vpH < 1 {
		vpH = 1
	}
	m.viewport.SetWidth(vpW)
	m.viewport.SetHeight(vpH)
	m = m.recreateRenderer()
	return m.renderContent()
}

func (m MessageViewModel) SetFocused(f bool) MessageViewModel {
	m.focused = f
	return m
}

// SetConversation switches to a peer. selfID marks the user's own messages.
func (m MessageViewModel) SetConversation(peerID, peerName, selfID string) MessageViewModel {
	if peerID != m.peerID {
		m.messages = nil
	}
	m.peerID = peerID
	m.peerName = peerName
	m.selfID = selfID
	return m.renderContent()
}

func (m MessageViewModel) SetLoading(v bool) MessageViewModel {
	m.loading = v
	return m
}

// SetMessages replaces the rendered messages and follows the tail when new
// ones arrived.
func (m MessageViewModel) SetMessages(msgs []domain.Message) MessageViewModel {
	grew := len(msgs) != len(m.messages)
	m.messages = msgs
	if grew {
		return m.renderContent()
	}
	return m.renderContentInner(false)
}

func (m MessageViewModel) recreateRenderer() MessageViewModel {
	wordWrap := m.viewport.Width() - 2
	if wordWrap < 10 {
		wordWrap = 10
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(wordWrap),
	)
	if err == nil {
		m.renderer = r
	}
	return m
}

func (m MessageViewModel) renderContent() MessageViewModel {
	return m.renderContentInner(true)
}

func (m MessageViewModel) renderContentInner(gotoBottom bool) MessageViewModel {
	var b strings.Builder
	var currentDate string

	for _, msg := range m.messages {
		local := msg.CreatedAt.Local()
		msgDate := local.Format("January 2, 2006")
		if msgDate != currentDate {
			if currentDate != "" {
				b.WriteString("\n")
			}
			b.WriteString(daySeparatorStyle.Render(fmt.Sprintf("───── %s ─────", msgDate)) + "\n")
			currentDate = msgDate
		}

		ts := timeStyle.Render(local.Format("15:04"))
		own := msg.SenderID == m.selfID

		name := inNameStyle.Render(m.peerName + ":")
		if own {
			name = outNameStyle.Render("You:")
		}

		tick := ""
		if own {
			tick = " " + seenStyle.Render(seenMark(msg.Seen))
		}

		switch {
		case msg.IsImage():
			fmt.Fprintf(&b, "%s %s %s%s\n", ts, name, imageStyle.Render(describeImage(msg.ImageRef)), tick)
		case looksLikeMarkdown(msg.Text):
			fmt.Fprintf(&b, "%s %s%s\n%s\n\n", ts, name, tick, m.renderMarkdown(msg.Text))
		case strings.Contains(msg.Text, "\n"):
			fmt.Fprintf(&b, "%s %s%s\n%s\n\n", ts, name, tick, msg.Text)
		default:
			fmt.Fprintf(&b, "%s %s %s%s\n", ts, name, msg.Text, tick)
		}
	}

	wrapped := lipgloss.NewStyle().Width(m.viewport.Width()).Render(b.String())
	m.viewport.SetContent(wrapped)
	if gotoBottom {
		m.viewport.GotoBottom()
	}
	return m
}

func seenMark(seen bool) string {
	if seen {
		return "✓✓"
	}
	return "✓"
}

// describeImage summarizes an image reference; data URLs are too long to show.
func describeImage(ref string) string {
	if !strings.HasPrefix(ref, "data:") {
		return "[image] " + ref
	}
	mime, payload, _ := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	mime = strings.TrimSuffix(mime, ";base64")
	return fmt.Sprintf("[image] %s, %d KB", mime, len(payload)*3/4/1024)
}

// looksLikeMarkdown reports whether text uses markdown worth rendering.
func looksLikeMarkdown(text string) bool {
	for _, marker := range []string{"```", "**", "__", "](", "`"} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") || strings.HasPrefix(line, "## ") ||
			strings.HasPrefix(line, "> ") || strings.HasPrefix(line, "- ") {
			return true
		}
	}
	return false
}

// renderMarkdown renders text through glamour. Glamour joins single
// newlines, so plain paragraphs go line by line; fenced code and tables
// are rendered whole.
func (m MessageViewModel) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}

	blocks := strings.Split(text, "\n\n")
	for i, block := range blocks {
		if block == "" || isWholeBlock(block) {
			blocks[i] = m.renderBlock(block)
			continue
		}
		lines := strings.Split(block, "\n")
		for j, line := range lines {
			lines[j] = m.renderBlock(line)
		}
		blocks[i] = strings.Join(lines, "\n")
	}
	return strings.Join(blocks, "\n")
}

func (m MessageViewModel) renderBlock(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	r, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimLeft(strings.TrimRight(r, "\n "), "\n")
}

// isWholeBlock reports whether a multi-line block is fenced code or a table.
func isWholeBlock(block string) bool {
	if !strings.Contains(block, "\n") {
		return false
	}
	trimmed := strings.TrimSpace(block)
	if strings.HasPrefix(trimmed, "```") {
		return true
	}
	for _, line := range strings.Split(trimmed, "\n") {
		if !strings.Contains(line, "|") {
			return false
		}
	}
	return true
}
