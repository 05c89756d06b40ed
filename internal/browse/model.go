// Package browse provides the interactive history browser.
//
// The model is a plain bubbletea model over an association index: a commit
// list, a reasoning panel for the selected commit, and an optional diff pane
// that cycles hidden → stat → full.
//
// TUI components are designed for single-threaded use within the bubbletea
// event loop.
package browse

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ducks/arf/internal/associate"
	"github.com/ducks/arf/internal/gitio"
)

// DiffMode is the state of the diff pane.
type DiffMode int

const (
	DiffHidden DiffMode = iota
	DiffStat
	DiffFull
)

func (d DiffMode) String() string {
	switch d {
	case DiffStat:
		return "stat"
	case DiffFull:
		return "full"
	default:
		return "hidden"
	}
}

// Focus is the pane receiving navigation keys.
type Focus int

const (
	FocusCommits Focus = iota
	FocusDiff
)

// Shower renders a commit's change; gitio.Repository satisfies it.
type Shower interface {
	ShowCommit(sha string, mode gitio.ShowMode) (string, error)
}

// Model is the bubbletea model for the browser.
type Model struct {
	ix      *associate.Index
	commits []gitio.Commit
	shower  Shower

	selected int
	diffMode DiffMode
	focus    Focus

	viewport viewport.Model
	diffs    map[string]string

	width  int
	height int
	ready  bool

	quitting bool
}

// New creates a browser over ix. The diff pane starts in stat mode.
func New(ix *associate.Index, shower Shower) Model {
	return Model{
		ix:       ix,
		commits:  ix.Commits(),
		shower:   shower,
		diffMode: DiffStat,
		focus:    FocusCommits,
		diffs:    make(map[string]string),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpWidth, vpHeight := m.diffPaneSize()
		if !m.ready {
			m.viewport = viewport.New(vpWidth, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = vpWidth
			m.viewport.Height = vpHeight
		}
		m.updateDiff()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "j", "down":
			m.next()

		case "k", "up":
			m.previous()

		case "d":
			m.toggleDiff()

		case "tab", "enter":
			m.toggleFocus()

		case "f", "pgdown":
			if m.focus == FocusDiff {
				m.viewport.HalfViewDown()
			}

		case "b", "pgup":
			if m.focus == FocusDiff {
				m.viewport.HalfViewUp()
			}
		}
	}

	return m, nil
}

// Selected returns the selected commit.
func (m Model) Selected() (gitio.Commit, bool) {
	if m.selected < 0 || m.selected >= len(m.commits) {
		return gitio.Commit{}, false
	}
	return m.commits[m.selected], true
}

// DiffMode returns the current diff pane state.
func (m Model) DiffMode() DiffMode {
	return m.diffMode
}

// Focus returns the focused pane.
func (m Model) Focus() Focus {
	return m.focus
}

// =============================================================================
// Navigation
// =============================================================================

func (m *Model) next() {
	if m.focus == FocusDiff {
		m.viewport.LineDown(1)
		return
	}
	if len(m.commits) == 0 {
		return
	}
	m.selected = (m.selected + 1) % len(m.commits)
	m.updateDiff()
}

func (m *Model) previous() {
	if m.focus == FocusDiff {
		m.viewport.LineUp(1)
		return
	}
	if len(m.commits) == 0 {
		return
	}
	if m.selected == 0 {
		m.selected = len(m.commits) - 1
	} else {
		m.selected--
	}
	m.updateDiff()
}

func (m *Model) toggleFocus() {
	if m.diffMode == DiffHidden {
		return
	}
	if m.focus == FocusCommits {
		m.focus = FocusDiff
	} else {
		m.focus = FocusCommits
	}
}

func (m *Model) toggleDiff() {
	switch m.diffMode {
	case DiffHidden:
		m.diffMode = DiffStat
	case DiffStat:
		m.diffMode = DiffFull
	case DiffFull:
		m.diffMode = DiffHidden
		m.focus = FocusCommits
	}
	if m.ready {
		m.viewport.Width, m.viewport.Height = m.diffPaneSize()
	}
	m.updateDiff()
}

// updateDiff loads the selected commit's change into the viewport.
func (m *Model) updateDiff() {
	if !m.ready || m.diffMode == DiffHidden {
		return
	}
	c, ok := m.Selected()
	if !ok {
		m.viewport.SetContent("")
		return
	}

	mode := gitio.ShowStat
	if m.diffMode == DiffFull {
		mode = gitio.ShowPatch
	}
	key := fmt.Sprintf("%s:%d", c.SHA, mode)
	content, ok := m.diffs[key]
	if !ok {
		var err error
		content, err = m.shower.ShowCommit(c.SHA, mode)
		if err != nil {
			content = "Failed to get diff: " + err.Error()
		}
		m.diffs[key] = content
	}
	m.viewport.SetContent(colorize(content))
	m.viewport.GotoTop()
}

// diffPaneSize is the viewport size inside the diff pane border.
func (m Model) diffPaneSize() (int, int) {
	w := m.width - 2
	h := m.height - m.topHeight() - 2 - 1
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func (m Model) topHeight() int {
	if m.diffMode == DiffHidden {
		return m.height - 1
	}
	return m.height / 2
}

// =============================================================================
// Rendering
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading...\n"
	}
	if len(m.commits) == 0 {
		return "No commits found.\n"
	}

	top := m.topHeight()
	listWidth := m.width * 40 / 100
	reasonWidth := m.width - listWidth

	commits := m.pane(" Commits ", m.renderCommits(listWidth-4, top-2), listWidth, top, m.focus == FocusCommits)
	reasoning := m.pane(" Reasoning ", m.renderReasoning(reasonWidth-4), reasonWidth, top, false)

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, commits, reasoning))
	if m.diffMode != DiffHidden {
		b.WriteString("\n")
		title := fmt.Sprintf(" Diff (%s) ", m.diffMode)
		b.WriteString(m.pane(title, m.viewport.View(), m.width, m.height-top-1, m.focus == FocusDiff))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("j/k move · d diff · tab focus · f/b page · q quit"))
	return b.String()
}

func (m Model) pane(title, body string, width, height int, focused bool) string {
	style := paneStyle
	if focused {
		style = focusedPaneStyle
	}
	inner := titleStyle.Render(title) + "\n" + body
	return style.Width(max(width-2, 1)).Height(max(height-2, 1)).MaxHeight(max(height, 1)).Render(inner)
}

func (m Model) renderCommits(width, height int) string {
	start := 0
	if height > 1 && m.selected >= height-1 {
		start = m.selected - (height - 2)
	}

	var b strings.Builder
	for i := start; i < len(m.commits) && i < start+height-1; i++ {
		c := m.commits[i]
		marker := " "
		if len(m.ix.Records(c.SHA)) > 0 {
			marker = "●"
		}
		cursor := "  "
		if i == m.selected {
			cursor = "→ "
		}
		line := truncate(fmt.Sprintf("%s%s %s %s", cursor, marker, c.ShortSHA, c.Subject), width)
		if i == m.selected {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderReasoning(width int) string {
	c, ok := m.Selected()
	if !ok {
		return "No commit selected"
	}
	entries := m.ix.Records(c.SHA)
	if len(entries) == 0 {
		return "(no reasoning recorded for this commit)"
	}

	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		r := e.Record
		lines := []string{
			labelStyle.Render("what:") + " " + r.What,
			labelStyle.Render("why: ") + " " + r.Why,
		}
		if r.How != "" {
			lines = append(lines, labelStyle.Render("how: ")+" "+r.How)
		}
		if r.Backup != "" {
			lines = append(lines, labelStyle.Render("back:")+" "+r.Backup)
		}
		if r.Outcome != nil {
			lines = append(lines, labelStyle.Render("out: ")+" "+r.Outcome.String())
		}
		lines = append(lines, dimStyle.Render("by "+r.Agent))
		blocks = append(blocks, lipgloss.NewStyle().Width(max(width, 1)).Render(strings.Join(lines, "\n")))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// colorize applies diff syntax colors line by line.
func colorize(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = fileHeaderStyle.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = addedStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = removedStyle.Render(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = hunkHeaderStyle.Render(line)
		case strings.HasPrefix(line, "diff "), strings.HasPrefix(line, "index "):
			lines[i] = diffHeaderStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

// =============================================================================
// Styles
// =============================================================================

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder())

	focusedPaneStyle = paneStyle.
				BorderForeground(lipgloss.Color("39"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("238"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	addedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	removedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	hunkHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75"))

	diffHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	fileHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))
)

// Run starts the browser on the terminal's alternate screen.
func Run(ix *associate.Index, shower Shower) error {
	_, err := tea.NewProgram(New(ix, shower), tea.WithAltScreen()).Run()
	return err
}
