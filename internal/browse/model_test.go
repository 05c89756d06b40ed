package browse

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducks/arf/internal/associate"
	"github.com/ducks/arf/internal/gitio"
	"github.com/ducks/arf/internal/record"
	"github.com/ducks/arf/internal/store"
)

const (
	shaA = "aaaaaaaa11111111111111111111111111111111"
	shaB = "bbbbbbbb22222222222222222222222222222222"
	shaC = "cccccccc33333333333333333333333333333333"
)

type fakeShower struct {
	calls []string
	fail  bool
}

func (f *fakeShower) ShowCommit(sha string, mode gitio.ShowMode) (string, error) {
	f.calls = append(f.calls, sha)
	if f.fail {
		return "", errors.New("boom")
	}
	body := " main.go | 2 +-\n"
	if mode == gitio.ShowPatch {
		body = "diff --git a/main.go b/main.go\n@@ -1 +1 @@\n-old\n+new\n"
	}
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString(body)
	}
	return b.String(), nil
}

func testIndex() *associate.Index {
	commits := []gitio.Commit{
		{SHA: shaA, ShortSHA: "aaaaaaa", Subject: "Add login"},
		{SHA: shaB, ShortSHA: "bbbbbbb", Subject: "Fix typo"},
		{SHA: shaC, ShortSHA: "ccccccc", Subject: "Initial"},
	}
	dirs := []store.Directory{{
		Prefix: "aaaaaaaa",
		Entries: []store.Entry{{
			Prefix:   "aaaaaaaa",
			FileName: "claude-20260115-100000.toml",
			Record: &record.Record{
				What:      "Add login form",
				Why:       "Users need auth",
				How:       "Reused session middleware",
				Agent:     "claude",
				Timestamp: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
			},
		}},
	}}
	return associate.Build(commits, dirs)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func sized(t *testing.T, sh Shower) Model {
	t.Helper()
	return send(t, New(testIndex(), sh), tea.WindowSizeMsg{Width: 100, Height: 30})
}

func TestNavigationWraps(t *testing.T) {
	m := sized(t, &fakeShower{})

	c, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, shaA, c.SHA)

	m = send(t, m, key("j"), key("down"))
	c, _ = m.Selected()
	assert.Equal(t, shaC, c.SHA)

	m = send(t, m, key("j"))
	c, _ = m.Selected()
	assert.Equal(t, shaA, c.SHA, "moving past the last commit wraps to the first")

	m = send(t, m, key("k"))
	c, _ = m.Selected()
	assert.Equal(t, shaC, c.SHA, "moving before the first commit wraps to the last")
}

func TestDiffModeCycle(t *testing.T) {
	m := sized(t, &fakeShower{})
	assert.Equal(t, DiffStat, m.DiffMode())

	m = send(t, m, key("d"))
	assert.Equal(t, DiffFull, m.DiffMode())

	m = send(t, m, key("tab"))
	assert.Equal(t, FocusDiff, m.Focus())

	m = send(t, m, key("d"))
	assert.Equal(t, DiffHidden, m.DiffMode())
	assert.Equal(t, FocusCommits, m.Focus(), "hiding the diff returns focus to the commit list")

	m = send(t, m, key("tab"))
	assert.Equal(t, FocusCommits, m.Focus(), "focus cannot move to a hidden diff")

	m = send(t, m, key("d"))
	assert.Equal(t, DiffStat, m.DiffMode())
}

func TestDiffFocusScrollsInsteadOfMoving(t *testing.T) {
	m := sized(t, &fakeShower{})
	m = send(t, m, key("tab"))
	require.Equal(t, FocusDiff, m.Focus())

	m = send(t, m, key("j"), key("j"))
	c, _ := m.Selected()
	assert.Equal(t, shaA, c.SHA)
	assert.Equal(t, 2, m.viewport.YOffset)

	m = send(t, m, key("k"))
	assert.Equal(t, 1, m.viewport.YOffset)

	m = send(t, m, key("f"))
	assert.Greater(t, m.viewport.YOffset, 1)
}

func TestDiffIsCachedPerCommitAndMode(t *testing.T) {
	sh := &fakeShower{}
	m := sized(t, sh)
	m = send(t, m, key("j"), key("k"))
	assert.Equal(t, []string{shaA, shaB}, sh.calls)

	m = send(t, m, key("d"))
	assert.Equal(t, []string{shaA, shaB, shaA}, sh.calls)
	_ = m
}

func TestViewShowsReasoning(t *testing.T) {
	m := sized(t, &fakeShower{})
	view := m.View()
	assert.Contains(t, view, "Add login form")
	assert.Contains(t, view, "Users need auth")
	assert.Contains(t, view, "●")
	assert.Contains(t, view, "Diff (stat)")

	m = send(t, m, key("j"))
	assert.Contains(t, m.View(), "(no reasoning recorded for this commit)")
}

func TestViewDiffError(t *testing.T) {
	m := sized(t, &fakeShower{fail: true})
	assert.Contains(t, m.View(), "Failed to get diff: boom")
}

func TestEmptyHistory(t *testing.T) {
	m := send(t, New(associate.Build(nil, nil), &fakeShower{}), tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Equal(t, "No commits found.\n", m.View())

	m = send(t, m, key("j"), key("k"))
	_, ok := m.Selected()
	assert.False(t, ok)
}

func TestQuit(t *testing.T) {
	for _, k := range []string{"q", "esc"} {
		m := sized(t, &fakeShower{})
		next, cmd := m.Update(key(k))
		require.NotNil(t, cmd, k)
		assert.Equal(t, tea.QuitMsg{}, cmd())
		assert.Empty(t, next.View())
	}
}

func TestBeforeSize(t *testing.T) {
	sh := &fakeShower{}
	m := New(testIndex(), sh)
	assert.Equal(t, "Loading...\n", m.View())
	m = send(t, m, key("j"))
	assert.Empty(t, sh.calls, "no diff is loaded before the first window size")
}
