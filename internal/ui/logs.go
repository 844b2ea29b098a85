package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap/zapcore"

	"github.com/five82/toolroom/internal/logtail"
)

// logLevels are cycled by the level filter.
var logLevels = []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}

// logState holds all log-related state.
type logState struct {
	entries  []logtail.Entry
	minLevel zapcore.Level
	query    string
	follow   bool
	err      error

	searching bool
	search    textinput.Model
	viewport  viewport.Model
}

type logsMsg struct {
	entries []logtail.Entry
	err     error
}

func newLogState() logState {
	ti := textinput.New()
	ti.Placeholder = "Search logs..."
	ti.CharLimit = 100
	return logState{
		minLevel: zapcore.DebugLevel,
		follow:   true,
		search:   ti,
		viewport: viewport.New(80, 20),
	}
}

func (m Model) loadLogs() tea.Cmd {
	path := ""
	if m.config != nil {
		path = m.config.LogPath()
	}
	return func() tea.Msg {
		if path == "" {
			return logsMsg{}
		}
		entries, err := logtail.ReadEntries(path, LogBufferLimit)
		return logsMsg{entries: entries, err: err}
	}
}

func (m *Model) applyLogs(msg logsMsg) {
	m.logs.err = msg.err
	if msg.err == nil {
		m.logs.entries = msg.entries
	}
	m.refreshLogViewport()
}

func (m *Model) refreshLogViewport() {
	if m.logs.viewport.Width == 0 {
		return
	}
	m.logs.viewport.SetContent(m.renderLogContent())
	if m.logs.follow {
		m.logs.viewport.GotoBottom()
	}
}

func (m Model) visibleLogs() []logtail.Entry {
	return logtail.Filter(m.logs.entries, m.logs.minLevel, m.logs.query)
}

func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.logs.follow = !m.logs.follow
		if m.logs.follow {
			m.logs.viewport.GotoBottom()
			return m, m.loadLogs()
		}
	case key.Matches(msg, m.keys.Search):
		m.logs.searching = true
		m.logs.search.SetValue(m.logs.query)
		m.logs.search.Focus()
		return m, textinput.Blink
	case key.Matches(msg, m.keys.CycleLogLevel):
		m.logs.minLevel = nextLogLevel(m.logs.minLevel)
		m.refreshLogViewport()
	case key.Matches(msg, m.keys.Back):
		if m.logs.query != "" {
			m.logs.query = ""
			m.refreshLogViewport()
		}
	case key.Matches(msg, m.keys.Top):
		m.logs.follow = false
		m.logs.viewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.logs.viewport.GotoBottom()
	default:
		// Manual scrolling stops following.
		if key.Matches(msg, m.keys.Up) {
			m.logs.follow = false
		}
		var cmd tea.Cmd
		m.logs.viewport, cmd = m.logs.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleLogSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.logs.query = strings.TrimSpace(m.logs.search.Value())
		m.logs.searching = false
		m.logs.search.Blur()
		m.refreshLogViewport()
		return m, nil
	case "esc":
		m.logs.searching = false
		m.logs.query = ""
		m.logs.search.SetValue("")
		m.logs.search.Blur()
		m.refreshLogViewport()
		return m, nil
	}
	var cmd tea.Cmd
	m.logs.search, cmd = m.logs.search.Update(msg)
	return m, cmd
}

func nextLogLevel(current zapcore.Level) zapcore.Level {
	for i, l := range logLevels {
		if l == current {
			return logLevels[(i+1)%len(logLevels)]
		}
	}
	return zapcore.DebugLevel
}

// renderLogs renders the log view.
func (m Model) renderLogs() string {
	bg := NewBgStyle(m.theme.FocusBg)
	styles := m.theme.Styles()
	title := "Application log"
	if m.logs.minLevel > zapcore.DebugLevel || m.logs.query != "" {
		title += " (filtered)"
	}
	box := m.titledBox(title, m.logs.viewport.View(), m.width, m.contentHeight()-1, true)
	return box + "\n" + m.renderLogStatus(styles, bg)
}

func (m Model) renderLogStatus(styles Styles, bg BgStyle) string {
	if m.logs.searching {
		return bg.Render("/", styles.AccentText) + m.logs.search.View()
	}
	if m.logs.err != nil {
		return bg.Render(truncate(m.logs.err.Error(), m.width-2), styles.DangerText)
	}

	autoTail := ternary(m.logs.follow, "on", "off")
	parts := []string{
		bg.Render(fmt.Sprintf("%d of %d entries auto-tail %s", len(m.visibleLogs()), len(m.logs.entries), autoTail), styles.FaintText),
		bg.Render("level>="+m.logs.minLevel.CapitalString(), styles.MutedText),
	}
	if m.logs.query != "" {
		parts = append(parts, bg.Render("/"+truncate(m.logs.query, 24), styles.AccentText))
	}
	if m.config != nil {
		parts = append(parts, bg.Render(truncateMiddle(m.config.LogPath(), 50), styles.FaintText))
	}
	sep := bg.Space() + bg.Render("•", styles.FaintText) + bg.Space()
	return strings.Join(parts, sep)
}

// renderLogContent renders the colorized log lines.
func (m Model) renderLogContent() string {
	bg := NewBgStyle(m.theme.FocusBg)
	styles := m.theme.Styles()
	width := m.logs.viewport.Width

	entries := m.visibleLogs()
	if len(entries) == 0 {
		return bg.FillLine(bg.Render("No log entries", styles.MutedText), width)
	}

	var b strings.Builder
	for i, e := range entries {
		b.WriteString(bg.FillLine(m.colorizeEntry(e, styles, bg), width))
		if i < len(entries)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) colorizeEntry(e logtail.Entry, styles Styles, bg BgStyle) string {
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(bg.Render(e.Time.Local().Format("2006-01-02 15:04:05"), styles.FaintText))
		b.WriteString(bg.Space())
	}
	b.WriteString(bg.Render(padRight(e.Level.CapitalString(), 5), levelStyle(e.Level, styles).Bold(true)))
	if e.Logger != "" {
		b.WriteString(bg.Space())
		b.WriteString(bg.Render("["+e.Logger+"]", styles.AccentText))
	}
	b.WriteString(bg.Space())
	b.WriteString(bg.Render(e.Message, styles.Text))
	if fields := e.FieldString(); fields != "" {
		b.WriteString(bg.Space())
		b.WriteString(bg.Render(fields, styles.MutedText))
	}
	return b.String()
}

func levelStyle(level zapcore.Level, styles Styles) lipgloss.Style {
	switch {
	case level >= zapcore.ErrorLevel:
		return styles.DangerText
	case level == zapcore.WarnLevel:
		return styles.WarningText
	case level == zapcore.InfoLevel:
		return styles.SuccessText
	default:
		return styles.InfoText
	}
}
