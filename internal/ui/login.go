package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/logger"
)

type loginState struct {
	inputs [2]textinput.Model // username, password
	focus  int
	err    string
	notice string
	busy   bool
}

type loginMsg struct {
	creds api.Credentials
	err   error
}

func newLoginState(lastUser string) loginState {
	user := textinput.New()
	user.Placeholder = "username"
	user.CharLimit = 64
	user.Width = 32
	user.SetValue(lastUser)

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.CharLimit = 128
	pass.Width = 32
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'

	s := loginState{inputs: [2]textinput.Model{user, pass}}
	if lastUser != "" {
		s.focus = 1
	}
	s.inputs[s.focus].Focus()
	return s
}

func (s loginState) focusCmd() tea.Cmd {
	return textinput.Blink
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.login.busy {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.NextField), key.Matches(msg, m.keys.PrevField):
		m.login.inputs[m.login.focus].Blur()
		m.login.focus = 1 - m.login.focus
		m.login.inputs[m.login.focus].Focus()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		user := strings.TrimSpace(m.login.inputs[0].Value())
		pass := m.login.inputs[1].Value()
		if user == "" || pass == "" {
			m.login.err = "Username and password are required."
			return m, nil
		}
		if m.login.focus == 0 {
			m.login.inputs[0].Blur()
			m.login.focus = 1
			m.login.inputs[1].Focus()
		}
		m.login.busy = true
		m.login.err = ""
		return m, m.loginCmd(user, pass)
	case msg.String() == "esc":
		return m, tea.Quit
	}
	return m.updateLoginInputs(msg)
}

func (m Model) updateLoginInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.login.inputs[m.login.focus], cmd = m.login.inputs[m.login.focus].Update(msg)
	return m, cmd
}

func (m Model) loginCmd(user, pass string) tea.Cmd {
	layer, ctx := m.layer, m.ctx
	return func() tea.Msg {
		if layer == nil {
			return loginMsg{err: api.ErrSessionExpired}
		}
		ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
		defer cancel()
		creds, err := layer.Login(ctx, user, pass)
		return loginMsg{creds: creds, err: err}
	}
}

func (m Model) handleLogin(msg loginMsg) (tea.Model, tea.Cmd) {
	m.login.busy = false
	if msg.err != nil {
		m.log.Info("sign in failed", logger.ErrorF(msg.err))
		m.login.err = api.UserMessage(msg.err)
		if api.StatusCode(msg.err) == 401 {
			m.login.err = "Invalid username or password."
		}
		m.login.inputs[1].SetValue("")
		return m, nil
	}
	m.log.Info("signed in", logger.String("user", msg.creds.Username))
	if m.prefs.LastUser != msg.creds.Username {
		m.prefs.LastUser = msg.creds.Username
		m.savePrefs()
	}
	m.setFlash("Signed in as "+msg.creds.Username, false)
	return m.switchView(ViewMachines)
}

func (m Model) renderLogin() string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(styles.Logo.Render("toolroom"))
	b.WriteString("  ")
	b.WriteString(styles.MutedText.Render("CNC maintenance"))
	b.WriteString("\n\n")

	if m.config != nil {
		b.WriteString(styles.FaintText.Render(truncateMiddle(m.config.APIURL, 44)))
		b.WriteString("\n\n")
	}
	labels := []string{"Username", "Password"}
	for i, in := range m.login.inputs {
		style := styles.MutedText
		if i == m.login.focus {
			style = styles.AccentText
		}
		b.WriteString(style.Width(10).Render(labels[i]))
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	switch {
	case m.login.busy:
		b.WriteString(styles.InfoText.Render("Signing in..."))
	case m.login.err != "":
		b.WriteString(styles.DangerText.Render(m.login.err))
	case m.login.notice != "":
		b.WriteString(styles.WarningText.Render(m.login.notice))
	default:
		b.WriteString(styles.FaintText.Render("enter sign in  tab switch field  esc quit"))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderFocus)).
		Padding(1, 3).
		Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}
