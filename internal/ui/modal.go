package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/toolroom/internal/api"
)

// Modal is the interface for modal dialogs.
// Update returns the updated modal, a command, and whether the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// fieldSpec describes one form input.
type fieldSpec struct {
	label       string
	value       string
	placeholder string
	secret      bool
}

// submitFunc turns form values into a command. A returned error keeps the
// form open and is shown under the fields.
type submitFunc func(values []string) (tea.Cmd, error)

type formModal struct {
	title  string
	labels []string
	inputs []textinput.Model
	focus  int
	err    string
	submit submitFunc
}

func newForm(title string, submit submitFunc, fields ...fieldSpec) formModal {
	f := formModal{title: title, submit: submit}
	for i, fs := range fields {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = fs.placeholder
		in.CharLimit = 256
		in.Width = 40
		in.SetValue(fs.value)
		if fs.secret {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		if i == 0 {
			in.Focus()
		}
		f.labels = append(f.labels, fs.label)
		f.inputs = append(f.inputs, in)
	}
	return f
}

func (f formModal) values() []string {
	out := make([]string, len(f.inputs))
	for i, in := range f.inputs {
		out[i] = strings.TrimSpace(in.Value())
	}
	return out
}

func (f formModal) setFocus(i int) formModal {
	if len(f.inputs) == 0 {
		return f
	}
	i = (i + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Blur()
	f.focus = i
	f.inputs[f.focus].Focus()
	return f
}

// Update implements Modal.
func (f formModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Cancel):
			return f, nil, true
		case key.Matches(msg, keys.NextField):
			return f.setFocus(f.focus + 1), nil, false
		case key.Matches(msg, keys.PrevField):
			return f.setFocus(f.focus - 1), nil, false
		case key.Matches(msg, keys.Confirm):
			if f.focus < len(f.inputs)-1 {
				return f.setFocus(f.focus + 1), nil, false
			}
			cmd, err := f.submit(f.values())
			if err != nil {
				f.err = api.UserMessage(err)
				return f, nil, false
			}
			return f, cmd, true
		}
	}
	if len(f.inputs) == 0 {
		return f, nil, false
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd, false
}

// View implements Modal.
func (f formModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(f.title))
	b.WriteString("\n\n")
	labelStyle := styles.MutedText.Width(20)
	for i, in := range f.inputs {
		label := labelStyle.Render(f.labels[i])
		if i == f.focus {
			label = styles.AccentText.Width(20).Render(f.labels[i])
		}
		b.WriteString(label)
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	if f.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.DangerText.Render(f.err))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("enter next/submit  tab switch field  esc cancel"))
	return placeModal(theme, width, height, b.String())
}

type confirmModal struct {
	title string
	body  string
	onYes tea.Cmd
}

func newConfirm(title, body string, onYes tea.Cmd) confirmModal {
	return confirmModal{title: title, body: body, onYes: onYes}
}

// Update implements Modal.
func (c confirmModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	msgKey, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil, false
	}
	switch {
	case key.Matches(msgKey, keys.Yes), key.Matches(msgKey, keys.Confirm):
		return c, c.onYes, true
	case key.Matches(msgKey, keys.No), key.Matches(msgKey, keys.Cancel):
		return c, nil, true
	}
	return c, nil, false
}

// View implements Modal.
func (c confirmModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	content := styles.WarningText.Bold(true).Render(c.title) + "\n\n" +
		styles.Text.Render(c.body) + "\n\n" +
		styles.FaintText.Render("y confirm  n/esc cancel")
	return placeModal(theme, width, height, content)
}

func placeModal(theme Theme, width, height int, content string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.Accent)).
		Padding(1, 2).
		Render(content)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}
