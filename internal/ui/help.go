package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

var helpTitles = []string{"Views", "Navigation", "Machines & parts", "Maintenance", "Admin", "Logs", "General"}

// renderHelp renders the help overlay from the key map.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Warning)).
		Width(12)

	var columns []string
	var col strings.Builder
	for i, group := range m.keys.FullHelp() {
		col.WriteString(styles.AccentText.Bold(true).Render(helpTitles[i]))
		col.WriteString("\n")
		for _, binding := range group {
			writeHelpItem(&col, binding, keyStyle, styles.Text)
		}
		col.WriteString("\n")
		// Two columns keep the overlay within a normal terminal height.
		if i == 3 {
			columns = append(columns, col.String())
			col.Reset()
		}
	}
	columns = append(columns, col.String())

	colStyle := lipgloss.NewStyle().Width(36)
	for i := range columns {
		columns[i] = colStyle.Render(columns[i])
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, columns...))

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}

func writeHelpItem(b *strings.Builder, binding key.Binding, keyStyle, descStyle lipgloss.Style) {
	h := binding.Help()
	if h.Key == "" {
		return
	}
	b.WriteString(keyStyle.Render(h.Key))
	b.WriteString(descStyle.Render(h.Desc))
	b.WriteString("\n")
}
