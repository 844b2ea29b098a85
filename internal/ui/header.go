package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/workflow"
)

// lowStockThreshold marks parts that need reordering.
const lowStockThreshold = 2

// renderHeader renders the status bar with all information.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth

	parts := []string{bg.Render("toolroom", styles.Logo)}
	if user := m.username(); user != "" {
		parts = append(parts, bg.Render(user, styles.AccentText))
	}

	overdue, soon := m.dueCounts()
	parts = append(parts,
		bg.Render("Machines:", styles.MutedText)+bg.Space()+
			bg.Render(fmt.Sprintf("%d", len(m.machines.all)), styles.Text))
	overdueStyle := styles.MutedText
	if overdue > 0 {
		overdueStyle = styles.DangerText
	}
	soonStyle := styles.MutedText
	if soon > 0 {
		soonStyle = styles.WarningText
	}
	overdueLabel, soonLabel := "Overdue:", "Due soon:"
	if compact {
		overdueLabel, soonLabel = "O:", "S:"
	}
	parts = append(parts,
		bg.Render(overdueLabel, styles.MutedText)+bg.Space()+bg.Render(fmt.Sprintf("%d", overdue), overdueStyle)+
			bg.Spaces(2)+bg.Render("•", styles.FaintText)+bg.Spaces(2)+
			bg.Render(soonLabel, styles.MutedText)+bg.Space()+bg.Render(fmt.Sprintf("%d", soon), soonStyle))

	low := 0
	for _, p := range m.parts.all {
		if p.StockQuantity <= lowStockThreshold {
			low++
		}
	}
	partsText := bg.Render("Parts:", styles.MutedText) + bg.Space() +
		bg.Render(fmt.Sprintf("%d", len(m.parts.all)), styles.Text)
	if low > 0 {
		partsText += bg.Space() + bg.Render(fmt.Sprintf("(%d low)", low), styles.WarningText)
	}
	parts = append(parts, partsText)

	switch {
	case m.health.IsOffline():
		parts = append(parts, bg.Render("OFFLINE", styles.DangerText.Bold(true))+bg.Space()+
			bg.Render(truncate(api.UserMessage(m.health.LastError), ternaryInt(compact, 30, 60)), styles.DangerText))
	case !m.health.LastUpdated.IsZero():
		parts = append(parts, bg.Render(m.health.LastUpdated.Format("15:04:05")+
			" ("+humanizeDuration(m.now().Sub(m.health.LastUpdated))+" ago)", styles.MutedText))
	}

	if m.flash.text != "" {
		style := styles.SuccessText
		if m.flash.isErr {
			style = styles.DangerText
		}
		parts = append(parts, bg.Render(truncate(m.flash.text, ternaryInt(compact, 40, 80)), style))
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Width(m.width).
		Render(bg.Join(parts, "  "))
}

func (m Model) dueCounts() (overdue, soon int) {
	for _, x := range m.machines.all {
		if x.Status == api.StatusOutOfService {
			continue
		}
		switch workflow.DueState(x, m.thresholds).State {
		case workflow.DueOverdue:
			overdue++
		case workflow.DueSoon:
			soon++
		}
	}
	return overdue, soon
}

func ternaryInt(cond bool, a, b int) int {
	if cond {
		return a
	}
	return b
}

// renderCommandBar renders the command hints bar.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.view {
	case ViewMachine:
		commands = []cmd{
			{"m", "Maintain"},
			{"H", "Hours"},
			{"S", "Status"},
			{"M", "Magazine"},
			{"e", "Edit"},
			{"d", "Delete"},
			{"Esc", "Back"},
			{"?", "More"},
		}
	case ViewParts:
		commands = []cmd{
			{"n", "New"},
			{"e", "Edit"},
			{"+/-", "Stock"},
			{"d", "Delete"},
			{"R", "Refetch"},
			{"?", "More"},
		}
	case ViewWizard:
		commands = []cmd{
			{"Enter", "Next"},
			{"Esc", "Back"},
			{"Space", "Select"},
			{"+/-", "Quantity"},
			{"c", "Details"},
		}
	case ViewAdmin:
		commands = []cmd{
			{"[/]", "Tabs"},
			{"r", "Restore"},
			{"D", "Purge"},
			{"b", "Backup"},
			{"C", "Cleanup"},
			{"x", "Export"},
			{"X", "Server CSV"},
			{"?", "More"},
		}
	case ViewLogs:
		commands = []cmd{
			{"Space", ternary(m.logs.follow, "Pause", "Follow")},
			{"/", "Search"},
			{"L", "Level"},
			{"?", "More"},
		}
	default:
		commands = []cmd{
			{"Enter", "Open"},
			{"m", "Maintain"},
			{"n", "New"},
			{"H", "Hours"},
			{"s", "Sort " + m.prefs.MachineSort},
			{"x", ternary(m.prefs.HideRetired, "Show all", "Hide retired")},
			{"?", "More"},
		}
	}

	colon := bg.Sep(":")
	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, bg.Spaces(2)))
}
