package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is a named palette. The four background layers go from the screen
// behind every box to the box that holds keyboard focus.
type Theme struct {
	Name string

	Background string
	Surface    string // header, command bar, flash line
	SurfaceAlt string // unfocused boxes
	FocusBg    string // focused box, log and detail viewports

	SelectionBg   string
	SelectionText string

	Border      string
	BorderFocus string

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// StatusColors keys are machine statuses, due states and urgencies.
	StatusColors map[string]string
}

// palette is the compact form a theme is declared in.
type palette struct {
	screen, bar, panel, focus string
	cursor, cursorText        string
	edge, edgeFocus           string
	text, muted, faint        string
	ok, warn, danger, info    string
}

func newTheme(name string, p palette) Theme {
	return Theme{
		Name:          name,
		Background:    p.screen,
		Surface:       p.bar,
		SurfaceAlt:    p.panel,
		FocusBg:       p.focus,
		SelectionBg:   p.cursor,
		SelectionText: p.cursorText,
		Border:        p.edge,
		BorderFocus:   p.edgeFocus,
		Text:          p.text,
		Muted:         p.muted,
		Faint:         p.faint,
		Accent:        p.edgeFocus,
		Success:       p.ok,
		Warning:       p.warn,
		Danger:        p.danger,
		Info:          p.info,
		StatusColors: map[string]string{
			"Active":        p.ok,
			"InMaintenance": p.info,
			"OutOfService":  p.faint,
			"ok":            p.ok,
			"due soon":      p.warn,
			"overdue":       p.danger,
			"low":           p.faint,
			"medium":        p.warn,
			"high":          p.danger,
		},
	}
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	fg := func(color string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	}
	on := func(bg, color string) lipgloss.Style {
		return fg(color).Background(lipgloss.Color(bg))
	}
	return Styles{
		Background: lipgloss.NewStyle().Background(lipgloss.Color(t.Background)),
		Surface:    on(t.Surface, t.Text),
		SurfaceAlt: on(t.SurfaceAlt, t.Text),

		Text:        fg(t.Text),
		MutedText:   fg(t.Muted),
		FaintText:   fg(t.Faint),
		AccentText:  fg(t.Accent),
		SuccessText: fg(t.Success).Bold(true),
		WarningText: fg(t.Warning),
		DangerText:  fg(t.Danger).Bold(true),
		InfoText:    fg(t.Info),

		Header:   on(t.Surface, t.Text).Padding(0, 1),
		Logo:     fg(t.Warning).Bold(true),
		Selected: on(t.SelectionBg, t.SelectionText),

		statusColors: t.StatusColors,
		background:   t.Background,
		muted:        t.Muted,
	}
}

// Styles is the rendered form of a Theme.
type Styles struct {
	Background lipgloss.Style
	Surface    lipgloss.Style
	SurfaceAlt lipgloss.Style

	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	InfoText    lipgloss.Style

	Header   lipgloss.Style
	Logo     lipgloss.Style
	Selected lipgloss.Style

	statusColors map[string]string
	background   string
	muted        string
}

// StatusStyle renders label as a filled badge. Unknown labels get the muted
// color.
func (s Styles) StatusStyle(label string) lipgloss.Style {
	color, ok := s.statusColors[label]
	if !ok || color == "" {
		color = s.muted
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.background)).
		Background(lipgloss.Color(color)).
		Padding(0, 1)
}

// WithBackground paints every style onto bgColor, for text drawn inside a
// filled box.
func (s Styles) WithBackground(bgColor string) Styles {
	bg := lipgloss.Color(bgColor)
	out := s
	for _, st := range []*lipgloss.Style{
		&out.Background, &out.Surface, &out.SurfaceAlt,
		&out.Text, &out.MutedText, &out.FaintText, &out.AccentText,
		&out.SuccessText, &out.WarningText, &out.DangerText, &out.InfoText,
		&out.Header, &out.Logo, &out.Selected,
	} {
		*st = st.Background(bg)
	}
	return out
}

const defaultTheme = "Nightfox"

// Palettes: nightfox.nvim, kanagawa.nvim and the Tailwind slate/sky scale.
var themes = map[string]Theme{
	"Nightfox": newTheme("Nightfox", palette{
		screen: "#131a24", bar: "#192330", panel: "#212e3f", focus: "#29394f",
		cursor: "#2b3b51", cursorText: "#cdcecf",
		edge: "#39506d", edgeFocus: "#719cd6",
		text: "#cdcecf", muted: "#738091", faint: "#71839b",
		ok: "#81b29a", warn: "#dbc074", danger: "#c94f6d", info: "#63cdcf",
	}),
	"Kanagawa": newTheme("Kanagawa", palette{
		screen: "#16161D", bar: "#1F1F28", panel: "#2A2A37", focus: "#363646",
		cursor: "#2D4F67", cursorText: "#DCD7BA",
		edge: "#54546D", edgeFocus: "#7E9CD8",
		text: "#DCD7BA", muted: "#C8C093", faint: "#727169",
		ok: "#98BB6C", warn: "#E6C384", danger: "#E46876", info: "#7FB4CA",
	}),
	"Slate": newTheme("Slate", palette{
		screen: "#020617", bar: "#0f172a", panel: "#1e293b", focus: "#283548",
		cursor: "#0284c7", cursorText: "#f8fafc",
		edge: "#334155", edgeFocus: "#38bdf8",
		text: "#f1f5f9", muted: "#94a3b8", faint: "#64748b",
		ok: "#22c55e", warn: "#f59e0b", danger: "#ef4444", info: "#06b6d4",
	}),
}

var themeOrder = []string{"Nightfox", "Kanagawa", "Slate"}

// GetTheme looks a theme up by name and falls back to Nightfox.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes[defaultTheme]
}

// NextTheme is the theme after current in the cycle; unknown names start
// the cycle over.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames lists themes in cycle order.
func ThemeNames() []string {
	return themeOrder
}
