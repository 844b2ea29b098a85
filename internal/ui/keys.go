package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Back       key.Binding
	Refresh    key.Binding
	Logout     key.Binding

	// View switching
	ViewMachines key.Binding
	ViewParts    key.Binding
	ViewAdmin    key.Binding
	ViewLogs     key.Binding

	// Navigation
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding
	Open   key.Binding

	// Machines
	New         key.Binding
	Edit        key.Binding
	Delete      key.Binding
	Hours       key.Binding
	Status      key.Binding
	Magazine    key.Binding
	Maintain    key.Binding
	CycleSort   key.Binding
	HideRetired key.Binding

	// Parts and wizard quantities
	Increase key.Binding
	Decrease key.Binding
	Toggle   key.Binding
	Comment  key.Binding

	// Admin
	PrevTab       key.Binding
	NextTab       key.Binding
	Restore       key.Binding
	Purge         key.Binding
	Backup        key.Binding
	Cleanup       key.Binding
	Export        key.Binding
	ServerExport  key.Binding
	ToggleActive  key.Binding
	ToggleFollow  key.Binding
	Search        key.Binding
	CycleLogLevel key.Binding

	// Modals
	Confirm   key.Binding
	Cancel    key.Binding
	NextField key.Binding
	PrevField key.Binding
	Yes       key.Binding
	No        key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Next view"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Previous view"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Back"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "Refetch"),
		),
		Logout: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "Sign out"),
		),

		ViewMachines: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "Machines"),
		),
		ViewParts: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "Parts"),
		),
		ViewAdmin: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "Admin"),
		),
		ViewLogs: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "Logs"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Open / next"),
		),

		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "New"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "Edit"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Delete"),
		),
		Hours: key.NewBinding(
			key.WithKeys("H"),
			key.WithHelp("H", "Operating hours"),
		),
		Status: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "Cycle status"),
		),
		Magazine: key.NewBinding(
			key.WithKeys("M"),
			key.WithHelp("M", "Import magazine datasheet"),
		),
		Maintain: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Start maintenance"),
		),
		CycleSort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Cycle sort"),
		),
		HideRetired: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Hide out of service"),
		),

		Increase: key.NewBinding(
			key.WithKeys("+", "=", "right", "l"),
			key.WithHelp("+", "More"),
		),
		Decrease: key.NewBinding(
			key.WithKeys("-", "left", "h"),
			key.WithHelp("-", "Less"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "Select part"),
		),
		Comment: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Edit comment"),
		),

		PrevTab: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "Previous section"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "Next section"),
		),
		Restore: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Restore"),
		),
		Purge: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "Delete permanently"),
		),
		Backup: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "Create backup"),
		),
		Cleanup: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "Cleanup"),
		),
		Export: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Export workbook"),
		),
		ServerExport: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "Export CSV"),
		),
		ToggleActive: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Toggle active"),
		),
		ToggleFollow: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "Toggle follow"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "Search logs"),
		),
		CycleLogLevel: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Minimum level"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Cancel"),
		),
		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "Next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "Previous field"),
		),
		Yes: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "Yes"),
		),
		No: key.NewBinding(
			key.WithKeys("n", "N"),
			key.WithHelp("n", "No"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings grouped as in the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ViewMachines, k.ViewParts, k.ViewAdmin, k.ViewLogs, k.Tab, k.Back},
		{k.Up, k.Down, k.Top, k.Bottom, k.Open},
		{k.New, k.Edit, k.Delete, k.Hours, k.Status, k.Magazine, k.Maintain, k.CycleSort, k.HideRetired},
		{k.Toggle, k.Increase, k.Decrease, k.Comment},
		{k.PrevTab, k.NextTab, k.Restore, k.Purge, k.Backup, k.Cleanup, k.Export, k.ServerExport, k.ToggleActive},
		{k.ToggleFollow, k.Search, k.CycleLogLevel},
		{k.Refresh, k.CycleTheme, k.Logout, k.Help, k.Quit},
	}
}
