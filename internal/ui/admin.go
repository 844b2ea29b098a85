package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/data"
	"github.com/five82/toolroom/internal/export"
	"github.com/five82/toolroom/internal/logger"
)

type adminTab int

const (
	tabOverview adminTab = iota
	tabTrashMachines
	tabTrashParts
	tabBackups
	tabUsers
	adminTabCount
)

func (t adminTab) String() string {
	switch t {
	case tabOverview:
		return "Overview"
	case tabTrashMachines:
		return "Deleted machines"
	case tabTrashParts:
		return "Deleted parts"
	case tabBackups:
		return "Backups"
	case tabUsers:
		return "Users"
	}
	return "?"
}

type adminState struct {
	tab     adminTab
	cursor  int
	audit   *api.AuditSummary
	trash   map[api.ResourceType][]api.DeletedItem
	backups []api.Backup
	users   []api.User
	err     error

	lastExport string
}

// adminMsg carries one load of every admin resource. err is the first
// failure; the other fields still hold whatever loaded.
type adminMsg struct {
	audit    *api.AuditSummary
	machines []api.DeletedItem
	parts    []api.DeletedItem
	backups  []api.Backup
	users    []api.User
	loaded   [5]bool
	err      error
}

type exportMsg struct {
	path string
	err  error
}

// loadAdmin fetches the admin resources concurrently.
func (m Model) loadAdmin() tea.Cmd {
	layer, ctx := m.layer, m.ctx
	if layer == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
		defer cancel()

		var msg adminMsg
		errs := make([]error, 5)
		var g errgroup.Group
		g.Go(func() error {
			res := layer.AuditSummary(ctx)
			msg.audit, msg.loaded[0], errs[0] = res.Data, res.HasData, res.Err
			return nil
		})
		g.Go(func() error {
			res := layer.Deleted(ctx, api.ResourceMachine)
			msg.machines, msg.loaded[1], errs[1] = res.Data, res.HasData, res.Err
			return nil
		})
		g.Go(func() error {
			res := layer.Deleted(ctx, api.ResourcePart)
			msg.parts, msg.loaded[2], errs[2] = res.Data, res.HasData, res.Err
			return nil
		})
		g.Go(func() error {
			res := layer.Backups(ctx)
			msg.backups, msg.loaded[3], errs[3] = res.Data, res.HasData, res.Err
			return nil
		})
		g.Go(func() error {
			res := layer.Users(ctx)
			msg.users, msg.loaded[4], errs[4] = res.Data, res.HasData, res.Err
			return nil
		})
		_ = g.Wait()
		msg.err, _ = lo.Find(errs, func(err error) bool { return err != nil })
		return msg
	}
}

func (m *Model) applyAdmin(msg adminMsg) {
	a := &m.admin
	a.err = msg.err
	if a.trash == nil {
		a.trash = make(map[api.ResourceType][]api.DeletedItem)
	}
	if msg.loaded[0] {
		a.audit = msg.audit
	}
	if msg.loaded[1] {
		a.trash[api.ResourceMachine] = msg.machines
	}
	if msg.loaded[2] {
		a.trash[api.ResourcePart] = msg.parts
	}
	if msg.loaded[3] {
		a.backups = msg.backups
	}
	if msg.loaded[4] {
		a.users = msg.users
	}
	a.clampCursor()
}

// syncAdminFromCache mirrors optimistic trash and user edits.
func (m *Model) syncAdminFromCache() {
	a := &m.admin
	if a.trash == nil {
		a.trash = make(map[api.ResourceType][]api.DeletedItem)
	}
	if v, ok := cached[*api.AuditSummary](m.store, data.AuditKey()); ok {
		a.audit = v
	}
	for _, kind := range []api.ResourceType{api.ResourceMachine, api.ResourcePart} {
		if v, ok := cached[[]api.DeletedItem](m.store, data.DeletedKey(kind)); ok {
			a.trash[kind] = v
		}
	}
	if v, ok := cached[[]api.Backup](m.store, data.BackupsKey()); ok {
		a.backups = v
	}
	if v, ok := cached[[]api.User](m.store, data.UsersKey()); ok {
		a.users = v
	}
	a.clampCursor()
}

func (a adminState) rows() int {
	switch a.tab {
	case tabTrashMachines:
		return len(a.trash[api.ResourceMachine])
	case tabTrashParts:
		return len(a.trash[api.ResourcePart])
	case tabBackups:
		return len(a.backups)
	case tabUsers:
		return len(a.users)
	}
	return 0
}

func (a *adminState) clampCursor() {
	a.cursor = min(a.cursor, a.rows()-1)
	a.cursor = max(a.cursor, 0)
}

func (a adminState) trashKind() (api.ResourceType, bool) {
	switch a.tab {
	case tabTrashMachines:
		return api.ResourceMachine, true
	case tabTrashParts:
		return api.ResourcePart, true
	}
	return "", false
}

func (a adminState) selectedTrash() (api.DeletedItem, bool) {
	kind, ok := a.trashKind()
	if !ok {
		return api.DeletedItem{}, false
	}
	items := a.trash[kind]
	if a.cursor >= len(items) {
		return api.DeletedItem{}, false
	}
	return items[a.cursor], true
}

func (a adminState) selectedUser() (api.User, bool) {
	if a.tab != tabUsers || a.cursor >= len(a.users) {
		return api.User{}, false
	}
	return a.users[a.cursor], true
}

func (m Model) handleAdminKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := &m.admin
	layer := m.layer
	switch {
	case key.Matches(msg, m.keys.NextTab):
		a.tab = (a.tab + 1) % adminTabCount
		a.cursor = 0
	case key.Matches(msg, m.keys.PrevTab):
		a.tab = (a.tab + adminTabCount - 1) % adminTabCount
		a.cursor = 0
	case key.Matches(msg, m.keys.Up):
		a.cursor = max(a.cursor-1, 0)
	case key.Matches(msg, m.keys.Down):
		a.cursor = min(a.cursor+1, max(a.rows()-1, 0))
	case key.Matches(msg, m.keys.Top):
		a.cursor = 0
	case key.Matches(msg, m.keys.Bottom):
		a.cursor = max(a.rows()-1, 0)

	case key.Matches(msg, m.keys.Restore):
		if item, ok := a.selectedTrash(); ok {
			return m, m.mutate("Restored "+item.Label, func(ctx context.Context) error {
				return layer.Restore(ctx, item.Type, item.ID)
			}, nil)
		}
	case key.Matches(msg, m.keys.Purge):
		if item, ok := a.selectedTrash(); ok {
			m.modal = newConfirm("Delete "+item.Label+" permanently?", "This cannot be undone.",
				m.mutate("Permanently deleted "+item.Label, func(ctx context.Context) error {
					return layer.DeletePermanently(ctx, item.Type, item.ID)
				}, nil))
		}
	case key.Matches(msg, m.keys.Backup):
		return m, m.createBackup()
	case key.Matches(msg, m.keys.Cleanup):
		m.modal = newConfirm("Run cleanup?", "Purges old trash entries and expired backups on the server.", m.cleanup())
	case a.tab == tabUsers && key.Matches(msg, m.keys.ToggleActive):
		if u, ok := a.selectedUser(); ok {
			in := api.UserInput{Username: u.Username, FullName: u.FullName, Role: u.Role, IsActive: !u.IsActive}
			state := ternary(in.IsActive, "enabled", "disabled")
			return m, m.mutate(u.Username+" "+state, func(ctx context.Context) error {
				return layer.UpdateUser(ctx, u.ID, in)
			}, nil)
		}
	case a.tab == tabUsers && key.Matches(msg, m.keys.New):
		m.modal = m.userForm()
		return m, textinput.Blink
	case a.tab == tabUsers && key.Matches(msg, m.keys.Delete):
		if u, ok := a.selectedUser(); ok {
			m.modal = newConfirm("Delete user "+u.Username+"?", "The account can no longer sign in.",
				m.mutate("Deleted user "+u.Username, func(ctx context.Context) error {
					return layer.DeleteUser(ctx, u.ID)
				}, nil))
		}
	case key.Matches(msg, m.keys.Export):
		return m, m.exportWorkbook()
	case key.Matches(msg, m.keys.ServerExport):
		return m, m.exportServer(api.ExportCSV)
	}
	return m, nil
}

func (m Model) createBackup() tea.Cmd {
	layer, ctx := m.layer, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
		defer cancel()
		b, err := layer.CreateBackup(ctx)
		if err != nil {
			return mutationMsg{err: err}
		}
		return mutationMsg{done: "Backup created: " + b.FileName}
	}
}

func (m Model) cleanup() tea.Cmd {
	layer, ctx := m.layer, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
		defer cancel()
		res, err := layer.Cleanup(ctx)
		if err != nil {
			return mutationMsg{err: err}
		}
		return mutationMsg{done: fmt.Sprintf("Cleanup removed %d machine(s), %d part(s), %d backup(s)",
			res.RemovedMachines, res.RemovedParts, res.RemovedBackups)}
	}
}

func (m Model) userForm() Modal {
	layer := m.layer
	return newForm("New user", func(v []string) (tea.Cmd, error) {
		in := api.UserInput{Username: v[0], FullName: v[1], Role: lo.CoalesceOrEmpty(v[2], "technician"), Password: v[3], IsActive: true}
		if in.Username == "" || in.Password == "" {
			return nil, fmt.Errorf("username and password are required")
		}
		return m.mutate("Created user "+in.Username, func(ctx context.Context) error {
			_, err := layer.CreateUser(ctx, in)
			return err
		}, nil), nil
	},
		fieldSpec{label: "Username"},
		fieldSpec{label: "Full name"},
		fieldSpec{label: "Role", placeholder: "technician"},
		fieldSpec{label: "Password", secret: true},
	)
}

func (m Model) exportName(ext string) string {
	return filepath.Join(m.exportDir, "toolroom-"+m.now().Format("20060102-150405")+"."+ext)
}

// exportWorkbook writes the cached machines and parts to a local workbook.
func (m Model) exportWorkbook() tea.Cmd {
	wb := export.Workbook{Machines: m.machines.all, Parts: m.parts.all, Thresholds: m.thresholds}
	path := m.exportName("xlsx")
	return func() tea.Msg {
		return exportMsg{path: path, err: export.WriteFile(path, wb)}
	}
}

// exportServer saves the backend's own export.
func (m Model) exportServer(format string) tea.Cmd {
	layer, ctx := m.layer, m.ctx
	path := m.exportName(format)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
		defer cancel()
		body, err := layer.Export(ctx, format)
		if err != nil {
			return exportMsg{err: err}
		}
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return exportMsg{err: fmt.Errorf("write export: %w", err)}
		}
		return exportMsg{path: path}
	}
}

func (m *Model) handleExport(msg exportMsg) {
	if msg.err != nil {
		m.log.Warn("export failed", logger.ErrorF(msg.err))
		m.setFlash("Export failed: "+api.UserMessage(msg.err), true)
		return
	}
	m.admin.lastExport = msg.path
	m.log.Info("exported", logger.String("path", msg.path))
	m.setFlash("Exported to "+msg.path, false)
}

func (m Model) renderAdmin() string {
	styles := m.theme.Styles()
	a := m.admin
	var b strings.Builder

	for t := adminTab(0); t < adminTabCount; t++ {
		label := " " + t.String() + " "
		if t == a.tab {
			b.WriteString(styles.Selected.Bold(true).Render(label))
		} else {
			b.WriteString(styles.MutedText.Render(label))
		}
		b.WriteString(" ")
	}
	b.WriteString("\n\n")

	line := func(i int, text string) {
		if i == a.cursor {
			b.WriteString(styles.Selected.Render(text))
		} else {
			b.WriteString(styles.Text.Render(text))
		}
		b.WriteString("\n")
	}

	switch a.tab {
	case tabOverview:
		m.renderAudit(&b, styles)
	case tabTrashMachines, tabTrashParts:
		kind, _ := a.trashKind()
		items := a.trash[kind]
		if len(items) == 0 {
			b.WriteString(styles.MutedText.Render("Trash is empty."))
			b.WriteString("\n")
		}
		for i, it := range items {
			line(i, fmt.Sprintf("%-28s deleted %s by %s", truncate(it.Label, 28), formatDate(api.ParseTime(it.DeletedAt)), lo.CoalesceOrEmpty(it.DeletedBy, "-")))
		}
	case tabBackups:
		if len(a.backups) == 0 {
			b.WriteString(styles.MutedText.Render("No backups."))
			b.WriteString("\n")
		}
		for i, bk := range a.backups {
			line(i, fmt.Sprintf("%-36s %s  %s", truncate(bk.FileName, 36), formatDate(api.ParseTime(bk.CreatedAt)), formatBytes(bk.SizeBytes)))
		}
	case tabUsers:
		if len(a.users) == 0 {
			b.WriteString(styles.MutedText.Render("No users."))
			b.WriteString("\n")
		}
		for i, u := range a.users {
			line(i, fmt.Sprintf("%-16s %-24s %-12s %s", u.Username, truncate(u.FullName, 24), u.Role, ternary(u.IsActive, "active", "disabled")))
		}
	}

	if a.err != nil {
		b.WriteString("\n")
		b.WriteString(styles.DangerText.Render(api.UserMessage(a.err)))
	}
	if a.lastExport != "" {
		b.WriteString("\n")
		b.WriteString(styles.FaintText.Render("last export " + a.lastExport))
	}
	return m.titledBox("Admin", b.String(), m.width, m.contentHeight(), true)
}

func (m Model) renderAudit(b *strings.Builder, styles Styles) {
	s := m.admin.audit
	if s == nil {
		b.WriteString(styles.MutedText.Render("Loading..."))
		b.WriteString("\n")
		return
	}
	row := func(label string, value string, style func(string) string) {
		b.WriteString(styles.MutedText.Render(padRight(label, 20)))
		b.WriteString(style(value))
		b.WriteString("\n")
	}
	plain := func(s string) string { return styles.Text.Render(s) }
	row("Machines", fmt.Sprintf("%d (%d deleted)", s.TotalMachines, s.DeletedMachines), plain)
	row("Parts", fmt.Sprintf("%d (%d deleted)", s.TotalParts, s.DeletedParts), plain)
	lowStock := plain
	if s.LowStockParts > 0 {
		lowStock = func(s string) string { return styles.WarningText.Render(s) }
	}
	row("Low stock parts", fmt.Sprintf("%d", s.LowStockParts), lowStock)
	last := api.ParseTime(s.LastBackupAt)
	backup := plain
	if last.IsZero() || m.now().Sub(last) > 7*24*time.Hour {
		backup = func(s string) string { return styles.WarningText.Render(s) }
	}
	row("Last backup", formatDate(last), backup)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
