package ui

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/magazine"
	"github.com/five82/toolroom/internal/prefs"
	"github.com/five82/toolroom/internal/query"
	"github.com/five82/toolroom/internal/workflow"
)

type machinesState struct {
	table   table.Model
	all     []api.Machine
	rows    []api.Machine // table order
	err     error
	stale   bool
	updated time.Time
}

type machinesMsg struct {
	res query.Result[[]api.Machine]
}

func newMachinesState() machinesState {
	return machinesState{
		table: table.New(
			table.WithColumns(machineColumns(120)),
			table.WithFocused(true),
		),
	}
}

func idString(id int64) string { return strconv.FormatInt(id, 10) }

func machineColumns(width int) []table.Column {
	cols := []table.Column{
		{Title: "Number", Width: 10},
		{Title: "Type", Width: 18},
		{Title: "Status", Width: 14},
		{Title: "Hours", Width: 10},
		{Title: "Due", Width: 9},
		{Title: "Next due", Width: 10},
	}
	// Rows always carry every cell; hidden columns get zero width.
	extra := []table.Column{{Title: "Last service"}, {Title: "Magazine"}}
	if width >= LayoutCompactWidth {
		extra[0].Width, extra[1].Width = 12, 9
	}
	return append(cols, extra...)
}

func tableStyles(theme Theme) table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(theme.Border)).
		BorderBottom(true).
		Foreground(lipgloss.Color(theme.Accent)).
		Bold(true)
	s.Cell = s.Cell.Foreground(lipgloss.Color(theme.Text))
	s.Selected = s.Selected.
		Foreground(lipgloss.Color(theme.SelectionText)).
		Background(lipgloss.Color(theme.SelectionBg)).
		Bold(false)
	return s
}

// sortMachines orders machines by the preferred column. Overdue machines
// lead the status order.
func sortMachines(list []api.Machine, order string, th workflow.Thresholds) []api.Machine {
	out := slices.Clone(list)
	switch order {
	case prefs.SortByHours:
		slices.SortStableFunc(out, func(a, b api.Machine) int {
			return cmp.Or(cmp.Compare(b.OperatingHours, a.OperatingHours), cmp.Compare(a.Number, b.Number))
		})
	case prefs.SortByStatus:
		slices.SortStableFunc(out, func(a, b api.Machine) int {
			da, db := workflow.DueState(a, th), workflow.DueState(b, th)
			return cmp.Or(
				cmp.Compare(db.State, da.State),
				cmp.Compare(da.Remaining, db.Remaining),
				cmp.Compare(a.Number, b.Number),
			)
		})
	default:
		slices.SortStableFunc(out, func(a, b api.Machine) int { return cmp.Compare(a.Number, b.Number) })
	}
	return out
}

func (m *Model) refreshMachineTable() {
	var selected int64
	if r := m.selectedMachine(); r != nil {
		selected = r.ID
	}
	list := m.machines.all
	if m.prefs.HideRetired {
		list = lo.Filter(list, func(x api.Machine, _ int) bool { return x.Status != api.StatusOutOfService })
	}
	m.machines.rows = sortMachines(list, m.prefs.MachineSort, m.thresholds)

	rows := make([]table.Row, 0, len(m.machines.rows))
	for _, x := range m.machines.rows {
		due := workflow.DueState(x, m.thresholds)
		next := "-"
		if due.NextDueAt > 0 {
			next = strconv.Itoa(due.NextDueAt)
		}
		rows = append(rows, table.Row{
			x.Number,
			x.Type,
			string(x.Status),
			strconv.Itoa(x.OperatingHours),
			due.State.String(),
			next,
			formatDate(x.LastMaintained()),
			fmt.Sprintf("%d%%", magazine.Completeness(x.MagazineProperties)),
		})
	}
	m.machines.table.SetRows(rows)

	if selected != 0 {
		if i := slices.IndexFunc(m.machines.rows, func(x api.Machine) bool { return x.ID == selected }); i >= 0 {
			m.machines.table.SetCursor(i)
			return
		}
	}
	if c := m.machines.table.Cursor(); c >= len(rows) {
		m.machines.table.SetCursor(maxInt(len(rows)-1, 0))
	}
}

func (m Model) selectedMachine() *api.Machine {
	i := m.machines.table.Cursor()
	if i < 0 || i >= len(m.machines.rows) {
		return nil
	}
	x := m.machines.rows[i]
	return &x
}

func (m Model) loadMachines(refresh bool) tea.Cmd {
	layer, ctx := m.layer, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
		defer cancel()
		if refresh {
			return machinesMsg{res: layer.RefreshMachines(ctx)}
		}
		return machinesMsg{res: layer.Machines(ctx)}
	}
}

func (m *Model) applyMachines(msg machinesMsg) {
	m.machines.err = msg.res.Err
	m.machines.stale = msg.res.Stale
	if msg.res.HasData {
		m.machines.all = msg.res.Data
		m.machines.updated = msg.res.UpdatedAt
	}
	m.refreshMachineTable()
}

func (m Model) handleMachinesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	selected := m.selectedMachine()
	switch {
	case key.Matches(msg, m.keys.Open):
		if selected == nil {
			return m, nil
		}
		return m.openMachine(*selected)
	case key.Matches(msg, m.keys.New):
		m.modal = m.machineForm(nil)
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Edit):
		if selected != nil {
			m.modal = m.machineForm(selected)
			return m, textinput.Blink
		}
	case key.Matches(msg, m.keys.Delete):
		if selected != nil {
			m.modal = m.deleteMachineConfirm(*selected, false)
		}
	case key.Matches(msg, m.keys.Hours):
		if selected != nil {
			m.modal = m.hoursForm(*selected)
			return m, textinput.Blink
		}
	case key.Matches(msg, m.keys.Maintain):
		if selected != nil {
			return m, m.startMaintenance(*selected)
		}
	case key.Matches(msg, m.keys.CycleSort):
		m.prefs.MachineSort = m.prefs.NextSort()
		m.refreshMachineTable()
		m.savePrefs()
	case key.Matches(msg, m.keys.HideRetired):
		m.prefs.HideRetired = !m.prefs.HideRetired
		m.refreshMachineTable()
		m.savePrefs()
	case key.Matches(msg, m.keys.Top):
		m.machines.table.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.machines.table.GotoBottom()
	default:
		var cmd tea.Cmd
		m.machines.table, cmd = m.machines.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

// machineForm creates a machine, or edits one when existing is set.
func (m Model) machineForm(existing *api.Machine) Modal {
	if existing == nil {
		return newForm("New machine", func(v []string) (tea.Cmd, error) {
			in, err := parseMachineCreate(v)
			if err != nil {
				return nil, err
			}
			if err := in.Validate(); err != nil {
				return nil, err
			}
			layer := m.layer
			return m.mutate("Created machine "+in.Number, func(ctx context.Context) error {
				_, err := layer.CreateMachine(ctx, in)
				return err
			}, nil), nil
		},
			fieldSpec{label: "Number", placeholder: "M-1001"},
			fieldSpec{label: "Type", placeholder: "Lathe"},
			fieldSpec{label: "Operating hours", value: "0"},
			fieldSpec{label: "Installed", value: m.now().Format("2006-01-02"), placeholder: "YYYY-MM-DD"},
			fieldSpec{label: "Status", value: string(api.StatusActive)},
		)
	}

	x := *existing
	return newForm("Edit machine "+x.Number, func(v []string) (tea.Cmd, error) {
		update, err := parseMachineUpdate(x, v)
		if err != nil {
			return nil, err
		}
		layer := m.layer
		return m.mutate("Updated machine "+lo.FromPtrOr(update.Number, x.Number), func(ctx context.Context) error {
			return layer.UpdateMachine(ctx, x.ID, update)
		}, nil), nil
	},
		fieldSpec{label: "Number", value: x.Number},
		fieldSpec{label: "Type", value: x.Type},
		fieldSpec{label: "Installed", value: formatDate(x.Installed()), placeholder: "YYYY-MM-DD"},
	)
}

func parseMachineCreate(v []string) (api.MachineCreate, error) {
	hours, err := strconv.Atoi(v[2])
	if err != nil {
		return api.MachineCreate{}, fmt.Errorf("operating hours must be a whole number")
	}
	installed, err := parseDate(v[3])
	if err != nil {
		return api.MachineCreate{}, err
	}
	return api.MachineCreate{
		Number:           v[0],
		Type:             v[1],
		OperatingHours:   hours,
		InstallationDate: installed,
		Status:           api.MachineStatus(v[4]),
	}, nil
}

// parseMachineUpdate returns an update holding only the changed fields.
func parseMachineUpdate(x api.Machine, v []string) (api.MachineUpdate, error) {
	var u api.MachineUpdate
	if v[0] == "" || v[1] == "" {
		return u, fmt.Errorf("number and type are required")
	}
	if v[0] != x.Number {
		u.Number = lo.ToPtr(v[0])
	}
	if v[1] != x.Type {
		u.Type = lo.ToPtr(v[1])
	}
	if v[2] != formatDate(x.Installed()) {
		installed, err := parseDate(v[2])
		if err != nil {
			return u, err
		}
		u.InstallationDate = lo.ToPtr(installed)
	}
	if u == (api.MachineUpdate{}) {
		return u, fmt.Errorf("nothing changed")
	}
	return u, nil
}

func parseDate(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return "", fmt.Errorf("date must look like 2024-01-31")
	}
	return t.Format("2006-01-02T15:04:05"), nil
}

func (m Model) hoursForm(x api.Machine) Modal {
	return newForm("Operating hours for "+x.Number, func(v []string) (tea.Cmd, error) {
		hours, err := strconv.Atoi(v[0])
		if err != nil || hours < 0 {
			return nil, fmt.Errorf("operating hours must be a whole number of zero or more")
		}
		layer := m.layer
		return m.mutate(fmt.Sprintf("%s now at %s", x.Number, formatHours(hours)), func(ctx context.Context) error {
			return layer.UpdateOperatingHours(ctx, x.ID, hours)
		}, nil), nil
	}, fieldSpec{label: "Operating hours", value: strconv.Itoa(x.OperatingHours)})
}

// deleteMachineConfirm asks before deleting. From the detail view a
// successful delete returns to the list.
func (m Model) deleteMachineConfirm(x api.Machine, fromDetail bool) Modal {
	layer := m.layer
	var after func(*Model) tea.Cmd
	if fromDetail {
		after = func(m *Model) tea.Cmd {
			m.view = ViewMachines
			m.detail = detailState{viewport: m.detail.viewport}
			return m.enterView(ViewMachines)
		}
	}
	return newConfirm(
		"Delete machine "+x.Number+"?",
		"The machine moves to the admin trash and can be restored from there.",
		m.mutate("Deleted machine "+x.Number, func(ctx context.Context) error {
			return layer.DeleteMachine(ctx, x.ID)
		}, after),
	)
}

// renderMachines renders the machine table.
func (m Model) renderMachines() string {
	styles := m.theme.Styles()
	h := m.contentHeight()

	title := fmt.Sprintf("Machines (%d)  sort: %s", len(m.machines.rows), m.prefs.MachineSort)
	if m.prefs.HideRetired {
		title += "  active only"
	}
	if m.machines.stale {
		title += "  stale"
	}

	var content string
	switch {
	case len(m.machines.all) == 0 && m.machines.err != nil:
		content = styles.DangerText.Render(api.UserMessage(m.machines.err))
	case len(m.machines.all) == 0:
		content = styles.MutedText.Render("No machines yet. Press n to add one.")
	default:
		content = m.machines.table.View()
		if m.machines.err != nil {
			content += "\n" + styles.WarningText.Render("Showing cached data: "+truncate(api.UserMessage(m.machines.err), m.width-30))
		}
	}
	return m.titledBox(title, content, m.width, h, true)
}

func dueStyle(styles Styles, due workflow.Due) lipgloss.Style {
	return styles.StatusStyle(due.String())
}

func statusBadge(styles Styles, status api.MachineStatus) string {
	label := strings.TrimSpace(string(status))
	if label == "" {
		label = "unknown"
	}
	return styles.StatusStyle(label).Render(label)
}
