package ui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/data"
	"github.com/five82/toolroom/internal/magazine"
	"github.com/five82/toolroom/internal/query"
	"github.com/five82/toolroom/internal/workflow"
)

// detailRecordLimit caps the maintenance history shown in the detail view.
const detailRecordLimit = 10

type detailState struct {
	id       int64
	number   string
	machine  *api.MachineDetail
	list     *api.MaintenancePartsList
	err      error
	listErr  error
	viewport viewport.Model
}

type machineMsg struct {
	id  int64
	res query.Result[*api.MachineDetail]
}

type partsListMsg struct {
	number string
	res    query.Result[*api.MaintenancePartsList]
}

func (m Model) openMachine(x api.Machine) (tea.Model, tea.Cmd) {
	vp := m.detail.viewport
	if vp.Width == 0 {
		vp = viewport.New(maxInt(m.width-4, 10), maxInt(m.contentHeight()-2, 1))
	}
	m.detail = detailState{id: x.ID, number: x.Number, viewport: vp}
	m.applyTheme()
	m.syncFromCache()
	m.detail.viewport.GotoTop()
	m.view = ViewMachine
	return m, m.enterView(ViewMachine)
}

func (m Model) loadMachine(refresh bool) tea.Cmd {
	layer, ctx, id := m.layer, m.ctx, m.detail.id
	if id <= 0 {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
		defer cancel()
		if refresh {
			layer.Store().Invalidate(data.MachineKey(idString(id)))
		}
		return machineMsg{id: id, res: layer.Machine(ctx, idString(id))}
	}
}

func (m Model) loadPartsList(refresh bool) tea.Cmd {
	layer, ctx, number := m.layer, m.ctx, m.detail.number
	if number == "" {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
		defer cancel()
		if refresh {
			layer.Store().Invalidate(data.PartsListKey(number))
		}
		return partsListMsg{number: number, res: layer.PartsList(ctx, number)}
	}
}

func (m *Model) applyMachine(msg machineMsg) {
	if msg.id != m.detail.id {
		return
	}
	m.detail.err = msg.res.Err
	if msg.res.HasData {
		m.detail.machine = msg.res.Data
		if n := msg.res.Data.Number; n != "" && n != m.detail.number {
			m.detail.number = n
		}
	}
	if api.IsNotFound(msg.res.Err) && m.view == ViewMachine {
		m.setFlash("Machine no longer exists", true)
		m.view = ViewMachines
	}
	m.refreshDetailViewport()
}

func (m *Model) applyPartsList(msg partsListMsg) {
	if msg.number != m.detail.number {
		return
	}
	m.detail.listErr = msg.res.Err
	if msg.res.HasData {
		m.detail.list = msg.res.Data
	}
	m.refreshDetailViewport()
}

// currentMachine prefers the detail record and falls back to the list row.
func (m Model) currentMachine() (api.Machine, bool) {
	if m.detail.machine != nil {
		return m.detail.machine.Machine, true
	}
	i := slices.IndexFunc(m.machines.all, func(x api.Machine) bool { return x.ID == m.detail.id })
	if i < 0 {
		return api.Machine{}, false
	}
	return m.machines.all[i], true
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	x, ok := m.currentMachine()
	switch {
	case key.Matches(msg, m.keys.Back):
		m.view = ViewMachines
		return m, m.enterView(ViewMachines)
	case !ok:
		return m, nil
	case key.Matches(msg, m.keys.Maintain):
		return m, m.startMaintenance(x)
	case key.Matches(msg, m.keys.Hours):
		m.modal = m.hoursForm(x)
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Edit):
		m.modal = m.machineForm(&x)
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Delete):
		m.modal = m.deleteMachineConfirm(x, true)
	case key.Matches(msg, m.keys.Status):
		next := nextStatus(x.Status)
		layer := m.layer
		return m, m.mutate(fmt.Sprintf("%s is now %s", x.Number, next), func(ctx context.Context) error {
			return layer.UpdateMachine(ctx, x.ID, api.MachineUpdate{Status: lo.ToPtr(next)})
		}, nil)
	case key.Matches(msg, m.keys.Magazine):
		m.modal = m.magazineForm(x)
		return m, textinput.Blink
	default:
		var cmd tea.Cmd
		m.detail.viewport, cmd = m.detail.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func nextStatus(s api.MachineStatus) api.MachineStatus {
	i := slices.Index(api.MachineStatuses, s)
	return api.MachineStatuses[(i+1)%len(api.MachineStatuses)]
}

// magazineForm imports magazine properties from a datasheet. Extracted
// values fill the gaps; fields already set on the machine are kept.
func (m Model) magazineForm(x api.Machine) Modal {
	layer, extractor := m.layer, m.extractor
	return newForm("Import magazine datasheet for "+x.Number, func(v []string) (tea.Cmd, error) {
		path := v[0]
		if path == "" {
			return nil, fmt.Errorf("enter the path of a PDF datasheet")
		}
		return m.mutate("Magazine properties updated for "+x.Number, func(ctx context.Context) error {
			props, err := magazine.ExtractFile(ctx, extractor, path)
			if err != nil {
				return err
			}
			return layer.UpdateMagazineProperties(ctx, x.ID, magazine.Merge(props, x.MagazineProperties))
		}, nil), nil
	}, fieldSpec{label: "Datasheet", placeholder: "/path/to/datasheet.pdf"})
}

func (m *Model) refreshDetailViewport() {
	if m.detail.id == 0 || m.detail.viewport.Width == 0 {
		return
	}
	m.detail.viewport.SetContent(m.detailContent())
}

func (m Model) detailContent() string {
	styles := m.theme.Styles()
	x, ok := m.currentMachine()
	if !ok {
		if m.detail.err != nil {
			return styles.DangerText.Render(api.UserMessage(m.detail.err))
		}
		return styles.MutedText.Render("Loading...")
	}

	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(styles.MutedText.Render(padRight(label, 18)))
		b.WriteString(styles.Text.Render(value))
		b.WriteString("\n")
	}
	section := func(title string) {
		b.WriteString("\n")
		b.WriteString(styles.AccentText.Bold(true).Render(title))
		b.WriteString("\n")
	}

	due := workflow.DueState(x, m.thresholds)
	b.WriteString(styles.Text.Bold(true).Render(x.Number))
	b.WriteString("  ")
	b.WriteString(statusBadge(styles, x.Status))
	b.WriteString(" ")
	b.WriteString(dueStyle(styles, due.State).Render(due.State.String()))
	b.WriteString("\n\n")
	row("Type", x.Type)
	row("Operating hours", formatHours(x.OperatingHours))
	if due.NextDueAt > 0 {
		row("Next service at", fmt.Sprintf("%s (%+d h)", formatHours(due.NextDueAt), due.Remaining))
	}
	row("Installed", formatDate(x.Installed()))
	row("Maintenances", fmt.Sprintf("%d, last %s", x.MaintenanceCount, formatDate(x.LastMaintained())))

	section(fmt.Sprintf("Magazine  %d%% complete", magazine.Completeness(x.MagazineProperties)))
	mp := x.MagazineProperties
	row("Serial", lo.CoalesceOrEmpty(mp.SerialNumber, "-"))
	row("Type", lo.CoalesceOrEmpty(mp.MagazineType, "-"))
	row("Customer", lo.CoalesceOrEmpty(strings.TrimSpace(mp.CustomerName+" "+mp.CustomerNumber), "-"))
	if missing := magazine.Missing(mp); len(missing) > 0 {
		row("Missing", truncate(strings.Join(missing, ", "), maxInt(m.width-30, 20)))
	}

	section("Parts list")
	switch {
	case m.detail.list != nil:
		urgency := workflow.Classify(m.detail.list)
		b.WriteString(styles.StatusStyle(urgency.String()).Render("urgency " + urgency.String()))
		b.WriteString("\n")
		writeRequirements(&b, styles, "Required", m.detail.list.RequiredParts)
		writeRequirements(&b, styles, "Recommended", m.detail.list.RecommendedParts)
	case m.detail.listErr != nil:
		b.WriteString(styles.DangerText.Render(api.UserMessage(m.detail.listErr)))
		b.WriteString("\n")
	default:
		b.WriteString(styles.MutedText.Render("Loading..."))
		b.WriteString("\n")
	}

	section("Maintenance history")
	var records []api.MaintenanceRecord
	if m.detail.machine != nil {
		records = m.detail.machine.MaintenanceRecords
	}
	if len(records) == 0 {
		b.WriteString(styles.MutedText.Render("No maintenance recorded."))
		b.WriteString("\n")
	}
	for _, r := range lo.Slice(records, 0, detailRecordLimit) {
		b.WriteString(styles.Text.Render(fmt.Sprintf("%s  %-12s %-10s", formatDate(api.ParseTime(r.PerformedAt)), r.MaintenanceType, r.TechnicianID)))
		if len(r.ReplacedParts) > 0 {
			names := lo.Map(r.ReplacedParts, func(p api.ReplacedPart, _ int) string {
				return fmt.Sprintf("%dx %s", p.Quantity, lo.CoalesceOrEmpty(p.PartNumber, idString(p.PartID)))
			})
			b.WriteString(styles.MutedText.Render("  " + strings.Join(names, ", ")))
		}
		b.WriteString("\n")
		if r.Comments != "" {
			b.WriteString(styles.FaintText.Render("    " + r.Comments))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeRequirements(b *strings.Builder, styles Styles, title string, reqs []api.PartRequirement) {
	if len(reqs) == 0 {
		return
	}
	b.WriteString(styles.MutedText.Render(title))
	b.WriteString("\n")
	for _, r := range reqs {
		line := fmt.Sprintf("  %-10s %-28s qty %d  stock %d  every %d h",
			r.Part.PartNumber, truncate(r.Part.Name, 28), r.RecommendedQuantity, r.Part.StockQuantity, r.MaintenanceIntervalHours)
		style := styles.Text
		if r.IsOverdue {
			line += "  OVERDUE"
			style = styles.DangerText
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
}

func (m Model) renderMachineDetail() string {
	title := "Machine"
	if m.detail.number != "" {
		title = "Machine " + m.detail.number
	}
	return m.titledBox(title, m.detail.viewport.View(), m.width, m.contentHeight(), true)
}
