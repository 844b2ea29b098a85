package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/logger"
	"github.com/five82/toolroom/internal/workflow"
)

type wizardState struct {
	w          *workflow.Wizard
	candidates []api.MaintenancePart // parts offered in the parts step
	cursor     int
	busy       bool
}

type wizardReadyMsg struct {
	machine api.Machine
	list    *api.MaintenancePartsList
	parts   []api.MaintenancePart
	err     error
}

type maintenanceMsg struct {
	id  int64
	err error
}

type wizardExitMsg struct{ recordID int64 }

// startMaintenance loads the parts list and catalogue the wizard needs.
func (m Model) startMaintenance(x api.Machine) tea.Cmd {
	layer, ctx := m.layer, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
		defer cancel()
		list := layer.PartsList(ctx, x.Number)
		if list.Err != nil && !list.HasData {
			return wizardReadyMsg{machine: x, err: list.Err}
		}
		parts := layer.Parts(ctx)
		return wizardReadyMsg{machine: x, list: list.Data, parts: parts.Data}
	}
}

func (m Model) handleWizardReady(msg wizardReadyMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.setFlash("Cannot start maintenance: "+api.UserMessage(msg.err), true)
		return m, nil
	}
	w := workflow.New(msg.machine, msg.list)
	w.TechnicianID = lo.CoalesceOrEmpty(m.username(), "technician")
	m.wizard = wizardState{w: w, candidates: wizardCandidates(msg.list, msg.parts)}
	if m.detail.id != msg.machine.ID {
		vp := m.detail.viewport
		if vp.Width == 0 {
			vp = viewport.New(maxInt(m.width-4, 10), maxInt(m.contentHeight()-2, 1))
		}
		m.detail = detailState{id: msg.machine.ID, number: msg.machine.Number, viewport: vp}
		m.applyTheme()
	}
	m.view = ViewWizard
	m.log.Info("maintenance started",
		logger.String("machine", msg.machine.Number),
		logger.String("urgency", w.Urgency().String()),
	)
	return m, nil
}

// wizardCandidates lists required parts, then recommended ones, then the
// rest of the catalogue.
func wizardCandidates(list *api.MaintenancePartsList, catalogue []api.MaintenancePart) []api.MaintenancePart {
	var out []api.MaintenancePart
	if list != nil {
		for _, r := range list.RequiredParts {
			out = append(out, r.Part)
		}
		for _, r := range list.RecommendedParts {
			out = append(out, r.Part)
		}
	}
	out = append(out, catalogue...)
	return lo.UniqBy(out, func(p api.MaintenancePart) int64 { return p.ID })
}

func (m Model) handleWizardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ws := &m.wizard
	w := ws.w
	if w == nil || ws.busy {
		return m, nil
	}

	switch w.Step() {
	case workflow.StepAnalysis:
		switch {
		case key.Matches(msg, m.keys.Open):
			_ = w.Next()
		case key.Matches(msg, m.keys.Back):
			return m.leaveWizard()
		}

	case workflow.StepParts:
		switch {
		case key.Matches(msg, m.keys.Up):
			ws.cursor = max(ws.cursor-1, 0)
		case key.Matches(msg, m.keys.Down):
			ws.cursor = min(ws.cursor+1, max(len(ws.candidates)-1, 0))
		case key.Matches(msg, m.keys.Toggle):
			if p, ok := ws.current(); ok {
				if err := w.Selection.Toggle(p); err != nil {
					m.setFlash(err.Error(), true)
				}
			}
		case key.Matches(msg, m.keys.Increase):
			m.stepQuantity(1)
		case key.Matches(msg, m.keys.Decrease):
			m.stepQuantity(-1)
		case key.Matches(msg, m.keys.Open):
			_ = w.Next()
		case key.Matches(msg, m.keys.Back):
			_ = w.Back()
		}

	case workflow.StepConfirm:
		switch {
		case key.Matches(msg, m.keys.Open):
			ws.busy = true
			return m, m.submitMaintenance()
		case key.Matches(msg, m.keys.Comment):
			m.modal = m.wizardDetailsForm()
			return m, textinput.Blink
		case key.Matches(msg, m.keys.Back):
			_ = w.Back()
		}

	case workflow.StepComplete:
		if key.Matches(msg, m.keys.Open) || key.Matches(msg, m.keys.Back) {
			return m.handleWizardExit(wizardExitMsg{recordID: w.RecordID()})
		}
	}
	return m, nil
}

func (ws wizardState) current() (api.MaintenancePart, bool) {
	if ws.cursor < 0 || ws.cursor >= len(ws.candidates) {
		return api.MaintenancePart{}, false
	}
	return ws.candidates[ws.cursor], true
}

// stepQuantity changes the quantity of the part under the cursor, selecting
// it first when needed.
func (m *Model) stepQuantity(delta int) {
	ws := &m.wizard
	p, ok := ws.current()
	if !ok {
		return
	}
	sel := &ws.w.Selection
	var err error
	switch {
	case !sel.Has(p.ID) && delta > 0:
		err = sel.Add(p, 1)
	case sel.Has(p.ID) && sel.Quantity(p.ID)+delta < 1:
		sel.Remove(p.ID)
	case sel.Has(p.ID):
		err = sel.Step(p.ID, delta)
	}
	if err != nil {
		m.setFlash(err.Error(), true)
	}
}

func (m Model) wizardDetailsForm() Modal {
	w := m.wizard.w
	return newForm("Maintenance details", func(v []string) (tea.Cmd, error) {
		if v[0] == "" || v[1] == "" {
			return nil, errors.New("technician and type are required")
		}
		w.TechnicianID, w.MaintenanceType, w.Comments = v[0], v[1], v[2]
		return nil, nil
	},
		fieldSpec{label: "Technician", value: w.TechnicianID},
		fieldSpec{label: "Type", value: w.MaintenanceType, placeholder: "Scheduled"},
		fieldSpec{label: "Comments", value: w.Comments},
	)
}

func (m Model) submitMaintenance() tea.Cmd {
	layer, ctx, w := m.layer, m.ctx, m.wizard.w
	x, req := w.Machine, w.Request()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
		defer cancel()
		id, err := layer.PerformMaintenance(ctx, x.ID, x.Number, req)
		return maintenanceMsg{id: id, err: err}
	}
}

func (m Model) handleMaintenance(msg maintenanceMsg) (tea.Model, tea.Cmd) {
	m.wizard.busy = false
	w := m.wizard.w
	if w == nil {
		return m, nil
	}
	if err := w.Apply(msg.id, msg.err); err != nil {
		m.log.Warn("maintenance failed", logger.String("machine", w.Machine.Number), logger.ErrorF(err))
		m.setFlash("Maintenance failed: "+api.UserMessage(err), true)
		return m, nil
	}
	m.log.Info("maintenance recorded",
		logger.String("machine", w.Machine.Number),
		logger.Int64("record_id", w.RecordID()),
		logger.Int("parts", w.Selection.Len()),
		logger.String("total", formatMoney(w.Total())),
	)
	m.setFlash(fmt.Sprintf("Maintenance recorded for %s", w.Machine.Number), false)
	id := w.RecordID()
	return m, tea.Tick(workflow.AutoExitDelay, func(time.Time) tea.Msg {
		return wizardExitMsg{recordID: id}
	})
}

// handleWizardExit returns to the machine once the wizard completed. A stale
// timer from an earlier run is ignored.
func (m Model) handleWizardExit(msg wizardExitMsg) (tea.Model, tea.Cmd) {
	w := m.wizard.w
	if m.view != ViewWizard || w == nil || w.Step() != workflow.StepComplete || w.RecordID() != msg.recordID {
		return m, nil
	}
	return m.leaveWizard()
}

func (m Model) leaveWizard() (tea.Model, tea.Cmd) {
	m.wizard = wizardState{}
	if m.detail.id == 0 {
		return m.switchView(ViewMachines)
	}
	m.syncFromCache()
	return m.switchView(ViewMachine)
}

func (m Model) renderWizard() string {
	w := m.wizard.w
	if w == nil {
		return ""
	}
	styles := m.theme.Styles()
	var b strings.Builder

	for i, s := range workflow.Steps {
		label := fmt.Sprintf("%d %s", i+1, s)
		switch {
		case s == w.Step():
			b.WriteString(styles.Selected.Bold(true).Render(" " + label + " "))
		case s < w.Step():
			b.WriteString(styles.SuccessText.Render(" " + label + " "))
		default:
			b.WriteString(styles.FaintText.Render(" " + label + " "))
		}
		if i < len(workflow.Steps)-1 {
			b.WriteString(styles.FaintText.Render(" > "))
		}
	}
	b.WriteString("\n\n")

	switch w.Step() {
	case workflow.StepAnalysis:
		m.renderAnalysis(&b, styles, w)
	case workflow.StepParts:
		m.renderPartPicker(&b, styles)
	case workflow.StepConfirm:
		m.renderConfirm(&b, styles, w)
	case workflow.StepComplete:
		b.WriteString(styles.SuccessText.Render(fmt.Sprintf("Maintenance #%d recorded for %s.", w.RecordID(), w.Machine.Number)))
		b.WriteString("\n\n")
		b.WriteString(styles.MutedText.Render(fmt.Sprintf("Returning to the machine in %s. Press enter to go now.", workflow.AutoExitDelay)))
	}

	return m.titledBox("Maintenance "+w.Machine.Number, b.String(), m.width, m.contentHeight(), true)
}

func (m Model) renderAnalysis(b *strings.Builder, styles Styles, w *workflow.Wizard) {
	x := w.Machine
	due := workflow.DueState(x, m.thresholds)
	b.WriteString(styles.Text.Render(fmt.Sprintf("%s  %s  %s", x.Number, x.Type, formatHours(x.OperatingHours))))
	b.WriteString("\n")
	b.WriteString(styles.StatusStyle(w.Urgency().String()).Render("urgency " + w.Urgency().String()))
	b.WriteString(" ")
	b.WriteString(dueStyle(styles, due.State).Render(due.State.String()))
	b.WriteString("\n\n")

	overdue := workflow.OverdueParts(w.PartsList)
	if len(overdue) == 0 {
		b.WriteString(styles.MutedText.Render("No overdue parts."))
		b.WriteString("\n")
	} else {
		b.WriteString(styles.DangerText.Render(fmt.Sprintf("%d overdue part(s)", len(overdue))))
		b.WriteString("\n")
		for _, r := range overdue {
			b.WriteString(styles.Text.Render(fmt.Sprintf("  %-10s %s  every %d h", r.Part.PartNumber, r.Part.Name, r.MaintenanceIntervalHours)))
			b.WriteString("\n")
		}
	}
	if missing := w.Unavailable(); len(missing) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.WarningText.Render(fmt.Sprintf("%d required part(s) out of stock", len(missing))))
		b.WriteString("\n")
		for _, r := range missing {
			b.WriteString(styles.Text.Render(fmt.Sprintf("  %-10s %s  need %d", r.Part.PartNumber, r.Part.Name, r.RecommendedQuantity)))
			b.WriteString("\n")
		}
	}
	if w.PartsList != nil {
		b.WriteString("\n")
		writeRequirements(b, styles, "Required", w.PartsList.RequiredParts)
		writeRequirements(b, styles, "Recommended", w.PartsList.RecommendedParts)
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("enter choose parts  esc cancel"))
}

func (m Model) renderPartPicker(b *strings.Builder, styles Styles) {
	ws := m.wizard
	sel := &ws.w.Selection
	if len(ws.candidates) == 0 {
		b.WriteString(styles.MutedText.Render("No parts in the catalogue."))
		b.WriteString("\n")
	}

	// Keep the cursor visible within the box.
	visible := maxInt(m.contentHeight()-10, 3)
	start := 0
	if ws.cursor >= visible {
		start = ws.cursor - visible + 1
	}
	for i := start; i < len(ws.candidates) && i < start+visible; i++ {
		p := ws.candidates[i]
		mark := "[ ]"
		qty := ""
		if sel.Has(p.ID) {
			mark = "[x]"
			qty = fmt.Sprintf("x%d", sel.Quantity(p.ID))
		}
		line := fmt.Sprintf("%s %-10s %-28s %9s  stock %-4d %s",
			mark, p.PartNumber, truncate(p.Name, 28), formatPrice(p.Price), p.StockQuantity, qty)
		switch {
		case i == ws.cursor:
			b.WriteString(styles.Selected.Render(line))
		case p.StockQuantity == 0:
			b.WriteString(styles.FaintText.Render(line))
		default:
			b.WriteString(styles.Text.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.AccentText.Render(fmt.Sprintf("%d selected  total %s", sel.Len(), formatMoney(ws.w.Total()))))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("space select  +/- quantity  enter review  esc back"))
}

func (m Model) renderConfirm(b *strings.Builder, styles Styles, w *workflow.Wizard) {
	row := func(label, value string) {
		b.WriteString(styles.MutedText.Render(padRight(label, 14)))
		b.WriteString(styles.Text.Render(value))
		b.WriteString("\n")
	}
	row("Technician", w.TechnicianID)
	row("Type", w.MaintenanceType)
	row("Comments", lo.CoalesceOrEmpty(w.Comments, "-"))
	b.WriteString("\n")

	lines := w.Selection.Lines()
	if len(lines) == 0 {
		b.WriteString(styles.MutedText.Render("No parts replaced."))
		b.WriteString("\n")
	}
	for _, l := range lines {
		b.WriteString(styles.Text.Render(fmt.Sprintf("%3dx %-10s %-28s %10s",
			l.Quantity, l.Part.PartNumber, truncate(l.Part.Name, 28), formatMoney(l.Subtotal()))))
		b.WriteString("\n")
	}
	b.WriteString(styles.AccentText.Bold(true).Render(fmt.Sprintf("Total %s", formatMoney(w.Total()))))
	b.WriteString("\n\n")

	switch {
	case m.wizard.busy:
		b.WriteString(styles.InfoText.Render("Submitting..."))
	case w.Err() != nil:
		b.WriteString(styles.DangerText.Render(api.UserMessage(w.Err())))
		b.WriteString("\n")
		b.WriteString(styles.FaintText.Render("enter retry  c details  esc back"))
	default:
		b.WriteString(styles.FaintText.Render("enter submit  c details  esc back"))
	}
}

