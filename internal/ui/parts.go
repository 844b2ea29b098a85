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
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/query"
)

type partsState struct {
	table   table.Model
	all     []api.MaintenancePart
	rows    []api.MaintenancePart
	err     error
	stale   bool
	updated time.Time
}

type partsMsg struct {
	res query.Result[[]api.MaintenancePart]
}

func newPartsState() partsState {
	return partsState{
		table: table.New(
			table.WithColumns(partColumns(120)),
			table.WithFocused(true),
		),
	}
}

func partColumns(width int) []table.Column {
	cols := []table.Column{
		{Title: "Part number", Width: 12},
		{Title: "Name", Width: 26},
		{Title: "Category", Width: 15},
		{Title: "Price", Width: 10},
		{Title: "Stock", Width: 6},
	}
	extra := []table.Column{{Title: "Manufacturer"}, {Title: "Stock value"}}
	if width >= LayoutCompactWidth {
		extra[0].Width, extra[1].Width = 20, 12
	}
	return append(cols, extra...)
}

func (m *Model) refreshPartsTable() {
	var selected int64
	if p := m.selectedPart(); p != nil {
		selected = p.ID
	}
	m.parts.rows = slices.SortedStableFunc(slices.Values(m.parts.all), func(a, b api.MaintenancePart) int {
		return cmp.Compare(a.PartNumber, b.PartNumber)
	})
	rows := make([]table.Row, 0, len(m.parts.rows))
	for _, p := range m.parts.rows {
		value := decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(p.StockQuantity)))
		rows = append(rows, table.Row{
			p.PartNumber,
			p.Name,
			string(p.Category),
			formatPrice(p.Price),
			strconv.Itoa(p.StockQuantity),
			p.Manufacturer,
			formatMoney(value),
		})
	}
	m.parts.table.SetRows(rows)
	if selected != 0 {
		if i := slices.IndexFunc(m.parts.rows, func(p api.MaintenancePart) bool { return p.ID == selected }); i >= 0 {
			m.parts.table.SetCursor(i)
			return
		}
	}
	if c := m.parts.table.Cursor(); c >= len(rows) {
		m.parts.table.SetCursor(maxInt(len(rows)-1, 0))
	}
}

func (m Model) selectedPart() *api.MaintenancePart {
	i := m.parts.table.Cursor()
	if i < 0 || i >= len(m.parts.rows) {
		return nil
	}
	p := m.parts.rows[i]
	return &p
}

func (m Model) loadParts(refresh bool) tea.Cmd {
	layer, ctx := m.layer, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
		defer cancel()
		if refresh {
			return partsMsg{res: layer.RefreshParts(ctx)}
		}
		return partsMsg{res: layer.Parts(ctx)}
	}
}

func (m *Model) applyParts(msg partsMsg) {
	m.parts.err = msg.res.Err
	m.parts.stale = msg.res.Stale
	if msg.res.HasData {
		m.parts.all = msg.res.Data
		m.parts.updated = msg.res.UpdatedAt
	}
	m.refreshPartsTable()
}

func (m Model) handlePartsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	selected := m.selectedPart()
	switch {
	case key.Matches(msg, m.keys.New):
		m.modal = m.partForm(nil)
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Edit), key.Matches(msg, m.keys.Open):
		if selected != nil {
			m.modal = m.partForm(selected)
			return m, textinput.Blink
		}
	case key.Matches(msg, m.keys.Delete):
		if selected != nil {
			m.modal = m.deletePartConfirm(*selected)
		}
	case msg.String() == "+", msg.String() == "=":
		if selected != nil {
			return m, m.adjustStock(*selected, 1)
		}
	case msg.String() == "-":
		if selected != nil && selected.StockQuantity > 0 {
			return m, m.adjustStock(*selected, -1)
		}
	case key.Matches(msg, m.keys.Top):
		m.parts.table.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.parts.table.GotoBottom()
	default:
		var cmd tea.Cmd
		m.parts.table, cmd = m.parts.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

func partInput(p api.MaintenancePart) api.PartInput {
	return api.PartInput{
		PartNumber:    p.PartNumber,
		Name:          p.Name,
		Description:   p.Description,
		Category:      p.Category,
		Price:         p.Price,
		Manufacturer:  p.Manufacturer,
		StockQuantity: p.StockQuantity,
	}
}

func (m Model) adjustStock(p api.MaintenancePart, delta int) tea.Cmd {
	in := partInput(p)
	in.StockQuantity += delta
	layer := m.layer
	return m.mutate(fmt.Sprintf("%s stock %d", p.PartNumber, in.StockQuantity), func(ctx context.Context) error {
		return layer.UpdatePart(ctx, p.ID, in)
	}, nil)
}

// partForm creates a part, or edits one when existing is set.
func (m Model) partForm(existing *api.MaintenancePart) Modal {
	var base api.MaintenancePart
	title := "New part"
	if existing != nil {
		base = *existing
		title = "Edit part " + base.PartNumber
	} else {
		base.Category = api.CategorySparePart
	}
	price := ""
	if base.Price > 0 {
		price = formatPrice(base.Price)
	}
	categories := strings.Join(lo.Map(api.PartCategories, func(c api.PartCategory, _ int) string { return string(c) }), ", ")

	layer := m.layer
	return newForm(title, func(v []string) (tea.Cmd, error) {
		in, err := parsePartInput(v)
		if err != nil {
			return nil, err
		}
		if err := in.Validate(); err != nil {
			return nil, err
		}
		if existing == nil {
			return m.mutate("Created part "+in.PartNumber, func(ctx context.Context) error {
				_, err := layer.CreatePart(ctx, in)
				return err
			}, nil), nil
		}
		id := base.ID
		return m.mutate("Updated part "+in.PartNumber, func(ctx context.Context) error {
			return layer.UpdatePart(ctx, id, in)
		}, nil), nil
	},
		fieldSpec{label: "Part number", value: base.PartNumber},
		fieldSpec{label: "Name", value: base.Name},
		fieldSpec{label: "Category", value: string(base.Category), placeholder: categories},
		fieldSpec{label: "Price", value: price, placeholder: "0.00"},
		fieldSpec{label: "Stock", value: strconv.Itoa(base.StockQuantity)},
		fieldSpec{label: "Manufacturer", value: base.Manufacturer},
		fieldSpec{label: "Description", value: base.Description},
	)
}

func parsePartInput(v []string) (api.PartInput, error) {
	price, err := decimal.NewFromString(v[3])
	if err != nil {
		return api.PartInput{}, fmt.Errorf("price must be a number like 12.50")
	}
	stock, err := strconv.Atoi(v[4])
	if err != nil {
		return api.PartInput{}, fmt.Errorf("stock must be a whole number")
	}
	return api.PartInput{
		PartNumber:    v[0],
		Name:          v[1],
		Category:      api.PartCategory(v[2]),
		Price:         price.Round(2).InexactFloat64(),
		StockQuantity: stock,
		Manufacturer:  v[5],
		Description:   v[6],
	}, nil
}

func (m Model) deletePartConfirm(p api.MaintenancePart) Modal {
	layer := m.layer
	return newConfirm(
		"Delete part "+p.PartNumber+"?",
		fmt.Sprintf("%s moves to the admin trash. Parts lists of every machine are recomputed.", p.Name),
		m.mutate("Deleted part "+p.PartNumber, func(ctx context.Context) error {
			return layer.DeletePart(ctx, p.ID)
		}, nil),
	)
}

func (m Model) renderParts() string {
	styles := m.theme.Styles()
	total := lo.Reduce(m.parts.all, func(acc decimal.Decimal, p api.MaintenancePart, _ int) decimal.Decimal {
		return acc.Add(decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(p.StockQuantity))))
	}, decimal.Zero)
	title := fmt.Sprintf("Parts (%d)  stock value %s", len(m.parts.rows), formatMoney(total))
	if m.parts.stale {
		title += "  stale"
	}

	var content string
	switch {
	case len(m.parts.all) == 0 && m.parts.err != nil:
		content = styles.DangerText.Render(api.UserMessage(m.parts.err))
	case len(m.parts.all) == 0:
		content = styles.MutedText.Render("No parts yet. Press n to add one.")
	default:
		content = m.parts.table.View()
		if m.parts.err != nil {
			content += "\n" + styles.WarningText.Render("Showing cached data: "+truncate(api.UserMessage(m.parts.err), m.width-30))
		}
	}
	return m.titledBox(title, content, m.width, m.contentHeight(), true)
}
