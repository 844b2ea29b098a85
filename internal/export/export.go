// Package export writes the machine registry and parts catalogue to an
// xlsx workbook.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/workflow"
)

// Sheet names.
const (
	SheetMachines = "Machines"
	SheetParts    = "Parts"
)

var (
	machineHeader = []any{"ID", "Number", "Type", "Status", "Operating hours", "Installed", "Maintenances", "Last maintenance", "Due", "Next due at", "Magazine serial"}
	partHeader    = []any{"ID", "Part number", "Name", "Category", "Manufacturer", "Price", "Stock", "Stock value"}
)

// Workbook is the data to export.
type Workbook struct {
	Machines   []api.Machine
	Parts      []api.MaintenancePart
	Thresholds workflow.Thresholds
}

// Write renders wb as xlsx into w.
func Write(w io.Writer, wb Workbook) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetMachines); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetParts); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	rows := make([][]any, 0, len(wb.Machines))
	for _, m := range wb.Machines {
		due := workflow.DueState(m, wb.Thresholds)
		last := ""
		if t := m.LastMaintained(); !t.IsZero() {
			last = t.Format("2006-01-02")
		}
		installed := ""
		if t := m.Installed(); !t.IsZero() {
			installed = t.Format("2006-01-02")
		}
		rows = append(rows, []any{
			m.ID, m.Number, m.Type, string(m.Status), m.OperatingHours, installed,
			m.MaintenanceCount, last, due.State.String(), due.NextDueAt, m.SerialNumber,
		})
	}
	if err := writeSheet(f, SheetMachines, machineHeader, rows, header); err != nil {
		return err
	}

	rows = rows[:0]
	for _, p := range wb.Parts {
		rows = append(rows, []any{
			p.ID, p.PartNumber, p.Name, string(p.Category), p.Manufacturer,
			p.Price, p.StockQuantity, p.Price * float64(p.StockQuantity),
		})
	}
	if err := writeSheet(f, SheetParts, partHeader, rows, header); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteFile renders wb into path, creating parent directories.
func WriteFile(path string, wb Workbook) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := Write(out, wb); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("address %s row %d: %w", sheet, i+2, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}

	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("address %s header: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze %s header: %w", sheet, err)
	}
	lastCol, _, err := excelize.SplitCellName(last)
	if err != nil {
		return fmt.Errorf("address %s header: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 16); err != nil {
		return fmt.Errorf("size %s columns: %w", sheet, err)
	}
	return nil
}
