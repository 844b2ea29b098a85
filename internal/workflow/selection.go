package workflow

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/five82/toolroom/internal/api"
)

var (
	// ErrOutOfStock is returned when selecting a part with no stock.
	ErrOutOfStock = errors.New("part is out of stock")
	// ErrQuantityRange is returned for a quantity outside [1, max].
	ErrQuantityRange = errors.New("quantity out of range")
	// ErrNotSelected is returned when changing a part that is not selected.
	ErrNotSelected = errors.New("part not selected")
)

// Line is one selected part.
type Line struct {
	Part     api.MaintenancePart
	Quantity int
}

// Max is the largest quantity this line may hold.
func (l Line) Max() int { return l.Part.StockQuantity }

// Subtotal is price × quantity.
func (l Line) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(l.Part.Price).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Selection is an ordered set of parts with quantities bounded by stock.
type Selection struct {
	lines []Line
}

// Add selects part with quantity clamped to [1, stock]. Selecting a part
// that is already selected updates its quantity.
func (s *Selection) Add(part api.MaintenancePart, quantity int) error {
	if part.StockQuantity < 1 {
		return fmt.Errorf("select %s: %w", part.PartNumber, ErrOutOfStock)
	}
	quantity = clamp(quantity, 1, part.StockQuantity)
	if i := s.index(part.ID); i >= 0 {
		s.lines[i] = Line{Part: part, Quantity: quantity}
		return nil
	}
	s.lines = append(s.lines, Line{Part: part, Quantity: quantity})
	return nil
}

// SetQuantity changes the quantity of one selected part.
func (s *Selection) SetQuantity(partID int64, quantity int) error {
	i := s.index(partID)
	if i < 0 {
		return ErrNotSelected
	}
	if quantity < 1 || quantity > s.lines[i].Max() {
		return fmt.Errorf("set quantity %d (allowed 1..%d): %w", quantity, s.lines[i].Max(), ErrQuantityRange)
	}
	s.lines[i].Quantity = quantity
	return nil
}

// Step moves a quantity by delta, stopping at the bounds.
func (s *Selection) Step(partID int64, delta int) error {
	i := s.index(partID)
	if i < 0 {
		return ErrNotSelected
	}
	s.lines[i].Quantity = clamp(s.lines[i].Quantity+delta, 1, s.lines[i].Max())
	return nil
}

// Toggle selects part with quantity one, or deselects it when selected.
func (s *Selection) Toggle(part api.MaintenancePart) error {
	if s.Has(part.ID) {
		s.Remove(part.ID)
		return nil
	}
	return s.Add(part, 1)
}

// Remove deselects a part.
func (s *Selection) Remove(partID int64) {
	s.lines = lo.Reject(s.lines, func(l Line, _ int) bool { return l.Part.ID == partID })
}

// Has reports whether the part is selected.
func (s *Selection) Has(partID int64) bool { return s.index(partID) >= 0 }

// Quantity returns the selected quantity, zero when not selected.
func (s *Selection) Quantity(partID int64) int {
	if i := s.index(partID); i >= 0 {
		return s.lines[i].Quantity
	}
	return 0
}

// Lines returns a copy of the selection in selection order.
func (s *Selection) Lines() []Line { return append([]Line(nil), s.lines...) }

// Len is the number of selected parts.
func (s *Selection) Len() int { return len(s.lines) }

// Total is Σ price × quantity rounded to two decimal places.
func (s *Selection) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.lines {
		total = total.Add(l.Subtotal())
	}
	return total.Round(2)
}

// ReplacedParts converts the selection into the maintenance payload.
func (s *Selection) ReplacedParts() []api.ReplacedPartInput {
	return lo.Map(s.lines, func(l Line, _ int) api.ReplacedPartInput {
		return api.ReplacedPartInput{PartID: l.Part.ID, Quantity: l.Quantity}
	})
}

func (s *Selection) index(partID int64) int {
	_, i, ok := lo.FindIndexOf(s.lines, func(l Line) bool { return l.Part.ID == partID })
	if !ok {
		return -1
	}
	return i
}

func clamp(v, low, high int) int {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
