package workflow

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/toolroom/internal/api"
)

func part(id int64, price float64, stock int) api.MaintenancePart {
	return api.MaintenancePart{ID: id, PartNumber: gofakeit.Regex(`P-[0-9]{5}`), Name: gofakeit.ProductName(), Price: price, StockQuantity: stock}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		list *api.MaintenancePartsList
		want Urgency
	}{
		{"nil list", nil, UrgencyLow},
		{"empty", &api.MaintenancePartsList{}, UrgencyLow},
		{"recommended only", &api.MaintenancePartsList{
			RecommendedParts: []api.PartRequirement{{Part: part(1, 1, 1)}},
		}, UrgencyLow},
		{"required", &api.MaintenancePartsList{
			RequiredParts: []api.PartRequirement{{Part: part(1, 1, 1)}},
		}, UrgencyMedium},
		{"required overdue", &api.MaintenancePartsList{
			RequiredParts: []api.PartRequirement{{Part: part(1, 1, 1)}, {Part: part(2, 1, 1), IsOverdue: true}},
		}, UrgencyHigh},
		{"recommended overdue", &api.MaintenancePartsList{
			RecommendedParts: []api.PartRequirement{{Part: part(1, 1, 1), IsOverdue: true}},
		}, UrgencyHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.list))
		})
	}
	assert.Equal(t, "high", UrgencyHigh.String())
}

func TestOverdueParts(t *testing.T) {
	list := &api.MaintenancePartsList{
		RequiredParts:    []api.PartRequirement{{Part: part(1, 1, 1), IsOverdue: true}, {Part: part(2, 1, 1)}},
		RecommendedParts: []api.PartRequirement{{Part: part(3, 1, 1), IsOverdue: true}},
	}
	got := OverdueParts(list)
	require.Len(t, got, 2)
	assert.EqualValues(t, 1, got[0].Part.ID)
	assert.EqualValues(t, 3, got[1].Part.ID)
	assert.Nil(t, OverdueParts(nil))
}

func TestDueState(t *testing.T) {
	t.Parallel()

	th := Thresholds{IntervalHours: 500, WarningHours: 50}
	tests := []struct {
		name      string
		hours     int
		count     int
		status    api.MachineStatus
		want      Due
		remaining int
	}{
		{"new machine", 100, 0, api.StatusActive, DueOK, 400},
		{"inside warning window", 460, 0, api.StatusActive, DueSoon, 40},
		{"warning boundary", 450, 0, api.StatusActive, DueSoon, 50},
		{"exactly due", 500, 0, api.StatusActive, DueOverdue, 0},
		{"overdue", 620, 0, api.StatusActive, DueOverdue, -120},
		{"serviced once", 620, 1, api.StatusActive, DueOK, 380},
		{"out of service", 9000, 0, api.StatusOutOfService, DueOK, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := api.Machine{OperatingHours: tt.hours, MaintenanceCount: tt.count, Status: tt.status}
			got := DueState(m, th)
			assert.Equal(t, tt.want, got.State)
			assert.Equal(t, tt.remaining, got.Remaining)
		})
	}

	assert.Equal(t, DueOK, DueState(api.Machine{OperatingHours: 1e6}, Thresholds{}).State)
}

func TestSelection_TotalIsSumOfPriceTimesQuantity(t *testing.T) {
	var s Selection
	require.NoError(t, s.Add(part(1, 19.99, 10), 3))
	require.NoError(t, s.Add(part(2, 0.1, 10), 3))
	require.NoError(t, s.Add(part(3, 1250.5, 2), 1))

	assert.Equal(t, "1310.77", s.Total().StringFixed(2))

	require.NoError(t, s.SetQuantity(2, 7))
	assert.Equal(t, "1311.17", s.Total().StringFixed(2))
	assert.Equal(t, 3, s.Quantity(1), "other rows are untouched")
}

func TestSelection_TotalMatchesIndependentSum(t *testing.T) {
	var s Selection
	want := decimal.Zero
	for i := int64(1); i <= 20; i++ {
		p := part(i, gofakeit.Price(0.01, 999), gofakeit.IntRange(1, 50))
		qty := gofakeit.IntRange(1, p.StockQuantity)
		require.NoError(t, s.Add(p, qty))
		want = want.Add(decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(qty))))
	}
	assert.True(t, want.Round(2).Equal(s.Total()), "want %s, got %s", want.Round(2), s.Total())
}

func TestSelection_QuantityBounds(t *testing.T) {
	var s Selection
	require.NoError(t, s.Add(part(1, 5, 4), 10))
	assert.Equal(t, 4, s.Quantity(1), "Add clamps to stock")

	assert.ErrorIs(t, s.SetQuantity(1, 5), ErrQuantityRange)
	assert.ErrorIs(t, s.SetQuantity(1, 0), ErrQuantityRange)
	assert.ErrorIs(t, s.SetQuantity(9, 1), ErrNotSelected)

	require.NoError(t, s.Step(1, -10))
	assert.Equal(t, 1, s.Quantity(1))
	require.NoError(t, s.Step(1, 2))
	assert.Equal(t, 3, s.Quantity(1))

	assert.ErrorIs(t, s.Add(part(2, 5, 0), 1), ErrOutOfStock)
	assert.False(t, s.Has(2))
}

func TestSelection_ToggleAndRemove(t *testing.T) {
	var s Selection
	p := part(1, 5, 4)
	require.NoError(t, s.Toggle(p))
	assert.True(t, s.Has(1))
	require.NoError(t, s.Toggle(p))
	assert.False(t, s.Has(1))
	assert.Zero(t, s.Len())
	assert.True(t, s.Total().IsZero())
}

type fakeSubmitter struct {
	err   error
	calls int
	req   api.MaintenanceRequest
}

func (f *fakeSubmitter) PerformMaintenance(_ context.Context, _ int64, _ string, req api.MaintenanceRequest) (int64, error) {
	f.calls++
	f.req = req
	if f.err != nil {
		return 0, f.err
	}
	return 77, nil
}

func newWizard() *Wizard {
	list := &api.MaintenancePartsList{
		MachineNumber: "M-1",
		RequiredParts: []api.PartRequirement{
			{Part: part(1, 10, 5), RecommendedQuantity: 2},
			{Part: part(2, 10, 0), RecommendedQuantity: 1},
		},
	}
	w := New(api.Machine{ID: 1, Number: "M-1"}, list)
	w.TechnicianID = "T-7"
	return w
}

func TestWizard_PreselectsRequiredPartsWithStock(t *testing.T) {
	w := newWizard()
	assert.Equal(t, UrgencyMedium, w.Urgency())
	assert.Equal(t, 2, w.Selection.Quantity(1))
	assert.False(t, w.Selection.Has(2))
	assert.Equal(t, "20.00", w.Total().StringFixed(2))
}

func TestWizard_ReportsOutOfStockRequiredParts(t *testing.T) {
	w := newWizard()
	require.Len(t, w.Unavailable(), 1)
	assert.EqualValues(t, 2, w.Unavailable()[0].Part.ID)

	w = New(api.Machine{ID: 2}, &api.MaintenancePartsList{
		RequiredParts: []api.PartRequirement{{Part: part(3, 5, 1), RecommendedQuantity: 1}},
	})
	assert.Empty(t, w.Unavailable())
	assert.Empty(t, New(api.Machine{ID: 3}, nil).Unavailable())
}

func TestWizard_StepsAreLinear(t *testing.T) {
	w := newWizard()
	assert.Equal(t, StepAnalysis, w.Step())
	assert.ErrorIs(t, w.Back(), ErrInvalidTransition)

	require.NoError(t, w.Next())
	assert.Equal(t, StepParts, w.Step())
	require.NoError(t, w.Next())
	assert.Equal(t, StepConfirm, w.Step())

	assert.ErrorIs(t, w.Next(), ErrInvalidTransition, "confirm only leaves through Submit")
	assert.Equal(t, StepConfirm, w.Step())

	require.NoError(t, w.Back())
	assert.Equal(t, StepParts, w.Step())
	require.NoError(t, w.Back())
	assert.Equal(t, StepAnalysis, w.Step())
}

func TestWizard_SubmitOnlyFromConfirm(t *testing.T) {
	w := newWizard()
	sub := &fakeSubmitter{}
	assert.ErrorIs(t, w.Submit(context.Background(), sub), ErrInvalidTransition)
	require.NoError(t, w.Next())
	assert.ErrorIs(t, w.Submit(context.Background(), sub), ErrInvalidTransition)
	assert.Zero(t, sub.calls)
}

func TestWizard_FailedSubmitStaysOnConfirm(t *testing.T) {
	w := newWizard()
	require.NoError(t, w.Next())
	require.NoError(t, w.Next())

	sub := &fakeSubmitter{err: &api.APIError{Status: http.StatusBadRequest, Message: "insufficient stock"}}
	err := w.Submit(context.Background(), sub)
	require.Error(t, err)
	assert.Equal(t, StepConfirm, w.Step())
	assert.Equal(t, "insufficient stock", api.UserMessage(w.Err()))

	sub.err = nil
	require.NoError(t, w.Submit(context.Background(), sub))
	assert.Equal(t, StepComplete, w.Step())
	assert.NoError(t, w.Err())
	assert.EqualValues(t, 77, w.RecordID())
	assert.Equal(t, 2, sub.calls)
	assert.Equal(t, []api.ReplacedPartInput{{PartID: 1, Quantity: 2}}, sub.req.ReplacedParts)
	assert.Equal(t, "T-7", sub.req.TechnicianID)

	assert.ErrorIs(t, w.Next(), ErrInvalidTransition)
	assert.ErrorIs(t, w.Back(), ErrInvalidTransition)
	assert.True(t, errors.Is(w.Submit(context.Background(), sub), ErrInvalidTransition))
}

func TestStepString(t *testing.T) {
	names := make([]string, 0, len(Steps))
	for _, s := range Steps {
		names = append(names, s.String())
	}
	assert.Equal(t, []string{"analysis", "parts", "confirm", "complete"}, names)
}

func TestWizard_ApplyRecordsOutcome(t *testing.T) {
	w := newWizard()
	assert.ErrorIs(t, w.Apply(5, nil), ErrInvalidTransition)
	assert.Equal(t, StepAnalysis, w.Step())

	require.NoError(t, w.Next())
	require.NoError(t, w.Next())

	failure := errors.New("connection reset")
	assert.Equal(t, failure, w.Apply(0, failure))
	assert.Equal(t, StepConfirm, w.Step())
	assert.Equal(t, failure, w.Err())

	require.NoError(t, w.Apply(9, nil))
	assert.Equal(t, StepComplete, w.Step())
	assert.NoError(t, w.Err())
	assert.EqualValues(t, 9, w.RecordID())
	assert.ErrorIs(t, w.Apply(10, nil), ErrInvalidTransition)
	assert.EqualValues(t, 9, w.RecordID())
}
