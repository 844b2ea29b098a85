package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/five82/toolroom/internal/api"
)

// AutoExitDelay is how long the complete step stays on screen before the
// view navigates back to the machine.
const AutoExitDelay = 3 * time.Second

// ErrInvalidTransition is returned for any move the step order forbids.
var ErrInvalidTransition = errors.New("invalid workflow transition")

// Step is a wizard stage.
type Step int

const (
	StepAnalysis Step = iota
	StepParts
	StepConfirm
	StepComplete
)

// Steps lists the stages in order.
var Steps = []Step{StepAnalysis, StepParts, StepConfirm, StepComplete}

func (s Step) String() string {
	switch s {
	case StepAnalysis:
		return "analysis"
	case StepParts:
		return "parts"
	case StepConfirm:
		return "confirm"
	case StepComplete:
		return "complete"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Submitter performs the maintenance write.
type Submitter interface {
	PerformMaintenance(ctx context.Context, id int64, machineNumber string, req api.MaintenanceRequest) (int64, error)
}

// Wizard is the maintenance workflow for one machine. It is not safe for
// concurrent use; the UI drives it from its update loop.
type Wizard struct {
	Machine   api.Machine
	PartsList *api.MaintenancePartsList
	Selection Selection

	TechnicianID    string
	MaintenanceType string
	Comments        string

	step        Step
	urgency     Urgency
	err         error
	recordID    int64
	unavailable []api.PartRequirement
}

// New starts a workflow in the analysis step. Required parts with stock
// are preselected at their recommended quantity; the rest are reported by
// Unavailable.
func New(machine api.Machine, list *api.MaintenancePartsList) *Wizard {
	w := &Wizard{
		Machine:         machine,
		PartsList:       list,
		MaintenanceType: "Scheduled",
		step:            StepAnalysis,
		urgency:         Classify(list),
	}
	if list != nil {
		for _, r := range list.RequiredParts {
			qty := r.RecommendedQuantity
			if qty < 1 {
				qty = 1
			}
			if err := w.Selection.Add(r.Part, qty); err != nil {
				w.unavailable = append(w.unavailable, r)
			}
		}
	}
	return w
}

// Step returns the current stage.
func (w *Wizard) Step() Step { return w.step }

// Urgency returns the classification computed from the parts list.
func (w *Wizard) Urgency() Urgency { return w.urgency }

// Err returns the last submit error, nil after a successful submit.
func (w *Wizard) Err() error { return w.err }

// RecordID returns the maintenance record id once complete.
func (w *Wizard) RecordID() int64 { return w.recordID }

// Unavailable lists required parts that could not be preselected because
// they are out of stock.
func (w *Wizard) Unavailable() []api.PartRequirement { return w.unavailable }

// Total is the running cost of the selection.
func (w *Wizard) Total() decimal.Decimal { return w.Selection.Total() }

// Next advances analysis → parts → confirm. Leaving confirm requires Submit.
func (w *Wizard) Next() error {
	switch w.step {
	case StepAnalysis:
		w.step = StepParts
	case StepParts:
		w.step = StepConfirm
	default:
		return fmt.Errorf("next from %s: %w", w.step, ErrInvalidTransition)
	}
	return nil
}

// Back returns to the previous step. Nothing leads back out of complete.
func (w *Wizard) Back() error {
	switch w.step {
	case StepParts:
		w.step = StepAnalysis
	case StepConfirm:
		w.step = StepParts
	default:
		return fmt.Errorf("back from %s: %w", w.step, ErrInvalidTransition)
	}
	w.err = nil
	return nil
}

// Request builds the maintenance payload from the current state.
func (w *Wizard) Request() api.MaintenanceRequest {
	return api.MaintenanceRequest{
		TechnicianID:    strings.TrimSpace(w.TechnicianID),
		MaintenanceType: strings.TrimSpace(w.MaintenanceType),
		Comments:        strings.TrimSpace(w.Comments),
		ReplacedParts:   w.Selection.ReplacedParts(),
	}
}

// Submit performs the maintenance and applies the outcome.
func (w *Wizard) Submit(ctx context.Context, sub Submitter) error {
	if w.step != StepConfirm {
		return fmt.Errorf("submit from %s: %w", w.step, ErrInvalidTransition)
	}
	id, err := sub.PerformMaintenance(ctx, w.Machine.ID, w.Machine.Number, w.Request())
	return w.Apply(id, err)
}

// Apply records the outcome of a maintenance write that ran elsewhere.
// Success moves to complete; failure keeps the wizard on confirm and
// records the error for display.
func (w *Wizard) Apply(id int64, err error) error {
	if w.step != StepConfirm {
		return fmt.Errorf("apply from %s: %w", w.step, ErrInvalidTransition)
	}
	if err != nil {
		w.err = err
		return err
	}
	w.err = nil
	w.recordID = id
	w.step = StepComplete
	return nil
}
