package data

import (
	"context"

	"github.com/samber/lo"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/query"
	"github.com/five82/toolroom/internal/state"
)

// Machines returns the machine list.
func (l *Layer) Machines(ctx context.Context) query.Result[[]api.Machine] {
	return query.Use(ctx, l.q, l.machinesQuery())
}

// RefreshMachines refetches the machine list regardless of freshness.
func (l *Layer) RefreshMachines(ctx context.Context) query.Result[[]api.Machine] {
	return query.Refetch(ctx, l.q, l.machinesQuery())
}

func (l *Layer) machinesQuery() query.Options[[]api.Machine] {
	return query.Options[[]api.Machine]{
		Key:     MachinesKey(),
		Fn:      l.svc.Machines.List,
		Enabled: true,
		Policy:  query.MachinePolicy,
	}
}

// Machine returns one machine with its maintenance history. Ids that fail
// the route gate never reach the backend.
func (l *Layer) Machine(ctx context.Context, id string) query.Result[*api.MachineDetail] {
	return query.Use(ctx, l.q, query.Options[*api.MachineDetail]{
		Key: MachineKey(id),
		Fn: func(ctx context.Context) (*api.MachineDetail, error) {
			n, err := api.ParseID(id)
			if err != nil {
				return nil, err
			}
			return l.svc.Machines.ByID(ctx, n)
		},
		Enabled: ValidRouteID(id),
		Policy:  query.MachinePolicy,
	})
}

// MachineByNumber returns one machine looked up by its machine number.
func (l *Layer) MachineByNumber(ctx context.Context, number string) query.Result[*api.MachineDetail] {
	return query.Use(ctx, l.q, query.Options[*api.MachineDetail]{
		Key:     MachineNumberKey(number),
		Fn:      func(ctx context.Context) (*api.MachineDetail, error) { return l.svc.Machines.ByNumber(ctx, number) },
		Enabled: ValidRouteID(number),
		Policy:  query.MachinePolicy,
	})
}

type createMachineVars struct {
	in          api.MachineCreate
	provisional int64
}

// CreateMachine inserts a provisional row into the machine list, then
// swaps in the confirmed id once the backend answers.
func (l *Layer) CreateMachine(ctx context.Context, in api.MachineCreate) (int64, error) {
	vars := createMachineVars{in: in, provisional: l.nextProvisionalID()}
	return query.Mutate(ctx, l.q, query.Mutation[createMachineVars, int64]{
		Name:     "machine.create",
		Validate: func(v createMachineVars) error { return v.in.Validate() },
		Fn: func(ctx context.Context, v createMachineVars) (int64, error) {
			return l.svc.Machines.Create(ctx, v.in)
		},
		Touches: func(createMachineVars) []state.Key { return []state.Key{MachinesKey()} },
		Optimistic: func(s *state.Store, v createMachineVars) {
			s.Update(MachinesKey(), func(cur any) (any, bool) {
				list, ok := cur.([]api.Machine)
				if !ok {
					return nil, false
				}
				return append(append([]api.Machine(nil), list...), v.in.Machine(v.provisional)), true
			})
		},
		Confirm: func(s *state.Store, v createMachineVars, id int64) {
			s.Update(MachinesKey(), func(cur any) (any, bool) {
				list, ok := cur.([]api.Machine)
				if !ok {
					return nil, false
				}
				return replaceIn(list,
					func(m api.Machine) bool { return m.ID == v.provisional },
					func(m api.Machine) api.Machine { m.ID = id; return m })
			})
		},
		Invalidates: func(v createMachineVars, _ int64) []state.Key {
			return []state.Key{MachinesKey(), MachineNumberKey(v.in.Number), AuditKey()}
		},
	}, vars)
}

type updateMachineVars struct {
	id     int64
	update api.MachineUpdate
	number string
}

// UpdateMachine applies a partial update optimistically to the list and
// the detail entry.
func (l *Layer) UpdateMachine(ctx context.Context, id int64, update api.MachineUpdate) error {
	vars := updateMachineVars{id: id, update: update, number: l.cachedMachineNumber(id)}
	_, err := query.Mutate(ctx, l.q, query.Mutation[updateMachineVars, struct{}]{
		Name: "machine.update",
		Validate: func(v updateMachineVars) error {
			if v.update.Status != nil && !v.update.Status.Valid() {
				return &api.ValidationError{Errors: []string{"status: unknown value " + string(*v.update.Status)}}
			}
			if v.update.OperatingHours != nil && *v.update.OperatingHours < 0 {
				return &api.ValidationError{Errors: []string{"operatingHours: must not be negative"}}
			}
			return nil
		},
		Fn: func(ctx context.Context, v updateMachineVars) (struct{}, error) {
			return struct{}{}, applied(l.svc.Machines.Update(ctx, v.id, v.update))
		},
		Touches: func(v updateMachineVars) []state.Key { return machineKeys(v.id) },
		Optimistic: func(s *state.Store, v updateMachineVars) {
			patchMachine(s, v.id, v.update.ApplyTo)
		},
		Invalidates: func(v updateMachineVars, _ struct{}) []state.Key {
			keys := []state.Key{MachinesKey(), MachineKey(idString(v.id)), MachineNumbersKey()}
			return append(keys, partsListKeysFor(v.number, v.update.Number)...)
		},
	}, vars)
	return err
}

// DeleteMachine removes the machine from the list and drops its detail
// entry until the backend confirms.
func (l *Layer) DeleteMachine(ctx context.Context, id int64) error {
	number := l.cachedMachineNumber(id)
	_, err := query.Mutate(ctx, l.q, query.Mutation[int64, struct{}]{
		Name: "machine.delete",
		Fn: func(ctx context.Context, id int64) (struct{}, error) {
			return struct{}{}, applied(l.svc.Machines.Delete(ctx, id))
		},
		Touches: machineKeys,
		Optimistic: func(s *state.Store, id int64) {
			s.Update(MachinesKey(), func(cur any) (any, bool) {
				list, ok := cur.([]api.Machine)
				if !ok {
					return nil, false
				}
				return lo.Reject(list, func(m api.Machine, _ int) bool { return m.ID == id }), true
			})
			s.Delete(MachineKey(idString(id)))
		},
		Invalidates: func(id int64, _ struct{}) []state.Key {
			keys := []state.Key{MachinesKey(), MachineKey(idString(id)), MachineNumbersKey(), AdminKey()}
			return append(keys, partsListKeysFor(number, nil)...)
		},
	}, id)
	return err
}

type hoursVars struct {
	id     int64
	hours  int
	number string
}

// UpdateOperatingHours records a new operating-hours reading. The machine's
// parts list depends on it and is invalidated too.
func (l *Layer) UpdateOperatingHours(ctx context.Context, id int64, hours int) error {
	vars := hoursVars{id: id, hours: hours, number: l.cachedMachineNumber(id)}
	_, err := query.Mutate(ctx, l.q, query.Mutation[hoursVars, struct{}]{
		Name: "machine.operating_hours",
		Validate: func(v hoursVars) error {
			if v.hours < 0 {
				return &api.ValidationError{Errors: []string{"operatingHours: must not be negative"}}
			}
			return nil
		},
		Fn: func(ctx context.Context, v hoursVars) (struct{}, error) {
			return struct{}{}, applied(l.svc.Machines.UpdateOperatingHours(ctx, v.id, v.hours))
		},
		Touches: func(v hoursVars) []state.Key { return machineKeys(v.id) },
		Optimistic: func(s *state.Store, v hoursVars) {
			patchMachine(s, v.id, func(m api.Machine) api.Machine { m.OperatingHours = v.hours; return m })
		},
		Invalidates: func(v hoursVars, _ struct{}) []state.Key {
			keys := []state.Key{MachinesKey(), MachineKey(idString(v.id))}
			if v.number != "" {
				keys = append(keys, MachineNumberKey(v.number))
			}
			return append(keys, partsListKeysFor(v.number, nil)...)
		},
	}, vars)
	return err
}

type magazineVars struct {
	id    int64
	props api.MagazineProperties
}

// UpdateMagazineProperties replaces the magazine properties of a machine.
func (l *Layer) UpdateMagazineProperties(ctx context.Context, id int64, props api.MagazineProperties) error {
	_, err := query.Mutate(ctx, l.q, query.Mutation[magazineVars, struct{}]{
		Name: "machine.magazine",
		Fn: func(ctx context.Context, v magazineVars) (struct{}, error) {
			res, err := l.svc.Machines.UpdateMagazineProperties(ctx, v.id, v.props)
			return struct{}{}, applied(res.Success, err)
		},
		Touches: func(v magazineVars) []state.Key { return machineKeys(v.id) },
		Optimistic: func(s *state.Store, v magazineVars) {
			patchMachine(s, v.id, func(m api.Machine) api.Machine { m.MagazineProperties = v.props; return m })
		},
		Invalidates: func(v magazineVars, _ struct{}) []state.Key {
			return []state.Key{MachinesKey(), MachineKey(idString(v.id)), MachineNumbersKey()}
		},
	}, magazineVars{id: id, props: props})
	return err
}

type maintenanceVars struct {
	id      int64
	number  string
	request api.MaintenanceRequest
}

// PerformMaintenance records a maintenance. The backend recomputes the
// machine's history, the parts list and stock, so nothing is written
// optimistically; every affected key is invalidated on success.
func (l *Layer) PerformMaintenance(ctx context.Context, id int64, machineNumber string, req api.MaintenanceRequest) (int64, error) {
	if machineNumber == "" {
		machineNumber = l.cachedMachineNumber(id)
	}
	return query.Mutate(ctx, l.q, query.Mutation[maintenanceVars, int64]{
		Name: "machine.maintenance",
		Validate: func(v maintenanceVars) error {
			var problems []string
			if v.request.TechnicianID == "" {
				problems = append(problems, "technicianId: required")
			}
			if v.request.MaintenanceType == "" {
				problems = append(problems, "maintenanceType: required")
			}
			for _, p := range v.request.ReplacedParts {
				if p.Quantity < 1 {
					problems = append(problems, "replacedParts: quantity must be at least 1")
					break
				}
			}
			if len(problems) > 0 {
				return &api.ValidationError{Errors: problems}
			}
			return nil
		},
		Fn: func(ctx context.Context, v maintenanceVars) (int64, error) {
			return l.svc.Machines.PerformMaintenance(ctx, v.id, v.request)
		},
		Invalidates: func(v maintenanceVars, _ int64) []state.Key {
			keys := []state.Key{MachinesKey(), MachineKey(idString(v.id)), PartsKey(), PartNumbersKey()}
			if v.number != "" {
				keys = append(keys, MachineNumberKey(v.number))
			}
			for _, p := range v.request.ReplacedParts {
				keys = append(keys, PartKey(idString(p.PartID)))
			}
			return append(keys, partsListKeysFor(v.number, nil)...)
		},
	}, maintenanceVars{id: id, number: machineNumber, request: req})
}

// cachedMachineNumber finds the machine number for id in whatever the
// cache holds. It returns "" when the machine has not been loaded.
func (l *Layer) cachedMachineNumber(id int64) string {
	store := l.q.Store()
	if e, ok := store.Get(MachineKey(idString(id))); ok {
		if d, ok := e.Data.(*api.MachineDetail); ok && d != nil {
			return d.Number
		}
	}
	if e, ok := store.Get(MachinesKey()); ok {
		if list, ok := e.Data.([]api.Machine); ok {
			if m, found := lo.Find(list, func(m api.Machine) bool { return m.ID == id }); found {
				return m.Number
			}
		}
	}
	return ""
}

func machineKeys(id int64) []state.Key {
	return []state.Key{MachinesKey(), MachineKey(idString(id))}
}

// partsListKeysFor returns the parts-list keys a machine write affects. An
// unknown machine number falls back to the whole namespace.
func partsListKeysFor(number string, renamed *string) []state.Key {
	if number == "" {
		return []state.Key{PartsListsKey()}
	}
	keys := []state.Key{PartsListKey(number)}
	if renamed != nil && *renamed != number {
		keys = append(keys, PartsListKey(*renamed))
	}
	return keys
}

// patchMachine rewrites machine id in the list and in its detail entry.
// Stored values are replaced, never modified in place.
func patchMachine(s *state.Store, id int64, fn func(api.Machine) api.Machine) {
	s.Update(MachinesKey(), func(cur any) (any, bool) {
		list, ok := cur.([]api.Machine)
		if !ok {
			return nil, false
		}
		return replaceIn(list, func(m api.Machine) bool { return m.ID == id }, fn)
	})
	s.Update(MachineKey(idString(id)), func(cur any) (any, bool) {
		d, ok := cur.(*api.MachineDetail)
		if !ok || d == nil {
			return nil, false
		}
		next := *d
		next.Machine = fn(d.Machine)
		return &next, true
	})
}
