package data

import (
	"context"

	"github.com/samber/lo"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/query"
	"github.com/five82/toolroom/internal/state"
)

// Parts returns the maintenance parts catalogue.
func (l *Layer) Parts(ctx context.Context) query.Result[[]api.MaintenancePart] {
	return query.Use(ctx, l.q, l.partsQuery())
}

// RefreshParts refetches the parts catalogue regardless of freshness.
func (l *Layer) RefreshParts(ctx context.Context) query.Result[[]api.MaintenancePart] {
	return query.Refetch(ctx, l.q, l.partsQuery())
}

func (l *Layer) partsQuery() query.Options[[]api.MaintenancePart] {
	return query.Options[[]api.MaintenancePart]{
		Key:     PartsKey(),
		Fn:      l.svc.Parts.List,
		Enabled: true,
		Policy:  query.PartPolicy,
	}
}

// Part returns one part by id.
func (l *Layer) Part(ctx context.Context, id string) query.Result[*api.MaintenancePart] {
	return query.Use(ctx, l.q, query.Options[*api.MaintenancePart]{
		Key: PartKey(id),
		Fn: func(ctx context.Context) (*api.MaintenancePart, error) {
			n, err := api.ParseID(id)
			if err != nil {
				return nil, err
			}
			return l.svc.Parts.ByID(ctx, n)
		},
		Enabled: ValidRouteID(id),
		Policy:  query.PartPolicy,
	})
}

// PartByNumber returns one part by part number. Part numbers come from
// operator input, so only the basic id gate applies.
func (l *Layer) PartByNumber(ctx context.Context, partNumber string) query.Result[*api.MaintenancePart] {
	return query.Use(ctx, l.q, query.Options[*api.MaintenancePart]{
		Key:     PartNumberKey(partNumber),
		Fn:      func(ctx context.Context) (*api.MaintenancePart, error) { return l.svc.Parts.ByPartNumber(ctx, partNumber) },
		Enabled: ValidID(partNumber) && len(partNumber) <= MaxRouteIDLength,
		Policy:  query.PartPolicy,
	})
}

// PartsList returns the computed parts list of one machine.
func (l *Layer) PartsList(ctx context.Context, machineNumber string) query.Result[*api.MaintenancePartsList] {
	return query.Use(ctx, l.q, query.Options[*api.MaintenancePartsList]{
		Key: PartsListKey(machineNumber),
		Fn: func(ctx context.Context) (*api.MaintenancePartsList, error) {
			return l.svc.PartsLists.ForMachine(ctx, machineNumber)
		},
		Enabled: ValidRouteID(machineNumber),
		Policy:  query.PartsListPolicy,
	})
}

type createPartVars struct {
	in          api.PartInput
	provisional int64
}

// CreatePart inserts a provisional part and confirms its id on success.
func (l *Layer) CreatePart(ctx context.Context, in api.PartInput) (int64, error) {
	vars := createPartVars{in: in, provisional: l.nextProvisionalID()}
	return query.Mutate(ctx, l.q, query.Mutation[createPartVars, int64]{
		Name:     "part.create",
		Validate: func(v createPartVars) error { return v.in.Validate() },
		Fn: func(ctx context.Context, v createPartVars) (int64, error) {
			return l.svc.Parts.Create(ctx, v.in)
		},
		Touches: func(createPartVars) []state.Key { return []state.Key{PartsKey()} },
		Optimistic: func(s *state.Store, v createPartVars) {
			s.Update(PartsKey(), func(cur any) (any, bool) {
				list, ok := cur.([]api.MaintenancePart)
				if !ok {
					return nil, false
				}
				return append(append([]api.MaintenancePart(nil), list...), v.in.Part(v.provisional)), true
			})
		},
		Confirm: func(s *state.Store, v createPartVars, id int64) {
			s.Update(PartsKey(), func(cur any) (any, bool) {
				list, ok := cur.([]api.MaintenancePart)
				if !ok {
					return nil, false
				}
				return replaceIn(list,
					func(p api.MaintenancePart) bool { return p.ID == v.provisional },
					func(p api.MaintenancePart) api.MaintenancePart { p.ID = id; return p })
			})
		},
		Invalidates: func(v createPartVars, _ int64) []state.Key {
			return []state.Key{PartsKey(), PartNumberKey(v.in.PartNumber), AuditKey()}
		},
	}, vars)
}

type updatePartVars struct {
	id int64
	in api.PartInput
}

// UpdatePart replaces a part. A part appears in the parts list of any
// machine, so the whole parts-list namespace is invalidated.
func (l *Layer) UpdatePart(ctx context.Context, id int64, in api.PartInput) error {
	_, err := query.Mutate(ctx, l.q, query.Mutation[updatePartVars, struct{}]{
		Name:     "part.update",
		Validate: func(v updatePartVars) error { return v.in.Validate() },
		Fn: func(ctx context.Context, v updatePartVars) (struct{}, error) {
			return struct{}{}, applied(l.svc.Parts.Update(ctx, v.id, v.in))
		},
		Touches: func(v updatePartVars) []state.Key { return partKeys(v.id) },
		Optimistic: func(s *state.Store, v updatePartVars) {
			next := v.in.Part(v.id)
			s.Update(PartsKey(), func(cur any) (any, bool) {
				list, ok := cur.([]api.MaintenancePart)
				if !ok {
					return nil, false
				}
				return replaceIn(list,
					func(p api.MaintenancePart) bool { return p.ID == v.id },
					func(api.MaintenancePart) api.MaintenancePart { return next })
			})
			s.Update(PartKey(idString(v.id)), func(cur any) (any, bool) {
				if p, ok := cur.(*api.MaintenancePart); !ok || p == nil {
					return nil, false
				}
				return &next, true
			})
		},
		Invalidates: func(v updatePartVars, _ struct{}) []state.Key {
			return partInvalidations(v.id)
		},
	}, updatePartVars{id: id, in: in})
	return err
}

// DeletePart removes a part from the catalogue.
func (l *Layer) DeletePart(ctx context.Context, id int64) error {
	_, err := query.Mutate(ctx, l.q, query.Mutation[int64, struct{}]{
		Name: "part.delete",
		Fn: func(ctx context.Context, id int64) (struct{}, error) {
			return struct{}{}, applied(l.svc.Parts.Delete(ctx, id))
		},
		Touches: partKeys,
		Optimistic: func(s *state.Store, id int64) {
			s.Update(PartsKey(), func(cur any) (any, bool) {
				list, ok := cur.([]api.MaintenancePart)
				if !ok {
					return nil, false
				}
				return lo.Reject(list, func(p api.MaintenancePart, _ int) bool { return p.ID == id }), true
			})
			s.Delete(PartKey(idString(id)))
		},
		Invalidates: func(id int64, _ struct{}) []state.Key {
			return append(partInvalidations(id), AdminKey())
		},
	}, id)
	return err
}

func partKeys(id int64) []state.Key {
	return []state.Key{PartsKey(), PartKey(idString(id))}
}

func partInvalidations(id int64) []state.Key {
	return []state.Key{PartsKey(), PartKey(idString(id)), PartNumbersKey(), PartsListsKey()}
}
