package data

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/query"
	"github.com/five82/toolroom/internal/state"
)

// AuditSummary returns record counts for the admin console.
func (l *Layer) AuditSummary(ctx context.Context) query.Result[*api.AuditSummary] {
	return query.Use(ctx, l.q, query.Options[*api.AuditSummary]{
		Key:     AuditKey(),
		Fn:      l.svc.Admin.AuditSummary,
		Enabled: true,
		Policy:  query.AdminPolicy,
	})
}

// Deleted returns the trash for one resource type.
func (l *Layer) Deleted(ctx context.Context, kind api.ResourceType) query.Result[[]api.DeletedItem] {
	fn := l.svc.Admin.DeletedMachines
	if kind == api.ResourcePart {
		fn = l.svc.Admin.DeletedParts
	}
	return query.Use(ctx, l.q, query.Options[[]api.DeletedItem]{
		Key:     DeletedKey(kind),
		Fn:      fn,
		Enabled: kind == api.ResourceMachine || kind == api.ResourcePart,
		Policy:  query.AdminPolicy,
	})
}

// Backups returns the known database backups.
func (l *Layer) Backups(ctx context.Context) query.Result[[]api.Backup] {
	return query.Use(ctx, l.q, query.Options[[]api.Backup]{
		Key:     BackupsKey(),
		Fn:      l.svc.Admin.Backups,
		Enabled: true,
		Policy:  query.AdminPolicy,
	})
}

type trashVars struct {
	kind api.ResourceType
	id   int64
}

// Restore brings a deleted record back. The row leaves the trash
// optimistically and the live list of its kind is invalidated.
func (l *Layer) Restore(ctx context.Context, kind api.ResourceType, id int64) error {
	_, err := query.Mutate(ctx, l.q, query.Mutation[trashVars, struct{}]{
		Name:     "admin.restore",
		Validate: validateKind,
		Fn: func(ctx context.Context, v trashVars) (struct{}, error) {
			return struct{}{}, l.svc.Admin.Restore(ctx, v.kind, v.id)
		},
		Touches:    trashKeys,
		Optimistic: removeFromTrash,
		Invalidates: func(v trashVars, _ struct{}) []state.Key {
			keys := []state.Key{DeletedKey(v.kind), AuditKey()}
			if v.kind == api.ResourceMachine {
				return append(keys, MachinesKey(), MachineKey(idString(v.id)))
			}
			return append(keys, PartsKey(), PartKey(idString(v.id)), PartsListsKey())
		},
	}, trashVars{kind: kind, id: id})
	return err
}

// DeletePermanently purges a record from the trash.
func (l *Layer) DeletePermanently(ctx context.Context, kind api.ResourceType, id int64) error {
	_, err := query.Mutate(ctx, l.q, query.Mutation[trashVars, struct{}]{
		Name:     "admin.purge",
		Validate: validateKind,
		Fn: func(ctx context.Context, v trashVars) (struct{}, error) {
			return struct{}{}, l.svc.Admin.DeletePermanently(ctx, v.kind, v.id)
		},
		Touches:    trashKeys,
		Optimistic: removeFromTrash,
		Invalidates: func(v trashVars, _ struct{}) []state.Key {
			return []state.Key{DeletedKey(v.kind), AuditKey()}
		},
	}, trashVars{kind: kind, id: id})
	return err
}

// CreateBackup asks the backend for a new backup.
func (l *Layer) CreateBackup(ctx context.Context) (*api.Backup, error) {
	return query.Mutate(ctx, l.q, query.Mutation[struct{}, *api.Backup]{
		Name: "admin.backup",
		Fn: func(ctx context.Context, _ struct{}) (*api.Backup, error) {
			return l.svc.Admin.CreateBackup(ctx)
		},
		Invalidates: func(struct{}, *api.Backup) []state.Key {
			return []state.Key{BackupsKey(), AuditKey()}
		},
	}, struct{}{})
}

// Cleanup runs the backend's maintenance cleanup. It can purge trash and
// old backups, so every admin query is invalidated.
func (l *Layer) Cleanup(ctx context.Context) (*api.CleanupResult, error) {
	return query.Mutate(ctx, l.q, query.Mutation[struct{}, *api.CleanupResult]{
		Name: "admin.cleanup",
		Fn: func(ctx context.Context, _ struct{}) (*api.CleanupResult, error) {
			return l.svc.Admin.Cleanup(ctx)
		},
		Invalidates: func(struct{}, *api.CleanupResult) []state.Key {
			return []state.Key{AdminKey()}
		},
	}, struct{}{})
}

// Export downloads a server-side export. Exports are never cached.
func (l *Layer) Export(ctx context.Context, format string) ([]byte, error) {
	const op = "data.Export"
	body, err := l.svc.Admin.Export(ctx, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return body, nil
}

func validateKind(v trashVars) error {
	if v.kind != api.ResourceMachine && v.kind != api.ResourcePart {
		return &api.ValidationError{Errors: []string{fmt.Sprintf("type: unknown resource %q", v.kind)}}
	}
	return nil
}

func trashKeys(v trashVars) []state.Key {
	return []state.Key{DeletedKey(v.kind)}
}

func removeFromTrash(s *state.Store, v trashVars) {
	s.Update(DeletedKey(v.kind), func(cur any) (any, bool) {
		list, ok := cur.([]api.DeletedItem)
		if !ok {
			return nil, false
		}
		return lo.Reject(list, func(it api.DeletedItem, _ int) bool { return it.ID == v.id }), true
	})
}
