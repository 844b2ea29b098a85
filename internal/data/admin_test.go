package data

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/toolroom/internal/api"
)

type fakeAdmin struct {
	deleted  []api.DeletedItem
	err      error
	restored []int64
}

func (f *fakeAdmin) AuditSummary(context.Context) (*api.AuditSummary, error) {
	return &api.AuditSummary{TotalMachines: 3, DeletedMachines: len(f.deleted)}, f.err
}

func (f *fakeAdmin) DeletedMachines(context.Context) ([]api.DeletedItem, error) {
	return f.deleted, f.err
}

func (f *fakeAdmin) DeletedParts(context.Context) ([]api.DeletedItem, error) { return nil, f.err }

func (f *fakeAdmin) Restore(_ context.Context, _ api.ResourceType, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.restored = append(f.restored, id)
	return nil
}

func (f *fakeAdmin) DeletePermanently(context.Context, api.ResourceType, int64) error { return f.err }

func (f *fakeAdmin) Export(_ context.Context, format string) ([]byte, error) {
	return []byte(format), f.err
}

func (f *fakeAdmin) Backups(context.Context) ([]api.Backup, error) { return nil, f.err }

func (f *fakeAdmin) CreateBackup(context.Context) (*api.Backup, error) {
	return &api.Backup{FileName: "backup.db"}, f.err
}

func (f *fakeAdmin) Cleanup(context.Context) (*api.CleanupResult, error) {
	return &api.CleanupResult{}, f.err
}

func withAdmin(f *fixture) *fakeAdmin {
	admin := &fakeAdmin{deleted: []api.DeletedItem{
		{ID: 4, Type: api.ResourceMachine, Label: "M-4"},
		{ID: 5, Type: api.ResourceMachine, Label: "M-5"},
	}}
	f.layer.svc.Admin = admin
	return admin
}

func TestRestore_RemovesFromTrashAndInvalidatesMachines(t *testing.T) {
	f := newFixture(t)
	admin := withAdmin(f)
	seedMachines(f, 1)

	trash := f.layer.Deleted(context.Background(), api.ResourceMachine)
	require.Len(t, trash.Data, 2)
	f.layer.AuditSummary(context.Background())

	require.NoError(t, f.layer.Restore(context.Background(), api.ResourceMachine, 4))
	assert.Equal(t, []int64{4}, admin.restored)

	e, _ := f.store.Get(DeletedKey(api.ResourceMachine))
	assert.Len(t, e.Data, 1)
	machines, _ := f.store.Get(MachinesKey())
	assert.True(t, machines.Invalidated)
	audit, _ := f.store.Get(AuditKey())
	assert.True(t, audit.Invalidated)
}

func TestRestore_FailureKeepsTrash(t *testing.T) {
	f := newFixture(t)
	admin := withAdmin(f)
	f.layer.Deleted(context.Background(), api.ResourceMachine)
	before, _ := f.store.Get(DeletedKey(api.ResourceMachine))

	admin.err = &api.APIError{Status: http.StatusForbidden, Message: "invalid API key"}
	require.Error(t, f.layer.Restore(context.Background(), api.ResourceMachine, 4))

	after, _ := f.store.Get(DeletedKey(api.ResourceMachine))
	assert.Equal(t, before, after)
}

func TestRestore_RejectsUnknownKind(t *testing.T) {
	f := newFixture(t)
	admin := withAdmin(f)
	err := f.layer.Restore(context.Background(), api.ResourceType("user"), 1)
	assert.True(t, api.IsClientError(err))
	assert.Empty(t, admin.restored)
}

func TestCleanup_InvalidatesAdminNamespace(t *testing.T) {
	f := newFixture(t)
	withAdmin(f)
	f.layer.AuditSummary(context.Background())
	f.layer.Backups(context.Background())

	_, err := f.layer.Cleanup(context.Background())
	require.NoError(t, err)
	for _, k := range f.store.Keys(AdminKey()) {
		e, _ := f.store.Get(k)
		assert.True(t, e.Invalidated, k.String())
	}
}

func TestExport_PassesFormatThrough(t *testing.T) {
	f := newFixture(t)
	withAdmin(f)
	body, err := f.layer.Export(context.Background(), "csv")
	require.NoError(t, err)
	assert.Equal(t, []byte("csv"), body)
}
