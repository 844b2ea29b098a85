package data

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/state"
)

func partInput(p api.MaintenancePart) api.PartInput {
	return api.PartInput{
		PartNumber:    p.PartNumber,
		Name:          p.Name,
		Category:      p.Category,
		Price:         p.Price,
		Manufacturer:  p.Manufacturer,
		StockQuantity: p.StockQuantity,
	}
}

func seedParts(f *fixture) []api.MaintenancePart {
	list := []api.MaintenancePart{fakePart(1), fakePart(2)}
	f.parts.list = list
	f.store.Set(PartsKey(), list, 0)
	return list
}

func TestUpdatePart_InvalidatesEveryPartsList(t *testing.T) {
	f := newFixture(t)
	list := seedParts(f)
	f.store.Set(PartKey("1"), &list[0], 0)
	for _, n := range []string{"M-1", "M-2", "M-3"} {
		f.store.Set(PartsListKey(n), &api.MaintenancePartsList{MachineNumber: n}, 0)
	}
	f.store.Set(MachinesKey(), []api.Machine{}, 0)

	in := partInput(list[0])
	in.Price = 12.5
	require.NoError(t, f.layer.UpdatePart(context.Background(), 1, in))

	for _, n := range []string{"M-1", "M-2", "M-3"} {
		e, _ := f.store.Get(PartsListKey(n))
		assert.True(t, e.Invalidated, n)
	}
	e, _ := f.store.Get(PartsKey())
	assert.True(t, e.Invalidated)
	assert.Equal(t, 12.5, e.Data.([]api.MaintenancePart)[0].Price)

	one, _ := f.store.Get(PartKey("1"))
	assert.Equal(t, 12.5, one.Data.(*api.MaintenancePart).Price)

	machines, _ := f.store.Get(MachinesKey())
	assert.False(t, machines.Invalidated)
}

func TestUpdatePart_RejectsNonPositivePrice(t *testing.T) {
	f := newFixture(t)
	list := seedParts(f)
	called := false
	f.parts.hook = func() { called = true }

	in := partInput(list[0])
	in.Price = 0
	err := f.layer.UpdatePart(context.Background(), 1, in)

	var vErr *api.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.False(t, called)
}

func TestUpdatePart_ConflictRollsBack(t *testing.T) {
	f := newFixture(t)
	list := seedParts(f)
	before, _ := f.store.Get(PartsKey())
	f.parts.err = &api.APIError{Status: http.StatusConflict, Message: "modified by another user"}

	in := partInput(list[1])
	in.StockQuantity = 0
	err := f.layer.UpdatePart(context.Background(), 2, in)
	assert.Equal(t, http.StatusConflict, api.StatusCode(err))

	after, _ := f.store.Get(PartsKey())
	assert.Equal(t, before, after)
}

func TestDeletePart_InvalidationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	seedParts(f)
	f.store.Set(PartsListKey("M-1"), &api.MaintenancePartsList{MachineNumber: "M-1"}, 0)

	require.NoError(t, f.layer.DeletePart(context.Background(), 1))
	first, _ := f.store.Get(PartsListKey("M-1"))

	f.store.Invalidate(partInvalidations(1)...)
	second, _ := f.store.Get(PartsListKey("M-1"))

	assert.True(t, first.Invalidated)
	assert.Equal(t, first.Invalidated, second.Invalidated)
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	e, _ := f.store.Get(PartsKey())
	require.Len(t, e.Data.([]api.MaintenancePart), 1)
	assert.EqualValues(t, 2, e.Data.([]api.MaintenancePart)[0].ID)
}

func TestCreatePart_ConfirmsID(t *testing.T) {
	f := newFixture(t)
	seedParts(f)

	id, err := f.layer.CreatePart(context.Background(), partInput(fakePart(0)))
	require.NoError(t, err)
	assert.EqualValues(t, 500, id)

	e, _ := f.store.Get(PartsKey())
	list := e.Data.([]api.MaintenancePart)
	assert.EqualValues(t, 500, list[len(list)-1].ID)
}

func TestPartsList_SharedAcrossCallers(t *testing.T) {
	f := newFixture(t)
	a := f.layer.PartsList(context.Background(), "M-1")
	b := f.layer.PartsList(context.Background(), "M-1")
	require.NoError(t, a.Err)
	assert.Equal(t, "M-1", b.Data.MachineNumber)
	assert.Equal(t, 1, f.lists.calls)

	f.store.Invalidate(PartsListsKey())
	f.layer.PartsList(context.Background(), "M-1")
	assert.Equal(t, 2, f.lists.calls)
}

func TestKeysDoNotOverlap(t *testing.T) {
	assert.False(t, PartKey("1").HasPrefix(PartsKey()))
	assert.False(t, MachineKey("1").HasPrefix(MachinesKey()))
	assert.True(t, PartsListKey("M-1").HasPrefix(PartsListsKey()))
	assert.True(t, DeletedKey(api.ResourcePart).HasPrefix(AdminKey()))
	assert.False(t, UsersKey().HasPrefix(AdminKey()))
	assert.Equal(t, state.K("maintenance-parts-list", "M-1"), PartsListKey("M-1"))
}
