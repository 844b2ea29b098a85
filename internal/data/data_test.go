package data

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/state"
)

func TestValidID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id        string
		valid     bool
		routeSafe bool
	}{
		{"42", true, true},
		{"M-1001", true, true},
		{"abc_DEF-9", true, true},
		{"", false, false},
		{"   ", false, false},
		{"undefined", false, false},
		{"null", false, false},
		{"../etc", true, false},
		{"a b", true, false},
		{"42?x=1", true, false},
		{strings.Repeat("9", MaxRouteIDLength), true, true},
		{strings.Repeat("9", MaxRouteIDLength+1), true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidID(tt.id), "ValidID(%q)", tt.id)
		assert.Equal(t, tt.routeSafe, ValidRouteID(tt.id), "ValidRouteID(%q)", tt.id)
	}
}

func TestMachine_GatedIDsNeverReachBackend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{"", "undefined", "null", "1;DROP", strings.Repeat("1", 65)} {
		r := f.layer.Machine(ctx, id)
		assert.False(t, r.HasData, id)
		assert.NoError(t, r.Err, id)
	}
	assert.False(t, f.layer.MachineByNumber(ctx, "undefined").HasData)
	assert.False(t, f.layer.PartsList(ctx, "null").HasData)

	assert.Zero(t, f.machines.count("ByID"))
	assert.Zero(t, f.machines.count("ByNumber"))
	assert.Zero(t, f.lists.calls)
}

func TestMachine_FetchesAndCaches(t *testing.T) {
	f := newFixture(t)
	m := fakeMachine(7)
	f.machines.detail = &api.MachineDetail{Machine: m}

	first := f.layer.Machine(context.Background(), "7")
	second := f.layer.Machine(context.Background(), "7")

	require.NoError(t, first.Err)
	assert.Equal(t, m.Number, second.Data.Number)
	assert.Equal(t, 1, f.machines.count("ByID"))
}

func TestMachines_NotFoundIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.machines.err = &api.APIError{Method: http.MethodGet, Path: "/Machines", Status: http.StatusNotFound}

	r := f.layer.Machines(context.Background())
	assert.True(t, api.IsNotFound(r.Err))
	assert.Equal(t, 1, f.machines.count("List"))
}

func TestCreateMachine_FailureRestoresListExactly(t *testing.T) {
	f := newFixture(t)
	seedMachines(f, 3)
	before, _ := f.store.Get(MachinesKey())

	var during int
	f.machines.err = &api.APIError{Status: http.StatusConflict, Message: "machine number exists"}
	f.machines.hook = func() {
		e, _ := f.store.Get(MachinesKey())
		during = len(e.Data.([]api.Machine))
	}

	_, err := f.layer.CreateMachine(context.Background(), api.MachineCreate{Number: "M-9", Type: "Lathe"})
	require.Error(t, err)
	assert.Equal(t, 4, during)

	after, _ := f.store.Get(MachinesKey())
	assert.Equal(t, before, after)
}

func TestCreateMachine_ConfirmsProvisionalID(t *testing.T) {
	f := newFixture(t)
	seedMachines(f, 2)
	f.machines.createID = 301

	var provisional int64
	f.machines.hook = func() {
		e, _ := f.store.Get(MachinesKey())
		list := e.Data.([]api.Machine)
		provisional = list[len(list)-1].ID
	}

	id, err := f.layer.CreateMachine(context.Background(), api.MachineCreate{Number: "M-9", Type: "Lathe"})
	require.NoError(t, err)
	assert.EqualValues(t, 301, id)
	assert.Negative(t, provisional)

	e, _ := f.store.Get(MachinesKey())
	list := e.Data.([]api.Machine)
	require.Len(t, list, 3)
	assert.EqualValues(t, 301, list[2].ID)
	assert.Equal(t, api.StatusActive, list[2].Status)
	assert.True(t, e.Invalidated)
}

func TestCreateMachine_ValidationNeverCallsBackend(t *testing.T) {
	f := newFixture(t)
	_, err := f.layer.CreateMachine(context.Background(), api.MachineCreate{})

	var vErr *api.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Errors, 2)
	assert.Zero(t, f.machines.count("Create"))
}

func TestUpdateMachine_FalseResultRollsBack(t *testing.T) {
	f := newFixture(t)
	list := seedMachines(f, 2)
	f.store.Set(MachineKey("1"), &api.MachineDetail{Machine: list[0]}, 0)
	beforeList, _ := f.store.Get(MachinesKey())
	beforeDetail, _ := f.store.Get(MachineKey("1"))
	f.machines.ok = false

	status := api.StatusOutOfService
	err := f.layer.UpdateMachine(context.Background(), 1, api.MachineUpdate{Status: &status})
	require.ErrorIs(t, err, ErrNotApplied)

	afterList, _ := f.store.Get(MachinesKey())
	afterDetail, _ := f.store.Get(MachineKey("1"))
	assert.Equal(t, beforeList, afterList)
	assert.Equal(t, beforeDetail, afterDetail)
}

func TestUpdateOperatingHours_AppliesAndInvalidatesPartsList(t *testing.T) {
	f := newFixture(t)
	list := seedMachines(f, 2)
	f.store.Set(PartsListKey(list[0].Number), &api.MaintenancePartsList{MachineNumber: list[0].Number}, 0)
	f.store.Set(PartsListKey("OTHER"), &api.MaintenancePartsList{MachineNumber: "OTHER"}, 0)

	require.NoError(t, f.layer.UpdateOperatingHours(context.Background(), 1, 12345))

	e, _ := f.store.Get(MachinesKey())
	assert.Equal(t, 12345, e.Data.([]api.Machine)[0].OperatingHours)
	assert.True(t, e.Invalidated)

	own, _ := f.store.Get(PartsListKey(list[0].Number))
	other, _ := f.store.Get(PartsListKey("OTHER"))
	assert.True(t, own.Invalidated)
	assert.False(t, other.Invalidated)
}

func TestUpdateOperatingHours_RejectsNegative(t *testing.T) {
	f := newFixture(t)
	err := f.layer.UpdateOperatingHours(context.Background(), 1, -5)
	assert.True(t, api.IsClientError(err))
	assert.Zero(t, f.machines.count("UpdateOperatingHours"))
}

func TestDeleteMachine_FailureRestoresDetail(t *testing.T) {
	f := newFixture(t)
	list := seedMachines(f, 3)
	f.store.Set(MachineKey("2"), &api.MachineDetail{Machine: list[1]}, 0)
	beforeDetail, _ := f.store.Get(MachineKey("2"))
	beforeList, _ := f.store.Get(MachinesKey())

	f.machines.err = errors.New("execute request: connection reset")
	f.machines.hook = func() {
		_, ok := f.store.Get(MachineKey("2"))
		assert.False(t, ok, "detail should be gone while the delete is in flight")
	}

	require.Error(t, f.layer.DeleteMachine(context.Background(), 2))
	afterDetail, ok := f.store.Get(MachineKey("2"))
	require.True(t, ok)
	afterList, _ := f.store.Get(MachinesKey())
	assert.Equal(t, beforeDetail, afterDetail)
	assert.Equal(t, beforeList, afterList)
	assert.Equal(t, 1, f.machines.count("Delete"), "mutations are never retried")
}

func TestDeleteMachine_RemovesRow(t *testing.T) {
	f := newFixture(t)
	seedMachines(f, 3)

	require.NoError(t, f.layer.DeleteMachine(context.Background(), 2))
	e, _ := f.store.Get(MachinesKey())
	ids := []int64{}
	for _, m := range e.Data.([]api.Machine) {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []int64{1, 3}, ids)
}

func TestUpdateMagazineProperties_UnsuccessfulResultRollsBack(t *testing.T) {
	f := newFixture(t)
	seedMachines(f, 1)
	before, _ := f.store.Get(MachinesKey())
	f.machines.magazine = api.MagazineUpdateResult{Success: false}

	err := f.layer.UpdateMagazineProperties(context.Background(), 1, api.MagazineProperties{SerialNumber: "SN-1"})
	require.ErrorIs(t, err, ErrNotApplied)
	after, _ := f.store.Get(MachinesKey())
	assert.Equal(t, before, after)
}

func TestUpdateMagazineProperties_Applies(t *testing.T) {
	f := newFixture(t)
	seedMachines(f, 1)

	require.NoError(t, f.layer.UpdateMagazineProperties(context.Background(), 1, api.MagazineProperties{SerialNumber: "SN-1"}))
	e, _ := f.store.Get(MachinesKey())
	assert.Equal(t, "SN-1", e.Data.([]api.Machine)[0].SerialNumber)
}

func TestPerformMaintenance_InvalidatesAffectedKeys(t *testing.T) {
	f := newFixture(t)
	list := seedMachines(f, 2)
	number := list[0].Number
	f.store.Set(MachineKey("1"), &api.MachineDetail{Machine: list[0]}, 0)
	f.store.Set(MachineNumberKey(number), &api.MachineDetail{Machine: list[0]}, 0)
	f.store.Set(PartsListKey(number), &api.MaintenancePartsList{MachineNumber: number}, 0)
	f.store.Set(PartsKey(), []api.MaintenancePart{fakePart(1)}, 0)
	f.store.Set(MachineKey("2"), &api.MachineDetail{Machine: list[1]}, 0)

	id, err := f.layer.PerformMaintenance(context.Background(), 1, "", api.MaintenanceRequest{
		TechnicianID:    "T-1",
		MaintenanceType: "Scheduled",
		ReplacedParts:   []api.ReplacedPartInput{{PartID: 1, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 99, id)

	for _, k := range []state.Key{MachinesKey(), MachineKey("1"), MachineNumberKey(number), PartsListKey(number), PartsKey()} {
		e, ok := f.store.Get(k)
		require.True(t, ok, k.String())
		assert.True(t, e.Invalidated, k.String())
	}
	untouched, _ := f.store.Get(MachineKey("2"))
	assert.False(t, untouched.Invalidated)
}

func TestPerformMaintenance_ValidatesQuantities(t *testing.T) {
	f := newFixture(t)
	_, err := f.layer.PerformMaintenance(context.Background(), 1, "M-1", api.MaintenanceRequest{
		TechnicianID:    "T-1",
		MaintenanceType: "Scheduled",
		ReplacedParts:   []api.ReplacedPartInput{{PartID: 1, Quantity: 0}},
	})
	assert.True(t, api.IsClientError(err))
	assert.Zero(t, f.machines.count("PerformMaintenance"))
}

func TestLogin_ClearsPreviousSessionCache(t *testing.T) {
	f := newFixture(t)
	seedMachines(f, 2)

	creds, err := f.layer.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", creds.Username)
	_, ok := f.store.Get(MachinesKey())
	assert.False(t, ok)
}

func TestLogin_FailureKeepsCache(t *testing.T) {
	f := newFixture(t)
	seedMachines(f, 2)
	f.auth.err = &api.APIError{Status: http.StatusUnauthorized, Message: "bad credentials"}

	_, err := f.layer.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	_, ok := f.store.Get(MachinesKey())
	assert.True(t, ok)
}

func TestLogout_ClearsCache(t *testing.T) {
	f := newFixture(t)
	seedMachines(f, 1)
	f.layer.Logout()
	assert.Empty(t, f.store.Keys(state.K()))
}
