package data

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/query"
	"github.com/five82/toolroom/internal/state"
)

type fakeMachines struct {
	mu       sync.Mutex
	calls    map[string]int
	list     []api.Machine
	detail   *api.MachineDetail
	createID int64
	err      error
	ok       bool
	magazine api.MagazineUpdateResult
	// hook runs inside write calls, before they return.
	hook func()
}

func (f *fakeMachines) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
	if f.hook != nil {
		f.hook()
	}
	return f.err
}

func (f *fakeMachines) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeMachines) List(context.Context) ([]api.Machine, error) {
	if err := f.record("List"); err != nil {
		return nil, err
	}
	return f.list, nil
}

func (f *fakeMachines) ByID(context.Context, int64) (*api.MachineDetail, error) {
	if err := f.record("ByID"); err != nil {
		return nil, err
	}
	return f.detail, nil
}

func (f *fakeMachines) ByNumber(context.Context, string) (*api.MachineDetail, error) {
	if err := f.record("ByNumber"); err != nil {
		return nil, err
	}
	return f.detail, nil
}

func (f *fakeMachines) Create(context.Context, api.MachineCreate) (int64, error) {
	return f.createID, f.record("Create")
}

func (f *fakeMachines) Update(context.Context, int64, api.MachineUpdate) (bool, error) {
	return f.ok, f.record("Update")
}

func (f *fakeMachines) Delete(context.Context, int64) (bool, error) {
	return f.ok, f.record("Delete")
}

func (f *fakeMachines) UpdateOperatingHours(context.Context, int64, int) (bool, error) {
	return f.ok, f.record("UpdateOperatingHours")
}

func (f *fakeMachines) PerformMaintenance(context.Context, int64, api.MaintenanceRequest) (int64, error) {
	return 99, f.record("PerformMaintenance")
}

func (f *fakeMachines) UpdateMagazineProperties(context.Context, int64, api.MagazineProperties) (api.MagazineUpdateResult, error) {
	return f.magazine, f.record("UpdateMagazineProperties")
}

type fakeParts struct {
	list []api.MaintenancePart
	err  error
	ok   bool
	hook func()
}

func (f *fakeParts) List(context.Context) ([]api.MaintenancePart, error) { return f.list, f.err }

func (f *fakeParts) ByID(context.Context, int64) (*api.MaintenancePart, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &f.list[0], nil
}

func (f *fakeParts) ByPartNumber(context.Context, string) (*api.MaintenancePart, error) {
	return f.ByID(context.Background(), 0)
}

func (f *fakeParts) Create(context.Context, api.PartInput) (int64, error) { return 500, f.err }

func (f *fakeParts) Update(context.Context, int64, api.PartInput) (bool, error) {
	if f.hook != nil {
		f.hook()
	}
	return f.ok, f.err
}

func (f *fakeParts) Delete(context.Context, int64) (bool, error) {
	if f.hook != nil {
		f.hook()
	}
	return f.ok, f.err
}

type fakeLists struct {
	calls int
}

func (f *fakeLists) ForMachine(_ context.Context, number string) (*api.MaintenancePartsList, error) {
	f.calls++
	return &api.MaintenancePartsList{MachineNumber: number}, nil
}

type fakeAuth struct {
	err error
}

func (f *fakeAuth) Login(_ context.Context, username, _ string) (api.Credentials, error) {
	if f.err != nil {
		return api.Credentials{}, f.err
	}
	return api.Credentials{Username: username, AccessToken: "token"}, nil
}

func (f *fakeAuth) Logout() {}

type fixture struct {
	layer    *Layer
	store    *state.Store
	machines *fakeMachines
	parts    *fakeParts
	lists    *fakeLists
	auth     *fakeAuth
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := state.NewStore()
	t.Cleanup(store.Close)

	f := &fixture{
		store:    store,
		machines: &fakeMachines{ok: true, magazine: api.MagazineUpdateResult{Success: true}},
		parts:    &fakeParts{ok: true},
		lists:    &fakeLists{},
		auth:     &fakeAuth{},
	}
	f.layer = New(query.NewClient(store), Services{
		Machines:   f.machines,
		Parts:      f.parts,
		PartsLists: f.lists,
		Auth:       f.auth,
	}, nil)
	return f
}

func fakeMachine(id int64) api.Machine {
	return api.Machine{
		ID:               id,
		Number:           gofakeit.Regex(`M-[0-9]{4}`),
		Type:             gofakeit.RandomString([]string{"Lathe", "Mill", "Swiss"}),
		OperatingHours:   gofakeit.IntRange(0, 20000),
		InstallationDate: gofakeit.DateRange(time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), time.Now()).Format(time.RFC3339),
		Status:           api.StatusActive,
	}
}

func fakePart(id int64) api.MaintenancePart {
	return api.MaintenancePart{
		ID:            id,
		PartNumber:    gofakeit.Regex(`P-[0-9]{5}`),
		Name:          gofakeit.ProductName(),
		Category:      api.CategoryWearPart,
		Price:         gofakeit.Price(1, 500),
		Manufacturer:  gofakeit.Company(),
		StockQuantity: gofakeit.IntRange(0, 40),
	}
}

func seedMachines(f *fixture, n int) []api.Machine {
	list := make([]api.Machine, n)
	for i := range list {
		list[i] = fakeMachine(int64(i + 1))
	}
	f.store.Set(MachinesKey(), list, 0)
	return list
}
