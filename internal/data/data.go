package data

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/logger"
	"github.com/five82/toolroom/internal/query"
	"github.com/five82/toolroom/internal/state"
)

// ErrNotApplied is returned when the backend answers a write with success
// set to false.
var ErrNotApplied = errors.New("backend did not apply the change")

// MachineAPI is the machine resource service.
type MachineAPI interface {
	List(ctx context.Context) ([]api.Machine, error)
	ByID(ctx context.Context, id int64) (*api.MachineDetail, error)
	ByNumber(ctx context.Context, number string) (*api.MachineDetail, error)
	Create(ctx context.Context, in api.MachineCreate) (int64, error)
	Update(ctx context.Context, id int64, in api.MachineUpdate) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	UpdateOperatingHours(ctx context.Context, id int64, hours int) (bool, error)
	PerformMaintenance(ctx context.Context, id int64, in api.MaintenanceRequest) (int64, error)
	UpdateMagazineProperties(ctx context.Context, id int64, props api.MagazineProperties) (api.MagazineUpdateResult, error)
}

// PartAPI is the maintenance part resource service.
type PartAPI interface {
	List(ctx context.Context) ([]api.MaintenancePart, error)
	ByID(ctx context.Context, id int64) (*api.MaintenancePart, error)
	ByPartNumber(ctx context.Context, partNumber string) (*api.MaintenancePart, error)
	Create(ctx context.Context, in api.PartInput) (int64, error)
	Update(ctx context.Context, id int64, in api.PartInput) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// PartsListAPI returns the computed parts list of a machine.
type PartsListAPI interface {
	ForMachine(ctx context.Context, machineNumber string) (*api.MaintenancePartsList, error)
}

// AdminAPI is the admin console service.
type AdminAPI interface {
	AuditSummary(ctx context.Context) (*api.AuditSummary, error)
	DeletedMachines(ctx context.Context) ([]api.DeletedItem, error)
	DeletedParts(ctx context.Context) ([]api.DeletedItem, error)
	Restore(ctx context.Context, kind api.ResourceType, id int64) error
	DeletePermanently(ctx context.Context, kind api.ResourceType, id int64) error
	Export(ctx context.Context, format string) ([]byte, error)
	Backups(ctx context.Context) ([]api.Backup, error)
	CreateBackup(ctx context.Context) (*api.Backup, error)
	Cleanup(ctx context.Context) (*api.CleanupResult, error)
}

// UserAPI is the user management service.
type UserAPI interface {
	List(ctx context.Context) ([]api.User, error)
	Create(ctx context.Context, in api.UserInput) (int64, error)
	Update(ctx context.Context, id int64, in api.UserInput) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// AuthAPI logs users in and out.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (api.Credentials, error)
	Logout()
}

// Services bundles the resource services the layer drives.
type Services struct {
	Machines   MachineAPI
	Parts      PartAPI
	PartsLists PartsListAPI
	Admin      AdminAPI
	Users      UserAPI
	Auth       AuthAPI
}

// ServicesFrom wires every service of c.
func ServicesFrom(c *api.Client) Services {
	return Services{
		Machines:   c.Machines(),
		Parts:      c.Parts(),
		PartsLists: c.PartsLists(),
		Admin:      c.Admin(),
		Users:      c.Users(),
		Auth:       c.Auth(),
	}
}

// Layer exposes the cached reads and consistent writes each view uses.
type Layer struct {
	q           *query.Client
	svc         Services
	log         *zap.Logger
	provisional atomic.Int64
}

// New returns a Layer over q and svc.
func New(q *query.Client, svc Services, log *zap.Logger) *Layer {
	return &Layer{q: q, svc: svc, log: logger.OrNop(log).Named("data")}
}

// Store returns the cache the layer writes to.
func (l *Layer) Store() *state.Store { return l.q.Store() }

// nextProvisionalID returns a negative id for an optimistic insert. Real
// ids are positive, so provisional rows never collide with confirmed ones.
func (l *Layer) nextProvisionalID() int64 {
	return -l.provisional.Add(1)
}

// applied turns a false success flag into ErrNotApplied so the mutation
// rolls back.
func applied(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotApplied
	}
	return nil
}

// replaceIn returns a copy of list with the element matching id replaced by fn.
func replaceIn[T any](list []T, match func(T) bool, fn func(T) T) ([]T, bool) {
	out := make([]T, len(list))
	found := false
	for i, v := range list {
		if match(v) {
			v = fn(v)
			found = true
		}
		out[i] = v
	}
	return out, found
}
