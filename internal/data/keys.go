package data

import (
	"strconv"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/state"
)

// Cache key roots. Each entity kind has its own root so that a prefix never
// matches an unrelated kind.
const (
	rootMachines      = "machines"
	rootMachine       = "machine"
	rootMachineNumber = "machine-number"
	rootParts         = "maintenance-parts"
	rootPart          = "maintenance-part"
	rootPartNumber    = "maintenance-part-number"
	rootPartsList     = "maintenance-parts-list"
	rootAdmin         = "admin"
	rootUsers         = "users"
)

// MachinesKey is the flat machine list.
func MachinesKey() state.Key { return state.K(rootMachines) }

// MachineKey is one machine detail by id.
func MachineKey(id string) state.Key { return state.K(rootMachine, id) }

// MachineNumbersKey is the namespace of machine details looked up by number.
func MachineNumbersKey() state.Key { return state.K(rootMachineNumber) }

// MachineNumberKey is one machine detail by machine number.
func MachineNumberKey(number string) state.Key { return state.K(rootMachineNumber, number) }

// PartsKey is the flat parts list.
func PartsKey() state.Key { return state.K(rootParts) }

// PartKey is one part by id.
func PartKey(id string) state.Key { return state.K(rootPart, id) }

// PartNumbersKey is the namespace of parts looked up by part number.
func PartNumbersKey() state.Key { return state.K(rootPartNumber) }

// PartNumberKey is one part by part number.
func PartNumberKey(number string) state.Key { return state.K(rootPartNumber, number) }

// PartsListsKey is the namespace of every per-machine parts list.
func PartsListsKey() state.Key { return state.K(rootPartsList) }

// PartsListKey is the parts list of one machine.
func PartsListKey(machineNumber string) state.Key { return state.K(rootPartsList, machineNumber) }

// AdminKey is the namespace of every admin console query.
func AdminKey() state.Key { return state.K(rootAdmin) }

// AuditKey is the audit summary.
func AuditKey() state.Key { return state.K(rootAdmin, "audit") }

// DeletedKey is the trash for one resource type.
func DeletedKey(kind api.ResourceType) state.Key { return state.K(rootAdmin, "deleted", string(kind)) }

// BackupsKey is the backup list.
func BackupsKey() state.Key { return state.K(rootAdmin, "backups") }

// UsersKey is the user list.
func UsersKey() state.Key { return state.K(rootUsers) }

func idString(id int64) string { return strconv.FormatInt(id, 10) }
