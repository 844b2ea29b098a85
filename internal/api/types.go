package api

import (
	"fmt"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses the timestamp shapes the backend emits. Zero is returned
// for empty or unparseable values.
func ParseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// MachineStatus is the operational state of a machine.
type MachineStatus string

const (
	StatusActive        MachineStatus = "Active"
	StatusInMaintenance MachineStatus = "InMaintenance"
	StatusOutOfService  MachineStatus = "OutOfService"
)

// MachineStatuses lists all statuses in display order.
var MachineStatuses = []MachineStatus{StatusActive, StatusInMaintenance, StatusOutOfService}

// Valid reports whether s is a known status.
func (s MachineStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInMaintenance, StatusOutOfService:
		return true
	}
	return false
}

// MagazineProperties describes the bar-feed magazine attached to a machine.
// All fields are optional.
type MagazineProperties struct {
	CustomerName    string `json:"customerName,omitempty"`
	CustomerNumber  string `json:"customerNumber,omitempty"`
	CustomerCountry string `json:"customerCountry,omitempty"`
	OrderNumber     string `json:"orderNumber,omitempty"`

	ProductionDate string `json:"productionDate,omitempty"`
	ProductionWeek *int   `json:"productionWeek,omitempty"`
	SerialNumber   string `json:"serialNumber,omitempty"`
	MagazineType   string `json:"magazineType,omitempty"`

	BarDiameterMin *float64 `json:"barDiameterMin,omitempty"`
	BarDiameterMax *float64 `json:"barDiameterMax,omitempty"`
	BarLength      *float64 `json:"barLength,omitempty"`

	ColorCode string `json:"colorCode,omitempty"`
	ColorName string `json:"colorName,omitempty"`

	LatheManufacturer string   `json:"latheManufacturer,omitempty"`
	LatheModel        string   `json:"latheModel,omitempty"`
	LatheSerialNumber string   `json:"latheSerialNumber,omitempty"`
	SpindleHeight     *float64 `json:"spindleHeight,omitempty"`
	FeedDirection     string   `json:"feedDirection,omitempty"`

	Voltage        *int     `json:"voltage,omitempty"`
	Frequency      *int     `json:"frequency,omitempty"`
	ControlVoltage *int     `json:"controlVoltage,omitempty"`
	PowerKW        *float64 `json:"powerKw,omitempty"`

	PLCVersion              string `json:"plcVersion,omitempty"`
	SoftwareVersion         string `json:"softwareVersion,omitempty"`
	ElectricalDiagramNumber string `json:"electricalDiagramNumber,omitempty"`
	DocumentationLanguage   string `json:"documentationLanguage,omitempty"`
	ManualRevision          string `json:"manualRevision,omitempty"`
	HasCECertificate        *bool  `json:"hasCeCertificate,omitempty"`
	Notes                   string `json:"notes,omitempty"`
}

// Machine is a CNC machine as returned by the backend.
type Machine struct {
	ID                  int64         `json:"id"`
	Number              string        `json:"number"`
	Type                string        `json:"type"`
	OperatingHours      int           `json:"operatingHours"`
	InstallationDate    string        `json:"installationDate"`
	Status              MachineStatus `json:"status"`
	MaintenanceCount    int           `json:"maintenanceCount"`
	LastMaintenanceDate *string       `json:"lastMaintenanceDate"`
	MagazineProperties
}

// Installed returns the parsed installation date.
func (m Machine) Installed() time.Time {
	return ParseTime(m.InstallationDate)
}

// LastMaintained returns the parsed last maintenance date, zero when never maintained.
func (m Machine) LastMaintained() time.Time {
	if m.LastMaintenanceDate == nil {
		return time.Time{}
	}
	return ParseTime(*m.LastMaintenanceDate)
}

// MachineDetail is a machine with its maintenance history.
type MachineDetail struct {
	Machine
	MaintenanceRecords []MaintenanceRecord `json:"maintenanceRecords"`
}

// MaintenanceRecord is one performed maintenance.
type MaintenanceRecord struct {
	ID              int64          `json:"id"`
	TechnicianID    string         `json:"technicianId"`
	MaintenanceType string         `json:"maintenanceType"`
	PerformedAt     string         `json:"performedAt"`
	Comments        string         `json:"comments"`
	ReplacedParts   []ReplacedPart `json:"replacedParts"`
}

// ReplacedPart is a part consumed by a maintenance record.
type ReplacedPart struct {
	PartID                      int64  `json:"partId"`
	PartNumber                  string `json:"partNumber"`
	PartName                    string `json:"partName"`
	Quantity                    int    `json:"quantity"`
	OperatingHoursAtReplacement int    `json:"operatingHoursAtReplacement"`
	ReplacementYear             int    `json:"replacementYear"`
}

// MachineCreate is the payload for POST /Machines.
type MachineCreate struct {
	Number           string        `json:"number"`
	Type             string        `json:"type"`
	OperatingHours   int           `json:"operatingHours"`
	InstallationDate string        `json:"installationDate"`
	Status           MachineStatus `json:"status"`
}

// Validate checks the fields the backend would reject.
func (in MachineCreate) Validate() error {
	var problems []string
	if strings.TrimSpace(in.Number) == "" {
		problems = append(problems, "number: required")
	}
	if strings.TrimSpace(in.Type) == "" {
		problems = append(problems, "type: required")
	}
	if in.OperatingHours < 0 {
		problems = append(problems, "operatingHours: must not be negative")
	}
	if in.Status != "" && !in.Status.Valid() {
		problems = append(problems, fmt.Sprintf("status: unknown value %q", in.Status))
	}
	if len(problems) > 0 {
		return &ValidationError{Errors: problems}
	}
	return nil
}

// Machine returns the provisional machine used for optimistic inserts.
func (in MachineCreate) Machine(provisionalID int64) Machine {
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	return Machine{
		ID:               provisionalID,
		Number:           in.Number,
		Type:             in.Type,
		OperatingHours:   in.OperatingHours,
		InstallationDate: in.InstallationDate,
		Status:           status,
	}
}

// MachineUpdate is a partial update; nil fields are left unchanged.
type MachineUpdate struct {
	Number           *string        `json:"number,omitempty"`
	Type             *string        `json:"type,omitempty"`
	OperatingHours   *int           `json:"operatingHours,omitempty"`
	InstallationDate *string        `json:"installationDate,omitempty"`
	Status           *MachineStatus `json:"status,omitempty"`
}

// ApplyTo merges the set fields into m.
func (u MachineUpdate) ApplyTo(m Machine) Machine {
	if u.Number != nil {
		m.Number = *u.Number
	}
	if u.Type != nil {
		m.Type = *u.Type
	}
	if u.OperatingHours != nil {
		m.OperatingHours = *u.OperatingHours
	}
	if u.InstallationDate != nil {
		m.InstallationDate = *u.InstallationDate
	}
	if u.Status != nil {
		m.Status = *u.Status
	}
	return m
}

// MaintenanceRequest is the payload for POST /Machines/{id}/maintenance.
type MaintenanceRequest struct {
	TechnicianID    string              `json:"technicianId"`
	MaintenanceType string              `json:"maintenanceType"`
	Comments        string              `json:"comments,omitempty"`
	ReplacedParts   []ReplacedPartInput `json:"replacedParts"`
}

// ReplacedPartInput selects a part and quantity for a maintenance.
type ReplacedPartInput struct {
	PartID   int64 `json:"partId"`
	Quantity int   `json:"quantity"`
}

// MagazineUpdateResult is the body of PUT /Machines/{id}/magazine-properties.
type MagazineUpdateResult struct {
	Success bool `json:"success"`
}

// PartCategory groups maintenance parts.
type PartCategory string

const (
	CategoryWearPart       PartCategory = "WearPart"
	CategorySparePart      PartCategory = "SparePart"
	CategoryConsumablePart PartCategory = "ConsumablePart"
	CategoryToolPart       PartCategory = "ToolPart"
)

// PartCategories lists all categories in display order.
var PartCategories = []PartCategory{CategoryWearPart, CategorySparePart, CategoryConsumablePart, CategoryToolPart}

// Valid reports whether c is a known category.
func (c PartCategory) Valid() bool {
	switch c {
	case CategoryWearPart, CategorySparePart, CategoryConsumablePart, CategoryToolPart:
		return true
	}
	return false
}

// MaintenancePart is a stocked spare or wear component.
type MaintenancePart struct {
	ID            int64        `json:"id"`
	PartNumber    string       `json:"partNumber"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Category      PartCategory `json:"category"`
	Price         float64      `json:"price"`
	Manufacturer  string       `json:"manufacturer"`
	StockQuantity int          `json:"stockQuantity"`
}

// PartInput is the payload for creating or updating a part.
type PartInput struct {
	PartNumber    string       `json:"partNumber"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	Category      PartCategory `json:"category"`
	Price         float64      `json:"price"`
	Manufacturer  string       `json:"manufacturer,omitempty"`
	StockQuantity int          `json:"stockQuantity"`
}

// Validate applies the part invariants: price > 0, stock >= 0.
func (in PartInput) Validate() error {
	var problems []string
	if strings.TrimSpace(in.PartNumber) == "" {
		problems = append(problems, "partNumber: required")
	}
	if strings.TrimSpace(in.Name) == "" {
		problems = append(problems, "name: required")
	}
	if in.Price <= 0 {
		problems = append(problems, "price: must be greater than zero")
	}
	if in.StockQuantity < 0 {
		problems = append(problems, "stockQuantity: must not be negative")
	}
	if in.Category != "" && !in.Category.Valid() {
		problems = append(problems, fmt.Sprintf("category: unknown value %q", in.Category))
	}
	if len(problems) > 0 {
		return &ValidationError{Errors: problems}
	}
	return nil
}

// Part returns the part this input describes under id.
func (in PartInput) Part(id int64) MaintenancePart {
	return MaintenancePart{
		ID:            id,
		PartNumber:    in.PartNumber,
		Name:          in.Name,
		Description:   in.Description,
		Category:      in.Category,
		Price:         in.Price,
		Manufacturer:  in.Manufacturer,
		StockQuantity: in.StockQuantity,
	}
}

// MaintenancePartsList is the backend-computed part list for one machine.
type MaintenancePartsList struct {
	MachineNumber    string            `json:"machineNumber"`
	MachineType      string            `json:"machineType"`
	OperatingHours   int               `json:"operatingHours"`
	RequiredParts    []PartRequirement `json:"requiredParts"`
	RecommendedParts []PartRequirement `json:"recommendedParts"`
}

// PartRequirement annotates a part with maintenance scheduling data.
type PartRequirement struct {
	Part                     MaintenancePart `json:"part"`
	RecommendedQuantity      int             `json:"recommendedQuantity"`
	MaintenanceIntervalHours int             `json:"maintenanceIntervalHours"`
	IsOverdue                bool            `json:"isOverdue"`
	LastReplacementYear      *int            `json:"lastReplacementYear"`
}

// Credentials is an authenticated session.
type Credentials struct {
	Username     string `json:"username" toml:"username"`
	AccessToken  string `json:"accessToken" toml:"access_token"`
	RefreshToken string `json:"refreshToken" toml:"refresh_token"`
	ExpiresAt    string `json:"expiresAt" toml:"expires_at"`
}

// Valid reports whether the credentials carry an access token.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.AccessToken) != ""
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is an account managed from the admin console.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	Role      string `json:"role"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
}

// UserInput creates or updates a user. Password is only sent when set.
type UserInput struct {
	Username string `json:"username"`
	FullName string `json:"fullName,omitempty"`
	Role     string `json:"role"`
	IsActive bool   `json:"isActive"`
	Password string `json:"password,omitempty"`
}

// AuditSummary counts live and soft-deleted records.
type AuditSummary struct {
	TotalMachines   int    `json:"totalMachines"`
	DeletedMachines int    `json:"deletedMachines"`
	TotalParts      int    `json:"totalParts"`
	DeletedParts    int    `json:"deletedParts"`
	LowStockParts   int    `json:"lowStockParts"`
	LastBackupAt    string `json:"lastBackupAt"`
}

// ResourceType names a restorable resource in admin paths.
type ResourceType string

const (
	ResourceMachine ResourceType = "machine"
	ResourcePart    ResourceType = "part"
)

// DeletedItem is a soft-deleted record in the trash.
type DeletedItem struct {
	ID        int64        `json:"id"`
	Type      ResourceType `json:"type"`
	Label     string       `json:"label"`
	DeletedAt string       `json:"deletedAt"`
	DeletedBy string       `json:"deletedBy"`
}

// Backup is a database backup known to the backend.
type Backup struct {
	FileName  string `json:"fileName"`
	CreatedAt string `json:"createdAt"`
	SizeBytes int64  `json:"sizeBytes"`
}

// CleanupResult reports what a maintenance cleanup removed.
type CleanupResult struct {
	RemovedMachines int `json:"removedMachines"`
	RemovedParts    int `json:"removedParts"`
	RemovedBackups  int `json:"removedBackups"`
}

type idResponse struct {
	ID int64 `json:"id"`
}
