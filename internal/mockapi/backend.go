package mockapi

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/five82/toolroom/internal/api"
)

const timeLayout = "2006-01-02T15:04:05"

// Replacement intervals in operating hours, per part category.
var categoryInterval = map[api.PartCategory]int{
	api.CategoryWearPart:       500,
	api.CategoryConsumablePart: 250,
	api.CategoryToolPart:       1000,
	api.CategorySparePart:      2000,
}

type httpError struct {
	status  int
	message string
	fields  map[string][]string
}

func (e *httpError) Error() string { return e.message }

func notFound(format string, args ...any) error {
	return &httpError{status: http.StatusNotFound, message: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) error {
	return &httpError{status: http.StatusConflict, message: fmt.Sprintf(format, args...)}
}

func invalid(fields map[string][]string) error {
	return &httpError{status: http.StatusBadRequest, message: "One or more validation errors occurred.", fields: fields}
}

type machineRow struct {
	api.Machine
	records   []api.MaintenanceRecord
	deletedAt time.Time
}

type partRow struct {
	api.MaintenancePart
	deletedAt time.Time
}

type userRow struct {
	api.User
	password string
}

type session struct {
	username string
	refresh  string
}

// Backend is the in-memory state behind the fake API.
type Backend struct {
	mu sync.Mutex

	machines map[int64]*machineRow
	parts    map[int64]*partRow
	users    map[int64]*userRow
	backups  []api.Backup

	access  map[string]session // access token -> session
	refresh map[string]string  // refresh token -> username

	nextID int64
	now    func() time.Time
}

// NewBackend returns an empty backend with one admin account.
func NewBackend() *Backend {
	b := &Backend{
		machines: make(map[int64]*machineRow),
		parts:    make(map[int64]*partRow),
		users:    make(map[int64]*userRow),
		access:   make(map[string]session),
		refresh:  make(map[string]string),
		now:      time.Now,
	}
	b.AddUser(api.UserInput{Username: "admin", FullName: "Administrator", Role: "Admin", IsActive: true, Password: "admin"})
	return b
}

func (b *Backend) id() int64 {
	b.nextID++
	return b.nextID
}

func (b *Backend) stamp() string { return b.now().UTC().Format(timeLayout) }

// AddUser creates an account and returns its id.
func (b *Backend) AddUser(in api.UserInput) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.id()
	b.users[id] = &userRow{
		User:     api.User{ID: id, Username: in.Username, FullName: in.FullName, Role: in.Role, IsActive: in.IsActive, CreatedAt: b.stamp()},
		password: in.Password,
	}
	return id
}

// ExpireTokens invalidates every access token while keeping refresh
// tokens, as if the access tokens timed out.
func (b *Backend) ExpireTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = make(map[string]session)
}

// RevokeSessions invalidates access and refresh tokens.
func (b *Backend) RevokeSessions() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = make(map[string]session)
	b.refresh = make(map[string]string)
}

func (b *Backend) login(username, password string) (api.Credentials, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if u.Username == username && u.password == password && u.IsActive {
			return b.issue(username), nil
		}
	}
	return api.Credentials{}, &httpError{status: http.StatusUnauthorized, message: "invalid username or password"}
}

func (b *Backend) refreshSession(token string) (api.Credentials, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	username, ok := b.refresh[token]
	if !ok {
		return api.Credentials{}, &httpError{status: http.StatusUnauthorized, message: "refresh token expired"}
	}
	delete(b.refresh, token)
	return b.issue(username), nil
}

func (b *Backend) issue(username string) api.Credentials {
	creds := api.Credentials{
		Username:     username,
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    b.now().Add(time.Hour).UTC().Format(time.RFC3339),
	}
	b.access[creds.AccessToken] = session{username: username, refresh: creds.RefreshToken}
	b.refresh[creds.RefreshToken] = username
	return creds
}

func (b *Backend) authorized(token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.access[token]
	return ok
}

// Machines.

func (b *Backend) listMachines() []api.Machine {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]api.Machine, 0, len(b.machines))
	for _, m := range b.liveMachines() {
		out = append(out, m.Machine)
	}
	return out
}

func (b *Backend) liveMachines() []*machineRow {
	rows := lo.Filter(lo.Values(b.machines), func(m *machineRow, _ int) bool { return m.deletedAt.IsZero() })
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

func (b *Backend) machineByID(id int64) (api.MachineDetail, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.liveMachine(id)
	if err != nil {
		return api.MachineDetail{}, err
	}
	return detail(m), nil
}

func (b *Backend) machineByNumber(number string) (api.MachineDetail, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.liveMachines() {
		if strings.EqualFold(m.Number, number) {
			return detail(m), nil
		}
	}
	return api.MachineDetail{}, notFound("machine %s not found", number)
}

func (b *Backend) liveMachine(id int64) (*machineRow, error) {
	m, ok := b.machines[id]
	if !ok || !m.deletedAt.IsZero() {
		return nil, notFound("machine %d not found", id)
	}
	return m, nil
}

func detail(m *machineRow) api.MachineDetail {
	return api.MachineDetail{Machine: m.Machine, MaintenanceRecords: append([]api.MaintenanceRecord{}, m.records...)}
}

func (b *Backend) createMachine(in api.MachineCreate) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, validationFrom(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.numberTaken(in.Number, 0) {
		return 0, conflict("machine number %s already exists", in.Number)
	}
	id := b.id()
	m := in.Machine(id)
	if m.InstallationDate == "" {
		m.InstallationDate = b.stamp()
	}
	b.machines[id] = &machineRow{Machine: m}
	return id, nil
}

func (b *Backend) numberTaken(number string, except int64) bool {
	return lo.SomeBy(b.liveMachines(), func(m *machineRow) bool {
		return m.ID != except && strings.EqualFold(m.Number, number)
	})
}

func (b *Backend) updateMachine(id int64, u api.MachineUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.liveMachine(id)
	if err != nil {
		return err
	}
	if u.Status != nil && !u.Status.Valid() {
		return invalid(map[string][]string{"Status": {"unknown status"}})
	}
	if u.OperatingHours != nil && *u.OperatingHours < m.OperatingHours {
		return invalid(map[string][]string{"OperatingHours": {"must not decrease"}})
	}
	if u.Number != nil && b.numberTaken(*u.Number, id) {
		return conflict("machine number %s already exists", *u.Number)
	}
	m.Machine = u.ApplyTo(m.Machine)
	return nil
}

func (b *Backend) setOperatingHours(id int64, hours int) error {
	return b.updateMachine(id, api.MachineUpdate{OperatingHours: &hours})
}

func (b *Backend) setMagazine(id int64, props api.MagazineProperties) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.liveMachine(id)
	if err != nil {
		return err
	}
	m.MagazineProperties = props
	return nil
}

func (b *Backend) deleteMachine(id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.liveMachine(id)
	if err != nil {
		return err
	}
	m.deletedAt = b.now()
	return nil
}

func (b *Backend) performMaintenance(id int64, req api.MaintenanceRequest) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.liveMachine(id)
	if err != nil {
		return 0, err
	}
	fields := map[string][]string{}
	if strings.TrimSpace(req.TechnicianID) == "" {
		fields["TechnicianId"] = []string{"required"}
	}
	if strings.TrimSpace(req.MaintenanceType) == "" {
		fields["MaintenanceType"] = []string{"required"}
	}
	for _, rp := range req.ReplacedParts {
		p, ok := b.parts[rp.PartID]
		switch {
		case !ok || !p.deletedAt.IsZero():
			fields["ReplacedParts"] = append(fields["ReplacedParts"], fmt.Sprintf("part %d not found", rp.PartID))
		case rp.Quantity < 1:
			fields["ReplacedParts"] = append(fields["ReplacedParts"], fmt.Sprintf("part %s: quantity must be at least 1", p.PartNumber))
		case rp.Quantity > p.StockQuantity:
			fields["ReplacedParts"] = append(fields["ReplacedParts"], fmt.Sprintf("part %s: only %d in stock", p.PartNumber, p.StockQuantity))
		}
	}
	if len(fields) > 0 {
		return 0, invalid(fields)
	}

	now := b.now()
	record := api.MaintenanceRecord{
		ID:              b.id(),
		TechnicianID:    req.TechnicianID,
		MaintenanceType: req.MaintenanceType,
		PerformedAt:     now.UTC().Format(timeLayout),
		Comments:        req.Comments,
	}
	for _, rp := range req.ReplacedParts {
		p := b.parts[rp.PartID]
		p.StockQuantity -= rp.Quantity
		record.ReplacedParts = append(record.ReplacedParts, api.ReplacedPart{
			PartID:                      p.ID,
			PartNumber:                  p.PartNumber,
			PartName:                    p.Name,
			Quantity:                    rp.Quantity,
			OperatingHoursAtReplacement: m.OperatingHours,
			ReplacementYear:             now.Year(),
		})
	}
	m.records = append(m.records, record)
	m.MaintenanceCount++
	performed := record.PerformedAt
	m.LastMaintenanceDate = &performed
	return record.ID, nil
}

// Parts.

func (b *Backend) listParts() []api.MaintenancePart {
	b.mu.Lock()
	defer b.mu.Unlock()
	return lo.Map(b.liveParts(), func(p *partRow, _ int) api.MaintenancePart { return p.MaintenancePart })
}

func (b *Backend) liveParts() []*partRow {
	rows := lo.Filter(lo.Values(b.parts), func(p *partRow, _ int) bool { return p.deletedAt.IsZero() })
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

func (b *Backend) livePart(id int64) (*partRow, error) {
	p, ok := b.parts[id]
	if !ok || !p.deletedAt.IsZero() {
		return nil, notFound("part %d not found", id)
	}
	return p, nil
}

func (b *Backend) partByID(id int64) (api.MaintenancePart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.livePart(id)
	if err != nil {
		return api.MaintenancePart{}, err
	}
	return p.MaintenancePart, nil
}

func (b *Backend) partByNumber(number string) (api.MaintenancePart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := lo.Find(b.liveParts(), func(p *partRow) bool { return strings.EqualFold(p.PartNumber, number) })
	if !ok {
		return api.MaintenancePart{}, notFound("part %s not found", number)
	}
	return p.MaintenancePart, nil
}

func (b *Backend) createPart(in api.PartInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, validationFrom(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.partNumberTaken(in.PartNumber, 0) {
		return 0, conflict("part number %s already exists", in.PartNumber)
	}
	id := b.id()
	b.parts[id] = &partRow{MaintenancePart: in.Part(id)}
	return id, nil
}

func (b *Backend) partNumberTaken(number string, except int64) bool {
	return lo.SomeBy(b.liveParts(), func(p *partRow) bool {
		return p.ID != except && strings.EqualFold(p.PartNumber, number)
	})
}

func (b *Backend) updatePart(id int64, in api.PartInput) error {
	if err := in.Validate(); err != nil {
		return validationFrom(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.livePart(id)
	if err != nil {
		return err
	}
	if b.partNumberTaken(in.PartNumber, id) {
		return conflict("part number %s already exists", in.PartNumber)
	}
	p.MaintenancePart = in.Part(id)
	return nil
}

func (b *Backend) deletePart(id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.livePart(id)
	if err != nil {
		return err
	}
	p.deletedAt = b.now()
	return nil
}

// partsList derives required and recommended parts for a machine. Wear
// parts are always required; other categories are recommended while in
// stock. A part is overdue once the machine has run a full category
// interval since the part was last replaced.
func (b *Backend) partsList(number string) (api.MaintenancePartsList, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := lo.Find(b.liveMachines(), func(m *machineRow) bool { return strings.EqualFold(m.Number, number) })
	if !ok {
		return api.MaintenancePartsList{}, notFound("machine %s not found", number)
	}

	list := api.MaintenancePartsList{
		MachineNumber:    m.Number,
		MachineType:      m.Type,
		OperatingHours:   m.OperatingHours,
		RequiredParts:    []api.PartRequirement{},
		RecommendedParts: []api.PartRequirement{},
	}
	for _, p := range b.liveParts() {
		interval := categoryInterval[p.Category]
		if interval == 0 {
			interval = categoryInterval[api.CategorySparePart]
		}
		lastHours, lastYear := 0, 0
		for _, rec := range m.records {
			for _, rp := range rec.ReplacedParts {
				if rp.PartID == p.ID {
					lastHours, lastYear = rp.OperatingHoursAtReplacement, rp.ReplacementYear
				}
			}
		}
		req := api.PartRequirement{
			Part:                     p.MaintenancePart,
			RecommendedQuantity:      1,
			MaintenanceIntervalHours: interval,
			IsOverdue:                m.OperatingHours-lastHours >= interval,
		}
		if p.Category == api.CategoryConsumablePart {
			req.RecommendedQuantity = 2
		}
		if lastYear > 0 {
			req.LastReplacementYear = lo.ToPtr(lastYear)
		}
		switch {
		case p.Category == api.CategoryWearPart:
			list.RequiredParts = append(list.RequiredParts, req)
		case p.StockQuantity > 0:
			list.RecommendedParts = append(list.RecommendedParts, req)
		}
	}
	return list, nil
}

// Users.

func (b *Backend) listUsers() []api.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	users := lo.Map(lo.Values(b.users), func(u *userRow, _ int) api.User { return u.User })
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (b *Backend) createUser(in api.UserInput) (int64, error) {
	if strings.TrimSpace(in.Username) == "" || in.Password == "" {
		return 0, invalid(map[string][]string{"Username": {"username and password are required"}})
	}
	b.mu.Lock()
	taken := lo.SomeBy(lo.Values(b.users), func(u *userRow) bool { return u.Username == in.Username })
	b.mu.Unlock()
	if taken {
		return 0, conflict("user %s already exists", in.Username)
	}
	return b.AddUser(in), nil
}

func (b *Backend) updateUser(id int64, in api.UserInput) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[id]
	if !ok {
		return notFound("user %d not found", id)
	}
	u.Username, u.FullName, u.Role, u.IsActive = in.Username, in.FullName, in.Role, in.IsActive
	if in.Password != "" {
		u.password = in.Password
	}
	return nil
}

func (b *Backend) deleteUser(id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.users[id]; !ok {
		return notFound("user %d not found", id)
	}
	delete(b.users, id)
	return nil
}

// Admin.

func (b *Backend) audit() api.AuditSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := api.AuditSummary{}
	for _, m := range b.machines {
		if m.deletedAt.IsZero() {
			s.TotalMachines++
		} else {
			s.DeletedMachines++
		}
	}
	for _, p := range b.parts {
		switch {
		case !p.deletedAt.IsZero():
			s.DeletedParts++
		case p.StockQuantity < 3:
			s.TotalParts++
			s.LowStockParts++
		default:
			s.TotalParts++
		}
	}
	if n := len(b.backups); n > 0 {
		s.LastBackupAt = b.backups[n-1].CreatedAt
	}
	return s
}

func (b *Backend) trash(kind api.ResourceType) []api.DeletedItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []api.DeletedItem{}
	switch kind {
	case api.ResourceMachine:
		for _, m := range b.machines {
			if !m.deletedAt.IsZero() {
				out = append(out, api.DeletedItem{ID: m.ID, Type: kind, Label: m.Number, DeletedAt: m.deletedAt.UTC().Format(timeLayout), DeletedBy: "admin"})
			}
		}
	case api.ResourcePart:
		for _, p := range b.parts {
			if !p.deletedAt.IsZero() {
				out = append(out, api.DeletedItem{ID: p.ID, Type: kind, Label: p.PartNumber, DeletedAt: p.deletedAt.UTC().Format(timeLayout), DeletedBy: "admin"})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Backend) restore(kind api.ResourceType, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch kind {
	case api.ResourceMachine:
		m, ok := b.machines[id]
		if !ok || m.deletedAt.IsZero() {
			return notFound("deleted machine %d not found", id)
		}
		if b.numberTaken(m.Number, id) {
			return conflict("machine number %s is in use", m.Number)
		}
		m.deletedAt = time.Time{}
	case api.ResourcePart:
		p, ok := b.parts[id]
		if !ok || p.deletedAt.IsZero() {
			return notFound("deleted part %d not found", id)
		}
		p.deletedAt = time.Time{}
	default:
		return notFound("unknown resource %s", kind)
	}
	return nil
}

func (b *Backend) purge(kind api.ResourceType, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch kind {
	case api.ResourceMachine:
		if m, ok := b.machines[id]; ok && !m.deletedAt.IsZero() {
			delete(b.machines, id)
			return nil
		}
		return notFound("deleted machine %d not found", id)
	case api.ResourcePart:
		if p, ok := b.parts[id]; ok && !p.deletedAt.IsZero() {
			delete(b.parts, id)
			return nil
		}
		return notFound("deleted part %d not found", id)
	}
	return notFound("unknown resource %s", kind)
}

func (b *Backend) createBackup() api.Backup {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now().UTC()
	backup := api.Backup{
		FileName:  fmt.Sprintf("toolroom_%s_%d.db", now.Format("20060102_150405"), len(b.backups)+1),
		CreatedAt: now.Format(timeLayout),
		SizeBytes: int64(4096 * (len(b.machines) + len(b.parts) + 1)),
	}
	b.backups = append(b.backups, backup)
	return backup
}

func (b *Backend) listBackups() []api.Backup {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]api.Backup{}, b.backups...)
}

// keepBackups is how many backups survive a cleanup.
const keepBackups = 5

func (b *Backend) cleanup() api.CleanupResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	var res api.CleanupResult
	for id, m := range b.machines {
		if !m.deletedAt.IsZero() {
			delete(b.machines, id)
			res.RemovedMachines++
		}
	}
	for id, p := range b.parts {
		if !p.deletedAt.IsZero() {
			delete(b.parts, id)
			res.RemovedParts++
		}
	}
	if n := len(b.backups); n > keepBackups {
		res.RemovedBackups = n - keepBackups
		b.backups = append([]api.Backup{}, b.backups[n-keepBackups:]...)
	}
	return res
}

func validationFrom(err error) error {
	vErr, ok := err.(*api.ValidationError)
	if !ok {
		return err
	}
	fields := map[string][]string{}
	for _, msg := range vErr.Errors {
		field, text, found := strings.Cut(msg, ": ")
		if !found || field == "" {
			field, text = "General", msg
		}
		key := strings.ToUpper(field[:1]) + field[1:]
		fields[key] = append(fields[key], text)
	}
	return invalid(fields)
}
