package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/config"
	"github.com/five82/toolroom/internal/data"
	"github.com/five82/toolroom/internal/logger"
	"github.com/five82/toolroom/internal/magazine"
	"github.com/five82/toolroom/internal/prefs"
	"github.com/five82/toolroom/internal/state"
	"github.com/five82/toolroom/internal/workflow"
)

// View represents the current active view.
type View int

const (
	ViewLogin View = iota
	ViewMachines
	ViewMachine
	ViewParts
	ViewWizard
	ViewAdmin
	ViewLogs
)

func (v View) String() string {
	switch v {
	case ViewLogin:
		return "Sign in"
	case ViewMachines, ViewMachine:
		return "Machines"
	case ViewParts:
		return "Parts"
	case ViewWizard:
		return "Maintenance"
	case ViewAdmin:
		return "Admin"
	case ViewLogs:
		return "Logs"
	}
	return "?"
}

// topViews are cycled with tab.
var topViews = []View{ViewMachines, ViewParts, ViewAdmin, ViewLogs}

// Session reports the signed-in user.
type Session interface {
	Authenticated() bool
	Session() api.Credentials
}

// Options configures the UI.
type Options struct {
	Context        context.Context
	Layer          *data.Layer
	Session        Session
	Config         *config.Config
	Prefs          prefs.Prefs
	PrefsPath      string // empty disables saving preferences
	Thresholds     workflow.Thresholds
	Extractor      magazine.Extractor
	ExportDir      string
	SessionExpired <-chan struct{}
	Logger         *zap.Logger
	Tick           time.Duration
}

type flash struct {
	text  string
	isErr bool
	at    time.Time
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx        context.Context
	layer      *data.Layer
	store      *state.Store
	session    Session
	config     *config.Config
	prefs      prefs.Prefs
	prefsPath  string
	thresholds workflow.Thresholds
	extractor  magazine.Extractor
	exportDir  string
	expired    <-chan struct{}
	changes    <-chan state.Key
	stop       func()
	log        *zap.Logger
	tick       time.Duration
	now        func() time.Time

	keys  keyMap
	theme Theme

	view     View
	width    int
	height   int
	ready    bool
	showHelp bool
	modal    Modal
	flash    flash
	health   state.Health

	login    loginState
	machines machinesState
	detail   detailState
	parts    partsState
	wizard   wizardState
	admin    adminState
	logs     logState
}

// New creates the root model. It subscribes to the layer's cache; Run
// releases the subscription when the program exits.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultUIInterval
	}
	th := opts.Thresholds
	if th.IntervalHours == 0 {
		th = workflow.DefaultThresholds
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = magazine.StubExtractor{}
	}
	exportDir := opts.ExportDir
	if exportDir == "" {
		exportDir = "."
	}
	p := opts.Prefs
	if p.Theme == "" {
		p = prefs.Defaults()
	}

	m := Model{
		ctx:        ctx,
		layer:      opts.Layer,
		session:    opts.Session,
		config:     opts.Config,
		prefs:      p,
		prefsPath:  opts.PrefsPath,
		thresholds: th,
		extractor:  extractor,
		exportDir:  exportDir,
		expired:    opts.SessionExpired,
		stop:       func() {},
		log:        logger.OrNop(opts.Logger).Named("ui"),
		tick:       tick,
		now:        time.Now,
		keys:       DefaultKeyMap(),
		theme:      GetTheme(p.Theme),
		view:       ViewMachines,
	}
	if m.layer != nil {
		m.store = m.layer.Store()
		m.changes, m.stop = m.store.Subscribe()
	}
	m.login = newLoginState(p.LastUser)
	m.machines = newMachinesState()
	m.parts = newPartsState()
	m.logs = newLogState()
	m.applyTheme()
	if !m.authenticated() {
		m.view = ViewLogin
	}
	return m
}

func (m Model) authenticated() bool {
	return m.session == nil || m.session.Authenticated()
}

func (m Model) username() string {
	if m.session == nil {
		return ""
	}
	return m.session.Session().Username
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(m.tick),
		waitForChange(m.changes),
		waitForExpiry(m.expired),
		m.enterView(m.view),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case storeChangedMsg:
		return m.handleStoreChange(msg)

	case sessionExpiredMsg:
		m.toLogin("Session expired. Sign in again.")
		return m, waitForExpiry(m.expired)

	case loginMsg:
		return m.handleLogin(msg)

	case mutationMsg:
		return m.handleMutation(msg)

	case machinesMsg:
		m.applyMachines(msg)
		return m, nil

	case machineMsg:
		m.applyMachine(msg)
		return m, nil

	case partsListMsg:
		m.applyPartsList(msg)
		return m, nil

	case partsMsg:
		m.applyParts(msg)
		return m, nil

	case wizardReadyMsg:
		return m.handleWizardReady(msg)

	case maintenanceMsg:
		return m.handleMaintenance(msg)

	case wizardExitMsg:
		return m.handleWizardExit(msg)

	case adminMsg:
		m.applyAdmin(msg)
		return m, nil

	case exportMsg:
		m.handleExport(msg)
		return m, nil

	case logsMsg:
		m.applyLogs(msg)
		return m, nil
	}

	// Cursor blinks and other component messages.
	if m.modal != nil {
		var cmd tea.Cmd
		m.modal, cmd, _ = m.modal.Update(msg, m.keys)
		return m, cmd
	}
	if m.view == ViewLogin {
		return m.updateLoginInputs(msg)
	}
	if m.view == ViewLogs && m.logs.searching {
		var cmd tea.Cmd
		m.logs.search, cmd = m.logs.search.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	if m.view == ViewLogin {
		return m.renderLogin()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	return b.String()
}

func (m Model) renderContent() string {
	switch m.view {
	case ViewMachines:
		return m.renderMachines()
	case ViewMachine:
		return m.renderMachineDetail()
	case ViewParts:
		return m.renderParts()
	case ViewWizard:
		return m.renderWizard()
	case ViewAdmin:
		return m.renderAdmin()
	case ViewLogs:
		return m.renderLogs()
	}
	return ""
}

// contentHeight is the space below the header and command bar.
func (m Model) contentHeight() int {
	return maxInt(m.height-2, 3)
}

func (m *Model) resize() {
	h := m.contentHeight()
	m.machines.table.SetWidth(m.width - 2)
	m.machines.table.SetHeight(maxInt(h-2, 1))
	m.machines.table.SetColumns(machineColumns(m.width - 2))
	m.parts.table.SetWidth(m.width - 2)
	m.parts.table.SetHeight(maxInt(h-2, 1))
	m.parts.table.SetColumns(partColumns(m.width - 2))
	m.detail.viewport.Width = maxInt(m.width-4, 10)
	m.detail.viewport.Height = maxInt(h-2, 1)
	m.logs.viewport.Width = maxInt(m.width-4, 10)
	m.logs.viewport.Height = maxInt(h-3, 1)
	m.refreshDetailViewport()
	m.refreshLogViewport()
}

// applyTheme restyles the components that cache styles.
func (m *Model) applyTheme() {
	m.machines.table.SetStyles(tableStyles(m.theme))
	m.parts.table.SetStyles(tableStyles(m.theme))
	m.logs.viewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))
	m.detail.viewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = flash{text: text, isErr: isErr, at: m.now()}
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.log.Warn("save preferences failed", logger.ErrorF(err))
		m.setFlash("Could not save preferences", true)
	}
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.modal != nil {
		modal, cmd, closed := m.modal.Update(msg, m.keys)
		if closed {
			m.modal = nil
		} else {
			m.modal = modal
		}
		return m, cmd
	}
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.view == ViewLogin {
		return m.handleLoginKey(msg)
	}
	if m.view == ViewLogs && m.logs.searching {
		return m.handleLogSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.applyTheme()
		m.refreshDetailViewport()
		m.refreshLogViewport()
		m.savePrefs()
		return m, nil
	case key.Matches(msg, m.keys.Logout):
		if m.layer != nil {
			m.layer.Logout()
		}
		m.toLogin("Signed out.")
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refetchView()
	}

	// The wizard owns its keys until it exits.
	if m.view == ViewWizard {
		return m.handleWizardKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.ViewMachines):
		return m.switchView(ViewMachines)
	case key.Matches(msg, m.keys.ViewParts):
		return m.switchView(ViewParts)
	case key.Matches(msg, m.keys.ViewAdmin):
		return m.switchView(ViewAdmin)
	case key.Matches(msg, m.keys.ViewLogs):
		return m.switchView(ViewLogs)
	case key.Matches(msg, m.keys.Tab):
		return m.switchView(cycleView(m.view, 1))
	case key.Matches(msg, m.keys.ShiftTab):
		return m.switchView(cycleView(m.view, -1))
	}

	switch m.view {
	case ViewMachines:
		return m.handleMachinesKey(msg)
	case ViewMachine:
		return m.handleDetailKey(msg)
	case ViewParts:
		return m.handlePartsKey(msg)
	case ViewAdmin:
		return m.handleAdminKey(msg)
	case ViewLogs:
		return m.handleLogsKey(msg)
	}
	return m, nil
}

func cycleView(current View, dir int) View {
	if current == ViewMachine {
		current = ViewMachines
	}
	idx := 0
	for i, v := range topViews {
		if v == current {
			idx = i
		}
	}
	return topViews[(idx+dir+len(topViews))%len(topViews)]
}

func (m Model) switchView(v View) (tea.Model, tea.Cmd) {
	m.view = v
	return m, m.enterView(v)
}

// enterView loads what v shows. Fresh cache entries are served without a
// request.
func (m Model) enterView(v View) tea.Cmd {
	if m.layer == nil {
		return nil
	}
	switch v {
	case ViewLogin:
		return m.login.focusCmd()
	case ViewMachines:
		return tea.Batch(m.loadMachines(false), m.loadParts(false))
	case ViewMachine:
		return tea.Batch(m.loadMachine(false), m.loadPartsList(false))
	case ViewParts:
		return m.loadParts(false)
	case ViewAdmin:
		return m.loadAdmin()
	case ViewLogs:
		return m.loadLogs()
	}
	return nil
}

// refetchView bypasses the cache for the current view.
func (m Model) refetchView() tea.Cmd {
	if m.layer == nil {
		return nil
	}
	switch m.view {
	case ViewMachines:
		return tea.Batch(m.loadMachines(true), m.loadParts(true))
	case ViewMachine:
		return tea.Batch(m.loadMachine(true), m.loadPartsList(true))
	case ViewParts:
		return m.loadParts(true)
	case ViewAdmin:
		m.store.Invalidate(data.AdminKey(), data.UsersKey())
		return m.loadAdmin()
	case ViewLogs:
		return m.loadLogs()
	}
	return nil
}

// observed lists the cache keys the current view renders together with the
// command that reloads each of them.
func (m Model) observed() []observation {
	switch m.view {
	case ViewMachines:
		return []observation{
			{data.MachinesKey(), m.loadMachines(false)},
			{data.PartsKey(), m.loadParts(false)},
		}
	case ViewMachine:
		return []observation{
			{data.MachineKey(idString(m.detail.id)), m.loadMachine(false)},
			{data.PartsListKey(m.detail.number), m.loadPartsList(false)},
		}
	case ViewParts:
		return []observation{{data.PartsKey(), m.loadParts(false)}}
	case ViewAdmin:
		return []observation{
			{data.AuditKey(), m.loadAdmin()},
			{data.DeletedKey(api.ResourceMachine), m.loadAdmin()},
			{data.DeletedKey(api.ResourcePart), m.loadAdmin()},
			{data.BackupsKey(), m.loadAdmin()},
			{data.UsersKey(), m.loadAdmin()},
		}
	}
	return nil
}

type observation struct {
	key  state.Key
	load tea.Cmd
}

// handleStoreChange mirrors cache writes into the view and refetches
// observed keys a mutation marked stale. Failed refetches are left for the
// poller or an explicit refetch so an offline backend is not hammered.
func (m Model) handleStoreChange(msg storeChangedMsg) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{waitForChange(m.changes)}
	if msg.key == nil {
		if !m.authenticated() && m.view != ViewLogin {
			m.toLogin("")
		}
		m.syncFromCache()
		return m, tea.Batch(cmds...)
	}
	if load := m.reloadFor(msg.key); load != nil {
		cmds = append(cmds, load)
	}
	m.syncFromCache()
	return m, tea.Batch(cmds...)
}

// reloadFor returns the load command for k when the current view renders
// it and a mutation marked it invalidated.
func (m Model) reloadFor(k state.Key) tea.Cmd {
	for _, obs := range m.observed() {
		if !obs.key.Equal(k) {
			continue
		}
		if entry, ok := m.store.Get(obs.key); ok && entry.Invalidated && entry.Err == nil {
			return obs.load
		}
		return nil
	}
	return nil
}

// syncFromCache copies cached data for every view so switching views never
// shows an empty screen while a fetch is pending.
func (m *Model) syncFromCache() {
	if m.store == nil {
		return
	}
	if list, ok := cached[[]api.Machine](m.store, data.MachinesKey()); ok {
		m.machines.all = list
	} else {
		m.machines.all = nil
	}
	m.refreshMachineTable()
	if list, ok := cached[[]api.MaintenancePart](m.store, data.PartsKey()); ok {
		m.parts.all = list
	} else {
		m.parts.all = nil
	}
	m.refreshPartsTable()
	if m.detail.id > 0 {
		if d, ok := cached[*api.MachineDetail](m.store, data.MachineKey(idString(m.detail.id))); ok {
			m.detail.machine = d
		}
		if l, ok := cached[*api.MaintenancePartsList](m.store, data.PartsListKey(m.detail.number)); ok {
			m.detail.list = l
		}
		m.refreshDetailViewport()
	}
	m.syncAdminFromCache()
}

func cached[T any](s *state.Store, k state.Key) (T, bool) {
	var zero T
	entry, ok := s.Get(k)
	if !ok {
		return zero, false
	}
	v, ok := entry.Data.(T)
	return v, ok
}

func (m *Model) toLogin(notice string) {
	m.view = ViewLogin
	m.modal = nil
	m.wizard = wizardState{}
	m.detail.id, m.detail.number = 0, ""
	m.login = newLoginState(m.prefs.LastUser)
	m.login.notice = notice
}

func (m Model) handleMutation(msg mutationMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.log.Warn("change failed", logger.ErrorF(msg.err))
		m.setFlash(api.UserMessage(msg.err), true)
		m.syncFromCache()
		return m, nil
	}
	m.setFlash(msg.done, false)
	var cmd tea.Cmd
	if msg.after != nil {
		cmd = msg.after(&m)
	}
	m.syncFromCache()
	return m, cmd
}

// handleTick refreshes the header and followed logs.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{tickCmd(m.tick)}
	if m.store != nil {
		m.health = m.store.Health()
	}
	if m.flash.text != "" && m.now().Sub(m.flash.at) > FlashDuration {
		m.flash = flash{}
	}
	if m.view == ViewLogs && m.logs.follow {
		cmds = append(cmds, m.loadLogs())
	}
	return m, tea.Batch(cmds...)
}

// Messages

type tickMsg time.Time

type storeChangedMsg struct{ key state.Key }

type sessionExpiredMsg struct{}

// mutationMsg reports a finished write. done is the flash text on success.
type mutationMsg struct {
	done string
	err  error
	// after runs on success, e.g. to leave a view whose subject was deleted.
	after func(*Model) tea.Cmd
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForChange(ch <-chan state.Key) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		k, ok := <-ch
		if !ok {
			return nil
		}
		return storeChangedMsg{key: k}
	}
}

func waitForExpiry(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return sessionExpiredMsg{}
	}
}

// mutate runs fn off the update loop and reports the outcome.
func (m Model) mutate(done string, fn func(ctx context.Context) error, after func(*Model) tea.Cmd) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
		defer cancel()
		return mutationMsg{done: done, err: fn(ctx), after: after}
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	defer m.stop()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	return err
}
