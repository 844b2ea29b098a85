// Package mockapi is an in-process fake of the maintenance backend. It
// serves the same REST surface under /api and backs demo mode and the
// end-to-end tests.
package mockapi

import (
	"bytes"
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/export"
	"github.com/five82/toolroom/internal/logger"
	"github.com/five82/toolroom/internal/workflow"
)

// DefaultAPIKey is the admin key accepted when Options.APIKey is empty.
const DefaultAPIKey = "demo-admin-key"

// Options configure a Server.
type Options struct {
	APIKey      string
	RequireAuth bool          // reject requests without a valid bearer token
	Latency     time.Duration // added to every response
	Logger      *zap.Logger
}

// Server routes HTTP requests to a Backend.
type Server struct {
	backend *Backend
	opts    Options
	log     *zap.Logger
	router  chi.Router

	mu       sync.Mutex
	failures []int
	hits     map[string]int
}

// NewServer returns a Server over backend.
func NewServer(backend *Backend, opts Options) *Server {
	if opts.APIKey == "" {
		opts.APIKey = DefaultAPIKey
	}
	s := &Server{
		backend: backend,
		opts:    opts,
		log:     logger.OrNop(opts.Logger).Named("mockapi"),
		hits:    make(map[string]int),
	}
	s.router = s.routes()
	return s
}

// Backend returns the state behind the server.
func (s *Server) Backend() *Backend { return s.backend }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// FailNext makes the next len(statuses) non-auth requests fail with the
// given statuses, in order.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// Hits returns how many requests reached "METHOD /route/pattern".
func (s *Server) Hits(method, pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+pattern]
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(s.injectFailures)
			r.Use(s.requireToken)

			r.Get("/Machines", s.handleListMachines)
			r.Post("/Machines", s.handleCreateMachine)
			r.Get("/Machines/id/{id}", s.handleMachineByID)
			r.Get("/Machines/{key}", s.handleMachineByNumber)
			r.Put("/Machines/{key}", s.handleUpdateMachine)
			r.Delete("/Machines/{key}", s.handleDeleteMachine)
			r.Put("/Machines/{key}/operatinghours", s.handleOperatingHours)
			r.Put("/Machines/{key}/magazine-properties", s.handleMagazine)
			r.Post("/Machines/{key}/maintenance", s.handleMaintenance)

			r.Get("/MaintenanceParts", s.handleListParts)
			r.Post("/MaintenanceParts", s.handleCreatePart)
			r.Get("/MaintenanceParts/id/{id}", s.handlePartByID)
			r.Get("/MaintenanceParts/partnumber/{number}", s.handlePartByNumber)
			r.Put("/MaintenanceParts/{key}", s.handleUpdatePart)
			r.Delete("/MaintenanceParts/{key}", s.handleDeletePart)

			r.Get("/MaintenancePartsList/{number}", s.handlePartsList)

			r.Get("/users", s.handleListUsers)
			r.Post("/users", s.handleCreateUser)
			r.Put("/users/{id}", s.handleUpdateUser)
			r.Delete("/users/{id}", s.handleDeleteUser)

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireAPIKey)
				r.Get("/audit/summary", s.handleAudit)
				r.Get("/audit/machines", s.handleTrash(api.ResourceMachine))
				r.Get("/audit/parts", s.handleTrash(api.ResourcePart))
				r.Post("/restore/{kind}/{id}", s.handleRestore)
				r.Delete("/{kind}/{id}/permanent", s.handlePurge)
				r.Get("/export/{format}", s.handleExport)
				r.Get("/maintenance/backups", s.handleBackups)
				r.Post("/maintenance/backup", s.handleCreateBackup)
				r.Post("/maintenance/cleanup", s.handleCleanup)
			})
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if s.opts.Latency > 0 {
			time.Sleep(s.opts.Latency)
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			s.mu.Lock()
			s.hits[r.Method+" "+rctx.RoutePattern()]++
			s.mu.Unlock()
		}
		s.log.Debug("request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status := 0
		if len(s.failures) > 0 {
			status, s.failures = s.failures[0], s.failures[1:]
		}
		s.mu.Unlock()
		if status != 0 {
			s.writeError(w, r, &httpError{status: status, message: "injected failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.RequireAuth {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || !s.backend.authorized(token) {
				s.writeError(w, r, &httpError{status: http.StatusUnauthorized, message: "token expired"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != s.opts.APIKey {
			s.writeError(w, r, &httpError{status: http.StatusForbidden, message: "invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Message string              `json:"message,omitempty"`
	Title   string              `json:"title,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var hErr *httpError
	if !errors.As(err, &hErr) {
		hErr = &httpError{status: http.StatusInternalServerError, message: err.Error()}
	}
	body := errorResponse{Message: hErr.message}
	if len(hErr.fields) > 0 {
		body = errorResponse{Title: hErr.message, Errors: hErr.fields}
	}
	render.Status(r, hErr.status)
	render.JSON(w, r, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		s.writeError(w, r, &httpError{status: http.StatusBadRequest, message: "malformed JSON body"})
		return false
	}
	return true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, notFound("%s %q not found", name, chi.URLParam(r, name)))
		return 0, false
	}
	return id, true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	creds, err := s.backend.login(req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, creds)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	creds, err := s.backend.refreshSession(req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, creds)
}

func (s *Server) handleListMachines(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.backend.listMachines())
}

func (s *Server) handleMachineByID(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	d, err := s.backend.machineByID(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, d)
}

func (s *Server) handleMachineByNumber(w http.ResponseWriter, r *http.Request) {
	d, err := s.backend.machineByNumber(chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, d)
}

func (s *Server) handleCreateMachine(w http.ResponseWriter, r *http.Request) {
	var in api.MachineCreate
	if !s.decode(w, r, &in) {
		return
	}
	id, err := s.backend.createMachine(in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleUpdateMachine(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "key")
	if !ok {
		return
	}
	var in api.MachineUpdate
	if !s.decode(w, r, &in) {
		return
	}
	if err := s.backend.updateMachine(id, in); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteMachine(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "key")
	if !ok {
		return
	}
	if err := s.backend.deleteMachine(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOperatingHours(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "key")
	if !ok {
		return
	}
	var in struct {
		OperatingHours int `json:"operatingHours"`
	}
	if !s.decode(w, r, &in) {
		return
	}
	if err := s.backend.setOperatingHours(id, in.OperatingHours); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMagazine(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "key")
	if !ok {
		return
	}
	var props api.MagazineProperties
	if !s.decode(w, r, &props) {
		return
	}
	if err := s.backend.setMagazine(id, props); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, api.MagazineUpdateResult{Success: true})
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "key")
	if !ok {
		return
	}
	var req api.MaintenanceRequest
	if !s.decode(w, r, &req) {
		return
	}
	recordID, err := s.backend.performMaintenance(id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, map[string]int64{"id": recordID})
}

func (s *Server) handleListParts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.backend.listParts())
}

func (s *Server) handlePartByID(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := s.backend.partByID(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, p)
}

func (s *Server) handlePartByNumber(w http.ResponseWriter, r *http.Request) {
	p, err := s.backend.partByNumber(chi.URLParam(r, "number"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, p)
}

func (s *Server) handleCreatePart(w http.ResponseWriter, r *http.Request) {
	var in api.PartInput
	if !s.decode(w, r, &in) {
		return
	}
	id, err := s.backend.createPart(in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleUpdatePart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "key")
	if !ok {
		return
	}
	var in api.PartInput
	if !s.decode(w, r, &in) {
		return
	}
	if err := s.backend.updatePart(id, in); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeletePart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "key")
	if !ok {
		return
	}
	if err := s.backend.deletePart(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePartsList(w http.ResponseWriter, r *http.Request) {
	list, err := s.backend.partsList(chi.URLParam(r, "number"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, list)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.backend.listUsers())
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in api.UserInput
	if !s.decode(w, r, &in) {
		return
	}
	id, err := s.backend.createUser(in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var in api.UserInput
	if !s.decode(w, r, &in) {
		return
	}
	if err := s.backend.updateUser(id, in); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.backend.deleteUser(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.backend.audit())
}

func (s *Server) handleTrash(kind api.ResourceType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, r, http.StatusOK, s.backend.trash(kind))
	}
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.backend.restore(api.ResourceType(chi.URLParam(r, "kind")), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.backend.purge(api.ResourceType(chi.URLParam(r, "kind")), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	machines, parts := s.backend.listMachines(), s.backend.listParts()
	switch chi.URLParam(r, "format") {
	case api.ExportJSON:
		s.writeJSON(w, r, http.StatusOK, map[string]any{"machines": machines, "parts": parts})
	case api.ExportCSV:
		var buf bytes.Buffer
		cw := csv.NewWriter(&buf)
		_ = cw.Write([]string{"kind", "id", "number", "name", "quantity"})
		for _, m := range machines {
			_ = cw.Write([]string{"machine", strconv.FormatInt(m.ID, 10), m.Number, m.Type, strconv.Itoa(m.OperatingHours)})
		}
		for _, p := range parts {
			_ = cw.Write([]string{"part", strconv.FormatInt(p.ID, 10), p.PartNumber, p.Name, strconv.Itoa(p.StockQuantity)})
		}
		cw.Flush()
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write(buf.Bytes())
	case api.ExportXLSX:
		var buf bytes.Buffer
		if err := export.Write(&buf, export.Workbook{Machines: machines, Parts: parts, Thresholds: workflow.DefaultThresholds}); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		_, _ = w.Write(buf.Bytes())
	default:
		s.writeError(w, r, invalid(map[string][]string{"Format": {"unsupported export format"}}))
	}
}

func (s *Server) handleBackups(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.backend.listBackups())
}

func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusCreated, s.backend.createBackup())
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.backend.cleanup())
}
