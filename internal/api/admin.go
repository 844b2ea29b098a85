package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Export formats accepted by /admin/export/{format}.
const (
	ExportJSON = "json"
	ExportCSV  = "csv"
	ExportXLSX = "xlsx"
)

// AdminService exposes the admin console endpoints. Every call carries the
// configured X-API-Key in addition to the bearer token.
type AdminService struct {
	c *Client
}

// Admin returns the admin service.
func (c *Client) Admin() *AdminService { return &AdminService{c: c} }

// AuditSummary returns live and deleted record counts.
func (s *AdminService) AuditSummary(ctx context.Context) (*AuditSummary, error) {
	if s == nil || s.c == nil {
		return nil, ErrNilClient
	}
	var payload AuditSummary
	if err := s.c.SendAdmin(ctx, http.MethodGet, "/admin/audit/summary", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// DeletedMachines lists soft-deleted machines.
func (s *AdminService) DeletedMachines(ctx context.Context) ([]DeletedItem, error) {
	return s.deleted(ctx, "/admin/audit/machines")
}

// DeletedParts lists soft-deleted parts.
func (s *AdminService) DeletedParts(ctx context.Context) ([]DeletedItem, error) {
	return s.deleted(ctx, "/admin/audit/parts")
}

func (s *AdminService) deleted(ctx context.Context, path string) ([]DeletedItem, error) {
	if s == nil || s.c == nil {
		return nil, ErrNilClient
	}
	var payload []DeletedItem
	if err := s.c.SendAdmin(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Restore brings a soft-deleted record back.
func (s *AdminService) Restore(ctx context.Context, kind ResourceType, id int64) error {
	if s == nil || s.c == nil {
		return ErrNilClient
	}
	path := fmt.Sprintf("/admin/restore/%s/%d", url.PathEscape(string(kind)), id)
	return s.c.SendAdmin(ctx, http.MethodPost, path, nil, nil)
}

// DeletePermanently purges a soft-deleted record.
func (s *AdminService) DeletePermanently(ctx context.Context, kind ResourceType, id int64) error {
	if s == nil || s.c == nil {
		return ErrNilClient
	}
	path := fmt.Sprintf("/admin/%s/%d/permanent", url.PathEscape(string(kind)), id)
	return s.c.SendAdmin(ctx, http.MethodDelete, path, nil, nil)
}

// Export downloads a full data export in the given format.
func (s *AdminService) Export(ctx context.Context, format string) ([]byte, error) {
	if s == nil || s.c == nil {
		return nil, ErrNilClient
	}
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case ExportJSON, ExportCSV, ExportXLSX:
	default:
		return nil, &ValidationError{Errors: []string{fmt.Sprintf("format: unsupported %q", format)}}
	}
	var raw []byte
	if err := s.c.SendAdmin(ctx, http.MethodGet, "/admin/export/"+format, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Backups lists database backups.
func (s *AdminService) Backups(ctx context.Context) ([]Backup, error) {
	if s == nil || s.c == nil {
		return nil, ErrNilClient
	}
	var payload []Backup
	if err := s.c.SendAdmin(ctx, http.MethodGet, "/admin/maintenance/backups", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// CreateBackup asks the backend to write a new backup.
func (s *AdminService) CreateBackup(ctx context.Context) (*Backup, error) {
	if s == nil || s.c == nil {
		return nil, ErrNilClient
	}
	var payload Backup
	if err := s.c.SendAdmin(ctx, http.MethodPost, "/admin/maintenance/backup", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Cleanup purges old soft-deleted records and backups.
func (s *AdminService) Cleanup(ctx context.Context) (*CleanupResult, error) {
	if s == nil || s.c == nil {
		return nil, ErrNilClient
	}
	var payload CleanupResult
	if err := s.c.SendAdmin(ctx, http.MethodPost, "/admin/maintenance/cleanup", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
