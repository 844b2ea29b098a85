package api

import (
	"context"
	"net/http"
	"net/url"
)

// PartService exposes the /MaintenanceParts resource.
type PartService struct {
	c *Client
}

// Parts returns the maintenance part service.
func (c *Client) Parts() *PartService { return &PartService{c: c} }

// List returns all maintenance parts.
func (s *PartService) List(ctx context.Context) ([]MaintenancePart, error) {
	if s == nil || s.c == nil {
		return nil, ErrNilClient
	}
	var payload []MaintenancePart
	if err := s.c.Send(ctx, http.MethodGet, "/MaintenanceParts", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ByID returns one part.
func (s *PartService) ByID(ctx context.Context, id int64) (*MaintenancePart, error) {
	if s == nil || s.c == nil {
		return nil, ErrNilClient
	}
	var payload MaintenancePart
	if err := s.c.Send(ctx, http.MethodGet, "/MaintenanceParts/id/"+idPath(id), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ByPartNumber looks a part up by its part number.
func (s *PartService) ByPartNumber(ctx context.Context, partNumber string) (*MaintenancePart, error) {
	if s == nil || s.c == nil {
		return nil, ErrNilClient
	}
	var payload MaintenancePart
	if err := s.c.Send(ctx, http.MethodGet, "/MaintenanceParts/partnumber/"+url.PathEscape(partNumber), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Create adds a part and returns its new id.
func (s *PartService) Create(ctx context.Context, in PartInput) (int64, error) {
	if s == nil || s.c == nil {
		return 0, ErrNilClient
	}
	var payload idResponse
	if err := s.c.Send(ctx, http.MethodPost, "/MaintenanceParts", in, &payload); err != nil {
		return 0, err
	}
	return payload.ID, nil
}

// Update replaces a part.
func (s *PartService) Update(ctx context.Context, id int64, in PartInput) (bool, error) {
	if s == nil || s.c == nil {
		return false, ErrNilClient
	}
	if err := s.c.Send(ctx, http.MethodPut, "/MaintenanceParts/"+idPath(id), in, nil); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a part.
func (s *PartService) Delete(ctx context.Context, id int64) (bool, error) {
	if s == nil || s.c == nil {
		return false, ErrNilClient
	}
	if err := s.c.Send(ctx, http.MethodDelete, "/MaintenanceParts/"+idPath(id), nil, nil); err != nil {
		return false, err
	}
	return true, nil
}

// PartsListService reads the backend-computed per-machine part lists.
type PartsListService struct {
	c *Client
}

// PartsLists returns the parts list service.
func (c *Client) PartsLists() *PartsListService { return &PartsListService{c: c} }

// ForMachine returns the required and recommended parts for a machine number.
func (s *PartsListService) ForMachine(ctx context.Context, machineNumber string) (*MaintenancePartsList, error) {
	if s == nil || s.c == nil {
		return nil, ErrNilClient
	}
	var payload MaintenancePartsList
	if err := s.c.Send(ctx, http.MethodGet, "/MaintenancePartsList/"+url.PathEscape(machineNumber), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
