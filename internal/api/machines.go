package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// MachineService exposes the /Machines resource. Calls are pass-throughs:
// no retries, no caching, and backend errors are returned unmodified.
type MachineService struct {
	c *Client
}

// Machines returns the machine service.
func (c *Client) Machines() *MachineService { return &MachineService{c: c} }

// List returns all machines.
func (s *MachineService) List(ctx context.Context) ([]Machine, error) {
	if s == nil || s.c == nil {
		return nil, ErrNilClient
	}
	var payload []Machine
	if err := s.c.Send(ctx, http.MethodGet, "/Machines", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ByID returns one machine with its maintenance history.
func (s *MachineService) ByID(ctx context.Context, id int64) (*MachineDetail, error) {
	if s == nil || s.c == nil {
		return nil, ErrNilClient
	}
	var payload MachineDetail
	if err := s.c.Send(ctx, http.MethodGet, "/Machines/id/"+idPath(id), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ByNumber looks a machine up by its business key.
func (s *MachineService) ByNumber(ctx context.Context, number string) (*MachineDetail, error) {
	if s == nil || s.c == nil {
		return nil, ErrNilClient
	}
	var payload MachineDetail
	if err := s.c.Send(ctx, http.MethodGet, "/Machines/"+url.PathEscape(number), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Create registers a machine and returns its new id.
func (s *MachineService) Create(ctx context.Context, in MachineCreate) (int64, error) {
	if s == nil || s.c == nil {
		return 0, ErrNilClient
	}
	var payload idResponse
	if err := s.c.Send(ctx, http.MethodPost, "/Machines", in, &payload); err != nil {
		return 0, err
	}
	return payload.ID, nil
}

// Update applies a partial update.
func (s *MachineService) Update(ctx context.Context, id int64, in MachineUpdate) (bool, error) {
	if s == nil || s.c == nil {
		return false, ErrNilClient
	}
	if err := s.c.Send(ctx, http.MethodPut, "/Machines/"+idPath(id), in, nil); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a machine.
func (s *MachineService) Delete(ctx context.Context, id int64) (bool, error) {
	if s == nil || s.c == nil {
		return false, ErrNilClient
	}
	if err := s.c.Send(ctx, http.MethodDelete, "/Machines/"+idPath(id), nil, nil); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateOperatingHours sets the machine's hour meter reading.
func (s *MachineService) UpdateOperatingHours(ctx context.Context, id int64, hours int) (bool, error) {
	if s == nil || s.c == nil {
		return false, ErrNilClient
	}
	body := map[string]int{"operatingHours": hours}
	if err := s.c.Send(ctx, http.MethodPut, "/Machines/"+idPath(id)+"/operatinghours", body, nil); err != nil {
		return false, err
	}
	return true, nil
}

// PerformMaintenance records a maintenance and returns the record id.
func (s *MachineService) PerformMaintenance(ctx context.Context, id int64, in MaintenanceRequest) (int64, error) {
	if s == nil || s.c == nil {
		return 0, ErrNilClient
	}
	var payload idResponse
	if err := s.c.Send(ctx, http.MethodPost, "/Machines/"+idPath(id)+"/maintenance", in, &payload); err != nil {
		return 0, err
	}
	return payload.ID, nil
}

// UpdateMagazineProperties replaces the machine's magazine properties.
func (s *MachineService) UpdateMagazineProperties(ctx context.Context, id int64, props MagazineProperties) (MagazineUpdateResult, error) {
	if s == nil || s.c == nil {
		return MagazineUpdateResult{}, ErrNilClient
	}
	result := MagazineUpdateResult{Success: true}
	if err := s.c.Send(ctx, http.MethodPut, "/Machines/"+idPath(id)+"/magazine-properties", props, &result); err != nil {
		return MagazineUpdateResult{}, err
	}
	return result, nil
}

func idPath(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseID converts a route identifier into a numeric id.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ValidationError{Errors: []string{fmt.Sprintf("id: invalid value %q", raw)}}
	}
	return id, nil
}
