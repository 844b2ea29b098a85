package api

import (
	"context"
	"net/http"
)

// UserService exposes /users.
type UserService struct {
	c *Client
}

// Users returns the user service.
func (c *Client) Users() *UserService { return &UserService{c: c} }

func (s *UserService) List(ctx context.Context) ([]User, error) {
	if s == nil || s.c == nil {
		return nil, ErrNilClient
	}
	var payload []User
	if err := s.c.Send(ctx, http.MethodGet, "/users", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *UserService) Create(ctx context.Context, in UserInput) (int64, error) {
	if s == nil || s.c == nil {
		return 0, ErrNilClient
	}
	var payload idResponse
	if err := s.c.Send(ctx, http.MethodPost, "/users", in, &payload); err != nil {
		return 0, err
	}
	return payload.ID, nil
}

func (s *UserService) Update(ctx context.Context, id int64, in UserInput) (bool, error) {
	if s == nil || s.c == nil {
		return false, ErrNilClient
	}
	if err := s.c.Send(ctx, http.MethodPut, "/users/"+idPath(id), in, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (s *UserService) Delete(ctx context.Context, id int64) (bool, error) {
	if s == nil || s.c == nil {
		return false, ErrNilClient
	}
	if err := s.c.Send(ctx, http.MethodDelete, "/users/"+idPath(id), nil, nil); err != nil {
		return false, err
	}
	return true, nil
}
