package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	pathLogin   = "/auth/login"
	pathRefresh = "/auth/refresh"
)

// TokenStore persists the session between runs.
type TokenStore interface {
	Load() (Credentials, error)
	Save(Credentials) error
	Clear() error
}

var (
	_ TokenStore = (*FileTokenStore)(nil)
	_ TokenStore = (*MemoryTokenStore)(nil)
)

// FileTokenStore keeps credentials in a TOML file readable only by the user.
type FileTokenStore struct {
	Path string
}

// Load returns the saved credentials, or zero credentials when none exist.
func (s *FileTokenStore) Load() (Credentials, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, nil
		}
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	var creds Credentials
	if err := toml.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials: %w", err)
	}
	return creds, nil
}

// Save writes the credentials with mode 0600.
func (s *FileTokenStore) Save(creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	data, err := toml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Clear removes the credentials file.
func (s *FileTokenStore) Clear() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

// MemoryTokenStore keeps credentials for the life of the process.
type MemoryTokenStore struct {
	mu    sync.Mutex
	creds Credentials
}

func (s *MemoryTokenStore) Load() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds, nil
}

func (s *MemoryTokenStore) Save(creds Credentials) error {
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	s.creds = Credentials{}
	s.mu.Unlock()
	return nil
}

// AuthService logs users in and out.
type AuthService struct {
	c *Client
}

// Auth returns the authentication service.
func (c *Client) Auth() *AuthService { return &AuthService{c: c} }

// Login authenticates and makes the returned token current for all requests.
func (s *AuthService) Login(ctx context.Context, username, password string) (Credentials, error) {
	if s == nil || s.c == nil {
		return Credentials{}, ErrNilClient
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Credentials{}, &ValidationError{Errors: []string{"username and password are required"}}
	}

	var creds Credentials
	body := LoginRequest{Username: username, Password: password}
	if err := s.c.Send(ctx, http.MethodPost, pathLogin, body, &creds); err != nil {
		return Credentials{}, err
	}
	if !creds.Valid() {
		return Credentials{}, errors.New("login returned no access token")
	}
	if creds.Username == "" {
		creds.Username = username
	}
	s.c.setSession(creds)
	return creds, nil
}

// Logout drops the current session locally.
func (s *AuthService) Logout() {
	if s == nil || s.c == nil {
		return
	}
	s.c.clearSession()
}

// Refresh forces a token refresh using the stored refresh token.
func (s *AuthService) Refresh(ctx context.Context) error {
	if s == nil || s.c == nil {
		return ErrNilClient
	}
	return s.c.refresh(ctx, s.c.Session().AccessToken)
}
