package data

import (
	"context"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/logger"
)

// Login authenticates and starts a fresh cache. Anything cached under a
// previous user is dropped before the new session begins.
func (l *Layer) Login(ctx context.Context, username, password string) (api.Credentials, error) {
	creds, err := l.svc.Auth.Login(ctx, username, password)
	if err != nil {
		l.log.Info("login failed", logger.String("username", username), logger.ErrorF(err))
		return api.Credentials{}, err
	}
	l.q.Store().Clear()
	l.log.Info("logged in", logger.String("username", creds.Username))
	return creds, nil
}

// Logout drops the session and every cached entry, cancelling in-flight
// fetches.
func (l *Layer) Logout() {
	l.svc.Auth.Logout()
	l.q.Store().Clear()
	l.log.Info("logged out")
}
