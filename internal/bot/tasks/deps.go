// Package tasks implements the relay's scheduled maintenance tasks.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/cozerelay/internal/prefs"
)

// TokenRefresher renews the platform access token ahead of expiry.
type TokenRefresher interface {
	Refresh(ctx context.Context) error
	ExpiresAt() time.Time
}

// TaskDeps contains the dependencies shared by scheduled tasks. Tokens is
// nil on platforms without refreshable access tokens.
type TaskDeps struct {
	Logger *slog.Logger
	Tokens TokenRefresher
	Prefs  *prefs.Store
}
