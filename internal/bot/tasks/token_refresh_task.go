package tasks

import (
	"context"
	"fmt"
	"time"
)

// newTokenRefreshTask renews the QQ access token so event handling never
// waits on a token fetch.
func newTokenRefreshTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", TokenRefreshTask)

	return func(ctx context.Context) error {
		startTime := time.Now()

		if err := deps.Tokens.Refresh(ctx); err != nil {
			log.ErrorContext(ctx, "Access token refresh failed", "error", err, "duration", time.Since(startTime))
			return fmt.Errorf("token refresh failed: %w", err)
		}

		log.InfoContext(ctx, "Access token refreshed", "expires_at", deps.Tokens.ExpiresAt(), "duration", time.Since(startTime))
		return nil
	}
}
