package tasks

import (
	"context"
)

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// Task names, matching the keys of the scheduler.tasks config section.
const (
	TokenRefreshTask = "qq_token_refresh"
	PrefsReportTask  = "prefs_report"
)

// RegisterAllTasks returns the scheduled tasks available for deps, keyed by
// the name used in configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := make(map[string]ScheduledTaskFunc)

	if deps.Tokens != nil {
		tasks[TokenRefreshTask] = newTokenRefreshTask(deps)
	}
	if deps.Prefs != nil {
		tasks[PrefsReportTask] = newPrefsReportTask(deps)
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
