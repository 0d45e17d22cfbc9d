package tasks

import (
	"context"
)

func newPrefsReportTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", PrefsReportTask)

	return func(ctx context.Context) error {
		st := deps.Prefs.Stats()
		log.InfoContext(ctx, "Preference store report",
			"recipients", st.Recipients,
			"context_enabled", st.ContextEnabled,
			"deep_think_enabled", st.DeepThinkEnabled,
		)
		return nil
	}
}
