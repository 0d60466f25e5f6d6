package tasks

import (
	"context"
	"time"

	"github.com/streamweld/streamweld/internal/epg"
	"github.com/streamweld/streamweld/internal/scheduler"
)

const EPGRefreshTaskID = "epg-refresh"

// RegisterEPGRefreshTask registers the guide refresh sweep with the
// scheduler. The sweep re-fetches every known channel whose cached
// window has gone stale.
func RegisterEPGRefreshTask(sched *scheduler.Scheduler, manager *epg.Manager, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          EPGRefreshTaskID,
		Name:        "Guide Refresh",
		Description: "Re-fetches stale program guide windows and evicts entries past retention",
		Interval:    interval,
		RunOnStart:  false,
		Func: func(ctx context.Context) error {
			manager.RefreshSweep(ctx)
			return nil
		},
	})
}
