package tasks

import (
	"context"
	"time"

	"github.com/streamweld/streamweld/internal/ingest"
	"github.com/streamweld/streamweld/internal/scheduler"
)

const SourceSyncTaskID = "source-sync"

// RegisterSourceSyncTask registers the periodic full source sync with
// the scheduler.
func RegisterSourceSyncTask(sched *scheduler.Scheduler, coordinator *ingest.Coordinator, interval time.Duration) error {
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          SourceSyncTaskID,
		Name:        "Source Sync",
		Description: "Fetches every active source and reconciles its items into the catalog",
		Interval:    interval,
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			coordinator.SyncAll(ctx)
			return nil
		},
	})
}
