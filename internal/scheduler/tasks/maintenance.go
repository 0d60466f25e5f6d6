package tasks

import (
	"time"

	"github.com/streamweld/streamweld/internal/reconcile"
	"github.com/streamweld/streamweld/internal/scheduler"
)

const MaintenanceTaskID = "catalog-maintenance"

// RegisterMaintenanceTask registers the catalog maintenance pass with
// the scheduler. The pass purges rows orphaned by source removal.
func RegisterMaintenanceTask(sched *scheduler.Scheduler, service *reconcile.Service) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          MaintenanceTaskID,
		Name:        "Catalog Maintenance",
		Description: "Purges catalog rows left behind by removed sources",
		Interval:    time.Hour,
		RunOnStart:  true,
		Func:        service.Pass,
	})
}
