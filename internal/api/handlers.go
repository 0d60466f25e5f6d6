package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/streamweld/streamweld/internal/config"
)

// healthCheck returns a simple health status.
// GET /health
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// getStatus returns server status information.
// GET /api/v1/status
func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"version":     config.Version,
		"database":    s.db.Path(),
		"subscribers": s.hub.SubscriberCount(),
	})
}

// listTasks returns all scheduled tasks.
// GET /api/v1/scheduler/tasks
func (s *Server) listTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sched.ListTasks())
}

// runTask manually triggers a task to run.
// POST /api/v1/scheduler/tasks/:id/run
func (s *Server) runTask(c echo.Context) error {
	taskID := c.Param("id")
	if err := s.sched.RunNow(taskID); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "Task started",
		"taskId":  taskID,
	})
}
