package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskhub/core/internal/domain/entities"
	"github.com/taskhub/core/internal/infrastructure/logger"
	"github.com/taskhub/core/internal/ports"
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskService ports.TaskService
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService ports.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// taskPathID resolves the task path parameter for both the flat /tasks/:id
// routes and the project-nested /projects/:id/tasks/:taskId routes. Task ids
// are globally unique and owner-scoped, so the project segment is purely
// navigational.
func taskPathID(c echo.Context) string {
	if id := c.Param("taskId"); id != "" {
		return id
	}
	return c.Param("id")
}

// CreateTask godoc
// @Summary Create a task
// @Description Create a task inside a project owned by the authenticated user
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body ports.CreateTaskRequest true "Task data"
// @Success 201 {object} entities.Task
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	userID := userIDFromContext(c)
	projectID := c.Param("id")

	var req ports.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), projectID, userID, req)
	if err != nil {
		h.logger.Errorw("Create task failed", "error", err, "project_id", projectID)
		return mapError(err)
	}

	if _, err := writeETag(c, task); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, task)
}

// GetTask godoc
// @Summary Get task by ID
// @Description Get task information; supports If-None-Match revalidation
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} entities.Task
// @Success 304
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [get]
func (h *TaskHandler) GetTask(c echo.Context) error {
	userID := userIDFromContext(c)
	taskID := taskPathID(c)

	task, err := h.taskService.GetTask(c.Request().Context(), taskID, userID)
	if err != nil {
		return mapError(err)
	}

	token, err := writeETag(c, task)
	if err != nil {
		return err
	}
	if notModified(c, token) {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSON(http.StatusOK, task)
}

// ListTasks godoc
// @Summary List tasks in a project
// @Description List tasks with optional status, priority, assignee and search filters
// @Tags tasks
// @Produce json
// @Param id path string true "Project ID"
// @Param status query string false "Filter by status"
// @Param priority query string false "Filter by priority"
// @Param assignedTo query string false "Filter by assignee"
// @Param search query string false "Case-insensitive title search"
// @Param pageNumber query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} PaginatedResponse
// @Security BearerAuth
// @Router /projects/{id}/tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	userID := userIDFromContext(c)
	projectID := c.Param("id")

	page, pageSize := parsePagination(c)
	filter := ports.TaskFilter{
		AssignedToID: optionalQueryParam(c, "assignedTo"),
		Search:       optionalQueryParam(c, "search"),
		Page:         page,
		PageSize:     pageSize,
	}
	if status := c.QueryParam("status"); status != "" {
		s := entities.TaskStatus(status)
		if !s.IsValid() {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid status filter")
		}
		filter.Status = &s
	}
	if priority := c.QueryParam("priority"); priority != "" {
		p := entities.Priority(priority)
		if !p.IsValid() {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid priority filter")
		}
		filter.Priority = &p
	}

	tasks, total, err := h.taskService.ListTasks(c.Request().Context(), projectID, userID, filter)
	if err != nil {
		h.logger.Errorw("List tasks failed", "error", err, "project_id", projectID)
		return mapError(err)
	}

	filter.Normalize()
	return c.JSON(http.StatusOK, PaginatedResponse{
		Items:      tasks,
		TotalCount: total,
		PageNumber: filter.Page,
		PageSize:   filter.PageSize,
	})
}

// UpdateTask godoc
// @Summary Update a task
// @Description Replace mutable task fields; requires a current If-Match token
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param If-Match header string true "Concurrency token from a prior GET"
// @Param request body ports.UpdateTaskRequest true "Fields to update"
// @Success 200 {object} entities.Task
// @Failure 404 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Failure 428 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	userID := userIDFromContext(c)
	taskID := taskPathID(c)

	supplied, err := requireIfMatch(c)
	if err != nil {
		return mapError(err)
	}

	var req ports.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.checkTaskPrecondition(c, taskID, userID, supplied); err != nil {
		return err
	}

	task, err := h.taskService.UpdateTask(c.Request().Context(), taskID, userID, req)
	if err != nil {
		h.logger.Errorw("Update task failed", "error", err, "task_id", taskID)
		return mapError(err)
	}

	if _, err := writeETag(c, task); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

// UpdateTaskStatus godoc
// @Summary Change task status
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param If-Match header string true "Concurrency token from a prior GET"
// @Param request body ports.UpdateTaskStatusRequest true "New status"
// @Success 200 {object} entities.Task
// @Failure 404 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Failure 428 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/status [patch]
func (h *TaskHandler) UpdateTaskStatus(c echo.Context) error {
	userID := userIDFromContext(c)
	taskID := taskPathID(c)

	supplied, err := requireIfMatch(c)
	if err != nil {
		return mapError(err)
	}

	var req ports.UpdateTaskStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.checkTaskPrecondition(c, taskID, userID, supplied); err != nil {
		return err
	}

	task, err := h.taskService.UpdateTaskStatus(c.Request().Context(), taskID, userID, req.Status)
	if err != nil {
		h.logger.Errorw("Update task status failed", "error", err, "task_id", taskID)
		return mapError(err)
	}

	if _, err := writeETag(c, task); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

// AssignTask godoc
// @Summary Assign or unassign a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param If-Match header string true "Concurrency token from a prior GET"
// @Param request body ports.AssignTaskRequest true "Assignee, null to unassign"
// @Success 200 {object} entities.Task
// @Failure 404 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Failure 428 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/assign [patch]
func (h *TaskHandler) AssignTask(c echo.Context) error {
	userID := userIDFromContext(c)
	taskID := taskPathID(c)

	supplied, err := requireIfMatch(c)
	if err != nil {
		return mapError(err)
	}

	var req ports.AssignTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := h.checkTaskPrecondition(c, taskID, userID, supplied); err != nil {
		return err
	}

	task, err := h.taskService.AssignTask(c.Request().Context(), taskID, userID, req.AssignedToID)
	if err != nil {
		h.logger.Errorw("Assign task failed", "error", err, "task_id", taskID)
		return mapError(err)
	}

	if _, err := writeETag(c, task); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

// DeleteTask godoc
// @Summary Delete a task
// @Description Soft-delete a task; requires a current If-Match token
// @Tags tasks
// @Param id path string true "Task ID"
// @Param If-Match header string true "Concurrency token from a prior GET"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Failure 428 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	userID := userIDFromContext(c)
	taskID := taskPathID(c)

	supplied, err := requireIfMatch(c)
	if err != nil {
		return mapError(err)
	}

	if err := h.checkTaskPrecondition(c, taskID, userID, supplied); err != nil {
		return err
	}

	if err := h.taskService.DeleteTask(c.Request().Context(), taskID, userID); err != nil {
		h.logger.Errorw("Delete task failed", "error", err, "task_id", taskID)
		return mapError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

// checkTaskPrecondition loads the task from the store, bypassing the cache,
// and validates the supplied token against it.
func (h *TaskHandler) checkTaskPrecondition(c echo.Context, taskID, userID, supplied string) error {
	current, err := h.taskService.GetTaskFresh(c.Request().Context(), taskID, userID)
	if err != nil {
		return mapError(err)
	}
	if err := checkPrecondition(current, supplied); err != nil {
		return mapError(err)
	}
	return nil
}
