package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskhub/core/internal/domain/entities"
	"github.com/taskhub/core/internal/infrastructure/logger"
	"github.com/taskhub/core/internal/ports"
)

// ProjectHandler handles project-related requests
type ProjectHandler struct {
	projectService   ports.ProjectService
	analyticsService ports.AnalyticsService
	logger           *logger.Logger
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projectService ports.ProjectService, analyticsService ports.AnalyticsService, logger *logger.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService:   projectService,
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// CreateProject godoc
// @Summary Create a new project
// @Description Create a new project owned by the authenticated user
// @Tags projects
// @Accept json
// @Produce json
// @Param request body ports.CreateProjectRequest true "Project data"
// @Success 201 {object} entities.Project
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects [post]
func (h *ProjectHandler) CreateProject(c echo.Context) error {
	userID := userIDFromContext(c)

	var req ports.CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	project, err := h.projectService.CreateProject(c.Request().Context(), userID, req)
	if err != nil {
		h.logger.Errorw("Create project failed", "error", err, "user_id", userID)
		return mapError(err)
	}

	if _, err := writeETag(c, project); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, project)
}

// GetProject godoc
// @Summary Get project by ID
// @Description Get project information; supports If-None-Match revalidation
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} entities.Project
// @Success 304
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id} [get]
func (h *ProjectHandler) GetProject(c echo.Context) error {
	userID := userIDFromContext(c)
	projectID := c.Param("id")

	project, err := h.projectService.GetProject(c.Request().Context(), projectID, userID)
	if err != nil {
		return mapError(err)
	}

	token, err := writeETag(c, project)
	if err != nil {
		return err
	}
	if notModified(c, token) {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSON(http.StatusOK, project)
}

// ListProjects godoc
// @Summary List projects
// @Description List the authenticated user's projects with optional filters
// @Tags projects
// @Produce json
// @Param status query string false "Filter by status"
// @Param search query string false "Case-insensitive name search"
// @Param pageNumber query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} PaginatedResponse
// @Security BearerAuth
// @Router /projects [get]
func (h *ProjectHandler) ListProjects(c echo.Context) error {
	userID := userIDFromContext(c)

	page, pageSize := parsePagination(c)
	filter := ports.ProjectFilter{
		Search:   optionalQueryParam(c, "search"),
		Page:     page,
		PageSize: pageSize,
	}
	if status := c.QueryParam("status"); status != "" {
		s := entities.ProjectStatus(status)
		if !s.IsValid() {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid status filter")
		}
		filter.Status = &s
	}

	projects, total, err := h.projectService.ListProjects(c.Request().Context(), userID, filter)
	if err != nil {
		h.logger.Errorw("List projects failed", "error", err, "user_id", userID)
		return mapError(err)
	}

	filter.Normalize()
	return c.JSON(http.StatusOK, PaginatedResponse{
		Items:      projects,
		TotalCount: total,
		PageNumber: filter.Page,
		PageSize:   filter.PageSize,
	})
}

// UpdateProject godoc
// @Summary Update a project
// @Description Replace mutable project fields; requires a current If-Match token
// @Tags projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param If-Match header string true "Concurrency token from a prior GET"
// @Param request body ports.UpdateProjectRequest true "Fields to update"
// @Success 200 {object} entities.Project
// @Failure 404 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Failure 428 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id} [put]
func (h *ProjectHandler) UpdateProject(c echo.Context) error {
	userID := userIDFromContext(c)
	projectID := c.Param("id")

	supplied, err := requireIfMatch(c)
	if err != nil {
		return mapError(err)
	}

	var req ports.UpdateProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// precondition is checked against the store, never the cache
	current, err := h.projectService.GetProjectFresh(c.Request().Context(), projectID, userID)
	if err != nil {
		return mapError(err)
	}
	if err := checkPrecondition(current, supplied); err != nil {
		return mapError(err)
	}

	project, err := h.projectService.UpdateProject(c.Request().Context(), projectID, userID, req)
	if err != nil {
		h.logger.Errorw("Update project failed", "error", err, "project_id", projectID)
		return mapError(err)
	}

	if _, err := writeETag(c, project); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, project)
}

// DeleteProject godoc
// @Summary Delete a project
// @Description Soft-delete a project; requires a current If-Match token
// @Tags projects
// @Param id path string true "Project ID"
// @Param If-Match header string true "Concurrency token from a prior GET"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Failure 428 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c echo.Context) error {
	userID := userIDFromContext(c)
	projectID := c.Param("id")

	supplied, err := requireIfMatch(c)
	if err != nil {
		return mapError(err)
	}

	current, err := h.projectService.GetProjectFresh(c.Request().Context(), projectID, userID)
	if err != nil {
		return mapError(err)
	}
	if err := checkPrecondition(current, supplied); err != nil {
		return mapError(err)
	}

	if err := h.projectService.DeleteProject(c.Request().Context(), projectID, userID); err != nil {
		h.logger.Errorw("Delete project failed", "error", err, "project_id", projectID)
		return mapError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

// GetProjectStats godoc
// @Summary Project statistics
// @Description Aggregated task counts and completion percentage for a project
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} entities.ProjectStats
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/stats [get]
func (h *ProjectHandler) GetProjectStats(c echo.Context) error {
	userID := userIDFromContext(c)
	projectID := c.Param("id")

	stats, err := h.analyticsService.ProjectStats(c.Request().Context(), projectID, userID)
	if err != nil {
		h.logger.Errorw("Project stats failed", "error", err, "project_id", projectID)
		return mapError(err)
	}
	return c.JSON(http.StatusOK, stats)
}
