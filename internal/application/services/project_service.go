package services

import (
	"context"
	"fmt"

	"github.com/taskhub/core/internal/domain/entities"
	"github.com/taskhub/core/internal/infrastructure/logger"
	"github.com/taskhub/core/internal/ports"
)

// ProjectService handles project-related operations. All inputs reaching it
// have already passed field-level validation at the transport layer; the
// checks here are the entity invariants and ownership scoping.
type ProjectService struct {
	projectRepo ports.ProjectRepository
	logger      *logger.Logger
}

// NewProjectService creates a new project service
func NewProjectService(projectRepo ports.ProjectRepository, logger *logger.Logger) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		logger:      logger,
	}
}

// CreateProject creates a new project owned by ownerID
func (s *ProjectService) CreateProject(ctx context.Context, ownerID string, req ports.CreateProjectRequest) (*entities.Project, error) {
	status := req.Status
	if status == "" {
		status = entities.ProjectStatusPlanning
	}

	project := &entities.Project{
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		Status:      status,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		MemberIDs:   req.MemberIDs,
		Tags:        req.Tags,
	}

	if err := project.Validate(); err != nil {
		return nil, err
	}

	created, err := s.projectRepo.Create(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.logger.Infow("Project created", "project_id", created.ID, "owner_id", ownerID)

	return created, nil
}

// GetProject retrieves a project through the cache-aside read path
func (s *ProjectService) GetProject(ctx context.Context, id, ownerID string) (*entities.Project, error) {
	return s.projectRepo.GetByID(ctx, id, ownerID)
}

// GetProjectFresh retrieves a project directly from the store, bypassing
// the cache. Precondition checks must use this path.
func (s *ProjectService) GetProjectFresh(ctx context.Context, id, ownerID string) (*entities.Project, error) {
	return s.projectRepo.GetFresh(ctx, id, ownerID)
}

// UpdateProject applies a partial update on top of current store state.
func (s *ProjectService) UpdateProject(ctx context.Context, id, ownerID string, req ports.UpdateProjectRequest) (*entities.Project, error) {
	existing, err := s.projectRepo.GetFresh(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Description != nil {
		existing.Description = req.Description
	}
	if req.Status != nil {
		existing.Status = *req.Status
	}
	if req.StartDate != nil {
		existing.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		existing.EndDate = req.EndDate
	}
	if req.MemberIDs != nil {
		existing.MemberIDs = req.MemberIDs
	}
	if req.Tags != nil {
		existing.Tags = req.Tags
	}

	if err := existing.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.projectRepo.Update(ctx, existing)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Project updated", "project_id", updated.ID, "owner_id", ownerID)

	return updated, nil
}

// DeleteProject soft-deletes a project
func (s *ProjectService) DeleteProject(ctx context.Context, id, ownerID string) error {
	if err := s.projectRepo.Delete(ctx, id, ownerID); err != nil {
		return err
	}

	s.logger.Infow("Project deleted", "project_id", id, "owner_id", ownerID)

	return nil
}

// ListProjects lists projects with pagination and filters
func (s *ProjectService) ListProjects(ctx context.Context, ownerID string, filter ports.ProjectFilter) ([]*entities.Project, int, error) {
	return s.projectRepo.List(ctx, ownerID, filter)
}
