package services

import (
	"context"
	"fmt"

	"github.com/taskhub/core/internal/domain/entities"
	"github.com/taskhub/core/internal/infrastructure/logger"
	"github.com/taskhub/core/internal/ports"
)

// TaskService handles task-related operations
type TaskService struct {
	taskRepo    ports.TaskRepository
	projectRepo ports.ProjectRepository
	logger      *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(taskRepo ports.TaskRepository, projectRepo ports.ProjectRepository, logger *logger.Logger) *TaskService {
	return &TaskService{
		taskRepo:    taskRepo,
		projectRepo: projectRepo,
		logger:      logger,
	}
}

// CreateTask creates a task under a project the caller owns. The project
// relationship is enforced here with an existence+ownership check, not by
// a storage-level foreign key.
func (s *TaskService) CreateTask(ctx context.Context, projectID, ownerID string, req ports.CreateTaskRequest) (*entities.Task, error) {
	exists, err := s.projectRepo.Exists(ctx, projectID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify project: %w", err)
	}
	if !exists {
		return nil, entities.ErrProjectNotFound
	}

	status := req.Status
	if status == "" {
		status = entities.TaskStatusTodo
	}
	priority := req.Priority
	if priority == "" {
		priority = entities.PriorityMedium
	}

	task := &entities.Task{
		ProjectID:      projectID,
		OwnerID:        ownerID,
		Title:          req.Title,
		Description:    req.Description,
		Status:         entities.TaskStatusTodo,
		Priority:       priority,
		AssignedToID:   req.AssignedToID,
		CreatedByID:    ownerID,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		Tags:           req.Tags,
	}

	// route the requested status through the transition so CompletedAt
	// semantics hold even for tasks created directly as done
	if err := task.TransitionStatus(status, entities.Now()); err != nil {
		return nil, err
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	created, err := s.taskRepo.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Infow("Task created", "task_id", created.ID, "project_id", projectID, "owner_id", ownerID)

	return created, nil
}

// GetTask retrieves a task through the cache-aside read path
func (s *TaskService) GetTask(ctx context.Context, id, ownerID string) (*entities.Task, error) {
	return s.taskRepo.GetByID(ctx, id, ownerID)
}

// GetTaskFresh retrieves a task directly from the store
func (s *TaskService) GetTaskFresh(ctx context.Context, id, ownerID string) (*entities.Task, error) {
	return s.taskRepo.GetFresh(ctx, id, ownerID)
}

// UpdateTask applies a partial update on top of current store state
func (s *TaskService) UpdateTask(ctx context.Context, id, ownerID string, req ports.UpdateTaskRequest) (*entities.Task, error) {
	existing, err := s.taskRepo.GetFresh(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		existing.Title = *req.Title
	}
	if req.Description != nil {
		existing.Description = req.Description
	}
	if req.Priority != nil {
		existing.Priority = *req.Priority
	}
	if req.AssignedToID != nil {
		existing.AssignedToID = req.AssignedToID
	}
	if req.DueDate != nil {
		existing.DueDate = req.DueDate
	}
	if req.EstimatedHours != nil {
		existing.EstimatedHours = *req.EstimatedHours
	}
	if req.Tags != nil {
		existing.Tags = req.Tags
	}
	if req.Status != nil {
		if err := existing.TransitionStatus(*req.Status, entities.Now()); err != nil {
			return nil, err
		}
	}

	if err := existing.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.taskRepo.Update(ctx, existing)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Task updated", "task_id", updated.ID, "owner_id", ownerID)

	return updated, nil
}

// UpdateTaskStatus transitions a task's status only
func (s *TaskService) UpdateTaskStatus(ctx context.Context, id, ownerID string, status entities.TaskStatus) (*entities.Task, error) {
	existing, err := s.taskRepo.GetFresh(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if err := existing.TransitionStatus(status, entities.Now()); err != nil {
		return nil, err
	}

	updated, err := s.taskRepo.Update(ctx, existing)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Task status updated", "task_id", id, "status", status)

	return updated, nil
}

// AssignTask sets or clears a task's assignee
func (s *TaskService) AssignTask(ctx context.Context, id, ownerID string, assigneeID *string) (*entities.Task, error) {
	existing, err := s.taskRepo.GetFresh(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	existing.AssignedToID = assigneeID

	updated, err := s.taskRepo.Update(ctx, existing)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Task assignee changed", "task_id", id)

	return updated, nil
}

// DeleteTask soft-deletes a task
func (s *TaskService) DeleteTask(ctx context.Context, id, ownerID string) error {
	if err := s.taskRepo.Delete(ctx, id, ownerID); err != nil {
		return err
	}

	s.logger.Infow("Task deleted", "task_id", id, "owner_id", ownerID)

	return nil
}

// ListTasks lists a project's tasks with pagination and filters
func (s *TaskService) ListTasks(ctx context.Context, projectID, ownerID string, filter ports.TaskFilter) ([]*entities.Task, int, error) {
	return s.taskRepo.List(ctx, projectID, ownerID, filter)
}
