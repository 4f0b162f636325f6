package services

import (
	"context"
	"fmt"

	"github.com/taskhub/core/internal/domain/entities"
	"github.com/taskhub/core/internal/infrastructure/logger"
	"github.com/taskhub/core/internal/ports"
)

// AnalyticsService computes derived project statistics. Nothing here is
// stored; a failure in either underlying query fails the whole aggregate.
type AnalyticsService struct {
	taskRepo    ports.TaskRepository
	projectRepo ports.ProjectRepository
	logger      *logger.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(taskRepo ports.TaskRepository, projectRepo ports.ProjectRepository, logger *logger.Logger) *AnalyticsService {
	return &AnalyticsService{
		taskRepo:    taskRepo,
		projectRepo: projectRepo,
		logger:      logger,
	}
}

// ProjectStats aggregates a project's task counts. The two group queries
// touch disjoint data with no ordering requirement, so they are issued
// concurrently.
func (s *AnalyticsService) ProjectStats(ctx context.Context, projectID, ownerID string) (*entities.ProjectStats, error) {
	exists, err := s.projectRepo.Exists(ctx, projectID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify project: %w", err)
	}
	if !exists {
		return nil, entities.ErrProjectNotFound
	}

	var (
		byStatus    map[entities.TaskStatus]int
		byPriority  map[entities.Priority]int
		statusErr   error
		priorityErr error
	)

	done := make(chan struct{}, 2)

	go func() {
		byStatus, statusErr = s.taskRepo.CountByStatus(ctx, projectID, ownerID)
		done <- struct{}{}
	}()
	go func() {
		byPriority, priorityErr = s.taskRepo.CountByPriority(ctx, projectID, ownerID)
		done <- struct{}{}
	}()

	<-done
	<-done

	if statusErr != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", statusErr)
	}
	if priorityErr != nil {
		return nil, fmt.Errorf("failed to count tasks by priority: %w", priorityErr)
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}
	completed := byStatus[entities.TaskStatusDone]

	percentage := 0.0
	if total > 0 {
		percentage = float64(completed) / float64(total) * 100
	}

	return &entities.ProjectStats{
		ProjectID:            projectID,
		TotalTasks:           total,
		CompletedTasks:       completed,
		CompletionPercentage: percentage,
		TasksByStatus:        byStatus,
		TasksByPriority:      byPriority,
	}, nil
}
