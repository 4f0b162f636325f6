package ports

import (
	"context"
	"time"

	"github.com/taskhub/core/internal/domain/entities"
)

// ProjectService interface for project management operations. Every call is
// scoped to the authenticated owner; the concurrency token (ETag) carried by
// mutating requests is validated against store state before anything changes.
type ProjectService interface {
	CreateProject(ctx context.Context, ownerID string, req CreateProjectRequest) (*entities.Project, error)
	GetProject(ctx context.Context, id, ownerID string) (*entities.Project, error)
	// GetProjectFresh reads the store directly, bypassing the cache. Used
	// by precondition checks.
	GetProjectFresh(ctx context.Context, id, ownerID string) (*entities.Project, error)
	UpdateProject(ctx context.Context, id, ownerID string, req UpdateProjectRequest) (*entities.Project, error)
	DeleteProject(ctx context.Context, id, ownerID string) error
	ListProjects(ctx context.Context, ownerID string, filter ProjectFilter) ([]*entities.Project, int, error)
}

// TaskService interface for task management operations
type TaskService interface {
	CreateTask(ctx context.Context, projectID, ownerID string, req CreateTaskRequest) (*entities.Task, error)
	GetTask(ctx context.Context, id, ownerID string) (*entities.Task, error)
	GetTaskFresh(ctx context.Context, id, ownerID string) (*entities.Task, error)
	UpdateTask(ctx context.Context, id, ownerID string, req UpdateTaskRequest) (*entities.Task, error)
	DeleteTask(ctx context.Context, id, ownerID string) error
	ListTasks(ctx context.Context, projectID, ownerID string, filter TaskFilter) ([]*entities.Task, int, error)
	UpdateTaskStatus(ctx context.Context, id, ownerID string, status entities.TaskStatus) (*entities.Task, error)
	AssignTask(ctx context.Context, id, ownerID string, assigneeID *string) (*entities.Task, error)
}

// AnalyticsService computes derived project statistics
type AnalyticsService interface {
	ProjectStats(ctx context.Context, projectID, ownerID string) (*entities.ProjectStats, error)
}

// Request/Response Types

// Project related types
type CreateProjectRequest struct {
	Name        string                 `json:"name" validate:"required,min=1,max=200"`
	Description *string                `json:"description" validate:"omitempty,max=2000"`
	Status      entities.ProjectStatus `json:"status" validate:"omitempty"`
	StartDate   *time.Time             `json:"start_date"`
	EndDate     *time.Time             `json:"end_date"`
	MemberIDs   []string               `json:"member_ids"`
	Tags        []string               `json:"tags"`
}

type UpdateProjectRequest struct {
	Name        *string                 `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string                 `json:"description" validate:"omitempty,max=2000"`
	Status      *entities.ProjectStatus `json:"status" validate:"omitempty"`
	StartDate   *time.Time              `json:"start_date"`
	EndDate     *time.Time              `json:"end_date"`
	MemberIDs   []string                `json:"member_ids"`
	Tags        []string                `json:"tags"`
}

// Task related types
type CreateTaskRequest struct {
	Title          string              `json:"title" validate:"required,min=1,max=200"`
	Description    *string             `json:"description" validate:"omitempty,max=2000"`
	Status         entities.TaskStatus `json:"status" validate:"omitempty"`
	Priority       entities.Priority   `json:"priority" validate:"omitempty"`
	AssignedToID   *string             `json:"assigned_to_id"`
	DueDate        *time.Time          `json:"due_date"`
	EstimatedHours int                 `json:"estimated_hours" validate:"omitempty,min=0"`
	Tags           []string            `json:"tags"`
}

type UpdateTaskRequest struct {
	Title          *string              `json:"title" validate:"omitempty,min=1,max=200"`
	Description    *string              `json:"description" validate:"omitempty,max=2000"`
	Status         *entities.TaskStatus `json:"status" validate:"omitempty"`
	Priority       *entities.Priority   `json:"priority" validate:"omitempty"`
	AssignedToID   *string              `json:"assigned_to_id"`
	DueDate        *time.Time           `json:"due_date"`
	EstimatedHours *int                 `json:"estimated_hours" validate:"omitempty,min=0"`
	Tags           []string             `json:"tags"`
}

type UpdateTaskStatusRequest struct {
	Status entities.TaskStatus `json:"status" validate:"required"`
}

type AssignTaskRequest struct {
	AssignedToID *string `json:"assigned_to_id"`
}
