package entities

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Now returns the current UTC time at microsecond precision, the finest
// resolution a timestamptz column round-trips. Entity timestamps must use
// it so a fingerprint issued before the store write still matches one
// recomputed from the stored row.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Common errors
var (
	ErrProjectNotFound      = errors.New("project not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidPriority      = errors.New("invalid priority")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrPreconditionRequired = errors.New("precondition required")
	ErrPreconditionFailed   = errors.New("precondition failed")
	ErrInvalidDateRange     = errors.New("end date cannot be before start date")
	ErrValidation           = errors.New("validation failed")
)

// Enums and types
type ProjectStatus string

const (
	ProjectStatusPlanning  ProjectStatus = "planning"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusArchived  ProjectStatus = "archived"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusInReview   TaskStatus = "in_review"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusBlocked    TaskStatus = "blocked"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Project represents a project owned by a single user
type Project struct {
	ID          string        `json:"id" db:"id"`
	OwnerID     string        `json:"owner_id" db:"owner_id"`
	Name        string        `json:"name" db:"name"`
	Description *string       `json:"description" db:"description"`
	Status      ProjectStatus `json:"status" db:"status"`
	StartDate   *time.Time    `json:"start_date" db:"start_date"`
	EndDate     *time.Time    `json:"end_date" db:"end_date"`
	MemberIDs   []string      `json:"member_ids" db:"member_ids"`
	Tags        []string      `json:"tags" db:"tags"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
	IsDeleted   bool          `json:"-" db:"is_deleted"`
	DeletedAt   *time.Time    `json:"-" db:"deleted_at"`
}

// Task represents a task belonging to exactly one project
type Task struct {
	ID             string     `json:"id" db:"id"`
	ProjectID      string     `json:"project_id" db:"project_id"`
	OwnerID        string     `json:"owner_id" db:"owner_id"`
	Title          string     `json:"title" db:"title"`
	Description    *string    `json:"description" db:"description"`
	Status         TaskStatus `json:"status" db:"status"`
	Priority       Priority   `json:"priority" db:"priority"`
	AssignedToID   *string    `json:"assigned_to_id" db:"assigned_to_id"`
	CreatedByID    string     `json:"created_by_id" db:"created_by_id"`
	DueDate        *time.Time `json:"due_date" db:"due_date"`
	CompletedAt    *time.Time `json:"completed_at" db:"completed_at"`
	EstimatedHours int        `json:"estimated_hours" db:"estimated_hours"`
	Tags           []string   `json:"tags" db:"tags"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	IsDeleted      bool       `json:"-" db:"is_deleted"`
	DeletedAt      *time.Time `json:"-" db:"deleted_at"`
}

// Session represents an authenticated device session for a user
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserAgent string    `json:"user_agent"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProjectStats is a derived read-only view, never persisted
type ProjectStats struct {
	ProjectID            string             `json:"project_id"`
	TotalTasks           int                `json:"total_tasks"`
	CompletedTasks       int                `json:"completed_tasks"`
	CompletionPercentage float64            `json:"completion_percentage"`
	TasksByStatus        map[TaskStatus]int `json:"tasks_by_status"`
	TasksByPriority      map[Priority]int   `json:"tasks_by_priority"`
}

// Business logic methods for Project

// Validate checks field invariants that do not depend on request shape.
func (p *Project) Validate() error {
	name := strings.TrimSpace(p.Name)
	if n := utf8.RuneCountInString(name); n < 1 || n > 200 {
		return ErrValidation
	}
	if p.Description != nil && utf8.RuneCountInString(*p.Description) > 2000 {
		return ErrValidation
	}
	if !p.Status.IsValid() {
		return ErrInvalidStatus
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return ErrInvalidDateRange
	}
	return nil
}

// EnsureOwnerMembership guarantees the owner is part of the member set.
func (p *Project) EnsureOwnerMembership() {
	for _, id := range p.MemberIDs {
		if id == p.OwnerID {
			return
		}
	}
	p.MemberIDs = append(p.MemberIDs, p.OwnerID)
}

func (p *Project) IsActive() bool {
	return p.Status == ProjectStatusActive
}

// Business logic methods for Task

func (t *Task) Validate() error {
	title := strings.TrimSpace(t.Title)
	if n := utf8.RuneCountInString(title); n < 1 || n > 200 {
		return ErrValidation
	}
	if t.Description != nil && utf8.RuneCountInString(*t.Description) > 2000 {
		return ErrValidation
	}
	if !t.Status.IsValid() {
		return ErrInvalidStatus
	}
	if !t.Priority.IsValid() {
		return ErrInvalidPriority
	}
	if t.EstimatedHours < 0 {
		return ErrValidation
	}
	return nil
}

// TransitionStatus moves the task to a new status. CompletedAt is set
// automatically when the task transitions into done, and cleared when it
// leaves done.
func (t *Task) TransitionStatus(status TaskStatus, now time.Time) error {
	if !status.IsValid() {
		return ErrInvalidStatus
	}
	if status == TaskStatusDone && t.Status != TaskStatusDone {
		completed := now
		t.CompletedAt = &completed
	}
	if status != TaskStatusDone {
		t.CompletedAt = nil
	}
	t.Status = status
	return nil
}

func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	return now.After(*t.DueDate) && t.Status != TaskStatusDone
}

// Session methods

func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Utility methods
func (ps ProjectStatus) IsValid() bool {
	switch ps {
	case ProjectStatusPlanning, ProjectStatusActive, ProjectStatusOnHold, ProjectStatusCompleted, ProjectStatusArchived:
		return true
	default:
		return false
	}
}

func (ts TaskStatus) IsValid() bool {
	switch ts {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusInReview, TaskStatusDone, TaskStatusBlocked:
		return true
	default:
		return false
	}
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}
