package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taskhub/core/internal/domain/entities"
	"github.com/taskhub/core/internal/infrastructure/logger"
	"github.com/taskhub/core/internal/ports"
)

func taskKey(id string) string { return "task:" + id }

func taskProjectPrefix(projectID string) string { return "tasks:" + projectID + ":" }

// TaskRepository implements ports.TaskRepository with the same cache-aside
// contract as ProjectRepository. Point lookups key on `task:{id}`; coarse
// invalidation uses the `tasks:{projectID}` prefix.
type TaskRepository struct {
	db       *sqlx.DB
	cache    ports.Cache
	cacheTTL time.Duration
	logger   *logger.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sqlx.DB, cache ports.Cache, cacheTTL time.Duration, log *logger.Logger) *TaskRepository {
	return &TaskRepository{
		db:       db,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   log,
	}
}

const taskColumns = `id, project_id, owner_id, title, description, status, priority, assigned_to_id, created_by_id, due_date, completed_at, estimated_hours, tags, created_at, updated_at, is_deleted, deleted_at`

// Create inserts a new task, populates its cache entry and invalidates the
// project's task prefix.
func (r *TaskRepository) Create(ctx context.Context, task *entities.Task) (*entities.Task, error) {
	now := entities.Now()
	task.ID = uuid.NewString()
	task.CreatedAt = now
	task.UpdatedAt = now
	task.IsDeleted = false
	task.DeletedAt = nil

	query := `
		INSERT INTO tasks (id, project_id, owner_id, title, description, status, priority, assigned_to_id, created_by_id, due_date, completed_at, estimated_hours, tags, created_at, updated_at, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, FALSE)
	`

	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.ProjectID,
		task.OwnerID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.AssignedToID,
		task.CreatedByID,
		task.DueDate,
		task.CompletedAt,
		task.EstimatedHours,
		pq.Array(task.Tags),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := r.cache.Set(ctx, taskKey(task.ID), task, r.cacheTTL); err != nil {
		r.logger.LogCachePopulateFailure(taskKey(task.ID), err)
	}
	r.invalidateProject(ctx, task.ProjectID)

	return task, nil
}

// GetByID serves the task from cache when present, falling back to the
// owner-scoped store read on miss.
func (r *TaskRepository) GetByID(ctx context.Context, id, ownerID string) (*entities.Task, error) {
	var cached entities.Task
	if r.cache.Get(ctx, taskKey(id), &cached) {
		return &cached, nil
	}

	task, err := r.GetFresh(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, taskKey(id), task, r.cacheTTL); err != nil {
		r.logger.LogCachePopulateFailure(taskKey(id), err)
	}

	return task, nil
}

// GetFresh always reads the store; the precondition path depends on it.
func (r *TaskRepository) GetFresh(ctx context.Context, id, ownerID string) (*entities.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1 AND owner_id = $2 AND is_deleted = FALSE`, taskColumns)

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// List queries tasks for a project, bypassing the cache.
func (r *TaskRepository) List(ctx context.Context, projectID, ownerID string, filter ports.TaskFilter) ([]*entities.Task, int, error) {
	filter.Normalize()

	conditions := []string{"project_id = $1", "owner_id = $2", "is_deleted = FALSE"}
	args := []interface{}{projectID, ownerID}
	argIndex := 3

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Priority != nil {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", argIndex))
		args = append(args, *filter.Priority)
		argIndex++
	}

	if filter.AssignedToID != nil {
		conditions = append(conditions, fmt.Sprintf("assigned_to_id = $%d", argIndex))
		args = append(args, *filter.AssignedToID)
		argIndex++
	}

	if filter.Search != nil && *filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+*filter.Search+"%")
		argIndex++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM tasks %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM tasks %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, taskColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.PageSize, filter.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// GetAllByProject fetches a project's full task list, unpaginated. Used
// when materializing detail views and aggregations.
func (r *TaskRepository) GetAllByProject(ctx context.Context, projectID, ownerID string) ([]*entities.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE project_id = $1 AND owner_id = $2 AND is_deleted = FALSE
		ORDER BY created_at DESC
	`, taskColumns)

	rows, err := r.db.QueryContext(ctx, query, projectID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// Update performs a filtered replace of all mutable columns; zero matched
// rows collapses to not found with no partial effect.
func (r *TaskRepository) Update(ctx context.Context, task *entities.Task) (*entities.Task, error) {
	task.UpdatedAt = entities.Now()

	query := `
		UPDATE tasks
		SET title = $3, description = $4, status = $5, priority = $6, assigned_to_id = $7, due_date = $8, completed_at = $9, estimated_hours = $10, tags = $11, updated_at = $12
		WHERE id = $1 AND owner_id = $2 AND is_deleted = FALSE
	`

	result, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.OwnerID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.AssignedToID,
		task.DueDate,
		task.CompletedAt,
		task.EstimatedHours,
		pq.Array(task.Tags),
		task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if matched, err := rowsMatched(result); err != nil {
		return nil, err
	} else if !matched {
		return nil, entities.ErrTaskNotFound
	}

	r.invalidate(ctx, task.ID, task.ProjectID)

	return task, nil
}

// Delete soft-deletes the task with the same match condition as Update.
func (r *TaskRepository) Delete(ctx context.Context, id, ownerID string) error {
	// fetch first so the project prefix can be invalidated afterwards
	task, err := r.GetFresh(ctx, id, ownerID)
	if err != nil {
		return err
	}

	now := entities.Now()
	query := `
		UPDATE tasks
		SET is_deleted = TRUE, deleted_at = $3, updated_at = $3
		WHERE id = $1 AND owner_id = $2 AND is_deleted = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, id, ownerID, now)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	if matched, err := rowsMatched(result); err != nil {
		return err
	} else if !matched {
		return entities.ErrTaskNotFound
	}

	r.invalidate(ctx, id, task.ProjectID)

	return nil
}

// Exists reports whether the scoped task exists without fetching it.
func (r *TaskRepository) Exists(ctx context.Context, id, ownerID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1 AND owner_id = $2 AND is_deleted = FALSE)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check task existence: %w", err)
	}

	return exists, nil
}

// CountByStatus loads the project's live tasks and groups them in memory.
// Fine at a few thousand tasks per project; anything bigger wants a
// store-side aggregate instead.
func (r *TaskRepository) CountByStatus(ctx context.Context, projectID, ownerID string) (map[entities.TaskStatus]int, error) {
	tasks, err := r.GetAllByProject(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}

	counts := make(map[entities.TaskStatus]int)
	for _, task := range tasks {
		counts[task.Status]++
	}
	return counts, nil
}

// CountByPriority groups the project's live tasks by priority.
func (r *TaskRepository) CountByPriority(ctx context.Context, projectID, ownerID string) (map[entities.Priority]int, error) {
	tasks, err := r.GetAllByProject(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}

	counts := make(map[entities.Priority]int)
	for _, task := range tasks {
		counts[task.Priority]++
	}
	return counts, nil
}

func (r *TaskRepository) invalidate(ctx context.Context, id, projectID string) {
	if err := r.cache.Remove(ctx, taskKey(id)); err != nil {
		r.logger.LogCacheInvalidationFailure(taskKey(id), err)
	}
	r.invalidateProject(ctx, projectID)
}

func (r *TaskRepository) invalidateProject(ctx context.Context, projectID string) {
	if err := r.cache.RemoveByPrefix(ctx, taskProjectPrefix(projectID)); err != nil {
		r.logger.LogCacheInvalidationFailure(taskProjectPrefix(projectID), err)
	}
}

func scanTask(row rowScanner) (*entities.Task, error) {
	var task entities.Task
	var tags pq.StringArray

	err := row.Scan(
		&task.ID,
		&task.ProjectID,
		&task.OwnerID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.AssignedToID,
		&task.CreatedByID,
		&task.DueDate,
		&task.CompletedAt,
		&task.EstimatedHours,
		&tags,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.IsDeleted,
		&task.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Tags = tags
	return &task, nil
}

func collectTasks(rows *sql.Rows) ([]*entities.Task, error) {
	var tasks []*entities.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tasks, nil
}
