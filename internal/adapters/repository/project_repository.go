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

// Cache key conventions: `project:{id}` for point lookups and
// `projects:{ownerID}` as the coarse invalidation prefix for anything
// derived from an owner's project set.
func projectKey(id string) string { return "project:" + id }

func projectOwnerPrefix(ownerID string) string { return "projects:" + ownerID + ":" }

// ProjectRepository implements ports.ProjectRepository with a cache-aside
// layer over Postgres. Reads try the cache first; writes go to the store
// and invalidate. Every query is scoped by (id, owner_id, is_deleted=false)
// so cross-owner access is not expressible at this layer.
type ProjectRepository struct {
	db       *sqlx.DB
	cache    ports.Cache
	cacheTTL time.Duration
	logger   *logger.Logger
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sqlx.DB, cache ports.Cache, cacheTTL time.Duration, log *logger.Logger) *ProjectRepository {
	return &ProjectRepository{
		db:       db,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   log,
	}
}

const projectColumns = `id, owner_id, name, description, status, start_date, end_date, member_ids, tags, created_at, updated_at, is_deleted, deleted_at`

// Create inserts a new project, populates its cache entry and invalidates
// the owner's list prefix.
func (r *ProjectRepository) Create(ctx context.Context, project *entities.Project) (*entities.Project, error) {
	now := entities.Now()
	project.ID = uuid.NewString()
	project.CreatedAt = now
	project.UpdatedAt = now
	project.IsDeleted = false
	project.DeletedAt = nil
	project.EnsureOwnerMembership()

	query := `
		INSERT INTO projects (id, owner_id, name, description, status, start_date, end_date, member_ids, tags, created_at, updated_at, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE)
	`

	_, err := r.db.ExecContext(ctx, query,
		project.ID,
		project.OwnerID,
		project.Name,
		project.Description,
		project.Status,
		project.StartDate,
		project.EndDate,
		pq.Array(project.MemberIDs),
		pq.Array(project.Tags),
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	if err := r.cache.Set(ctx, projectKey(project.ID), project, r.cacheTTL); err != nil {
		r.logger.LogCachePopulateFailure(projectKey(project.ID), err)
	}
	r.invalidateOwner(ctx, project.OwnerID)

	return project, nil
}

// GetByID serves the project from cache when present. The cache is only
// ever populated from an already owner-scoped store read, so a hit does not
// re-check ownership. On miss it queries the store and repopulates.
func (r *ProjectRepository) GetByID(ctx context.Context, id, ownerID string) (*entities.Project, error) {
	var cached entities.Project
	if r.cache.Get(ctx, projectKey(id), &cached) {
		return &cached, nil
	}

	project, err := r.GetFresh(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, projectKey(id), project, r.cacheTTL); err != nil {
		r.logger.LogCachePopulateFailure(projectKey(id), err)
	}

	return project, nil
}

// GetFresh always reads the store. Precondition checks use this path so a
// stale cache entry can never satisfy an If-Match comparison.
func (r *ProjectRepository) GetFresh(ctx context.Context, id, ownerID string) (*entities.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1 AND owner_id = $2 AND is_deleted = FALSE`, projectColumns)

	project, err := scanProject(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// List queries the store directly; list results are deliberately not cached
// (pagination/filter cardinality makes the key-space not worth it).
func (r *ProjectRepository) List(ctx context.Context, ownerID string, filter ports.ProjectFilter) ([]*entities.Project, int, error) {
	filter.Normalize()

	conditions := []string{"owner_id = $1", "is_deleted = FALSE"}
	args := []interface{}{ownerID}
	argIndex := 2

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Search != nil && *filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+*filter.Search+"%")
		argIndex++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM projects %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM projects %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, projectColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.PageSize, filter.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*entities.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return projects, total, nil
}

// Update performs a filtered replace: the write only takes effect when the
// row still matches (id, owner_id, not deleted). Zero matched rows means
// the project vanished or was never the caller's; both collapse to not
// found with no partial effect.
func (r *ProjectRepository) Update(ctx context.Context, project *entities.Project) (*entities.Project, error) {
	project.UpdatedAt = entities.Now()
	project.EnsureOwnerMembership()

	query := `
		UPDATE projects
		SET name = $3, description = $4, status = $5, start_date = $6, end_date = $7, member_ids = $8, tags = $9, updated_at = $10
		WHERE id = $1 AND owner_id = $2 AND is_deleted = FALSE
	`

	result, err := r.db.ExecContext(ctx, query,
		project.ID,
		project.OwnerID,
		project.Name,
		project.Description,
		project.Status,
		project.StartDate,
		project.EndDate,
		pq.Array(project.MemberIDs),
		pq.Array(project.Tags),
		project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	if matched, err := rowsMatched(result); err != nil {
		return nil, err
	} else if !matched {
		return nil, entities.ErrProjectNotFound
	}

	r.invalidate(ctx, project.ID, project.OwnerID)

	return project, nil
}

// Delete soft-deletes with the same match condition as Update. Deleting an
// already-deleted or not-owned project reports not found, never an error.
func (r *ProjectRepository) Delete(ctx context.Context, id, ownerID string) error {
	now := entities.Now()

	query := `
		UPDATE projects
		SET is_deleted = TRUE, deleted_at = $3, updated_at = $3
		WHERE id = $1 AND owner_id = $2 AND is_deleted = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, id, ownerID, now)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if matched, err := rowsMatched(result); err != nil {
		return err
	} else if !matched {
		return entities.ErrProjectNotFound
	}

	r.invalidate(ctx, id, ownerID)

	return nil
}

// Exists reports whether the scoped project exists without fetching it.
func (r *ProjectRepository) Exists(ctx context.Context, id, ownerID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1 AND owner_id = $2 AND is_deleted = FALSE)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check project existence: %w", err)
	}

	return exists, nil
}

// invalidate drops the point entry and the owner's list prefix. Failures
// are surfaced at warn level only; the store write already succeeded.
func (r *ProjectRepository) invalidate(ctx context.Context, id, ownerID string) {
	if err := r.cache.Remove(ctx, projectKey(id)); err != nil {
		r.logger.LogCacheInvalidationFailure(projectKey(id), err)
	}
	r.invalidateOwner(ctx, ownerID)
}

func (r *ProjectRepository) invalidateOwner(ctx context.Context, ownerID string) {
	if err := r.cache.RemoveByPrefix(ctx, projectOwnerPrefix(ownerID)); err != nil {
		r.logger.LogCacheInvalidationFailure(projectOwnerPrefix(ownerID), err)
	}
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*entities.Project, error) {
	var project entities.Project
	var memberIDs, tags pq.StringArray

	err := row.Scan(
		&project.ID,
		&project.OwnerID,
		&project.Name,
		&project.Description,
		&project.Status,
		&project.StartDate,
		&project.EndDate,
		&memberIDs,
		&tags,
		&project.CreatedAt,
		&project.UpdatedAt,
		&project.IsDeleted,
		&project.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	project.MemberIDs = memberIDs
	project.Tags = tags
	return &project, nil
}

func rowsMatched(result sql.Result) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}
