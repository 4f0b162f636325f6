package ports

import (
	"context"
	"time"

	"github.com/taskhub/core/internal/domain/entities"
)

// Pagination clamp bounds shared by every list query.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Cache defines the advisory key/value cache used by the repositories.
// Implementations must fail open: a Get that cannot read or decode reports
// a miss, never an error to the caller.
type Cache interface {
	// Get deserializes the value stored under key into dest and reports
	// whether a usable value was found.
	Get(ctx context.Context, key string, dest interface{}) bool
	// Set serializes value and stores it with the given TTL. A zero TTL
	// uses the configured default.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Remove deletes a key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// RemoveByPrefix scans the keyspace and deletes every key with the
	// given prefix. This is O(keys) and must stay off read paths.
	RemoveByPrefix(ctx context.Context, prefix string) error
}

// ProjectRepository defines data access for projects. Every operation is
// scoped by (id, ownerID); cross-owner access is not expressible here.
type ProjectRepository interface {
	Create(ctx context.Context, project *entities.Project) (*entities.Project, error)
	// GetByID serves from cache when possible and falls back to the store.
	GetByID(ctx context.Context, id, ownerID string) (*entities.Project, error)
	// GetFresh always reads the store. Precondition (If-Match) checks must
	// use this path; a stale cache entry must never satisfy them.
	GetFresh(ctx context.Context, id, ownerID string) (*entities.Project, error)
	// List always bypasses the cache and returns (items, totalCount).
	List(ctx context.Context, ownerID string, filter ProjectFilter) ([]*entities.Project, int, error)
	// Update performs a filtered replace; zero matched rows reports
	// entities.ErrProjectNotFound with no partial effect.
	Update(ctx context.Context, project *entities.Project) (*entities.Project, error)
	// Delete soft-deletes with the same match condition as Update.
	Delete(ctx context.Context, id, ownerID string) error
	Exists(ctx context.Context, id, ownerID string) (bool, error)
}

// TaskRepository defines data access for tasks, scoped by project and owner.
type TaskRepository interface {
	Create(ctx context.Context, task *entities.Task) (*entities.Task, error)
	GetByID(ctx context.Context, id, ownerID string) (*entities.Task, error)
	GetFresh(ctx context.Context, id, ownerID string) (*entities.Task, error)
	List(ctx context.Context, projectID, ownerID string, filter TaskFilter) ([]*entities.Task, int, error)
	GetAllByProject(ctx context.Context, projectID, ownerID string) ([]*entities.Task, error)
	Update(ctx context.Context, task *entities.Task) (*entities.Task, error)
	Delete(ctx context.Context, id, ownerID string) error
	Exists(ctx context.Context, id, ownerID string) (bool, error)
	// CountByStatus and CountByPriority load matching rows and group in
	// memory. Acceptable at a few thousand tasks per project; anything
	// bigger needs a store-side aggregate.
	CountByStatus(ctx context.Context, projectID, ownerID string) (map[entities.TaskStatus]int, error)
	CountByPriority(ctx context.Context, projectID, ownerID string) (map[entities.Priority]int, error)
}

// SessionManager is the capability set every auth backend exposes uniformly.
// Callers never branch on the concrete implementation.
type SessionManager interface {
	IssueSession(ctx context.Context, session *entities.Session) error
	ListSessions(ctx context.Context, userID string) ([]*entities.Session, error)
	RevokeSession(ctx context.Context, userID, sessionID string) error
	// SessionActive reports whether the session exists and has not expired.
	SessionActive(ctx context.Context, userID, sessionID string) (bool, error)
}

// ProjectFilter narrows project list queries
type ProjectFilter struct {
	Status   *entities.ProjectStatus
	Search   *string
	Page     int
	PageSize int
}

// TaskFilter narrows task list queries
type TaskFilter struct {
	Status       *entities.TaskStatus
	Priority     *entities.Priority
	AssignedToID *string
	Search       *string
	Page         int
	PageSize     int
}

// Normalize clamps pagination to the server-side bounds: page < 1 becomes 1,
// pageSize outside [1,MaxPageSize] becomes DefaultPageSize.
func (f *ProjectFilter) Normalize() {
	f.Page, f.PageSize = clampPage(f.Page, f.PageSize)
}

func (f *TaskFilter) Normalize() {
	f.Page, f.PageSize = clampPage(f.Page, f.PageSize)
}

func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}
	return page, pageSize
}

// Offset converts the clamped page/pageSize pair to a query offset.
func (f ProjectFilter) Offset() int { return (f.Page - 1) * f.PageSize }

func (f TaskFilter) Offset() int { return (f.Page - 1) * f.PageSize }
