package services_test

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/taskhub/core/internal/domain/entities"
	"github.com/taskhub/core/internal/ports"
)

// in-memory repositories for service tests; ownership and soft-delete
// scoping mirror the real SQL predicates

type memProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*entities.Project
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{projects: make(map[string]*entities.Project)}
}

func (r *memProjectRepo) Create(_ context.Context, p *entities.Project) (*entities.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.NewString()
	cp := *p
	r.projects[p.ID] = &cp
	return p, nil
}

func (r *memProjectRepo) GetByID(ctx context.Context, id, ownerID string) (*entities.Project, error) {
	return r.GetFresh(ctx, id, ownerID)
}

func (r *memProjectRepo) GetFresh(_ context.Context, id, ownerID string) (*entities.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok || p.OwnerID != ownerID || p.IsDeleted {
		return nil, entities.ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProjectRepo) List(_ context.Context, ownerID string, filter ports.ProjectFilter) ([]*entities.Project, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Project
	for _, p := range r.projects {
		if p.OwnerID == ownerID && !p.IsDeleted {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (r *memProjectRepo) Update(_ context.Context, p *entities.Project) (*entities.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.projects[p.ID]
	if !ok || existing.OwnerID != p.OwnerID || existing.IsDeleted {
		return nil, entities.ErrProjectNotFound
	}
	cp := *p
	r.projects[p.ID] = &cp
	return p, nil
}

func (r *memProjectRepo) Delete(_ context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok || p.OwnerID != ownerID || p.IsDeleted {
		return entities.ErrProjectNotFound
	}
	p.IsDeleted = true
	return nil
}

func (r *memProjectRepo) Exists(_ context.Context, id, ownerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	return ok && p.OwnerID == ownerID && !p.IsDeleted, nil
}

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*entities.Task

	countErr error
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[string]*entities.Task)}
}

func (r *memTaskRepo) Create(_ context.Context, t *entities.Task) (*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = uuid.NewString()
	cp := *t
	r.tasks[t.ID] = &cp
	return t, nil
}

func (r *memTaskRepo) GetByID(ctx context.Context, id, ownerID string) (*entities.Task, error) {
	return r.GetFresh(ctx, id, ownerID)
}

func (r *memTaskRepo) GetFresh(_ context.Context, id, ownerID string) (*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.OwnerID != ownerID || t.IsDeleted {
		return nil, entities.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memTaskRepo) List(_ context.Context, projectID, ownerID string, filter ports.TaskFilter) ([]*entities.Task, int, error) {
	tasks, err := r.GetAllByProject(context.Background(), projectID, ownerID)
	return tasks, len(tasks), err
}

func (r *memTaskRepo) GetAllByProject(_ context.Context, projectID, ownerID string) ([]*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Task
	for _, t := range r.tasks {
		if t.ProjectID == projectID && t.OwnerID == ownerID && !t.IsDeleted {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTaskRepo) Update(_ context.Context, t *entities.Task) (*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tasks[t.ID]
	if !ok || existing.OwnerID != t.OwnerID || existing.IsDeleted {
		return nil, entities.ErrTaskNotFound
	}
	cp := *t
	r.tasks[t.ID] = &cp
	return t, nil
}

func (r *memTaskRepo) Delete(_ context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.OwnerID != ownerID || t.IsDeleted {
		return entities.ErrTaskNotFound
	}
	t.IsDeleted = true
	return nil
}

func (r *memTaskRepo) Exists(_ context.Context, id, ownerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	return ok && t.OwnerID == ownerID && !t.IsDeleted, nil
}

func (r *memTaskRepo) CountByStatus(ctx context.Context, projectID, ownerID string) (map[entities.TaskStatus]int, error) {
	if r.countErr != nil {
		return nil, r.countErr
	}
	tasks, err := r.GetAllByProject(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}
	out := make(map[entities.TaskStatus]int)
	for _, t := range tasks {
		out[t.Status]++
	}
	return out, nil
}

func (r *memTaskRepo) CountByPriority(ctx context.Context, projectID, ownerID string) (map[entities.Priority]int, error) {
	if r.countErr != nil {
		return nil, r.countErr
	}
	tasks, err := r.GetAllByProject(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}
	out := make(map[entities.Priority]int)
	for _, t := range tasks {
		out[t.Priority]++
	}
	return out, nil
}

var (
	_ ports.ProjectRepository = (*memProjectRepo)(nil)
	_ ports.TaskRepository    = (*memTaskRepo)(nil)
)
