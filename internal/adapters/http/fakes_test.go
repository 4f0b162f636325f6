package http_test

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/taskhub/core/internal/domain/entities"
	"github.com/taskhub/core/internal/ports"
)

type testValidator struct {
	validate *validator.Validate
}

func (v *testValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// fakeProjectService backs the handlers with an in-memory map and counts
// fresh reads so tests can assert the precondition path bypasses the cache.
type fakeProjectService struct {
	mu         sync.Mutex
	projects   map[string]*entities.Project
	freshReads int
}

func newFakeProjectService() *fakeProjectService {
	return &fakeProjectService{projects: make(map[string]*entities.Project)}
}

func (s *fakeProjectService) seed(p *entities.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.projects[p.ID] = &cp
}

func (s *fakeProjectService) get(id, ownerID string) (*entities.Project, error) {
	p, ok := s.projects[id]
	if !ok || p.OwnerID != ownerID || p.IsDeleted {
		return nil, entities.ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeProjectService) CreateProject(_ context.Context, ownerID string, req ports.CreateProjectRequest) (*entities.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p := &entities.Project{
		ID:          "proj-" + req.Name,
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		Status:      entities.ProjectStatusPlanning,
		MemberIDs:   []string{ownerID},
		Tags:        req.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Status != "" {
		p.Status = req.Status
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s.projects[p.ID] = p
	cp := *p
	return &cp, nil
}

func (s *fakeProjectService) GetProject(_ context.Context, id, ownerID string) (*entities.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id, ownerID)
}

func (s *fakeProjectService) GetProjectFresh(_ context.Context, id, ownerID string) (*entities.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freshReads++
	return s.get(id, ownerID)
}

func (s *fakeProjectService) UpdateProject(_ context.Context, id, ownerID string, req ports.UpdateProjectRequest) (*entities.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok || p.OwnerID != ownerID || p.IsDeleted {
		return nil, entities.ErrProjectNotFound
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = req.Description
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	p.UpdatedAt = p.UpdatedAt.Add(time.Second)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

func (s *fakeProjectService) DeleteProject(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok || p.OwnerID != ownerID || p.IsDeleted {
		return entities.ErrProjectNotFound
	}
	p.IsDeleted = true
	return nil
}

func (s *fakeProjectService) ListProjects(_ context.Context, ownerID string, filter ports.ProjectFilter) ([]*entities.Project, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entities.Project
	for _, p := range s.projects {
		if p.OwnerID != ownerID || p.IsDeleted {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, len(out), nil
}

// fakeTaskService mirrors fakeProjectService for tasks.
type fakeTaskService struct {
	mu         sync.Mutex
	tasks      map[string]*entities.Task
	freshReads int
}

func newFakeTaskService() *fakeTaskService {
	return &fakeTaskService{tasks: make(map[string]*entities.Task)}
}

func (s *fakeTaskService) seed(t *entities.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tasks[t.ID] = &cp
}

func (s *fakeTaskService) get(id, ownerID string) (*entities.Task, error) {
	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID || t.IsDeleted {
		return nil, entities.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTaskService) CreateTask(_ context.Context, projectID, ownerID string, req ports.CreateTaskRequest) (*entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	t := &entities.Task{
		ID:          "task-" + req.Title,
		ProjectID:   projectID,
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		Status:      entities.TaskStatusTodo,
		Priority:    entities.PriorityMedium,
		CreatedByID: ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Status != "" {
		t.Status = req.Status
	}
	if req.Priority != "" {
		t.Priority = req.Priority
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	s.tasks[t.ID] = t
	cp := *t
	return &cp, nil
}

func (s *fakeTaskService) GetTask(_ context.Context, id, ownerID string) (*entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id, ownerID)
}

func (s *fakeTaskService) GetTaskFresh(_ context.Context, id, ownerID string) (*entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freshReads++
	return s.get(id, ownerID)
}

func (s *fakeTaskService) UpdateTask(_ context.Context, id, ownerID string, req ports.UpdateTaskRequest) (*entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID || t.IsDeleted {
		return nil, entities.ErrTaskNotFound
	}
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Status != nil {
		if err := t.TransitionStatus(*req.Status, time.Now().UTC()); err != nil {
			return nil, err
		}
	}
	t.UpdatedAt = t.UpdatedAt.Add(time.Second)
	cp := *t
	return &cp, nil
}

func (s *fakeTaskService) DeleteTask(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID || t.IsDeleted {
		return entities.ErrTaskNotFound
	}
	t.IsDeleted = true
	return nil
}

func (s *fakeTaskService) ListTasks(_ context.Context, projectID, ownerID string, filter ports.TaskFilter) ([]*entities.Task, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entities.Task
	for _, t := range s.tasks {
		if t.ProjectID != projectID || t.OwnerID != ownerID || t.IsDeleted {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (s *fakeTaskService) UpdateTaskStatus(_ context.Context, id, ownerID string, status entities.TaskStatus) (*entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID || t.IsDeleted {
		return nil, entities.ErrTaskNotFound
	}
	if err := t.TransitionStatus(status, time.Now().UTC()); err != nil {
		return nil, err
	}
	t.UpdatedAt = t.UpdatedAt.Add(time.Second)
	cp := *t
	return &cp, nil
}

func (s *fakeTaskService) AssignTask(_ context.Context, id, ownerID string, assigneeID *string) (*entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID || t.IsDeleted {
		return nil, entities.ErrTaskNotFound
	}
	t.AssignedToID = assigneeID
	t.UpdatedAt = t.UpdatedAt.Add(time.Second)
	cp := *t
	return &cp, nil
}

// fakeAnalyticsService returns canned stats.
type fakeAnalyticsService struct {
	stats map[string]*entities.ProjectStats
}

func (s *fakeAnalyticsService) ProjectStats(_ context.Context, projectID, _ string) (*entities.ProjectStats, error) {
	st, ok := s.stats[projectID]
	if !ok {
		return nil, entities.ErrProjectNotFound
	}
	return st, nil
}

// fakeSessionManager is an in-memory ports.SessionManager.
type fakeSessionManager struct {
	mu       sync.Mutex
	sessions map[string][]*entities.Session
}

func newFakeSessionManager() *fakeSessionManager {
	return &fakeSessionManager{sessions: make(map[string][]*entities.Session)}
}

func (m *fakeSessionManager) IssueSession(_ context.Context, session *entities.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.UserID] = append(m.sessions[session.UserID], session)
	return nil
}

func (m *fakeSessionManager) ListSessions(_ context.Context, userID string) ([]*entities.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID], nil
}

func (m *fakeSessionManager) RevokeSession(_ context.Context, userID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.sessions[userID]
	for i, s := range list {
		if s.ID == sessionID {
			m.sessions[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return entities.ErrSessionNotFound
}

func (m *fakeSessionManager) SessionActive(_ context.Context, userID, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions[userID] {
		if s.ID == sessionID {
			return !s.IsExpired(time.Now().UTC()), nil
		}
	}
	return false, nil
}

var (
	_ ports.ProjectService   = (*fakeProjectService)(nil)
	_ ports.TaskService      = (*fakeTaskService)(nil)
	_ ports.AnalyticsService = (*fakeAnalyticsService)(nil)
	_ ports.SessionManager   = (*fakeSessionManager)(nil)
)
