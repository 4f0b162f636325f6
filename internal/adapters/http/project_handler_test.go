package http_test

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/taskhub/core/internal/adapters/http"
	"github.com/taskhub/core/internal/application/etag"
	"github.com/taskhub/core/internal/domain/entities"
	"github.com/taskhub/core/internal/infrastructure/logger"
)

const testUserID = "user-1"

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = &testValidator{validate: validator.New()}
	return e
}

func newContext(e *echo.Echo, req *nethttp.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(httpadapter.ContextKeyUserID, testUserID)
	return c, rec
}

func seedProject(svc *fakeProjectService, id string) *entities.Project {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &entities.Project{
		ID:        id,
		OwnerID:   testUserID,
		Name:      "Release",
		Status:    entities.ProjectStatusActive,
		MemberIDs: []string{testUserID},
		CreatedAt: now,
		UpdatedAt: now,
	}
	svc.seed(p)
	return p
}

func TestProjectHandler_GetProjectSetsETag(t *testing.T) {
	e := newTestEcho()
	svc := newFakeProjectService()
	seedProject(svc, "p1")
	h := httpadapter.NewProjectHandler(svc, &fakeAnalyticsService{}, logger.NewNop())

	req := httptest.NewRequest(nethttp.MethodGet, "/", nil)
	c, rec := newContext(e, req)
	c.SetPath("/projects/:id")
	c.SetParamNames("id")
	c.SetParamValues("p1")

	require.NoError(t, h.GetProject(c))
	assert.Equal(t, nethttp.StatusOK, rec.Code)

	token := rec.Header().Get("ETag")
	require.NotEmpty(t, token)
	assert.True(t, strings.HasPrefix(token, `"`))

	var got entities.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "p1", got.ID)
}

func TestProjectHandler_IfNoneMatchReturns304(t *testing.T) {
	e := newTestEcho()
	svc := newFakeProjectService()
	p := seedProject(svc, "p1")
	h := httpadapter.NewProjectHandler(svc, &fakeAnalyticsService{}, logger.NewNop())

	token, err := etag.Generate(p)
	require.NoError(t, err)

	req := httptest.NewRequest(nethttp.MethodGet, "/", nil)
	req.Header.Set("If-None-Match", token)
	c, rec := newContext(e, req)
	c.SetPath("/projects/:id")
	c.SetParamNames("id")
	c.SetParamValues("p1")

	require.NoError(t, h.GetProject(c))
	assert.Equal(t, nethttp.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
	// the token is still advertised on the 304
	assert.Equal(t, token, rec.Header().Get("ETag"))
}

func TestProjectHandler_UpdateWithoutIfMatchIs428(t *testing.T) {
	e := newTestEcho()
	svc := newFakeProjectService()
	seedProject(svc, "p1")
	h := httpadapter.NewProjectHandler(svc, &fakeAnalyticsService{}, logger.NewNop())

	req := httptest.NewRequest(nethttp.MethodPut, "/", strings.NewReader(`{"name":"Renamed"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c, _ := newContext(e, req)
	c.SetPath("/projects/:id")
	c.SetParamNames("id")
	c.SetParamValues("p1")

	err := h.UpdateProject(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, nethttp.StatusPreconditionRequired, httpErr.Code)

	// nothing changed
	current, getErr := svc.GetProject(nil, "p1", testUserID)
	require.NoError(t, getErr)
	assert.Equal(t, "Release", current.Name)
}

func TestProjectHandler_UpdateWithStaleTokenIs412(t *testing.T) {
	e := newTestEcho()
	svc := newFakeProjectService()
	seedProject(svc, "p1")
	h := httpadapter.NewProjectHandler(svc, &fakeAnalyticsService{}, logger.NewNop())

	req := httptest.NewRequest(nethttp.MethodPut, "/", strings.NewReader(`{"name":"Renamed"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("If-Match", `"deadbeef"`)
	c, _ := newContext(e, req)
	c.SetPath("/projects/:id")
	c.SetParamNames("id")
	c.SetParamValues("p1")

	err := h.UpdateProject(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, nethttp.StatusPreconditionFailed, httpErr.Code)

	current, getErr := svc.GetProject(nil, "p1", testUserID)
	require.NoError(t, getErr)
	assert.Equal(t, "Release", current.Name)
	assert.Greater(t, svc.freshReads, 0)
}

func TestProjectHandler_UpdateAcceptsIfMatchList(t *testing.T) {
	e := newTestEcho()
	svc := newFakeProjectService()
	project := seedProject(svc, "p1")
	h := httpadapter.NewProjectHandler(svc, &fakeAnalyticsService{}, logger.NewNop())

	token, err := etag.Generate(project)
	require.NoError(t, err)

	// If-Match may carry several validators; one current token suffices
	req := httptest.NewRequest(nethttp.MethodPut, "/", strings.NewReader(`{"name":"Renamed"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("If-Match", `"deadbeef", `+token)
	c, rec := newContext(e, req)
	c.SetPath("/projects/:id")
	c.SetParamNames("id")
	c.SetParamValues("p1")

	require.NoError(t, h.UpdateProject(c))
	assert.Equal(t, nethttp.StatusOK, rec.Code)

	current, getErr := svc.GetProject(nil, "p1", testUserID)
	require.NoError(t, getErr)
	assert.Equal(t, "Renamed", current.Name)
}

// End to end token lifecycle: the token from a GET authorizes exactly one
// successful replace; replaying it afterwards must fail.
func TestProjectHandler_TokenLifecycle(t *testing.T) {
	e := newTestEcho()
	svc := newFakeProjectService()
	seedProject(svc, "p1")
	h := httpadapter.NewProjectHandler(svc, &fakeAnalyticsService{}, logger.NewNop())

	// GET to obtain the first token
	req := httptest.NewRequest(nethttp.MethodGet, "/", nil)
	c, rec := newContext(e, req)
	c.SetPath("/projects/:id")
	c.SetParamNames("id")
	c.SetParamValues("p1")
	require.NoError(t, h.GetProject(c))
	first := rec.Header().Get("ETag")
	require.NotEmpty(t, first)

	// PUT with the current token succeeds and yields a new token
	req = httptest.NewRequest(nethttp.MethodPut, "/", strings.NewReader(`{"name":"Renamed"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("If-Match", first)
	c, rec = newContext(e, req)
	c.SetPath("/projects/:id")
	c.SetParamNames("id")
	c.SetParamValues("p1")
	require.NoError(t, h.UpdateProject(c))
	assert.Equal(t, nethttp.StatusOK, rec.Code)

	second := rec.Header().Get("ETag")
	require.NotEmpty(t, second)
	assert.NotEqual(t, first, second)

	// replaying the first token is now a conflict
	req = httptest.NewRequest(nethttp.MethodPut, "/", strings.NewReader(`{"name":"Again"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("If-Match", first)
	c, _ = newContext(e, req)
	c.SetPath("/projects/:id")
	c.SetParamNames("id")
	c.SetParamValues("p1")

	err := h.UpdateProject(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, nethttp.StatusPreconditionFailed, httpErr.Code)
}

func TestProjectHandler_DeleteWithCurrentToken(t *testing.T) {
	e := newTestEcho()
	svc := newFakeProjectService()
	p := seedProject(svc, "p1")
	h := httpadapter.NewProjectHandler(svc, &fakeAnalyticsService{}, logger.NewNop())

	token, err := etag.Generate(p)
	require.NoError(t, err)

	req := httptest.NewRequest(nethttp.MethodDelete, "/", nil)
	req.Header.Set("If-Match", token)
	c, rec := newContext(e, req)
	c.SetPath("/projects/:id")
	c.SetParamNames("id")
	c.SetParamValues("p1")

	require.NoError(t, h.DeleteProject(c))
	assert.Equal(t, nethttp.StatusNoContent, rec.Code)

	_, getErr := svc.GetProject(nil, "p1", testUserID)
	assert.ErrorIs(t, getErr, entities.ErrProjectNotFound)
}

func TestProjectHandler_WildcardIfMatchAlwaysProceeds(t *testing.T) {
	e := newTestEcho()
	svc := newFakeProjectService()
	seedProject(svc, "p1")
	h := httpadapter.NewProjectHandler(svc, &fakeAnalyticsService{}, logger.NewNop())

	req := httptest.NewRequest(nethttp.MethodDelete, "/", nil)
	req.Header.Set("If-Match", "*")
	c, rec := newContext(e, req)
	c.SetPath("/projects/:id")
	c.SetParamNames("id")
	c.SetParamValues("p1")

	require.NoError(t, h.DeleteProject(c))
	assert.Equal(t, nethttp.StatusNoContent, rec.Code)
}

func TestProjectHandler_CreateReturns201WithETag(t *testing.T) {
	e := newTestEcho()
	svc := newFakeProjectService()
	h := httpadapter.NewProjectHandler(svc, &fakeAnalyticsService{}, logger.NewNop())

	req := httptest.NewRequest(nethttp.MethodPost, "/", strings.NewReader(`{"name":"New Project"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c, rec := newContext(e, req)
	c.SetPath("/projects")

	require.NoError(t, h.CreateProject(c))
	assert.Equal(t, nethttp.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	var got entities.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, entities.ProjectStatusPlanning, got.Status)
	assert.Equal(t, testUserID, got.OwnerID)
}

func TestProjectHandler_CreateRejectsMissingName(t *testing.T) {
	e := newTestEcho()
	svc := newFakeProjectService()
	h := httpadapter.NewProjectHandler(svc, &fakeAnalyticsService{}, logger.NewNop())

	req := httptest.NewRequest(nethttp.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c, _ := newContext(e, req)

	err := h.CreateProject(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, nethttp.StatusBadRequest, httpErr.Code)
}

func TestProjectHandler_ListReturnsEnvelope(t *testing.T) {
	e := newTestEcho()
	svc := newFakeProjectService()
	seedProject(svc, "p1")
	h := httpadapter.NewProjectHandler(svc, &fakeAnalyticsService{}, logger.NewNop())

	req := httptest.NewRequest(nethttp.MethodGet, "/?pageNumber=0&pageSize=500", nil)
	c, rec := newContext(e, req)
	c.SetPath("/projects")

	require.NoError(t, h.ListProjects(c))
	assert.Equal(t, nethttp.StatusOK, rec.Code)

	var envelope struct {
		TotalCount int `json:"total_count"`
		PageNumber int `json:"page_number"`
		PageSize   int `json:"page_size"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 1, envelope.TotalCount)
	// out of range values are reported clamped
	assert.Equal(t, 1, envelope.PageNumber)
	assert.Equal(t, 20, envelope.PageSize)
}

func TestProjectHandler_ListRejectsUnknownStatus(t *testing.T) {
	e := newTestEcho()
	svc := newFakeProjectService()
	h := httpadapter.NewProjectHandler(svc, &fakeAnalyticsService{}, logger.NewNop())

	req := httptest.NewRequest(nethttp.MethodGet, "/?status=bogus", nil)
	c, _ := newContext(e, req)

	err := h.ListProjects(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, nethttp.StatusBadRequest, httpErr.Code)
}

func TestProjectHandler_GetProjectStats(t *testing.T) {
	e := newTestEcho()
	svc := newFakeProjectService()
	seedProject(svc, "p1")
	analytics := &fakeAnalyticsService{stats: map[string]*entities.ProjectStats{
		"p1": {
			ProjectID:            "p1",
			TotalTasks:           4,
			CompletedTasks:       1,
			CompletionPercentage: 25.0,
			TasksByStatus:        map[entities.TaskStatus]int{entities.TaskStatusTodo: 3, entities.TaskStatusDone: 1},
			TasksByPriority:      map[entities.Priority]int{entities.PriorityMedium: 4},
		},
	}}
	h := httpadapter.NewProjectHandler(svc, analytics, logger.NewNop())

	req := httptest.NewRequest(nethttp.MethodGet, "/", nil)
	c, rec := newContext(e, req)
	c.SetPath("/projects/:id/stats")
	c.SetParamNames("id")
	c.SetParamValues("p1")

	require.NoError(t, h.GetProjectStats(c))
	assert.Equal(t, nethttp.StatusOK, rec.Code)

	var got entities.ProjectStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 4, got.TotalTasks)
	assert.Equal(t, 25.0, got.CompletionPercentage)
}

func TestProjectHandler_NotFoundForOtherOwner(t *testing.T) {
	e := newTestEcho()
	svc := newFakeProjectService()
	svc.seed(&entities.Project{
		ID:      "p2",
		OwnerID: "someone-else",
		Name:    "Hidden",
		Status:  entities.ProjectStatusActive,
	})
	h := httpadapter.NewProjectHandler(svc, &fakeAnalyticsService{}, logger.NewNop())

	req := httptest.NewRequest(nethttp.MethodGet, "/", nil)
	c, _ := newContext(e, req)
	c.SetPath("/projects/:id")
	c.SetParamNames("id")
	c.SetParamValues("p2")

	err := h.GetProject(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, nethttp.StatusNotFound, httpErr.Code)
}
