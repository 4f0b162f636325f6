package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/taskhub/core/internal/application/etag"
	"github.com/taskhub/core/internal/domain/entities"
	"github.com/taskhub/core/internal/ports"
)

// Context key under which the auth middleware stores the authenticated
// user id. The repository layer receives this as ownerID; no handler ever
// accepts an owner from the request body or path.
const ContextKeyUserID = "user_id"

// ErrorResponse is the error payload shape produced by the error handler
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is a generic message payload
type MessageResponse struct {
	Message string `json:"message"`
}

// PaginatedResponse wraps list results with their pagination envelope
type PaginatedResponse struct {
	Items      interface{} `json:"items"`
	TotalCount int         `json:"total_count"`
	PageNumber int         `json:"page_number"`
	PageSize   int         `json:"page_size"`
}

func userIDFromContext(c echo.Context) string {
	userID, _ := c.Get(ContextKeyUserID).(string)
	return userID
}

// mapError translates domain errors into transport responses. Not found,
// not owned and soft-deleted all collapse into one 404 so absence leaks no
// ownership information.
func mapError(err error) error {
	switch {
	case errors.Is(err, entities.ErrProjectNotFound), errors.Is(err, entities.ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Resource not found")
	case errors.Is(err, entities.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Session not found")
	case errors.Is(err, entities.ErrPreconditionRequired):
		return echo.NewHTTPError(http.StatusPreconditionRequired, "If-Match header is required for this operation")
	case errors.Is(err, entities.ErrPreconditionFailed):
		return echo.NewHTTPError(http.StatusPreconditionFailed, "Resource has been modified, refetch and retry")
	case errors.Is(err, entities.ErrValidation),
		errors.Is(err, entities.ErrInvalidStatus),
		errors.Is(err, entities.ErrInvalidPriority),
		errors.Is(err, entities.ErrInvalidDateRange):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	default:
		return err
	}
}

// requireIfMatch extracts the concurrency token a mutating request must
// carry. Absence is rejected before the store is touched.
func requireIfMatch(c echo.Context) (string, error) {
	token := c.Request().Header.Get("If-Match")
	if token == "" {
		return "", entities.ErrPreconditionRequired
	}
	return token, nil
}

// checkPrecondition recomputes the fingerprint of the current (store-fresh)
// representation and compares it against the client's token.
func checkPrecondition(payload interface{}, supplied string) error {
	ok, err := etag.Validate(payload, supplied)
	if err != nil {
		return err
	}
	if !ok {
		return entities.ErrPreconditionFailed
	}
	return nil
}

// writeETag attaches the representation's fingerprint to the response.
func writeETag(c echo.Context, payload interface{}) (string, error) {
	token, err := etag.Generate(payload)
	if err != nil {
		return "", err
	}
	c.Response().Header().Set("ETag", token)
	return token, nil
}

// notModified reports whether the request's If-None-Match set matches the
// current token. The 304 short-circuit applies to GETs only.
func notModified(c echo.Context, current string) bool {
	header := c.Request().Header.Get("If-None-Match")
	if header == "" {
		return false
	}
	return etag.IsNotModified(etag.ParseHeader(header), current)
}

func parsePagination(c echo.Context) (page, pageSize int) {
	// out-of-range values are clamped by the repository filter
	page, _ = strconv.Atoi(c.QueryParam("pageNumber"))
	pageSize, _ = strconv.Atoi(c.QueryParam("pageSize"))
	if c.QueryParam("pageNumber") == "" {
		page = 1
	}
	if c.QueryParam("pageSize") == "" {
		pageSize = ports.DefaultPageSize
	}
	return page, pageSize
}

func optionalQueryParam(c echo.Context, name string) *string {
	if v := c.QueryParam(name); v != "" {
		return &v
	}
	return nil
}
