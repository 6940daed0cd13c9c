package strapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Builder errors. These are programmer errors and are returned by URL, Get
// and Err instead of being folded into an error envelope.
var (
	ErrUnknownField       = errors.New("unknown field")
	ErrEmptyField         = errors.New("field name is required")
	ErrNestedField        = errors.New("field name contains a relation path")
	ErrInvalidOperator    = errors.New("invalid operator")
	ErrOperatorNotAllowed = errors.New("operator not allowed on a relation path")
	ErrEmptyPath          = errors.New("path is required")
	ErrEmptyPathSegment   = errors.New("path contains an empty segment")
	ErrInvalidBetween     = errors.New("between requires exactly two values")
	ErrEmptyValues        = errors.New("operator requires at least one value")
	ErrNilValue           = errors.New("operator requires a value")
	ErrMultipleValues     = errors.New("operator takes a single value")
	ErrInvalidPagination  = errors.New("invalid pagination")
	ErrEmptyRelation      = errors.New("relation name is required")
	ErrPopulateConflict   = errors.New("populate all cannot be combined with a targeted populate")
	ErrEmptyLocale        = errors.New("locale code is required")
	ErrInvalidSortOrder   = errors.New("invalid sort order")
	ErrInvalidRevalidate  = errors.New("revalidate must not be negative")
	ErrNilClient          = errors.New("request has no client")
)

// Static errors for err113 compliance.
var (
	ErrConfigRequired        = errors.New("config is required")
	ErrBaseURLRequired       = errors.New("base URL is required")
	ErrCacheMiss             = errors.New("key not found")
	ErrEntryExpired          = errors.New("entry expired")
	ErrCacheFailure          = errors.New("cache failure")
	ErrDecode                = errors.New("failed to decode response")
	ErrTagsUnsupported       = errors.New("cache does not support tag invalidation")
	ErrNATSConfigRequired    = errors.New("NATS configuration required for NATS cache")
	ErrUnsupportedCacheType  = errors.New("unsupported cache type")
	ErrCacheDisabled         = errors.New("cache disabled")
	ErrKeyNotFoundInAnyCache = errors.New("key not found in any cache")
	ErrKeyCollision          = errors.New("cache key collision")
	ErrNoMoreItems           = errors.New("no more items")
)

// APIError is a non-2xx answer from the content API.
type APIError struct {
	StatusCode int
	Body       ErrorBody
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body.Message == "" {
		return fmt.Sprintf("%s (status: %d)", e.Body.Name, e.StatusCode)
	}

	return fmt.Sprintf("%s: %s (status: %d)", e.Body.Name, e.Body.Message, e.StatusCode)
}

// ParseAPIError builds an APIError from a response body. Strapi error
// documents ({"data": null, "error": {...}}) are decoded as is; anything else
// is described by the HTTP status text and the trimmed body.
func ParseAPIError(statusCode int, body []byte) *APIError {
	var document struct {
		Error *ErrorBody `json:"error"`
	}

	if err := json.Unmarshal(body, &document); err == nil && document.Error != nil {
		errBody := *document.Error
		if errBody.Status == 0 {
			errBody.Status = statusCode
		}

		if errBody.Name == "" {
			errBody.Name = errorName(statusCode)
		}

		return &APIError{StatusCode: statusCode, Body: errBody}
	}

	return &APIError{
		StatusCode: statusCode,
		Body: ErrorBody{
			Status:  statusCode,
			Name:    errorName(statusCode),
			Message: strings.TrimSpace(string(body)),
		},
	}
}

// errorName mirrors the names Strapi uses for its own error documents.
func errorName(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "ValidationError"
	case http.StatusUnauthorized:
		return "UnauthorizedError"
	case http.StatusForbidden:
		return "ForbiddenError"
	case http.StatusNotFound:
		return "NotFoundError"
	case http.StatusTooManyRequests:
		return "RateLimitError"
	}

	if statusCode >= http.StatusInternalServerError {
		return "ApplicationError"
	}

	return strings.ReplaceAll(http.StatusText(statusCode), " ", "") + "Error"
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized checks if the error is an unauthorized error.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsForbidden checks if the error is a forbidden error.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, status int) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == status
	}

	return false
}
