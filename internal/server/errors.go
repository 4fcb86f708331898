package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/fieldops/pkg/errs"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errs.New(errs.KindUnauthorized, "unauthorized")
	ErrForbidden          = errs.New(errs.KindForbidden, "forbidden")
	ErrNotFound           = errs.New(errs.KindNotFound, "not_found")
	ErrInvalidRequest     = errs.New(errs.KindValidation, "invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, internalPayload()
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    string(errs.KindValidation),
			Code:    "invalid_request",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    string(errs.KindNotFound),
			Code:    "not_found",
			Message: "not found",
		}
	}

	kind := errs.KindOf(err)
	code := errs.CodeOf(err)
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest, domainPayload(kind, code)
	case errs.KindNotFound:
		return http.StatusNotFound, domainPayload(kind, code)
	case errs.KindForbidden:
		return http.StatusForbidden, domainPayload(kind, code)
	case errs.KindUnauthorized:
		return http.StatusUnauthorized, domainPayload(kind, code)
	case errs.KindConflict, errs.KindInvalidState:
		return http.StatusConflict, domainPayload(kind, code)
	default:
		return http.StatusInternalServerError, internalPayload()
	}
}

func domainPayload(kind errs.Kind, code string) errorPayload {
	return errorPayload{
		Type:    string(kind),
		Code:    code,
		Message: code,
	}
}

func internalPayload() errorPayload {
	return errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

// classifyErrorForLog returns the error type and code recorded on the request log line.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	if asValidationErrors(err) != nil {
		return string(errs.KindValidation), "invalid_request"
	}
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited", "rate_limited"
	case errors.Is(err, ErrServiceUnavailable):
		return "service_unavailable", "service_unavailable"
	case errors.Is(err, gorm.ErrRecordNotFound):
		return string(errs.KindNotFound), "not_found"
	}
	code := errs.CodeOf(err)
	if code == "" {
		code = "internal_error"
	}
	return string(errs.KindOf(err)), code
}
