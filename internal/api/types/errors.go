package types

import (
	"errors"
	"net/http"

	appErr "github.com/cloudconsole/engine/pkg/errors"
)

// FromAppError renders err for a response body. Metadata becomes details.
func FromAppError(err error) *APIError {
	if err == nil {
		return nil
	}
	var e *appErr.AppError
	if errors.As(err, &e) {
		out := &APIError{Code: string(e.Code), Message: e.Message}
		if len(e.Meta) > 0 {
			out.Details = e.Meta
		}
		return out
	}
	return &APIError{Code: string(appErr.CodeInternal), Message: err.Error()}
}

// HTTPStatus maps an error code to a response status.
func HTTPStatus(err error) int {
	switch appErr.CodeOf(err) {
	case appErr.CodeInvalid:
		return http.StatusBadRequest
	case appErr.CodeUnauthorized:
		return http.StatusUnauthorized
	case appErr.CodeForbidden:
		return http.StatusForbidden
	case appErr.CodeNotFound:
		return http.StatusNotFound
	case appErr.CodeConflict, appErr.CodeAlreadyExists:
		return http.StatusConflict
	case appErr.CodePrecondition:
		return http.StatusPreconditionFailed
	case appErr.CodeProvision:
		return http.StatusBadGateway
	case appErr.CodeUnavailable:
		return http.StatusServiceUnavailable
	case appErr.CodeDeadline:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
