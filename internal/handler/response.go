package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-user-accounts/internal/model"
	"go-user-accounts/pkg/apierror"
)

// responder renders envelopes. Outside production, failures carry details.
type responder struct {
	exposeDetails bool
}

func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.Response{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

func (rs responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := model.ErrorResponse{
		Message: "Internal server error",
		Errors:  []string{},
	}

	var (
		apiErr   *apierror.APIError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Message = apiErr.Message
		if len(apiErr.Errors) > 0 {
			body.Errors = apiErr.Errors
		}
		body.Details = apiErr.Details
		if cause := errors.Unwrap(apiErr); cause != nil {
			body.Details = cause.Error()
		}
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		}
	case errors.As(err, &tooLarge):
		status = http.StatusRequestEntityTooLarge
		body.Message = "Request body too large"
	case errors.Is(err, model.ErrUserAlreadyExists):
		status = http.StatusConflict
		body.Message = "User with email or username already exists"
	case errors.Is(err, model.ErrRefreshTokenMismatch):
		status = http.StatusUnauthorized
		body.Message = "Unauthorized request"
	default:
		// Log unclassified errors so they are visible in container logs.
		slog.ErrorContext(r.Context(), "unhandled error in writeError", "path", r.URL.Path, "error", err.Error())
		body.Details = err.Error()
	}

	if !rs.exposeDetails {
		body.Details = ""
	}
	body.StatusCode = status

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return apierror.Validation("Invalid JSON body")
	}
	return nil
}
