package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"smart-notes-server/internal/apperr"
	"smart-notes-server/pkg/response"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{apperr.ErrNotFound, http.StatusNotFound},
	{apperr.ErrForbidden, http.StatusForbidden},
	{apperr.ErrConflict, http.StatusConflict},
	{apperr.ErrLocked, http.StatusLocked},
	{apperr.ErrInvalidRequest, http.StatusBadRequest},
	{apperr.ErrInvalidAction, http.StatusBadRequest},
	{apperr.ErrInvalidCredentials, http.StatusUnauthorized},
	{apperr.ErrRateLimited, http.StatusTooManyRequests},
	{apperr.ErrQuotaExceeded, http.StatusPaymentRequired},
	{apperr.ErrConfiguration, http.StatusInternalServerError},
	{apperr.ErrUpstream, http.StatusInternalServerError},
}

// errorStatus maps a service error to a status code and a client-safe
// message. Unknown and store errors become a generic 500.
func errorStatus(err error) (int, string) {
	for _, e := range errorStatuses {
		if !errors.Is(err, e.err) {
			continue
		}
		switch e.err {
		case apperr.ErrInvalidRequest, apperr.ErrInvalidAction, apperr.ErrConflict:
			return e.status, err.Error()
		}
		return e.status, e.err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logFailure(r, err)
	}
	response.Error(w, status, msg)
}

func logFailure(r *http.Request, err error) {
	slog.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
}
