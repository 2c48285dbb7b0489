package web

// errors.go turns service errors into HTTP responses.
//
// The technical error is logged with the request ID; the client receives
// the mapped core.UserMessage so it can show the message and quote the code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/guarantor/internal/core"
	"github.com/JonMunkholm/guarantor/internal/logging"
	"github.com/JonMunkholm/guarantor/internal/merge"
	"github.com/JonMunkholm/guarantor/internal/sheet"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	var missing *merge.MissingInputError
	var parse *merge.ParseError
	var feed *core.FeedError

	switch {
	case errors.As(err, &missing),
		errors.Is(err, sheet.ErrUnsupportedFormat),
		errors.As(err, &parse):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrRunNotComplete),
		errors.Is(err, core.ErrNothingToPublish),
		errors.Is(err, core.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyMerges):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrSyncNotConfigured):
		return http.StatusNotImplemented
	case errors.As(err, &feed):
		return http.StatusBadGateway
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes its user message as JSON.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondServiceError is respondError with the status derived from err.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, err, statusFor(err))
}

// writeJSON encodes v as JSON.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Warn("json encode error", "error", err)
	}
}
