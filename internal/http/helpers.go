package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"gagyebu/internal/core"
)

// envelope is the uniform response shape: {"success": true, "data": ...}
// on success, {"success": false, "error": ...} on failure.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: msg})
}

// writeServiceError maps domain errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrRuleForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, core.ErrDuplicateTransaction):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidFrequency),
		errors.Is(err, core.ErrInvalidDayRule),
		errors.Is(err, core.ErrFutureStartDate),
		errors.Is(err, core.ErrCategoryNotFound),
		errors.Is(err, core.ErrInvalidDateRange),
		errors.Is(err, core.ErrRangeTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Unhandled service error", "error", err, "url", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// userID extracts the authenticated user from the X-User-ID header set by
// the upstream gateway. Zero means unauthenticated.
func userID(r *http.Request) int64 {
	v := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if v == "" {
		return 0
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// requireUser writes a 401 and returns 0 when the user header is missing.
func requireUser(w http.ResponseWriter, r *http.Request) int64 {
	id := userID(r)
	if id == 0 {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
	}
	return id
}

// parseID parses a path segment as a positive integer ID.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// parseDateParam parses an optional YYYY-MM-DD value. An empty string
// yields the zero Date.
func parseDateParam(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
