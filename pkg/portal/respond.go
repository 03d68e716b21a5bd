package portal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Veraticus/member-portal/pkg/auth"
	"github.com/Veraticus/member-portal/pkg/content"
	"github.com/Veraticus/member-portal/pkg/idle"
	"github.com/Veraticus/member-portal/pkg/log"
	"github.com/Veraticus/member-portal/pkg/monitor"
	"github.com/Veraticus/member-portal/pkg/notification"
	"github.com/Veraticus/member-portal/pkg/store"
	"github.com/Veraticus/member-portal/pkg/types"
)

// maxBodySize caps JSON request bodies.
const maxBodySize = 64 << 10

var errBadJSON = errors.New("invalid JSON body")

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	Toasts []toast           `json:"toasts,omitempty"`
}

// toast is a user-facing message delivered with a response.
type toast struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

func toToasts(ns []notification.Notification) []toast {
	if len(ns) == 0 {
		return nil
	}
	out := make([]toast, len(ns))
	for i, n := range ns {
		out[i] = toast{Title: n.Title, Message: n.Message, Kind: n.Kind}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return nil
}

// writeErr maps domain errors to status codes. Unexpected errors are logged
// and reported without detail.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var verrs types.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Fields: verrs})
	case errors.Is(err, errBadJSON):
		writeError(w, http.StatusBadRequest, "invalid JSON body")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrNoSession), errors.Is(err, monitor.ErrUnknownSession):
		writeError(w, http.StatusUnauthorized, "not signed in")
	case errors.Is(err, auth.ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, idle.ErrUnknownSignal), errors.Is(err, content.ErrUnknownTier):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
