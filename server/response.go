package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/wippyai/engine-bridge/errors"
)

// ErrorBody is the JSON shape of a failed request.
type ErrorBody struct {
	Phase     string `json:"phase,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Op        string `json:"op,omitempty"`
	Path      string `json:"path,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusFor maps an error to an HTTP status. Caller mistakes are 4xx, engine
// faults 422, an engine that is not available 503.
func StatusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	e, ok := errors.As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case errors.KindUnsupported:
		return http.StatusNotFound
	case errors.KindInvalidInput, errors.KindTypeMismatch, errors.KindSourceUnreadable:
		return http.StatusBadRequest
	case errors.KindEngineFault:
		return http.StatusUnprocessableEntity
	case errors.KindCanceled:
		if stderrors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	case errors.KindDisposed, errors.KindNotInitialized:
		return http.StatusServiceUnavailable
	}
	switch e.Phase {
	case errors.PhaseNamespace:
		return http.StatusBadRequest
	case errors.PhaseBootstrap:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := ErrorBody{Message: err.Error(), RequestID: RequestID(r.Context())}
	if e, ok := errors.As(err); ok {
		body.Phase = string(e.Phase)
		body.Kind = string(e.Kind)
		body.Op = e.Op
		body.Path = e.Path
		body.Detail = e.Detail
	}
	writeJSON(w, StatusFor(err), map[string]ErrorBody{"error": body})
}
