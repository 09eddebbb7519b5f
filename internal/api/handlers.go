package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/attolytics/attolytics/internal/ingest"
	"github.com/attolytics/attolytics/internal/schema"
	"github.com/attolytics/attolytics/internal/types"
)

// EventsHandler is the HTTP boundary around the ingestor.
type EventsHandler struct {
	schema       *schema.Schema
	ingestor     *ingest.Ingestor
	maxBodyBytes int64
}

func NewEventsHandler(s *schema.Schema, ing *ingest.Ingestor, maxBodyBytes int64) *EventsHandler {
	return &EventsHandler{
		schema:       s,
		ingestor:     ing,
		maxBodyBytes: maxBodyBytes,
	}
}

type eventsRequest struct {
	SecretKey string           `json:"secret_key"`
	Events    []map[string]any `json:"events"`
}

// PostEvents accepts one batch of events for one app.
func (h *EventsHandler) PostEvents(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["app_id"]
	app, ok := h.schema.Apps[appID]
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "unknown app")
		return
	}
	setCORSHeaders(w, app)

	var req eventsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	// UseNumber keeps integral and fractional JSON numbers distinguishable for
	// the column coercion rules.
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if err := h.ingestor.Ingest(r.Context(), appID, req.SecretKey, r.Header, req.Events); err != nil {
		status, code := statusFor(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			msg = "internal server error"
		}
		writeJSONError(w, status, code, msg)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// EventsPreflight answers CORS preflight for a known app.
func (h *EventsHandler) EventsPreflight(w http.ResponseWriter, r *http.Request) {
	app, ok := h.schema.Apps[mux.Vars(r)["app_id"]]
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "unknown app")
		return
	}
	setCORSHeaders(w, app)
	w.WriteHeader(http.StatusOK)
}

// statusFor maps an ingest error to its HTTP status. Authorization failures
// are reported as not-found so unauthorized callers cannot probe table names.
func statusFor(err error) (int, string) {
	var convErr *types.ConversionError
	switch {
	case errors.Is(err, ingest.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ingest.ErrAppNotFound), errors.Is(err, ingest.ErrTableNotAuthorized):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ingest.ErrBadRequest), errors.As(err, &convErr):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func setCORSHeaders(w http.ResponseWriter, app *schema.App) {
	w.Header().Set("Access-Control-Allow-Origin", app.AllowedOrigin)
	w.Header().Set("Access-Control-Allow-Methods", http.MethodPost)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if app.AllowedOrigin != "*" {
		w.Header().Add("Vary", "Origin")
	}
}
