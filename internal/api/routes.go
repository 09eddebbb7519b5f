package api

import (
	"github.com/gorilla/mux"
)

func SetupRoutes(h *EventsHandler) *mux.Router {
	r := mux.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.HandleFunc("/apps/{app_id}/events", h.PostEvents).Methods("POST")
	r.HandleFunc("/apps/{app_id}/events", h.EventsPreflight).Methods("OPTIONS")

	return r
}
