package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// Project routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/projects", handler.ListProjects).Methods("GET")
	api.HandleFunc("/projects/{name}", handler.GetProject).Methods("GET")
	api.HandleFunc("/projects/{name}/summary", handler.GetSummary).Methods("GET")
	api.HandleFunc("/projects/{name}/positions", handler.GetPositions).Methods("GET")
	// portfolio must be registered before the metric pattern
	api.HandleFunc("/projects/{name}/series/portfolio", handler.GetPortfolioSeries).Methods("GET")
	api.HandleFunc("/projects/{name}/series/{metric}", handler.GetOptionSeries).Methods("GET")
	api.HandleFunc("/projects/{name}/refresh", handler.RefreshProject).Methods("POST")

	return r
}
