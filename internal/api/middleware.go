// Package api implements the content REST API using chi.
package api

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS returns middleware that lets the admin UI and landing page call the
// API from the given origins. An empty list allows every origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Encoding"},
		MaxAge:         600,
	}).Handler
}
