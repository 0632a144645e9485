package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(h *Handler, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.Health)

	// Nodes.
	r.Get("/nodes", h.ListNodes)
	r.Post("/nodes", h.CreateNode)
	r.Get("/nodes/{id}", h.GetNode)
	r.Put("/nodes/{id}", h.UpdateNode)
	r.Delete("/nodes/{id}", h.DeleteNode)

	// Type-specific content.
	r.Get("/essays/{file}", h.GetEssay)
	r.Put("/essays/{file}", h.UpdateEssay)
	r.Get("/curiosity/{id}", h.GetCuriosity)
	r.Get("/durational/{id}", h.GetDurational)

	// Collections.
	r.Get("/phrases", h.ListPhrases)
	r.Put("/phrases", h.ReplacePhrases)
	r.Post("/phrases", h.AddPhrase)
	r.Delete("/phrases/{index}", h.DeletePhrase)
	r.Get("/connections", h.ListConnections)
	r.Put("/connections", h.ReplaceConnections)
	r.Post("/connections", h.AddConnection)
	r.Delete("/connections/{index}", h.DeleteConnection)

	r.Post("/manifest/regenerate", h.RegenerateManifest)

	// Derived views.
	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)

	r.Get("/backups", h.ListBackups)
	r.Post("/backups/restore", h.RestoreBackup)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeFail(w, http.StatusNotFound, "Route not found")
	})

	return r
}
