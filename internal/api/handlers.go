package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/strand/internal/contentservice"
	"github.com/starford/strand/internal/index"
	"github.com/starford/strand/internal/models"
)

const (
	maxBodyBytes       = 10 << 20
	defaultSearchLimit = 20
)

// Handler holds API route handlers.
type Handler struct {
	svc     *contentservice.Service
	index   index.NodeIndex
	started time.Time
}

// NewHandler creates a new Handler. ix serves search and graph queries.
func NewHandler(svc *contentservice.Service, ix index.NodeIndex) *Handler {
	return &Handler{svc: svc, index: ix, started: time.Now()}
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Seconds(),
	}, "")
}

// ListNodes handles GET /api/nodes.
//
//	@Summary		List every node file
//	@Tags			nodes
//	@Produce		json
//	@Success		200	{object}	Envelope
//	@Router			/nodes [get]
func (h *Handler) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.svc.ListNodes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, nodes, "")
}

// GetNode handles GET /api/nodes/{id}.
//
//	@Summary		Get a single node
//	@Tags			nodes
//	@Produce		json
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{object}	Envelope
//	@Failure		404	{object}	Envelope
//	@Router			/nodes/{id} [get]
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.GetNode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, n, "")
}

// CreateNode handles POST /api/nodes.
//
//	@Summary		Create a node and its type-specific content
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		contentservice.CreateNodeInput	true	"Node to create"
//	@Success		201		{object}	Envelope
//	@Failure		400		{object}	Envelope
//	@Failure		409		{object}	Envelope
//	@Router			/nodes [post]
func (h *Handler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var in contentservice.CreateNodeInput
	if !decode(w, r, &in) {
		return
	}
	res, err := h.svc.CreateNode(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, res, res.Message)
}

// UpdateNode handles PUT /api/nodes/{id}.
//
//	@Summary		Merge fields into an existing node
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Node id"
//	@Param			body	body		contentservice.UpdateNodeInput	true	"Fields to change"
//	@Success		200		{object}	Envelope
//	@Failure		400		{object}	Envelope
//	@Failure		404		{object}	Envelope
//	@Router			/nodes/{id} [put]
func (h *Handler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var in contentservice.UpdateNodeInput
	if !decode(w, r, &in) {
		return
	}
	res, err := h.svc.UpdateNode(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, res, res.Message)
}

// DeleteNode handles DELETE /api/nodes/{id}.
//
//	@Summary		Back up and delete a node and its side files
//	@Tags			nodes
//	@Produce		json
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{object}	Envelope
//	@Failure		404	{object}	Envelope
//	@Router			/nodes/{id} [delete]
func (h *Handler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.DeleteNode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, res, res.Message)
}

// GetEssay handles GET /api/essays/{file}.
func (h *Handler) GetEssay(w http.ResponseWriter, r *http.Request) {
	body, err := h.svc.GetEssay(r.Context(), chi.URLParam(r, "file"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, body, "")
}

// UpdateEssay handles PUT /api/essays/{file}.
func (h *Handler) UpdateEssay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content *string `json:"content"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Content == nil {
		writeFail(w, http.StatusBadRequest, "content is required")
		return
	}
	if err := h.svc.UpdateEssay(r.Context(), chi.URLParam(r, "file"), *req.Content); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, nil, "Essay updated successfully")
}

// GetCuriosity handles GET /api/curiosity/{id}.
func (h *Handler) GetCuriosity(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.GetCuriosity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, d, "")
}

// GetDurational handles GET /api/durational/{id}.
func (h *Handler) GetDurational(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.GetDurational(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, d, "")
}

// ListPhrases handles GET /api/phrases.
func (h *Handler) ListPhrases(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListPhrases(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, items, "")
}

// ReplacePhrases handles PUT /api/phrases.
func (h *Handler) ReplacePhrases(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phrases []models.Phrase `json:"phrases"`
	}
	if !decode(w, r, &req) {
		return
	}
	items, err := h.svc.ReplacePhrases(r.Context(), req.Phrases)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, items, "Phrases updated successfully")
}

// AddPhrase handles POST /api/phrases.
func (h *Handler) AddPhrase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phrase models.Phrase `json:"phrase"`
	}
	if !decode(w, r, &req) {
		return
	}
	items, err := h.svc.AddPhrase(r.Context(), req.Phrase)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, items, "Phrase added successfully")
}

// DeletePhrase handles DELETE /api/phrases/{index}?key=.
//
// key, when present, must match the phrase currently at index.
func (h *Handler) DeletePhrase(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	items, err := h.svc.DeletePhrase(r.Context(), i, r.URL.Query().Get("key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, items, "Phrase deleted successfully")
}

// ListConnections handles GET /api/connections.
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListThreads(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, items, "")
}

// ReplaceConnections handles PUT /api/connections.
func (h *Handler) ReplaceConnections(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Connections []models.Thread `json:"connections"`
	}
	if !decode(w, r, &req) {
		return
	}
	items, err := h.svc.ReplaceThreads(r.Context(), req.Connections)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, items, "Connections updated successfully")
}

// AddConnection handles POST /api/connections.
func (h *Handler) AddConnection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Connection models.Thread `json:"connection"`
	}
	if !decode(w, r, &req) {
		return
	}
	items, err := h.svc.AddThread(r.Context(), req.Connection)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, items, "Connection added successfully")
}

// DeleteConnection handles DELETE /api/connections/{index}?key=.
func (h *Handler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	items, err := h.svc.DeleteThread(r.Context(), i, r.URL.Query().Get("key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, items, "Connection deleted successfully")
}

// RegenerateManifest handles POST /api/manifest/regenerate.
func (h *Handler) RegenerateManifest(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.svc.RegenerateManifest(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, nodes, "")
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across titles, descriptions and essays
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	Envelope
//	@Failure		400		{object}	Envelope
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeFail(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	results, err := h.index.Search(q, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, results, "")
}

// Graph handles GET /api/graph.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.index.Graph()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"links": links,
	}, "")
}

// ListBackups handles GET /api/backups.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListBackups(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, list, "")
}

// RestoreBackup handles POST /api/backups/restore.
func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeFail(w, http.StatusBadRequest, "name is required")
		return
	}
	res, err := h.svc.RestoreBackup(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, res, "Backup restored successfully")
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid index")
		return 0, false
	}
	return i, true
}
