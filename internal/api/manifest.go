package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// Manifest handles GET /manifest.json, the public file the landing page
// loads. The body is brotli-encoded when the client accepts it.
func (h *Handler) Manifest(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.ManifestJSON(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Add("Vary", "Accept-Encoding")

	if !acceptsBrotli(r) {
		_, _ = w.Write(data)
		return
	}
	w.Header().Set("Content-Encoding", "br")
	bw := brotli.NewWriterLevel(w, brotli.DefaultCompression)
	if _, err := bw.Write(data); err != nil {
		slog.Warn("manifest: brotli write failed", slog.String("error", err.Error()))
	}
	if err := bw.Close(); err != nil {
		slog.Warn("manifest: brotli close failed", slog.String("error", err.Error()))
	}
}

func acceptsBrotli(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if enc == "br" {
			return true
		}
	}
	return false
}
