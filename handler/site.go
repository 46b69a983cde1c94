package handler

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"oldschool-site/internal/site"
)

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.pages.RenderHome(&buf, h.now()); err != nil {
		slog.ErrorContext(r.Context(), "failed to render home page", "correlationId", CorrelationID(r.Context()), "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeHTML(w, buf.Bytes())
}

func (h *Handler) handleLegal(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	var buf bytes.Buffer
	err := h.pages.RenderLegal(&buf, slug, h.now())
	if errors.Is(err, site.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to render legal page", "slug", slug, "correlationId", CorrelationID(r.Context()), "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeHTML(w, buf.Bytes())
}

func writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.Error("failed to write page", "err", err)
	}
}

func (h *Handler) staticHandler() http.Handler {
	files := http.StripPrefix("/static/", http.FileServerFS(h.opts.Assets))
	return cacheFor("public, max-age=86400", noListing(files))
}

func mediaHandler(dir string) http.Handler {
	files := http.StripPrefix("/media/", http.FileServer(http.Dir(dir)))
	return cacheFor("public, max-age=86400", noListing(files))
}

// noListing hides directory indexes.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func cacheFor(value string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", value)
		next.ServeHTTP(w, r)
	})
}
