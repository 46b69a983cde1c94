package handler

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"oldschool-site/internal/usecase"
)

const (
	defaultMaxBodyBytes   = 64 << 10
	defaultRequestTimeout = 60 * time.Second
)

type ChatStreamer interface {
	Stream(ctx context.Context, in usecase.ChatInput, sink usecase.TokenSink) (usecase.ChatOutput, error)
}

type PageRenderer interface {
	RenderHome(w io.Writer, now time.Time) error
	RenderLegal(w io.Writer, slug string, now time.Time) error
}

// Options tune the HTTP surface. Assets is required; the rest have defaults.
type Options struct {
	// Assets is served under /static/.
	Assets fs.FS
	// MediaDir, when set, is served under /media/.
	MediaDir       string
	AllowedOrigins []string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// Handler is the site's http.Handler. The same value serves a local
// http.Server and a Lambda function URL.
type Handler struct {
	chat   ChatStreamer
	pages  PageRenderer
	opts   Options
	now    func() time.Time
	router chi.Router
}

func NewHandler(chat ChatStreamer, pages PageRenderer, opts Options) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat service must not be nil")
	}
	if pages == nil {
		return nil, errors.New("handler: page renderer must not be nil")
	}
	if opts.Assets == nil {
		return nil, errors.New("handler: assets must not be nil")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	opts.MediaDir = strings.TrimSpace(opts.MediaDir)

	h := &Handler{chat: chat, pages: pages, opts: opts, now: time.Now}
	h.router = h.buildRouter()
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(correlationID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)

	// No router-wide timeout: the chat route streams. It bounds itself with
	// RequestTimeout instead.

	r.Get("/healthz", h.handleHealth)
	r.Get("/", h.handleHome)
	r.Get("/{slug}", h.handleLegal)
	r.Handle("/static/*", h.staticHandler())
	if h.opts.MediaDir != "" {
		r.Handle("/media/*", mediaHandler(h.opts.MediaDir))
	}

	r.Route("/api", func(r chi.Router) {
		if len(h.opts.AllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: h.opts.AllowedOrigins,
				AllowedMethods: []string{http.MethodPost, http.MethodOptions},
				AllowedHeaders: []string{"Accept", "Content-Type", correlationHeader},
				ExposedHeaders: []string{correlationHeader},
				MaxAge:         300,
			}))
		}
		r.Post("/chat", h.handleChat)
	})

	return r
}
