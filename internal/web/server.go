package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hpungsan/lenote/internal/config"
	"github.com/hpungsan/lenote/internal/db"
	"github.com/hpungsan/lenote/internal/media"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// slowDelay is added to every request when config.Slow is set.
const slowDelay = 100 * time.Millisecond

// Options configures a Server.
type Options struct {
	Store   *db.Store
	Images  *media.Extractor
	Config  *config.Config
	DataDir string
	Version string
	Logger  *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    *db.Store
	images   *media.Extractor
	cfg      *config.Config
	logger   *slog.Logger
	validate *Validator
	renderer *Renderer
	router   *chi.Mux
	resDir   string
}

// NewServer builds the router with every route and middleware attached.
func NewServer(opts Options) (*Server, error) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to create template sub-FS: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	s := &Server{
		store:    opts.Store,
		images:   opts.Images,
		cfg:      cfg,
		logger:   logger,
		validate: NewValidator(),
		renderer: NewRenderer(templateSub, opts.Version, logger),
		router:   chi.NewRouter(),
		resDir:   filepath.Join(opts.DataDir, media.ResDir),
	}

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.StripSlashes)
	s.router.Use(securityHeaders)

	if len(s.cfg.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	if s.cfg.Slow {
		s.router.Use(slowDown(slowDelay))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() error {
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return fmt.Errorf("failed to create static sub-FS: %w", err)
	}

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/app", http.StatusFound)
	})
	s.router.Get("/app", s.handleTimeline)
	s.router.Get("/health", s.handleHealth)

	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticSub)))
	s.router.Handle("/res/*", http.StripPrefix("/res/", http.FileServer(http.Dir(s.resDir))))

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/notes", func(r chi.Router) {
			r.Post("/", s.handleSaveNote)
			r.Get("/", s.handleGetNotes)
		})
		r.Route("/tags", func(r chi.Router) {
			r.Get("/", s.handleGetTags)
			r.Get("/{tag}", s.handleGetTagMap)
			r.Post("/{tag}", s.handleUpdateTagMap)
			r.Get("/{tag}/history", s.handleTagHistory)
		})
	})
	return nil
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// slowDown delays every request by d before handling it.
func slowDown(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs one Debug record per request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Run serves srv until ctx is cancelled, then shuts it down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("lenote running", "url", "http://"+srv.Addr)

	if strings.HasPrefix(srv.Addr, "0.0.0.0") || strings.HasPrefix(srv.Addr, "[::]") || strings.HasPrefix(srv.Addr, ":") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
