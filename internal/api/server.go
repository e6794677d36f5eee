// Package api exposes the label page, the JSON API and the live websocket.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/blobstore"
	"github.com/dharsanguruparan/LabelDrop/internal/listview"
	"github.com/dharsanguruparan/LabelDrop/internal/metrics"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
	"github.com/dharsanguruparan/LabelDrop/internal/upload"
)

// Advancer applies status transitions.
type Advancer interface {
	Advance(ctx context.Context, id string, target model.Status) error
}

// RecordGetter loads a single record.
type RecordGetter interface {
	Get(ctx context.Context, id string) (*model.UploadRecord, error)
}

// ObjectOpener streams a stored object.
type ObjectOpener interface {
	Open(ctx context.Context, key string) (*blobstore.Object, error)
}

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Uploads     *upload.Workflow
	Statuses    Advancer
	Records     RecordGetter
	Objects     ObjectOpener
	View        *listview.View
	Logger      *zap.Logger
	MaxFileSize int64
	// Ready reports whether backing services are reachable. Nil means always.
	Ready func(ctx context.Context) error
}

// Server hosts the HTTP handlers.
type Server struct {
	deps     Deps
	logger   *zap.Logger
	upgrader websocket.Upgrader
	sessions *sessionPool
}

// New constructs a Server.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Server{
		deps:     deps,
		logger:   deps.Logger,
		sessions: newSessionPool(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/live", s.handleLive)
		r.Route("/uploads", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Post("/", s.handleUpload)
			r.Post("/{id}/{estado}", s.handleAdvance)
			r.Get("/{id}/archivos/{n}/abrir", s.handleOpen)
			r.Get("/{id}/archivos/{n}/descargar", s.handleDownload)
		})
	})
	return r
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info("http listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			respondJSON(w, s.logger, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}
