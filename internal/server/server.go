// Package server exposes the reader over HTTP and a search websocket.
package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/FocuswithJustin/JuniperReader/internal/logging"
	"github.com/FocuswithJustin/JuniperReader/internal/reader"
)

// Server serves the reader API.
type Server struct {
	svc            *reader.Service
	pager          *reader.Pager
	allowedOrigins []string
	hub            *hub
}

// New returns a Server. The pager must be running.
func New(svc *reader.Service, pager *reader.Pager, allowedOrigins []string) *Server {
	return &Server{
		svc:            svc,
		pager:          pager,
		allowedOrigins: allowedOrigins,
		hub:            newHub(),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/nav/flatten", s.handleFlatten)
	mux.HandleFunc("GET /api/nav/unflatten", s.handleUnflatten)
	mux.HandleFunc("GET /api/nav/parse", s.handleParse)
	mux.HandleFunc("GET /api/chapters/{position}", s.handleChapter)
	mux.HandleFunc("GET /api/annotations", s.handleAnnotations)
	mux.HandleFunc("POST /api/annotations", s.handleCreateAnnotation)
	mux.HandleFunc("PATCH /api/annotations/{id}", s.handleEditAnnotation)
	mux.HandleFunc("DELETE /api/annotations/{id}", s.handleDeleteAnnotation)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /ws/search", s.handleSearchSocket)

	var h http.Handler = mux
	h = SecurityHeadersMiddleware(h)
	h = CORSMiddleware(s.allowedOrigins, h)
	return logging.CombinedMiddleware(h)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logging.ServerStartup("reader_api", addr, "translation", s.svc.Translation())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logging.Info("server stopped", "addr", addr)
	return nil
}
