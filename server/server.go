package server

import (
	"bufio"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/xhad/soilreport/pkg/analyzer"
)

const sessionCookie = "soil_session"

//go:embed static/index.html
var static embed.FS

var indexTemplate = template.Must(template.ParseFS(static, "static/index.html"))

type Config struct {
	MaxUploadMB int64
	Streaming   bool
	Theme       string
	SessionTTL  time.Duration
}

type Server struct {
	config   Config
	service  *analyzer.Service
	markdown goldmark.Markdown
	mux      *http.ServeMux
}

func New(config Config, service *analyzer.Service) *Server {
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 20
	}
	if config.Theme == "" {
		config.Theme = "soft"
	}

	s := &Server{
		config:  config,
		service: service,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		mux: http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /api/upload", s.handleUpload)
	s.mux.HandleFunc("POST /api/ask", s.handleAsk)
	s.mux.HandleFunc("POST /api/recommend", s.handleRecommend)
	s.mux.HandleFunc("GET /api/session", s.handleSession)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// ListenAndServe serves until ctx is cancelled, then drains open requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %v", err)
	}
	return nil
}

// session returns the caller's session id, issuing a new cookie when the
// request has none or carries one that is not a uuid.
func (s *Server) session(r *http.Request) (string, *http.Cookie) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value, nil
		}
	}

	id := uuid.NewString()
	cookie := &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if s.config.SessionTTL > 0 {
		cookie.MaxAge = int(s.config.SessionTTL.Seconds())
	}
	return id, cookie
}

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	id, cookie := s.session(r)
	if cookie != nil {
		http.SetCookie(w, cookie)
	}
	return id
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.sessionID(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Theme     string
		Streaming bool
	}{s.config.Theme, s.config.Streaming}
	if err := indexTemplate.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("Error rendering index")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		ev := log.Debug()
		if rec.status >= 500 {
			ev = log.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("Request")
	})
}
