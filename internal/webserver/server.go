// Package webserver implements the embedded HTTP server of spec.md §4.3:
// URI routing over a handler table, per-handler access control, Basic/Digest
// authentication, and the response surface handlers use to stream back
// JPEG snapshots, MJPEG, and JSON. It generalizes the teacher's
// ServeMux-plus-middleware layering in web/server.go into that table-driven
// model instead of a bare mux.
package webserver

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler serves one request through the Response surface, matching
// spec.md §4.3's per-URI handler contract.
type Handler interface {
	Handle(resp *Response, req *http.Request, group UserGroup)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(resp *Response, req *http.Request, group UserGroup)

// Handle implements Handler.
func (f HandlerFunc) Handle(resp *Response, req *http.Request, group UserGroup) { f(resp, req, group) }

type registeredHandler struct {
	uri              string
	handler          Handler
	minGroup         UserGroup
	canHandleSubtree bool

	mu             sync.Mutex
	lastAccessTime time.Time
	wasAccessed    bool
}

// Server is the embedded HTTP server of spec.md §4.3.
type Server struct {
	Addr       string
	AuthDomain string
	AuthMethod AuthMethod

	Users  *UserStore
	Logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string]*registeredHandler
	order    []string

	httpServer *http.Server
}

// NewServer creates a server with an empty handler table and user store.
func NewServer(addr, authDomain string, method AuthMethod, logger *zap.Logger) *Server {
	return &Server{
		Addr:       addr,
		AuthDomain: authDomain,
		AuthMethod: method,
		Users:      NewUserStore(),
		Logger:     logger,
		handlers:   make(map[string]*registeredHandler),
	}
}

// AddHandler registers handler for uri. canHandleSubtree lets it also serve
// any path nested under uri; when more than one registered subtree prefix
// matches a request URI, the first one registered wins, per spec.md line 57.
func (s *Server) AddHandler(uri string, handler Handler, minGroup UserGroup, canHandleSubtree bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uri = normalizeURI(uri)
	if _, exists := s.handlers[uri]; !exists {
		s.order = append(s.order, uri)
	}
	s.handlers[uri] = &registeredHandler{
		uri: uri, handler: handler, minGroup: minGroup, canHandleSubtree: canHandleSubtree,
	}
}

// normalizeURI strips a trailing '/' except for the root, matching the
// original's "make sure nothing finishes with / except the root" rule.
func normalizeURI(uri string) string {
	for len(uri) > 1 && strings.HasSuffix(uri, "/") {
		uri = uri[:len(uri)-1]
	}
	if uri == "" {
		uri = "/"
	}
	return uri
}

// findHandler returns the registered handler matching uri: an exact match
// first, then the first-registered subtree prefix that matches, per
// spec.md line 57 ("the first one whose URI is a prefix of the request URI
// wins (registration order)").
func (s *Server) findHandler(uri string) *registeredHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if h, ok := s.handlers[uri]; ok {
		return h
	}

	for _, key := range s.order {
		h := s.handlers[key]
		if !h.canHandleSubtree {
			continue
		}
		prefix := h.uri
		if prefix == "/" || strings.HasPrefix(uri, prefix+"/") {
			return h
		}
	}
	return nil
}

// Start begins listening in the background. It returns once the listener
// is bound; HTTP errors after that are logged, matching the teacher's
// "start server in goroutine, log ListenAndServe's terminal error" pattern.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Addr:         s.Addr,
		Handler:      s.withRequestLogging(http.HandlerFunc(s.serveHTTP)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // MJPEG/event streams are long-lived by design
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			if s.Logger != nil {
				s.Logger.Error("web server error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	uri := normalizeURI(r.URL.Path)
	group := CheckAuthentication(r, s.AuthDomain, s.Users)

	rh := s.findHandler(uri)
	if rh == nil {
		http.NotFound(w, r)
		return
	}
	if group < rh.minGroup {
		SendAuthenticationRequest(w, s.AuthDomain, s.AuthMethod)
		return
	}

	rh.mu.Lock()
	rh.lastAccessTime = time.Now()
	rh.wasAccessed = true
	rh.mu.Unlock()

	resp := NewResponse(w)
	done := make(chan struct{})
	go func() {
		rh.handler.Handle(resp, r, group)
		close(done)
	}()

	select {
	case <-done:
	case <-resp.Done():
		<-done
	case <-r.Context().Done():
		resp.CloseConnection()
		<-done
	}
}

// withRequestLogging assigns a request id and logs method/path/status/
// duration, matching the teacher's loggingResponseWriter + addMiddleware
// pattern in web/server.go, generalized to use a real request id.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		start := time.Now()
		lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lw, r)

		if s.Logger != nil {
			s.Logger.Info("http request",
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status", lw.statusCode),
				zap.Duration("duration", time.Since(start)),
			)
		}
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.statusCode = code
	lw.ResponseWriter.WriteHeader(code)
}

// Flush satisfies http.Flusher so streaming handlers (MJPEG) keep working
// through the logging wrapper.
func (lw *loggingResponseWriter) Flush() {
	if f, ok := lw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// HandlerStatus reports the access-tracking fields spec.md §4.3 names
// (LastAccessTime, WasAccessed) for the handler registered at uri.
func (s *Server) HandlerStatus(uri string) (lastAccess time.Time, wasAccessed bool, ok bool) {
	s.mu.RLock()
	rh, found := s.handlers[normalizeURI(uri)]
	s.mu.RUnlock()
	if !found {
		return time.Time{}, false, false
	}
	rh.mu.Lock()
	defer rh.mu.Unlock()
	return rh.lastAccessTime, rh.wasAccessed, true
}
