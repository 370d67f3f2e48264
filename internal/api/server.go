// Package api exposes the serial connections over HTTP: a small REST
// surface for control and stats, and a WebSocket bridge for live traffic.
package api

import (
	"bufio"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alexconrey/webmux/internal/fsutil"
	"github.com/alexconrey/webmux/internal/metrics"
	"github.com/alexconrey/webmux/internal/serialmux"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server serves the REST API, the WebSocket bridge, and the static frontend.
type Server struct {
	registry  *serialmux.Registry
	fs        fsutil.FileSystem
	staticDir string
}

// Option customizes server construction.
type Option func(*Server)

// WithFileSystem replaces the filesystem used to read the frontend files.
func WithFileSystem(fs fsutil.FileSystem) Option {
	return func(s *Server) { s.fs = fs }
}

// WithStaticDir overrides the directory served at / and /static/*.
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// NewServer creates an API server over the given registry.
func NewServer(registry *serialmux.Registry, opts ...Option) *Server {
	s := &Server{
		registry:  registry,
		fs:        fsutil.OSFileSystem{},
		staticDir: "static",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the route table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(LoggingMiddleware)
	r.Use(corsMiddleware)

	r.Get("/", s.serveIndex)
	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/connections", func(r chi.Router) {
		r.Get("/", s.listConnections)
		r.Get("/{name}", s.getConnectionInfo)
		r.Post("/{name}/send", s.sendData)
		r.Get("/{name}/stats", s.getStats)
		r.Get("/{name}/ws", s.serveWebSocket)
	})

	r.Handle("/static/*", http.StripPrefix("/static/",
		http.FileServer(http.Dir(s.staticDir))))

	return r
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := lrw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// corsMiddleware allows any origin; the frontend may be served from
// anywhere on the operator's network.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
