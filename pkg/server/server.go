// Package server exposes the dashboard over HTTP: JSON snapshots of the
// current metrics and status, plus live updates over SSE and WebSocket.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/solarstation/livedash/pkg/dashboard"
	"github.com/solarstation/livedash/pkg/events"
	"github.com/solarstation/livedash/pkg/status"
)

const (
	keepAliveInterval = 15 * time.Second
	writeTimeout      = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Options configures the server.
type Options struct {
	Tracker *status.Tracker
	Hub     *events.EventHub
	// Stats is optional.
	Stats func() dashboard.Stats
	// AllowedOrigins defaults to every origin.
	AllowedOrigins []string
}

type Server struct {
	tracker  *status.Tracker
	hub      *events.EventHub
	stats    func() dashboard.Stats
	handler  http.Handler
	upgrader websocket.Upgrader

	// done is closed by Close and ends every open stream.
	done      chan struct{}
	closeOnce sync.Once
}

func New(opts Options) *Server {
	if opts.Hub == nil {
		opts.Hub = events.NewEventHub()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		tracker: opts.Tracker,
		hub:     opts.Hub,
		stats:   opts.Stats,
		done:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			// Origins are enforced by the CORS layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	})
	s.handler = c.Handler(s.setupRoutes())

	return s
}

// NewEngine returns a gin engine with panic recovery and logrus access
// logging.
func NewEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logrus.StandardLogger()))
	return router
}

func (s *Server) setupRoutes() *gin.Engine {
	router := NewEngine()
	router.GET("/healthz", s.getHealth)
	router.GET("/api/metrics", s.getMetrics)
	router.GET("/api/status", s.getStatus)
	router.GET("/api/version", getVersion)
	router.GET("/events", s.streamEvents)
	router.GET("/ws", s.serveWebSocket)

	return router
}

// Handler returns the HTTP handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Close ends every open WebSocket and SSE stream. WebSocket clients get a
// going-away close frame. Plain requests are still served.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Run serves on addr until ctx is done, then shuts down gracefully and
// closes the open streams.
func (s *Server) Run(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", addr)
	}
	return s.Serve(ctx, l)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	return serve(ctx, l, s.handler, s.Close)
}

// ListenAndServe serves h on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", addr)
	}
	return Serve(ctx, l, h)
}

// Serve serves h on l until ctx is done, then waits up to five seconds for
// open requests to finish. Streaming handlers end with ctx.
func Serve(ctx context.Context, l net.Listener, h http.Handler) error {
	return serve(ctx, l, h, nil)
}

// serve runs onShutdown, if set, as soon as shutdown begins. Hijacked
// connections are not tracked by http.Server and rely on it to end.
func serve(ctx context.Context, l net.Listener, h http.Handler, onShutdown func()) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	if onShutdown != nil {
		srv.RegisterOnShutdown(onShutdown)
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return pkgerrors.Wrap(err, "http server failed")
	case <-ctx.Done():
	}

	logrus.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return pkgerrors.Wrap(err, "failed to shutdown http server")
	}
	return nil
}
