package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wippyai/engine-bridge/config"
	"github.com/wippyai/engine-bridge/engine"
	"github.com/wippyai/engine-bridge/invoke"
	"github.com/wippyai/engine-bridge/loader"
)

// ShutdownTimeout bounds how long Serve waits for in-flight requests.
const ShutdownTimeout = 15 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger. Defaults to the package Logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics records into m. Pass the same m's Observer to the loader to
// get lifecycle metrics. Without it the server keeps its own collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Server serves one engine, obtained from a Loader on first use.
type Server struct {
	loader  *loader.Loader
	log     *zap.Logger
	metrics *Metrics
	router  *mux.Router
	cfg     config.Server

	mu     sync.Mutex
	handle *engine.Handle
	serial *invoke.Serial
}

// New builds a Server. Nothing is bootstrapped until a request needs the engine.
func New(l *loader.Loader, cfg config.Server, opts ...Option) *Server {
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = config.DefaultMaxUpload
	}
	s := &Server{loader: l, cfg: cfg, log: Logger()}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics("")
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, loggingMiddleware(s.log), s.metrics.Middleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/v1/capabilities", s.handleCapabilities).Methods(http.MethodGet)
	r.HandleFunc("/v1/ops/{name}", s.handleInvoke).Methods(http.MethodPost)
	if s.cfg.Metrics {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Serve listens on the configured address until ctx ends, then shuts down
// gracefully and disposes the engine.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// Requests keep ctx values but not its cancellation, so Shutdown
		// drains calls already queued for the engine.
		BaseContext: func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return s.loader.Close(shutdownCtx)
}

// engine returns the queue for the loader's handle, bootstrapping on first use.
func (s *Server) engine(ctx context.Context) (*engine.Handle, *invoke.Serial, error) {
	h, err := s.loader.Initialize(ctx)
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != h {
		s.handle = h
		s.serial = invoke.NewSerial(h)
	}
	return h, s.serial, nil
}
