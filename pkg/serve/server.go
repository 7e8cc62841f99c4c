// Package serve implements the green HTTP server: the route index, the CA
// certificate, a health check, static assets, the GitHub webhook and the
// deployment history API.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/covercash2/green/pkg/deploy"
	"github.com/covercash2/green/pkg/store"
	"github.com/covercash2/green/pkg/types"
	"github.com/covercash2/green/pkg/webhook"
)

// Static routes.
const (
	RouteHome         = "/"
	RouteCertificates = "/api/ca"
	RouteHealthCheck  = "/healthcheck"
	RouteAssets       = "/assets/"
	RouteWebhook      = "/webhook/github"
	RouteDeployments  = "/api/deployments"
)

const (
	// DefaultDeploymentsLimit is the number of deployments listed when no
	// limit is requested.
	DefaultDeploymentsLimit = 20

	// MaxDeploymentsLimit caps the limit query parameter.
	MaxDeploymentsLimit = 500

	shutdownTimeout = 10 * time.Second
)

// WebhookHandler acts on parsed webhook deliveries.
type WebhookHandler interface {
	Handle(ctx context.Context, delivery *webhook.Delivery) (*deploy.Result, error)
}

// Config configures a Server.
type Config struct {
	Routes        types.Routes
	AssetsPath    string
	AssetsIgnore  []string // gitignore-style patterns, relative to AssetsPath
	WebhookSecret []byte
}

// Server serves the green routes.
type Server struct {
	config Config
	certs  *CertWatcher
	hooks  WebhookHandler
	store  store.Store
	logger *zap.Logger
	ignore *ignore.GitIgnore
	index  []byte
	mux    *http.ServeMux
}

// NewServer creates a server. hooks and st may be nil, which disables the
// webhook and deployment routes.
func NewServer(cfg Config, certs *CertWatcher, hooks WebhookHandler, st store.Store, logger *zap.Logger) (*Server, error) {
	if certs == nil {
		return nil, errors.New("certificate watcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	index, err := renderIndex(cfg.Routes)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config: cfg,
		certs:  certs,
		hooks:  hooks,
		store:  st,
		logger: logger,
		index:  index,
		mux:    http.NewServeMux(),
	}
	if len(cfg.AssetsIgnore) > 0 {
		s.ignore = ignore.CompileIgnoreLines(cfg.AssetsIgnore...)
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET "+RouteCertificates, s.handleCertificate)
	s.mux.HandleFunc("GET "+RouteHealthCheck, s.handleHealthCheck)
	if s.config.AssetsPath != "" {
		s.mux.Handle("GET "+RouteAssets, s.assetsHandler())
	}
	if s.hooks != nil {
		s.mux.HandleFunc("POST "+RouteWebhook, s.handleWebhook)
	}
	if s.store != nil {
		s.mux.HandleFunc("GET "+RouteDeployments, s.handleDeployments)
		s.mux.HandleFunc("GET "+RouteDeployments+"/{id}", s.handleDeployment)
	}
}

// Handler returns the server's HTTP handler with request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln and watches the CA certificate until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting", zap.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.certs.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(s.index)
}

func (s *Server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(certificatePage(s.certs.Certificate())))
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(healthBanner))
}

func (s *Server) assetsHandler() http.Handler {
	files := http.StripPrefix(RouteAssets, http.FileServer(http.Dir(s.config.AssetsPath)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(r.URL.Path, RouteAssets)
		if s.ignore != nil && rel != "" && s.ignore.MatchesPath(rel) {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	delivery, err := webhook.Parse(r, s.config.WebhookSecret)
	if errors.Is(err, webhook.ErrUnsupportedEvent) {
		s.logger.Info("ignoring webhook event",
			zap.String("delivery", delivery.ID),
			zap.String("event", delivery.Event))
		s.writeData(w, http.StatusAccepted, "webhook", WebhookData{
			Delivery: delivery.ID,
			Event:    delivery.Event,
			Ignored:  true,
		})
		return
	}
	if err != nil {
		s.logger.Warn("rejecting webhook", zap.Error(err))
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.hooks.Handle(r.Context(), delivery)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, errors.New("failed to send deployment notification to Ultron"))
		return
	}

	s.writeData(w, http.StatusOK, "webhook", WebhookData{
		Delivery:   delivery.ID,
		Event:      delivery.Event,
		Duplicate:  result.Duplicate,
		Deployment: result.Deployment,
	})
}

func (s *Server) handleDeployments(w http.ResponseWriter, r *http.Request) {
	limit := DefaultDeploymentsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = min(n, MaxDeploymentsLimit)
	}

	deployments, err := s.store.ListDeployments(limit)
	if err != nil {
		s.logger.Error("listing deployments", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeData(w, http.StatusOK, "deployments", DeploymentsData{Deployments: deployments})
}

func (s *Server) handleDeployment(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.GetDeployment(r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.logger.Error("getting deployment", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeData(w, http.StatusOK, "deployment", d)
}

func (s *Server) writeData(w http.ResponseWriter, status int, typ string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, status, Response{Success: true, Type: typ, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, Response{Success: false, Type: "error", Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("writing response", zap.Error(err))
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("uri", r.URL.RequestURI()),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
