package restmachinery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/krancour/queuebridge/internal/file"
	"github.com/krancour/queuebridge/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Server is an interface for the component that responds to HTTP API requests
type Server interface {
	// ListenAndServe causes the API server to start serving HTTP requests. It
	// will block until the context is canceled or an error occurs.
	ListenAndServe(ctx context.Context) error
	// Handler returns the server's fully decorated http.Handler.
	Handler() http.Handler
}

type server struct {
	*BaseEndpoints // The server itself exposes health check endpoints
	config         Config
	handler        http.Handler
	logger         *zap.Logger
}

// NewServer returns a REST API server
func NewServer(
	config Config,
	baseEndpoints *BaseEndpoints,
	endpoints []Endpoints,
) Server {
	router := mux.NewRouter()
	router.StrictSlash(true)

	for _, eps := range endpoints {
		eps.Register(router)
	}

	s := &server{
		BaseEndpoints: baseEndpoints,
		config:        config,
		logger:        baseEndpoints.Logger.Named("api-server"),
	}

	// Health check
	router.HandleFunc(
		"/healthz",
		s.checkHealth, // No filters applied to this request
	).Methods(http.MethodGet)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// Reverse proxies' X-Forwarded-* and Forwarded headers are honored
	s.handler = handlers.ProxyHeaders(cors.New(
		cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedHeaders: []string{"*"},
			AllowedMethods: []string{
				http.MethodGet,
				http.MethodPost,
				http.MethodOptions,
			},
		},
	).Handler(caseInsensitivePaths(router)))

	return s
}

func (s *server) Handler() http.Handler {
	return s.handler
}

func (s *server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	if s.config.TLSEnabled() &&
		file.Exists(s.config.TLSCertPath()) &&
		file.Exists(s.config.TLSKeyPath()) {
		s.logger.Info(
			"API server is listening with TLS enabled",
			zap.Int("port", s.config.Port()),
		)
		srv.Handler = s.handler
		go func() {
			errCh <- srv.ListenAndServeTLS(
				s.config.TLSCertPath(),
				s.config.TLSKeyPath(),
			)
		}()
	} else {
		s.logger.Info(
			"API server is listening without TLS",
			zap.Int("port", s.config.Port()),
		)
		srv.Handler = h2c.NewHandler(s.handler, &http2.Server{})
		go func() {
			errCh <- srv.ListenAndServe()
		}()
	}
	select {
	case err := <-errCh:
		return errors.Wrap(err, "error serving API")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(
		context.WithoutCancel(ctx),
		10*time.Second,
	)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "error shutting down API server")
	}
	return nil
}

func (s *server) checkHealth(
	w http.ResponseWriter,
	r *http.Request,
) {
	s.ServeRequest(
		InboundRequest{
			W: w,
			R: r,
			EndpointLogic: func() (interface{}, error) {
				return struct{}{}, nil
			},
			SuccessCode: http.StatusOK,
		},
	)
}

// caseInsensitivePaths rewrites request paths that differ from a registered
// route only by case to that route's canonical path. Routes with variables
// are matched as registered.
func caseInsensitivePaths(router *mux.Router) http.Handler {
	canonical := map[string]string{}
	// nolint: errcheck
	router.Walk(
		func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
			tpl, err := route.GetPathTemplate()
			if err != nil || strings.Contains(tpl, "{") {
				return nil
			}
			canonical[strings.ToLower(tpl)] = tpl
			return nil
		},
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimSuffix(r.URL.Path, "/")
		if tpl, ok := canonical[strings.ToLower(path)]; ok && tpl != path {
			r.URL.Path = tpl
			r.URL.RawPath = ""
		}
		router.ServeHTTP(w, r)
	})
}
