package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/stemflow/stemflow/internal/auth"
	"github.com/stemflow/stemflow/internal/config"
	handlers "github.com/stemflow/stemflow/internal/handlers/v1alpha1"
	"github.com/stemflow/stemflow/internal/realtime"
	"github.com/stemflow/stemflow/internal/service"
	"github.com/stemflow/stemflow/internal/storage"
	"github.com/stemflow/stemflow/internal/store"
	"github.com/stemflow/stemflow/pkg/log"
	"github.com/stemflow/stemflow/pkg/metrics"
	"go.uber.org/zap"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg      *config.Config
	store    store.Store
	listener net.Listener
	producer service.TaskProducer
	objects  storage.ObjectStore
	registry *realtime.Registry
}

// New returns a new instance of the stemflow api server.
func New(
	cfg *config.Config,
	store store.Store,
	listener net.Listener,
	producer service.TaskProducer,
	objects storage.ObjectStore,
	registry *realtime.Registry,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		listener: listener,
		producer: producer,
		objects:  objects,
		registry: registry,
	}
}

// Router assembles middlewares, the REST routes, the webhooks and the socket endpoint.
func (s *Server) Router() chi.Router {
	authenticator := auth.NewJWTAuthenticator(s.cfg.Auth.JWTSecret, s.store.User())

	router := chi.NewRouter()
	router.Use(
		chiMiddleware.RequestID,
		chiMiddleware.RealIP,
	)
	if s.cfg.Service.AccessLog {
		router.Use(log.Logger(zap.L(), "api_server", s.cfg.Auth.SocketPath))
	} else {
		router.Use(log.ConditionalLogger(s.cfg.Service.LogLevel, zap.L(), "api_server", s.cfg.Auth.SocketPath))
	}
	router.Use(
		chiMiddleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Service.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]any{
			"status":      "ok",
			"onlineUsers": s.registry.OnlineCount(),
		})
	})

	router.Handle(s.cfg.Auth.SocketPath, realtime.NewGateway(s.registry, authenticator, s.cfg.Service.AllowedOrigins))

	h := handlers.NewServiceHandler(
		service.NewJobService(s.store, s.producer, s.objects, s.registry),
		service.NewWebhookService(s.store, s.producer, s.registry, service.WithNumPeaks(s.cfg.Pipeline.NumPeaks)),
		s.cfg.Service.WebhookSecret,
	)

	router.Group(func(r chi.Router) {
		metricMiddleware := metrics.NewMiddleware("api_server")
		if err := metricMiddleware.RegisterDefault(); err != nil {
			zap.S().Named("api_server").Warnw("failed to register request metrics", "error", err)
		}
		r.Use(metricMiddleware.Handler)

		h.RegisterJobRoutes(r, authenticator.Authenticator)
		h.RegisterWebhookRoutes(r)
	})

	return router
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: s.Router()}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
