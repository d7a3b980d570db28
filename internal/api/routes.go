package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ducdigital/fairy-go/internal/api/handlers"
	apiMiddleware "github.com/ducdigital/fairy-go/internal/api/middleware"
	"github.com/ducdigital/fairy-go/internal/api/websocket"
	"github.com/ducdigital/fairy-go/internal/config"
	"github.com/ducdigital/fairy-go/internal/events"
	"github.com/ducdigital/fairy-go/internal/queue"
)

// Server is the HTTP surface backing the dashboard: queue-scoped
// introspection/enqueue/reschedule, worker admin, live events, metrics.
type Server struct {
	router       *chi.Mux
	config       *config.Config
	queueHandler *handlers.QueueHandler
	adminHandler *handlers.AdminHandler
	wsHub        *websocket.Hub
	wsHandler    *websocket.Handler
	publisher    *events.RedisPubSub
}

// NewServer creates a new HTTP server. client is the queue factory used to
// resolve the {queue} path parameter on every queue-scoped route;
// redisClient backs worker admin (heartbeat/pause keys), independent of
// any particular queue's store.
func NewServer(cfg *config.Config, client *queue.Client, redisClient *redis.Client, publisher *events.RedisPubSub) *Server {
	wsHub := websocket.NewHub(publisher)

	s := &Server{
		router:       chi.NewRouter(),
		config:       cfg,
		queueHandler: handlers.NewQueueHandler(client, cfg.Queue.MaxQueueSize),
		adminHandler: handlers.NewAdminHandler(redisClient, publisher),
		wsHub:        wsHub,
		wsHandler:    websocket.NewHandler(wsHub),
		publisher:    publisher,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(apiMiddleware.RequestLogger())
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Heartbeat("/health"))
}

func (s *Server) authConfig() *apiMiddleware.AuthConfig {
	keys := make(map[string]bool, len(s.config.Auth.APIKeys))
	for _, k := range s.config.Auth.APIKeys {
		keys[k] = true
	}
	return &apiMiddleware.AuthConfig{
		Enabled:   s.config.Auth.Enabled,
		JWTSecret: s.config.Auth.JWTSecret,
		APIKeys:   keys,
	}
}

func (s *Server) setupRoutes() {
	authCfg := s.authConfig()

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Use(apiMiddleware.Auth(authCfg))

		if s.config.Queue.RateLimitRPS > 0 {
			r.Use(apiMiddleware.ClientRateLimit(s.config.Queue.RateLimitRPS))
		}

		r.Get("/queues", s.queueHandler.ListQueues)

		r.Route("/queues/{queue}", func(r chi.Router) {
			if s.config.Queue.RateLimitRPS > 0 {
				r.Use(apiMiddleware.QueueRateLimit(s.config.Queue.RateLimitRPS))
			}

			r.Get("/statistics", s.queueHandler.Statistics)
			r.Get("/failed", s.queueHandler.Failed)
			r.Get("/blocked", s.queueHandler.Blocked)
			r.Get("/recent", s.queueHandler.Recent)
			r.Get("/slowest", s.queueHandler.Slowest)
			r.Get("/processing", s.queueHandler.Processing)

			r.Group(func(r chi.Router) {
				if authCfg.Enabled {
					r.Use(apiMiddleware.RequireOperator)
				}
				r.Post("/tasks", s.queueHandler.Enqueue)
				r.Post("/reschedule", s.queueHandler.Reschedule)
			})
		})
	})

	s.router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Use(apiMiddleware.Auth(authCfg))

		r.Get("/health", s.adminHandler.HealthCheck)
		r.Get("/workers", s.adminHandler.ListWorkers)
		r.Get("/workers/{workerID}", s.adminHandler.GetWorker)

		r.Group(func(r chi.Router) {
			if authCfg.Enabled {
				r.Use(apiMiddleware.RequireOperator)
			}
			r.Post("/workers/{workerID}/pause", s.adminHandler.PauseWorker)
			r.Post("/workers/{workerID}/resume", s.adminHandler.ResumeWorker)
		})
	})

	s.router.Get("/ws", s.wsHandler.ServeWS)

	if s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, promhttp.Handler())
	}
}

// Start starts the WebSocket hub.
func (s *Server) Start(ctx context.Context) {
	go s.wsHub.Run(ctx)
}

// Stop stops the WebSocket hub.
func (s *Server) Stop() {
	s.wsHub.Stop()
}

// Router returns the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Publisher returns the event publisher.
func (s *Server) Publisher() *events.RedisPubSub {
	return s.publisher
}
