package rest

import (
	"net/http"
	"os"
	"strings"

	"learnmap-backend/application/commands"
	"learnmap-backend/application/commands/bus"
	cmdhandlers "learnmap-backend/application/commands/handlers"
	querybus "learnmap-backend/application/queries/bus"
	"learnmap-backend/interfaces/http/rest/handlers"
	"learnmap-backend/interfaces/http/rest/middleware"
	"learnmap-backend/interfaces/websocket"
	"learnmap-backend/pkg/auth"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	commandBus    *bus.CommandBus
	queryBus      *querybus.QueryBus
	createSubject *commands.CreateSubjectHandler
	createMap     *commands.CreateLearningMapHandler
	orchestrator  *cmdhandlers.AskQuestionOrchestrator
	hub           *websocket.Hub
	rateLimiter   *auth.DistributedRateLimiter
	logger        *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	createSubject *commands.CreateSubjectHandler,
	createMap *commands.CreateLearningMapHandler,
	orchestrator *cmdhandlers.AskQuestionOrchestrator,
	hub *websocket.Hub,
	rateLimiter *auth.DistributedRateLimiter,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus:    commandBus,
		queryBus:      queryBus,
		createSubject: createSubject,
		createMap:     createMap,
		orchestrator:  orchestrator,
		hub:           hub,
		rateLimiter:   rateLimiter,
		logger:        logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	router.Use(versionMiddleware)

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "https://*.learnmap.io"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	// API v1 routes (legacy - redirects to v2)
	router.Route("/api/v1", func(r chi.Router) {
		r.HandleFunc("/*", func(w http.ResponseWriter, req *http.Request) {
			// Redirect v1 requests to v2
			http.Redirect(w, req, strings.Replace(req.URL.Path, "/api/v1", "/api/v2", 1), http.StatusPermanentRedirect)
		})
	})

	// API v2 routes (current)
	router.Route("/api/v2", func(r chi.Router) {
		// Token refresh sits outside Authenticate so expired tokens can
		// still be exchanged
		jwtSecret := os.Getenv("JWT_SECRET")
		if jwtSecret == "" {
			jwtSecret = "development-secret-change-in-production"
		}
		if refresh, err := middleware.NewTokenRefreshMiddleware(jwtSecret); err == nil {
			r.Post("/auth/refresh", refresh.RefreshToken)
		} else {
			rt.logger.Warn("Token refresh endpoint disabled", zap.Error(err))
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate())
			r.Use(middleware.RateLimit(rt.rateLimiter, rt.logger))

			// Subject endpoints
			r.Route("/subjects", func(r chi.Router) {
				subjectHandler := handlers.NewSubjectHandler(rt.createSubject, rt.queryBus, rt.logger)
				r.Post("/", subjectHandler.CreateSubject)
				r.Get("/", subjectHandler.ListSubjects)
			})

			// Learning map endpoints
			r.Route("/maps", func(r chi.Router) {
				mapHandler := handlers.NewMapHandler(rt.createMap, rt.orchestrator, rt.commandBus, rt.queryBus, rt.logger)
				articleHandler := handlers.NewArticleHandler(rt.commandBus, rt.queryBus, rt.logger)
				r.Post("/", mapHandler.CreateMap)
				r.Get("/", mapHandler.ListMaps)
				r.Get("/{mapID}", mapHandler.GetMap)
				r.Get("/{mapID}/layout", mapHandler.GetLayout)
				r.Put("/{mapID}/layout", mapHandler.SaveLayout)
				r.Post("/{mapID}/questions", mapHandler.AskQuestion)
				r.Delete("/{mapID}/articles/{articleID}", articleHandler.DeleteArticle)

				// Live diagram stream
				r.Get("/{mapID}/diagram", func(w http.ResponseWriter, req *http.Request) {
					rt.hub.ServeWS(w, req, chi.URLParam(req, "mapID"))
				})
			})

			// Article endpoints
			r.Route("/articles", func(r chi.Router) {
				articleHandler := handlers.NewArticleHandler(rt.commandBus, rt.queryBus, rt.logger)
				r.Get("/{articleID}", articleHandler.GetArticle)
				r.Post("/{articleID}/insights", articleHandler.DeriveInsights)
			})
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	// Check dependencies (database, etc.)
	// For now, always return ready
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// versionMiddleware adds API version headers to all responses
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Determine API version from path
		version := "v2" // default
		if strings.Contains(r.URL.Path, "/api/v1") {
			version = "v1"
		} else if strings.Contains(r.URL.Path, "/api/v2") {
			version = "v2"
		}

		// Add version headers
		w.Header().Set("X-API-Version", version)
		w.Header().Set("X-API-Latest", "v2")
		w.Header().Set("X-API-Deprecated", "false")

		// For v1, add deprecation notice
		if version == "v1" {
			w.Header().Set("X-API-Deprecated", "true")
			w.Header().Set("X-API-Deprecation-Date", "2025-06-01")
			w.Header().Set("X-API-Sunset-Date", "2025-12-01")
		}

		next.ServeHTTP(w, r)
	})
}
