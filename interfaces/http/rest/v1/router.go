package v1

import (
	"net/http"

	"learnmap-backend/interfaces/http/rest/handlers"
	"learnmap-backend/interfaces/http/rest/middleware"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter creates the v1 API router. The v1 surface predates the websocket
// diagram stream and only exposes the REST resources.
func NewRouter(
	subjectHandler *handlers.SubjectHandler,
	mapHandler *handlers.MapHandler,
	articleHandler *handlers.ArticleHandler,
	logger *zap.Logger,
) *mux.Router {
	router := mux.NewRouter()
	v1 := router.PathPrefix("/api/v1").Subrouter()

	// Apply middleware
	v1.Use(mux.MiddlewareFunc(middleware.Logger(logger)))
	v1.Use(mux.MiddlewareFunc(middleware.Authenticate()))

	// Subject endpoints
	v1.HandleFunc("/subjects", subjectHandler.CreateSubject).Methods("POST")
	v1.HandleFunc("/subjects", subjectHandler.ListSubjects).Methods("GET")

	// Learning map endpoints
	v1.HandleFunc("/maps", mapHandler.CreateMap).Methods("POST")
	v1.HandleFunc("/maps", mapHandler.ListMaps).Methods("GET")
	v1.HandleFunc("/maps/{mapID}", mapHandler.GetMap).Methods("GET")
	v1.HandleFunc("/maps/{mapID}/layout", mapHandler.GetLayout).Methods("GET")
	v1.HandleFunc("/maps/{mapID}/layout", mapHandler.SaveLayout).Methods("PUT")
	v1.HandleFunc("/maps/{mapID}/questions", mapHandler.AskQuestion).Methods("POST")
	v1.HandleFunc("/maps/{mapID}/articles/{articleID}", articleHandler.DeleteArticle).Methods("DELETE")

	// Article endpoints
	v1.HandleFunc("/articles/{articleID}", articleHandler.GetArticle).Methods("GET")
	v1.HandleFunc("/articles/{articleID}/insights", articleHandler.DeriveInsights).Methods("POST")

	// Health check
	v1.HandleFunc("/health", healthCheck).Methods("GET")

	// Add version header middleware
	v1.Use(versionHeaders)

	return router
}

// versionHeaders adds API version headers to responses
func versionHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-API-Version", "v1")
		w.Header().Set("X-API-Deprecated", "true")
		next.ServeHTTP(w, r)
	})
}

// healthCheck provides a health check endpoint
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","version":"v1"}`))
}
