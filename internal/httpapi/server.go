package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelhost/internal/modelrt"
	"modelhost/internal/session"
	"modelhost/internal/store"
	"modelhost/pkg/types"
)

// ModelService is the lifecycle manager as seen by the HTTP layer.
type ModelService interface {
	Infer(ctx context.Context, req types.InferRequest) (string, error)
	RequestLoad(modelID string, precision modelrt.Precision) (string, error)
	LoadStatuses() []types.ModelLoadStatus
	Status() types.StatusResponse
	Ready() bool
}

// Catalog persists registered models and chat sessions.
type Catalog interface {
	Models(ctx context.Context) ([]store.Model, error)
	RegisterModel(ctx context.Context, m store.Model, localPath string) error
	DeleteModel(ctx context.Context, modelID string) error
	StorageStatuses(ctx context.Context) ([]store.StorageStatus, error)
	CreateSession(ctx context.Context, name string) (store.Session, error)
	Sessions(ctx context.Context) ([]store.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// HistoryCache is the per-session chat history cache.
type HistoryCache interface {
	Load(ctx context.Context, sessionID string) error
	History(sessionID, modelID string, share bool) []session.Entry
	Clear(sessionID, modelID string, share bool)
	Forget(sessionID string)
}

// Services bundles the collaborators the API serves from.
type Services struct {
	Models  ModelService
	Catalog Catalog
	History HistoryCache
}

type api struct {
	models  ModelService
	catalog Catalog
	history HistoryCache
}

// NewMux builds the HTTP handler for the whole service.
func NewMux(s Services) http.Handler {
	a := &api{models: s.Models, catalog: s.Catalog, history: s.History}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(accessLog)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: orDefault(corsAllowedMethods, []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
			AllowedHeaders: orDefault(corsAllowedHeaders, []string{"Accept", "Content-Type", "X-Request-Id", "X-Log-Level"}),
			MaxAge:         300,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", a.listModels)
		r.Post("/models/register", a.registerModel)
		r.Post("/models/delete", a.deleteModel)
		r.Get("/models/status", a.storageStatuses)
		r.Post("/models/load", a.loadModel)
		r.Get("/models/load/status", a.loadStatuses)
		r.Post("/models/infer", a.infer)
		r.Post("/models/clear", a.clearCache)
		r.Post("/models/history", a.chatHistory)

		r.Post("/sessions", a.createSession)
		r.Get("/sessions", a.listSessions)
		r.Delete("/sessions/{id}", a.deleteSession)
		r.Post("/sessions/cache", a.loadSession)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.models.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Ready means a model is loaded and serving.
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.models.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no model ready"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
