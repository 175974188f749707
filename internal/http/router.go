package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"human-api/internal/handlers"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Vaults         handlers.VaultService
	Memories       handlers.MemoryService
	DB             handlers.Pinger
	Version        string
	DBPath         string
	AllowedOrigins []string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS(deps.AllowedOrigins))

	vaultHandler := handlers.NewVaultHandler(deps.Vaults)
	memoryHandler := handlers.NewMemoryHandler(deps.Memories)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.DB, deps.Vaults))
		r.Method(http.MethodGet, "/system", handlers.NewSystemHandler(deps.Version, deps.DBPath))

		r.Route("/vault", func(r chi.Router) {
			r.Post("/", vaultHandler.Create)
			r.Get("/status", vaultHandler.Status)
			r.Post("/unlock", vaultHandler.Unlock)
			r.Post("/lock", vaultHandler.Lock)
			r.Patch("/settings", vaultHandler.UpdateSettings)
			r.Post("/password", vaultHandler.ChangePassword)
		})

		r.Route("/memories", func(r chi.Router) {
			r.Post("/", memoryHandler.Add)
			r.Get("/search", memoryHandler.Search)
			r.Post("/query", memoryHandler.Query)
			r.Get("/stats", memoryHandler.Stats)
			r.Get("/{id}", memoryHandler.Get)
			r.Put("/{id}", memoryHandler.Update)
			r.Delete("/{id}", memoryHandler.Delete)
			r.Get("/{id}/citations", memoryHandler.Citations)
		})

		r.Get("/tags", memoryHandler.Tags)
		r.Get("/insights", memoryHandler.Insights)
		r.Get("/export", memoryHandler.Export)
		r.Post("/import", memoryHandler.Import)
		r.Post("/embeddings/sync", memoryHandler.SyncEmbeddings)
	})

	return r
}
