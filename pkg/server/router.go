// Package server is the request-handling layer: it maps HTTP endpoints
// onto the decision engine and translates the sealed error set into
// transport statuses. The core never formats HTTP bodies; everything
// HTTP-shaped lives here or in the access middleware.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dataplane/catalog-access/pkg/access"
	"github.com/dataplane/catalog-access/pkg/auth"
	"github.com/dataplane/catalog-access/pkg/permissions"
	"github.com/dataplane/catalog-access/pkg/subjects"
)

// Server bundles the collaborators the HTTP handlers need.
type Server struct {
	parser    *auth.TokenParser
	guard     *access.Guard
	evaluator *access.Evaluator
	resolver  *permissions.Resolver
	subjects  *subjects.Service
	logger    *slog.Logger
}

// New creates a Server.
func New(parser *auth.TokenParser, guard *access.Guard, evaluator *access.Evaluator,
	resolver *permissions.Resolver, subjectService *subjects.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		parser:    parser,
		guard:     guard,
		evaluator: evaluator,
		resolver:  resolver,
		subjects:  subjectService,
		logger:    logger,
	}
}

// Router mounts all routes. Every /api/v1 endpoint requires a valid
// credential; per-endpoint action requirements are declared inline.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(s.parser))

		r.Get("/datasets", s.handleListAuthorisedDatasets)
		r.Get("/datasets/{layer}/{domain}/{dataset}/access", s.handleDatasetAccessCheck)

		r.Group(func(r chi.Router) {
			r.Use(access.RequireActions(s.guard, permissions.ActionUserAdmin))
			r.Get("/permissions", s.handleListPermissions)
			r.Get("/subjects/{subjectId}/permissions", s.handleGetSubjectPermissions)
			r.Post("/subjects", s.handleCreateSubject)
			r.Put("/subjects/{subjectId}/permissions", s.handleSetSubjectPermissions)
		})

		r.Group(func(r chi.Router) {
			r.Use(access.RequireActions(s.guard, permissions.ActionDataAdmin))
			r.Get("/protected-domains", s.handleListProtectedDomains)
			r.Post("/protected-domains", s.handleCreateProtectedDomain)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
