package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dataplane/catalog-access/pkg/access"
	"github.com/dataplane/catalog-access/pkg/auth"
	"github.com/dataplane/catalog-access/pkg/permissions"
	"github.com/dataplane/catalog-access/pkg/subjects"
)

// handleListAuthorisedDatasets handles GET /api/v1/datasets?action=READ.
// It enumerates the datasets the calling principal may act on. The
// enumeration itself is the filter: a caller with no grants gets an
// empty list, not an error.
func (s *Server) handleListAuthorisedDatasets(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		access.WriteDecisionError(w, auth.ErrInvalidToken)
		return
	}

	action, err := parseActionParam(r.URL.Query().Get("action"), permissions.ActionRead)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	datasets, err := s.evaluator.ListAuthorisedDatasets(r.Context(), principal.Subject, action)
	if err != nil {
		access.WriteDecisionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"datasets": datasets})
}

// handleDatasetAccessCheck handles
// GET /api/v1/datasets/{layer}/{domain}/{dataset}/access?action=READ,WRITE.
// The actions are evaluated in the caller-supplied order.
func (s *Server) handleDatasetAccessCheck(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		access.WriteDecisionError(w, auth.ErrInvalidToken)
		return
	}

	dataset, err := access.DatasetFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var actions []permissions.Action
	for _, raw := range strings.Split(r.URL.Query().Get("action"), ",") {
		if raw == "" {
			continue
		}
		action, err := permissions.ParseAction(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		actions = append(actions, action)
	}
	if len(actions) == 0 {
		actions = []permissions.Action{permissions.ActionRead}
	}

	if err := s.guard.CheckDataset(r.Context(), principal.Subject, dataset, actions); err != nil {
		access.WriteDecisionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"allowed": true, "dataset": dataset})
}

// handleListPermissions handles GET /api/v1/permissions: the full stored
// vocabulary, for admin UIs and grant validation.
func (s *Server) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	granted, err := s.resolver.ResolveAll(r.Context())
	if err != nil {
		access.WriteDecisionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": permissionIDs(granted)})
}

// handleGetSubjectPermissions handles
// GET /api/v1/subjects/{subjectId}/permissions. An unknown subject is a
// 404 here, unlike in decision paths where it means zero permissions.
func (s *Server) handleGetSubjectPermissions(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectId")

	granted, err := s.resolver.ResolveSubject(r.Context(), subjectID)
	if err != nil {
		if errors.Is(err, permissions.ErrSubjectNotFound) {
			writeError(w, http.StatusNotFound, "subject not found")
			return
		}
		access.WriteDecisionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subjectId":   subjectID,
		"permissions": permissionIDs(granted),
	})
}

// handleCreateSubject handles POST /api/v1/subjects.
func (s *Server) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var req subjects.CreateSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	subject, err := s.subjects.CreateSubject(r.Context(), req)
	if err != nil {
		writeAdminError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"subjectId":   subject.ID,
		"type":        subject.SubjectType,
		"name":        subject.SubjectName,
	})
}

// handleSetSubjectPermissions handles
// PUT /api/v1/subjects/{subjectId}/permissions.
func (s *Server) handleSetSubjectPermissions(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectId")

	var req struct {
		Permissions []string `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.subjects.SetSubjectPermissions(r.Context(), subjectID, req.Permissions); err != nil {
		if errors.Is(err, permissions.ErrSubjectNotFound) {
			writeError(w, http.StatusNotFound, "subject not found")
			return
		}
		writeAdminError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subjectId":   subjectID,
		"permissions": req.Permissions,
	})
}

// handleListProtectedDomains handles GET /api/v1/protected-domains.
func (s *Server) handleListProtectedDomains(w http.ResponseWriter, r *http.Request) {
	domains, err := s.subjects.ListProtectedDomains(r.Context())
	if err != nil {
		access.WriteDecisionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"domains": domains})
}

// handleCreateProtectedDomain handles POST /api/v1/protected-domains.
func (s *Server) handleCreateProtectedDomain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.subjects.CreateProtectedDomain(r.Context(), req.Domain); err != nil {
		writeAdminError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"domain": strings.ToLower(req.Domain)})
}

// writeAdminError maps admin-service failures: validation problems are
// the caller's fault, conflicts are conflicts, everything else goes
// through the shared decision-error mapping.
func writeAdminError(w http.ResponseWriter, err error) {
	var validationErr *subjects.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, subjects.ErrDomainExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		access.WriteDecisionError(w, err)
	}
}

func parseActionParam(raw string, fallback permissions.Action) (permissions.Action, error) {
	if raw == "" {
		return fallback, nil
	}
	return permissions.ParseAction(raw)
}

func permissionIDs(granted []permissions.Permission) []string {
	ids := make([]string, len(granted))
	for i, permission := range granted {
		ids[i] = permission.ID()
	}
	return ids
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
