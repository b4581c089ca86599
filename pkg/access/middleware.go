package access

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dataplane/catalog-access/pkg/auth"
	"github.com/dataplane/catalog-access/pkg/datacatalog"
	"github.com/dataplane/catalog-access/pkg/permissions"
)

// RequireActions returns middleware enforcing the declared actions for
// an endpoint with no target dataset. It expects auth.Middleware to have
// stored the Principal in the request context.
func RequireActions(guard *Guard, actions ...permissions.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				WriteDecisionError(w, auth.ErrInvalidToken)
				return
			}
			if err := guard.CheckEndpoint(r.Context(), principal.Subject, actions); err != nil {
				WriteDecisionError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireDatasetActions returns middleware enforcing the declared
// actions against the dataset named by the {layer}/{domain}/{dataset}
// URL parameters (plus optional {version}).
func RequireDatasetActions(guard *Guard, actions ...permissions.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				WriteDecisionError(w, auth.ErrInvalidToken)
				return
			}

			dataset, err := DatasetFromRequest(r)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
				return
			}

			if err := guard.CheckDataset(r.Context(), principal.Subject, dataset, actions); err != nil {
				WriteDecisionError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DatasetFromRequest builds the target dataset identity from the
// request's URL parameters.
func DatasetFromRequest(r *http.Request) (datacatalog.DatasetMetadata, error) {
	layer, err := permissions.ParseLayerScope(chi.URLParam(r, "layer"))
	if err != nil || layer == permissions.LayerAll {
		return datacatalog.DatasetMetadata{}, errors.New("unknown layer in path")
	}

	dataset := datacatalog.DatasetMetadata{
		Layer:   layer,
		Domain:  chi.URLParam(r, "domain"),
		Dataset: chi.URLParam(r, "dataset"),
	}
	if dataset.Domain == "" || dataset.Dataset == "" {
		return datacatalog.DatasetMetadata{}, errors.New("missing domain or dataset in path")
	}

	if raw := chi.URLParam(r, "version"); raw != "" {
		version, err := strconv.Atoi(raw)
		if err != nil || version <= 0 {
			return datacatalog.DatasetMetadata{}, errors.New("invalid version in path")
		}
		dataset.Version = version
	}
	return dataset, nil
}

// WriteDecisionError maps the sealed decision error set onto transport
// statuses. Store and catalog outages surface as 503, never as a deny:
// operators must be able to tell "the policy says no" from "the policy
// engine is down".
func WriteDecisionError(w http.ResponseWriter, err error) {
	var authzErr *AuthorisationError
	var storeErr *permissions.StoreUnavailableError
	var catalogErr *datacatalog.CatalogUnavailableError

	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrNoSubject):
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "access token is missing or invalid")
	case errors.As(err, &authzErr):
		writeJSONError(w, http.StatusForbidden, "forbidden", authzErr.Error())
	case errors.Is(err, datacatalog.ErrDatasetNotFound):
		writeJSONError(w, http.StatusBadRequest, "bad_request", "dataset does not exist")
	case errors.As(err, &storeErr), errors.As(err, &catalogErr):
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "authorization backend unavailable")
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "authorization check failed")
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
