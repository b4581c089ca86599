package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/dataplane/catalog-access/pkg/datacatalog"
	"github.com/dataplane/catalog-access/pkg/permissions"
)

// PermissionResolver is the slice of pkg/permissions the evaluator
// consumes. *permissions.Resolver satisfies it.
type PermissionResolver interface {
	ResolveSubject(ctx context.Context, subjectID string) ([]permissions.Permission, error)
}

// Evaluator is the access decision engine. It is stateless: both entry
// points re-resolve permissions and re-read catalog tags on every call,
// so a decision always reflects the stores' current state.
type Evaluator struct {
	resolver PermissionResolver
	catalog  datacatalog.Catalog
	logger   *slog.Logger
}

// NewEvaluator creates an Evaluator over the given collaborators.
func NewEvaluator(resolver PermissionResolver, catalog datacatalog.Catalog, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{resolver: resolver, catalog: catalog, logger: logger}
}

// ListAuthorisedDatasets returns every dataset the subject may perform
// the action on, deduplicated and ordered by domain, dataset, version.
// A subject without a store record enumerates to an empty list.
func (e *Evaluator) ListAuthorisedDatasets(ctx context.Context, subjectID string, action permissions.Action) ([]datacatalog.DatasetMetadata, error) {
	granted, err := e.resolveForDecision(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	queried := mapset.NewSet[string]()
	seen := mapset.NewSet[string]()
	var datasets []datacatalog.DatasetMetadata

	for _, permission := range filterByAction(granted, action) {
		filter := filterForPermission(permission)
		if !queried.Add(filterKey(filter)) {
			continue
		}

		matched, err := e.catalog.GetDatasetsMetadata(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, dataset := range matched {
			if seen.Add(identityKey(dataset)) {
				datasets = append(datasets, dataset)
			}
		}
	}

	sort.Slice(datasets, func(i, j int) bool {
		a, b := datasets[i], datasets[j]
		if a.Domain != b.Domain {
			return a.Domain < b.Domain
		}
		if a.Dataset != b.Dataset {
			return a.Dataset < b.Dataset
		}
		return a.Version < b.Version
	})
	return datasets, nil
}

// CanAccessDataset decides whether the subject may perform any of the
// actions, in caller order, on the dataset. The first matching
// action/permission pair grants access; exhausting the list yields an
// AuthorisationError naming the subject and dataset.
func (e *Evaluator) CanAccessDataset(ctx context.Context, dataset datacatalog.DatasetMetadata, subjectID string, actions []permissions.Action) error {
	granted, err := e.resolveForDecision(ctx, subjectID)
	if err != nil {
		return err
	}

	tags, err := e.catalog.GetTags(ctx, dataset)
	if err != nil {
		return err
	}

	for _, action := range actions {
		if action.Standalone() {
			for _, permission := range granted {
				if permission.Action == action {
					return nil
				}
			}
			continue
		}
		for _, permission := range filterByAction(granted, action) {
			if tagsOverlapWithPermission(tags, permission) {
				return nil
			}
		}
	}

	return &AuthorisationError{Subject: subjectID, Resource: dataset.String()}
}

// resolveForDecision treats an unknown subject as holding zero
// permissions, logging the distinction so operators can tell it apart
// from a genuine zero-permission subject. Store outages propagate.
func (e *Evaluator) resolveForDecision(ctx context.Context, subjectID string) ([]permissions.Permission, error) {
	granted, err := e.resolver.ResolveSubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, permissions.ErrSubjectNotFound) {
			e.logger.Warn("subject has no permission record, treating as zero permissions",
				"subject", subjectID)
			return nil, nil
		}
		return nil, err
	}
	return granted, nil
}

// tagsOverlapWithPermission reports whether one permission authorizes a
// dataset with the given tags: the dataset tier must be covered by the
// permission tier, the dataset layer by the permission layer scope, and
// for PROTECTED permissions the domains must match exactly
// (case-normalized). PROTECTED permissions never cover non-PROTECTED
// datasets and vice versa.
func tagsOverlapWithPermission(tags datacatalog.DatasetTags, permission permissions.Permission) bool {
	if permission.Action.Standalone() {
		return false
	}
	if !permissions.CoversTier(permission.Sensitivity, tags.Sensitivity) {
		return false
	}
	if !permissions.CoversLayer(permission.Layer, tags.Layer) {
		return false
	}
	if permission.Protected() && !strings.EqualFold(tags.Domain, permission.Domain) {
		return false
	}
	return true
}

func filterByAction(granted []permissions.Permission, action permissions.Action) []permissions.Permission {
	var matching []permissions.Permission
	for _, permission := range granted {
		if permission.Action == action {
			matching = append(matching, permission)
		}
	}
	return matching
}

// filterForPermission derives the catalog query one permission implies:
// its covered tiers and layers, and for PROTECTED grants the exact
// domain.
func filterForPermission(permission permissions.Permission) datacatalog.DatasetFilter {
	filter := datacatalog.DatasetFilter{
		Sensitivities: permissions.CoveredTiers(permission.Sensitivity),
		Layers:        permissions.CoveredLayers(permission.Layer),
	}
	if permission.Protected() {
		filter.Domain = strings.ToLower(permission.Domain)
	}
	return filter
}

func filterKey(filter datacatalog.DatasetFilter) string {
	tiers := make([]string, len(filter.Sensitivities))
	for i, tier := range filter.Sensitivities {
		tiers[i] = string(tier)
	}
	layers := make([]string, len(filter.Layers))
	for i, layer := range filter.Layers {
		layers[i] = string(layer)
	}
	sort.Strings(tiers)
	sort.Strings(layers)
	return fmt.Sprintf("%s|%s|%s", strings.Join(tiers, ","), strings.Join(layers, ","), filter.Domain)
}

func identityKey(dataset datacatalog.DatasetMetadata) string {
	return fmt.Sprintf("%s/%s/%s/%d", dataset.Layer, dataset.Domain, dataset.Dataset, dataset.Version)
}
