package access

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataplane/catalog-access/pkg/datacatalog"
	"github.com/dataplane/catalog-access/pkg/permissions"
)

type fakeResolver struct {
	grants map[string][]permissions.Permission
	err    error
}

func (f *fakeResolver) ResolveSubject(_ context.Context, subjectID string) ([]permissions.Permission, error) {
	if f.err != nil {
		return nil, f.err
	}
	granted, ok := f.grants[subjectID]
	if !ok {
		return nil, permissions.ErrSubjectNotFound
	}
	return granted, nil
}

type catalogEntry struct {
	meta datacatalog.DatasetMetadata
	tags datacatalog.DatasetTags
}

type fakeCatalog struct {
	entries    []catalogEntry
	queryCount int
	err        error
}

func (f *fakeCatalog) GetDatasetsMetadata(_ context.Context, filter datacatalog.DatasetFilter) ([]datacatalog.DatasetMetadata, error) {
	f.queryCount++
	if f.err != nil {
		return nil, f.err
	}

	tiers := map[permissions.Sensitivity]bool{}
	for _, tier := range filter.Sensitivities {
		tiers[tier] = true
	}
	layers := map[permissions.LayerScope]bool{}
	for _, layer := range filter.Layers {
		layers[layer] = true
	}

	var matched []datacatalog.DatasetMetadata
	for _, entry := range f.entries {
		if len(tiers) > 0 && !tiers[entry.tags.Sensitivity] {
			continue
		}
		if len(layers) > 0 && !layers[entry.tags.Layer] {
			continue
		}
		if filter.Domain != "" && !strings.EqualFold(filter.Domain, entry.meta.Domain) {
			continue
		}
		matched = append(matched, entry.meta)
	}
	return matched, nil
}

func (f *fakeCatalog) GetTags(_ context.Context, dataset datacatalog.DatasetMetadata) (datacatalog.DatasetTags, error) {
	if f.err != nil {
		return datacatalog.DatasetTags{}, f.err
	}
	for _, entry := range f.entries {
		if entry.meta.Layer == dataset.Layer &&
			strings.EqualFold(entry.meta.Domain, dataset.Domain) &&
			entry.meta.Dataset == dataset.Dataset &&
			(dataset.Version == 0 || entry.meta.Version == dataset.Version) {
			return entry.tags, nil
		}
	}
	return datacatalog.DatasetTags{}, datacatalog.ErrDatasetNotFound
}

func mustDecompose(t *testing.T, ids ...string) []permissions.Permission {
	t.Helper()
	granted := make([]permissions.Permission, len(ids))
	for i, id := range ids {
		permission, err := permissions.Decompose(id)
		require.NoError(t, err)
		granted[i] = permission
	}
	return granted
}

func entry(layer permissions.LayerScope, domain, dataset string, version int, tier permissions.Sensitivity) catalogEntry {
	return catalogEntry{
		meta: datacatalog.DatasetMetadata{Layer: layer, Domain: domain, Dataset: dataset, Version: version},
		tags: datacatalog.DatasetTags{Sensitivity: tier, Layer: layer, Domain: domain},
	}
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{entries: []catalogEntry{
		entry(permissions.LayerRaw, "sales", "orders", 1, permissions.SensitivityPublic),
		entry(permissions.LayerRaw, "sales", "refunds", 1, permissions.SensitivityPrivate),
		entry(permissions.LayerPresentation, "sales", "orders", 2, permissions.SensitivityPublic),
		entry(permissions.LayerRaw, "hr", "salaries", 1, permissions.SensitivityProtected),
	}}
}

func TestListAuthorisedDatasets_PublicRawOnly(t *testing.T) {
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{
		"alice": mustDecompose(t, "READ_RAW_PUBLIC"),
	}}
	evaluator := NewEvaluator(resolver, testCatalog(), nil)

	datasets, err := evaluator.ListAuthorisedDatasets(context.Background(), "alice", permissions.ActionRead)
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, "orders", datasets[0].Dataset)
	assert.Equal(t, permissions.LayerRaw, datasets[0].Layer)
}

// A PRIVATE grant enumerates PRIVATE and PUBLIC datasets at its layer,
// but never PROTECTED ones.
func TestListAuthorisedDatasets_PrivateImpliesPublic(t *testing.T) {
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{
		"alice": mustDecompose(t, "READ_RAW_PRIVATE"),
	}}
	evaluator := NewEvaluator(resolver, testCatalog(), nil)

	datasets, err := evaluator.ListAuthorisedDatasets(context.Background(), "alice", permissions.ActionRead)
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	assert.Equal(t, "orders", datasets[0].Dataset)
	assert.Equal(t, "refunds", datasets[1].Dataset)
}

// The wildcard covers everything except PROTECTED data.
func TestListAuthorisedDatasets_WildcardExcludesProtected(t *testing.T) {
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{
		"alice": mustDecompose(t, "READ_ALL"),
	}}
	evaluator := NewEvaluator(resolver, testCatalog(), nil)

	datasets, err := evaluator.ListAuthorisedDatasets(context.Background(), "alice", permissions.ActionRead)
	require.NoError(t, err)
	require.Len(t, datasets, 3)
	for _, dataset := range datasets {
		assert.NotEqual(t, "hr", dataset.Domain)
	}
}

func TestListAuthorisedDatasets_ProtectedDomain(t *testing.T) {
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{
		"alice": mustDecompose(t, "READ_ALL_PROTECTED_HR"),
	}}
	evaluator := NewEvaluator(resolver, testCatalog(), nil)

	datasets, err := evaluator.ListAuthorisedDatasets(context.Background(), "alice", permissions.ActionRead)
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, "salaries", datasets[0].Dataset)
}

// Results are deduplicated across overlapping grants and ordered by
// domain, dataset, version; duplicate filters hit the catalog once.
func TestListAuthorisedDatasets_DedupAndOrder(t *testing.T) {
	catalog := testCatalog()
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{
		"alice": mustDecompose(t, "READ_RAW_PUBLIC", "READ_ALL_PUBLIC", "READ_ALL_ALL"),
	}}
	evaluator := NewEvaluator(resolver, catalog, nil)

	datasets, err := evaluator.ListAuthorisedDatasets(context.Background(), "alice", permissions.ActionRead)
	require.NoError(t, err)
	require.Len(t, datasets, 3)

	assert.Equal(t, "orders", datasets[0].Dataset)
	assert.Equal(t, 1, datasets[0].Version)
	assert.Equal(t, "orders", datasets[1].Dataset)
	assert.Equal(t, 2, datasets[1].Version)
	assert.Equal(t, "refunds", datasets[2].Dataset)

	// READ_ALL_PUBLIC and the wildcard cover distinct filter shapes;
	// READ_RAW_PUBLIC adds a third. No filter is queried twice.
	assert.Equal(t, 3, catalog.queryCount)
}

// The enumeration only consults grants for the requested action.
func TestListAuthorisedDatasets_FiltersByAction(t *testing.T) {
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{
		"alice": mustDecompose(t, "READ_ALL", "USER_ADMIN"),
	}}
	evaluator := NewEvaluator(resolver, testCatalog(), nil)

	datasets, err := evaluator.ListAuthorisedDatasets(context.Background(), "alice", permissions.ActionWrite)
	require.NoError(t, err)
	assert.Empty(t, datasets)
}

// A subject without a store record enumerates to an empty list, not an
// error; so does a subject that exists with zero grants.
func TestListAuthorisedDatasets_EmptyPermissions(t *testing.T) {
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{
		"granted-nothing": {},
	}}
	evaluator := NewEvaluator(resolver, testCatalog(), nil)
	ctx := context.Background()

	datasets, err := evaluator.ListAuthorisedDatasets(ctx, "nobody", permissions.ActionRead)
	require.NoError(t, err)
	assert.Empty(t, datasets)

	datasets, err = evaluator.ListAuthorisedDatasets(ctx, "granted-nothing", permissions.ActionRead)
	require.NoError(t, err)
	assert.Empty(t, datasets)
}

func TestListAuthorisedDatasets_StoreOutage(t *testing.T) {
	resolver := &fakeResolver{err: &permissions.StoreUnavailableError{Op: "get subject", Err: errors.New("down")}}
	evaluator := NewEvaluator(resolver, testCatalog(), nil)

	_, err := evaluator.ListAuthorisedDatasets(context.Background(), "alice", permissions.ActionRead)
	var unavailable *permissions.StoreUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func TestCanAccessDataset(t *testing.T) {
	catalog := testCatalog()

	tests := []struct {
		name    string
		grants  []string
		dataset datacatalog.DatasetMetadata
		actions []permissions.Action
		allowed bool
	}{
		{
			name:    "exact grant",
			grants:  []string{"READ_RAW_PUBLIC"},
			dataset: datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "sales", Dataset: "orders"},
			actions: []permissions.Action{permissions.ActionRead},
			allowed: true,
		},
		{
			name:    "private grant covers public dataset",
			grants:  []string{"READ_RAW_PRIVATE"},
			dataset: datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "sales", Dataset: "orders"},
			actions: []permissions.Action{permissions.ActionRead},
			allowed: true,
		},
		{
			name:    "public grant does not cover private dataset",
			grants:  []string{"READ_RAW_PUBLIC"},
			dataset: datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "sales", Dataset: "refunds"},
			actions: []permissions.Action{permissions.ActionRead},
			allowed: false,
		},
		{
			name:    "layer mismatch",
			grants:  []string{"READ_RAW_PUBLIC"},
			dataset: datacatalog.DatasetMetadata{Layer: permissions.LayerPresentation, Domain: "sales", Dataset: "orders", Version: 2},
			actions: []permissions.Action{permissions.ActionRead},
			allowed: false,
		},
		{
			name:    "wildcard never reaches protected",
			grants:  []string{"READ_ALL"},
			dataset: datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "hr", Dataset: "salaries"},
			actions: []permissions.Action{permissions.ActionRead},
			allowed: false,
		},
		{
			name:    "protected grant exact domain",
			grants:  []string{"READ_RAW_PROTECTED_HR"},
			dataset: datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "hr", Dataset: "salaries"},
			actions: []permissions.Action{permissions.ActionRead},
			allowed: true,
		},
		{
			name:    "protected grant wrong domain",
			grants:  []string{"READ_RAW_PROTECTED_FINANCE"},
			dataset: datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "hr", Dataset: "salaries"},
			actions: []permissions.Action{permissions.ActionRead},
			allowed: false,
		},
		{
			name:    "protected grant does not cover public dataset",
			grants:  []string{"READ_RAW_PROTECTED_SALES"},
			dataset: datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "sales", Dataset: "orders"},
			actions: []permissions.Action{permissions.ActionRead},
			allowed: false,
		},
		{
			name:    "action mismatch",
			grants:  []string{"WRITE_RAW_PUBLIC"},
			dataset: datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "sales", Dataset: "orders"},
			actions: []permissions.Action{permissions.ActionRead},
			allowed: false,
		},
		{
			name:    "any action in the list suffices",
			grants:  []string{"WRITE_RAW_PUBLIC"},
			dataset: datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "sales", Dataset: "orders"},
			actions: []permissions.Action{permissions.ActionRead, permissions.ActionWrite},
			allowed: true,
		},
		{
			name:    "standalone action grants regardless of tags",
			grants:  []string{"DATA_ADMIN"},
			dataset: datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "hr", Dataset: "salaries"},
			actions: []permissions.Action{permissions.ActionDataAdmin},
			allowed: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resolver := &fakeResolver{grants: map[string][]permissions.Permission{
				"alice": mustDecompose(t, tc.grants...),
			}}
			evaluator := NewEvaluator(resolver, catalog, nil)

			err := evaluator.CanAccessDataset(context.Background(), tc.dataset, "alice", tc.actions)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				var authzErr *AuthorisationError
				require.True(t, errors.As(err, &authzErr), "expected AuthorisationError, got %v", err)
				assert.Contains(t, authzErr.Error(), "alice")
			}
		})
	}
}

// Protected domain matching is case-insensitive.
func TestCanAccessDataset_ProtectedDomainCase(t *testing.T) {
	catalog := &fakeCatalog{entries: []catalogEntry{
		entry(permissions.LayerRaw, "HR", "salaries", 1, permissions.SensitivityProtected),
	}}
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{
		"alice": mustDecompose(t, "READ_RAW_PROTECTED_HR"),
	}}
	evaluator := NewEvaluator(resolver, catalog, nil)

	dataset := datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "HR", Dataset: "salaries"}
	assert.NoError(t, evaluator.CanAccessDataset(context.Background(), dataset, "alice", []permissions.Action{permissions.ActionRead}))
}

func TestCanAccessDataset_UnknownSubjectDenied(t *testing.T) {
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{}}
	evaluator := NewEvaluator(resolver, testCatalog(), nil)

	dataset := datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "sales", Dataset: "orders"}
	err := evaluator.CanAccessDataset(context.Background(), dataset, "nobody", []permissions.Action{permissions.ActionRead})

	var authzErr *AuthorisationError
	assert.True(t, errors.As(err, &authzErr))
}

func TestCanAccessDataset_DatasetNotFound(t *testing.T) {
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{
		"alice": mustDecompose(t, "READ_ALL"),
	}}
	evaluator := NewEvaluator(resolver, testCatalog(), nil)

	dataset := datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "sales", Dataset: "nope"}
	err := evaluator.CanAccessDataset(context.Background(), dataset, "alice", []permissions.Action{permissions.ActionRead})
	assert.ErrorIs(t, err, datacatalog.ErrDatasetNotFound)
}

func TestCanAccessDataset_CatalogOutage(t *testing.T) {
	catalog := &fakeCatalog{err: &datacatalog.CatalogUnavailableError{Op: "get dataset tags", Err: errors.New("down")}}
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{
		"alice": mustDecompose(t, "READ_ALL"),
	}}
	evaluator := NewEvaluator(resolver, catalog, nil)

	dataset := datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "sales", Dataset: "orders"}
	err := evaluator.CanAccessDataset(context.Background(), dataset, "alice", []permissions.Action{permissions.ActionRead})

	var unavailable *datacatalog.CatalogUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

// Repeating a decision against unchanged stores yields the same answer.
func TestCanAccessDataset_Idempotent(t *testing.T) {
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{
		"alice": mustDecompose(t, "READ_RAW_PRIVATE"),
	}}
	evaluator := NewEvaluator(resolver, testCatalog(), nil)
	dataset := datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "sales", Dataset: "refunds"}

	for i := 0; i < 3; i++ {
		assert.NoError(t, evaluator.CanAccessDataset(context.Background(), dataset, "alice", []permissions.Action{permissions.ActionRead}))
	}
}

// For every single-permission grant and every dataset, the acceptance
// calculator and the point decision must agree: a permission satisfies
// the acceptance set for a dataset exactly when the evaluator grants
// access with it.
func TestAcceptanceAgreesWithPointDecision(t *testing.T) {
	catalog := testCatalog()

	grants := permissions.Vocabulary()
	grants = append(grants, permissions.ProtectedVocabulary("hr")...)
	grants = append(grants, permissions.ProtectedVocabulary("finance")...)

	for _, permission := range grants {
		if permission.Action.Standalone() {
			continue
		}
		for _, e := range catalog.entries {
			resolver := &fakeResolver{grants: map[string][]permissions.Permission{
				"alice": {permission},
			}}
			evaluator := NewEvaluator(resolver, catalog, nil)

			decision := evaluator.CanAccessDataset(context.Background(), e.meta, "alice", []permissions.Action{permission.Action})

			target := &Target{Sensitivity: e.tags.Sensitivity, Layer: e.tags.Layer, Domain: e.tags.Domain}
			accepted := AcceptableFor([]permissions.Action{permission.Action}, target).
				SatisfiedBy([]string{permission.ID()})

			assert.Equal(t, accepted, decision == nil,
				"grant %s vs dataset %s: acceptance=%v decision=%v",
				permission.ID(), e.meta.String(), accepted, decision)
		}
	}
}
