package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataplane/catalog-access/pkg/datacatalog"
	"github.com/dataplane/catalog-access/pkg/permissions"
)

func newTestGuard(t *testing.T, resolver *fakeResolver, catalog datacatalog.Catalog) *Guard {
	t.Helper()
	if catalog == nil {
		catalog = testCatalog()
	}
	return NewGuard(resolver, NewEvaluator(resolver, catalog, nil), nil)
}

func TestGuard_CheckEndpoint_Standalone(t *testing.T) {
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{
		"admin":  mustDecompose(t, "USER_ADMIN"),
		"reader": mustDecompose(t, "READ_ALL"),
	}}
	guard := newTestGuard(t, resolver, nil)
	ctx := context.Background()

	assert.NoError(t, guard.CheckEndpoint(ctx, "admin", []permissions.Action{permissions.ActionUserAdmin}))

	err := guard.CheckEndpoint(ctx, "reader", []permissions.Action{permissions.ActionUserAdmin})
	var authzErr *AuthorisationError
	require.True(t, errors.As(err, &authzErr))
}

// With no target dataset a scoped action is satisfied only by its
// wildcard grant.
func TestGuard_CheckEndpoint_ScopedWildcardOnly(t *testing.T) {
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{
		"wildcard": mustDecompose(t, "READ_ALL"),
		"narrow":   mustDecompose(t, "READ_RAW_PUBLIC"),
	}}
	guard := newTestGuard(t, resolver, nil)
	ctx := context.Background()

	assert.NoError(t, guard.CheckEndpoint(ctx, "wildcard", []permissions.Action{permissions.ActionRead}))

	err := guard.CheckEndpoint(ctx, "narrow", []permissions.Action{permissions.ActionRead})
	var authzErr *AuthorisationError
	assert.True(t, errors.As(err, &authzErr))
}

// An unknown subject is zero permissions, which fails any non-empty
// requirement as forbidden, not as an internal error.
func TestGuard_CheckEndpoint_UnknownSubject(t *testing.T) {
	guard := newTestGuard(t, &fakeResolver{grants: map[string][]permissions.Permission{}}, nil)

	err := guard.CheckEndpoint(context.Background(), "nobody", []permissions.Action{permissions.ActionUserAdmin})
	var authzErr *AuthorisationError
	assert.True(t, errors.As(err, &authzErr))
}

func TestGuard_CheckEndpoint_StoreOutage(t *testing.T) {
	resolver := &fakeResolver{err: &permissions.StoreUnavailableError{Op: "get subject", Err: errors.New("down")}}
	guard := newTestGuard(t, resolver, nil)

	err := guard.CheckEndpoint(context.Background(), "alice", []permissions.Action{permissions.ActionUserAdmin})
	var unavailable *permissions.StoreUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

// Standalone grants never satisfy scoped dataset checks.
func TestGuard_CheckDataset_StandaloneDoesNotImplyScoped(t *testing.T) {
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{
		"admin": mustDecompose(t, "USER_ADMIN"),
	}}
	guard := newTestGuard(t, resolver, nil)

	dataset := datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "sales", Dataset: "orders"}
	err := guard.CheckDataset(context.Background(), "admin", dataset, []permissions.Action{permissions.ActionRead})

	var authzErr *AuthorisationError
	assert.True(t, errors.As(err, &authzErr))
}

// A mixed requirement enforces the standalone action unconditionally and
// the scoped action against the dataset's tags.
func TestGuard_CheckDataset_MixedActions(t *testing.T) {
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{
		"both":       mustDecompose(t, "DATA_ADMIN", "WRITE_RAW_PUBLIC"),
		"scoped":     mustDecompose(t, "WRITE_RAW_PUBLIC"),
		"standalone": mustDecompose(t, "DATA_ADMIN"),
	}}
	guard := newTestGuard(t, resolver, nil)
	ctx := context.Background()

	dataset := datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "sales", Dataset: "orders"}
	actions := []permissions.Action{permissions.ActionDataAdmin, permissions.ActionWrite}

	assert.NoError(t, guard.CheckDataset(ctx, "both", dataset, actions))

	var authzErr *AuthorisationError
	assert.True(t, errors.As(guard.CheckDataset(ctx, "scoped", dataset, actions), &authzErr))
	assert.True(t, errors.As(guard.CheckDataset(ctx, "standalone", dataset, actions), &authzErr))
}

func TestGuard_CheckDataset_ScopedOnly(t *testing.T) {
	resolver := &fakeResolver{grants: map[string][]permissions.Permission{
		"alice": mustDecompose(t, "READ_RAW_PRIVATE"),
	}}
	guard := newTestGuard(t, resolver, nil)

	dataset := datacatalog.DatasetMetadata{Layer: permissions.LayerRaw, Domain: "sales", Dataset: "refunds"}
	assert.NoError(t, guard.CheckDataset(context.Background(), "alice", dataset, []permissions.Action{permissions.ActionRead}))
}
