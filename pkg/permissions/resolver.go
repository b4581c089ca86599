package permissions

import (
	"context"
	"log/slog"
)

// SubjectPermissionStore is the persistent collaborator the resolver
// reads from. *Store satisfies it; tests substitute fakes.
type SubjectPermissionStore interface {
	GetPermissionsForSubject(ctx context.Context, subjectID string) ([]PermissionRecord, error)
	GetAllPermissions(ctx context.Context) ([]PermissionRecord, error)
	GetAllProtectedPermissions(ctx context.Context) ([]PermissionRecord, error)
}

// Resolver bridges a subject id to its durable set of decoded
// permissions. A stored string that fails to decompose indicates data
// corruption: it is logged loudly and skipped, so one bad record cannot
// take down every resolution for the subject.
type Resolver struct {
	store  SubjectPermissionStore
	logger *slog.Logger
}

// NewResolver creates a Resolver over the given store.
func NewResolver(store SubjectPermissionStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// ResolveSubject returns the subject's granted permissions, decoded.
// ErrSubjectNotFound and StoreUnavailableError propagate unmodified.
func (r *Resolver) ResolveSubject(ctx context.Context, subjectID string) ([]Permission, error) {
	records, err := r.store.GetPermissionsForSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return r.decode(records), nil
}

// ResolveAll returns every permission in the store, decoded. Used for
// administrative listing.
func (r *Resolver) ResolveAll(ctx context.Context) ([]Permission, error) {
	records, err := r.store.GetAllPermissions(ctx)
	if err != nil {
		return nil, err
	}
	return r.decode(records), nil
}

// ResolveProtected returns the stored permissions scoped to PROTECTED,
// for protected-domain administration.
func (r *Resolver) ResolveProtected(ctx context.Context) ([]Permission, error) {
	records, err := r.store.GetAllProtectedPermissions(ctx)
	if err != nil {
		return nil, err
	}
	return r.decode(records), nil
}

func (r *Resolver) decode(records []PermissionRecord) []Permission {
	decoded := make([]Permission, 0, len(records))
	for _, record := range records {
		permission, err := Decompose(record.ID)
		if err != nil {
			r.logger.Error("skipping corrupt permission record",
				"permission", record.ID, "error", err)
			continue
		}
		decoded = append(decoded, permission)
	}
	return decoded
}
