package access

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dataplane/catalog-access/pkg/datacatalog"
	"github.com/dataplane/catalog-access/pkg/permissions"
)

// Guard is the request-handling layer's entry into the decision engine.
// Endpoints declare required action strings; dataset-scoped endpoints
// additionally name the target extracted from the URL path.
type Guard struct {
	resolver  PermissionResolver
	evaluator *Evaluator
	logger    *slog.Logger
}

// NewGuard creates a Guard over the given resolver and evaluator.
func NewGuard(resolver PermissionResolver, evaluator *Evaluator, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{resolver: resolver, evaluator: evaluator, logger: logger}
}

// CheckEndpoint enforces the declared actions for an endpoint with no
// target dataset: standalone actions must all be held; a scoped action
// is satisfied only by its wildcard grant.
func (g *Guard) CheckEndpoint(ctx context.Context, subjectID string, actions []permissions.Action) error {
	granted, err := g.resolveForDecision(ctx, subjectID)
	if err != nil {
		return err
	}

	ids := make([]string, len(granted))
	for i, permission := range granted {
		ids[i] = permission.ID()
	}

	if !AcceptableFor(actions, nil).SatisfiedBy(ids) {
		return &AuthorisationError{Subject: subjectID}
	}
	return nil
}

// CheckDataset enforces the declared actions against a specific dataset.
// Standalone actions in the list must all be held regardless of the
// dataset; the scoped actions are evaluated any-of against the dataset's
// tags, in caller order.
func (g *Guard) CheckDataset(ctx context.Context, subjectID string, dataset datacatalog.DatasetMetadata, actions []permissions.Action) error {
	var standalone, scoped []permissions.Action
	for _, action := range actions {
		if action.Standalone() {
			standalone = append(standalone, action)
		} else {
			scoped = append(scoped, action)
		}
	}

	if len(standalone) > 0 {
		if err := g.CheckEndpoint(ctx, subjectID, standalone); err != nil {
			return err
		}
	}
	if len(scoped) > 0 {
		return g.evaluator.CanAccessDataset(ctx, dataset, subjectID, scoped)
	}
	return nil
}

func (g *Guard) resolveForDecision(ctx context.Context, subjectID string) ([]permissions.Permission, error) {
	granted, err := g.resolver.ResolveSubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, permissions.ErrSubjectNotFound) {
			g.logger.Warn("subject has no permission record, treating as zero permissions",
				"subject", subjectID)
			return nil, nil
		}
		return nil, err
	}
	return granted, nil
}
