// Package access implements the authorization decision engine: the
// acceptance calculator that maps an endpoint's required actions onto
// the permission strings that satisfy them, and the evaluator that
// decides dataset access against the catalog's classification tags.
// The engine holds no mutable state and is safe for concurrent use;
// every decision re-resolves permissions from the store.
package access

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/dataplane/catalog-access/pkg/permissions"
)

// Target is the classification of the dataset an endpoint operates on.
// Nil targets are used for administrative endpoints with no dataset.
type Target struct {
	Sensitivity permissions.Sensitivity
	Layer       permissions.LayerScope
	Domain      string
}

// AcceptanceSet is the computed requirement for one endpoint call:
// every Required permission must be held, and at least one Optional
// permission must be held unless Optional is empty.
type AcceptanceSet struct {
	Required mapset.Set[string]
	Optional mapset.Set[string]
}

// SatisfiedBy reports whether the granted permission strings meet the
// acceptance requirement.
func (s AcceptanceSet) SatisfiedBy(granted []string) bool {
	held := mapset.NewSet(granted...)
	if !s.Required.IsSubset(held) {
		return false
	}
	if s.Optional.Cardinality() == 0 {
		return true
	}
	return s.Optional.Intersect(held).Cardinality() > 0
}

// AcceptableFor computes the acceptance set for the given endpoint
// actions against a target classification. Standalone actions land in
// Required (all must hold); scoped actions expand into the Optional set
// (any one grants access), covering the target's implied sensitivity
// tiers, the target layer plus the ALL scope, and the per-action
// wildcard. The wildcard is withheld for PROTECTED targets: a
// non-protected grant never satisfies a protected dataset, so offering
// it here would disagree with the point check.
func AcceptableFor(actions []permissions.Action, target *Target) AcceptanceSet {
	required := mapset.NewSet[string]()
	optional := mapset.NewSet[string]()

	for _, action := range actions {
		if action.Standalone() {
			required.Add(string(action))
			continue
		}

		if target == nil {
			optional.Add(fmt.Sprintf("%s_%s", action, permissions.LayerAll))
			continue
		}
		if target.Sensitivity != permissions.SensitivityProtected {
			optional.Add(fmt.Sprintf("%s_%s", action, permissions.LayerAll))
		}
		for _, tier := range impliedTierTokens(*target) {
			for _, layer := range acceptableLayerScopes(target.Layer) {
				optional.Add(fmt.Sprintf("%s_%s_%s", action, layer, tier))
			}
		}
	}

	return AcceptanceSet{Required: required, Optional: optional}
}

// impliedTierTokens returns the sensitivity tokens that authorize a
// target at the given tier. PROTECTED targets accept only the exact
// domain-scoped token; lower tiers are implied by higher ones.
func impliedTierTokens(target Target) []string {
	switch target.Sensitivity {
	case permissions.SensitivityProtected:
		return []string{fmt.Sprintf("%s_%s", permissions.SensitivityProtected, strings.ToUpper(target.Domain))}
	case permissions.SensitivityPublic:
		return []string{string(permissions.SensitivityPublic), string(permissions.SensitivityPrivate)}
	case permissions.SensitivityPrivate:
		return []string{string(permissions.SensitivityPrivate)}
	default:
		return nil
	}
}

func acceptableLayerScopes(layer permissions.LayerScope) []permissions.LayerScope {
	if layer == "" || layer == permissions.LayerAll {
		return []permissions.LayerScope{permissions.LayerAll}
	}
	return []permissions.LayerScope{layer, permissions.LayerAll}
}
