// Package permissions defines the permission vocabulary for the data
// catalog: actions, sensitivity tiers, layer scopes, and the Permission
// value type with its string codec. Permission strings are decoded once
// at the boundary (resolver or token parser); the matching logic in
// pkg/access only ever sees decoded Permission values.
package permissions

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Action is the operation a permission grants.
type Action string

const (
	ActionRead      Action = "READ"
	ActionWrite     Action = "WRITE"
	ActionUserAdmin Action = "USER_ADMIN"
	ActionDataAdmin Action = "DATA_ADMIN"
)

// ScopedActions are the actions that combine with a layer and sensitivity.
func ScopedActions() []Action {
	return []Action{ActionRead, ActionWrite}
}

// StandaloneActions are matched by plain set membership and never carry
// a layer, sensitivity, or domain.
func StandaloneActions() []Action {
	return []Action{ActionUserAdmin, ActionDataAdmin}
}

// Standalone reports whether the action is an administrative action that
// does not combine with a layer/sensitivity scope.
func (a Action) Standalone() bool {
	return a == ActionUserAdmin || a == ActionDataAdmin
}

// ParseAction converts a string into an Action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionRead, ActionWrite, ActionUserAdmin, ActionDataAdmin:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Sensitivity is the classification tier of a dataset or permission,
// ordered by increasing restrictiveness: PUBLIC < PRIVATE < PROTECTED.
// SensitivityAll is a synthetic wildcard covering the non-protected tiers.
type Sensitivity string

const (
	SensitivityPublic    Sensitivity = "PUBLIC"
	SensitivityPrivate   Sensitivity = "PRIVATE"
	SensitivityProtected Sensitivity = "PROTECTED"
	SensitivityAll       Sensitivity = "ALL"
)

// ParseSensitivity converts a string into a Sensitivity.
func ParseSensitivity(s string) (Sensitivity, error) {
	switch Sensitivity(s) {
	case SensitivityPublic, SensitivityPrivate, SensitivityProtected, SensitivityAll:
		return Sensitivity(s), nil
	}
	return "", fmt.Errorf("unknown sensitivity %q", s)
}

// LayerScope is a storage layer a permission is scoped to, or the ALL
// wildcard covering every layer.
type LayerScope string

const (
	LayerRaw          LayerScope = "RAW"
	LayerPresentation LayerScope = "PRESENTATION"
	LayerAll          LayerScope = "ALL"
)

// Layers returns the concrete (non-wildcard) storage layers.
func Layers() []LayerScope {
	return []LayerScope{LayerRaw, LayerPresentation}
}

// LayerScopes returns every legal layer scope, wildcard included.
func LayerScopes() []LayerScope {
	return []LayerScope{LayerRaw, LayerPresentation, LayerAll}
}

// ParseLayerScope converts a string into a LayerScope.
func ParseLayerScope(s string) (LayerScope, error) {
	switch LayerScope(s) {
	case LayerRaw, LayerPresentation, LayerAll:
		return LayerScope(s), nil
	}
	return "", fmt.Errorf("unknown layer %q", s)
}

// layerCoverage is the fixed layer-to-layers table: the concrete layers a
// permission at each scope matches.
var layerCoverage = map[LayerScope][]LayerScope{
	LayerRaw:          {LayerRaw},
	LayerPresentation: {LayerPresentation},
	LayerAll:          {LayerRaw, LayerPresentation},
}

// CoveredLayers returns the concrete layers a permission scoped to l
// matches, in table order.
func CoveredLayers(l LayerScope) []LayerScope {
	covered := layerCoverage[l]
	return append([]LayerScope(nil), covered...)
}

// CoversLayer reports whether a permission scoped to l matches a dataset
// tagged with the given layer.
func CoversLayer(l, layer LayerScope) bool {
	return mapset.NewSet(layerCoverage[l]...).Contains(layer)
}

// tierCoverage maps a permission's sensitivity to the dataset tiers it
// authorizes. Holding a tier grants access to lower or equal tiers, with
// two exceptions: PROTECTED is isolated to exact domain matches, and the
// ALL wildcard never reaches PROTECTED data.
var tierCoverage = map[Sensitivity][]Sensitivity{
	SensitivityPublic:    {SensitivityPublic},
	SensitivityPrivate:   {SensitivityPrivate, SensitivityPublic},
	SensitivityProtected: {SensitivityProtected},
	SensitivityAll:       {SensitivityPrivate, SensitivityPublic},
}

// CoveredTiers returns the dataset sensitivities a permission at tier s
// authorizes, in table order. Domain scoping for PROTECTED is checked
// separately.
func CoveredTiers(s Sensitivity) []Sensitivity {
	covered := tierCoverage[s]
	return append([]Sensitivity(nil), covered...)
}

// CoversTier reports whether a permission at tier s authorizes a dataset
// at the given sensitivity.
func CoversTier(s, tier Sensitivity) bool {
	return mapset.NewSet(tierCoverage[s]...).Contains(tier)
}

// Permission is an immutable, decoded permission grant. Domain is
// non-empty exactly when Sensitivity is PROTECTED. For standalone actions
// Layer, Sensitivity, and Domain are all empty.
type Permission struct {
	Action      Action
	Layer       LayerScope
	Sensitivity Sensitivity
	Domain      string
}

// Protected reports whether the permission is scoped to a named
// protected domain.
func (p Permission) Protected() bool {
	return p.Sensitivity == SensitivityProtected
}

// ID reconstructs the canonical permission string. It is the inverse of
// Decompose for every legal Permission value.
func (p Permission) ID() string {
	if p.Action.Standalone() {
		return string(p.Action)
	}
	if p.Layer == LayerAll && p.Sensitivity == SensitivityAll {
		return fmt.Sprintf("%s_%s", p.Action, wildcard)
	}
	if p.Protected() {
		return fmt.Sprintf("%s_%s_%s_%s", p.Action, p.Layer, p.Sensitivity, p.Domain)
	}
	return fmt.Sprintf("%s_%s_%s", p.Action, p.Layer, p.Sensitivity)
}

const wildcard = "ALL"

// Decompose parses a permission string into a Permission value. The two
// legal shapes are a standalone action keyword and
// {ACTION}_{LAYER}_{SENSITIVITY}[_{DOMAIN}], where {ACTION}_ALL is the
// canonical short form of the all-layers/all-tiers wildcard.
func Decompose(id string) (Permission, error) {
	if action, err := ParseAction(id); err == nil && action.Standalone() {
		return Permission{Action: action}, nil
	}

	parts := strings.Split(id, "_")
	if len(parts) < 2 {
		return Permission{}, &MalformedPermissionError{ID: id}
	}

	action, err := ParseAction(parts[0])
	if err != nil || action.Standalone() {
		return Permission{}, &MalformedPermissionError{ID: id}
	}

	if len(parts) == 2 {
		if parts[1] != wildcard {
			return Permission{}, &MalformedPermissionError{ID: id}
		}
		return Permission{Action: action, Layer: LayerAll, Sensitivity: SensitivityAll}, nil
	}

	layer, err := ParseLayerScope(parts[1])
	if err != nil {
		return Permission{}, &MalformedPermissionError{ID: id}
	}
	sensitivity, err := ParseSensitivity(parts[2])
	if err != nil {
		return Permission{}, &MalformedPermissionError{ID: id}
	}

	if sensitivity == SensitivityProtected {
		domain := strings.Join(parts[3:], "_")
		if domain == "" {
			return Permission{}, &MalformedPermissionError{ID: id}
		}
		return Permission{Action: action, Layer: layer, Sensitivity: sensitivity, Domain: domain}, nil
	}

	if len(parts) != 3 {
		return Permission{}, &MalformedPermissionError{ID: id}
	}
	// ACTION_ALL_ALL canonicalizes to the short wildcard form.
	return Permission{Action: action, Layer: layer, Sensitivity: sensitivity}, nil
}

// Vocabulary returns the full non-protected permission vocabulary: the
// standalone actions, the per-action wildcard, and every scoped
// action/layer/tier combination. Protected permissions are created per
// domain and are not part of the static vocabulary.
func Vocabulary() []Permission {
	var vocab []Permission
	for _, action := range StandaloneActions() {
		vocab = append(vocab, Permission{Action: action})
	}
	for _, action := range ScopedActions() {
		vocab = append(vocab, Permission{Action: action, Layer: LayerAll, Sensitivity: SensitivityAll})
		for _, layer := range LayerScopes() {
			for _, tier := range []Sensitivity{SensitivityPublic, SensitivityPrivate} {
				vocab = append(vocab, Permission{Action: action, Layer: layer, Sensitivity: tier})
			}
		}
	}
	return vocab
}

// ProtectedVocabulary returns the permissions registered when the named
// protected domain is created: both scoped actions across every layer scope.
func ProtectedVocabulary(domain string) []Permission {
	domain = strings.ToUpper(domain)
	var vocab []Permission
	for _, action := range ScopedActions() {
		for _, layer := range LayerScopes() {
			vocab = append(vocab, Permission{
				Action:      action,
				Layer:       layer,
				Sensitivity: SensitivityProtected,
				Domain:      domain,
			})
		}
	}
	return vocab
}
