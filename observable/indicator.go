package observable

import (
	"context"
	"fmt"

	"github.com/stixgraph/stixgraph/pattern"
	"github.com/stixgraph/stixgraph/store"
)

// IndicatorCreator is the indicator domain service consumed by the linker.
// The autoEnrich flag mirrors the observable create path: the linker always
// disables it so indicator creation never triggers a second enrichment wave.
type IndicatorCreator interface {
	AddIndicator(ctx context.Context, actor string, input map[string]any, autoEnrich bool) (*store.Entity, error)
}

// LinkResult captures the outcome of one indicator-linking attempt. Linking
// is best-effort: the result is inspected and logged by the caller, never
// propagated as an error of the observable creation.
type LinkResult struct {
	// Indicator is the created indicator entity, nil when none was created.
	Indicator *store.Entity

	// Skipped is the reason no creation was attempted (e.g. the pattern
	// bridge returned no pattern). Empty when creation was attempted.
	Skipped string

	// Err is the failure of an attempted creation or bridge call.
	Err error
}

// IndicatorLinker derives a detection indicator from a freshly created
// observable. It is invoked only post-creation and only when the caller
// requested indicator creation.
type IndicatorLinker struct {
	bridge     pattern.Bridge
	indicators IndicatorCreator
}

// NewIndicatorLinker builds a linker over the given bridge and indicator
// service.
func NewIndicatorLinker(bridge pattern.Bridge, indicators IndicatorCreator) *IndicatorLinker {
	return &IndicatorLinker{bridge: bridge, indicators: indicators}
}

// indicatorKey derives the pattern-bridge key for an observable: the entity
// type (StixFile normalized to File), refined to a hash-qualified key for
// hashed subtypes, preferring sha256, then sha1, then md5.
func indicatorKey(created *store.Entity) string {
	entityType := created.EntityType
	if entityType == TypeStixFile {
		entityType = "File"
	}
	if IsHashedObservable(created.EntityType) {
		if hashKey, _, ok := HashAttr(created); ok {
			return entityType + "_" + hashKey
		}
	}
	return entityType
}

// Link attempts to create an indicator based on the created observable.
// The typed input is reused as the indicator base after stripping internal
// identifiers, so labels and markings supplied at creation carry over.
func (l *IndicatorLinker) Link(ctx context.Context, actor string, created *store.Entity, typedInput map[string]any) LinkResult {
	value, ok := ResolveValue(created)
	if !ok {
		return LinkResult{Skipped: "observable has no resolvable value"}
	}

	stixPattern, err := l.bridge.CreatePattern(ctx, indicatorKey(created), value)
	if err != nil {
		return LinkResult{Err: fmt.Errorf("pattern bridge failed: %w", err)}
	}
	if stixPattern == "" {
		return LinkResult{Skipped: "pattern bridge returned no pattern"}
	}

	input := make(map[string]any, len(typedInput)+6)
	for k, v := range typedInput {
		switch k {
		case "internal_id", "stix_id", "observable_value":
			// Internal identifiers of the observable must not leak into the
			// derived indicator.
		default:
			input[k] = v
		}
	}
	input["name"] = value
	input["description"] = fmt.Sprintf("Simple indicator of observable {%s}", value)
	input["pattern_type"] = "stix"
	input["pattern"] = stixPattern
	input["x_opencti_main_observable_type"] = created.EntityType
	input["basedOn"] = []string{created.ID}

	indicator, err := l.indicators.AddIndicator(ctx, actor, input, false)
	if err != nil {
		return LinkResult{Err: fmt.Errorf("indicator creation failed: %w", err)}
	}
	return LinkResult{Indicator: indicator}
}
